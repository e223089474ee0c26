package handler

import (
	"net/http"
	"strconv"

	"github.com/agrilens/leafsight/internal/service"
	"github.com/gin-gonic/gin"
)

// HistoryHandler serves paginated diagnosis history.
type HistoryHandler struct {
	summaries *service.SummaryService
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(summaries *service.SummaryService) *HistoryHandler {
	return &HistoryHandler{summaries: summaries}
}

// History handles GET /api/history?page&limit. Missing or non-numeric
// parameters fall back to page 1, limit 10.
func (h *HistoryHandler) History(c *gin.Context) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}

	result, err := h.summaries.History(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to fetch history",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
