package handler

import (
	"net/http"

	"github.com/agrilens/leafsight/internal/service"
	"github.com/gin-gonic/gin"
)

// SummaryHandler serves the per-disease frequency summary.
type SummaryHandler struct {
	summaries *service.SummaryService
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(summaries *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// Summary handles GET /api/summary.
func (h *SummaryHandler) Summary(c *gin.Context) {
	entries, err := h.summaries.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to fetch summary",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, entries)
}
