package handler

import (
	"net/http"

	"github.com/agrilens/leafsight/internal/service"
	"github.com/gin-gonic/gin"
)

// DiseaseHandler serves the combined disease catalog.
type DiseaseHandler struct {
	knowledge *service.KnowledgeService
}

// NewDiseaseHandler creates a new disease catalog handler.
func NewDiseaseHandler(knowledge *service.KnowledgeService) *DiseaseHandler {
	return &DiseaseHandler{knowledge: knowledge}
}

// DiseaseInfo handles GET /api/disease-info.
func (h *DiseaseHandler) DiseaseInfo(c *gin.Context) {
	infos, err := h.knowledge.DiseaseInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to fetch disease info",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, infos)
}
