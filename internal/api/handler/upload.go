package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agrilens/leafsight/internal/service"
	"github.com/gin-gonic/gin"
)

// UploadHandler handles the diagnosis upload endpoint.
type UploadHandler struct {
	uploads *service.UploadService
	tempDir string
}

// NewUploadHandler creates a new upload handler buffering multipart files
// into tempDir.
func NewUploadHandler(uploads *service.UploadService, tempDir string) *UploadHandler {
	return &UploadHandler{
		uploads: uploads,
		tempDir: tempDir,
	}
}

type uploadBody struct {
	Image string `json:"image"`
}

// Upload handles POST /api/upload. The image arrives as a multipart file
// field or a base64 string in a form/JSON field, both named "image".
func (h *UploadHandler) Upload(c *gin.Context) {
	input, err := h.extractInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid upload",
			"detail": err.Error(),
		})
		return
	}

	record, err := h.uploads.Process(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrMissingImage) || errors.Is(err, service.ErrAmbiguousImage) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "Invalid upload",
				"detail": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to process image",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// extractInput pulls the image out of the request. A multipart file is
// saved to the temp dir; base64 payloads pass through as-is.
func (h *UploadHandler) extractInput(c *gin.Context) (service.UploadInput, error) {
	var input service.UploadInput

	if file, err := c.FormFile("image"); err == nil && file != nil {
		name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(file.Filename))
		path := filepath.Join(h.tempDir, name)
		if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
			return input, fmt.Errorf("failed to prepare upload dir: %w", err)
		}
		if err := c.SaveUploadedFile(file, path); err != nil {
			return input, fmt.Errorf("failed to save uploaded file: %w", err)
		}
		input.FilePath = path
	}

	if strings.Contains(c.ContentType(), "application/json") {
		var body uploadBody
		if err := c.ShouldBindJSON(&body); err == nil && body.Image != "" {
			input.Base64 = body.Image
		}
	} else if b64 := c.PostForm("image"); b64 != "" {
		input.Base64 = b64
	}

	return input, nil
}
