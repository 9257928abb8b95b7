package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type reloadReq struct {
	ModelPath     string `json:"model_path"`     // file or directory
	TemplatesPath string `json:"templates_path"` // file or directory
}

// AdminReloadHandler re-reads the model and templates. A model with blocking
// issues is rejected and the current one stays live.
func AdminReloadHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		storage.mu.RLock()
		modelPath, templatesPath := storage.ModelPath, storage.TemplatesPath
		storage.mu.RUnlock()
		if p := strings.TrimSpace(req.ModelPath); p != "" {
			modelPath = p
		}
		if p := strings.TrimSpace(req.TemplatesPath); p != "" {
			templatesPath = p
		}

		rep, err := storage.Load(modelPath, templatesPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "model has blocking issues",
				"details":   err.Error(),
				"issues":    fromReport(rep, true),
				"hint":      "fix the model and retry",
				"model":     modelPath,
				"templates": templatesPath,
			})
			return
		}

		storage.mu.RLock()
		entities, tmpls := len(storage.gen.Model().Entities), storage.gen.Catalog().Len()
		storage.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"model":     modelPath,
			"templates": templatesPath,
			"entities":  entities,
			"count":     tmpls,
		})
	}
}
