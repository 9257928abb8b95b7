package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dvh/internal/generate"
)

func ValidateHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		storage.mu.RLock()
		defer storage.mu.RUnlock()
		if storage.gen == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No model loaded"})
			return
		}
		issues := storage.SchemaLint()
		blocking := 0
		for _, it := range issues {
			if it.Blocking {
				blocking++
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": blocking == 0, "issues": issues})
	}
}

// DDLHandler generates create scripts, or drop scripts with ?drop=true.
// ?entity= may repeat or hold a comma-separated list.
func DDLHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := "ddl"
		if drop, _ := strconv.ParseBool(c.Query("drop")); drop {
			kind = "drop"
		}
		generateAndRespond(c, storage, kind)
	}
}

func DMLHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		generateAndRespond(c, storage, "dml")
	}
}

func generateAndRespond(c *gin.Context, storage *Storage, kind string) {
	requested := c.QueryArray("entity")
	if e := c.Param("entity"); e != "" {
		requested = append(requested, e)
	}

	storage.mu.RLock()
	names, missing := storage.normalizeAll(requested)
	storage.mu.RUnlock()
	if missing != "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found", "entity": missing})
		return
	}

	run, rep, err := storage.Generate(kind, names)
	if run == nil {
		if errors.Is(err, generate.ErrValidation) && len(rep) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      err.Error(),
				"violations": fromReport(rep, true),
			})
			return
		}
		abortWith(c, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	if strings.EqualFold(c.Query("format"), "sql") {
		var b strings.Builder
		for _, s := range run.Scripts {
			b.WriteString(s.SQL())
			b.WriteString("\n")
		}
		c.Header("X-Run-ID", run.ID)
		c.String(status, b.String())
		return
	}
	c.JSON(status, run)
}

func RunListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, storage.Runs())
	}
}

func RunGetHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := storage.Run(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}
