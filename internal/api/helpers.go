package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"dvh/internal/dsl"
	"dvh/internal/generate"
	"dvh/internal/templates"
)

func errorStrings(err error) []string {
	errs := multierr.Errors(err)
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

// statusFor maps generation errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generate.ErrNotPrepared):
		return http.StatusServiceUnavailable
	case errors.Is(err, generate.ErrValidation),
		errors.Is(err, templates.ErrTemplateNotFound),
		errors.Is(err, dsl.ErrDefinition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrLoad):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "details": errorStrings(err)})
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
