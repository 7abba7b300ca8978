package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/sparkq/internal/models"
)

// writeError maps a classified error onto an HTTP response. Conflict and
// precondition both map to 409; the body's "kind" field lets the runner
// tell a claim race (skip and re-poll) from a rejected transition.
func (s *Server) writeError(c *gin.Context, err error) {
	ce := models.AsClassified(err)

	status := http.StatusInternalServerError
	switch ce.Kind {
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindValidation:
		status = http.StatusBadRequest
	case models.KindPrecondition, models.KindConflict:
		status = http.StatusConflict
	case models.KindTransient:
		status = http.StatusServiceUnavailable
	case models.KindInternal:
		status = http.StatusInternalServerError
	}

	if ce.Kind == models.KindInternal {
		attrs := append([]any{"error", err}, ce.SlogAttrs()...)
		s.logger.Error("request failed", attrs...)
	}

	body := gin.H{
		"error": ce.Message,
		"kind":  ce.ErrorCode(),
	}
	if ctx := ce.Context(); len(ctx) > 0 {
		body["context"] = ctx
	}
	c.JSON(status, body)
}
