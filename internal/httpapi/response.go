package httpapi

import (
	"errors"
	"net/http"
	"time"

	"marketgateway/internal/apperr"

	"github.com/gin-gonic/gin"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// envelope is the uniform response body.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Details   string `json:"details,omitempty"` // non-production only
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data, Timestamp: now()})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: true, Message: message, Timestamp: now()})
}

// respondError maps err onto its HTTP status and aborts the chain.
func (s *server) respondError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err, "Internal server error")
	}

	body := envelope{
		Success:   false,
		Error:     string(e.Kind),
		Message:   e.Message,
		Timestamp: now(),
	}
	if !s.production && e.Cause != nil {
		body.Details = e.Cause.Error()
	}

	status := e.Kind.Status()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", errorFields(c, e)...)
	}
	c.AbortWithStatusJSON(status, body)
}

// bindError converts a gin binding failure into a ValidationError.
func bindError(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Wrap(apperr.KindValidation, err, "invalid request body")
}
