package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON error envelope shared by middleware and handlers.
// Message is either a string or a list of validation messages.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error,omitempty"`
	Path       string `json:"path"`
	Timestamp  string `json:"timestamp"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewErrorBody fills the envelope for the current request.
func NewErrorBody(c *gin.Context, status int, message any) ErrorBody {
	return ErrorBody{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
		Path:       c.Request.URL.Path,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		TraceID:    GetTraceID(c),
	}
}

// AbortWithError writes the envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, message any) {
	c.AbortWithStatusJSON(status, NewErrorBody(c, status, message))
}
