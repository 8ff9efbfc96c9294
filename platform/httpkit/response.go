// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"github.com/mfeltenmark/freelance-crm/platform/apperr"

	"github.com/gin-gonic/gin"
)

const msgInternal = "Internal server error"

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// HandleError maps domain errors to HTTP responses.
// Client errors carry their message and details. Internal and untyped errors
// become 500 with the underlying error text in "message" for operators.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	_ = c.Error(err)

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		status := domainErr.HTTPStatus()
		if status < http.StatusInternalServerError {
			c.JSON(status, ErrorResponse{
				Error:   domainErr.Message,
				Details: domainErr.Details,
			})
			return true
		}
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   msgInternal,
		Message: err.Error(),
	})
	return true
}
