package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/crimson-sun/sentiment/internal/pool"
)

// Error codes returned in the response envelope.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternal        = "INTERNAL_ERROR"
	CodeUnavailable     = "UNAVAILABLE"
)

var (
	// ErrInvalidText is returned for a missing, empty or whitespace-only text.
	ErrInvalidText = errors.New("sentimentText must be a non-empty string")
	// ErrTextTooLong is returned when the text exceeds the configured limit.
	ErrTextTooLong = errors.New("sentimentText is too long")
)

// ErrorResponse is the HTTP rendering of an error.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// mapError maps prediction-path errors to HTTP responses. Internal details
// are not exposed for 5xx.
func mapError(err error) ErrorResponse {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrInvalidText):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Code: CodeInvalidRequest, Message: ErrInvalidText.Error()}
	case errors.Is(err, ErrTextTooLong), errors.As(err, &maxBytes):
		return ErrorResponse{StatusCode: http.StatusRequestEntityTooLarge, Code: CodePayloadTooLarge, Message: ErrTextTooLong.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, pool.ErrClosed):
		return ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: "service unavailable, retry later"}
	case errors.Is(err, pool.ErrModelNotFound):
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: "model not loaded"}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
	}
}

// handleError renders err and records it on the gin context for the access log.
func handleError(c *gin.Context, err error) ErrorResponse {
	resp := mapError(err)
	_ = c.Error(err)
	respondError(c, resp.StatusCode, resp.Code, resp.Message)
	return resp
}
