package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crimson-sun/sentiment/internal/server/middleware"
)

// Response is the envelope for error responses.
type Response struct {
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *MetaInfo  `json:"meta"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents response metadata
type MetaInfo struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

func requestID(c *gin.Context) string {
	id := c.GetString(middleware.RequestIDKey)
	if id == "" {
		id = uuid.New().String()
		c.Set(middleware.RequestIDKey, id)
	}
	return id
}

func newMeta(c *gin.Context) *MetaInfo {
	return &MetaInfo{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID(c),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		Meta: newMeta(c),
	})
}
