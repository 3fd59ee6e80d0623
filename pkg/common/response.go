package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response is the user-visible envelope for every HTTP response this core's
// transport collaborator renders from an AppError or a result value:
// {success, error, message, details?, timestamp}.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SuccessResponse sends a successful response.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// SuccessResponseWithStatus sends a successful response with a custom status code.
func SuccessResponseWithStatus(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// ErrorResponse sends a plain-message error response.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success:   false,
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// AppErrorResponse renders an AppError using its tagged HTTP status.
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.Code, Response{
		Success:   false,
		Error:     err.ErrorCode,
		Message:   err.Message,
		Timestamp: time.Now().UTC(),
	})
}

// NoRouteHandler returns a gin.HandlerFunc for unregistered routes (404).
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ErrorResponse(c, http.StatusNotFound, "route not found")
	}
}
