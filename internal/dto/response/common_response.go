package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
)

// RequestIDKey is the gin context key the RequestID middleware writes to
const RequestIDKey = "request_id"

// Response is the envelope every REST endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo mirrors an AppError. RequestID lets a client quote the failing
// call when reporting it.
type ErrorInfo struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Accepted answers 202 for work whose result arrives on a notification channel
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Success: true, Data: data})
}

// Error renders err as its AppError status and message. Anything that is
// not an AppError becomes a bare 500 so internals never leak.
func Error(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.ErrInternal
	}
	abort(c, appErr.Code, appErr.Message, appErr.Details)
}

// BadRequest answers 400 for bodies or parameters that fail to bind
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message, nil)
}

// ValidationError answers 400 with per-field validation failures
func ValidationError(c *gin.Context, details interface{}) {
	abort(c, http.StatusBadRequest, "validation failed", details)
}

func abort(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      status,
			Message:   message,
			Details:   details,
			RequestID: c.GetString(RequestIDKey),
		},
	})
}

// HealthResponse is served by /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}
