package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails returns a copy of the error carrying details.
// The shared sentinels below are never mutated.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Is matches AppErrors by code and message so copies made by WithDetails
// still compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Common errors
var (
	// 400 Bad Request
	ErrBadRequest      = New(http.StatusBadRequest, "malformed request")
	ErrInvalidInput    = New(http.StatusBadRequest, "invalid input")
	ErrInvalidSettings = New(http.StatusBadRequest, "invalid game settings")
	ErrInvalidRoomCode = New(http.StatusBadRequest, "invalid room code")

	// 401 Unauthorized
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized")
	ErrInvalidToken = New(http.StatusUnauthorized, "invalid token")
	ErrTokenExpired = New(http.StatusUnauthorized, "token expired")

	// 403 Forbidden
	ErrPermissionDenied = New(http.StatusForbidden, "permission denied")

	// 404 Not Found
	ErrNotFound       = New(http.StatusNotFound, "resource not found")
	ErrUserNotFound   = New(http.StatusNotFound, "user not found")
	ErrRoomNotFound   = New(http.StatusNotFound, "room not found")
	ErrSearchNotFound = New(http.StatusNotFound, "search not found")
	ErrNotRoomMember  = New(http.StatusNotFound, "user is not a member of this room")

	// 409 Conflict
	ErrConflict      = New(http.StatusConflict, "resource conflict")
	ErrSearchExists  = New(http.StatusConflict, "an active search already exists")
	ErrRoomCodeTaken = New(http.StatusConflict, "room code already in use")

	// 410 Gone
	ErrSearchExpired = New(http.StatusGone, "search expired")

	// 422 Unprocessable Entity
	ErrRoomFull = New(http.StatusUnprocessableEntity, "room is full")

	// 429 Too Many Requests
	ErrTooManyRequests = New(http.StatusTooManyRequests, "too many requests, try again later")

	// 500 Internal Server Error
	ErrInternal = New(http.StatusInternalServerError, "internal server error")
)

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// GetMessage returns the error message
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}
