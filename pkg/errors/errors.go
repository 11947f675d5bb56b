package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeNotParticipant   = "NOT_PARTICIPANT"
	CodeNotOwner         = "NOT_OWNER"
	CodeSelfConversation = "SELF_CONVERSATION"
	CodeSelfRead         = "SELF_READ"
	CodeUpstream         = "UPSTREAM_DEPENDENCY"
	CodeRealtimeProtocol = "REALTIME_PROTOCOL_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeInternal         = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Validation names the offending field in Details.
func Validation(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
		Details: map[string]string{"field": field},
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func NotParticipant() *AppError {
	return &AppError{
		Code:    CodeNotParticipant,
		Message: "You are not a participant of this conversation",
		Status:  http.StatusForbidden,
	}
}

func NotOwner() *AppError {
	return &AppError{
		Code:    CodeNotOwner,
		Message: "You can only delete your own messages",
		Status:  http.StatusForbidden,
	}
}

func SelfConversation() *AppError {
	return &AppError{
		Code:    CodeSelfConversation,
		Message: "You cannot start a conversation with yourself",
		Status:  http.StatusBadRequest,
	}
}

func SelfRead() *AppError {
	return &AppError{
		Code:    CodeSelfRead,
		Message: "You cannot mark your own message as read",
		Status:  http.StatusBadRequest,
	}
}

func Upstream(dependency string, err error) *AppError {
	return &AppError{
		Code:    CodeUpstream,
		Message: fmt.Sprintf("%s is unavailable", dependency),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// RealtimeProtocol is only ever reported over the realtime channel.
func RealtimeProtocol(message string) *AppError {
	return &AppError{
		Code:    CodeRealtimeProtocol,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// As returns the AppError carried by err, wrapping anything else as internal.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
