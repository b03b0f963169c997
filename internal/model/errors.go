package model

import (
	"errors"
	"fmt"
)

// Error codes for the store/engine error taxonomy
const (
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeConversationOver = "CONVERSATION_EXPIRED"
)

// AppError is a typed application error. Store and engine operations never
// swallow failures; they return an AppError the caller must handle or
// explicitly ignore.
type AppError struct {
	Code    string
	Message string
	Err     error
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

// NewStoreUnavailableError wraps a transient connectivity failure.
// Callers should keep optimistic local state and retry on reconnect.
func NewStoreUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeStoreUnavailable,
		Message: "store unavailable",
		Err:     err,
	}
}

// NewPermissionDeniedError marks an authorization failure. Not retried.
func NewPermissionDeniedError(message string) *AppError {
	return &AppError{
		Code:    CodePermissionDenied,
		Message: message,
	}
}

// NewValidationError marks a malformed payload, rejected before any store call
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidationError,
		Message: message,
	}
}

// NewNotFoundError marks a missing conversation/message/user
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

// NewConversationExpiredError marks a send into an expired group conversation
func NewConversationExpiredError(id interface{}) *AppError {
	return &AppError{
		Code:    CodeConversationOver,
		Message: fmt.Sprintf("conversation %v has expired", id),
	}
}

// ErrCode extracts the taxonomy code from an error chain, or "" if the error
// is not an AppError
func ErrCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
