// Package errors provides a structured error system for the practice cache with error codes, categories, and context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for practice cache operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Storage Errors
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeStorageBlocked     ErrorCode = "STORAGE_BLOCKED"
	ErrCodeStorageCorrupted   ErrorCode = "STORAGE_CORRUPTED"
	ErrCodeConnectionTimeout  ErrorCode = "CONNECTION_TIMEOUT"

	// Exercise Errors
	ErrCodeUnsupportedExerciseType ErrorCode = "UNSUPPORTED_EXERCISE_TYPE"
	ErrCodeGenerationFailed        ErrorCode = "GENERATION_FAILED"

	// Operation Errors
	ErrCodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	ErrCodeComponentStopped ErrorCode = "COMPONENT_STOPPED"

	// Internal System Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryExercise      ErrorCategory = "exercise"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// PracticeError represents a structured error with context and metadata.
type PracticeError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`
}

// Error implements the error interface.
func (e *PracticeError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *PracticeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *PracticeError) Is(target error) bool {
	if practiceErr, ok := target.(*PracticeError); ok {
		return e.Code == practiceErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *PracticeError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("PracticeError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new practice error with default values.
func NewError(code ErrorCode, message string) *PracticeError {
	return &PracticeError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
	}
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "STORAGE_") || strings.HasPrefix(codeStr, "CONNECTION_"):
		return CategoryStorage
	case code == ErrCodeUnsupportedExerciseType || code == ErrCodeGenerationFailed:
		return CategoryExercise
	case code == ErrCodeInvalidArgument || code == ErrCodeComponentStopped:
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeConnectionTimeout: true,
		ErrCodeStorageBlocked:    true,
		ErrCodeInternalError:     true,
	}
	return retryableCodes[code]
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeInvalidConfig:           true,
		ErrCodeConfigValidation:        true,
		ErrCodeUnsupportedExerciseType: true,
		ErrCodeGenerationFailed:        true,
		ErrCodeInvalidArgument:         true,
	}
	return userFacingCodes[code]
}

// WithContext adds contextual information to an error
func (e *PracticeError) WithContext(key, value string) *PracticeError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *PracticeError) WithDetail(key string, value interface{}) *PracticeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *PracticeError) WithComponent(component string) *PracticeError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *PracticeError) WithOperation(operation string) *PracticeError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *PracticeError) WithCause(cause error) *PracticeError {
	e.Cause = cause
	return e
}

// UserFacingMessage returns a simplified message suitable for the error state of the UI.
func (e *PracticeError) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred. Please try again."
	}

	messages := map[ErrorCode]string{
		ErrCodeUnsupportedExerciseType: "This exercise type is not available",
		ErrCodeGenerationFailed:        "Could not prepare the exercise",
		ErrCodeInvalidConfig:           "Invalid configuration",
		ErrCodeConfigValidation:        "Invalid configuration",
		ErrCodeInvalidArgument:         "Invalid request",
	}

	if msg, exists := messages[e.Code]; exists {
		return msg
	}
	return e.Message
}

// StorageUnavailable builds the error returned when the persistent tier cannot serve a request.
func StorageUnavailable(operation string, cause error) *PracticeError {
	return NewError(ErrCodeStorageUnavailable, "persistent storage unavailable").
		WithComponent("storage").
		WithOperation(operation).
		WithCause(cause)
}

// CodeOf returns the code of the first PracticeError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var practiceErr *PracticeError
	if stderrors.As(err, &practiceErr) {
		return practiceErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &PracticeError{Code: code})
}
