package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors in this package unwrap to one of these so that
// callers can branch with errors.Is.
var (
	ErrUnknownValue              = errors.New("unknown value")
	ErrSuppressionBudgetExceeded = errors.New("suppression budget exceeded")
	ErrNoFeasibleTransformation  = errors.New("no feasible transformation")
	ErrInvalidConfiguration      = errors.New("invalid configuration")
	ErrInvalidInputData          = errors.New("invalid input data")
	ErrSearchCancelled           = errors.New("search cancelled")
	ErrStorageWriteFailed        = errors.New("storage write failed")
	ErrExportFailed              = errors.New("export failed")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeSearch        ErrorType = "search"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeExport        ErrorType = "export"
	ErrorTypeInternal      ErrorType = "internal"
)

// Error codes
const (
	CodeInvalidInput          = "INVALID_INPUT"
	CodeInvalidSchema         = "INVALID_SCHEMA"
	CodeInvalidHierarchy      = "INVALID_HIERARCHY"
	CodeNonMonotonicHierarchy = "NON_MONOTONIC_HIERARCHY"
	CodeMissingHierarchy      = "MISSING_HIERARCHY"
	CodeInvalidPrivacyModel   = "INVALID_PRIVACY_MODEL"
	CodeInvalidSuppression    = "INVALID_SUPPRESSION_LIMIT"
	CodeInvalidMetric         = "INVALID_METRIC"
	CodeInvalidEstimator      = "INVALID_ESTIMATOR"
	CodeSearchCancelled       = "SEARCH_CANCELLED"
	CodeConnectionFailed      = "CONNECTION_FAILED"
	CodeWriteFailed           = "WRITE_FAILED"
	CodeUploadFailed          = "UPLOAD_FAILED"
	CodeExportFailed          = "EXPORT_FAILED"
	CodeInternalError         = "INTERNAL_ERROR"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Details)
	}
	if e.Cause != nil && !isSentinel(e.Cause) {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewValidationError creates an input validation error
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Cause:   ErrInvalidInputData,
	}
}

// NewConfigurationError creates an error that unwraps to ErrInvalidConfiguration
func NewConfigurationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Code:    code,
		Message: message,
		Cause:   ErrInvalidConfiguration,
	}
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeStorage,
		Code:    code,
		Message: message,
		Cause:   ErrStorageWriteFailed,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

func isSentinel(err error) bool {
	switch err {
	case ErrUnknownValue, ErrSuppressionBudgetExceeded, ErrNoFeasibleTransformation,
		ErrInvalidConfiguration, ErrInvalidInputData, ErrSearchCancelled,
		ErrStorageWriteFailed, ErrExportFailed:
		return true
	}
	return false
}

// ValidationErrorDetail represents detailed validation error information
type ValidationErrorDetail struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

// ValidationErrors collects every configuration problem found in one pass
type ValidationErrors struct {
	Message string                  `json:"message"`
	Errors  []ValidationErrorDetail `json:"errors"`
}

// Error implements the error interface for ValidationErrors
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ve.Message
	}
	parts := make([]string, 0, len(ve.Errors))
	for _, d := range ve.Errors {
		if d.Value != nil {
			parts = append(parts, fmt.Sprintf("%s: %s (got %v)", d.Field, d.Message, d.Value))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", d.Field, d.Message))
		}
	}
	return fmt.Sprintf("%s: %s", ve.Message, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrInvalidConfiguration) match
func (ve *ValidationErrors) Unwrap() error {
	return ErrInvalidConfiguration
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, code, message string, value interface{}) {
	ve.Errors = append(ve.Errors, ValidationErrorDetail{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// HasErrors checks if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ErrOrNil returns ve as an error when it holds at least one detail
func (ve *ValidationErrors) ErrOrNil() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Message: "invalid configuration",
		Errors:  make([]ValidationErrorDetail, 0),
	}
}
