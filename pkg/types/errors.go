package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures across the ledger core
type ErrorCode string

const (
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeDataNotFound       ErrorCode = "DATA_NOT_FOUND"
	ErrCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrCodeBlockchainError    ErrorCode = "BLOCKCHAIN_ERROR"
	ErrCodeNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrCodeEncryptionError    ErrorCode = "ENCRYPTION_ERROR"
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
)

// LedgerError represents a structured error in the ledger core
type LedgerError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error may be retried with backoff.
// Only transient transport failures qualify; ledger-side rejections are
// never retried automatically since re-submitting could double-anchor.
func (e *LedgerError) Retryable() bool {
	return e.Code == ErrCodeNetworkError
}

// NewInvalidRequestError creates a client-side validation error
func NewInvalidRequestError(message string, details map[string]interface{}) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	}
}

// NewDataNotFoundError creates a not-found error
func NewDataNotFoundError(message string) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeDataNotFound,
		Message: message,
	}
}

// NewPermissionDeniedError creates an authorization failure
func NewPermissionDeniedError(message string) *LedgerError {
	return &LedgerError{
		Code:    ErrCodePermissionDenied,
		Message: message,
	}
}

// NewBlockchainError creates a ledger-side rejection error
func NewBlockchainError(message string, cause error) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeBlockchainError,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a transient transport error
func NewNetworkError(message string, cause error) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeNetworkError,
		Message: message,
		Cause:   cause,
	}
}

// NewEncryptionError creates a fatal cryptographic configuration error
func NewEncryptionError(message string, cause error) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeEncryptionError,
		Message: message,
		Cause:   cause,
	}
}

// NewVerificationFailedError creates a terminal verification failure
func NewVerificationFailedError(message string, details map[string]interface{}) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeVerificationFailed,
		Message: message,
		Details: details,
	}
}

// NewTimeoutError creates a deadline-exceeded error
func NewTimeoutError(message string, cause error) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeTimeout,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the error code from err, or UNKNOWN
func CodeOf(err error) ErrorCode {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeUnknown
}

// IsRetryable reports whether err carries a retryable code
func IsRetryable(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Retryable()
	}
	return false
}
