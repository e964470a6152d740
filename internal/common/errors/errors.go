// Package errors provides the standardized error taxonomy for the
// publishing pipeline. Every error an adapter or collaborator raises is
// classified into one of these codes so the orchestrator can apply the
// correct retry policy.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Terminal codes. The attempt (or candidate) stops immediately.
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeAuth                 ErrorCode = "AUTH_ERROR"
	ErrCodeComplianceRejection  ErrorCode = "COMPLIANCE_REJECTION"
	ErrCodeTrademarkBlock       ErrorCode = "TRADEMARK_BLOCK"

	// Retryable codes. Re-attempted within the retry budget.
	ErrCodeTransient       ErrorCode = "TRANSIENT_ERROR"
	ErrCodeRateLimit       ErrorCode = "RATE_LIMIT_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Fatal. Losing audit history is a system-integrity fault, so a
	// ledger write failure aborts the whole run.
	ErrCodeLedgerWrite ErrorCode = "LEDGER_WRITE_ERROR"
)

// StandardError represents a structured pipeline error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable candidate validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Candidate failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthError creates a non-retryable credential error. Treated as a
// configuration fault requiring operator intervention.
func NewAuthError(platform, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuth,
		Message:   fmt.Sprintf("Authentication failed for %s", platform),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewComplianceRejection creates a terminal originality-match rejection.
func NewComplianceRejection(keyword, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeComplianceRejection,
		Message:   fmt.Sprintf("Potential copyright infringement detected for %q", keyword),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTrademarkBlock creates a terminal trademark-screen rejection.
func NewTrademarkBlock(keyword, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTrademarkBlock,
		Message:   fmt.Sprintf("Trademark conflict for %q", keyword),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientError creates a retryable network/server-side error.
func NewTransientError(platform string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransient,
		Message:   fmt.Sprintf("Transient error from %s", platform),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitError creates a retryable rate-limit error.
func NewRateLimitError(platform, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimit,
		Message:   fmt.Sprintf("Rate limited by %s", platform),
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalServiceError creates a retryable external collaborator error,
// distinct from a genuine compliance rejection.
func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerWriteError creates the fatal audit-write error.
func NewLedgerWriteError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerWrite,
		Message:   "Audit ledger append failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err (or any error it wraps) is a retryable
// StandardError. Unclassified errors are treated as retryable transient
// failures so a misbehaving adapter still burns its budget instead of
// silently terminating an attempt.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// CodeOf returns the error code of a wrapped StandardError, or
// ErrCodeTransient for unclassified errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeTransient
}

// IsFatal reports whether err must abort the whole pipeline run.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeLedgerWrite
}
