package tss

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a TSS error
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryThreshold     ErrorCategory = "threshold"
	ErrorCategoryParticipant   ErrorCategory = "participant"
	ErrorCategoryCryptographic ErrorCategory = "cryptographic"
	ErrorCategorySharing       ErrorCategory = "sharing"
	ErrorCategoryKeyGeneration ErrorCategory = "key_generation"
	ErrorCategorySigning       ErrorCategory = "signing"
	ErrorCategoryInternal      ErrorCategory = "internal"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"      // Non-critical, operation can continue
	ErrorSeverityMedium   ErrorSeverity = "medium"   // Important, may affect functionality
	ErrorSeverityHigh     ErrorSeverity = "high"     // Critical, operation should stop
	ErrorSeverityCritical ErrorSeverity = "critical" // System-level failure
)

// TSSError represents a structured error in the threshold signing library.
// Context values are limited to indices, counts and stage names; secret
// material never goes into an error.
type TSSError struct {
	Category    ErrorCategory          `json:"category"`
	Severity    ErrorSeverity          `json:"severity"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Recoverable bool                   `json:"recoverable"`
}

// Error implements the error interface
func (e *TSSError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *TSSError) Unwrap() error {
	return e.Cause
}

// Is matches any TSSError carrying the same code, so catalog errors
// compare equal after WithContext/WithDetails/WithCause copies.
func (e *TSSError) Is(target error) bool {
	t, ok := target.(*TSSError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *TSSError) clone() *TSSError {
	newError := &TSSError{
		Category:    e.Category,
		Severity:    e.Severity,
		Code:        e.Code,
		Message:     e.Message,
		Details:     e.Details,
		Recoverable: e.Recoverable,
		Cause:       e.Cause,
		Context:     make(map[string]interface{}, len(e.Context)+1),
	}
	for k, v := range e.Context {
		newError.Context[k] = v
	}
	return newError
}

// WithContext adds context information to a copy of the error
func (e *TSSError) WithContext(key string, value interface{}) *TSSError {
	newError := e.clone()
	newError.Context[key] = value
	return newError
}

// WithDetails returns a copy of the error with a formatted detail message
func (e *TSSError) WithDetails(format string, args ...interface{}) *TSSError {
	newError := e.clone()
	newError.Details = fmt.Sprintf(format, args...)
	return newError
}

// WithCause sets the underlying cause on a copy of the error
func (e *TSSError) WithCause(cause error) *TSSError {
	newError := e.clone()
	newError.Cause = cause
	return newError
}

// IsRecoverable returns whether the error is recoverable
func (e *TSSError) IsRecoverable() bool {
	return e.Recoverable
}

// NewTSSError creates a new TSS error
func NewTSSError(category ErrorCategory, severity ErrorSeverity, code, message string) *TSSError {
	return &TSSError{
		Category:    category,
		Severity:    severity,
		Code:        code,
		Message:     message,
		Context:     make(map[string]interface{}),
		Recoverable: severity != ErrorSeverityCritical,
	}
}

// Validation Errors
var (
	ErrInvalidThreshold = NewTSSError(
		ErrorCategoryThreshold, ErrorSeverityHigh, "INVALID_THRESHOLD",
		"threshold value is invalid")

	ErrInvalidIndex = NewTSSError(
		ErrorCategoryParticipant, ErrorSeverityMedium, "INVALID_INDEX",
		"party index is out of range")

	ErrDuplicateParticipants = NewTSSError(
		ErrorCategoryParticipant, ErrorSeverityMedium, "DUPLICATE_PARTICIPANTS",
		"duplicate participants detected")

	ErrInvalidMessage = NewTSSError(
		ErrorCategoryValidation, ErrorSeverityMedium, "INVALID_MESSAGE",
		"protocol message is malformed")
)

// Configuration Errors
var (
	ErrInvalidCurve = NewTSSError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "INVALID_CURVE",
		"cryptographic curve is invalid or unsupported")

	ErrInvalidConfiguration = NewTSSError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "INVALID_CONFIGURATION",
		"configuration parameters are invalid")
)

// Secret Sharing Errors
var (
	ErrInsufficientShares = NewTSSError(
		ErrorCategorySharing, ErrorSeverityMedium, "INSUFFICIENT_SHARES",
		"fewer shares than the threshold")

	ErrInconsistentShares = NewTSSError(
		ErrorCategorySharing, ErrorSeverityHigh, "INCONSISTENT_SHARES",
		"shares do not lie on a single polynomial")

	ErrInvalidShare = NewTSSError(
		ErrorCategorySharing, ErrorSeverityMedium, "INVALID_SHARE",
		"share encoding is invalid")
)

// Key Generation Errors
var (
	ErrShareGenerationFailed = NewTSSError(
		ErrorCategoryKeyGeneration, ErrorSeverityHigh, "SHARE_GENERATION_FAILED",
		"failed to generate key shares")

	ErrShareVerificationFailed = NewTSSError(
		ErrorCategoryKeyGeneration, ErrorSeverityHigh, "SHARE_VERIFICATION_FAILED",
		"key share verification failed")
)

// Signing Errors
var (
	ErrInsufficientSigners = NewTSSError(
		ErrorCategorySigning, ErrorSeverityMedium, "INSUFFICIENT_SIGNERS",
		"insufficient signers for threshold signature")

	ErrNonceReuseDetected = NewTSSError(
		ErrorCategorySigning, ErrorSeverityCritical, "NONCE_REUSE_DETECTED",
		"signing session nonce was already used")

	ErrSignatureVerificationFailed = NewTSSError(
		ErrorCategorySigning, ErrorSeverityHigh, "SIGNATURE_VERIFICATION_FAILED",
		"signature verification failed")

	ErrInvalidSignature = NewTSSError(
		ErrorCategorySigning, ErrorSeverityHigh, "INVALID_SIGNATURE",
		"signature is invalid or malformed")
)

// Cryptographic Errors
var (
	ErrRandomnessGeneration = NewTSSError(
		ErrorCategoryCryptographic, ErrorSeverityCritical, "RANDOMNESS_GENERATION_FAILED",
		"failed to generate secure randomness")
)

// Internal Errors
var (
	ErrInvalidState = NewTSSError(
		ErrorCategoryInternal, ErrorSeverityHigh, "INVALID_STATE",
		"component is in invalid state")
)

// WrapError wraps an existing error with TSS error context
func WrapError(err error, category ErrorCategory, severity ErrorSeverity, code, message string) *TSSError {
	return NewTSSError(category, severity, code, message).WithCause(err)
}

// IsErrorCategory checks if an error belongs to a specific category
func IsErrorCategory(err error, category ErrorCategory) bool {
	if tssErr, ok := asTSSError(err); ok {
		return tssErr.Category == category
	}
	return false
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	if tssErr, ok := asTSSError(err); ok {
		return tssErr.IsRecoverable()
	}
	return true // Non-TSS errors are assumed recoverable
}

// ErrorCode returns the catalog code of err, or "UNKNOWN".
func ErrorCode(err error) string {
	if tssErr, ok := asTSSError(err); ok {
		return tssErr.Code
	}
	return "UNKNOWN"
}

func asTSSError(err error) (*TSSError, bool) {
	var tssErr *TSSError
	ok := errors.As(err, &tssErr)
	return tssErr, ok
}
