package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Not-found conditions: surfaced as nil/empty results or 404, never a crash
	ErrTickerNotFound     = &Error{Code: "TICKER_NOT_FOUND", Message: "ticker not found"}
	ErrSignalNotFound     = &Error{Code: "SIGNAL_NOT_FOUND", Message: "signal not found"}
	ErrArticleNotFound    = &Error{Code: "ARTICLE_NOT_FOUND", Message: "article not found"}
	ErrSubscriberNotFound = &Error{Code: "SUBSCRIBER_NOT_FOUND", Message: "subscriber not found"}
	ErrDeliveryNotFound   = &Error{Code: "DELIVERY_NOT_FOUND", Message: "delivery not found"}
	ErrNoData             = &Error{Code: "NO_DATA", Message: "no data available"}

	// External collaborators
	ErrLLMFailed  = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
	ErrLLMTimeout = &Error{Code: "LLM_TIMEOUT", Message: "LLM request timeout"}

	// Signal generation
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}
	ErrUnknownSource    = &Error{Code: "UNKNOWN_SOURCE", Message: "unknown signal source"}

	// Boundary validation
	ErrValidation = &Error{Code: "VALIDATION_FAILED", Message: "invalid input"}

	// Webhook delivery
	ErrDeliveryFailed = &Error{Code: "DELIVERY_FAILED", Message: "webhook delivery failed"}

	// Storage
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API auth
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "invalid or missing API key"}
	ErrForbidden    = &Error{Code: "FORBIDDEN", Message: "account not active"}
	ErrRateLimited  = &Error{Code: "RATE_LIMITED", Message: "rate limit exceeded"}
)
