package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Reason categorizes why a provider request failed. The orchestrator
// uses it to choose between retrying, backing off longer, or failing
// the entity immediately.
type Reason string

const (
	// ReasonRateLimit indicates throttling (HTTP 429). Retryable with
	// a longer backoff schedule.
	ReasonRateLimit Reason = "rate_limit"

	// ReasonTimeout indicates the per-call deadline elapsed.
	ReasonTimeout Reason = "timeout"

	// ReasonServerError indicates provider-side failure (HTTP 5xx).
	ReasonServerError Reason = "server_error"

	// ReasonAuth indicates credential failure (HTTP 401, 403).
	ReasonAuth Reason = "auth"

	// ReasonBilling indicates quota/payment issues (HTTP 402).
	ReasonBilling Reason = "billing"

	// ReasonInvalidRequest indicates a client-side issue (HTTP 400).
	ReasonInvalidRequest Reason = "invalid_request"

	// ReasonUnknown indicates an unclassified error.
	ReasonUnknown Reason = "unknown"
)

// Retryable reports whether a retry of the same request may succeed.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonRateLimit, ReasonTimeout, ReasonServerError, ReasonUnknown:
		return true
	default:
		return false
	}
}

// Error is a structured error from an LLM provider call.
type Error struct {
	// Reason categorizes the failure for retry decisions.
	Reason Reason

	// Provider names the backend ("openai", "anthropic", "gemini").
	Provider string

	// Model is the model that was requested.
	Model string

	// Status is the HTTP status code, if known.
	Status int

	// Message is the human-readable error text.
	Message string

	// Cause is the underlying error.
	Cause error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError wraps a raw SDK error, classifying it by message content.
func NewError(providerName, model string, cause error) *Error {
	err := &Error{
		Provider: providerName,
		Model:    model,
		Cause:    cause,
		Reason:   ReasonUnknown,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = classifyMessage(cause.Error())
	}
	return err
}

// WithStatus sets the HTTP status and reclassifies from it.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	if r := classifyStatus(status); r != ReasonUnknown {
		e.Reason = r
	}
	return e
}

// classifyStatus maps an HTTP status code onto a failure reason.
func classifyStatus(status int) Reason {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusPaymentRequired:
		return ReasonBilling
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity:
		return ReasonInvalidRequest
	case status == http.StatusRequestTimeout:
		return ReasonTimeout
	case status >= 500:
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// classifyMessage falls back to matching well-known substrings when no
// status code is available (network errors, SDK-wrapped errors).
func classifyMessage(msg string) Reason {
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429"):
		return ReasonRateLimit
	case strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "context deadline"):
		return ReasonTimeout
	case strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "authentication"):
		return ReasonAuth
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "billing") ||
		strings.Contains(msg, "insufficient"):
		return ReasonBilling
	case strings.Contains(msg, "internal server") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503"):
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// ReasonOf extracts the failure reason from an error chain, returning
// ReasonUnknown for errors that did not originate in a provider call.
func ReasonOf(err error) Reason {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	if err != nil {
		return classifyMessage(err.Error())
	}
	return ReasonUnknown
}

// IsRetryable reports whether the orchestrator should retry after err.
func IsRetryable(err error) bool {
	return ReasonOf(err).Retryable()
}

// IsRateLimited reports whether err was a throttling response, which
// warrants the longer backoff schedule.
func IsRateLimited(err error) bool {
	return ReasonOf(err) == ReasonRateLimit
}
