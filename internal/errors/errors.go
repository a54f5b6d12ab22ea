// Package errors provides the typed failures surfaced by the market-data layer.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Standard sentinel errors
var (
	ErrConfiguration   = errors.New("invalid configuration")
	ErrSessionExpired  = errors.New("session expired")
	ErrNetwork         = errors.New("network failure")
	ErrTimeout         = errors.New("operation timed out")
	ErrHTTP            = errors.New("provider returned an error status")
	ErrSchema          = errors.New("response does not match schema")
	ErrUnsupported     = errors.New("operation not supported by provider")
	ErrRateLimited     = errors.New("rate limited")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrInputValidation = errors.New("input validation failed")
)

// ConfigurationError reports missing or invalid credentials and settings.
// It is fatal and never retried.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// NetworkError reports a transport failure before a response was received.
// Dial is set when the connection was never established, so the request
// provably did not reach the provider.
type NetworkError struct {
	Method string
	URL    string
	Dial   bool
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// NewNetworkError creates a new NetworkError.
func NewNetworkError(method, url string, dial bool, err error) *NetworkError {
	return &NetworkError{Method: method, URL: url, Dial: dial, Err: err}
}

// TimeoutError reports a call that exceeded its per-request deadline.
type TimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s %s", e.Timeout, e.Method, e.URL)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(method, url string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Method: method, URL: url, Timeout: timeout}
}

// HTTPError reports a non-2xx provider response.
type HTTPError struct {
	Status    int
	ErrorType string // provider error class, e.g. Kite's "TokenException"
	Message   string
	Body      string
	// RetryAfter carries the provider's Retry-After hint on 429 responses.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if e.ErrorType != "" {
		return fmt.Sprintf("http error [%d %s]: %s", e.Status, e.ErrorType, msg)
	}
	return fmt.Sprintf("http error [%d]: %s", e.Status, msg)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrHTTP:
		return true
	case ErrSessionExpired:
		return e.ErrorType == "TokenException"
	}
	return false
}

// IsClientError reports a 4xx status.
func (e *HTTPError) IsClientError() bool { return e.Status >= 400 && e.Status < 500 }

// IsServerError reports a 5xx status.
func (e *HTTPError) IsServerError() bool { return e.Status >= 500 }

// IsRateLimit reports HTTP 429.
func (e *HTTPError) IsRateLimit() bool { return e.Status == 429 }

// NewHTTPError creates a new HTTPError.
func NewHTTPError(status int, errorType, message, body string) *HTTPError {
	return &HTTPError{Status: status, ErrorType: errorType, Message: message, Body: body}
}

// SchemaError reports a response the normalizer could not map.
type SchemaError struct {
	Entity string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema error [%s]: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("schema error [%s.%s]: %s", e.Entity, e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// NewSchemaError creates a new SchemaError.
func NewSchemaError(entity, field, reason string) *SchemaError {
	return &SchemaError{Entity: entity, Field: field, Reason: reason}
}

// UnsupportedOperationError reports a capability the provider does not offer.
type UnsupportedOperationError struct {
	Provider  string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s does not implement %s", e.Provider, e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupported }

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(provider, operation string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Provider: provider, Operation: operation}
}

// RateLimitedError is returned in non-blocking mode when a category window is full.
type RateLimitedError struct {
	Category   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited [%s]: retry after %s", e.Category, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// NewRateLimitedError creates a new RateLimitedError.
func NewRateLimitedError(category string, retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{Category: category, RetryAfter: retryAfter}
}

// ValidationError represents a validation error on caller input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInputValidation }

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Kind returns the taxonomy name of err, used by consumers that report the
// failure class alongside the message.
func Kind(err error) string {
	var (
		cfgErr    *ConfigurationError
		netErr    *NetworkError
		toErr     *TimeoutError
		httpErr   *HTTPError
		schemaErr *SchemaError
		unsupErr  *UnsupportedOperationError
		rlErr     *RateLimitedError
		valErr    *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "ConfigurationError"
	case errors.As(err, &rlErr):
		return "RateLimitedError"
	case errors.As(err, &toErr):
		return "TimeoutError"
	case errors.As(err, &netErr):
		return "NetworkError"
	case errors.As(err, &httpErr):
		return "HTTPError"
	case errors.As(err, &schemaErr):
		return "SchemaError"
	case errors.As(err, &unsupErr):
		return "UnsupportedOperationError"
	case errors.As(err, &valErr):
		return "ValidationError"
	}
	return "Error"
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
