package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrEmptyResponse       = errors.New("inference: empty response")
	ErrBlocked             = errors.New("inference: blocked by safety filter")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
)

// APIError is a non-2xx reply from an oracle's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string // provider status such as RESOURCE_EXHAUSTED, may be empty
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Status != "" {
		return fmt.Sprintf("inference [%s]: HTTP %d %s: %s", e.Provider, e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("inference [%s]: HTTP %d: %s", e.Provider, e.StatusCode, msg)
}

// Rejected reports whether the credentials were refused (401 or 403).
func (e *APIError) Rejected() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Temporary reports quota exhaustion (429) and server-side failures (5xx).
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		(e.StatusCode >= 500 && e.StatusCode < 600)
}

// Retryable reports whether repeating the same request could succeed.
// Cancellation, bad credentials and malformed replies are final; quota,
// server errors and network failures are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ProviderError attributes an error to the oracle that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError collects the failure of every oracle in a Chain, in order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "inference chain: no oracle tried"
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("inference chain: %d oracles failed, last: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap lets errors.Is and errors.As match any member failure.
func (e *ChainError) Unwrap() []error { return e.Errors }
