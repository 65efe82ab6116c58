package ofdata

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the client.
var (
	// ErrNotFound indicates the registry has no record for the query.
	// OFData signals both unknown numbers and malformed queries with
	// a 409 response.
	ErrNotFound = errors.New("ofdata: record not found")

	// ErrAccessDenied indicates the API key is invalid or the current
	// tariff does not cover the requested endpoint.
	ErrAccessDenied = errors.New("ofdata: access denied for current key or tariff")
)

// StatusError reports an unexpected HTTP status from the OFData API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ofdata: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ofdata: unexpected status %d", e.StatusCode)
}

// Temporary reports whether the error is likely to clear on retry.
// Server-side failures and rate limiting are temporary; anything else
// needs a changed request or account.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}

// APIError reports a well-formed 200 response whose meta envelope
// carries a non-ok status.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ofdata: api status %q: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ofdata: api status %q", e.Status)
}
