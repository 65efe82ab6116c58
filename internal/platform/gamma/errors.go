package gamma

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the client.
var (
	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("gamma: unauthorized")

	// ErrForbidden indicates the key is valid but the plan does not
	// allow the request.
	ErrForbidden = errors.New("gamma: forbidden")

	// ErrGenerationTimeout indicates polling exceeded the configured
	// deadline before the generation reached a terminal status.
	ErrGenerationTimeout = errors.New("gamma: generation polling timed out")
)

// StatusError reports an unexpected HTTP status from the Gamma API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gamma: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gamma: unexpected status %d", e.StatusCode)
}

// Temporary reports whether the error is likely to clear on retry.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}

// GenerationError reports a generation that reached a terminal failure
// status on the Gamma side.
type GenerationError struct {
	GenerationID string
	Status       string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("gamma: generation %s ended with status %q", e.GenerationID, e.Status)
}
