package gemini

import "errors"

// Common errors returned by the enricher.
var (
	// ErrInvalidConfig is returned when the enricher configuration is
	// incomplete.
	ErrInvalidConfig = errors.New("invalid enricher configuration")

	// ErrContentBlocked is returned when Gemini blocks the prompt or
	// the response on safety grounds. Permanent for a given input.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrInvalidResponse is returned when the API answers with no
	// usable text.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrTransientFailure is returned when retries are exhausted on
	// errors that looked temporary.
	ErrTransientFailure = errors.New("transient error while calling language model")
)
