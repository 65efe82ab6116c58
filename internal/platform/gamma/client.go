// Package gamma implements a client for the Gamma Generate API (beta).
// A generation is created with one POST, then polled until Gamma
// finishes rendering and exporting the document. Rendering routinely
// takes minutes, so polling tolerates transient rate limiting and
// server errors and gives up only at the configured deadline.
package gamma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Gamma Generate API endpoint.
	DefaultBaseURL = "https://public-api.gamma.app/v0.2"

	generationsPath = "/generations"

	// DefaultPollInterval is how often a pending generation is polled.
	DefaultPollInterval = 5 * time.Second

	// DefaultPollTimeout bounds the whole poll loop. Gamma renders
	// large documents in the 5-10 minute range; past fifteen the
	// generation is considered stuck.
	DefaultPollTimeout = 15 * time.Minute

	requestTimeout = 30 * time.Second

	// maxResponseBytes bounds how much of an API response is read.
	maxResponseBytes = 1 << 20
)

// ExportFormat selects the exported file type.
type ExportFormat string

// Supported export formats.
const (
	FormatPDF  ExportFormat = "pdf"
	FormatPPTX ExportFormat = "pptx"
)

// Config holds the settings for a Client.
type Config struct {
	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string

	// APIKey is sent as the X-API-KEY header. Required.
	APIKey string

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	// PollTimeout overrides DefaultPollTimeout.
	PollTimeout time.Duration

	// DefaultCardCount is the numCards sent when a request does not
	// set one. Zero leaves the card count to Gamma.
	DefaultCardCount int

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	// Logger is used for request/response logging. Defaults to
	// slog.Default. The API key is never logged.
	Logger *slog.Logger
}

// Client is a Gamma API client. It is safe for concurrent use.
type Client struct {
	baseURL          string
	apiKey           string
	pollInterval     time.Duration
	pollTimeout      time.Duration
	defaultCardCount int
	http             *http.Client
	logger           *slog.Logger
}

// NewClient creates a Client from the given config.
// Returns an error if no API key is configured.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gamma: API key cannot be empty")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:          baseURL,
		apiKey:           cfg.APIKey,
		pollInterval:     pollInterval,
		pollTimeout:      pollTimeout,
		defaultCardCount: cfg.DefaultCardCount,
		http:             httpClient,
		logger:           logger.With(slog.String("component", "gamma_client")),
	}, nil
}

// GenerationRequest describes one document to generate.
type GenerationRequest struct {
	// InputText is the source text for the document. Required.
	InputText string

	// ExportAs selects the exported file type. Defaults to FormatPDF.
	ExportAs ExportFormat

	// Language of the generated text. Defaults to "ru".
	Language string

	// ThemeName selects a Gamma theme. Optional.
	ThemeName string

	// NumCards is the slide/page count. Zero falls back to the
	// client's default card count; if that is also zero the field
	// is omitted and Gamma decides.
	NumCards int

	// AdditionalInstructions are free-form generation hints. Optional.
	AdditionalInstructions string
}

// Credits reports Gamma credit accounting for one generation.
type Credits struct {
	Deducted  int `json:"deducted"`
	Remaining int `json:"remaining"`
}

// GenerationResult is a finished generation.
type GenerationResult struct {
	GenerationID string       `json:"generation_id"`
	Format       ExportFormat `json:"format"`

	// ExportURL is the time-limited download URL for the exported file.
	ExportURL string `json:"export_url"`

	// GammaURL opens the generated document in the Gamma editor.
	GammaURL string `json:"gamma_url,omitempty"`

	Credits Credits `json:"credits"`
}

// createPayload is the POST /generations request body.
type createPayload struct {
	InputText              string       `json:"inputText"`
	TextMode               string       `json:"textMode"`
	Format                 string       `json:"format"`
	TextOptions            textOptions  `json:"textOptions"`
	CardSplit              string       `json:"cardSplit"`
	ExportAs               ExportFormat `json:"exportAs"`
	ThemeName              string       `json:"themeName,omitempty"`
	NumCards               int          `json:"numCards,omitempty"`
	AdditionalInstructions string       `json:"additionalInstructions,omitempty"`
}

type textOptions struct {
	Language string `json:"language"`
}

// createResponse is the POST /generations response body.
type createResponse struct {
	GenerationID string `json:"generationId"`
	ID           string `json:"id"`
}

// statusResponse is the GET /generations/{id} response body.
type statusResponse struct {
	GenerationID string            `json:"generationId"`
	Status       string            `json:"status"`
	GammaURL     string            `json:"gammaUrl"`
	ExportURL    string            `json:"exportUrl"`
	URLs         map[string]string `json:"urls"`
	Credits      Credits           `json:"credits"`
}

// exportURL returns the download URL for the requested format, trying
// the dedicated field first and the per-format map second.
func (r *statusResponse) exportURL(format ExportFormat) string {
	if r.ExportURL != "" {
		return r.ExportURL
	}
	return r.URLs[string(format)]
}

// Generate creates a generation and polls it to completion.
// It blocks until the generation finishes, fails, the poll deadline
// passes, or ctx is cancelled.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if strings.TrimSpace(req.InputText) == "" {
		return nil, errors.New("gamma: input text cannot be empty")
	}

	format := req.ExportAs
	if format == "" {
		format = FormatPDF
	}

	generationID, err := c.createGeneration(ctx, req, format)
	if err != nil {
		return nil, err
	}

	status, err := c.pollGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		GenerationID: generationID,
		Format:       format,
		ExportURL:    status.exportURL(format),
		GammaURL:     status.GammaURL,
		Credits:      status.Credits,
	}

	if result.ExportURL == "" {
		return nil, fmt.Errorf("gamma: generation %s completed without an export URL", generationID)
	}

	return result, nil
}

// createGeneration POSTs the generation and returns its ID.
func (c *Client) createGeneration(
	ctx context.Context,
	req GenerationRequest,
	format ExportFormat,
) (string, error) {
	language := req.Language
	if language == "" {
		language = "ru"
	}

	numCards := req.NumCards
	if numCards <= 0 {
		numCards = c.defaultCardCount
	}

	payload := createPayload{
		InputText:              req.InputText,
		TextMode:               "preserve",
		Format:                 "document",
		TextOptions:            textOptions{Language: language},
		CardSplit:              "inputTextBreaks",
		ExportAs:               format,
		ThemeName:              req.ThemeName,
		AdditionalInstructions: req.AdditionalInstructions,
	}
	if numCards > 0 {
		payload.NumCards = numCards
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode generation payload: %w", err)
	}

	c.logger.Info("creating gamma generation",
		"format", format,
		"input_bytes", len(req.InputText),
		"num_cards", payload.NumCards)

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+generationsPath, body)
	if err != nil {
		return "", err
	}

	var created createResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	generationID := created.GenerationID
	if generationID == "" {
		generationID = created.ID
	}
	if generationID == "" {
		return "", errors.New("gamma: generationId missing in response")
	}

	c.logger.Info("gamma generation created", "generation_id", generationID)
	return generationID, nil
}

// pollGeneration polls until the generation reaches a terminal status.
// Rate limits and server errors during polling are waited out; only
// auth failures, generation failure and the deadline end the loop.
func (c *Client) pollGeneration(ctx context.Context, generationID string) (*statusResponse, error) {
	deadline := time.Now().Add(c.pollTimeout)
	url := c.baseURL + generationsPath + "/" + generationID

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: generation %s after %s",
				ErrGenerationTimeout, generationID, c.pollTimeout)
		}

		body, err := c.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Temporary() {
				c.logger.Warn("transient error while polling gamma, will retry",
					"generation_id", generationID,
					"status", statusErr.StatusCode)
				if err := sleepCtx(ctx, c.pollInterval); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("failed to decode generation status: %w", err)
		}

		c.logger.Debug("gamma generation status",
			"generation_id", generationID,
			"status", status.Status)

		switch status.Status {
		case "completed":
			return &status, nil
		case "failed":
			return nil, &GenerationError{GenerationID: generationID, Status: status.Status}
		}

		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
}

// do performs one request with auth headers and maps error statuses.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build gamma request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gamma: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gamma response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 300),
		}
	}

	return respBody, nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
