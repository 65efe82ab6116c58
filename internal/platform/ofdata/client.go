// Package ofdata implements a client for the OFData business registry
// API (api.ofdata.ru). It covers the two lookups the service exposes:
// legal entities by INN and individual entrepreneurs by INN. Pacing and
// retries are the queue's responsibility; the client performs a single
// attempt and classifies failures so callers can tell transient
// provider trouble from permanent errors.
package ofdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production OFData endpoint.
	DefaultBaseURL = "https://api.ofdata.ru"

	companyPath      = "/v2/company"
	entrepreneurPath = "/v2/entrepreneur"

	defaultTimeout = 15 * time.Second
	userAgent      = "bizscan-api/1.0"

	// maxResponseBytes bounds how much of a provider response is read.
	// Company payloads run to a few hundred kilobytes; anything past
	// this is a provider bug, not data.
	maxResponseBytes = 4 << 20
)

// Lookup kinds, used in cache keys and usage events.
const (
	KindCompany      = "company"
	KindEntrepreneur = "entrepreneur"
)

// Config holds the settings for a Client.
type Config struct {
	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string

	// APIKey is the OFData key sent with every request. Required.
	APIKey string

	// Timeout bounds each HTTP request. Defaults to 15s.
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	// Logger is used for request/response logging. Defaults to
	// slog.Default. The API key is never logged.
	Logger *slog.Logger
}

// Client is an OFData API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client from the given config.
// Returns an error if no API key is configured.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ofdata: API key cannot be empty")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger.With(slog.String("component", "ofdata_client")),
	}, nil
}

// Meta is the status envelope OFData wraps every response in.
type Meta struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// envelope is the full response shape: a meta block plus the payload.
type envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Record is one successful registry lookup.
type Record struct {
	// Kind is KindCompany or KindEntrepreneur.
	Kind string `json:"kind"`

	// INN is the taxpayer number the lookup was made with.
	INN string `json:"inn"`

	// Name is the short display name decoded from the payload, used
	// in logs and usage event metadata. Empty if the payload carries
	// no recognizable name.
	Name string `json:"name,omitempty"`

	// Data is the raw provider payload, passed through to clients
	// untouched.
	Data json.RawMessage `json:"data"`
}

// companyData picks the display name out of a company payload.
// OFData uses Cyrillic field names.
type companyData struct {
	NameShort string `json:"НаимСокр"`
	NameFull  string `json:"НаимПолн"`
}

// entrepreneurData picks the display name out of an entrepreneur payload.
type entrepreneurData struct {
	FIO string `json:"ФИО"`
}

// Company looks up a legal entity by INN.
// Returns ErrNotFound if the registry has no record for the number.
func (c *Client) Company(ctx context.Context, inn string) (*Record, error) {
	if inn == "" {
		return nil, errors.New("ofdata: inn cannot be empty")
	}

	env, err := c.get(ctx, companyPath, url.Values{"inn": {inn}})
	if err != nil {
		return nil, err
	}

	record := &Record{Kind: KindCompany, INN: inn, Data: env.Data}
	var data companyData
	if err := json.Unmarshal(env.Data, &data); err == nil {
		record.Name = data.NameShort
		if record.Name == "" {
			record.Name = data.NameFull
		}
	}
	return record, nil
}

// Entrepreneur looks up an individual entrepreneur by INN.
// Returns ErrNotFound if the registry has no record for the number.
func (c *Client) Entrepreneur(ctx context.Context, inn string) (*Record, error) {
	if inn == "" {
		return nil, errors.New("ofdata: inn cannot be empty")
	}

	env, err := c.get(ctx, entrepreneurPath, url.Values{"inn": {inn}})
	if err != nil {
		return nil, err
	}

	record := &Record{Kind: KindEntrepreneur, INN: inn, Data: env.Data}
	var data entrepreneurData
	if err := json.Unmarshal(env.Data, &data); err == nil {
		record.Name = data.FIO
	}
	return record, nil
}

// get performs one GET against the API and decodes the envelope.
// The API key travels as a query parameter and must never appear in
// logs or error messages.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	query := url.Values{}
	for key, values := range params {
		query[key] = values
	}
	query.Set("key", c.apiKey)

	requestURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ofdata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("ofdata request", "path", path, "inn", params.Get("inn"))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ofdata %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read ofdata response: %w", err)
	}

	c.logger.Debug("ofdata response",
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(body))

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrAccessDenied
	case resp.StatusCode == http.StatusConflict:
		// OFData answers 409 for unknown numbers and malformed queries.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, params.Get("inn"))
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    metaMessage(body),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode ofdata response: %w", err)
	}

	if env.Meta.Status != "ok" {
		return nil, &APIError{Status: env.Meta.Status, Message: env.Meta.Message}
	}

	return &env, nil
}

// metaMessage pulls meta.message out of an error body so status errors
// carry the provider's explanation. Returns "" for unparseable bodies.
func metaMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Meta.Message
}
