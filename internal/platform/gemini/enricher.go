// Package gemini enriches registry lookups with a short analytical
// summary generated by Google's Gemini API. Enrichment is best effort:
// callers treat every error from this package as a reason to skip the
// summary, never to fail the surrounding export.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/bizscan/bizscan-api/internal/config"
)

// promptTemplate turns raw registry JSON into an analyst briefing
// request. The response is plain text, not JSON, so no schema parsing
// is needed on the way back.
const promptTemplate = `Ты — финансовый аналитик. Ниже приведены данные о компании из
официального реестра в формате JSON.

{{.CompanyJSON}}

Составь краткую аналитическую справку (3-5 предложений) на русском языке:
род деятельности, статус, возраст компании и заметные риски, если они
видны из данных. Пиши обычным текстом без форматирования и заголовков.`

// ErrEmptyInput is returned when there is no registry data to summarize.
var ErrEmptyInput = errors.New("registry data cannot be empty")

// Enricher generates company summaries via the Gemini API.
type Enricher struct {
	logger     *slog.Logger
	client     *genai.Client
	model      string
	maxRetries int
	baseDelay  time.Duration
	prompt     *template.Template
}

// promptData is the input to promptTemplate.
type promptData struct {
	CompanyJSON string
}

// NewEnricher creates an Enricher from the LLM configuration.
// Returns ErrInvalidConfig wrapped errors when required settings are
// missing, so callers can decide to run without enrichment.
func NewEnricher(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Enricher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	prompt, err := template.New("summary").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.RetryDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	return &Enricher{
		logger:     logger.With(slog.String("component", "gemini_enricher")),
		client:     client,
		model:      cfg.ModelName,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		prompt:     prompt,
	}, nil
}

// Summarize produces a short analytical summary of the given registry
// payload. Transient API failures are retried with exponential backoff
// and jitter; safety blocks and malformed responses are permanent.
func (e *Enricher) Summarize(ctx context.Context, companyJSON []byte) (string, error) {
	if len(bytes.TrimSpace(companyJSON)) == 0 {
		return "", ErrEmptyInput
	}

	var promptBuffer bytes.Buffer
	if err := e.prompt.Execute(&promptBuffer, promptData{CompanyJSON: string(companyJSON)}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return e.callWithRetry(ctx, promptBuffer.String())
}

// callWithRetry calls the Gemini API up to maxRetries+1 times.
// API transport errors are assumed transient; response-shape problems
// and safety blocks are permanent and returned immediately.
func (e *Enricher) callWithRetry(ctx context.Context, prompt string) (string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		e.logger.DebugContext(ctx, "calling gemini",
			"attempt", attempt+1,
			"max_attempts", e.maxRetries+1,
			"model", e.model)

		text, err := e.generateOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			e.logger.WarnContext(ctx, "permanent gemini error, not retrying", "error", err)
			return "", err
		}

		if attempt >= e.maxRetries {
			return "", fmt.Errorf("%w: exceeded %d attempts: %v",
				ErrTransientFailure, e.maxRetries+1, err)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(e.baseDelay) * math.Pow(2, float64(attempt))
		jitter := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoff * jitter)

		e.logger.InfoContext(ctx, "retrying gemini call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// generateOnce performs a single GenerateContent call and classifies
// the outcome.
func (e *Enricher) generateOnce(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)",
				ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates in response", ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate blocked by safety filters", ErrContentBlocked)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty text in response", ErrInvalidResponse)
	}

	return text, nil
}
