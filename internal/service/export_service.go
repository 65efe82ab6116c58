package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bizscan/bizscan-api/internal/platform/gamma"
	"github.com/bizscan/bizscan-api/internal/redact"
)

// enrichmentHeading introduces the generated summary inside the Gamma input
// text. Gamma turns top-level headings into their own cards.
const enrichmentHeading = "## Аналитическая справка"

// DocumentGenerator is the slice of the Gamma client the export service
// needs. Satisfied by *gamma.Client.
type DocumentGenerator interface {
	// Generate creates a document and blocks until the exported file is
	// ready or the poll budget runs out.
	Generate(ctx context.Context, req gamma.GenerationRequest) (*gamma.GenerationResult, error)
}

// ReportSummarizer produces a short analytical summary from raw registry
// JSON. Satisfied by *gemini.Enricher.
type ReportSummarizer interface {
	Summarize(ctx context.Context, companyJSON []byte) (string, error)
}

// ExportRequest describes one document export.
type ExportRequest struct {
	// ReportText is the markdown source for the document. Required.
	ReportText string
	// Format selects the exported file type.
	Format gamma.ExportFormat
	// Language of the generated text. Empty uses the Gamma default.
	Language string
	// ThemeName selects a Gamma theme. Optional.
	ThemeName string
	// NumCards is the slide/page count. Zero lets the client decide.
	NumCards int
	// Instructions are free-form generation hints passed to Gamma.
	Instructions string
	// RegistryData is the raw registry payload used for enrichment.
	RegistryData json.RawMessage
	// Enrich requests an analytical summary appended to the report text
	// before export. Ignored when no summarizer is configured or
	// RegistryData is empty.
	Enrich bool
}

// ExportResult is the outcome of a finished export. It is stored verbatim
// as the queue task result, so every field carries a JSON tag.
type ExportResult struct {
	// FileURL is the time-limited download URL for the exported file.
	FileURL string `json:"file_url"`
	// Format is the exported file type actually produced.
	Format string `json:"format"`
	// GammaURL opens the document in the Gamma editor.
	GammaURL string `json:"gamma_url,omitempty"`
	// GenerationID identifies the generation on the Gamma side.
	GenerationID string `json:"generation_id,omitempty"`
	// CreditsDeducted and CreditsRemaining report Gamma credit usage.
	CreditsDeducted  int `json:"credits_deducted"`
	CreditsRemaining int `json:"credits_remaining"`
	// Enriched reports whether a summary was appended to the input.
	Enriched bool `json:"enriched"`
}

// ExportService turns report text into exported Gamma documents.
type ExportService interface {
	// Export generates a document from the request and returns the exported
	// file location. Returns ErrInvalidPayload for unusable input.
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}

// ExportServiceError wraps errors from the export service with context.
type ExportServiceError struct {
	// Operation is the operation that failed (e.g., "export")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ExportServiceError.
func (e *ExportServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("export service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ExportServiceError) Unwrap() error {
	return e.Err
}

// NewExportServiceError creates a new ExportServiceError.
// It returns known sentinel errors directly without wrapping.
func NewExportServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidPayload) {
		return err
	}

	return &ExportServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// exportServiceImpl implements the ExportService interface.
type exportServiceImpl struct {
	generator DocumentGenerator
	enricher  ReportSummarizer
	logger    *slog.Logger
}

// NewExportService creates a new ExportService. The enricher may be nil, in
// which case enrichment requests are skipped; the other dependencies are
// required.
func NewExportService(
	generator DocumentGenerator,
	enricher ReportSummarizer,
	logger *slog.Logger,
) (ExportService, error) {
	if generator == nil {
		return nil, &ExportServiceError{
			Operation: "create_service",
			Message:   "generator cannot be nil",
		}
	}
	if logger == nil {
		return nil, &ExportServiceError{
			Operation: "create_service",
			Message:   "logger cannot be nil",
		}
	}

	return &exportServiceImpl{
		generator: generator,
		enricher:  enricher,
		logger:    logger.With(slog.String("component", "export_service")),
	}, nil
}

// Export enriches the report text when requested and hands it to Gamma.
// Enrichment failures are logged and skipped; only generation failures fail
// the export.
func (s *exportServiceImpl) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	text := strings.TrimSpace(req.ReportText)
	if text == "" {
		return nil, fmt.Errorf("%w: report_text cannot be empty", ErrInvalidPayload)
	}

	log := s.logger.With(slog.String("format", string(req.Format)))

	inputText, enriched := s.enrich(ctx, log, text, req)

	result, err := s.generator.Generate(ctx, gamma.GenerationRequest{
		InputText:              inputText,
		ExportAs:               req.Format,
		Language:               req.Language,
		ThemeName:              req.ThemeName,
		NumCards:               req.NumCards,
		AdditionalInstructions: req.Instructions,
	})
	if err != nil {
		return nil, NewExportServiceError("export",
			fmt.Sprintf("%s generation", req.Format), err)
	}

	log.InfoContext(ctx, "document exported",
		slog.String("generation_id", result.GenerationID),
		slog.Int("credits_deducted", result.Credits.Deducted),
		slog.Int("credits_remaining", result.Credits.Remaining),
		slog.Bool("enriched", enriched))

	return &ExportResult{
		FileURL:          result.ExportURL,
		Format:           string(result.Format),
		GammaURL:         result.GammaURL,
		GenerationID:     result.GenerationID,
		CreditsDeducted:  result.Credits.Deducted,
		CreditsRemaining: result.Credits.Remaining,
		Enriched:         enriched,
	}, nil
}

// enrich appends an analytical summary to the report text when the request
// asks for one and a summarizer is available. Returns the input text for the
// generation and whether a summary was appended.
func (s *exportServiceImpl) enrich(ctx context.Context, log *slog.Logger, text string, req ExportRequest) (string, bool) {
	if !req.Enrich {
		return text, false
	}
	if s.enricher == nil {
		log.DebugContext(ctx, "enrichment requested but no summarizer configured, skipping")
		return text, false
	}
	if len(req.RegistryData) == 0 {
		log.DebugContext(ctx, "enrichment requested without registry data, skipping")
		return text, false
	}

	summary, err := s.enricher.Summarize(ctx, req.RegistryData)
	if err != nil {
		log.WarnContext(ctx, "enrichment failed, exporting without summary",
			slog.String("error", redact.Error(err)))
		return text, false
	}

	return text + "\n\n" + enrichmentHeading + "\n\n" + summary, true
}
