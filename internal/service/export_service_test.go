package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bizscan/bizscan-api/internal/platform/gamma"
	"github.com/bizscan/bizscan-api/internal/platform/logger"
)

func testGenerationResult(format gamma.ExportFormat) *gamma.GenerationResult {
	return &gamma.GenerationResult{
		GenerationID: "gen_xxxxxxxxxxxx",
		Format:       format,
		ExportURL:    "https://exports.gamma.app/gen_xxxxxxxxxxxx.pdf",
		GammaURL:     "https://gamma.app/docs/gen_xxxxxxxxxxxx",
		Credits:      gamma.Credits{Deducted: 40, Remaining: 360},
	}
}

func TestNewExportService_Validation(t *testing.T) {
	t.Parallel()

	t.Run("nil generator", func(t *testing.T) {
		t.Parallel()

		svc, err := NewExportService(nil, new(mockSummarizer), discardLogger())
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "generator cannot be nil")
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()

		svc, err := NewExportService(new(mockGenerator), new(mockSummarizer), nil)
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "logger cannot be nil")
	})

	t.Run("nil enricher is allowed", func(t *testing.T) {
		t.Parallel()

		svc, err := NewExportService(new(mockGenerator), nil, discardLogger())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestExportService_Export_EmptyReportText(t *testing.T) {
	t.Parallel()

	svc, err := NewExportService(new(mockGenerator), nil, discardLogger())
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\t"} {
		result, err := svc.Export(context.Background(), ExportRequest{
			ReportText: text,
			Format:     gamma.FormatPDF,
		})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	}
}

func TestExportService_Export_Success(t *testing.T) {
	t.Parallel()

	generator := new(mockGenerator)
	generator.On("Generate", mock.Anything, gamma.GenerationRequest{
		InputText:              "# ПАО Сбербанк\n\nОтчет о компании.",
		ExportAs:               gamma.FormatPDF,
		Language:               "ru",
		ThemeName:              "Oasis",
		NumCards:               12,
		AdditionalInstructions: "строгий деловой тон",
	}).Return(testGenerationResult(gamma.FormatPDF), nil).Once()

	svc, err := NewExportService(generator, nil, discardLogger())
	require.NoError(t, err)

	result, err := svc.Export(context.Background(), ExportRequest{
		ReportText:   "# ПАО Сбербанк\n\nОтчет о компании.",
		Format:       gamma.FormatPDF,
		Language:     "ru",
		ThemeName:    "Oasis",
		NumCards:     12,
		Instructions: "строгий деловой тон",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "https://exports.gamma.app/gen_xxxxxxxxxxxx.pdf", result.FileURL)
	assert.Equal(t, "pdf", result.Format)
	assert.Equal(t, "https://gamma.app/docs/gen_xxxxxxxxxxxx", result.GammaURL)
	assert.Equal(t, "gen_xxxxxxxxxxxx", result.GenerationID)
	assert.Equal(t, 40, result.CreditsDeducted)
	assert.Equal(t, 360, result.CreditsRemaining)
	assert.False(t, result.Enriched)

	generator.AssertExpectations(t)
}

func TestExportService_Export_Enrichment(t *testing.T) {
	t.Parallel()

	registryData := json.RawMessage(`{"data":{"НаимСокр":"ПАО Сбербанк"}}`)

	t.Run("summary appended to input", func(t *testing.T) {
		t.Parallel()

		summarizer := new(mockSummarizer)
		summarizer.On("Summarize", mock.Anything, []byte(registryData)).
			Return("Крупнейший банк страны, работает с 1991 года.", nil).Once()

		var captured gamma.GenerationRequest
		generator := new(mockGenerator)
		generator.On("Generate", mock.Anything, mock.MatchedBy(func(req gamma.GenerationRequest) bool {
			captured = req
			return true
		})).Return(testGenerationResult(gamma.FormatPPTX), nil).Once()

		svc, err := NewExportService(generator, summarizer, discardLogger())
		require.NoError(t, err)

		result, err := svc.Export(context.Background(), ExportRequest{
			ReportText:   "# Отчет",
			Format:       gamma.FormatPPTX,
			RegistryData: registryData,
			Enrich:       true,
		})
		require.NoError(t, err)

		assert.True(t, result.Enriched)
		assert.Contains(t, captured.InputText, "# Отчет")
		assert.Contains(t, captured.InputText, "## Аналитическая справка")
		assert.Contains(t, captured.InputText, "Крупнейший банк страны")

		summarizer.AssertExpectations(t)
		generator.AssertExpectations(t)
	})

	t.Run("summarizer failure skips enrichment", func(t *testing.T) {
		t.Parallel()

		summarizer := new(mockSummarizer)
		summarizer.On("Summarize", mock.Anything, []byte(registryData)).
			Return("", errors.New("gemini call failed: status 503")).Once()

		generator := new(mockGenerator)
		generator.On("Generate", mock.Anything, mock.MatchedBy(func(req gamma.GenerationRequest) bool {
			return req.InputText == "# Отчет"
		})).Return(testGenerationResult(gamma.FormatPDF), nil).Once()

		log, logBuf := logger.GetTestLogger(t)

		svc, err := NewExportService(generator, summarizer, log)
		require.NoError(t, err)

		result, err := svc.Export(context.Background(), ExportRequest{
			ReportText:   "# Отчет",
			Format:       gamma.FormatPDF,
			RegistryData: registryData,
			Enrich:       true,
		})
		require.NoError(t, err)
		assert.False(t, result.Enriched)

		generator.AssertExpectations(t)
		logger.AssertLogContains(t, logBuf, "enrichment failed, exporting without summary")
	})

	t.Run("no summarizer configured", func(t *testing.T) {
		t.Parallel()

		generator := new(mockGenerator)
		generator.On("Generate", mock.Anything, mock.MatchedBy(func(req gamma.GenerationRequest) bool {
			return req.InputText == "# Отчет"
		})).Return(testGenerationResult(gamma.FormatPDF), nil).Once()

		svc, err := NewExportService(generator, nil, discardLogger())
		require.NoError(t, err)

		result, err := svc.Export(context.Background(), ExportRequest{
			ReportText:   "# Отчет",
			Format:       gamma.FormatPDF,
			RegistryData: registryData,
			Enrich:       true,
		})
		require.NoError(t, err)
		assert.False(t, result.Enriched)
	})

	t.Run("no registry data to summarize", func(t *testing.T) {
		t.Parallel()

		summarizer := new(mockSummarizer)
		generator := new(mockGenerator)
		generator.On("Generate", mock.Anything, mock.MatchedBy(func(req gamma.GenerationRequest) bool {
			return req.InputText == "# Отчет"
		})).Return(testGenerationResult(gamma.FormatPDF), nil).Once()

		svc, err := NewExportService(generator, summarizer, discardLogger())
		require.NoError(t, err)

		result, err := svc.Export(context.Background(), ExportRequest{
			ReportText: "# Отчет",
			Format:     gamma.FormatPDF,
			Enrich:     true,
		})
		require.NoError(t, err)
		assert.False(t, result.Enriched)

		summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
	})
}

func TestExportService_Export_GenerationFailure(t *testing.T) {
	t.Parallel()

	genErr := errors.New("gamma generation gen_x failed")
	generator := new(mockGenerator)
	generator.On("Generate", mock.Anything, mock.Anything).Return(nil, genErr).Once()

	svc, err := NewExportService(generator, nil, discardLogger())
	require.NoError(t, err)

	result, err := svc.Export(context.Background(), ExportRequest{
		ReportText: "# Отчет",
		Format:     gamma.FormatPDF,
	})
	assert.Nil(t, result)

	var svcErr *ExportServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "export", svcErr.Operation)
	assert.ErrorIs(t, err, genErr)
}
