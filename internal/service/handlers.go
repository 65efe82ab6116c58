package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bizscan/bizscan-api/internal/platform/gamma"
	"github.com/bizscan/bizscan-api/internal/platform/ofdata"
	"github.com/bizscan/bizscan-api/internal/queue"
)

// lookupPayload is the wire shape of registry task payloads.
type lookupPayload struct {
	INN string `json:"inn"`
}

// exportPayload is the wire shape of export task payloads. The format comes
// from the task category, not the payload.
type exportPayload struct {
	ReportText   string          `json:"report_text"`
	Language     string          `json:"language,omitempty"`
	ThemeName    string          `json:"theme_name,omitempty"`
	NumCards     int             `json:"num_cards,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	RegistryData json.RawMessage `json:"registry_data,omitempty"`
	Enrich       bool            `json:"enrich,omitempty"`
}

// NewHandlers wires the registry and export services into the queue dispatch
// table. The table covers every production category; the queue rejects
// submissions for anything else.
func NewHandlers(registry RegistryService, export ExportService) (queue.Handlers, error) {
	if registry == nil {
		return nil, &RegistryServiceError{
			Operation: "create_handlers",
			Message:   "registry cannot be nil",
		}
	}
	if export == nil {
		return nil, &ExportServiceError{
			Operation: "create_handlers",
			Message:   "export cannot be nil",
		}
	}

	return queue.Handlers{
		queue.CategoryGammaPDF:      exportHandler(export, gamma.FormatPDF),
		queue.CategoryGammaPPTX:     exportHandler(export, gamma.FormatPPTX),
		queue.CategoryOFDataCompany: lookupHandler(registry, ofdata.KindCompany),
		queue.CategoryOFDataPerson:  lookupHandler(registry, ofdata.KindEntrepreneur),
	}, nil
}

// lookupHandler adapts registry task payloads to the registry service.
func lookupHandler(registry RegistryService, kind string) queue.Handler {
	return func(ctx context.Context, t *queue.TaskSnapshot) (any, error) {
		var payload lookupPayload
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}

		return registry.Lookup(ctx, LookupRequest{
			Kind:     kind,
			INN:      payload.INN,
			TaskID:   t.ID,
			Category: string(t.Category),
		})
	}
}

// exportHandler adapts export task payloads to the export service.
func exportHandler(export ExportService, format gamma.ExportFormat) queue.Handler {
	return func(ctx context.Context, t *queue.TaskSnapshot) (any, error) {
		var payload exportPayload
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}

		return export.Export(ctx, ExportRequest{
			ReportText:   payload.ReportText,
			Format:       format,
			Language:     payload.Language,
			ThemeName:    payload.ThemeName,
			NumCards:     payload.NumCards,
			Instructions: payload.Instructions,
			RegistryData: payload.RegistryData,
			Enrich:       payload.Enrich,
		})
	}
}
