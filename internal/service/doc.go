// Package service contains the application-specific use cases executed by
// the task queue workers. It orchestrates the platform clients (OFData,
// Gamma, Gemini), the lookup cache and the usage-event store to fulfill the
// work behind each task category.
//
// Key components:
//
// 1. RegistryService:
//   - Business-registry lookups by INN with a Redis read-through cache
//   - Cache hits are recorded as lookup_cached usage events
//   - Cache failures degrade to provider calls, never to lookup failures
//
// 2. ExportService:
//   - Gamma document generation from report text (PDF and PPTX)
//   - Optional Gemini enrichment appended to the input text; enrichment
//     failures are logged and skipped, never fatal
//
// 3. NewHandlers:
//   - Adapts both services into the queue's per-category dispatch table,
//     decoding the opaque task payloads into typed requests
//
// Services receive dependencies through constructor injection as narrow
// interfaces defined in this package, so tests substitute fakes without
// touching the real clients. Expected failure modes surface as sentinel
// errors (ErrInvalidPayload, ErrRegistryNotFound); everything else is
// wrapped in a service-specific error type with operation context.
//
// The service layer depends on the platform clients and store interfaces,
// but never on the HTTP layer or the queue internals; the queue only sees
// it through the Handler functions.
package service
