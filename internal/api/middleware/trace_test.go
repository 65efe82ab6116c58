package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bizscan/bizscan-api/internal/api/shared"
	"github.com/bizscan/bizscan-api/internal/platform/logger"
)

func TestTraceMiddleware(t *testing.T) {
	var capturedTraceID string
	var capturedLogger *slog.Logger

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = shared.GetTraceID(r.Context())
		capturedLogger = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	recorder := httptest.NewRecorder()

	TraceMiddleware(nextHandler).ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, capturedTraceID, 32, "handler should see a generated trace ID")
	assert.NotNil(t, capturedLogger)

	// The request-scoped logger carries the trace ID on every record.
	var logBuf strings.Builder
	testLogger := slog.New(slog.NewTextHandler(&logBuf, nil))

	req2 := httptest.NewRequest("GET", "/api/tasks", nil)
	req2 = req2.WithContext(logger.WithLogger(req2.Context(), testLogger))

	TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(httptest.NewRecorder(), req2)

	assert.Contains(t, logBuf.String(), "inside handler")
	assert.Contains(t, logBuf.String(), "trace_id=")
}
