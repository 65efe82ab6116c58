package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bizscan/bizscan-api/internal/domain"
	"github.com/bizscan/bizscan-api/internal/platform/gamma"
	"github.com/bizscan/bizscan-api/internal/platform/ofdata"
)

// mockRegistryClient mocks the RegistryClient interface.
type mockRegistryClient struct {
	mock.Mock
}

func (m *mockRegistryClient) Company(ctx context.Context, inn string) (*ofdata.Record, error) {
	args := m.Called(ctx, inn)
	if rec := args.Get(0); rec != nil {
		return rec.(*ofdata.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistryClient) Entrepreneur(ctx context.Context, inn string) (*ofdata.Record, error) {
	args := m.Called(ctx, inn)
	if rec := args.Get(0); rec != nil {
		return rec.(*ofdata.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockRecordCache mocks the RecordCache interface.
type mockRecordCache struct {
	mock.Mock
}

func (m *mockRecordCache) Get(ctx context.Context, kind, inn string) ([]byte, bool, error) {
	args := m.Called(ctx, kind, inn)
	var payload []byte
	if p := args.Get(0); p != nil {
		payload = p.([]byte)
	}
	return payload, args.Bool(1), args.Error(2)
}

func (m *mockRecordCache) Set(ctx context.Context, kind, inn string, payload []byte) error {
	args := m.Called(ctx, kind, inn, payload)
	return args.Error(0)
}

// mockGenerator mocks the DocumentGenerator interface.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req gamma.GenerationRequest) (*gamma.GenerationResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*gamma.GenerationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockSummarizer mocks the ReportSummarizer interface.
type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summarize(ctx context.Context, companyJSON []byte) (string, error) {
	args := m.Called(ctx, companyJSON)
	return args.String(0), args.Error(1)
}

// recordingEventStore captures usage events for assertions. Set createErr to
// make every Create call fail.
type recordingEventStore struct {
	mu        sync.Mutex
	events    []*domain.UsageEvent
	createErr error
}

func (s *recordingEventStore) Create(ctx context.Context, event *domain.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingEventStore) Summary(ctx context.Context, since time.Time) ([]domain.UsageCount, error) {
	return nil, nil
}

func (s *recordingEventStore) CountForActor(
	ctx context.Context,
	actor string,
	eventType domain.UsageEventType,
	since time.Time,
) (int64, error) {
	return 0, nil
}

func (s *recordingEventStore) recorded() []*domain.UsageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.UsageEvent, len(s.events))
	copy(out, s.events)
	return out
}
