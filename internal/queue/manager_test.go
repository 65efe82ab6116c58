package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWaitFor = 3 * time.Second
	testTick    = 5 * time.Millisecond
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig returns a config tuned for quick tests: tight polling, long
// cleanup cadence so tasks do not vanish mid-assertion.
func fastConfig(categories map[TaskCategory]CategorySettings) Config {
	return Config{
		Categories:      categories,
		PollInterval:    5 * time.Millisecond,
		CleanupInterval: time.Hour,
		Retention:       time.Hour,
		MaxRetries:      3,
	}
}

func newTestManager(t *testing.T, cfg Config, handlers Handlers) *Manager {
	t.Helper()
	m, err := NewManager(cfg, handlers, testLogger())
	require.NoError(t, err)
	return m
}

// waitForStatus polls Status until the task reaches want or the deadline
// passes.
func waitForStatus(t *testing.T, m *Manager, taskID string, want TaskStatus) *TaskSnapshot {
	t.Helper()
	var snap *TaskSnapshot
	require.Eventually(t, func() bool {
		s, err := m.Status(taskID)
		if err != nil {
			return false
		}
		snap = s
		return s.Status == want
	}, testWaitFor, testTick, "task %s never reached status %s", taskID, want)
	return snap
}

func TestNewManagerValidation(t *testing.T) {
	t.Parallel()

	okHandler := func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil }

	t.Run("empty handler table", func(t *testing.T) {
		t.Parallel()
		_, err := NewManager(DefaultConfig(), Handlers{}, testLogger())
		assert.Error(t, err)
	})

	t.Run("missing category settings", func(t *testing.T) {
		t.Parallel()
		cfg := fastConfig(map[TaskCategory]CategorySettings{})
		_, err := NewManager(cfg, Handlers{CategoryGammaPDF: okHandler}, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no settings configured")
	})

	t.Run("zero workers", func(t *testing.T) {
		t.Parallel()
		cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 0}})
		_, err := NewManager(cfg, Handlers{CategoryGammaPDF: okHandler}, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one worker")
	})

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Categories: map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}}}
		m, err := NewManager(cfg, Handlers{CategoryGammaPDF: okHandler}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, time.Second, m.cfg.PollInterval)
		assert.Equal(t, 5*time.Minute, m.cfg.CleanupInterval)
		assert.Equal(t, time.Hour, m.cfg.Retention)
		assert.Equal(t, 3, m.cfg.MaxRetries)
	})

	t.Run("negative max retries means none", func(t *testing.T) {
		t.Parallel()
		cfg := Config{
			Categories: map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}},
			MaxRetries: -1,
		}
		m, err := NewManager(cfg, Handlers{CategoryGammaPDF: okHandler}, testLogger())
		require.NoError(t, err)
		assert.Zero(t, m.cfg.MaxRetries)
	})
}

func TestManagerSubmitAndComplete(t *testing.T) {
	t.Parallel()

	payloads := make(chan json.RawMessage, 1)
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		payloads <- snap.Payload
		return map[string]any{"file_url": "https://example.com/deck.pdf"}, nil
	}
	callbacks := make(chan *TaskSnapshot, 1)

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})
	m.Start()
	defer m.Stop()

	payload := json.RawMessage(`{"report_text":"hello","format":"pdf"}`)
	taskID, err := m.Submit(CategoryGammaPDF, payload, func(snap *TaskSnapshot) {
		callbacks <- snap
	})
	require.NoError(t, err)

	snap := waitForStatus(t, m, taskID, StatusCompleted)
	assert.Equal(t, map[string]any{"file_url": "https://example.com/deck.pdf"}, snap.Result)
	assert.Zero(t, snap.RetryCount)
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.StartedAt)
	require.NotNil(t, snap.CompletedAt)
	assert.False(t, snap.CompletedAt.Before(*snap.StartedAt))

	select {
	case got := <-payloads:
		assert.JSONEq(t, string(payload), string(got), "handler should receive the submitted payload")
	case <-time.After(testWaitFor):
		t.Fatal("handler never received the payload")
	}

	select {
	case got := <-callbacks:
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Equal(t, taskID, got.ID)
	case <-time.After(testWaitFor):
		t.Fatal("completion callback never fired")
	}
}

func TestManagerSubmitUnknownCategory(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{
		CategoryGammaPDF: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil },
	})

	_, err := m.Submit("mystery_category", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHandler)

	var unknown *UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, TaskCategory("mystery_category"), unknown.Category)
}

func TestManagerStatusAndCancelUnknownTask(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{
		CategoryGammaPDF: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil },
	})

	_, err := m.Status("gamma_pdf_nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = m.Cancel("gamma_pdf_nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestManagerRetriesUntilExhausted(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		invocations.Add(1)
		return nil, fmt.Errorf("provider unavailable")
	}
	callbacks := make(chan *TaskSnapshot, 1)

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryOFDataCompany: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryOFDataCompany: handler})
	m.Start()
	defer m.Stop()

	taskID, err := m.Submit(CategoryOFDataCompany, nil, func(snap *TaskSnapshot) {
		callbacks <- snap
	})
	require.NoError(t, err)

	snap := waitForStatus(t, m, taskID, StatusFailed)
	assert.Equal(t, 3, snap.RetryCount, "a failed task should end with retryCount == maxRetries")
	assert.Equal(t, int32(4), invocations.Load(), "maxRetries of 3 admits 4 attempts in total")
	assert.Contains(t, snap.Error, "provider unavailable")
	require.NotNil(t, snap.CompletedAt)

	select {
	case got := <-callbacks:
		assert.Equal(t, StatusFailed, got.Status, "callback should fire for permanent failure")
	case <-time.After(testWaitFor):
		t.Fatal("failure callback never fired")
	}
}

func TestManagerRetryThenSucceed(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		if invocations.Add(1) == 1 {
			return nil, fmt.Errorf("transient glitch")
		}
		return "second time lucky", nil
	}

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryOFDataCompany: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryOFDataCompany: handler})
	m.Start()
	defer m.Stop()

	taskID, err := m.Submit(CategoryOFDataCompany, nil, nil)
	require.NoError(t, err)

	snap := waitForStatus(t, m, taskID, StatusCompleted)
	assert.Equal(t, 1, snap.RetryCount)
	assert.Equal(t, "second time lucky", snap.Result)
	assert.Equal(t, int32(2), invocations.Load())
}

func TestManagerRateLimitDefersExcessTasks(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		invocations.Add(1)
		return "ok", nil
	}

	cfg := fastConfig(map[TaskCategory]CategorySettings{
		CategoryGammaPDF: {Workers: 2, RatePerMinute: 2},
	})
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})

	// Submit before starting so all three compete for the two rate slots.
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.Submit(CategoryGammaPDF, nil, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Counts()[StatusCompleted] == 2
	}, testWaitFor, testTick, "two tasks should complete inside the rate window")

	// The third task must stay Pending: the minute window is exhausted and
	// denied claims leave the task on the table.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), invocations.Load(), "the rate limiter should admit exactly two executions")

	pending := 0
	for _, id := range ids {
		snap, err := m.Status(id)
		require.NoError(t, err)
		if snap.Status == StatusPending {
			pending++
			assert.Nil(t, snap.StartedAt, "a deferred task should never have been claimed")
		}
	}
	assert.Equal(t, 1, pending, "exactly one task should remain deferred")
}

func TestManagerQuotaExhaustionAndMidnightReset(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{
		CategoryGammaPDF: {Workers: 1, DailyQuota: 1},
	})
	m := newTestManager(t, cfg, Handlers{
		CategoryGammaPDF: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil },
	})

	clock := newFakeClock(time.Date(2025, 6, 1, 23, 0, 0, 0, time.Local))
	m.quota.now = clock.Now
	m.quota.lastReset = midnightOf(clock.Now())

	_, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)

	_, err = m.Submit(CategoryGammaPDF, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	var quotaErr *QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, CategoryGammaPDF, quotaErr.Category)

	remaining, tracked := m.QuotaRemaining(CategoryGammaPDF)
	assert.True(t, tracked)
	assert.Zero(t, remaining)

	// Crossing local midnight restores the quota and submissions resume.
	clock.Advance(2 * time.Hour)
	_, err = m.Submit(CategoryGammaPDF, nil, nil)
	assert.NoError(t, err, "quota should reset after local midnight")
}

func TestManagerCancelPendingPreventsExecution(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		invocations.Add(1)
		return nil, nil
	}

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})

	taskID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)

	cancelled, err := m.Cancel(taskID)
	require.NoError(t, err)
	require.True(t, cancelled)

	snap, err := m.Status(taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
	require.NotNil(t, snap.CompletedAt, "cancellation must stamp the completion timestamp")

	// Cancelling again reports false, the task is already terminal.
	cancelled, err = m.Cancel(taskID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	// Even once workers run, the cancelled task must never execute.
	m.Start()
	defer m.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, invocations.Load(), "a cancelled task must not be claimed")
}

func TestManagerCancelMidFlightDiscardsResult(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		<-release
		return "late result", nil
	}
	var callbackFired atomic.Bool

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})
	m.Start()
	defer m.Stop()

	taskID, err := m.Submit(CategoryGammaPDF, nil, func(snap *TaskSnapshot) {
		callbackFired.Store(true)
	})
	require.NoError(t, err)

	waitForStatus(t, m, taskID, StatusProcessing)

	cancelled, err := m.Cancel(taskID)
	require.NoError(t, err)
	require.True(t, cancelled)

	close(release)

	// Give the worker time to observe the cancelled task and drop the result.
	time.Sleep(50 * time.Millisecond)
	snap, err := m.Status(taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status, "a late handler result must not overwrite cancellation")
	assert.Nil(t, snap.Result)
	assert.False(t, callbackFired.Load(), "no callback should fire for a cancelled task")
}

func TestManagerHandlerPanicConsumesRetrySlots(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		invocations.Add(1)
		panic("handler exploded")
	}

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	cfg.MaxRetries = 1
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})
	m.Start()
	defer m.Stop()

	taskID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)

	snap := waitForStatus(t, m, taskID, StatusFailed)
	assert.Contains(t, snap.Error, "handler panic")
	assert.Equal(t, int32(2), invocations.Load(), "panics should consume retry slots like errors")
}

func TestManagerCallbackPanicDoesNotStopWorker(t *testing.T) {
	t.Parallel()

	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) { return "ok", nil }

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})
	m.Start()
	defer m.Stop()

	first, err := m.Submit(CategoryGammaPDF, nil, func(snap *TaskSnapshot) {
		panic("callback exploded")
	})
	require.NoError(t, err)
	waitForStatus(t, m, first, StatusCompleted)

	// The worker must survive the callback panic and keep processing.
	second, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)
	waitForStatus(t, m, second, StatusCompleted)
}

func TestManagerCleanupRemovesExpiredTasks(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{
		CategoryGammaPDF: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil },
	})

	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m.now = clock.Now

	// A cancelled task is terminal with a completion stamp, so it ages out.
	expiredID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)
	_, err = m.Cancel(expiredID)
	require.NoError(t, err)

	// A pending task must survive cleanup regardless of age.
	pendingID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	m.cleanupExpired()

	_, err = m.Status(expiredID)
	assert.ErrorIs(t, err, ErrTaskNotFound, "terminal tasks past retention should be removed")

	_, err = m.Status(pendingID)
	assert.NoError(t, err, "pending tasks must survive cleanup")
}

func TestManagerCleanupLoop(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	cfg.CleanupInterval = 10 * time.Millisecond
	cfg.Retention = time.Millisecond
	m := newTestManager(t, cfg, Handlers{
		CategoryGammaPDF: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return "done", nil },
	})
	m.Start()
	defer m.Stop()

	taskID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Status(taskID)
		return errors.Is(err, ErrTaskNotFound)
	}, testWaitFor, testTick, "the cleanup loop should remove the finished task")
}

func TestManagerStartStopIdempotent(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{
		CategoryGammaPDF: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil },
	})

	m.Start()
	m.Start()

	taskID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)
	waitForStatus(t, m, taskID, StatusCompleted)

	m.Stop()
	m.Stop()
}

func TestManagerSubmitBeforeStart(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryOFDataPerson: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{
		CategoryOFDataPerson: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return "profile", nil },
	})

	taskID, err := m.Submit(CategoryOFDataPerson, nil, nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	snap, err := m.Status(taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, snap.Status, "tasks wait as Pending until the manager starts")

	m.Start()
	defer m.Stop()
	waitForStatus(t, m, taskID, StatusCompleted)
}

func TestManagerStopCancelsHandlerContext(t *testing.T) {
	t.Parallel()

	sawCancel := make(chan struct{})
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		<-ctx.Done()
		close(sawCancel)
		return nil, ctx.Err()
	}

	cfg := fastConfig(map[TaskCategory]CategorySettings{CategoryGammaPDF: {Workers: 1}})
	m := newTestManager(t, cfg, Handlers{CategoryGammaPDF: handler})
	m.Start()

	taskID, err := m.Submit(CategoryGammaPDF, nil, nil)
	require.NoError(t, err)
	waitForStatus(t, m, taskID, StatusProcessing)

	m.Stop()

	select {
	case <-sawCancel:
	default:
		t.Fatal("handler never observed the cancelled context")
	}

	// The interrupted attempt counts as a failure, so the task is requeued
	// and will be retried on the next start.
	snap, err := m.Status(taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, 1, snap.RetryCount)
}

func TestManagerClaimNextRateGate(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(map[TaskCategory]CategorySettings{
		CategoryOFDataCompany: {Workers: 1, RatePerMinute: 1},
	})
	m := newTestManager(t, cfg, Handlers{
		CategoryOFDataCompany: func(ctx context.Context, snap *TaskSnapshot) (any, error) { return nil, nil },
	})

	first, err := m.Submit(CategoryOFDataCompany, nil, nil)
	require.NoError(t, err)
	second, err := m.Submit(CategoryOFDataCompany, nil, nil)
	require.NoError(t, err)

	snap, wait := m.claimNext(CategoryOFDataCompany)
	require.NotNil(t, snap, "the first claim should be admitted")
	assert.Equal(t, first, snap.ID)
	assert.Zero(t, wait)

	snap, wait = m.claimNext(CategoryOFDataCompany)
	assert.Nil(t, snap, "the rate limiter should deny the second claim")
	assert.Greater(t, wait, time.Duration(0))

	status, err := m.Status(second)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status, "a rate-denied task must stay pending and unclaimed")
	assert.Nil(t, status.StartedAt)
}

func TestManagerEndToEnd(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	handler := func(ctx context.Context, snap *TaskSnapshot) (any, error) {
		invocations.Add(1)
		return fmt.Sprintf("result for %s", snap.ID), nil
	}

	var callbackCount atomic.Int32

	cfg := fastConfig(map[TaskCategory]CategorySettings{
		CategoryOFDataCompany: {Workers: 2},
	})
	m := newTestManager(t, cfg, Handlers{CategoryOFDataCompany: handler})
	m.Start()
	defer m.Stop()

	const total = 5
	var wg sync.WaitGroup
	ids := make([]string, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := m.Submit(CategoryOFDataCompany, json.RawMessage(`{"inn":"7707083893"}`), func(snap *TaskSnapshot) {
				callbackCount.Add(1)
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, total)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "task IDs must be unique")
		seen[id] = true

		snap := waitForStatus(t, m, id, StatusCompleted)
		assert.Equal(t, fmt.Sprintf("result for %s", id), snap.Result)
		require.NotNil(t, snap.StartedAt)
		require.NotNil(t, snap.CompletedAt)
	}

	assert.Equal(t, int32(total), invocations.Load())
	require.Eventually(t, func() bool {
		return callbackCount.Load() == int32(total)
	}, testWaitFor, testTick, "every completed task should fire its callback once")

	counts := m.Counts()
	assert.Equal(t, total, counts[StatusCompleted])
	assert.Zero(t, counts[StatusPending])
	assert.Zero(t, counts[StatusProcessing])
}
