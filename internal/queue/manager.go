// Package queue implements the asynchronous task queue that mediates all
// calls to the rate-limited external providers. Callers submit work and get
// a task ID back immediately; per-category worker pools execute the work
// behind sliding-window rate limiters and daily quotas, and callers poll for
// status until the task reaches a terminal state.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handler executes one task and returns its result. Handlers receive an
// immutable snapshot; the manager applies the outcome to the live record.
// The context is the manager's run context and is cancelled on Stop.
type Handler func(ctx context.Context, t *TaskSnapshot) (any, error)

// Callback is invoked after a task reaches Completed or Failed. Callbacks
// run on the worker goroutine outside all manager locks; panics are caught
// and logged and never affect task state.
type Callback func(t *TaskSnapshot)

// Handlers is the static dispatch table mapping each category to its
// handler. The table is fixed at construction; submissions for categories
// outside it are rejected.
type Handlers map[TaskCategory]Handler

// CategorySettings holds the per-category worker and throttling settings.
type CategorySettings struct {
	// Workers is the number of goroutines draining this category.
	Workers int

	// RatePerMinute and RatePerHour bound the sliding-window rate limiter.
	// Zero or below means unlimited; RatePerHour zero derives
	// RatePerMinute*60.
	RatePerMinute int
	RatePerHour   int

	// DailyQuota caps executions per local day. Zero or below means no cap.
	DailyQuota int
}

// Config holds the manager configuration.
type Config struct {
	// Categories maps each servable category to its settings. Every category
	// in the handler table must have an entry.
	Categories map[TaskCategory]CategorySettings

	// PollInterval is how long an idle worker sleeps before rescanning.
	// If zero, defaults to 1 second.
	PollInterval time.Duration

	// CleanupInterval is how often finished tasks are swept.
	// If zero, defaults to 5 minutes.
	CleanupInterval time.Duration

	// Retention is how long finished tasks stay visible to Status before
	// cleanup removes them. If zero, defaults to 1 hour.
	Retention time.Duration

	// MaxRetries is how many times a failed task is requeued before it fails
	// permanently. If zero, defaults to 3; negative means no retries.
	MaxRetries int
}

// DefaultConfig returns a Config with the production category set and
// reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Categories: map[TaskCategory]CategorySettings{
			CategoryGammaPDF:      {Workers: 2, RatePerMinute: 10, DailyQuota: 50},
			CategoryGammaPPTX:     {Workers: 2, RatePerMinute: 10, DailyQuota: 50},
			CategoryOFDataCompany: {Workers: 3, RatePerMinute: 60, RatePerHour: 1000},
			CategoryOFDataPerson:  {Workers: 3, RatePerMinute: 60, RatePerHour: 1000},
		},
		PollInterval:    time.Second,
		CleanupInterval: 5 * time.Minute,
		Retention:       time.Hour,
		MaxRetries:      3,
	}
}

// Manager owns the task table and the worker pools. It is a plain value
// wired by the composition root; nothing in this package holds global state.
type Manager struct {
	cfg      Config
	handlers Handlers
	logger   *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
	// order preserves submission order for the claim scan. Not a FIFO
	// guarantee: retried tasks keep their slot and sibling workers race.
	order []string

	limiters map[TaskCategory]*RateLimiter
	quota    *QuotaTracker

	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	now func() time.Time
}

// NewManager creates a manager serving the given handler table. Every
// category in the table must have settings in cfg.Categories.
func NewManager(cfg Config, handlers Handlers, logger *slog.Logger) (*Manager, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("handler table must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Retention == 0 {
		cfg.Retention = time.Hour
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limiters := make(map[TaskCategory]*RateLimiter, len(handlers))
	quotas := make(map[TaskCategory]int, len(handlers))
	for cat := range handlers {
		settings, ok := cfg.Categories[cat]
		if !ok {
			return nil, fmt.Errorf("no settings configured for category %q", cat)
		}
		if settings.Workers < 1 {
			return nil, fmt.Errorf("category %q must have at least one worker", cat)
		}
		limiters[cat] = NewRateLimiter(settings.RatePerMinute, settings.RatePerHour)
		quotas[cat] = settings.DailyQuota
	}

	return &Manager{
		cfg:      cfg,
		handlers: handlers,
		logger:   logger.With("component", "queue"),
		tasks:    make(map[string]*task),
		limiters: limiters,
		quota:    NewQuotaTracker(quotas),
		now:      time.Now,
	}, nil
}

// Submit enqueues a task and returns its ID. The daily quota is consumed at
// submission time; a rejected submission leaves no trace in the table.
// Submitting before Start is allowed, the task waits as Pending.
func (m *Manager) Submit(category TaskCategory, payload json.RawMessage, cb Callback) (string, error) {
	if _, ok := m.handlers[category]; !ok {
		return "", &UnknownCategoryError{Category: category}
	}

	if !m.quota.CheckAndConsume(category) {
		m.logger.Warn("submission rejected, daily quota exhausted", "category", category)
		return "", &QuotaExceededError{Category: category}
	}

	t := newTask(category, payload, cb, m.cfg.MaxRetries, m.now())

	m.mu.Lock()
	m.tasks[t.id] = t
	m.order = append(m.order, t.id)
	depth := len(m.tasks)
	m.mu.Unlock()

	m.logger.Info("task submitted",
		"task_id", t.id,
		"category", category,
		"queue_depth", depth)
	return t.id, nil
}

// Status returns a snapshot of the task, or ErrTaskNotFound if the ID is
// unknown or already cleaned up.
func (m *Manager) Status(taskID string) (*TaskSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, &TaskNotFoundError{TaskID: taskID}
	}
	return t.snapshot(), nil
}

// Cancel moves a Pending or Processing task to Cancelled and reports whether
// it did. Tasks already in a terminal state return false. A handler still
// running is not aborted; its result is discarded when it finishes.
func (m *Manager) Cancel(taskID string) (bool, error) {
	m.mu.Lock()
	t, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return false, &TaskNotFoundError{TaskID: taskID}
	}
	cancelled := t.cancel(m.now())
	status := t.status
	m.mu.Unlock()

	if cancelled {
		m.logger.Info("task cancelled", "task_id", taskID, "category", t.category)
	} else {
		m.logger.Debug("cancel ignored, task already terminal",
			"task_id", taskID,
			"status", status)
	}
	return cancelled, nil
}

// QuotaRemaining returns the remaining daily quota for a category and
// whether the category has a quota at all.
func (m *Manager) QuotaRemaining(category TaskCategory) (int, bool) {
	return m.quota.Remaining(category)
}

// Counts returns the number of tasks currently in each status.
func (m *Manager) Counts() map[TaskStatus]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[TaskStatus]int)
	for _, t := range m.tasks {
		counts[t.status]++
	}
	return counts
}

// Start spawns the per-category worker pools and the cleanup loop. Calling
// Start on a running manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFunc = cancel
	m.mu.Unlock()

	workers := 0
	for cat := range m.handlers {
		n := m.cfg.Categories[cat].Workers
		for i := 0; i < n; i++ {
			m.wg.Add(1)
			go m.worker(ctx, cat, i)
		}
		workers += n
	}

	m.wg.Add(1)
	go m.cleanupLoop(ctx)

	m.logger.Info("queue manager started",
		"categories", len(m.handlers),
		"workers", workers)
}

// Stop cancels the run context and waits for every worker and the cleanup
// loop to exit. Handlers in flight observe the cancelled context. Calling
// Stop on a stopped manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancelFunc
	m.cancelFunc = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("queue manager stopped")
}

// worker drains one category until the run context is cancelled.
func (m *Manager) worker(ctx context.Context, category TaskCategory, workerID int) {
	defer m.wg.Done()

	logger := m.logger.With("category", category, "worker_id", workerID)
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.iterate(ctx, category, logger)
	}
}

// iterate performs one claim/execute cycle. Any panic escaping the cycle
// (outside the handler, which has its own recovery) is caught here; the loop
// logs, pauses briefly and carries on.
func (m *Manager) iterate(ctx context.Context, category TaskCategory, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker loop panic",
				"panic", r,
				"stack", string(debug.Stack()))
			sleepCtx(ctx, time.Second)
		}
	}()

	snap, wait := m.claimNext(category)
	if snap == nil {
		d := m.cfg.PollInterval
		if wait > 0 {
			d = wait
			logger.Debug("rate limit reached, deferring", "wait", wait)
		}
		sleepCtx(ctx, d)
		return
	}

	taskLogger := logger.With("task_id", snap.ID)
	taskLogger.Info("processing task", "attempt", snap.RetryCount+1)

	result, err := m.invokeHandler(ctx, m.handlers[category], snap, taskLogger)
	m.finish(snap.ID, result, err, taskLogger)
}

// claimNext scans the table in submission order for the first Pending task
// of the category and claims it. The scan, the rate-limiter acquire and the
// status flip form one critical section: an admitted rate slot always
// corresponds to a claimed task, and a denied task stays Pending and visible
// to sibling workers. Returns the claimed snapshot, or nil with the rate
// wait time when the limiter denied (zero when there was nothing to claim).
func (m *Manager) claimNext(category TaskCategory) (*TaskSnapshot, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		t, ok := m.tasks[id]
		if !ok || t.category != category || t.status != StatusPending {
			continue
		}

		limiter := m.limiters[category]
		if !limiter.Acquire() {
			return nil, limiter.WaitTime()
		}

		if err := t.markProcessing(m.now()); err != nil {
			m.logger.Warn("failed to claim task", "task_id", t.id, "error", err)
			continue
		}
		return t.snapshot(), 0
	}
	return nil, 0
}

// invokeHandler runs the handler outside all locks, converting panics into
// errors so a crashing handler consumes a retry slot like any other failure.
func (m *Manager) invokeHandler(ctx context.Context, handler Handler, snap *TaskSnapshot, logger *slog.Logger) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic",
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, snap)
}

// finish applies a handler outcome to the task under the manager mutex and
// fires the completion callback outside it. A task cancelled while its
// handler ran is left untouched; the late result is dropped.
func (m *Manager) finish(taskID string, result any, handlerErr error, logger *slog.Logger) {
	var cb Callback
	var cbSnap *TaskSnapshot

	m.mu.Lock()
	t, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		logger.Warn("task disappeared before its outcome could be recorded")
		return
	}

	switch {
	case t.status != StatusProcessing:
		logger.Info("discarding result for task no longer processing", "status", t.status)

	case handlerErr == nil:
		if err := t.complete(result, m.now()); err != nil {
			logger.Warn("failed to record task completion", "error", err)
			break
		}
		cb = t.callback
		cbSnap = t.snapshot()
		logger.Info("task completed", "retries", t.retryCount)

	case t.retryCount < t.maxRetries:
		if err := t.requeue(handlerErr.Error()); err != nil {
			logger.Warn("failed to requeue task", "error", err)
			break
		}
		logger.Warn("task attempt failed, requeued",
			"attempt", t.retryCount,
			"max_retries", t.maxRetries,
			"error", handlerErr)

	default:
		if err := t.fail(handlerErr.Error(), m.now()); err != nil {
			logger.Warn("failed to record task failure", "error", err)
			break
		}
		cb = t.callback
		cbSnap = t.snapshot()
		logger.Error("task failed permanently",
			"retries", t.retryCount,
			"error", handlerErr)
	}
	m.mu.Unlock()

	if cb != nil {
		m.invokeCallback(cb, cbSnap, logger)
	}
}

// invokeCallback shields task processing from callback panics.
func (m *Manager) invokeCallback(cb Callback, snap *TaskSnapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task callback panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	cb(snap)
}

// cleanupLoop periodically removes finished tasks older than the retention
// horizon.
func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

// cleanupExpired removes terminal tasks whose completion timestamp fell
// behind the retention horizon, from the table and the claim order both.
func (m *Manager) cleanupExpired() {
	cutoff := m.now().Add(-m.cfg.Retention)

	m.mu.Lock()
	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		t, ok := m.tasks[id]
		if !ok {
			continue
		}
		if t.status.IsTerminal() && t.completedAt != nil && t.completedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Info("cleaned up finished tasks", "count", removed)
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
