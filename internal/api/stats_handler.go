package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bizscan/bizscan-api/internal/api/shared"
	"github.com/bizscan/bizscan-api/internal/queue"
	"github.com/bizscan/bizscan-api/internal/store"
)

const (
	defaultStatsDays = 30
	maxStatsDays     = 365
)

// QuotaReporter is the live queue state surface for the stats endpoint.
// *queue.Manager satisfies it.
type QuotaReporter interface {
	QuotaRemaining(category queue.TaskCategory) (int, bool)
	Counts() map[queue.TaskStatus]int
}

// StatsHandler serves the admin usage report.
type StatsHandler struct {
	events     store.UsageEventStore
	queue      QuotaReporter
	categories []queue.TaskCategory

	now func() time.Time // Injectable for testing
}

// NewStatsHandler creates a StatsHandler reporting over the given categories.
// The category list fixes the quota section's order in the response.
func NewStatsHandler(
	events store.UsageEventStore,
	quotaReporter QuotaReporter,
	categories []queue.TaskCategory,
) *StatsHandler {
	return &StatsHandler{
		events:     events,
		queue:      quotaReporter,
		categories: categories,
		now:        time.Now,
	}
}

// GetStats handles GET /api/stats requests. The days query parameter bounds
// the usage window (default 30, max 365).
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxStatsDays {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid days parameter")
			return
		}
		days = parsed
	}

	since := h.now().AddDate(0, 0, -days)

	usage, err := h.events.Summary(r.Context(), since)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), "Failed to load usage summary", err)
		return
	}

	quota := make([]CategoryQuota, 0, len(h.categories))
	for _, cat := range h.categories {
		remaining, limited := h.queue.QuotaRemaining(cat)
		quota = append(quota, CategoryQuota{
			Category:  string(cat),
			Remaining: remaining,
			Limited:   limited,
		})
	}

	counts := make(map[string]int)
	for status, n := range h.queue.Counts() {
		counts[string(status)] = n
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		Since:      since,
		Days:       days,
		Usage:      usage,
		Quota:      quota,
		TaskCounts: counts,
	})
}
