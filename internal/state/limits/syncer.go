package limits

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/tracker"
)

// Syncer periodically upserts a *tracker.Tracker's usage counters and
// latency summaries into a Store, so the durable sink stays close to
// current without every caller having to remember to persist explicitly.
type Syncer struct {
	store    Store
	tracker  *tracker.Tracker
	interval time.Duration
	log      *slog.Logger
}

// NewSyncer constructs a Syncer. interval defaults to one minute if <= 0.
func NewSyncer(store Store, trk *tracker.Tracker, interval time.Duration, log *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{store: store, tracker: trk, interval: interval, log: log}
}

// Run blocks, syncing every interval until ctx is cancelled. It syncs once
// immediately on entry so a short-lived process still persists something.
func (s *Syncer) Run(ctx context.Context) {
	s.syncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) {
	snap := UsageSnapshot{
		UsageCounts:    s.tracker.SnapshotUsage(),
		BackendLatency: make(map[string]LatencySummary),
	}
	for _, backend := range s.tracker.BackendsWithLatency() {
		if stats, ok := s.tracker.LatencyStats(backend); ok {
			snap.BackendLatency[backend] = LatencySummary{
				P50: stats.P50, P95: stats.P95, P99: stats.P99, Avg: stats.Avg, N: stats.N,
			}
		}
	}
	if err := s.store.SaveUsage(ctx, snap); err != nil {
		s.log.Warn("usage sync failed", "error", err)
	}
}
