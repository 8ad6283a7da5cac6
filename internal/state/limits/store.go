// Package limits persists the Call Tracker's usage counters and per-backend
// latency summaries, so usage history survives loss of the JSON cache file.
// The directory and config key (state.runtime_limits_db) are inherited
// unchanged from the teacher's original runtime-limits store; the rows it
// now holds are usage statistics instead.
package limits

import (
	"context"
	"time"
)

// LatencySummary is a backend's durable latency snapshot, mirroring
// tracker.LatencyStats without importing the tracker package directly.
type LatencySummary struct {
	P50, P95, P99, Avg time.Duration
	N                  int
}

// UsageSnapshot is the durable subset of tracker state periodically upserted
// into the store.
type UsageSnapshot struct {
	UsageCounts    map[string]uint64
	BackendLatency map[string]LatencySummary
}

// Store persists usage snapshots.
type Store interface {
	// LoadUsage returns the most recently persisted snapshot. An empty
	// snapshot with no error is returned when nothing has been saved yet.
	LoadUsage(ctx context.Context) (UsageSnapshot, error)
	// SaveUsage upserts every counter and latency summary in snap.
	SaveUsage(ctx context.Context, snap UsageSnapshot) error
}
