package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/state/limits"
	"github.com/jonwraymond/metatools-mcp/internal/tracker"
)

// OpenUsageStore opens the SQLite usage-stat sink named by
// state.runtime_limits_db, if configured. ok is false when no path is set;
// callers should skip wiring a syncer in that case.
func (c *AppConfig) OpenUsageStore() (store *limits.SQLiteStore, closeFn func() error, ok bool, err error) {
	if c == nil || c.State.RuntimeLimitsDB == "" {
		return nil, nil, false, nil
	}
	store, closeFn, err = limits.OpenSQLite(c.State.RuntimeLimitsDB)
	if err != nil {
		return nil, nil, false, fmt.Errorf("open usage store: %w", err)
	}
	return store, closeFn, true, nil
}

// NewUsageSyncer opens the configured usage store, if any, and wraps it in a
// limits.Syncer that periodically persists trk's counters and latency
// summaries. ok is false, with a nil syncer, when no store is configured.
func (c *AppConfig) NewUsageSyncer(trk *tracker.Tracker, interval time.Duration, log *slog.Logger) (syncer *limits.Syncer, closeFn func() error, ok bool, err error) {
	store, closeFn, ok, err := c.OpenUsageStore()
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	return limits.NewSyncer(store, trk, interval, log), closeFn, true, nil
}
