package limits

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestSQLiteStore_SaveLoadUsage(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	ctx := context.Background()
	empty, err := store.LoadUsage(ctx)
	if err != nil {
		t.Fatalf("LoadUsage() before save: %v", err)
	}
	if len(empty.UsageCounts) != 0 || len(empty.BackendLatency) != 0 {
		t.Fatalf("LoadUsage() before save = %+v, want empty", empty)
	}

	snap := UsageSnapshot{
		UsageCounts: map[string]uint64{"github.get_repo": 7, "jira.create_issue": 3},
		BackendLatency: map[string]LatencySummary{
			"github": {P50: 10 * time.Millisecond, P95: 40 * time.Millisecond, P99: 90 * time.Millisecond, Avg: 15 * time.Millisecond, N: 42},
		},
	}

	if err := store.SaveUsage(ctx, snap); err != nil {
		t.Fatalf("SaveUsage() error: %v", err)
	}

	loaded, err := store.LoadUsage(ctx)
	if err != nil {
		t.Fatalf("LoadUsage() error: %v", err)
	}
	if loaded.UsageCounts["github.get_repo"] != 7 || loaded.UsageCounts["jira.create_issue"] != 3 {
		t.Fatalf("UsageCounts = %+v, want %+v", loaded.UsageCounts, snap.UsageCounts)
	}
	stats, ok := loaded.BackendLatency["github"]
	if !ok {
		t.Fatalf("BackendLatency missing github entry: %+v", loaded.BackendLatency)
	}
	if stats.N != 42 || stats.P50 != 10*time.Millisecond {
		t.Fatalf("BackendLatency[github] = %+v, want N=42 P50=10ms", stats)
	}

	// SaveUsage again with an updated count upserts rather than duplicating.
	snap.UsageCounts["github.get_repo"] = 9
	if err := store.SaveUsage(ctx, snap); err != nil {
		t.Fatalf("SaveUsage() second call error: %v", err)
	}
	loaded, err = store.LoadUsage(ctx)
	if err != nil {
		t.Fatalf("LoadUsage() after update error: %v", err)
	}
	if loaded.UsageCounts["github.get_repo"] != 9 {
		t.Fatalf("UsageCounts[github.get_repo] = %d, want 9", loaded.UsageCounts["github.get_repo"])
	}
}
