package limits

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/tracker"
)

func TestSyncerPersistsTrackerState(t *testing.T) {
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

	trk := tracker.New(10)
	trk.Record("github.get_repo", "github", 5*time.Millisecond, true)
	trk.Record("github.get_repo", "github", 7*time.Millisecond, true)

	syncer := NewSyncer(store, trk, time.Hour, nil)
	syncer.syncOnce(context.Background())

	snap, err := store.LoadUsage(context.Background())
	if err != nil {
		t.Fatalf("LoadUsage: %v", err)
	}
	if snap.UsageCounts["github.get_repo"] != 2 {
		t.Fatalf("UsageCounts[github.get_repo] = %d, want 2", snap.UsageCounts["github.get_repo"])
	}
	stats, ok := snap.BackendLatency["github"]
	if !ok || stats.N != 2 {
		t.Fatalf("BackendLatency[github] = %+v, ok=%v, want N=2", stats, ok)
	}
}
