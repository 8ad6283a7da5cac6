package limits

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists usage snapshots in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, func() error, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// NewSQLiteStore wraps an already-open db and applies migrations.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite db is nil")
	}
	if err := applyMigrations(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// LoadUsage returns every persisted usage counter and latency summary.
func (s *SQLiteStore) LoadUsage(ctx context.Context) (UsageSnapshot, error) {
	if s == nil || s.db == nil {
		return UsageSnapshot{}, fmt.Errorf("sqlite store not configured")
	}

	snap := UsageSnapshot{
		UsageCounts:    make(map[string]uint64),
		BackendLatency: make(map[string]LatencySummary),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tool_name, count FROM usage_counts`)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("load usage counts: %w", err)
	}
	for rows.Next() {
		var name string
		var count uint64
		if err := rows.Scan(&name, &count); err != nil {
			rows.Close()
			return UsageSnapshot{}, fmt.Errorf("scan usage count: %w", err)
		}
		snap.UsageCounts[name] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return UsageSnapshot{}, fmt.Errorf("load usage counts: %w", err)
	}
	rows.Close()

	latencyRows, err := s.db.QueryContext(ctx, `
		SELECT backend_name, p50_ms, p95_ms, p99_ms, avg_ms, sample_count
		FROM backend_latency`)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("load backend latency: %w", err)
	}
	defer latencyRows.Close()
	for latencyRows.Next() {
		var name string
		var p50, p95, p99, avg int64
		var n int
		if err := latencyRows.Scan(&name, &p50, &p95, &p99, &avg, &n); err != nil {
			return UsageSnapshot{}, fmt.Errorf("scan backend latency: %w", err)
		}
		snap.BackendLatency[name] = LatencySummary{
			P50: time.Duration(p50) * time.Millisecond,
			P95: time.Duration(p95) * time.Millisecond,
			P99: time.Duration(p99) * time.Millisecond,
			Avg: time.Duration(avg) * time.Millisecond,
			N:   n,
		}
	}
	if err := latencyRows.Err(); err != nil {
		return UsageSnapshot{}, fmt.Errorf("load backend latency: %w", err)
	}

	return snap, nil
}

// SaveUsage upserts every counter and latency summary in snap within a
// single transaction.
func (s *SQLiteStore) SaveUsage(ctx context.Context, snap UsageSnapshot) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not configured")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	for name, count := range snap.UsageCounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO usage_counts (tool_name, count, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(tool_name) DO UPDATE SET
				count = excluded.count,
				updated_at = excluded.updated_at
		`, name, count, now); err != nil {
			return fmt.Errorf("save usage count %q: %w", name, err)
		}
	}

	for name, stats := range snap.BackendLatency {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backend_latency
				(backend_name, p50_ms, p95_ms, p99_ms, avg_ms, sample_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(backend_name) DO UPDATE SET
				p50_ms = excluded.p50_ms,
				p95_ms = excluded.p95_ms,
				p99_ms = excluded.p99_ms,
				avg_ms = excluded.avg_ms,
				sample_count = excluded.sample_count,
				updated_at = excluded.updated_at
		`, name, stats.P50.Milliseconds(), stats.P95.Milliseconds(), stats.P99.Milliseconds(),
			stats.Avg.Milliseconds(), stats.N, now); err != nil {
			return fmt.Errorf("save backend latency %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit usage save: %w", err)
	}
	return nil
}

func applyMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		statements := strings.Split(string(content), ";")
		for _, stmt := range statements {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
	}
	return nil
}
