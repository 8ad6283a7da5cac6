// Package gwcache persists the aggregated tool catalog and usage counters to
// a version-tagged JSON file, so the gateway need not re-discover every
// backend's tools after every restart.
package gwcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonwraymond/metatools-mcp/internal/registry"
	"github.com/jonwraymond/metatools-mcp/internal/tracker"
)

// CurrentVersion is the on-disk schema version this build writes.
const CurrentVersion = 4

// ErrIncompatibleVersion describes a cache file whose version is newer than
// this build understands. Load does not return it: it skips such a file and
// reports zero entries with a nil error.
var ErrIncompatibleVersion = fmt.Errorf("cache version is newer than this build supports")

type toolEntryJSON struct {
	Name         string         `json:"name"`
	OriginalName string         `json:"original_name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

type fileFormat struct {
	Version    int                        `json:"version"`
	Backends   map[string][]toolEntryJSON `json:"backends"`
	Embeddings map[string][]float32       `json:"embeddings,omitempty"`
	UsageStats map[string]uint64          `json:"usage_stats,omitempty"`
}

// Cache coordinates loading and atomically saving the gateway's catalog
// snapshot for a configured set of backend names.
type Cache struct {
	path string
}

// New returns a Cache bound to path.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the cache file, registers every tool entry whose backend is
// still configured into reg, and additively merges usage stats into trk. It
// returns the number of tools loaded. A missing file or a version this build
// cannot read yields (0, nil) — cache absence is never fatal to startup.
func (c *Cache) Load(reg *registry.Registry, trk *tracker.Tracker, configuredBackends map[string]string) (int, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse cache file: %w", err)
	}
	if doc.Version < 1 || doc.Version > CurrentVersion {
		return 0, nil
	}

	if doc.Version < 3 {
		for backend, entries := range doc.Backends {
			for i := range entries {
				if entries[i].OriginalName == "" {
					entries[i].OriginalName = entries[i].Name
				}
			}
			doc.Backends[backend] = entries
		}
	}

	loaded := 0
	for backend, entries := range doc.Backends {
		ns, configured := configuredBackends[backend]
		if !configured {
			continue
		}
		specs := make([]registry.ToolSpec, 0, len(entries))
		for _, e := range entries {
			specs = append(specs, registry.ToolSpec{
				OriginalName: e.OriginalName,
				Description:  e.Description,
				InputSchema:  e.InputSchema,
				Tags:         e.Tags,
			})
		}
		reg.Register(backend, ns, specs)
		loaded += len(specs)
	}

	if trk != nil && doc.UsageStats != nil {
		trk.LoadUsage(doc.UsageStats)
	}
	return loaded, nil
}

// Save writes the registry's current snapshot (plus usage stats, when trk is
// non-nil) to the cache file atomically: write to a sibling temp file, then
// rename over the target.
func (c *Cache) Save(reg *registry.Registry, trk *tracker.Tracker) error {
	snapshot := reg.Snapshot()

	doc := fileFormat{
		Version:  CurrentVersion,
		Backends: make(map[string][]toolEntryJSON, len(snapshot)),
	}
	for backend, entries := range snapshot {
		out := make([]toolEntryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, toolEntryJSON{
				Name:         e.Name,
				OriginalName: e.OriginalName,
				Description:  e.Description,
				InputSchema:  e.InputSchema,
				Tags:         e.Tags,
			})
		}
		doc.Backends[backend] = out
	}
	if trk != nil {
		doc.UsageStats = trk.SnapshotUsage()
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename cache temp file: %w", err)
	}
	return nil
}
