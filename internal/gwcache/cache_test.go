package gwcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonwraymond/metatools-mcp/internal/registry"
	"github.com/jonwraymond/metatools-mcp/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	reg := registry.New()
	reg.Register("github", "github", []registry.ToolSpec{{OriginalName: "get_repo", Description: "fetch"}})
	trk := tracker.New(10)
	trk.Record("github.get_repo", "github", 0, true)

	c := New(path)
	require.NoError(t, c.Save(reg, trk))

	reg2 := registry.New()
	trk2 := tracker.New(10)
	n, err := c.Load(reg2, trk2, map[string]string{"github": "github"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entry, ok := reg2.Get("github.get_repo")
	require.True(t, ok)
	assert.Equal(t, "fetch", entry.Description)
	assert.Equal(t, uint64(1), trk2.UsageCount("github.get_repo"))
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.json"))
	n, err := c.Load(registry.New(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadFiltersBackendsNotInConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	reg := registry.New()
	reg.Register("stale", "stale", []registry.ToolSpec{{OriginalName: "x", Description: "d"}})
	require.NoError(t, New(path).Save(reg, nil))

	reg2 := registry.New()
	n, err := New(path).Load(reg2, nil, map[string]string{"other": "other"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	data, err := json.Marshal(fileFormat{Version: CurrentVersion + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	n, err := New(path).Load(registry.New(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadMigratesV2MissingOriginalName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	doc := fileFormat{
		Version: 2,
		Backends: map[string][]toolEntryJSON{
			"github": {{Name: "get_repo", Description: "fetch"}},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	reg := registry.New()
	n, err := New(path).Load(reg, nil, map[string]string{"github": "github"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entry, ok := reg.Get("get_repo")
	require.True(t, ok)
	assert.Equal(t, "get_repo", entry.OriginalName)
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, New(path).Save(registry.New(), nil))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful save")
}
