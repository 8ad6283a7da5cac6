package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndUsageCount(t *testing.T) {
	tr := New(10)
	tr.Record("search_tools", "builtin", 5*time.Millisecond, true)
	tr.Record("search_tools", "builtin", 3*time.Millisecond, true)
	tr.Record("run_tool", "builtin", 1*time.Millisecond, false)

	assert.Equal(t, uint64(2), tr.UsageCount("search_tools"))
	assert.Equal(t, uint64(1), tr.UsageCount("run_tool"))
	assert.Equal(t, uint64(0), tr.UsageCount("never_called"))
}

func TestRecentCallsEvictsOldest(t *testing.T) {
	tr := New(2)
	tr.Record("a", "b", time.Millisecond, true)
	tr.Record("b", "b", time.Millisecond, true)
	tr.Record("c", "b", time.Millisecond, true)

	recent := tr.RecentCalls(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ToolName)
	assert.Equal(t, "b", recent[1].ToolName)
}

func TestLoadUsageIsAdditive(t *testing.T) {
	tr := New(10)
	tr.Record("x", "b", time.Millisecond, true)
	tr.LoadUsage(map[string]uint64{"x": 41, "y": 7})

	assert.Equal(t, uint64(42), tr.UsageCount("x"))
	assert.Equal(t, uint64(7), tr.UsageCount("y"))
}

func TestLatencyStatsAbsentWithoutSamples(t *testing.T) {
	tr := New(10)
	_, ok := tr.LatencyStats("ghost")
	assert.False(t, ok)
}

func TestLatencyStatsDropsOutOfRangeSamples(t *testing.T) {
	tr := New(10)
	tr.Record("t", "backend", 500*time.Nanosecond, true)
	tr.Record("t", "backend", 20*time.Minute, true)
	_, ok := tr.LatencyStats("backend")
	assert.False(t, ok, "both samples are outside [1us, 10min] and should be dropped")

	tr.Record("t", "backend", 5*time.Millisecond, true)
	stats, ok := tr.LatencyStats("backend")
	require.True(t, ok)
	assert.Equal(t, 1, stats.N)
}

func TestLatencyStatsComputesPercentiles(t *testing.T) {
	tr := New(10)
	for i := 1; i <= 100; i++ {
		tr.Record("t", "backend", time.Duration(i)*time.Millisecond, true)
	}
	stats, ok := tr.LatencyStats("backend")
	require.True(t, ok)
	assert.Equal(t, 100, stats.N)
	assert.InDelta(t, 50, stats.P50.Milliseconds(), 2)
	assert.InDelta(t, 95, stats.P95.Milliseconds(), 2)
}
