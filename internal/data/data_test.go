package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-clearing/internal/model"
)

const dataset = `{
  "area": "north",
  "data": [
    {
      "interval_start_utc": "2024-07-01T01:00:00Z",
      "interval_end_utc": "2024-07-01T02:00:00Z",
      "generators": [{"name": "nuke", "fixed_price": 10, "capacity": 100}],
      "loads": [{"name": "city", "fixed_price": 100, "capacity": 120}],
      "exchange": {"dq": 5, "dp": 1}
    },
    {
      "interval_start_utc": "2024-07-01T00:00:00Z",
      "interval_end_utc": "2024-07-01T01:00:00Z",
      "generators": [{"name": "nuke", "fixed_price": 10, "capacity": 100}]
    },
    {
      "area": "south",
      "interval_start_utc": "2024-07-01T00:00:00Z",
      "interval_end_utc": "2024-07-01T01:00:00Z"
    }
  ]
}`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intervals.json")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o644))
	return path
}

func TestLoadIntervalsJSON(t *testing.T) {
	file, err := LoadIntervalsJSON(writeDataset(t))
	require.NoError(t, err)
	require.Len(t, file.Data, 3)
	assert.Equal(t, "north", file.Data[0].Area)
	assert.Equal(t, "south", file.Data[2].Area)
	assert.Equal(t, model.Exchange{DQ: 5, DP: 1}, file.Data[0].Exchange)
	assert.Equal(t, 100.0, file.Data[0].Generators[0].Capacity)
	assert.Equal(t, 1.0, file.Data[0].DurationHours())

	_, err = LoadIntervalsJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = DecodeIntervals(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestGroupByArea(t *testing.T) {
	file, err := LoadIntervalsJSON(writeDataset(t))
	require.NoError(t, err)
	groups := GroupByArea(file)
	require.Len(t, groups, 2)
	require.Len(t, groups["north"], 2)
	assert.Equal(t, 0, groups["north"][0].IntervalStartUTC.Hour())
	assert.Equal(t, 1, groups["north"][1].IntervalStartUTC.Hour())
	assert.Empty(t, GroupByArea(nil))
}

func TestDatasetCache(t *testing.T) {
	path := writeDataset(t)
	c := NewDatasetCache(time.Minute)

	first, err := c.Load(path)
	require.NoError(t, err)
	again, err := c.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, c.Len())

	now := time.Now()
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	expired, err := c.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, expired)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())

	var nilCache *DatasetCache
	file, err := nilCache.Load(path)
	require.NoError(t, err)
	assert.Len(t, file.Data, 3)
}

func TestGenerateCacheKey(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := GenerateCacheKey("x.json", 10, ts)
	assert.Len(t, a, 64)
	assert.Equal(t, a, GenerateCacheKey("x.json", 10, ts))
	assert.NotEqual(t, a, GenerateCacheKey("x.json", 11, ts))
}
