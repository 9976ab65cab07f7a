package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-clearing/internal/clearing"
	"market-clearing/internal/model"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "areas/north.yaml", `
area:
  name: north
  generators:
    - {name: nuke, fixed_price: 10, capacity: 100}
  loads:
    - {name: city, fixed_price: 100, capacity: 120}
`)
	path := write(t, dir, "market.yaml", `
market:
  price_cap: 500
  max_iterations: 20
  on_failure: IGNORE|DUMP
areas:
  - name: north
    area_file: areas/north.yaml
    loads:
      - {name: town, fixed_price: 90, capacity: 50}
    coordinator:
      name: window
      window: {export_start: "22:00", import_start: "17:00", import_end: "21:00", export_mw: 10, import_mw: 10}
  - name: south
    generators:
      - {name: hydro, marginal_price: 0.2, capacity: 80}
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500.0, c.Market.PriceCap)
	assert.Equal(t, 20, c.Market.MaxIterations)
	assert.Equal(t, 1e6, c.Market.DefaultSupplySlope)
	require.Len(t, c.Areas, 2)

	north := c.Areas[0]
	assert.Equal(t, "north", north.Name)
	require.Len(t, north.Generators, 1)
	assert.Equal(t, "nuke", north.Generators[0].Name)
	require.Len(t, north.Loads, 1)
	assert.Equal(t, "town", north.Loads[0].Name)
	coord, err := north.Coordinator.Build()
	require.NoError(t, err)
	assert.Equal(t, "window", coord.Name())

	cc, err := c.Market.ToClearingConfig()
	require.NoError(t, err)
	assert.Equal(t, model.PolicyIgnore|model.PolicyDump, cc.Policy)
	assert.Equal(t, 500.0, cc.Curve.PriceCap)
	assert.Equal(t, int32(4), cc.Curve.PricePrecision)
	assert.Equal(t, 20, cc.MaxIterations)
}

func TestDefaultMatchesClearing(t *testing.T) {
	cc, err := Default().Market.ToClearingConfig()
	require.NoError(t, err)
	assert.Equal(t, clearing.DefaultConfig(), cc)
	d := Default()
	assert.NoError(t, d.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"cap below floor": func(c *Config) { c.Market.PriceCap = -1 },
		"no iterations":   func(c *Config) { c.Market.MaxIterations = 0 },
		"positive demand": func(c *Config) { c.Market.DefaultDemandSlope = 1 },
		"bad policy":      func(c *Config) { c.Market.OnFailure = "PANIC" },
		"unnamed area":    func(c *Config) { c.Areas = []AreaConfig{{}} },
		"duplicate area":  func(c *Config) { c.Areas = []AreaConfig{{Name: "a"}, {Name: "a"}} },
		"bad coordinator": func(c *Config) { c.Areas = []AreaConfig{{Name: "a", Coordinator: CoordinatorConfig{Name: "oracle"}}} },
		"bad window":      func(c *Config) { c.Areas = []AreaConfig{{Name: "a", Coordinator: CoordinatorConfig{Name: "window"}}} },
		"negative capacity": func(c *Config) {
			c.Areas = []AreaConfig{{Name: "a", Loads: []model.Report{{Capacity: -1}}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	var nilConfig *Config
	assert.Error(t, nilConfig.Validate())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := write(t, dir, "bad.yaml", "market: [")
	_, err = Load(path)
	assert.Error(t, err)

	path = write(t, dir, "preset.yaml", "areas:\n  - name: x\n    area_file: nowhere.yaml\n")
	_, err = LoadUnchecked(path)
	assert.Error(t, err)
}

func TestMergeArea(t *testing.T) {
	base := AreaConfig{
		Name:       "north",
		Generators: []model.Report{{Name: "a"}},
		Loads:      []model.Report{{Name: "b"}},
	}
	out := MergeArea(base, AreaConfig{Loads: []model.Report{{Name: "c"}}, Coordinator: CoordinatorConfig{Name: "static"}})
	assert.Equal(t, "north", out.Name)
	assert.Equal(t, "a", out.Generators[0].Name)
	assert.Equal(t, "c", out.Loads[0].Name)
	assert.Equal(t, "static", out.Coordinator.Name)
}

func TestNewMarket(t *testing.T) {
	c := Default()
	c.Areas = []AreaConfig{{
		Name:       "north",
		Generators: []model.Report{{Name: "hydro", FixedPrice: 5, Capacity: 200}},
		Loads:      []model.Report{{Name: "city", FixedPrice: 60, Capacity: 80}},
	}, {Name: "south"}}

	m, err := c.NewMarket(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, []string{"north", "south"}, m.Names())
	assert.Len(t, m.Area("north").Snapshot().Generators, 1)

	outs, err := m.ClearAll(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, outs["north"].State.Solution.Result.Accepted())
	assert.Equal(t, model.ResultNone, outs["south"].State.Solution.Result)

	_, ok := c.Area("south")
	assert.True(t, ok)
	_, ok = c.Area("west")
	assert.False(t, ok)
}
