package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"market-clearing/internal/clearing"
	"market-clearing/internal/coordination"
	"market-clearing/internal/curve"
	"market-clearing/internal/model"
)

var validate = validator.New()

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Market MarketConfig `yaml:"market"`
	Areas  []AreaConfig `yaml:"areas" validate:"dive"`
}

// MarketConfig holds the clearing settings shared by every area. Fields left
// out of the file keep their defaults.
type MarketConfig struct {
	PriceFloor        float64 `yaml:"price_floor"`
	PriceCap          float64 `yaml:"price_cap" validate:"gtfield=PriceFloor"`
	PricePrecision    int32   `yaml:"price_precision" validate:"gte=0,lte=12"`
	QuantityPrecision int32   `yaml:"quantity_precision" validate:"gte=0,lte=12"`

	MaxIterations      int     `yaml:"max_iterations" validate:"gte=1,lte=1000"`
	DefaultSupplySlope float64 `yaml:"default_supply_slope" validate:"gt=0"`
	DefaultDemandSlope float64 `yaml:"default_demand_slope" validate:"lt=0"`
	Tolerance          float64 `yaml:"tolerance" validate:"gte=0,lt=1"`

	// OnFailure is NONE, IGNORE, DUMP or IGNORE|DUMP.
	OnFailure string `yaml:"on_failure"`
	Verbose   bool   `yaml:"verbose"`
}

// AreaConfig describes one balancing area.
// If both AreaFile and inline resources are provided, the inline fields
// override the file.
type AreaConfig struct {
	Name        string            `yaml:"name" validate:"required"`
	AreaFile    string            `yaml:"area_file"`
	Generators  []model.Report    `yaml:"generators"`
	Loads       []model.Report    `yaml:"loads"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

type CoordinatorConfig struct {
	Name   string                    `yaml:"name" validate:"omitempty,oneof=static window"`
	Window coordination.WindowParams `yaml:"window"`
}

func Default() Config {
	d := clearing.DefaultConfig()
	return Config{
		Market: MarketConfig{
			PriceFloor:         d.Curve.PriceFloor,
			PriceCap:           d.Curve.PriceCap,
			PricePrecision:     d.Curve.PricePrecision,
			QuantityPrecision:  d.Curve.QuantityPrecision,
			MaxIterations:      d.MaxIterations,
			DefaultSupplySlope: d.DefaultSupplySlope,
			DefaultDemandSlope: d.DefaultDemandSlope,
			Tolerance:          d.Tolerance,
			OnFailure:          d.Policy.String(),
		},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	for i, a := range c.Areas {
		if a.AreaFile == "" {
			continue
		}
		loaded, err := LoadAreaFile(resolve(path, a.AreaFile))
		if err != nil {
			return nil, fmt.Errorf("area %q: %w", a.Name, err)
		}
		c.Areas[i] = MergeArea(loaded, a)
	}
	return &c, nil
}

// resolve prefers paths relative to the config file directory, but falls back
// to the provided path (relative to cwd) if that doesn't exist.
func resolve(configPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	cand := filepath.Join(filepath.Dir(configPath), p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	if _, err := model.ParseFailurePolicy(c.Market.OnFailure); err != nil {
		return fmt.Errorf("market.on_failure: %w", err)
	}
	seen := map[string]bool{}
	for _, a := range c.Areas {
		if seen[a.Name] {
			return fmt.Errorf("area %q defined twice", a.Name)
		}
		seen[a.Name] = true
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the area's resources and coordinator parameters.
func (a AreaConfig) Validate() error {
	for i, g := range a.Generators {
		if _, err := model.NewResource(model.SideSupply, g); err != nil {
			return fmt.Errorf("area %q generator %d: %w", a.Name, i, err)
		}
	}
	for i, l := range a.Loads {
		if _, err := model.NewResource(model.SideDemand, l); err != nil {
			return fmt.Errorf("area %q load %d: %w", a.Name, i, err)
		}
	}
	if _, err := a.Coordinator.Build(); err != nil {
		return fmt.Errorf("area %q coordinator: %w", a.Name, err)
	}
	return nil
}

func (c CoordinatorConfig) Build() (coordination.Coordinator, error) {
	return coordination.New(c.Name, c.Window)
}

// ToClearingConfig converts the market section into solver settings.
func (m MarketConfig) ToClearingConfig() (clearing.Config, error) {
	policy, err := model.ParseFailurePolicy(m.OnFailure)
	if err != nil {
		return clearing.Config{}, err
	}
	return clearing.Config{
		MaxIterations:      m.MaxIterations,
		DefaultSupplySlope: m.DefaultSupplySlope,
		DefaultDemandSlope: m.DefaultDemandSlope,
		Tolerance:          m.Tolerance,
		Policy:             policy,
		Verbose:            m.Verbose,
		Curve: curve.Options{
			PriceFloor:        m.PriceFloor,
			PriceCap:          m.PriceCap,
			PricePrecision:    m.PricePrecision,
			QuantityPrecision: m.QuantityPrecision,
		},
	}, nil
}

// NewMarket builds a market with every configured area and its resources
// registered.
func (c *Config) NewMarket(logger *slog.Logger) (*clearing.Market, error) {
	cc, err := c.Market.ToClearingConfig()
	if err != nil {
		return nil, err
	}
	m := clearing.NewMarket(cc, logger)
	for _, ac := range c.Areas {
		a := m.Area(ac.Name)
		for _, g := range ac.Generators {
			if err := a.AddGenerator(g); err != nil {
				return nil, fmt.Errorf("area %q: %w", ac.Name, err)
			}
		}
		for _, l := range ac.Loads {
			if err := a.AddLoad(l); err != nil {
				return nil, fmt.Errorf("area %q: %w", ac.Name, err)
			}
		}
	}
	return m, nil
}

// Area returns the named area config.
func (c *Config) Area(name string) (AreaConfig, bool) {
	for _, a := range c.Areas {
		if a.Name == name {
			return a, true
		}
	}
	return AreaConfig{}, false
}

type areaFileWrapper struct {
	Area AreaConfig `yaml:"area"`
}

// LoadAreaFile reads an area preset (e.g. configs/areas/*.yaml).
func LoadAreaFile(path string) (AreaConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AreaConfig{}, err
	}
	var w areaFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return AreaConfig{}, err
	}
	return w.Area, nil
}

// MergeArea overlays non-zero fields from override onto base.
// Resource lists replace rather than append.
func MergeArea(base, override AreaConfig) AreaConfig {
	out := base
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.AreaFile != "" {
		out.AreaFile = override.AreaFile
	}
	if len(override.Generators) > 0 {
		out.Generators = override.Generators
	}
	if len(override.Loads) > 0 {
		out.Loads = override.Loads
	}
	if override.Coordinator.Name != "" {
		out.Coordinator = override.Coordinator
	}
	return out
}
