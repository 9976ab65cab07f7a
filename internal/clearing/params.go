package clearing

import (
	"log/slog"
	"math"

	"market-clearing/internal/model"
)

// Parameters are the aggregated curve parameters of one area and interval.
//
//   - S > 0: marginal supply slope, D < 0: marginal demand slope
//   - PMin, PMax: price range ($/MWh)
//   - QW: unresponsive and inframarginal supply, QG: marginal supply (MW)
//   - QU: unresponsive and inframarginal demand, QR: marginal demand (MW)
//   - DQ: scheduled net export, DP: price subsidy
type Parameters struct {
	S    float64 `json:"s"`
	D    float64 `json:"d"`
	PMin float64 `json:"pmin"`
	PMax float64 `json:"pmax"`
	QW   float64 `json:"qw"`
	QG   float64 `json:"qg"`
	QU   float64 `json:"qu"`
	QR   float64 `json:"qr"`
	DQ   float64 `json:"dq"`
	DP   float64 `json:"dp"`
}

func (p Parameters) Supply() float64 { return p.QW + p.QG }

func (p Parameters) Demand() float64 { return p.QU + p.QR }

// Empty reports an interval with no capacity on either side.
func (p Parameters) Empty() bool { return p.Supply() == 0 && p.Demand() == 0 }

func (p Parameters) finite() bool {
	for _, v := range []float64{p.S, p.D, p.PMin, p.PMax, p.QW, p.QG, p.QU, p.QR, p.DQ, p.DP} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ApplyDefaults replaces missing slopes with near-vertical ones.
func (p *Parameters) ApplyDefaults(cfg Config) {
	if p.S == 0 {
		p.S = cfg.DefaultSupplySlope
	}
	if p.D == 0 {
		p.D = cfg.DefaultDemandSlope
	}
}

func (p Parameters) Validate() error {
	if !p.finite() {
		return &ValidationError{Field: "parameters", Reason: "non-finite value"}
	}
	if p.S <= 0 {
		return &ValidationError{Field: "s", Reason: "must be > 0"}
	}
	if p.D >= 0 {
		return &ValidationError{Field: "d", Reason: "must be < 0"}
	}
	if p.PMax <= p.PMin {
		return &ValidationError{Field: "pmax", Reason: "must be greater than pmin"}
	}
	return nil
}

// Aggregate folds resource reports into curve parameters. Generators are read
// before loads, in order. Resources with an out-of-sign marginal price are
// skipped and reported as ConfigurationErrors.
func Aggregate(generators, loads []model.Report, logger *slog.Logger) (Parameters, []error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		p        Parameters
		warnings []error
		baseSeen bool
	)
	for i, g := range generators {
		switch {
		case g.MarginalPrice == 0:
			if !baseSeen || g.FixedPrice < p.PMin {
				p.PMin = g.FixedPrice
			}
			baseSeen = true
			p.QW += g.Capacity
			logger.Debug("unresponsive supply", "resource", g.Name, "pmin", p.PMin, "qw", p.QW)
		case g.MarginalPrice > 0:
			if g.MarginalPrice > p.S {
				// The previous marginal unit becomes inframarginal.
				p.QW += p.QG
				p.S = g.MarginalPrice
				p.QG = g.Capacity
				p.PMax = p.PMin + p.S*p.QG
				logger.Debug("marginal supply", "resource", g.Name, "s", p.S, "qw", p.QW, "qg", p.QG, "pmax", p.PMax)
			} else {
				p.QW += g.Capacity
				logger.Debug("inframarginal supply", "resource", g.Name, "qw", p.QW)
			}
		default:
			err := &ConfigurationError{Side: "generator", Index: i, Resource: g.Name, Reason: "negative marginal price"}
			logger.Warn("excluding resource", "err", err, "marginal_price", g.MarginalPrice)
			warnings = append(warnings, err)
		}
	}

	var loadSeen bool
	for i, l := range loads {
		switch {
		case l.MarginalPrice == 0:
			if !loadSeen || l.FixedPrice > p.PMax {
				p.PMax = l.FixedPrice
			}
			loadSeen = true
			p.QU += l.Capacity
			logger.Debug("unresponsive demand", "resource", l.Name, "pmax", p.PMax, "qu", p.QU)
		case l.MarginalPrice < 0:
			if l.MarginalPrice < p.D {
				p.QU += p.QR
				p.D = l.MarginalPrice
				p.QR = l.Capacity
				p.PMin = p.PMax + p.D*p.QR
				logger.Debug("marginal demand", "resource", l.Name, "d", p.D, "qu", p.QU, "qr", p.QR, "pmin", p.PMin)
			} else {
				p.QU += l.Capacity
				logger.Debug("inframarginal demand", "resource", l.Name, "qu", p.QU)
			}
		default:
			err := &ConfigurationError{Side: "load", Index: i, Resource: l.Name, Reason: "positive marginal price"}
			logger.Warn("excluding resource", "err", err, "marginal_price", l.MarginalPrice)
			warnings = append(warnings, err)
		}
	}
	return p, warnings
}
