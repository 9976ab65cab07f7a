package clearing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"market-clearing/internal/curve"
	"market-clearing/internal/metrics"
	"market-clearing/internal/model"
)

// Area is one balancing area. Resource registration and clearing are
// serialized on the area's mutex; different areas share nothing.
type Area struct {
	name   string
	logger *slog.Logger

	mu         sync.Mutex
	solver     *Solver
	supply     *curve.Builder
	generators []model.Report
	loads      []model.Report
	state      State
}

// Dispatch is the supply each generator provides at the cleared price.
type Dispatch struct {
	Resource string  `json:"resource"`
	Quantity float64 `json:"quantity"`
	Fraction float64 `json:"fraction"`
}

// AreaOutcome is an Outcome attributed to an area's generators.
type AreaOutcome struct {
	Area string
	Outcome
	Dispatch []Dispatch
}

type AreaOption func(*areaOptions)

type areaOptions struct {
	logger *slog.Logger
	dump   io.Writer
}

func WithAreaLogger(l *slog.Logger) AreaOption {
	return func(o *areaOptions) { o.logger = l }
}

func WithAreaDumpWriter(w io.Writer) AreaOption {
	return func(o *areaOptions) { o.dump = w }
}

func NewArea(name string, cfg Config, opts ...AreaOption) *Area {
	o := areaOptions{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	logger := o.logger.With("area", name)
	solverOpts := []SolverOption{WithLogger(logger)}
	if o.dump != nil {
		solverOpts = append(solverOpts, WithDumpWriter(o.dump))
	}
	return &Area{
		name:   name,
		logger: logger,
		solver: NewSolver(cfg, solverOpts...),
		supply: curve.NewBuilder(cfg.Curve, logger),
	}
}

func (a *Area) Name() string { return a.name }

func (a *Area) AddGenerator(r model.Report) error {
	if _, err := model.NewResource(model.SideSupply, r); err != nil {
		return fmt.Errorf("generator %q: %w", r.Name, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generators = append(a.generators, r)
	return nil
}

func (a *Area) AddLoad(r model.Report) error {
	if _, err := model.NewResource(model.SideDemand, r); err != nil {
		return fmt.Errorf("load %q: %w", r.Name, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads = append(a.loads, r)
	return nil
}

// Snapshot returns copies of the registered resources.
func (a *Area) Snapshot() Input {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Input{
		Generators: append([]model.Report(nil), a.generators...),
		Loads:      append([]model.Report(nil), a.loads...),
	}
}

// State returns the last clearing state.
func (a *Area) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Clear clears the registered resources with the given exchange.
func (a *Area) Clear(ctx context.Context, ex model.Exchange) (AreaOutcome, error) {
	in := a.Snapshot()
	in.Exchange = ex
	return a.ClearInterval(ctx, in)
}

// ClearInterval clears an interval from explicit reports. The stored state is
// replaced by the outcome; a skipped interval keeps the previous quantities
// and prices.
func (a *Area) ClearInterval(ctx context.Context, in Input) (AreaOutcome, error) {
	if err := ctx.Err(); err != nil {
		return AreaOutcome{Area: a.name}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	out, err := a.solver.Clear(in, a.state.Solution)
	a.state = out.State
	sol := out.State.Solution

	metrics.ClearingDuration.WithLabelValues(a.name).Observe(time.Since(start).Seconds())
	metrics.ClearingsTotal.WithLabelValues(a.name, string(sol.Result)).Inc()
	if out.Err != nil {
		metrics.SolveErrorsTotal.WithLabelValues(string(KindOf(out.Err))).Inc()
	}
	switch sol.Branch {
	case BranchActiveSet:
		metrics.ActiveSetIterations.Observe(float64(sol.Iterations))
	case "":
	default:
		metrics.FallbacksTotal.WithLabelValues(string(sol.Branch)).Inc()
	}

	res := AreaOutcome{Area: a.name, Outcome: out}
	if !sol.Result.Accepted() {
		return res, err
	}
	metrics.ClearedPrice.WithLabelValues(a.name).Set(sol.PS)

	dispatch, derr := a.dispatch(in.Generators, sol)
	if derr != nil {
		a.logger.Warn("dispatch attribution failed", "err", derr)
	}
	res.Dispatch = dispatch
	return res, err
}

// SupplyCurve builds the aggregate curve of the registered generators.
func (a *Area) SupplyCurve() (*curve.Curve, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadSupply(a.generators); err != nil {
		return nil, err
	}
	return a.supply.Curve()
}

func (a *Area) loadSupply(gens []model.Report) error {
	a.supply.Reset()
	for _, g := range gens {
		c := ComponentOf(g)
		if err := c.Validate(); err != nil {
			// Out-of-sign generators are excluded from the curve as from
			// aggregation.
			continue
		}
		if _, err := a.supply.AddComponents(c); err != nil {
			return err
		}
	}
	return nil
}

// dispatch attributes the cleared supply quantity to generators along the
// supply curve at the cleared price.
func (a *Area) dispatch(gens []model.Report, sol Solution) ([]Dispatch, error) {
	if err := a.loadSupply(gens); err != nil {
		return nil, err
	}
	c, err := a.supply.Curve()
	if err != nil {
		return nil, err
	}
	if sol.QS <= 0 {
		return nil, nil
	}
	names := make([]string, 0, len(gens))
	for _, g := range gens {
		if ComponentOf(g).Validate() == nil {
			names = append(names, g.Name)
		}
	}
	var out []Dispatch
	for _, sh := range c.ComponentsAt(sol.PS, true, true, sol.QS) {
		out = append(out, Dispatch{Resource: names[sh.Index], Quantity: sh.Quantity, Fraction: sh.Fraction})
	}
	return out, nil
}

// ComponentOf converts a generator report into a curve component: capacity
// offered from the fixed price rising at the marginal price per MW.
func ComponentOf(r model.Report) curve.Component {
	return curve.Component{
		Quantity:      r.Capacity,
		FixedPrice:    r.FixedPrice,
		VariablePrice: r.MarginalPrice * r.Capacity,
	}
}

// Market clears a set of areas in parallel.
type Market struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	areas map[string]*Area
}

func NewMarket(cfg Config, logger *slog.Logger) *Market {
	if logger == nil {
		logger = slog.Default()
	}
	return &Market{cfg: cfg, logger: logger, areas: map[string]*Area{}}
}

// Area returns the named area, creating it on first use.
func (m *Market) Area(name string, opts ...AreaOption) *Area {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.areas[name]; ok {
		return a
	}
	opts = append([]AreaOption{WithAreaLogger(m.logger)}, opts...)
	a := NewArea(name, m.cfg, opts...)
	m.areas[name] = a
	return a
}

func (m *Market) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.areas))
	for n := range m.areas {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ClearAll clears every area in inputs in parallel. Areas without an input
// clear their registered resources with no exchange. The first error cancels
// the remaining areas.
func (m *Market) ClearAll(ctx context.Context, inputs map[string]Input) (map[string]AreaOutcome, error) {
	names := m.Names()
	for name := range inputs {
		if _, ok := m.lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownArea, name)
		}
	}

	results := make([]AreaOutcome, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		a, _ := m.lookup(name)
		in, ok := inputs[name]
		if !ok {
			in = a.Snapshot()
		}
		g.Go(func() error {
			out, err := a.ClearInterval(gctx, in)
			results[i] = out
			if err != nil {
				return fmt.Errorf("area %s: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()

	out := make(map[string]AreaOutcome, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, err
}

func (m *Market) lookup(name string) (*Area, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[name]
	return a, ok
}
