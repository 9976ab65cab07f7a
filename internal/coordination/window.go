package coordination

import (
	"fmt"
	"math"
	"strings"
	"time"

	"market-clearing/internal/model"
)

// WindowParams describes a daily time-window exchange:
// - Export ExportMW during [ExportStart, ExportEnd)
// - Import ImportMW during [ImportStart, ImportEnd)
// - Otherwise no exchange
//
// Times are interpreted in the interval_start_local timezone. Subsidy is the
// price difference applied while either window is open.
type WindowParams struct {
	ExportStart string  `json:"export_start" yaml:"export_start"` // "HH:MM"
	ExportEnd   string  `json:"export_end" yaml:"export_end"`     // "HH:MM" (optional; default = ImportStart)
	ImportStart string  `json:"import_start" yaml:"import_start"` // "HH:MM"
	ImportEnd   string  `json:"import_end" yaml:"import_end"`     // "HH:MM" (optional; default = ImportStart => zero-length)
	ExportMW    float64 `json:"export_mw" yaml:"export_mw"`       // magnitude; treated as export (positive dq)
	ImportMW    float64 `json:"import_mw" yaml:"import_mw"`       // magnitude; treated as import (negative dq)
	Subsidy     float64 `json:"subsidy" yaml:"subsidy"`
}

type Window struct {
	Params WindowParams

	export span
	imprt  span
}

// span is a daily [start, end) range in minutes after midnight. It wraps
// across midnight when start > end and is empty when start == end.
type span struct{ start, end int }

func (s span) contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case s.start == s.end:
		return false
	case s.start < s.end:
		return m >= s.start && m < s.end
	default:
		return m >= s.start || m < s.end
	}
}

// clock parses "HH:MM" into minutes after midnight. An empty value yields
// def.
func clock(field, v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" && def >= 0 {
		return def, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid time %q, expected HH:MM", field, v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func NewWindow(p WindowParams) (*Window, error) {
	es, err := clock("export_start", p.ExportStart, -1)
	if err != nil {
		return nil, err
	}
	is, err := clock("import_start", p.ImportStart, -1)
	if err != nil {
		return nil, err
	}
	ee, err := clock("export_end", p.ExportEnd, is)
	if err != nil {
		return nil, err
	}
	ie, err := clock("import_end", p.ImportEnd, is)
	if err != nil {
		return nil, err
	}
	return &Window{Params: p, export: span{es, ee}, imprt: span{is, ie}}, nil
}

func (w *Window) Name() string { return "window" }

func (w *Window) Decide(ctx Context) model.Exchange {
	t := ctx.Interval.IntervalStartLocal
	switch {
	case w.export.contains(t):
		return model.Exchange{DQ: math.Abs(w.Params.ExportMW), DP: w.Params.Subsidy}
	case w.imprt.contains(t):
		return model.Exchange{DQ: -math.Abs(w.Params.ImportMW), DP: w.Params.Subsidy}
	}
	return model.Exchange{}
}
