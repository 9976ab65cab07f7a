package coordination

import (
	"fmt"
	"sort"

	"market-clearing/internal/model"
)

type Context struct {
	Index    int
	Interval model.Interval
}

// Coordinator decides the exchange an area clears with for one interval.
type Coordinator interface {
	Name() string
	Decide(ctx Context) model.Exchange
}

// Static passes through the exchange recorded on the interval itself.
type Static struct{}

func (Static) Name() string { return "static" }

func (Static) Decide(ctx Context) model.Exchange { return ctx.Interval.Exchange }

// Info describes a coordinator for listings.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters,omitempty"`
}

var registry = map[string]Info{
	"static": {
		Name:        "static",
		Description: "Uses the dq/dp recorded on each interval",
	},
	"window": {
		Name:        "window",
		Description: "Exports during a daily export window and imports during an import window",
		Parameters:  []string{"export_start", "export_end", "import_start", "import_end", "export_mw", "import_mw", "subsidy"},
	},
}

// Available lists the known coordinators sorted by name.
func Available() []Info {
	out := make([]Info, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New builds a coordinator by name. Window parameters are ignored by static.
func New(name string, p WindowParams) (Coordinator, error) {
	switch name {
	case "", "static":
		return Static{}, nil
	case "window":
		return NewWindow(p)
	default:
		return nil, fmt.Errorf("unknown coordinator %q", name)
	}
}
