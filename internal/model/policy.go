package model

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens when an interval clears with ERROR.
// Flags combine, e.g. PolicyIgnore|PolicyDump.
type FailurePolicy uint8

const (
	// PolicyNone halts on failure.
	PolicyNone FailurePolicy = 0
	// PolicyIgnore absorbs the failure and continues.
	PolicyIgnore FailurePolicy = 1 << 0
	// PolicyDump writes diagnostics for the failed solve.
	PolicyDump FailurePolicy = 1 << 1
)

func (p FailurePolicy) Has(flag FailurePolicy) bool { return p&flag != 0 }

func (p FailurePolicy) String() string {
	if p == PolicyNone {
		return "NONE"
	}
	var parts []string
	if p.Has(PolicyIgnore) {
		parts = append(parts, "IGNORE")
	}
	if p.Has(PolicyDump) {
		parts = append(parts, "DUMP")
	}
	return strings.Join(parts, "|")
}

// ParseFailurePolicy parses "NONE", "IGNORE", "DUMP" or a "|" separated
// combination. The empty string is PolicyNone.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	var p FailurePolicy
	for _, part := range strings.Split(s, "|") {
		switch strings.ToUpper(strings.TrimSpace(part)) {
		case "", "NONE":
		case "IGNORE":
			p |= PolicyIgnore
		case "DUMP":
			p |= PolicyDump
		default:
			return PolicyNone, fmt.Errorf("invalid failure policy %q", part)
		}
	}
	return p, nil
}

func (p FailurePolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *FailurePolicy) UnmarshalText(b []byte) error {
	v, err := ParseFailurePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
