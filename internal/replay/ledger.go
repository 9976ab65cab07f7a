package replay

import (
	"time"

	"github.com/google/uuid"

	"market-clearing/internal/clearing"
	"market-clearing/internal/model"
)

// LedgerRow is one row of per-interval output.
// This is the primary artifact for "what cleared" in a replay.
type LedgerRow struct {
	Index int
	RunID uuid.UUID

	IntervalStartLocal time.Time
	IntervalEndLocal   time.Time
	IntervalStartUTC   time.Time
	IntervalEndUTC     time.Time

	Area       string
	Generators int
	Loads      int

	DQ float64
	DP float64

	QD       float64
	PD       float64
	QS       float64
	PS       float64
	Schedule float64
	Flow     model.Flow

	Result     model.ResultCode
	Branch     clearing.Branch
	Iterations int
	Error      string
}

type Result struct {
	RunID  uuid.UUID
	Area   string
	Ledger []LedgerRow
	Final  clearing.State
}
