package replay

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeLedgerCSV(f, ledger)
}

func EncodeLedgerCSV(out io.Writer, ledger []LedgerRow) error {
	w := csv.NewWriter(out)

	header := []string{
		"index",
		"run_id",
		"interval_start_local",
		"interval_end_local",
		"interval_start_utc",
		"interval_end_utc",
		"area",
		"generators",
		"loads",
		"dq",
		"dp",
		"qd",
		"pd",
		"qs",
		"ps",
		"schedule",
		"flow",
		"result",
		"branch",
		"iterations",
		"error",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Index),
			r.RunID.String(),
			fmtTime(r.IntervalStartLocal),
			fmtTime(r.IntervalEndLocal),
			fmtTime(r.IntervalStartUTC),
			fmtTime(r.IntervalEndUTC),
			r.Area,
			strconv.Itoa(r.Generators),
			strconv.Itoa(r.Loads),
			fmtFloat(r.DQ),
			fmtFloat(r.DP),
			fmtFloat(r.QD),
			fmtFloat(r.PD),
			fmtFloat(r.QS),
			fmtFloat(r.PS),
			fmtFloat(r.Schedule),
			string(r.Flow),
			string(r.Result),
			string(r.Branch),
			strconv.Itoa(r.Iterations),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
