package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"market-clearing/internal/model"
)

func LoadIntervalsJSON(path string) (*model.IntervalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := DecodeIntervals(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// DecodeIntervals reads an interval dataset. Intervals without an area inherit
// the file's area.
func DecodeIntervals(r io.Reader) (*model.IntervalFile, error) {
	var file model.IntervalFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, err
	}
	for i := range file.Data {
		if file.Data[i].Area == "" {
			file.Data[i].Area = file.Area
		}
	}
	return &file, nil
}

// GroupByArea splits a dataset into area-keyed slices ordered by start time.
func GroupByArea(file *model.IntervalFile) map[string][]model.Interval {
	out := map[string][]model.Interval{}
	if file == nil {
		return out
	}
	for _, it := range file.Data {
		out[it.Area] = append(out[it.Area], it)
	}
	for _, intervals := range out {
		sort.SliceStable(intervals, func(i, j int) bool {
			return intervals[i].IntervalStartUTC.Before(intervals[j].IntervalStartUTC)
		})
	}
	return out
}
