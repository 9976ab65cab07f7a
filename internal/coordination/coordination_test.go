package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-clearing/internal/model"
)

func at(h, m int) Context {
	start := time.Date(2024, 7, 1, h, m, 0, 0, time.UTC)
	return Context{Interval: model.Interval{IntervalStartLocal: start, Exchange: model.Exchange{DQ: 3, DP: 1}}}
}

func TestStatic(t *testing.T) {
	assert.Equal(t, model.Exchange{DQ: 3, DP: 1}, Static{}.Decide(at(4, 0)))
}

func TestWindow(t *testing.T) {
	w, err := NewWindow(WindowParams{
		ExportStart: "22:00",
		ExportEnd:   "06:00",
		ImportStart: "17:00",
		ImportEnd:   "21:00",
		ExportMW:    25,
		ImportMW:    -10,
		Subsidy:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, model.Exchange{DQ: 25, DP: 2}, w.Decide(at(23, 30)))
	assert.Equal(t, model.Exchange{DQ: 25, DP: 2}, w.Decide(at(5, 59)))
	assert.Equal(t, model.Exchange{DQ: -10, DP: 2}, w.Decide(at(17, 0)))
	assert.Equal(t, model.Exchange{}, w.Decide(at(21, 0)))
	assert.Equal(t, model.Exchange{}, w.Decide(at(12, 0)))
}

func TestWindowDefaultsToZeroLengthImport(t *testing.T) {
	w, err := NewWindow(WindowParams{ExportStart: "01:00", ImportStart: "08:00", ExportMW: 5, ImportMW: 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, w.Decide(at(7, 0)).DQ)
	assert.Equal(t, 0.0, w.Decide(at(8, 0)).DQ)
}

func TestWindowRejectsBadTimes(t *testing.T) {
	for _, p := range []WindowParams{
		{ExportStart: "25:00", ImportStart: "08:00"},
		{ExportStart: "01:00", ImportStart: "8"},
		{ExportStart: "01:00", ImportStart: "08:00", ExportEnd: "aa:00"},
		{ExportStart: "01:00", ImportStart: "08:00", ImportEnd: "09:61"},
		{ImportStart: "08:00"},
	} {
		_, err := NewWindow(p)
		assert.Error(t, err, "%+v", p)
	}
}

func TestSpanContains(t *testing.T) {
	cases := []struct {
		name string
		s    span
		in   []int // hours inside
		out  []int // hours outside
	}{
		{"plain", span{60, 180}, []int{1, 2}, []int{0, 3}},
		{"wraps midnight", span{22 * 60, 2 * 60}, []int{22, 23, 0, 1}, []int{2, 12, 21}},
		{"empty", span{300, 300}, nil, []int{4, 5, 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, h := range tc.in {
				assert.True(t, tc.s.contains(at(h, 0).Interval.IntervalStartLocal), "hour %d", h)
			}
			for _, h := range tc.out {
				assert.False(t, tc.s.contains(at(h, 0).Interval.IntervalStartLocal), "hour %d", h)
			}
		})
	}
}

func TestNew(t *testing.T) {
	c, err := New("", WindowParams{})
	require.NoError(t, err)
	assert.Equal(t, "static", c.Name())

	c, err = New("window", WindowParams{ExportStart: "00:00", ImportStart: "12:00"})
	require.NoError(t, err)
	assert.Equal(t, "window", c.Name())

	_, err = New("oracle", WindowParams{})
	assert.Error(t, err)

	names := []string{}
	for _, info := range Available() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"static", "window"}, names)
}
