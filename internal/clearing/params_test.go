package clearing

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-clearing/internal/model"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAggregate(t *testing.T) {
	gens := []model.Report{
		{Name: "base", MarginalPrice: 0, FixedPrice: 10, Capacity: 100},
		{Name: "peaker-a", MarginalPrice: 2, Capacity: 30},
		{Name: "peaker-b", MarginalPrice: 5, Capacity: 50},
		{Name: "peaker-c", MarginalPrice: 3, Capacity: 10},
		{Name: "broken", MarginalPrice: -1, Capacity: 999},
	}
	loads := []model.Report{
		{Name: "city", MarginalPrice: 0, FixedPrice: 300, Capacity: 80},
		{Name: "town", MarginalPrice: 0, FixedPrice: 200, Capacity: 20},
		{Name: "smelter", MarginalPrice: -4, Capacity: 30},
		{Name: "pumps", MarginalPrice: -2, Capacity: 10},
		{Name: "odd", MarginalPrice: 1, Capacity: 999},
	}

	p, warnings := Aggregate(gens, loads, quiet())
	assert.Equal(t, Parameters{
		S: 5, D: -4,
		PMin: 180, PMax: 300,
		QW: 140, QG: 50,
		QU: 110, QR: 30,
	}, p)

	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, KindConfiguration, KindOf(w))
	}
	assert.Contains(t, warnings[0].Error(), "broken")
	assert.Contains(t, warnings[1].Error(), "odd")
}

func TestAggregateLowestBasePrice(t *testing.T) {
	gens := []model.Report{
		{MarginalPrice: 0, FixedPrice: 30, Capacity: 10},
		{MarginalPrice: 0, FixedPrice: 0, Capacity: 10},
		{MarginalPrice: 0, FixedPrice: 15, Capacity: 10},
	}
	p, warnings := Aggregate(gens, nil, quiet())
	assert.Empty(t, warnings)
	assert.Equal(t, 0.0, p.PMin)
	assert.Equal(t, 30.0, p.QW)
}

func TestAggregateEmpty(t *testing.T) {
	p, warnings := Aggregate(nil, nil, nil)
	assert.Empty(t, warnings)
	assert.True(t, p.Empty())
}

func TestDefaultsAndValidate(t *testing.T) {
	p := Parameters{PMin: 10, PMax: 50, QW: 10, QU: 10}
	p.ApplyDefaults(DefaultConfig())
	assert.Equal(t, 1e6, p.S)
	assert.Equal(t, -1e6, p.D)
	assert.NoError(t, p.Validate())

	p.PMax = p.PMin
	err := p.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "pmax", ve.Field)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestAggregateFirstMarginalUnitFoldsNothing(t *testing.T) {
	// The first responsive unit has no previous marginal block to fold, so
	// QW stays at the unresponsive capacity even though pmin > 0.
	gens := []model.Report{
		{Name: "base", FixedPrice: 10, Capacity: 100},
		{Name: "peaker", MarginalPrice: 2, Capacity: 30},
	}
	p, warnings := Aggregate(gens, nil, quiet())
	assert.Empty(t, warnings)
	assert.Equal(t, 100.0, p.QW)
	assert.Equal(t, 30.0, p.QG)
	assert.Equal(t, 2.0, p.S)
	assert.Equal(t, 70.0, p.PMax)

	loads := []model.Report{
		{Name: "city", FixedPrice: 100, Capacity: 50},
		{Name: "flex", MarginalPrice: -4, Capacity: 10},
	}
	p, warnings = Aggregate(nil, loads, quiet())
	assert.Empty(t, warnings)
	assert.Equal(t, 50.0, p.QU)
	assert.Equal(t, 10.0, p.QR)
	assert.Equal(t, -4.0, p.D)
	assert.Equal(t, 60.0, p.PMin)
}
