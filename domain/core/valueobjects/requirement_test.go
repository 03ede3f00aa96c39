package valueobjects

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "valuetree/pkg/errors"
)

func TestRequirement_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Requirement
		wantErr bool
	}{
		{name: "prefer high", req: Requirement{Kind: RequirementPreferHigh, Thresholds: []float64{10, 20}}},
		{name: "prefer high reversed", req: Requirement{Kind: RequirementPreferHigh, Thresholds: []float64{20, 10}}, wantErr: true},
		{name: "prefer low equal", req: Requirement{Kind: RequirementPreferLow, Thresholds: []float64{5, 5}}, wantErr: true},
		{name: "range", req: Requirement{Kind: RequirementRange, Thresholds: []float64{0, 10, 10, 20}}},
		{name: "range bad order", req: Requirement{Kind: RequirementRange, Thresholds: []float64{0, 15, 10, 20}}, wantErr: true},
		{name: "range wrong arity", req: Requirement{Kind: RequirementRange, Thresholds: []float64{0, 10, 20}}, wantErr: true},
		{name: "table", req: Requirement{Kind: RequirementTable, Points: []ScorePoint{{1, 0}, {2, 50}, {3, 100}}}},
		{name: "table single row", req: Requirement{Kind: RequirementTable, Points: []ScorePoint{{1, 0}}}, wantErr: true},
		{name: "table not increasing", req: Requirement{Kind: RequirementTable, Points: []ScorePoint{{2, 0}, {2, 50}}}, wantErr: true},
		{name: "table satisfaction too high", req: Requirement{Kind: RequirementTable, Points: []ScorePoint{{1, 0}, {2, 101}}}, wantErr: true},
		{name: "table satisfaction NaN", req: Requirement{Kind: RequirementTable, Points: []ScorePoint{{1, 0}, {2, math.NaN()}}}, wantErr: true},
		{name: "table offered infinite", req: Requirement{Kind: RequirementTable, Points: []ScorePoint{{1, 0}, {math.Inf(1), 50}}}, wantErr: true},
		{name: "threshold NaN", req: Requirement{Kind: RequirementPreferHigh, Thresholds: []float64{math.NaN(), 20}}, wantErr: true},
		{name: "unknown kind", req: Requirement{Kind: "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequirement_Satisfaction(t *testing.T) {
	high, err := NewPreferHigh(10, 20)
	require.NoError(t, err)
	low, err := NewPreferLow(10, 20)
	require.NoError(t, err)
	rng, err := NewRange(0, 10, 20, 40)
	require.NoError(t, err)
	table, err := NewTable([]ScorePoint{{Offered: 1, Satisfaction: 20}, {Offered: 3, Satisfaction: 60}, {Offered: 5, Satisfaction: 100}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     *Requirement
		offered float64
		want    float64
	}{
		{"high below", high, 5, 0},
		{"high middle", high, 15, 50},
		{"high above", high, 25, 100},
		{"low below", low, 5, 100},
		{"low middle", low, 12.5, 75},
		{"low above", low, 30, 0},
		{"range below", rng, -1, 0},
		{"range rising", rng, 5, 50},
		{"range plateau", rng, 15, 100},
		{"range falling", rng, 30, 50},
		{"range above", rng, 50, 0},
		{"table below first row", table, 0, 20},
		{"table on row", table, 3, 60},
		{"table between rows", table, 4, 80},
		{"table above last row", table, 9, 100},
		{"high NaN offer", high, math.NaN(), 0},
		{"table NaN offer", table, math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.req.Satisfaction(tt.offered), 1e-9)
		})
	}
}

func TestRequirement_Clone(t *testing.T) {
	orig, err := NewTable([]ScorePoint{{1, 0}, {2, 100}})
	require.NoError(t, err)

	c := orig.Clone()
	c.Points[0].Satisfaction = 50

	assert.Equal(t, float64(0), orig.Points[0].Satisfaction)
	assert.Nil(t, (*Requirement)(nil).Clone())
}
