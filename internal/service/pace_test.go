package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePace_FullEffortIsLinear(t *testing.T) {
	res, err := CalculatePace(100, "10.00", 100)
	require.NoError(t, err)

	assert.Equal(t, []PaceSplit{
		{Distance: 50, Time: "5.00"},
		{Distance: 100, Time: "10.00"},
	}, res.Splits)
	assert.InDelta(t, 10.0, res.TargetPace, 1e-9)
	assert.InDelta(t, res.TargetPace, res.TrainingPace, 1e-9)
}

func TestCalculatePace_ReducedEffort(t *testing.T) {
	// 400 in 1:20 is 5 units/s; at 80% that is 4 units/s.
	res, err := CalculatePace(400, "1:20.00", 80)
	require.NoError(t, err)

	require.Len(t, res.Splits, 8)
	assert.Equal(t, PaceSplit{Distance: 50, Time: "12.50"}, res.Splits[0])
	assert.Equal(t, PaceSplit{Distance: 400, Time: "100.00"}, res.Splits[7])
}

func TestCalculatePace_TotalNotOnInterval(t *testing.T) {
	res, err := CalculatePace(120, "24", 100)
	require.NoError(t, err)

	var distances []float64
	for _, s := range res.Splits {
		distances = append(distances, s.Distance)
	}
	assert.Equal(t, []float64{50, 100, 120}, distances)
	assert.Equal(t, "24.00", res.Splits[2].Time)
}

func TestCalculatePace_ShortDistance(t *testing.T) {
	res, err := CalculatePace(25, "12.5", 100)
	require.NoError(t, err)
	assert.Equal(t, []PaceSplit{{Distance: 25, Time: "12.50"}}, res.Splits)
}

func TestParseTargetTime(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"75.5", 75.5, false},
		{"1:15.50", 75.5, false},
		{"0:59.99", 59.99, false},
		{" 2:00 ", 120, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5", 0, true},
		{"1:60", 0, true},
		{"-1:10", 0, true},
		{"1:-10", 0, true},
		{"1:2:3", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTargetTime(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTargetTime)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculatePace_Validation(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		time     string
		effort   float64
		wantErr  error
	}{
		{"zero distance", 0, "10", 100, ErrInvalidDistance},
		{"negative distance", -100, "10", 100, ErrInvalidDistance},
		{"distance over limit", maxDistance + 1, "10", 100, ErrInvalidDistance},
		{"huge distance", 1e15, "10", 100, ErrInvalidDistance},
		{"zero effort", 100, "10", 0, ErrInvalidEffortPct},
		{"effort over 100", 100, "10", 100.5, ErrInvalidEffortPct},
		{"zero time", 100, "0", 100, ErrInvalidTargetTime},
		{"bad time", 100, "fast", 100, ErrInvalidTargetTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculatePace(tt.distance, tt.time, tt.effort)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, KindInvalidInput, KindOf(err))
		})
	}
}

func TestCalculatePace_LongestDistance(t *testing.T) {
	res, err := CalculatePaceSeconds(maxDistance, 10000, 100)
	require.NoError(t, err)
	require.Len(t, res.Splits, maxSplits)
	assert.Equal(t, PaceSplit{Distance: maxDistance, Time: "10000.00"}, res.Splits[maxSplits-1])
}
