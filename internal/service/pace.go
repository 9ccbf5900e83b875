package service

import (
	"math"
	"strconv"
	"strings"
)

const (
	// splitInterval is the spacing of the standard split points.
	splitInterval = 50
	// maxSplits caps the table length, and with it the accepted distance.
	maxSplits   = 1000
	maxDistance = splitInterval * maxSplits
)

// PaceSplit is the predicted time to reach Distance at training pace.
type PaceSplit struct {
	Distance float64 `json:"distance"`
	Time     string  `json:"time"` // seconds, two decimals
}

// PaceResult is the split table for one target.
type PaceResult struct {
	TotalDistance float64     `json:"totalDistance"`
	TargetSeconds float64     `json:"targetSeconds"`
	EffortPercent float64     `json:"effortPercent"`
	TargetPace    float64     `json:"targetPace"`   // distance units per second
	TrainingPace  float64     `json:"trainingPace"` // TargetPace scaled by effort
	Splits        []PaceSplit `json:"splits"`
}

// ParseTargetTime accepts bare seconds ("75.5") or "MM:SS.ms" ("1:15.50") and
// returns the total in seconds.
func ParseTargetTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidTargetTime
	}

	if !strings.Contains(s, ":") {
		secs, err := parseNonNegative(s)
		if err != nil {
			return 0, err
		}
		return secs, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, ErrInvalidTargetTime
	}
	minutes, err := parseNonNegative(parts[0])
	if err != nil {
		return 0, err
	}
	seconds, err := parseNonNegative(parts[1])
	if err != nil {
		return 0, err
	}
	if seconds >= 60 {
		return 0, ErrInvalidTargetTime
	}
	return minutes*60 + seconds, nil
}

func parseNonNegative(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidTargetTime
	}
	return v, nil
}

// CalculatePace converts a target time over totalDistance into split times at
// every multiple of 50 below the total, plus the total itself, run at
// effortPercent of target pace.
func CalculatePace(totalDistance float64, targetTime string, effortPercent float64) (*PaceResult, error) {
	seconds, err := ParseTargetTime(targetTime)
	if err != nil {
		return nil, err
	}
	return CalculatePaceSeconds(totalDistance, seconds, effortPercent)
}

// CalculatePaceSeconds is CalculatePace with the target time already in seconds.
func CalculatePaceSeconds(totalDistance, targetSeconds, effortPercent float64) (*PaceResult, error) {
	if math.IsNaN(targetSeconds) || math.IsInf(targetSeconds, 0) || targetSeconds <= 0 {
		return nil, ErrInvalidTargetTime
	}
	if math.IsNaN(totalDistance) || math.IsInf(totalDistance, 0) || totalDistance <= 0 || totalDistance > maxDistance {
		return nil, ErrInvalidDistance
	}
	if math.IsNaN(effortPercent) || effortPercent <= 0 || effortPercent > 100 {
		return nil, ErrInvalidEffortPct
	}

	targetPace := totalDistance / targetSeconds
	trainingPace := targetPace * (effortPercent / 100)
	if math.IsNaN(trainingPace) || math.IsInf(trainingPace, 0) || trainingPace <= 0 {
		return nil, ErrInvalidPace
	}

	points := splitPoints(totalDistance)
	splits := make([]PaceSplit, len(points))
	for i, d := range points {
		splits[i] = PaceSplit{
			Distance: d,
			Time:     strconv.FormatFloat(d/trainingPace, 'f', 2, 64),
		}
	}

	return &PaceResult{
		TotalDistance: totalDistance,
		TargetSeconds: targetSeconds,
		EffortPercent: effortPercent,
		TargetPace:    targetPace,
		TrainingPace:  trainingPace,
		Splits:        splits,
	}, nil
}

// splitPoints returns the ascending multiples of splitInterval strictly below
// total, followed by total.
func splitPoints(total float64) []float64 {
	var points []float64
	for k := 1; float64(k*splitInterval) < total; k++ {
		points = append(points, float64(k*splitInterval))
	}
	return append(points, total)
}
