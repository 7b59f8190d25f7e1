package settlement

import (
	"math"
	"testing"
)

func TestPnL(t *testing.T) {
	tests := []struct {
		name       string
		correct    bool
		confidence float64
		want       float64
	}{
		{"correct at 0.6 pays implied odds", true, 0.6, 66.67},
		{"correct at 0.5 doubles the stake", true, 0.5, 100.00},
		{"correct at full confidence pays nothing", true, 1.0, 0.00},
		{"correct at 0.75", true, 0.75, 33.33},
		{"incorrect loses the stake", false, 0.95, -100.00},
		{"incorrect at low confidence still loses the stake", false, 0.5, -100.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PnL(tt.correct, tt.confidence); got != tt.want {
				t.Errorf("PnL(%v, %v) = %v, want %v", tt.correct, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestBrier(t *testing.T) {
	tests := []struct {
		name       string
		correct    bool
		confidence float64
		want       float64
	}{
		{"confident and correct", true, 0.95, 0.0025},
		{"hedged and incorrect", false, 0.6, 0.36},
		{"coin flip either way", true, 0.5, 0.25},
		{"certain and correct is perfect", true, 1.0, 0},
		{"certain and incorrect is worst", false, 1.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Brier(tt.correct, tt.confidence)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Brier(%v, %v) = %v, want %v", tt.correct, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestPoints(t *testing.T) {
	if Points(true) != 1 {
		t.Error("correct pick should award 1 point")
	}
	if Points(false) != 0 {
		t.Error("incorrect pick should award 0 points")
	}
}
