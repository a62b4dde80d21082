package database

import "testing"

func TestDistanceToScore(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"identical vectors", 0.0, 1.0},
		{"orthogonal vectors", 1.0, 0.0},
		{"opposite vectors clamp to zero", 2.0, 0.0},
		{"partial match", 0.25, 0.75},
		{"negative distance clamps to one", -0.1, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DistanceToScore(tt.distance); got != tt.want {
				t.Errorf("DistanceToScore(%f) = %f, want %f", tt.distance, got, tt.want)
			}
		})
	}
}
