package game

import "testing"

func TestCalculateRewardBrackets(t *testing.T) {
	tests := []struct {
		name       string
		cost       float64
		completion float64
		want       float64
	}{
		{"high completion", 100, 85, 150},
		{"mid completion", 100, 60, 75},
		{"low completion", 100, 20, 30},
		{"boundary 80 takes upper bracket", 100, 80, 150},
		{"boundary 50 takes upper bracket", 100, 50, 75},
		{"just under 80", 100, 79.99, 75},
		{"just under 50", 100, 49.99, 30},
		{"zero completion", 100, 0, 30},
		{"full completion", 100, 100, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReward(tt.cost, tt.completion, 1.0, 2)
			if got != tt.want {
				t.Fatalf("CalculateReward(%v, %v) = %v, want %v", tt.cost, tt.completion, got, tt.want)
			}
		})
	}
}

func TestCalculateRewardMultiplierOnlyOnTopBracket(t *testing.T) {
	if got := CalculateReward(100, 90, 2.0, 2); got != 300 {
		t.Fatalf("top bracket with 2x multiplier = %v, want 300", got)
	}
	if got := CalculateReward(100, 60, 2.0, 2); got != 75 {
		t.Fatalf("mid bracket must ignore multiplier, got %v, want 75", got)
	}
	if got := CalculateReward(100, 20, 2.0, 2); got != 30 {
		t.Fatalf("low bracket must ignore multiplier, got %v, want 30", got)
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{0.125, 2, 0.13},
		{1.004, 2, 1.0},
		{2.5, 0, 3},
		{-0.0, 2, 0},
		{37.125, 2, 37.13},
	}
	for _, tt := range tests {
		if got := RoundHalfUp(tt.v, tt.places); got != tt.want {
			t.Fatalf("RoundHalfUp(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}
