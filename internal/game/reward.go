package game

import (
	"math"
	"time"
)

// RewardRecord is the immutable output of the reward calculation for one
// closed session.
type RewardRecord struct {
	SessionID         string    `json:"session_id"`
	PlayerID          string    `json:"player_id"`
	LevelID           string    `json:"game_level_id"`
	EntryCost         float64   `json:"entry_cost"`
	Multiplier        float64   `json:"multiplier"`
	CompletionPercent float64   `json:"completion_percentage"`
	Payout            float64   `json:"payout"`
	Suspicious        bool      `json:"suspicious"`
	CreatedAt         time.Time `json:"created_at"`
}

// CalculateReward maps completion percentage to payout. Boundary values
// resolve to the higher bracket; the multiplier applies only to full
// completions. The result is rounded half-up to precision decimal places.
func CalculateReward(entryCost, completionPct, multiplier float64, precision int) float64 {
	var payout float64
	switch {
	case completionPct >= 80:
		payout = entryCost * 1.5 * multiplier
	case completionPct >= 50:
		payout = entryCost * 0.75
	default:
		payout = entryCost * 0.3
	}
	return RoundHalfUp(payout, precision)
}

// RoundHalfUp rounds to places decimal places with ties going up, the
// ledger's convention.
func RoundHalfUp(v float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	scale := math.Pow(10, float64(places))
	return math.Floor(v*scale+0.5) / scale
}
