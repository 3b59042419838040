package game

import (
	"fmt"
	"math/rand"
)

type GameType string

const (
	GameColorMatch  GameType = "color_match"
	GameTubeFilling GameType = "tube_filling"
)

func (g GameType) Valid() bool {
	return g == GameColorMatch || g == GameTubeFilling
}

// LevelConfig is one playable level as stored in the level catalogue.
type LevelConfig struct {
	ID               string   `json:"id"`
	GameType         GameType `json:"game_type"`
	LevelNumber      int      `json:"level_number"`
	EntryCost        float64  `json:"entry_cost"`
	RewardMultiplier float64  `json:"reward_multiplier"`
	MaxMoves         int      `json:"max_moves"`
}

// Board is the generated initial puzzle state for one session. Target is
// server-side only; sending it to the client would hand out the solution.
type Board struct {
	GameType GameType `json:"game_type"`
	Level    int      `json:"level"`
	Tier     int      `json:"tier"`
	Colors   int      `json:"colors"`
	Tubes    int      `json:"tubes"`
	Capacity int      `json:"capacity"`
	State    [][]int  `json:"tubes_state"`
	Target   [][]int  `json:"-"`
}

// GenerateBoard builds the starting state for a level, scaled by level
// number and the player's difficulty tier.
func GenerateBoard(rng *rand.Rand, gt GameType, level, tier int) (Board, error) {
	if level < 0 {
		level = 0
	}
	if tier < 1 {
		tier = 1
	}
	switch gt {
	case GameColorMatch:
		return generateColorMatch(rng, level, tier), nil
	case GameTubeFilling:
		return generateTubeFilling(rng, level, tier), nil
	default:
		return Board{}, fmt.Errorf("unknown game type %q", gt)
	}
}

func generateColorMatch(rng *rand.Rand, level, tier int) Board {
	colors := 3 + level
	if colors > 8 {
		colors = 8
	}
	tubes := 4 + level
	capacity := 4 + level/2 + (tier-1)/4

	distribution := make([]int, 0, colors*capacity)
	for c := 0; c < colors; c++ {
		for i := 0; i < capacity; i++ {
			distribution = append(distribution, c)
		}
	}
	rng.Shuffle(len(distribution), func(i, j int) {
		distribution[i], distribution[j] = distribution[j], distribution[i]
	})

	state := chunkTubes(distribution, tubes, capacity)
	return Board{
		GameType: GameColorMatch,
		Level:    level,
		Tier:     tier,
		Colors:   colors,
		Tubes:    tubes,
		Capacity: capacity,
		State:    state,
		Target:   solveTubes(state),
	}
}

func generateTubeFilling(rng *rand.Rand, level, tier int) Board {
	tubes := 3 + level
	liquids := 2 + level/2 + (tier-1)/4

	distribution := make([]int, 0, liquids*tubes)
	for l := 0; l < liquids; l++ {
		for i := 0; i < tubes; i++ {
			distribution = append(distribution, l)
		}
	}
	rng.Shuffle(len(distribution), func(i, j int) {
		distribution[i], distribution[j] = distribution[j], distribution[i]
	})

	state := chunkTubes(distribution, tubes, tubes)
	return Board{
		GameType: GameTubeFilling,
		Level:    level,
		Tier:     tier,
		Colors:   liquids,
		Tubes:    tubes,
		Capacity: tubes,
		State:    state,
		Target:   solveTubes(state),
	}
}

func chunkTubes(distribution []int, tubes, capacity int) [][]int {
	state := make([][]int, tubes)
	for i := 0; i < tubes; i++ {
		lo := i * capacity
		hi := lo + capacity
		if lo > len(distribution) {
			lo = len(distribution)
		}
		if hi > len(distribution) {
			hi = len(distribution)
		}
		tube := make([]int, hi-lo)
		copy(tube, distribution[lo:hi])
		state[i] = tube
	}
	return state
}

// solveTubes derives the per-tube sorted target state.
func solveTubes(state [][]int) [][]int {
	target := make([][]int, len(state))
	for i, tube := range state {
		sorted := make([]int, len(tube))
		copy(sorted, tube)
		for a := 1; a < len(sorted); a++ {
			for b := a; b > 0 && sorted[b] > sorted[b-1]; b-- {
				sorted[b], sorted[b-1] = sorted[b-1], sorted[b]
			}
		}
		target[i] = sorted
	}
	return target
}

// CompletionPercent scores a submitted final state against the target:
// the fraction of tubes matching exactly, as a percentage.
func CompletionPercent(submitted, target [][]int) float64 {
	if len(submitted) == 0 || len(target) == 0 || len(submitted) != len(target) {
		return 0
	}
	correct := 0
	for i, want := range target {
		if i < len(submitted) && equalTube(submitted[i], want) {
			correct++
		}
	}
	return float64(correct) / float64(len(target)) * 100
}

func equalTube(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
