package game

// DifficultyState is a player's per-game-type difficulty carry-over. It
// only changes after a session reaches a terminal state.
type DifficultyState struct {
	Tier    int `json:"tier"`
	Streak  int `json:"streak"`
	Retries int `json:"retries"`
}

// Outcome summarizes a terminal session for the difficulty controller.
type Outcome struct {
	Success           bool
	CompletionPercent float64
}

type DifficultyConfig struct {
	MinTier     int
	MaxTier     int
	StreakUp    int
	RetriesDown int
}

// InitialDifficulty is the state handed to a player with no history.
func InitialDifficulty(cfg DifficultyConfig) DifficultyState {
	return DifficultyState{Tier: cfg.MinTier}
}

// NextDifficulty applies one session outcome. A success streak reaching
// StreakUp raises the tier one step; retries reaching RetriesDown lower it
// one step. Tiers are clamped to [MinTier, MaxTier].
func NextDifficulty(cfg DifficultyConfig, prev DifficultyState, out Outcome) DifficultyState {
	next := prev
	if next.Tier < cfg.MinTier {
		next.Tier = cfg.MinTier
	}
	if out.Success {
		next.Streak++
		next.Retries = 0
		if cfg.StreakUp > 0 && next.Streak >= cfg.StreakUp {
			next.Streak = 0
			if next.Tier < cfg.MaxTier {
				next.Tier++
			}
		}
		return next
	}
	next.Streak = 0
	next.Retries++
	if cfg.RetriesDown > 0 && next.Retries >= cfg.RetriesDown {
		next.Retries = 0
		if next.Tier > cfg.MinTier {
			next.Tier--
		}
	}
	return next
}
