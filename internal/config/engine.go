package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// EngineConfig carries every tunable of the session engine. Anti-cheat
// thresholds are deliberately env-driven rather than hard-coded; the
// defaults below are starting points, not calibrated values.
type EngineConfig struct {
	JoinTimeout       time.Duration `env:"JOIN_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	KeepaliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"10s"`

	// How long a disconnected session may be resumed before it is
	// abandoned. Zero disables resume: any disconnect abandons at once.
	ResumeGrace time.Duration `env:"RESUME_GRACE" envDefault:"0s"`

	// How long a closed session stays addressable so a repeated exit
	// returns the original result.
	ClosedRetention time.Duration `env:"CLOSED_RETENTION" envDefault:"2m"`

	// Anti-cheat thresholds.
	SpeedFloor       time.Duration `env:"ANTICHEAT_SPEED_FLOOR" envDefault:"40ms"`
	SpeedWindow      int           `env:"ANTICHEAT_SPEED_WINDOW" envDefault:"8"`
	SpeedStrikeLimit int           `env:"ANTICHEAT_SPEED_STRIKES" envDefault:"3"`
	RepeatWindow     int           `env:"ANTICHEAT_REPEAT_WINDOW" envDefault:"10"`
	RepeatThreshold  int           `env:"ANTICHEAT_REPEAT_THRESHOLD" envDefault:"8"`
	FlagLimit        int           `env:"ANTICHEAT_FLAG_LIMIT" envDefault:"3"`
	SuspiciousWeight float64       `env:"ANTICHEAT_SUSPICIOUS_WEIGHT" envDefault:"0.5"`
	ViewportSlackPx  int           `env:"ANTICHEAT_VIEWPORT_SLACK_PX" envDefault:"0"`

	// Reward calculation.
	RewardMultiplier float64 `env:"REWARD_MULTIPLIER" envDefault:"1.0"`
	RewardPrecision  int     `env:"REWARD_PRECISION" envDefault:"2"`

	// Difficulty controller bounds.
	DifficultyMinTier     int `env:"DIFFICULTY_MIN_TIER" envDefault:"1"`
	DifficultyMaxTier     int `env:"DIFFICULTY_MAX_TIER" envDefault:"10"`
	DifficultyStreakUp    int `env:"DIFFICULTY_STREAK_UP" envDefault:"3"`
	DifficultyRetriesDown int `env:"DIFFICULTY_RETRIES_DOWN" envDefault:"3"`
}

func LoadEngine() (EngineConfig, error) {
	var cfg EngineConfig
	err := env.Parse(&cfg)
	return cfg, err
}
