package session

import (
	"context"
	"time"

	"gemdrop/internal/game"
)

// Identity is a verified player as returned by the authentication
// collaborator.
type Identity struct {
	PlayerID    string
	DisplayName string
}

type Authenticator interface {
	// Authenticate resolves a token plus device fingerprint to a player
	// identity, or fails with ErrAuthRejected.
	Authenticate(ctx context.Context, token, deviceFingerprint string) (Identity, error)
}

type LevelSource interface {
	Level(ctx context.Context, levelID string) (game.LevelConfig, error)
}

// Persistence is the append-only sink for session outcomes.
type Persistence interface {
	AppendReplay(ctx context.Context, rec ReplayRecord) error
	AppendReward(ctx context.Context, rec game.RewardRecord) error
}

type DifficultyStore interface {
	Difficulty(ctx context.Context, playerID string, gt game.GameType) (game.DifficultyState, bool, error)
	SaveDifficulty(ctx context.Context, playerID string, gt game.GameType, st game.DifficultyState) error
}

// Wallet debits the entry cost at join and credits the payout at close.
type Wallet interface {
	DebitEntry(ctx context.Context, playerID, sessionID string, amount float64) error
	CreditPayout(ctx context.Context, playerID, sessionID string, amount float64) error
}

// SecurityEvent is one suspicious-session notification pushed to the
// security collaborator.
type SecurityEvent struct {
	SessionID string    `json:"session_id"`
	PlayerID  string    `json:"player_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	RaisedAt  time.Time `json:"raised_at"`
}

type SecuritySink interface {
	PublishFlag(ctx context.Context, ev SecurityEvent) error
}

// Deps bundles every external collaborator the manager needs. All calls
// through it are retried at most once before the enclosing operation
// reports failure.
type Deps struct {
	Auth       Authenticator
	Levels     LevelSource
	Persist    Persistence
	Difficulty DifficultyStore
	Wallet     Wallet
	Security   SecuritySink
}

// retryOnce runs op and, on failure, retries exactly once.
func retryOnce(ctx context.Context, op func(context.Context) error) error {
	if err := op(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return op(ctx)
	}
	return nil
}
