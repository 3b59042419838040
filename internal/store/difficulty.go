package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"gemdrop/internal/game"
)

// Difficulty implements session.DifficultyStore. The second return is
// false for a player with no history for the game type.
func (s *Store) Difficulty(ctx context.Context, playerID string, gt game.GameType) (game.DifficultyState, bool, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT tier, streak, retries FROM difficulty_states WHERE player_id = $1 AND game_type = $2`,
		playerID, gt)
	var st game.DifficultyState
	if err := row.Scan(&st.Tier, &st.Streak, &st.Retries); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.DifficultyState{}, false, nil
		}
		return game.DifficultyState{}, false, err
	}
	return st, true, nil
}

func (s *Store) SaveDifficulty(ctx context.Context, playerID string, gt game.GameType, st game.DifficultyState) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO difficulty_states (player_id, game_type, tier, streak, retries, updated_at)
		 VALUES ($1,$2,$3,$4,$5, now())
		 ON CONFLICT (player_id, game_type)
		 DO UPDATE SET tier = $3, streak = $4, retries = $5, updated_at = now()`,
		playerID, gt, st.Tier, st.Streak, st.Retries)
	return err
}
