package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gemdrop/internal/game"
	"gemdrop/internal/session"
)

// Level implements session.LevelSource. An unknown or inactive level is
// an invalid join target.
func (s *Store) Level(ctx context.Context, levelID string) (game.LevelConfig, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT id, game_type, level_number, entry_cost, reward_multiplier, max_moves
		 FROM game_levels WHERE id = $1 AND status = 'active'`, levelID)
	var lc game.LevelConfig
	if err := row.Scan(&lc.ID, &lc.GameType, &lc.LevelNumber, &lc.EntryCost, &lc.RewardMultiplier, &lc.MaxMoves); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.LevelConfig{}, fmt.Errorf("%w: level %s", session.ErrInvalidLevel, levelID)
		}
		return game.LevelConfig{}, err
	}
	return lc, nil
}

func (s *Store) ListLevels(ctx context.Context) ([]game.LevelConfig, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, game_type, level_number, entry_cost, reward_multiplier, max_moves
		 FROM game_levels WHERE status = 'active' ORDER BY game_type, level_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []game.LevelConfig
	for rows.Next() {
		var lc game.LevelConfig
		if err := rows.Scan(&lc.ID, &lc.GameType, &lc.LevelNumber, &lc.EntryCost, &lc.RewardMultiplier, &lc.MaxMoves); err != nil {
			return nil, err
		}
		levels = append(levels, lc)
	}
	return levels, rows.Err()
}

func (s *Store) CreateLevel(ctx context.Context, lc game.LevelConfig) (string, error) {
	id := lc.ID
	if id == "" {
		id = NewID()
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO game_levels (id, game_type, level_number, entry_cost, reward_multiplier, max_moves, status)
		 VALUES ($1,$2,$3,$4,$5,$6,'active')`,
		id, lc.GameType, lc.LevelNumber, lc.EntryCost, lc.RewardMultiplier, lc.MaxMoves)
	return id, err
}

// EnsureDefaultLevels seeds a starter catalogue so a fresh deployment is
// playable.
func (s *Store) EnsureDefaultLevels(ctx context.Context) error {
	var count int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM game_levels`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults := []game.LevelConfig{
		{GameType: game.GameColorMatch, LevelNumber: 1, EntryCost: 100, RewardMultiplier: 1.0, MaxMoves: 100},
		{GameType: game.GameColorMatch, LevelNumber: 2, EntryCost: 200, RewardMultiplier: 1.0, MaxMoves: 120},
		{GameType: game.GameTubeFilling, LevelNumber: 1, EntryCost: 100, RewardMultiplier: 1.0, MaxMoves: 100},
		{GameType: game.GameTubeFilling, LevelNumber: 2, EntryCost: 250, RewardMultiplier: 1.2, MaxMoves: 150},
	}
	for _, lc := range defaults {
		if _, err := s.CreateLevel(ctx, lc); err != nil {
			return err
		}
	}
	return nil
}
