package store

import (
	"context"

	"gemdrop/internal/game"
)

// AppendReward persists the reward computed for one closed session,
// write-once.
func (s *Store) AppendReward(ctx context.Context, rec game.RewardRecord) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO reward_records
		 (session_id, player_id, game_level_id, entry_cost, multiplier,
		  completion_percentage, payout, suspicious, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (session_id) DO NOTHING`,
		rec.SessionID, rec.PlayerID, rec.LevelID, rec.EntryCost, rec.Multiplier,
		rec.CompletionPercent, rec.Payout, rec.Suspicious, rec.CreatedAt)
	return err
}

type LeaderboardEntry struct {
	PlayerID    string  `json:"player_id"`
	Name        string  `json:"name"`
	TotalPayout float64 `json:"total_payout"`
	Sessions    int64   `json:"sessions"`
}

// Leaderboard aggregates payouts per player. Read-only, never touches a
// session's mutation path.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT r.player_id, coalesce(p.name, ''), sum(r.payout), count(*)
		 FROM reward_records r
		 LEFT JOIN players p ON p.id = r.player_id
		 GROUP BY r.player_id, p.name
		 ORDER BY sum(r.payout) DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.TotalPayout, &e.Sessions); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
