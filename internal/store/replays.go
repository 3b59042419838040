package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"gemdrop/internal/session"
)

// AppendReplay persists the ordered action log of a closed session.
// Replays are write-once: a conflicting session id is left untouched.
func (s *Store) AppendReplay(ctx context.Context, rec session.ReplayRecord) error {
	actions, err := json.Marshal(rec.Actions)
	if err != nil {
		return err
	}
	flags, err := json.Marshal(rec.Flags)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO replays
		 (session_id, player_id, game_level_id, game_type, device_fingerprint,
		  started_at, ended_at, outcome, completion_percentage, suspicious, flags, actions)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (session_id) DO NOTHING`,
		rec.SessionID, rec.PlayerID, rec.LevelID, rec.GameType, rec.DeviceFingerprint,
		rec.StartedAt, rec.EndedAt, rec.Outcome, rec.CompletionPercent, rec.Suspicious, flags, actions)
	return err
}

func (s *Store) GetReplay(ctx context.Context, sessionID string) (session.ReplayRecord, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT session_id, player_id, game_level_id, game_type, coalesce(device_fingerprint, ''),
		        started_at, ended_at, outcome, completion_percentage, suspicious, flags, actions
		 FROM replays WHERE session_id = $1`, sessionID)
	var rec session.ReplayRecord
	var flags, actions []byte
	err := row.Scan(&rec.SessionID, &rec.PlayerID, &rec.LevelID, &rec.GameType, &rec.DeviceFingerprint,
		&rec.StartedAt, &rec.EndedAt, &rec.Outcome, &rec.CompletionPercent, &rec.Suspicious, &flags, &actions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ReplayRecord{}, ErrNotFound
		}
		return session.ReplayRecord{}, err
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &rec.Flags); err != nil {
			return session.ReplayRecord{}, err
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rec.Actions); err != nil {
			return session.ReplayRecord{}, err
		}
	}
	return rec, nil
}
