package store

import (
	"context"

	"gemdrop/internal/session"
)

func (s *Store) AppendSecurityEvent(ctx context.Context, ev session.SecurityEvent) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO security_events (id, session_id, player_id, kind, detail, raised_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), ev.SessionID, ev.PlayerID, ev.Kind, ev.Detail, ev.RaisedAt)
	return err
}
