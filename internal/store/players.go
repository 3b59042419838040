package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"gemdrop/internal/session"
)

type Player struct {
	ID        string
	Name      string
	TokenHash string
	Status    string
	Balance   float64
	CreatedAt time.Time
}

// Authenticate implements session.Authenticator: token hash lookup, only
// active players pass. The first device fingerprint a player presents is
// bound to the account; later logins from a different device are rejected.
// Clients that report no fingerprint skip the device check.
func (s *Store) Authenticate(ctx context.Context, token, deviceFingerprint string) (session.Identity, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT id, name, status, coalesce(device_fingerprint, '') FROM players WHERE token_hash = $1`,
		HashToken(token))
	var id, name, status, boundDevice string
	if err := row.Scan(&id, &name, &status, &boundDevice); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Identity{}, session.ErrAuthRejected
		}
		return session.Identity{}, err
	}
	if status != "active" {
		return session.Identity{}, session.ErrAuthRejected
	}
	switch {
	case deviceFingerprint == "":
	case boundDevice == "":
		if _, err := s.Pool.Exec(ctx,
			`UPDATE players SET device_fingerprint = $2 WHERE id = $1 AND device_fingerprint IS NULL`,
			id, deviceFingerprint); err != nil {
			return session.Identity{}, err
		}
	case boundDevice != deviceFingerprint:
		return session.Identity{}, session.ErrAuthRejected
	}
	return session.Identity{PlayerID: id, DisplayName: name}, nil
}

func (s *Store) CreatePlayer(ctx context.Context, name, token string, balance float64) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO players (id, name, token_hash, status, balance) VALUES ($1,$2,$3,'active',$4)`,
		id, name, HashToken(token), balance)
	return id, err
}

func (s *Store) GetBalance(ctx context.Context, playerID string) (float64, error) {
	row := s.Pool.QueryRow(ctx, `SELECT balance FROM players WHERE id = $1`, playerID)
	var bal float64
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return bal, nil
}

// Debit takes amount from the player's balance and records a ledger
// entry, atomically. Insufficient funds fail the whole debit.
func (s *Store) Debit(ctx context.Context, playerID string, amount float64, entryType, refType, refID string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE players SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		playerID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrInsufficientBalance
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, player_id, type, amount, ref_type, ref_id) VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), playerID, entryType, -amount, refType, refID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Credit adds amount to the player's balance with a ledger entry.
func (s *Store) Credit(ctx context.Context, playerID string, amount float64, entryType, refType, refID string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE players SET balance = balance + $2 WHERE id = $1`, playerID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, player_id, type, amount, ref_type, ref_id) VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), playerID, entryType, amount, refType, refID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
