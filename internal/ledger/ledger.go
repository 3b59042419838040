package ledger

import (
	"context"

	"gemdrop/internal/store"
)

// Ledger is the wallet collaborator: it moves a player's token balance
// and leaves a ledger entry for every movement.
type Ledger struct {
	Store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{Store: s}
}

func (l *Ledger) DebitEntry(ctx context.Context, playerID, sessionID string, amount float64) error {
	if amount <= 0 {
		return nil
	}
	return l.Store.Debit(ctx, playerID, amount, "entry_debit", "session", sessionID)
}

func (l *Ledger) CreditPayout(ctx context.Context, playerID, sessionID string, amount float64) error {
	if amount <= 0 {
		return nil
	}
	return l.Store.Credit(ctx, playerID, amount, "payout_credit", "session", sessionID)
}
