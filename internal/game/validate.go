package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotPlayable      = errors.New("session not accepting actions")
	ErrOutOfOrderAction = errors.New("out_of_order_action")
	ErrDuplicateAction  = errors.New("duplicate_action")
	ErrSchemaMismatch   = errors.New("schema_mismatch")
)

// Cursor is the validator's view of a session's accepted-action history:
// the last accepted sequence number and client timestamp. A fresh session
// has the zero Cursor, so the first accepted action carries sequence 1.
type Cursor struct {
	Seq      int64
	ClientTS int64
}

// Advance returns the cursor after accepting act.
func (c Cursor) Advance(act Action) Cursor {
	return Cursor{Seq: act.Seq, ClientTS: act.ClientTS}
}

// ValidateAction checks a single inbound action against the session's
// cursor. A non-nil return means the action is dropped without mutating
// any session state; it is never queued for later.
func ValidateAction(playable bool, cur Cursor, act Action) error {
	if !playable {
		return ErrNotPlayable
	}
	if !act.Type.Valid() {
		return fmt.Errorf("%w: unknown action type %q", ErrSchemaMismatch, act.Type)
	}
	switch {
	case act.Seq == cur.Seq+1:
	case act.Seq <= cur.Seq:
		return fmt.Errorf("%w: sequence %d already accepted", ErrDuplicateAction, act.Seq)
	default:
		return fmt.Errorf("%w: sequence %d after %d leaves a gap", ErrOutOfOrderAction, act.Seq, cur.Seq)
	}
	if act.ClientTS < cur.ClientTS {
		return fmt.Errorf("%w: client timestamp %d before %d", ErrOutOfOrderAction, act.ClientTS, cur.ClientTS)
	}
	if err := validatePayload(act.Type, act.Data); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}
