package session

import (
	"errors"

	"gemdrop/internal/game"
)

var (
	// Fatal to the connection attempt.
	ErrAuthRejected = errors.New("auth_rejected")

	// Fatal to the join; the connection stays open.
	ErrInvalidLevel         = errors.New("invalid_level")
	ErrSessionAlreadyActive = errors.New("session_already_active")
	ErrInsufficientBalance  = errors.New("insufficient_balance")

	ErrTimeout       = errors.New("timeout")
	ErrSessionClosed = errors.New("session_closed")
	ErrPersistence   = errors.New("persistence_failure")
)

// ErrorKind maps an engine error to the wire error_kind field.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrInvalidLevel):
		return "invalid_level"
	case errors.Is(err, ErrSessionAlreadyActive):
		return "session_already_active"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, game.ErrDuplicateAction):
		return "duplicate_action"
	case errors.Is(err, game.ErrOutOfOrderAction):
		return "out_of_order_action"
	case errors.Is(err, game.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, game.ErrNotPlayable), errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "internal_error"
	}
}

// Fatal reports whether the error ends the connection attempt rather than
// a single message.
func Fatal(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}
