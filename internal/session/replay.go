package session

import (
	"encoding/json"
	"time"

	"gemdrop/internal/game"
)

// ReplayAction is one logged action with its derived timing delta: the
// server-side gap since the previous accepted action, in milliseconds.
type ReplayAction struct {
	Seq      int64           `json:"sequence_number"`
	Type     game.ActionType `json:"action_type"`
	Data     json.RawMessage `json:"action_data,omitempty"`
	ClientTS int64           `json:"client_timestamp"`
	ServerTS time.Time       `json:"server_timestamp"`
	DeltaMS  int64           `json:"delta_ms"`
}

// ReplayRecord is the write-once ordered action log of a closed session,
// kept for post-hoc cheat review.
type ReplayRecord struct {
	SessionID         string         `json:"session_id"`
	PlayerID          string         `json:"player_id"`
	LevelID           string         `json:"game_level_id"`
	GameType          game.GameType  `json:"game_type"`
	DeviceFingerprint string         `json:"device_fingerprint,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	EndedAt           time.Time      `json:"ended_at"`
	Outcome           string         `json:"outcome"`
	CompletionPercent float64        `json:"completion_percentage"`
	Suspicious        bool           `json:"suspicious"`
	Flags             []game.Flag    `json:"flags,omitempty"`
	Actions           []ReplayAction `json:"actions"`
}

func buildReplay(s *Session, endedAt time.Time, outcome string) ReplayRecord {
	actions := make([]ReplayAction, len(s.actions))
	for i, act := range s.actions {
		ra := ReplayAction{
			Seq:      act.Seq,
			Type:     act.Type,
			Data:     act.Data,
			ClientTS: act.ClientTS,
			ServerTS: act.ServerTS,
		}
		if i > 0 {
			ra.DeltaMS = act.ServerTS.Sub(s.actions[i-1].ServerTS).Milliseconds()
		}
		actions[i] = ra
	}
	return ReplayRecord{
		SessionID:         s.id,
		PlayerID:          s.player.PlayerID,
		LevelID:           s.level.ID,
		GameType:          s.level.GameType,
		DeviceFingerprint: s.fingerprint,
		StartedAt:         s.startedAt,
		EndedAt:           endedAt,
		Outcome:           outcome,
		CompletionPercent: s.completion,
		Suspicious:        s.analyzer.Suspicious(),
		Flags:             s.analyzer.Flags(),
		Actions:           actions,
	}
}
