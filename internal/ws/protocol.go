package ws

import (
	"encoding/json"

	"gemdrop/internal/game"
)

type JoinMessage struct {
	Type              string        `json:"type"`
	PlayerID          string        `json:"player_id"`
	AuthToken         string        `json:"auth_token"`
	GameLevelID       string        `json:"game_level_id"`
	GameType          string        `json:"game_type"`
	DeviceFingerprint string        `json:"device_fingerprint,omitempty"`
	Viewport          game.Viewport `json:"viewport,omitempty"`
}

type LevelInfo struct {
	ID          string  `json:"id"`
	GameType    string  `json:"game_type"`
	LevelNumber int     `json:"level_number"`
	EntryCost   float64 `json:"entry_cost"`
	MaxMoves    int     `json:"max_moves"`
}

type BoardInfo struct {
	GameType   string  `json:"game_type"`
	Level      int     `json:"level"`
	Colors     int     `json:"colors"`
	Tubes      int     `json:"tubes"`
	Capacity   int     `json:"capacity"`
	TubesState [][]int `json:"tubes_state"`
}

type JoinedMessage struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"session_id"`
	Level          LevelInfo `json:"level"`
	Board          BoardInfo `json:"board"`
	DifficultyTier int       `json:"difficulty_tier"`
	Resumed        bool      `json:"resumed,omitempty"`
	LastSequence   int64     `json:"last_sequence,omitempty"`
}

type ActionMessage struct {
	Type            string          `json:"type"`
	ActionType      string          `json:"action_type"`
	ActionData      json.RawMessage `json:"action_data"`
	SequenceNumber  int64           `json:"sequence_number"`
	ClientTimestamp int64           `json:"client_timestamp"`
}

type ActionConfirmed struct {
	Type           string   `json:"type"`
	SequenceNumber int64    `json:"sequence_number"`
	Flags          []string `json:"flags,omitempty"`
}

type ExitMessage struct {
	Type                 string   `json:"type"`
	CompletionPercentage *float64 `json:"completion_percentage,omitempty"`
	Score                int      `json:"score,omitempty"`
	TubesState           [][]int  `json:"tubes_state,omitempty"`
}

type RewardInfo struct {
	EntryCost            float64 `json:"entry_cost"`
	Multiplier           float64 `json:"multiplier"`
	CompletionPercentage float64 `json:"completion_percentage"`
	Payout               float64 `json:"payout"`
}

type ExitedMessage struct {
	Type               string     `json:"type"`
	SessionID          string     `json:"session_id"`
	Reward             RewardInfo `json:"reward_record"`
	NextDifficultyTier int        `json:"next_difficulty_tier"`
}

type PingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}
