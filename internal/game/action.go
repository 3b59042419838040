package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type ActionType string

const (
	ActionMove     ActionType = "move"
	ActionClick    ActionType = "click"
	ActionDrag     ActionType = "drag"
	ActionDrop     ActionType = "drop"
	ActionComplete ActionType = "complete"
	ActionFail     ActionType = "fail"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionMove, ActionClick, ActionDrag, ActionDrop, ActionComplete, ActionFail:
		return true
	}
	return false
}

// Terminal reports whether the action ends the session on acceptance.
func (t ActionType) Terminal() bool {
	return t == ActionComplete || t == ActionFail
}

// Action is one player input event. Immutable once accepted; ServerTS is
// assigned on arrival and ClientTS is whatever the client declared.
type Action struct {
	Type     ActionType      `json:"action_type"`
	Data     json.RawMessage `json:"action_data"`
	Seq      int64           `json:"sequence_number"`
	ClientTS int64           `json:"client_timestamp"`
	ServerTS time.Time       `json:"server_timestamp"`
}

var payloadSchemas = map[ActionType]*jsonschema.Schema{
	ActionMove:     mustCompileSchema("move.json", moveSchema),
	ActionClick:    mustCompileSchema("click.json", pointerSchema),
	ActionDrag:     mustCompileSchema("drag.json", pointerSchema),
	ActionDrop:     mustCompileSchema("drop.json", pointerSchema),
	ActionComplete: mustCompileSchema("complete.json", completeSchema),
	ActionFail:     mustCompileSchema("fail.json", failSchema),
}

const moveSchema = `{
	"type": "object",
	"properties": {
		"tube_from": {"type": "integer", "minimum": 0},
		"tube_to": {"type": "integer", "minimum": 0},
		"progress": {"type": "number", "minimum": 0, "maximum": 100}
	},
	"required": ["tube_from", "tube_to"]
}`

const pointerSchema = `{
	"type": "object",
	"properties": {
		"x": {"type": "number"},
		"y": {"type": "number"},
		"item": {"type": "string"},
		"target": {"type": "string"},
		"progress": {"type": "number", "minimum": 0, "maximum": 100}
	},
	"required": ["x", "y"]
}`

const completeSchema = `{
	"type": "object",
	"properties": {
		"completion_percentage": {"type": "number", "minimum": 0, "maximum": 100},
		"score": {"type": "integer", "minimum": 0},
		"tubes_state": {"type": "array", "items": {"type": "array", "items": {"type": "integer"}}}
	},
	"required": ["completion_percentage"]
}`

const failSchema = `{
	"type": "object",
	"properties": {
		"completion_percentage": {"type": "number", "minimum": 0, "maximum": 100},
		"reason": {"type": "string"}
	}
}`

func mustCompileSchema(name, src string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, src)
}

func validatePayload(t ActionType, data json.RawMessage) error {
	schema, ok := payloadSchemas[t]
	if !ok {
		return fmt.Errorf("unknown action type %q", t)
	}
	if len(data) == 0 {
		data = []byte(`{}`)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// payload is the union of decoded action fields the engine inspects after
// schema validation.
type payload struct {
	TubeFrom   *int     `json:"tube_from"`
	TubeTo     *int     `json:"tube_to"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Progress   *float64 `json:"progress"`
	Completion *float64 `json:"completion_percentage"`
	Score      *int     `json:"score"`
	TubesState [][]int  `json:"tubes_state"`
	Reason     string   `json:"reason"`
}

func decodePayload(data json.RawMessage) payload {
	var p payload
	if len(data) > 0 {
		_ = json.Unmarshal(data, &p)
	}
	return p
}

// Progress returns the optional completion progress carried by a
// non-terminal action.
func (a Action) Progress() (float64, bool) {
	p := decodePayload(a.Data)
	if p.Progress == nil {
		return 0, false
	}
	return *p.Progress, true
}

// Completion returns the completion percentage declared by a terminal
// action, plus the optional submitted board.
func (a Action) Completion() (pct float64, score int, tubes [][]int, ok bool) {
	p := decodePayload(a.Data)
	if p.Completion != nil {
		pct = *p.Completion
		ok = true
	}
	if p.Score != nil {
		score = *p.Score
	}
	return pct, score, p.TubesState, ok
}

// Coords returns declared screen coordinates for pointer actions.
func (a Action) Coords() (x, y float64, ok bool) {
	switch a.Type {
	case ActionClick, ActionDrag, ActionDrop:
	default:
		return 0, 0, false
	}
	p := decodePayload(a.Data)
	if p.X == nil || p.Y == nil {
		return 0, 0, false
	}
	return *p.X, *p.Y, true
}

// ShapeHash fingerprints (type, payload) for mechanical-input detection.
// The payload is canonicalized so key order does not change the hash.
func (a Action) ShapeHash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(a.Type))
	_, _ = h.Write(canonicalJSON(a.Data))
	return h.Sum64()
}

func canonicalJSON(data json.RawMessage) []byte {
	if len(data) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return bytes.TrimSpace(data)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.Write(bytes.TrimSpace(m[k]))
		buf.WriteByte(';')
	}
	return buf.Bytes()
}
