package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gemdrop/internal/config"
	"gemdrop/internal/game"
	"gemdrop/internal/session"
)

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token, _ string) (session.Identity, error) {
	if token != "tok" {
		return session.Identity{}, session.ErrAuthRejected
	}
	return session.Identity{PlayerID: "p1"}, nil
}

type stubLevels struct{}

func (stubLevels) Level(_ context.Context, levelID string) (game.LevelConfig, error) {
	if levelID != "lvl-1" {
		return game.LevelConfig{}, session.ErrInvalidLevel
	}
	return game.LevelConfig{ID: "lvl-1", GameType: game.GameColorMatch, LevelNumber: 1, EntryCost: 100, RewardMultiplier: 1.0, MaxMoves: 50}, nil
}

type stubPersist struct{}

func (stubPersist) AppendReplay(context.Context, session.ReplayRecord) error { return nil }
func (stubPersist) AppendReward(context.Context, game.RewardRecord) error    { return nil }

type stubDifficulty struct{}

func (stubDifficulty) Difficulty(context.Context, string, game.GameType) (game.DifficultyState, bool, error) {
	return game.DifficultyState{}, false, nil
}
func (stubDifficulty) SaveDifficulty(context.Context, string, game.GameType, game.DifficultyState) error {
	return nil
}

type stubWallet struct{}

func (stubWallet) DebitEntry(context.Context, string, string, float64) error   { return nil }
func (stubWallet) CreditPayout(context.Context, string, string, float64) error { return nil }

type stubSink struct{}

func (stubSink) PublishFlag(context.Context, session.SecurityEvent) error { return nil }

func testGatewayConfig() config.EngineConfig {
	return config.EngineConfig{
		JoinTimeout:           2 * time.Second,
		IdleTimeout:           time.Minute,
		KeepaliveInterval:     time.Minute,
		ClosedRetention:       time.Minute,
		SpeedWindow:           8,
		SpeedStrikeLimit:      3,
		RepeatWindow:          10,
		RepeatThreshold:       8,
		FlagLimit:             3,
		SuspiciousWeight:      0.5,
		RewardMultiplier:      1.0,
		RewardPrecision:       2,
		DifficultyMinTier:     1,
		DifficultyMaxTier:     10,
		DifficultyStreakUp:    3,
		DifficultyRetriesDown: 3,
	}
}

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	return dialTestServerWith(t, testGatewayConfig())
}

func dialTestServerWith(t *testing.T, cfg config.EngineConfig) *websocket.Conn {
	t.Helper()
	mgr := session.NewManager(cfg, session.Deps{
		Auth:       stubAuth{},
		Levels:     stubLevels{},
		Persist:    stubPersist{},
		Difficulty: stubDifficulty{},
		Wallet:     stubWallet{},
		Security:   stubSink{},
	})
	gw := NewServer(mgr, cfg)
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readMessage skips keepalive pings and returns the next payload of the
// wanted type.
func readMessage(t *testing.T, conn *websocket.Conn, wantType string) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read while waiting for %q: %v", wantType, err)
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		if base.Type == "ping" {
			continue
		}
		if base.Type != wantType {
			t.Fatalf("got message type %q (%s), want %q", base.Type, msg, wantType)
		}
		return msg
	}
}

func TestGatewayJoinActionExit(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, JoinMessage{
		Type:        "join",
		PlayerID:    "p1",
		AuthToken:   "tok",
		GameLevelID: "lvl-1",
		GameType:    "color_match",
		Viewport:    game.Viewport{Width: 800, Height: 600},
	})
	var joined JoinedMessage
	if err := json.Unmarshal(readMessage(t, conn, "joined"), &joined); err != nil {
		t.Fatalf("unmarshal joined: %v", err)
	}
	if joined.SessionID == "" || joined.DifficultyTier != 1 {
		t.Fatalf("joined = %+v, want session id and tier 1", joined)
	}
	if len(joined.Board.TubesState) == 0 {
		t.Fatal("joined message carries no board")
	}

	sendJSON(t, conn, ActionMessage{
		Type:            "action",
		ActionType:      "click",
		ActionData:      json.RawMessage(`{"x": 10, "y": 20, "progress": 40}`),
		SequenceNumber:  1,
		ClientTimestamp: 100,
	})
	var confirmed ActionConfirmed
	if err := json.Unmarshal(readMessage(t, conn, "action_confirmed"), &confirmed); err != nil {
		t.Fatalf("unmarshal confirmation: %v", err)
	}
	if confirmed.SequenceNumber != 1 {
		t.Fatalf("confirmed sequence %d, want 1", confirmed.SequenceNumber)
	}

	completion := 85.0
	sendJSON(t, conn, ExitMessage{Type: "exit", CompletionPercentage: &completion})
	var exited ExitedMessage
	if err := json.Unmarshal(readMessage(t, conn, "exited"), &exited); err != nil {
		t.Fatalf("unmarshal exited: %v", err)
	}
	if exited.SessionID != joined.SessionID {
		t.Fatalf("exited session %q, want %q", exited.SessionID, joined.SessionID)
	}
	if exited.Reward.Payout != 150 {
		t.Fatalf("payout = %v, want 150", exited.Reward.Payout)
	}
	if exited.Reward.CompletionPercentage != 85 {
		t.Fatalf("completion = %v, want 85", exited.Reward.CompletionPercentage)
	}
}

func TestGatewayRejectsBadActionKeepsSession(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, JoinMessage{Type: "join", AuthToken: "tok", GameLevelID: "lvl-1"})
	readMessage(t, conn, "joined")

	// A sequence gap is rejected without dropping the connection.
	sendJSON(t, conn, ActionMessage{
		Type:            "action",
		ActionType:      "click",
		ActionData:      json.RawMessage(`{"x": 1, "y": 2}`),
		SequenceNumber:  5,
		ClientTimestamp: 100,
	})
	var werr ErrorMessage
	if err := json.Unmarshal(readMessage(t, conn, "error"), &werr); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if werr.ErrorKind != "out_of_order_action" {
		t.Fatalf("error_kind = %q, want out_of_order_action", werr.ErrorKind)
	}

	sendJSON(t, conn, ActionMessage{
		Type:            "action",
		ActionType:      "click",
		ActionData:      json.RawMessage(`{"x": 1, "y": 2}`),
		SequenceNumber:  1,
		ClientTimestamp: 100,
	})
	readMessage(t, conn, "action_confirmed")
}

func TestGatewayAuthFailureClosesConnection(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, JoinMessage{Type: "join", AuthToken: "bad", GameLevelID: "lvl-1"})

	// The server closes the connection; an error frame may or may not be
	// flushed first depending on scheduling.
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var werr ErrorMessage
		if jerr := json.Unmarshal(msg, &werr); jerr != nil {
			t.Fatalf("unmarshal %q: %v", msg, jerr)
		}
		if werr.Type == "error" && werr.ErrorKind != "auth_rejected" {
			t.Fatalf("error_kind = %q, want auth_rejected", werr.ErrorKind)
		}
		if werr.Type == "joined" {
			t.Fatal("rejected token still joined")
		}
	}
}

func TestGatewayInvalidLevelKeepsConnection(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, JoinMessage{Type: "join", AuthToken: "tok", GameLevelID: "nope"})
	var werr ErrorMessage
	if err := json.Unmarshal(readMessage(t, conn, "error"), &werr); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if werr.ErrorKind != "invalid_level" {
		t.Fatalf("error_kind = %q, want invalid_level", werr.ErrorKind)
	}

	// Same connection can retry with a real level.
	sendJSON(t, conn, JoinMessage{Type: "join", AuthToken: "tok", GameLevelID: "lvl-1"})
	readMessage(t, conn, "joined")
}

func TestGatewayPingPong(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, PingMessage{Type: "ping", Timestamp: 12345})
	var pong PingMessage
	if err := json.Unmarshal(readMessage(t, conn, "pong"), &pong); err != nil {
		t.Fatalf("unmarshal pong: %v", err)
	}
	if pong.Timestamp != 12345 {
		t.Fatalf("pong timestamp %d, want 12345", pong.Timestamp)
	}
}

func TestGatewayActionWithoutSession(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, ActionMessage{
		Type:            "action",
		ActionType:      "click",
		ActionData:      json.RawMessage(`{"x": 1, "y": 2}`),
		SequenceNumber:  1,
		ClientTimestamp: 1,
	})
	var werr ErrorMessage
	if err := json.Unmarshal(readMessage(t, conn, "error"), &werr); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if werr.ErrorKind != "session_closed" {
		t.Fatalf("error_kind = %q, want session_closed", werr.ErrorKind)
	}
}

func TestGatewayIdleTimeoutDropsTransport(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.IdleTimeout = 300 * time.Millisecond
	conn := dialTestServerWith(t, cfg)

	sendJSON(t, conn, JoinMessage{Type: "join", AuthToken: "tok", GameLevelID: "lvl-1"})
	readMessage(t, conn, "joined")

	// No more gameplay messages. Keepalive pings alone must not hold the
	// connection open past the idle window.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				if conn.WriteJSON(PingMessage{Type: "ping", Timestamp: time.Now().UnixMilli()}) != nil {
					return
				}
			}
		}
	}()

	start := time.Now()
	_ = conn.SetReadDeadline(start.Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if time.Since(start) > 4*time.Second {
				t.Fatal("idle session kept its transport open")
			}
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if jerr := json.Unmarshal(msg, &base); jerr != nil {
			t.Fatalf("unmarshal %q: %v", msg, jerr)
		}
		switch base.Type {
		case "ping", "pong":
		default:
			t.Fatalf("idle connection received %s", msg)
		}
	}
}

func TestGatewayTerminalActionSendsExited(t *testing.T) {
	conn := dialTestServer(t)

	sendJSON(t, conn, JoinMessage{Type: "join", AuthToken: "tok", GameLevelID: "lvl-1"})
	readMessage(t, conn, "joined")

	sendJSON(t, conn, ActionMessage{
		Type:            "action",
		ActionType:      "complete",
		ActionData:      json.RawMessage(`{"completion_percentage": 90}`),
		SequenceNumber:  1,
		ClientTimestamp: 100,
	})
	readMessage(t, conn, "action_confirmed")

	var exited ExitedMessage
	if err := json.Unmarshal(readMessage(t, conn, "exited"), &exited); err != nil {
		t.Fatalf("unmarshal exited: %v", err)
	}
	if exited.Reward.Payout != 150 {
		t.Fatalf("payout = %v, want 150", exited.Reward.Payout)
	}
	if exited.NextDifficultyTier != 1 {
		t.Fatalf("next tier = %d, want 1", exited.NextDifficultyTier)
	}
}
