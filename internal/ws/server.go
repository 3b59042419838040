package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gemdrop/internal/config"
	"gemdrop/internal/game"
	"gemdrop/internal/session"
)

// Server terminates websocket connections and routes their messages into
// the session manager. One read loop and one write pump per connection;
// ordering within a session comes from the manager's per-session inbox.
type Server struct {
	manager  *session.Manager
	cfg      config.EngineConfig
	upgrader websocket.Upgrader
}

func NewServer(manager *session.Manager, cfg config.EngineConfig) *Server {
	return &Server{
		manager:  manager,
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 8)}

	go s.writePump(c)
	s.readLoop(c)
}

// idleDeadlineSlack delays the transport drop past the session's own idle
// window, so the engine abandons first and the close that follows finds a
// settled session.
const idleDeadlineSlack = time.Second

func (s *Server) readLoop(c *client) {
	defer func() {
		if c.sessionID != "" {
			s.manager.Detach(c.sessionID)
		}
		safeClose(c.send)
		_ = c.conn.Close()
	}()

	// Only gameplay messages refresh the deadline. Keepalive traffic does
	// not count, so an idle-timed-out session loses its transport too
	// instead of answering forever with session_closed errors.
	s.refreshIdleDeadline(c)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "join":
			var join JoinMessage
			if err := json.Unmarshal(msg, &join); err != nil {
				s.sendError(c, session.ErrInvalidLevel, "malformed join")
				continue
			}
			s.refreshIdleDeadline(c)
			if !s.handleJoin(c, join) {
				return
			}
		case "action":
			var action ActionMessage
			if err := json.Unmarshal(msg, &action); err != nil {
				s.sendError(c, game.ErrSchemaMismatch, "malformed action")
				continue
			}
			s.refreshIdleDeadline(c)
			s.handleAction(c, action)
		case "exit":
			var exit ExitMessage
			if err := json.Unmarshal(msg, &exit); err != nil {
				continue
			}
			s.refreshIdleDeadline(c)
			s.handleExit(c, exit)
		case "ping":
			var ping PingMessage
			_ = json.Unmarshal(msg, &ping)
			s.sendJSON(c, PingMessage{Type: "pong", Timestamp: ping.Timestamp})
		case "pong":
			// keepalive reply, nothing to do
		}
	}
}

func (s *Server) refreshIdleDeadline(c *client) {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout + idleDeadlineSlack))
}

// handleJoin returns false when the connection must be closed (fatal auth
// failure).
func (s *Server) handleJoin(c *client, join JoinMessage) bool {
	if c.sessionID != "" {
		s.sendError(c, session.ErrSessionAlreadyActive, "connection already holds a session")
		return true
	}
	joined, err := s.manager.Join(context.Background(), session.JoinRequest{
		PlayerID:          join.PlayerID,
		AuthToken:         join.AuthToken,
		LevelID:           join.GameLevelID,
		GameType:          game.GameType(join.GameType),
		DeviceFingerprint: join.DeviceFingerprint,
		Viewport:          join.Viewport,
	})
	if err != nil {
		s.sendError(c, err, "join failed")
		return !session.Fatal(err)
	}
	c.sessionID = joined.SessionID
	s.sendJSON(c, JoinedMessage{
		Type:      "joined",
		SessionID: joined.SessionID,
		Level: LevelInfo{
			ID:          joined.Level.ID,
			GameType:    string(joined.Level.GameType),
			LevelNumber: joined.Level.LevelNumber,
			EntryCost:   joined.Level.EntryCost,
			MaxMoves:    joined.Level.MaxMoves,
		},
		Board: BoardInfo{
			GameType:   string(joined.Board.GameType),
			Level:      joined.Board.Level,
			Colors:     joined.Board.Colors,
			Tubes:      joined.Board.Tubes,
			Capacity:   joined.Board.Capacity,
			TubesState: joined.Board.State,
		},
		DifficultyTier: joined.Tier,
		Resumed:        joined.Resumed,
		LastSequence:   joined.Seq,
	})
	return true
}

func (s *Server) handleAction(c *client, action ActionMessage) {
	if c.sessionID == "" {
		s.sendError(c, session.ErrSessionClosed, "no active session")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := s.manager.SubmitAction(ctx, c.sessionID, game.Action{
		Type:     game.ActionType(action.ActionType),
		Data:     action.ActionData,
		Seq:      action.SequenceNumber,
		ClientTS: action.ClientTimestamp,
	})
	if err != nil {
		// Action-level errors drop the single action; the session and the
		// connection both continue.
		s.sendError(c, err, "action rejected")
		return
	}
	confirmed := ActionConfirmed{Type: "action_confirmed", SequenceNumber: res.Seq}
	for _, f := range res.Flags {
		confirmed.Flags = append(confirmed.Flags, string(f.Kind))
	}
	s.sendJSON(c, confirmed)
	if res.Closed && res.Exit != nil {
		s.sendExited(c, *res.Exit)
	}
}

func (s *Server) handleExit(c *client, exit ExitMessage) {
	if c.sessionID == "" {
		s.sendError(c, session.ErrSessionClosed, "no active session")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := s.manager.Exit(ctx, c.sessionID, session.ExitRequest{
		CompletionPercent: exit.CompletionPercentage,
		Score:             exit.Score,
		TubesState:        exit.TubesState,
	})
	if err != nil {
		s.sendError(c, err, "exit failed")
		return
	}
	s.sendExited(c, res)
}

func (s *Server) sendExited(c *client, res session.ExitResult) {
	s.sendJSON(c, ExitedMessage{
		Type:      "exited",
		SessionID: res.Reward.SessionID,
		Reward: RewardInfo{
			EntryCost:            res.Reward.EntryCost,
			Multiplier:           res.Reward.Multiplier,
			CompletionPercentage: res.Reward.CompletionPercent,
			Payout:               res.Reward.Payout,
		},
		NextDifficultyTier: res.NextTier,
	})
}

func (s *Server) writePump(c *client) {
	interval := s.cfg.KeepaliveInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	keepalive := time.NewTicker(interval)
	defer keepalive.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-keepalive.C:
			ping, _ := json.Marshal(PingMessage{Type: "ping", Timestamp: time.Now().UnixMilli()})
			if err := c.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendJSON(c *client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal outbound message")
		return
	}
	safeSend(c.send, msg)
}

func (s *Server) sendError(c *client, err error, message string) {
	s.sendJSON(c, ErrorMessage{
		Type:      "error",
		ErrorKind: session.ErrorKind(err),
		Message:   message,
	})
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	ch <- msg
}
