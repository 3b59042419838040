package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gemdrop/internal/config"
	"gemdrop/internal/game"
)

// Manager owns the live session registry. The registry mutex only guards
// map membership; session state itself is owned by each session's
// goroutine and reached through its inbox.
type Manager struct {
	cfg     config.EngineConfig
	deps    Deps
	diffCfg game.DifficultyConfig
	acCfg   game.AnalyzerConfig

	mu       sync.Mutex
	sessions map[string]*Session
	live     map[string]*Session
	rng      *rand.Rand
}

func NewManager(cfg config.EngineConfig, deps Deps) *Manager {
	return &Manager{
		cfg:  cfg,
		deps: deps,
		diffCfg: game.DifficultyConfig{
			MinTier:     cfg.DifficultyMinTier,
			MaxTier:     cfg.DifficultyMaxTier,
			StreakUp:    cfg.DifficultyStreakUp,
			RetriesDown: cfg.DifficultyRetriesDown,
		},
		acCfg: game.AnalyzerConfig{
			SpeedFloor:       cfg.SpeedFloor,
			SpeedWindow:      cfg.SpeedWindow,
			SpeedStrikeLimit: cfg.SpeedStrikeLimit,
			RepeatWindow:     cfg.RepeatWindow,
			RepeatThreshold:  cfg.RepeatThreshold,
			FlagLimit:        cfg.FlagLimit,
			ViewportSlackPx:  cfg.ViewportSlackPx,
		},
		sessions: map[string]*Session{},
		live:     map[string]*Session{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type JoinRequest struct {
	PlayerID          string
	AuthToken         string
	LevelID           string
	GameType          game.GameType
	DeviceFingerprint string
	Viewport          game.Viewport
}

type Joined struct {
	SessionID  string
	Level      game.LevelConfig
	Board      game.Board
	Tier       int
	Seq        int64
	Completion float64
	Resumed    bool
}

type ExitRequest struct {
	CompletionPercent *float64
	Score             int
	TubesState        [][]int
}

// Join authenticates the connection, charges the entry cost and creates
// (or, within the grace window, resumes) the player's session for the
// level. The whole operation is bounded by the configured join timeout.
func (m *Manager) Join(ctx context.Context, req JoinRequest) (Joined, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancel()

	var identity Identity
	err := retryOnce(ctx, func(ctx context.Context) error {
		var e error
		identity, e = m.deps.Auth.Authenticate(ctx, req.AuthToken, req.DeviceFingerprint)
		return e
	})
	if err != nil {
		if ctx.Err() != nil {
			return Joined{}, ErrTimeout
		}
		return Joined{}, ErrAuthRejected
	}
	if req.PlayerID != "" && req.PlayerID != identity.PlayerID {
		return Joined{}, ErrAuthRejected
	}

	var level game.LevelConfig
	err = retryOnce(ctx, func(ctx context.Context) error {
		var e error
		level, e = m.deps.Levels.Level(ctx, req.LevelID)
		return e
	})
	if err != nil {
		if ctx.Err() != nil {
			return Joined{}, ErrTimeout
		}
		return Joined{}, ErrInvalidLevel
	}
	if req.GameType != "" && req.GameType != level.GameType {
		return Joined{}, ErrInvalidLevel
	}

	key := liveKey(identity.PlayerID, level.ID)

	m.mu.Lock()
	if existing := m.live[key]; existing != nil {
		m.mu.Unlock()
		if m.cfg.ResumeGrace > 0 {
			if snap, ok := existing.tryAttach(ctx); ok {
				return Joined{
					SessionID:  snap.SessionID,
					Level:      snap.Level,
					Board:      snap.Board,
					Tier:       snap.Tier,
					Seq:        snap.Seq,
					Completion: snap.Completion,
					Resumed:    true,
				}, nil
			}
		}
		return Joined{}, ErrSessionAlreadyActive
	}

	s := &Session{
		id:          newID(),
		player:      identity,
		fingerprint: req.DeviceFingerprint,
		level:       level,
		m:           m,
		inbox:       make(chan command, 16),
		state:       StateConnecting,
		startedAt:   time.Now(),
		analyzer:    game.NewAnalyzer(m.acCfg, req.Viewport),
	}
	m.sessions[s.id] = s
	m.live[key] = s
	m.mu.Unlock()

	joined, err := m.provision(ctx, s, req)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, s.id)
		if m.live[key] == s {
			delete(m.live, key)
		}
		m.mu.Unlock()
		return Joined{}, err
	}
	return joined, nil
}

// provision finishes session setup after the registry slot is claimed:
// difficulty lookup, board generation, entry debit.
func (m *Manager) provision(ctx context.Context, s *Session, req JoinRequest) (Joined, error) {
	diff := game.InitialDifficulty(m.diffCfg)
	err := retryOnce(ctx, func(ctx context.Context) error {
		st, found, e := m.deps.Difficulty.Difficulty(ctx, s.player.PlayerID, s.level.GameType)
		if e != nil {
			return e
		}
		if found {
			diff = st
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("player_id", s.player.PlayerID).Msg("difficulty read failed, using initial tier")
	}

	// The board comes first: a level row that cannot produce a board must
	// not cost the player an entry fee.
	m.mu.Lock()
	board, boardErr := game.GenerateBoard(m.rng, s.level.GameType, s.level.LevelNumber, diff.Tier)
	m.mu.Unlock()
	if boardErr != nil {
		return Joined{}, ErrInvalidLevel
	}

	if err := retryOnce(ctx, func(ctx context.Context) error {
		return m.deps.Wallet.DebitEntry(ctx, s.player.PlayerID, s.id, s.level.EntryCost)
	}); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return Joined{}, ErrInsufficientBalance
		}
		if ctx.Err() != nil {
			return Joined{}, ErrTimeout
		}
		return Joined{}, ErrPersistence
	}

	s.board = board
	s.prevDiff = diff
	s.state = StateJoined
	go s.run()

	log.Info().
		Str("session_id", s.id).
		Str("player_id", s.player.PlayerID).
		Str("level_id", s.level.ID).
		Str("game_type", string(s.level.GameType)).
		Int("tier", diff.Tier).
		Msg("session joined")

	return Joined{
		SessionID: s.id,
		Level:     s.level,
		Board:     board,
		Tier:      diff.Tier,
	}, nil
}

// SubmitAction routes one action into the owning session and waits for
// the verdict.
func (m *Manager) SubmitAction(ctx context.Context, sessionID string, act game.Action) (ActionResult, error) {
	s := m.lookup(sessionID)
	if s == nil {
		return ActionResult{}, ErrSessionClosed
	}
	reply := make(chan actionReply, 1)
	select {
	case s.inbox <- actionCmd{act: act, arrival: time.Now(), reply: reply}:
	case <-ctx.Done():
		return ActionResult{}, ErrTimeout
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return ActionResult{}, ErrTimeout
	}
}

// Exit closes the session and returns its reward. Repeating an exit on a
// closed session returns the original result.
func (m *Manager) Exit(ctx context.Context, sessionID string, req ExitRequest) (ExitResult, error) {
	s := m.lookup(sessionID)
	if s == nil {
		return ExitResult{}, ErrSessionClosed
	}
	reply := make(chan exitReply, 1)
	select {
	case s.inbox <- exitCmd{completion: req.CompletionPercent, score: req.Score, tubes: req.TubesState, reply: reply}:
	case <-ctx.Done():
		return ExitResult{}, ErrTimeout
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return ExitResult{}, ErrTimeout
	}
}

// Detach reports transport loss. The session abandons immediately, or
// waits out the resume grace window when one is configured.
func (m *Manager) Detach(sessionID string) {
	s := m.lookup(sessionID)
	if s == nil {
		return
	}
	select {
	case s.inbox <- detachCmd{}:
	case <-time.After(5 * time.Second):
		log.Warn().Str("session_id", sessionID).Msg("detach delivery timed out")
	}
}

// LiveCount reports how many sessions are currently registered, closed
// but retained ones included.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// release frees the player+level slot once a session reaches a terminal
// state, so a fresh join is possible while the closed session is retained
// for idempotent exits.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := liveKey(s.player.PlayerID, s.level.ID)
	if m.live[key] == s {
		delete(m.live, key)
	}
}

func (m *Manager) evict(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
	key := liveKey(s.player.PlayerID, s.level.ID)
	if m.live[key] == s {
		delete(m.live, key)
	}
}

func liveKey(playerID, levelID string) string {
	return playerID + "\x00" + levelID
}
