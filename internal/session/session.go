package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"gemdrop/internal/game"
)

type State string

const (
	StateConnecting State = "connecting"
	StateJoined     State = "joined"
	StateInProgress State = "in_progress"
	StateCompleting State = "completing"
	StateFailing    State = "failing"
	StateAbandoned  State = "abandoned"
	StateClosed     State = "closed"
)

// Session is one player's attempt at a game level. All fields below inbox
// are owned by the session goroutine; nothing else reads or writes them
// after run starts.
type Session struct {
	id          string
	player      Identity
	fingerprint string
	level       game.LevelConfig
	board       game.Board
	prevDiff    game.DifficultyState

	m     *Manager
	inbox chan command

	state      State
	startedAt  time.Time
	cursor     game.Cursor
	actions    []game.Action
	completion float64
	score      int
	analyzer   *game.Analyzer
	detached   bool
	reported   bool
	result     *ExitResult
}

type ActionResult struct {
	Seq    int64
	Flags  []game.Flag
	Closed bool
	Exit   *ExitResult
}

type ExitResult struct {
	Reward   game.RewardRecord
	NextTier int
}

// Snapshot is what a resuming connection needs to pick the session back up.
type Snapshot struct {
	SessionID  string
	Level      game.LevelConfig
	Board      game.Board
	Tier       int
	Seq        int64
	Completion float64
}

type command interface{}

type actionCmd struct {
	act     game.Action
	arrival time.Time
	reply   chan actionReply
}

type actionReply struct {
	res ActionResult
	err error
}

type exitCmd struct {
	completion *float64
	score      int
	tubes      [][]int
	reply      chan exitReply
}

type exitReply struct {
	res ExitResult
	err error
}

type detachCmd struct{}

type attachCmd struct {
	reply chan attachReply
}

type attachReply struct {
	ok   bool
	snap Snapshot
}

// run is the session's single-owner execution context. Every message for
// the session goes through inbox, so actions are processed strictly in
// arrival order and no lock guards session state.
func (s *Session) run() {
	idle := time.NewTimer(s.m.cfg.IdleTimeout)
	defer idle.Stop()

	var grace *time.Timer
	var retention *time.Timer
	defer func() {
		if grace != nil {
			grace.Stop()
		}
		if retention != nil {
			retention.Stop()
		}
	}()

	for {
		var graceC, retentionC <-chan time.Time
		if grace != nil {
			graceC = grace.C
		}
		if retention != nil {
			retentionC = retention.C
		}

		select {
		case cmd := <-s.inbox:
			switch c := cmd.(type) {
			case actionCmd:
				s.handleAction(c)
			case exitCmd:
				s.handleExit(c)
			case detachCmd:
				if s.state == StateClosed {
					break
				}
				s.detached = true
				if s.m.cfg.ResumeGrace > 0 {
					if grace == nil {
						grace = time.NewTimer(s.m.cfg.ResumeGrace)
					} else {
						grace.Reset(s.m.cfg.ResumeGrace)
					}
				} else {
					s.abandon()
				}
			case attachCmd:
				if s.state == StateClosed || !s.detached {
					c.reply <- attachReply{}
					break
				}
				s.detached = false
				if grace != nil {
					grace.Stop()
					grace = nil
				}
				c.reply <- attachReply{ok: true, snap: Snapshot{
					SessionID:  s.id,
					Level:      s.level,
					Board:      s.board,
					Tier:       s.board.Tier,
					Seq:        s.cursor.Seq,
					Completion: s.completion,
				}}
			}
			if s.state != StateClosed {
				idle.Reset(s.m.cfg.IdleTimeout)
			}

		case <-idle.C:
			s.abandon()

		case <-graceC:
			grace = nil
			s.abandon()

		case <-retentionC:
			s.m.evict(s)
			return
		}

		if s.state == StateClosed && retention == nil {
			idle.Stop()
			retention = time.NewTimer(s.m.cfg.ClosedRetention)
		}
	}
}

func (s *Session) handleAction(c actionCmd) {
	playable := s.state == StateJoined || s.state == StateInProgress
	if err := game.ValidateAction(playable, s.cursor, c.act); err != nil {
		if s.state == StateClosed {
			err = ErrSessionClosed
		}
		c.reply <- actionReply{err: err}
		return
	}

	act := c.act
	act.ServerTS = c.arrival
	s.cursor = s.cursor.Advance(act)
	s.actions = append(s.actions, act)
	if s.state == StateJoined {
		s.state = StateInProgress
	}
	if p, ok := act.Progress(); ok {
		s.completion = clampPct(p)
	}

	flags := s.analyzer.Observe(act, c.arrival)
	for _, f := range flags {
		s.publishFlag(string(f.Kind), f.Detail, f.At)
	}
	if s.analyzer.Suspicious() && !s.reported {
		s.reported = true
		s.publishFlag("suspicious_session", "flag limit reached", c.arrival)
		log.Warn().Str("session_id", s.id).Str("player_id", s.player.PlayerID).Msg("session marked suspicious")
	}

	res := ActionResult{Seq: act.Seq, Flags: flags}
	if act.Type.Terminal() {
		pct, score, tubes, ok := act.Completion()
		if ok {
			s.completion = clampPct(pct)
		}
		if score > 0 {
			s.score = score
		}
		s.applySubmittedBoard(tubes)
		if act.Type == game.ActionComplete {
			s.state = StateCompleting
			s.close("completed", true)
		} else {
			s.state = StateFailing
			s.close("failed", false)
		}
		res.Closed = true
		res.Exit = s.result
	}
	c.reply <- actionReply{res: res}
}

func (s *Session) handleExit(c exitCmd) {
	if s.state == StateClosed {
		// Exit is idempotent: a repeat returns the original result.
		if s.result != nil {
			c.reply <- exitReply{res: *s.result}
		} else {
			c.reply <- exitReply{err: ErrSessionClosed}
		}
		return
	}
	if c.completion != nil {
		s.completion = clampPct(*c.completion)
	}
	if c.score > 0 {
		s.score = c.score
	}
	s.applySubmittedBoard(c.tubes)

	success := s.completion >= 80
	if success {
		s.state = StateCompleting
	} else {
		s.state = StateFailing
	}
	s.close("exit", success)
	c.reply <- exitReply{res: *s.result}
}

// applySubmittedBoard rechecks a client-submitted final board against the
// server-side target; the declared completion never exceeds the computed
// one.
func (s *Session) applySubmittedBoard(tubes [][]int) {
	if len(tubes) == 0 {
		return
	}
	computed := game.CompletionPercent(tubes, s.board.Target)
	if computed < s.completion {
		s.completion = computed
	}
}

// abandon closes the session on transport loss or idleness, granting
// partial credit for the last known completion percentage.
func (s *Session) abandon() {
	if s.state == StateClosed {
		return
	}
	s.state = StateAbandoned
	s.close("abandoned", false)
}

// close runs the terminal pipeline: reward, difficulty, replay and wallet
// writes. Each persistence call is retried once; a write that still fails
// is reported to the security sink as a data-loss risk instead of keeping
// the session open.
func (s *Session) close(outcome string, success bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	endedAt := time.Now()

	multiplier := s.level.RewardMultiplier * s.m.cfg.RewardMultiplier
	payout := game.CalculateReward(s.level.EntryCost, s.completion, multiplier, s.m.cfg.RewardPrecision)
	suspicious := s.analyzer.Suspicious()
	if suspicious && s.m.cfg.SuspiciousWeight > 0 && s.m.cfg.SuspiciousWeight < 1 {
		payout = game.RoundHalfUp(payout*s.m.cfg.SuspiciousWeight, s.m.cfg.RewardPrecision)
	}
	reward := game.RewardRecord{
		SessionID:         s.id,
		PlayerID:          s.player.PlayerID,
		LevelID:           s.level.ID,
		EntryCost:         s.level.EntryCost,
		Multiplier:        multiplier,
		CompletionPercent: s.completion,
		Payout:            payout,
		Suspicious:        suspicious,
		CreatedAt:         endedAt,
	}

	next := game.NextDifficulty(s.m.diffCfg, s.prevDiff, game.Outcome{
		Success:           success,
		CompletionPercent: s.completion,
	})

	replay := buildReplay(s, endedAt, outcome)
	if err := retryOnce(ctx, func(ctx context.Context) error {
		return s.m.deps.Persist.AppendReplay(ctx, replay)
	}); err != nil {
		s.reportDataLoss("replay", err)
	}
	if err := retryOnce(ctx, func(ctx context.Context) error {
		return s.m.deps.Persist.AppendReward(ctx, reward)
	}); err != nil {
		s.reportDataLoss("reward", err)
	}
	if err := retryOnce(ctx, func(ctx context.Context) error {
		return s.m.deps.Wallet.CreditPayout(ctx, s.player.PlayerID, s.id, payout)
	}); err != nil {
		s.reportDataLoss("payout", err)
	}
	if err := retryOnce(ctx, func(ctx context.Context) error {
		return s.m.deps.Difficulty.SaveDifficulty(ctx, s.player.PlayerID, s.level.GameType, next)
	}); err != nil {
		s.reportDataLoss("difficulty", err)
	}

	s.state = StateClosed
	s.result = &ExitResult{Reward: reward, NextTier: next.Tier}
	s.m.release(s)

	log.Info().
		Str("session_id", s.id).
		Str("player_id", s.player.PlayerID).
		Str("outcome", outcome).
		Float64("completion", s.completion).
		Float64("payout", payout).
		Bool("suspicious", suspicious).
		Int64("duration_ms", endedAt.Sub(s.startedAt).Milliseconds()).
		Msg("session closed")
}

func (s *Session) publishFlag(kind, detail string, at time.Time) {
	ev := SecurityEvent{
		SessionID: s.id,
		PlayerID:  s.player.PlayerID,
		Kind:      kind,
		Detail:    detail,
		RaisedAt:  at,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := retryOnce(ctx, func(ctx context.Context) error {
		return s.m.deps.Security.PublishFlag(ctx, ev)
	}); err != nil {
		log.Error().Err(err).Str("session_id", s.id).Str("kind", kind).Msg("security flag publish failed")
	}
}

func (s *Session) reportDataLoss(what string, err error) {
	log.Error().Err(err).Str("session_id", s.id).Str("record", what).Msg("persistence failed after retry")
	s.publishFlag("data_loss_risk", what, time.Now())
}

func (s *Session) tryAttach(ctx context.Context) (Snapshot, bool) {
	reply := make(chan attachReply, 1)
	select {
	case s.inbox <- attachCmd{reply: reply}:
	case <-ctx.Done():
		return Snapshot{}, false
	}
	select {
	case r := <-reply:
		return r.snap, r.ok
	case <-ctx.Done():
		return Snapshot{}, false
	}
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

func newID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
