package game

import (
	"fmt"
	"time"
)

type FlagKind string

const (
	FlagSpeedHack     FlagKind = "speed_hack"
	FlagRepeatPattern FlagKind = "repeat_pattern"
	FlagOutOfViewport FlagKind = "out_of_viewport"
)

// Flag is one anti-cheat suspicion raised against a session. Flags are
// accumulated, not terminal: the session keeps playing.
type Flag struct {
	Kind   FlagKind  `json:"kind"`
	Seq    int64     `json:"sequence_number"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// Viewport is the screen envelope the client reported at join. Pointer
// coordinates outside it are implausible.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type AnalyzerConfig struct {
	// SpeedFloor is the minimum plausible moving-average interval between
	// actions of one type.
	SpeedFloor time.Duration
	// SpeedWindow is how many recent intervals the moving average spans.
	SpeedWindow int
	// SpeedStrikeLimit is how many below-floor averages are tolerated
	// before a speed_hack flag is raised.
	SpeedStrikeLimit int
	// RepeatWindow / RepeatThreshold: a repeat_pattern flag is raised when
	// at least RepeatThreshold of the last RepeatWindow actions share one
	// shape hash.
	RepeatWindow    int
	RepeatThreshold int
	// FlagLimit marks the session suspicious once reached.
	FlagLimit int
	// ViewportSlackPx widens the plausibility envelope.
	ViewportSlackPx int
}

// Analyzer consumes a session's validated action stream and accumulates
// flags. It is owned by the session goroutine and is not safe for
// concurrent use.
type Analyzer struct {
	cfg      AnalyzerConfig
	viewport Viewport

	lastArrival  map[ActionType]time.Time
	intervals    map[ActionType][]time.Duration
	speedStrikes int

	recentHashes []uint64

	flags      []Flag
	suspicious bool
}

func NewAnalyzer(cfg AnalyzerConfig, vp Viewport) *Analyzer {
	if cfg.SpeedWindow <= 0 {
		cfg.SpeedWindow = 8
	}
	if cfg.RepeatWindow <= 0 {
		cfg.RepeatWindow = 10
	}
	return &Analyzer{
		cfg:         cfg,
		viewport:    vp,
		lastArrival: map[ActionType]time.Time{},
		intervals:   map[ActionType][]time.Duration{},
	}
}

// Observe feeds one accepted action and returns the flags it raised, if
// any. Arrival time is the server-side receipt timestamp.
func (a *Analyzer) Observe(act Action, arrival time.Time) []Flag {
	before := len(a.flags)
	a.observeSpeed(act, arrival)
	a.observePattern(act, arrival)
	a.observeViewport(act, arrival)
	if !a.suspicious && a.cfg.FlagLimit > 0 && len(a.flags) >= a.cfg.FlagLimit {
		a.suspicious = true
	}
	return a.flags[before:]
}

func (a *Analyzer) observeSpeed(act Action, arrival time.Time) {
	if prev, ok := a.lastArrival[act.Type]; ok {
		iv := arrival.Sub(prev)
		if iv < 0 {
			iv = 0
		}
		ring := append(a.intervals[act.Type], iv)
		if len(ring) > a.cfg.SpeedWindow {
			ring = ring[len(ring)-a.cfg.SpeedWindow:]
		}
		a.intervals[act.Type] = ring

		if a.cfg.SpeedFloor > 0 && len(ring) == a.cfg.SpeedWindow && movingAverage(ring) < a.cfg.SpeedFloor {
			a.speedStrikes++
			if a.speedStrikes >= a.cfg.SpeedStrikeLimit {
				a.speedStrikes = 0
				a.raise(Flag{
					Kind:   FlagSpeedHack,
					Seq:    act.Seq,
					Detail: fmt.Sprintf("avg %s interval below %s floor", act.Type, a.cfg.SpeedFloor),
					At:     arrival,
				})
			}
		}
	}
	a.lastArrival[act.Type] = arrival
}

func (a *Analyzer) observePattern(act Action, arrival time.Time) {
	h := act.ShapeHash()
	a.recentHashes = append(a.recentHashes, h)
	if len(a.recentHashes) > a.cfg.RepeatWindow {
		a.recentHashes = a.recentHashes[len(a.recentHashes)-a.cfg.RepeatWindow:]
	}
	if a.cfg.RepeatThreshold <= 0 {
		return
	}
	same := 0
	for _, r := range a.recentHashes {
		if r == h {
			same++
		}
	}
	// Every action at or past the threshold raises a flag, so a sustained
	// identical run keeps accumulating toward the suspicious limit.
	if same >= a.cfg.RepeatThreshold {
		a.raise(Flag{
			Kind:   FlagRepeatPattern,
			Seq:    act.Seq,
			Detail: fmt.Sprintf("%d of last %d actions identical", same, len(a.recentHashes)),
			At:     arrival,
		})
	}
}

func (a *Analyzer) observeViewport(act Action, arrival time.Time) {
	x, y, ok := act.Coords()
	if !ok || a.viewport.Width <= 0 || a.viewport.Height <= 0 {
		return
	}
	slack := float64(a.cfg.ViewportSlackPx)
	if x < -slack || y < -slack || x > float64(a.viewport.Width)+slack || y > float64(a.viewport.Height)+slack {
		a.raise(Flag{
			Kind:   FlagOutOfViewport,
			Seq:    act.Seq,
			Detail: fmt.Sprintf("(%.0f,%.0f) outside %dx%d", x, y, a.viewport.Width, a.viewport.Height),
			At:     arrival,
		})
	}
}

func (a *Analyzer) raise(f Flag) {
	a.flags = append(a.flags, f)
}

// Suspicious reports whether the accumulated flag count crossed the limit.
func (a *Analyzer) Suspicious() bool { return a.suspicious }

// Flags returns every flag raised so far, in order.
func (a *Analyzer) Flags() []Flag { return a.flags }

func movingAverage(ivs []time.Duration) time.Duration {
	if len(ivs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, iv := range ivs {
		sum += iv
	}
	return sum / time.Duration(len(ivs))
}
