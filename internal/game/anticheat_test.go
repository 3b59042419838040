package game

import (
	"encoding/json"
	"testing"
	"time"
)

func testAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SpeedFloor:       40 * time.Millisecond,
		SpeedWindow:      4,
		SpeedStrikeLimit: 3,
		RepeatWindow:     10,
		RepeatThreshold:  8,
		FlagLimit:        3,
	}
}

func TestAnalyzerRepeatPattern(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{Width: 800, Height: 600})
	base := time.Now()

	var raised []Flag
	for i := 0; i < 10; i++ {
		act := Action{
			Type: ActionClick,
			Seq:  int64(i + 1),
			Data: json.RawMessage(`{"x": 100, "y": 200}`),
		}
		raised = append(raised, an.Observe(act, base.Add(time.Duration(i)*time.Second))...)
	}

	// Identical input flags every action from the threshold on: 10 clicks
	// at threshold 8 flag sequences 8, 9 and 10.
	var repeats []int64
	for _, f := range raised {
		if f.Kind == FlagRepeatPattern {
			repeats = append(repeats, f.Seq)
		}
	}
	if len(repeats) != 3 || repeats[0] != 8 || repeats[1] != 9 || repeats[2] != 10 {
		t.Fatalf("repeat_pattern flags at %v, want [8 9 10]", repeats)
	}
	if !an.Suspicious() {
		t.Fatal("ten identical clicks must mark the session suspicious")
	}
}

func TestAnalyzerRepeatRunKeepsFlagging(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{Width: 800, Height: 600})
	base := time.Now()

	raised := 0
	for i := 0; i < 100; i++ {
		act := Action{
			Type: ActionClick,
			Seq:  int64(i + 1),
			Data: json.RawMessage(`{"x": 100, "y": 200}`),
		}
		for _, f := range an.Observe(act, base.Add(time.Duration(i)*time.Second)) {
			if f.Kind == FlagRepeatPattern {
				raised++
			}
		}
	}
	// Every action past the threshold flags while the run persists.
	if raised != 93 {
		t.Fatalf("got %d repeat_pattern flags over 100 identical clicks, want 93", raised)
	}
	if !an.Suspicious() {
		t.Fatal("sustained identical input must mark the session suspicious")
	}
}

func TestAnalyzerNoRepeatFlagOnVariedInput(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{Width: 800, Height: 600})
	base := time.Now()

	for i := 0; i < 20; i++ {
		data, _ := json.Marshal(map[string]int{"x": i, "y": i * 2})
		act := Action{Type: ActionClick, Seq: int64(i + 1), Data: data}
		if flags := an.Observe(act, base.Add(time.Duration(i)*time.Second)); len(flags) != 0 {
			t.Fatalf("varied input raised %v", flags)
		}
	}
}

func TestAnalyzerSpeedHack(t *testing.T) {
	cfg := testAnalyzerConfig()
	an := NewAnalyzer(cfg, Viewport{Width: 800, Height: 600})
	base := time.Now()

	// 5ms apart, far below the 40ms floor. The first flag needs a full
	// window plus the tolerated strikes.
	var raised []Flag
	for i := 0; i < 12; i++ {
		data, _ := json.Marshal(map[string]int{"x": i, "y": i})
		act := Action{Type: ActionClick, Seq: int64(i + 1), Data: data}
		raised = append(raised, an.Observe(act, base.Add(time.Duration(i)*5*time.Millisecond))...)
	}
	found := false
	for _, f := range raised {
		if f.Kind == FlagSpeedHack {
			found = true
		}
	}
	if !found {
		t.Fatalf("no speed_hack flag after sustained sub-floor intervals, got %v", raised)
	}
}

func TestAnalyzerSpeedIgnoresHumanPace(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{Width: 800, Height: 600})
	base := time.Now()
	for i := 0; i < 20; i++ {
		data, _ := json.Marshal(map[string]int{"x": i, "y": i})
		act := Action{Type: ActionClick, Seq: int64(i + 1), Data: data}
		if flags := an.Observe(act, base.Add(time.Duration(i)*300*time.Millisecond)); len(flags) != 0 {
			t.Fatalf("human-pace input raised %v", flags)
		}
	}
}

func TestAnalyzerOutOfViewport(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{Width: 800, Height: 600})
	now := time.Now()

	in := Action{Type: ActionClick, Seq: 1, Data: json.RawMessage(`{"x": 799, "y": 599}`)}
	if flags := an.Observe(in, now); len(flags) != 0 {
		t.Fatalf("in-bounds click raised %v", flags)
	}

	out := Action{Type: ActionClick, Seq: 2, Data: json.RawMessage(`{"x": 1500, "y": 300}`)}
	flags := an.Observe(out, now.Add(time.Second))
	if len(flags) != 1 || flags[0].Kind != FlagOutOfViewport {
		t.Fatalf("out-of-bounds click: got %v, want one out_of_viewport flag", flags)
	}
}

func TestAnalyzerViewportUnknownSkipsCheck(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{})
	act := Action{Type: ActionClick, Seq: 1, Data: json.RawMessage(`{"x": 99999, "y": 99999}`)}
	if flags := an.Observe(act, time.Now()); len(flags) != 0 {
		t.Fatalf("no viewport reported, but click raised %v", flags)
	}
}

func TestAnalyzerSuspiciousAtFlagLimit(t *testing.T) {
	an := NewAnalyzer(testAnalyzerConfig(), Viewport{Width: 800, Height: 600})
	base := time.Now()

	for i := 0; i < 3; i++ {
		data, _ := json.Marshal(map[string]int{"x": 5000 + i, "y": 5000})
		act := Action{Type: ActionClick, Seq: int64(i + 1), Data: data}
		an.Observe(act, base.Add(time.Duration(i)*time.Second))
		wantSuspicious := i == 2
		if got := an.Suspicious(); got != wantSuspicious {
			t.Fatalf("after flag %d: Suspicious() = %v, want %v", i+1, got, wantSuspicious)
		}
	}
	if got := len(an.Flags()); got != 3 {
		t.Fatalf("got %d flags, want 3", got)
	}
}
