package game

import "testing"

func testDifficultyConfig() DifficultyConfig {
	return DifficultyConfig{MinTier: 1, MaxTier: 10, StreakUp: 3, RetriesDown: 3}
}

func TestNextDifficultyStreakRaisesTier(t *testing.T) {
	cfg := testDifficultyConfig()
	st := InitialDifficulty(cfg)
	if st.Tier != 1 {
		t.Fatalf("initial tier = %d, want 1", st.Tier)
	}

	win := Outcome{Success: true, CompletionPercent: 90}
	st = NextDifficulty(cfg, st, win)
	st = NextDifficulty(cfg, st, win)
	if st.Tier != 1 || st.Streak != 2 {
		t.Fatalf("after 2 wins: %+v, want tier 1 streak 2", st)
	}

	st = NextDifficulty(cfg, st, win)
	if st.Tier != 2 || st.Streak != 0 {
		t.Fatalf("after 3rd win: %+v, want tier 2 streak 0", st)
	}
}

func TestNextDifficultyRetriesLowerTier(t *testing.T) {
	cfg := testDifficultyConfig()
	st := DifficultyState{Tier: 5}
	loss := Outcome{Success: false, CompletionPercent: 10}

	st = NextDifficulty(cfg, st, loss)
	st = NextDifficulty(cfg, st, loss)
	if st.Tier != 5 || st.Retries != 2 {
		t.Fatalf("after 2 losses: %+v, want tier 5 retries 2", st)
	}

	st = NextDifficulty(cfg, st, loss)
	if st.Tier != 4 || st.Retries != 0 {
		t.Fatalf("after 3rd loss: %+v, want tier 4 retries 0", st)
	}
}

func TestNextDifficultyClampsAtBounds(t *testing.T) {
	cfg := testDifficultyConfig()

	top := DifficultyState{Tier: cfg.MaxTier, Streak: 2}
	top = NextDifficulty(cfg, top, Outcome{Success: true})
	if top.Tier != cfg.MaxTier {
		t.Fatalf("tier rose above max: %+v", top)
	}
	if top.Streak != 0 {
		t.Fatalf("streak must still reset at max tier: %+v", top)
	}

	bottom := DifficultyState{Tier: cfg.MinTier, Retries: 2}
	bottom = NextDifficulty(cfg, bottom, Outcome{Success: false})
	if bottom.Tier != cfg.MinTier {
		t.Fatalf("tier fell below min: %+v", bottom)
	}
}

func TestNextDifficultyLossResetsStreak(t *testing.T) {
	cfg := testDifficultyConfig()
	st := DifficultyState{Tier: 3, Streak: 2}
	st = NextDifficulty(cfg, st, Outcome{Success: false})
	if st.Streak != 0 || st.Retries != 1 || st.Tier != 3 {
		t.Fatalf("after loss: %+v, want streak 0 retries 1 tier 3", st)
	}

	st = NextDifficulty(cfg, st, Outcome{Success: true})
	if st.Retries != 0 || st.Streak != 1 {
		t.Fatalf("after win: %+v, want retries 0 streak 1", st)
	}
}
