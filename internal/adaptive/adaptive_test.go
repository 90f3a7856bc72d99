package adaptive

import (
	"math"
	"testing"
)

func TestStreakMultiplierBounds(t *testing.T) {
	prev := 0.0
	for s := 0; s <= 50; s++ {
		m := StreakMultiplier(s)
		if m < 1.0 || m > 3.0 {
			t.Fatalf("multiplier out of bounds at streak %d: %v", s, m)
		}
		if m < prev {
			t.Fatalf("multiplier decreased at streak %d: %v < %v", s, m, prev)
		}
		prev = m
	}
	if got := StreakMultiplier(20); got != 3.0 {
		t.Fatalf("expected cap at 3.0, got %v", got)
	}
}

func TestScoreDelta(t *testing.T) {
	// Difficulty 5, post-answer streak 4: 5 * 10 * min(1+0.4, 3) = 70.
	if got := ScoreDelta(true, 5, 4); math.Abs(got-70) > 1e-9 {
		t.Fatalf("expected 70, got %v", got)
	}
	for _, streak := range []int{0, 3, 15} {
		if got := ScoreDelta(false, 9, streak); got != -10 {
			t.Fatalf("incorrect answer should cost -10, got %v", got)
		}
	}
}

func TestMomentumBounds(t *testing.T) {
	if got := Momentum(nil); got != 0 {
		t.Fatalf("empty history should have zero momentum, got %v", got)
	}

	allCorrect := make([]bool, 25)
	for i := range allCorrect {
		allCorrect[i] = true
	}
	allWrong := make([]bool, 25)

	for _, history := range [][]bool{allCorrect, allWrong, {true, false, true}, {false}} {
		m := Momentum(history)
		if m < -1 || m > 1 {
			t.Fatalf("momentum out of [-1,1]: %v", m)
		}
	}
	if Momentum(allCorrect) <= 0 {
		t.Fatalf("all-correct history should have positive momentum")
	}
	if Momentum(allWrong) >= 0 {
		t.Fatalf("all-wrong history should have negative momentum")
	}
}

func TestMomentumUsesNewestAnswers(t *testing.T) {
	// Newest-first: a recent correct answer after many wrong ones should beat
	// the same history without it.
	wrong := make([]bool, 9)
	withRecovery := append([]bool{true}, wrong...)
	if Momentum(withRecovery) <= Momentum(wrong) {
		t.Fatalf("recent correct answer should raise momentum")
	}
}

func TestNextDifficultyClamps(t *testing.T) {
	cases := []struct {
		current  float64
		correct  bool
		streak   int
		momentum float64
	}{
		{10, true, 9, 1},
		{1, false, 0, -1},
		{5.5, true, 3, 0.9},
		{5.5, false, 0, -0.9},
	}
	for _, tc := range cases {
		got := NextDifficulty(tc.current, tc.correct, tc.streak, tc.momentum)
		if got < 1 || got > 10 {
			t.Fatalf("difficulty out of [1,10]: %v (case %+v)", got, tc)
		}
	}
}

func TestNextDifficultyHysteresis(t *testing.T) {
	// Inside the band nothing moves, regardless of outcome.
	if got := NextDifficulty(5, true, 4, 0.2); got != 5 {
		t.Fatalf("momentum inside band must not move difficulty, got %v", got)
	}
	if got := NextDifficulty(5, false, 0, -0.2); got != 5 {
		t.Fatalf("momentum inside band must not move difficulty, got %v", got)
	}
	// A correct answer without a sustained streak holds too.
	if got := NextDifficulty(5, true, 1, 0.9); got != 5 {
		t.Fatalf("streak below threshold must not raise difficulty, got %v", got)
	}

	up := NextDifficulty(5, true, 3, 0.5)
	if math.Abs(up-5.6) > 1e-9 {
		t.Fatalf("expected 5 + 0.5 + 0.1 = 5.6, got %v", up)
	}
	down := NextDifficulty(5, false, 0, -0.5)
	if math.Abs(down-4.4) > 1e-9 {
		t.Fatalf("expected 5 - 0.6 = 4.4, got %v", down)
	}
}

func TestRoundDifficulty(t *testing.T) {
	if got := RoundDifficulty(0.2); got != 1 {
		t.Fatalf("expected floor at 1, got %d", got)
	}
	if got := RoundDifficulty(12.7); got != 10 {
		t.Fatalf("expected cap at 10, got %d", got)
	}
	if got := RoundDifficulty(5.5); got != 6 {
		t.Fatalf("expected round to 6, got %d", got)
	}
}
