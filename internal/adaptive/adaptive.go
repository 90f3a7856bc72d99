// Package adaptive holds the pure scoring and difficulty functions. Nothing
// here performs I/O or keeps state, so every function is safe for any number
// of concurrent callers.
package adaptive

import "math"

const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0

	maxStreakMultiplier = 3.0
	hysteresisBand      = 0.3
	minStreakToIncrease = 2

	incorrectPenalty = -10.0

	momentumDecay  = 0.7
	correctBoost   = 0.3
	wrongPenalty   = -0.5
	momentumWindow = 10
)

// StreakMultiplier grows 10% per consecutive correct answer, capped at 3x.
func StreakMultiplier(streak int) float64 {
	return math.Min(1+float64(streak)*0.1, maxStreakMultiplier)
}

// ScoreDelta returns the score change for one answer. Incorrect answers cost
// a flat penalty; correct answers are weighted by difficulty and by the
// multiplier of the post-answer streak.
func ScoreDelta(correct bool, difficulty int, streak int) float64 {
	if !correct {
		return incorrectPenalty
	}
	return float64(difficulty) * 10 * StreakMultiplier(streak)
}

// Momentum folds the most recent answers (newest first, at most 10) into a
// signal in [-1, 1]. Older answers decay exponentially, so a burst of recent
// correct answers pushes momentum up faster than a long-past streak.
func Momentum(history []bool) float64 {
	if len(history) == 0 {
		return 0
	}
	if len(history) > momentumWindow {
		history = history[:momentumWindow]
	}

	momentum := 0.0
	for i := len(history) - 1; i >= 0; i-- {
		contribution := wrongPenalty
		if history[i] {
			contribution = correctBoost
		}
		momentum = momentum*momentumDecay + contribution
	}
	return clamp(momentum, -1, 1)
}

// NextDifficulty applies hysteresis: difficulty only moves once momentum
// leaves the ±0.3 band, so a single outlier answer cannot thrash it.
// Increases additionally require a post-answer streak of at least 2.
func NextDifficulty(current float64, correct bool, postAnswerStreak int, momentum float64) float64 {
	next := current
	switch {
	case correct && postAnswerStreak >= minStreakToIncrease && momentum > hysteresisBand:
		next = current + 0.5 + (momentum-hysteresisBand)*0.5
	case !correct && momentum < -hysteresisBand:
		next = current - (0.5 + (math.Abs(momentum)-hysteresisBand)*0.5)
	}
	return clamp(next, MinDifficulty, MaxDifficulty)
}

// RoundDifficulty maps a real-valued difficulty onto the integer pool levels.
func RoundDifficulty(difficulty float64) int {
	return int(clamp(math.Round(difficulty), MinDifficulty, MaxDifficulty))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
