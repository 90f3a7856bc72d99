package domain

import "time"

// UserState is the per-player progress document. It is created on the first
// question fetch and mutated only by the answer-submission path; StateVersion
// increases by exactly one per accepted mutation.
type UserState struct {
	UserID            string     `json:"userId"`
	CurrentDifficulty float64    `json:"currentDifficulty"`
	Streak            int        `json:"streak"`
	MaxStreak         int        `json:"maxStreak"`
	TotalScore        float64    `json:"totalScore"`
	LastQuestionID    string     `json:"lastQuestionId,omitempty"`
	LastAnswerAt      *time.Time `json:"lastAnswerAt,omitempty"`
	StateVersion      int        `json:"stateVersion"`
}

// StateUpdate carries the fields written by an accepted answer or a decay.
// Nil fields are left untouched by the store.
type StateUpdate struct {
	CurrentDifficulty *float64
	Streak            *int
	MaxStreak         *int
	TotalScore        *float64
	LastQuestionID    *string
	LastAnswerAt      *time.Time
}

// Question is an immutable MCQ with exactly four index-addressed choices.
// The correct choice is stored only as a one-way commitment, never as an index.
type Question struct {
	ID                string   `json:"id"`
	Difficulty        int      `json:"difficulty"`
	Prompt            string   `json:"prompt"`
	Choices           []string `json:"choices"`
	CorrectAnswerHash string   `json:"-"`
	Tags              []string `json:"tags"`
}

// AnswerLog is an append-only fact about one submitted answer.
type AnswerLog struct {
	UserID         string    `json:"userId"`
	QuestionID     string    `json:"questionId"`
	Difficulty     int       `json:"difficulty"`
	AnswerIndex    int       `json:"answerIndex"`
	Correct        bool      `json:"correct"`
	ScoreDelta     float64   `json:"scoreDelta"`
	StreakAtAnswer int       `json:"streakAtAnswer"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// LeaderboardRow is one entry of a leaderboard projection. Value is a total
// score on the score board and a max streak on the streak board.
type LeaderboardRow struct {
	UserID    string    `json:"userId"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LeaderboardUpdate is pushed to websocket subscribers after every accepted
// answer.
type LeaderboardUpdate struct {
	Score     []LeaderboardRow `json:"score"`
	Streak    []LeaderboardRow `json:"streak"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// AnswerStats aggregates a user's answer log.
type AnswerStats struct {
	TotalAnswered int `json:"totalAnswered"`
	TotalCorrect  int `json:"totalCorrect"`
}

// DifficultyBucket is one bar of the per-user difficulty histogram.
type DifficultyBucket struct {
	Difficulty int `json:"difficulty"`
	Count      int `json:"count"`
}

// PerformanceEntry is one recent answer in the metrics view.
type PerformanceEntry struct {
	QuestionID string    `json:"questionId"`
	Difficulty int       `json:"difficulty"`
	Correct    bool      `json:"correct"`
	ScoreDelta float64   `json:"scoreDelta"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// UserMetrics is the aggregate progress view for one user.
type UserMetrics struct {
	CurrentDifficulty   float64            `json:"currentDifficulty"`
	Streak              int                `json:"streak"`
	MaxStreak           int                `json:"maxStreak"`
	TotalScore          float64            `json:"totalScore"`
	Accuracy            float64            `json:"accuracy"`
	TotalAnswered       int                `json:"totalAnswered"`
	TotalCorrect        int                `json:"totalCorrect"`
	DifficultyHistogram []DifficultyBucket `json:"difficultyHistogram"`
	RecentPerformance   []PerformanceEntry `json:"recentPerformance"`
}

// NextQuestion is the response of the next-question endpoint. The question
// payload never includes the answer commitment.
type NextQuestion struct {
	QuestionID        string   `json:"questionId"`
	Difficulty        int      `json:"difficulty"`
	Prompt            string   `json:"prompt"`
	Choices           []string `json:"choices"`
	SessionID         string   `json:"sessionId"`
	StateVersion      int      `json:"stateVersion"`
	CurrentScore      float64  `json:"currentScore"`
	CurrentStreak     int      `json:"currentStreak"`
	Tags              []string `json:"tags"`
	CurrentDifficulty float64  `json:"currentDifficulty"`
	MaxStreak         int      `json:"maxStreak"`
}

// AnswerSubmission is the submit-answer request body.
type AnswerSubmission struct {
	QuestionID     string `json:"questionId"`
	Answer         int    `json:"answer"`
	SessionID      string `json:"sessionId"`
	StateVersion   int    `json:"stateVersion"`
	IdempotencyKey string `json:"answerIdempotencyKey"`
}

// AnswerResult is the submit-answer response. Replays of the same
// idempotency key return the stored result unchanged.
type AnswerResult struct {
	Correct               bool    `json:"correct"`
	CorrectAnswer         int     `json:"correctAnswer"`
	NewDifficulty         float64 `json:"newDifficulty"`
	NewStreak             int     `json:"newStreak"`
	ScoreDelta            float64 `json:"scoreDelta"`
	TotalScore            float64 `json:"totalScore"`
	StateVersion          int     `json:"stateVersion"`
	LeaderboardRankScore  int     `json:"leaderboardRankScore"`
	LeaderboardRankStreak int     `json:"leaderboardRankStreak"`
	MaxStreak             int     `json:"maxStreak"`
	Accuracy              float64 `json:"accuracy"`
}
