package app

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"brainbolt/internal/adaptive"
	"brainbolt/internal/cache"
	"brainbolt/internal/domain"
	"brainbolt/internal/integrity"
)

const (
	streakDecayInterval = 30 * time.Minute
	momentumHistory     = 10
	recentPerformance   = 20
	defaultBoardLimit   = 20
)

// Store abstracts the durable persistence collaborator. GetUserState returns
// domain.ErrStateNotFound for absent users; AtomicUpdateUserState is a
// compare-and-swap on the expected prior state version and returns
// domain.ErrVersionConflict when another mutation won.
type Store interface {
	GetUserState(ctx context.Context, userID string) (domain.UserState, error)
	UpsertUserState(ctx context.Context, userID string, update domain.StateUpdate) (domain.UserState, error)
	AtomicUpdateUserState(ctx context.Context, userID string, expectedVersion int, update domain.StateUpdate) (domain.UserState, error)

	InsertAnswerLog(ctx context.Context, entry domain.AnswerLog) error
	GetRecentAnswers(ctx context.Context, userID string, limit int) ([]bool, error)
	GetUserAnswerStats(ctx context.Context, userID string) (domain.AnswerStats, error)
	GetDifficultyHistogram(ctx context.Context, userID string) ([]domain.DifficultyBucket, error)
	GetRecentPerformance(ctx context.Context, userID string, limit int) ([]domain.PerformanceEntry, error)

	GetQuestionByID(ctx context.Context, id string) (domain.Question, error)
	GetQuestionsByDifficulty(ctx context.Context, difficulty int) ([]domain.Question, error)
	GetRandomQuestion(ctx context.Context, difficulty int, excludeID string) (domain.Question, error)
	InsertQuestions(ctx context.Context, questions []domain.Question) error
	CountQuestions(ctx context.Context) (int, error)
}

// Leaderboard maintains the two sorted projections (total score, max streak).
type Leaderboard interface {
	Update(ctx context.Context, userID string, totalScore float64, maxStreak int) error
	ScoreRank(ctx context.Context, userID string) (int, error)
	StreakRank(ctx context.Context, userID string) (int, error)
	TopByScore(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
	TopByStreak(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
}

// SessionService is the per-request session state controller. It holds no
// per-user locks: correctness under concurrent submissions relies entirely on
// the store's compare-and-swap, and everything computed before that CAS is a
// local snapshot that is safe to discard on conflict.
type SessionService struct {
	store       Store
	boards      Leaderboard
	caches      *cache.Layers
	verifier    *integrity.Verifier
	broadcaster *Broadcaster
	now         func() time.Time
	boardLimit  int
	poolGroup   singleflight.Group
}

func NewSessionService(store Store, boards Leaderboard, caches *cache.Layers, verifier *integrity.Verifier) *SessionService {
	return &SessionService{
		store:       store,
		boards:      boards,
		caches:      caches,
		verifier:    verifier,
		broadcaster: NewBroadcaster(),
		now:         time.Now,
		boardLimit:  defaultBoardLimit,
	}
}

// WithClock is test-only for deterministic decay and timestamps.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// NextQuestion loads (or creates) the user's state, applies lazy streak
// decay, and draws a question at the rounded current difficulty. The returned
// session identifier binds the question to the state version it was served
// against.
func (s *SessionService) NextQuestion(ctx context.Context, userID string) (domain.NextQuestion, error) {
	state, err := s.loadStateWithDecay(ctx, userID)
	if errors.Is(err, domain.ErrStateNotFound) {
		state, err = s.store.UpsertUserState(ctx, userID, defaultStateUpdate())
		if err == nil {
			s.caches.UserState.Set(userID, state)
		}
	}
	if err != nil {
		return domain.NextQuestion{}, err
	}

	question, err := s.pickQuestion(ctx, state)
	if err != nil {
		return domain.NextQuestion{}, err
	}

	return domain.NextQuestion{
		QuestionID:        question.ID,
		Difficulty:        question.Difficulty,
		Prompt:            question.Prompt,
		Choices:           question.Choices,
		SessionID:         sessionID(userID, state.StateVersion),
		StateVersion:      state.StateVersion,
		CurrentScore:      state.TotalScore,
		CurrentStreak:     state.Streak,
		Tags:              question.Tags,
		CurrentDifficulty: state.CurrentDifficulty,
		MaxStreak:         state.MaxStreak,
	}, nil
}

// SubmitAnswer scores one answer submission. Replays of a known idempotency
// key short-circuit before any state is touched; a CAS conflict is surfaced
// as domain.ErrVersionConflict and never retried here.
func (s *SessionService) SubmitAnswer(ctx context.Context, userID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if sub.Answer < 0 || sub.Answer >= integrity.ChoiceCount {
		return domain.AnswerResult{}, domain.ErrInvalidAnswerIndex
	}

	idemKey := cache.IdemKey{UserID: userID, Token: sub.IdempotencyKey}
	if cached, ok := s.caches.Idempotency.Get(idemKey); ok {
		return cached, nil
	}

	state, err := s.loadStateWithDecay(ctx, userID)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.AnswerResult{}, domain.ErrNoActiveSession
	}
	if err != nil {
		return domain.AnswerResult{}, err
	}

	if sessionID(userID, state.StateVersion) != sub.SessionID {
		return domain.AnswerResult{}, domain.ErrSessionMismatch
	}
	if state.StateVersion != sub.StateVersion {
		return domain.AnswerResult{}, domain.ErrStaleStateVersion
	}

	question, err := s.store.GetQuestionByID(ctx, sub.QuestionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	correct := s.verifier.Verify(sub.Answer, question.CorrectAnswerHash)
	correctAnswer := s.verifier.FindCorrectAnswer(question.CorrectAnswerHash)

	newStreak := 0
	if correct {
		newStreak = state.Streak + 1
	}
	newMaxStreak := state.MaxStreak
	if newStreak > newMaxStreak {
		newMaxStreak = newStreak
	}

	// Correct answers are scored with the post-answer streak; incorrect ones
	// with the streak they broke.
	scoredStreak := state.Streak
	if correct {
		scoredStreak = newStreak
	}
	delta := adaptive.ScoreDelta(correct, question.Difficulty, scoredStreak)
	newScore := state.TotalScore + delta
	if newScore < 0 {
		newScore = 0
	}

	recent, err := s.store.GetRecentAnswers(ctx, userID, momentumHistory)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	history := append([]bool{correct}, recent...)
	momentum := adaptive.Momentum(history)
	newDifficulty := adaptive.NextDifficulty(state.CurrentDifficulty, correct, newStreak, momentum)

	now := s.now()
	// The log append and the state CAS are independent facts: a log row from
	// an attempt whose CAS loses still persists.
	if err := s.store.InsertAnswerLog(ctx, domain.AnswerLog{
		UserID:         userID,
		QuestionID:     question.ID,
		Difficulty:     question.Difficulty,
		AnswerIndex:    sub.Answer,
		Correct:        correct,
		ScoreDelta:     delta,
		StreakAtAnswer: newStreak,
		AnsweredAt:     now,
	}); err != nil {
		return domain.AnswerResult{}, err
	}

	updated, err := s.store.AtomicUpdateUserState(ctx, userID, sub.StateVersion, domain.StateUpdate{
		CurrentDifficulty: &newDifficulty,
		Streak:            &newStreak,
		MaxStreak:         &newMaxStreak,
		TotalScore:        &newScore,
		LastQuestionID:    &question.ID,
		LastAnswerAt:      &now,
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}

	s.caches.InvalidateUser(userID)
	s.caches.UserState.Set(userID, updated)

	if err := s.boards.Update(ctx, userID, newScore, newMaxStreak); err != nil {
		return domain.AnswerResult{}, err
	}

	scoreRank, err := s.boards.ScoreRank(ctx, userID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	streakRank, err := s.boards.StreakRank(ctx, userID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	stats, err := s.store.GetUserAnswerStats(ctx, userID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	result := domain.AnswerResult{
		Correct:               correct,
		CorrectAnswer:         correctAnswer,
		NewDifficulty:         newDifficulty,
		NewStreak:             newStreak,
		ScoreDelta:            delta,
		TotalScore:            newScore,
		StateVersion:          updated.StateVersion,
		LeaderboardRankScore:  scoreRank,
		LeaderboardRankStreak: streakRank,
		MaxStreak:             newMaxStreak,
		Accuracy:              accuracy(stats),
	}

	s.caches.Idempotency.SetIfAbsent(idemKey, result)
	s.publishBoards(ctx, now)

	return result, nil
}

// Metrics returns the aggregate progress view, read through the metrics cache.
func (s *SessionService) Metrics(ctx context.Context, userID string) (domain.UserMetrics, error) {
	if cached, ok := s.caches.Metrics.Get(userID); ok {
		return cached, nil
	}

	state, err := s.store.GetUserState(ctx, userID)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.UserMetrics{CurrentDifficulty: adaptive.MinDifficulty}, nil
	}
	if err != nil {
		return domain.UserMetrics{}, err
	}

	stats, err := s.store.GetUserAnswerStats(ctx, userID)
	if err != nil {
		return domain.UserMetrics{}, err
	}
	histogram, err := s.store.GetDifficultyHistogram(ctx, userID)
	if err != nil {
		return domain.UserMetrics{}, err
	}
	performance, err := s.store.GetRecentPerformance(ctx, userID, recentPerformance)
	if err != nil {
		return domain.UserMetrics{}, err
	}

	metrics := domain.UserMetrics{
		CurrentDifficulty:   state.CurrentDifficulty,
		Streak:              state.Streak,
		MaxStreak:           state.MaxStreak,
		TotalScore:          state.TotalScore,
		Accuracy:            accuracy(stats),
		TotalAnswered:       stats.TotalAnswered,
		TotalCorrect:        stats.TotalCorrect,
		DifficultyHistogram: histogram,
		RecentPerformance:   performance,
	}
	s.caches.Metrics.Set(userID, metrics)
	return metrics, nil
}

// ScoreLeaderboard returns the top of the score board, read through the
// leaderboard cache.
func (s *SessionService) ScoreLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return s.board(ctx, "score", limit, s.boards.TopByScore)
}

// StreakLeaderboard returns the top of the max-streak board.
func (s *SessionService) StreakLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return s.board(ctx, "streak", limit, s.boards.TopByStreak)
}

// Subscribe returns a channel receiving leaderboard updates after each
// accepted answer. The caller must invoke the cancel function to avoid leaks.
func (s *SessionService) Subscribe() (<-chan domain.LeaderboardUpdate, func()) {
	return s.broadcaster.Subscribe()
}

func (s *SessionService) board(ctx context.Context, kind string, limit int, top func(context.Context, int) ([]domain.LeaderboardRow, error)) ([]domain.LeaderboardRow, error) {
	if limit <= 0 {
		limit = s.boardLimit
	}
	key := cache.BoardKey{Board: kind, Limit: limit}
	if cached, ok := s.caches.Leaderboard.Get(key); ok {
		return cached, nil
	}
	rows, err := top(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.caches.Leaderboard.Set(key, rows)
	return rows, nil
}

// loadStateWithDecay reads state through the user-state cache and applies
// lazy streak decay: one point per full 30-minute interval since the last
// answer, floored at zero, persisted before use.
func (s *SessionService) loadStateWithDecay(ctx context.Context, userID string) (domain.UserState, error) {
	state, ok := s.caches.UserState.Get(userID)
	if !ok {
		var err error
		state, err = s.store.GetUserState(ctx, userID)
		if err != nil {
			return domain.UserState{}, err
		}
		s.caches.UserState.Set(userID, state)
	}

	decayed := decayedStreak(state, s.now())
	if decayed == state.Streak {
		return state, nil
	}

	updated, err := s.store.UpsertUserState(ctx, userID, domain.StateUpdate{Streak: &decayed})
	if err != nil {
		return domain.UserState{}, err
	}
	s.caches.UserState.Set(userID, updated)
	s.caches.Metrics.Delete(userID)
	return updated, nil
}

func (s *SessionService) pickQuestion(ctx context.Context, state domain.UserState) (domain.Question, error) {
	level := adaptive.RoundDifficulty(state.CurrentDifficulty)

	pool, ok := s.caches.QuestionPool.Get(level)
	if !ok {
		loaded, err, _ := s.poolGroup.Do(strconv.Itoa(level), func() (interface{}, error) {
			if cached, ok := s.caches.QuestionPool.Get(level); ok {
				return cached, nil
			}
			questions, err := s.store.GetQuestionsByDifficulty(ctx, level)
			if err != nil {
				return nil, err
			}
			if len(questions) > 0 {
				s.caches.QuestionPool.Set(level, questions)
			}
			return questions, nil
		})
		if err != nil {
			return domain.Question{}, err
		}
		pool = loaded.([]domain.Question)
	}

	if len(pool) == 0 {
		// Empty pool at this level: let the store walk its fallback levels.
		return s.store.GetRandomQuestion(ctx, level, state.LastQuestionID)
	}

	candidates := pool
	if state.LastQuestionID != "" && len(pool) > 1 {
		filtered := make([]domain.Question, 0, len(pool))
		for _, q := range pool {
			if q.ID != state.LastQuestionID {
				filtered = append(filtered, q)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}
	return candidates[rand.Intn(len(candidates))], nil
}

func (s *SessionService) publishBoards(ctx context.Context, at time.Time) {
	if !s.broadcaster.HasSubscribers() {
		return
	}
	// Best effort: a failed snapshot only skips one push.
	score, err := s.boards.TopByScore(ctx, s.boardLimit)
	if err != nil {
		return
	}
	streak, err := s.boards.TopByStreak(ctx, s.boardLimit)
	if err != nil {
		return
	}
	s.broadcaster.Publish(domain.LeaderboardUpdate{Score: score, Streak: streak, UpdatedAt: at})
}

func sessionID(userID string, version int) string {
	return userID + "-" + strconv.Itoa(version)
}

func defaultStateUpdate() domain.StateUpdate {
	difficulty := adaptive.MinDifficulty
	zero := 0
	score := 0.0
	return domain.StateUpdate{
		CurrentDifficulty: &difficulty,
		Streak:            &zero,
		MaxStreak:         &zero,
		TotalScore:        &score,
	}
}

func decayedStreak(state domain.UserState, now time.Time) int {
	if state.Streak == 0 || state.LastAnswerAt == nil {
		return state.Streak
	}
	elapsed := now.Sub(*state.LastAnswerAt)
	if elapsed <= streakDecayInterval {
		return state.Streak
	}
	intervals := int(elapsed / streakDecayInterval)
	decayed := state.Streak - intervals
	if decayed < 0 {
		decayed = 0
	}
	return decayed
}

func accuracy(stats domain.AnswerStats) float64 {
	if stats.TotalAnswered == 0 {
		return 0
	}
	return float64(stats.TotalCorrect) / float64(stats.TotalAnswered)
}
