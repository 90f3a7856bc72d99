// Package memory implements the persistence collaborator in process. It is
// the default when no Postgres is configured and the backbone of the unit
// tests; the compare-and-swap semantics match the durable implementation.
package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"brainbolt/internal/adaptive"
	"brainbolt/internal/domain"
)

// Store is a mutex-guarded implementation of app.Store.
type Store struct {
	mu        sync.Mutex
	states    map[string]domain.UserState
	logs      map[string][]domain.AnswerLog
	questions map[string]domain.Question
	byLevel   map[int][]string
	nextQID   int
}

func NewStore() *Store {
	return &Store{
		states:    make(map[string]domain.UserState),
		logs:      make(map[string][]domain.AnswerLog),
		questions: make(map[string]domain.Question),
		byLevel:   make(map[int][]string),
	}
}

func (s *Store) GetUserState(_ context.Context, userID string) (domain.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return domain.UserState{}, domain.ErrStateNotFound
	}
	return state, nil
}

// UpsertUserState creates missing state at version 0 or patches fields of an
// existing one. It never bumps the version: versioned mutation goes through
// AtomicUpdateUserState only.
func (s *Store) UpsertUserState(_ context.Context, userID string, update domain.StateUpdate) (domain.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		state = domain.UserState{UserID: userID, CurrentDifficulty: adaptive.MinDifficulty}
	}
	applyUpdate(&state, update)
	s.states[userID] = state
	return state, nil
}

func (s *Store) AtomicUpdateUserState(_ context.Context, userID string, expectedVersion int, update domain.StateUpdate) (domain.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return domain.UserState{}, domain.ErrStateNotFound
	}
	if state.StateVersion != expectedVersion {
		return domain.UserState{}, domain.ErrVersionConflict
	}
	applyUpdate(&state, update)
	state.StateVersion = expectedVersion + 1
	s.states[userID] = state
	return state, nil
}

func (s *Store) InsertAnswerLog(_ context.Context, entry domain.AnswerLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.UserID] = append(s.logs[entry.UserID], entry)
	return nil
}

// GetRecentAnswers returns correctness flags newest first.
func (s *Store) GetRecentAnswers(_ context.Context, userID string, limit int) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[userID]
	recent := make([]bool, 0, limit)
	for i := len(logs) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, logs[i].Correct)
	}
	return recent, nil
}

func (s *Store) GetUserAnswerStats(_ context.Context, userID string) (domain.AnswerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.AnswerStats{}
	for _, entry := range s.logs[userID] {
		stats.TotalAnswered++
		if entry.Correct {
			stats.TotalCorrect++
		}
	}
	return stats, nil
}

func (s *Store) GetDifficultyHistogram(_ context.Context, userID string) ([]domain.DifficultyBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int]int)
	for _, entry := range s.logs[userID] {
		counts[entry.Difficulty]++
	}
	buckets := make([]domain.DifficultyBucket, 0, len(counts))
	for difficulty, count := range counts {
		buckets = append(buckets, domain.DifficultyBucket{Difficulty: difficulty, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Difficulty < buckets[j].Difficulty })
	return buckets, nil
}

func (s *Store) GetRecentPerformance(_ context.Context, userID string, limit int) ([]domain.PerformanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[userID]
	entries := make([]domain.PerformanceEntry, 0, limit)
	for i := len(logs) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, domain.PerformanceEntry{
			QuestionID: logs[i].QuestionID,
			Difficulty: logs[i].Difficulty,
			Correct:    logs[i].Correct,
			ScoreDelta: logs[i].ScoreDelta,
			AnsweredAt: logs[i].AnsweredAt,
		})
	}
	return entries, nil
}

func (s *Store) GetQuestionByID(_ context.Context, id string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (s *Store) GetQuestionsByDifficulty(_ context.Context, difficulty int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byLevel[difficulty]
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, s.questions[id])
	}
	return questions, nil
}

// GetRandomQuestion walks the fallback ladder: exact level, adjacent levels,
// then the whole bank. The exclusion is dropped when it would empty the
// candidate set.
func (s *Store) GetRandomQuestion(_ context.Context, difficulty int, excludeID string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := difficulty
	if level < 1 {
		level = 1
	}
	if level > 10 {
		level = 10
	}

	candidates := s.byLevel[level]
	if len(candidates) == 0 {
		for _, nearby := range []int{level - 1, level + 1} {
			if nearby >= 1 && nearby <= 10 && len(s.byLevel[nearby]) > 0 {
				candidates = s.byLevel[nearby]
				break
			}
		}
	}
	if len(candidates) == 0 {
		for id := range s.questions {
			candidates = append(candidates, id)
		}
	}

	if excludeID != "" {
		filtered := make([]string, 0, len(candidates))
		for _, id := range candidates {
			if id != excludeID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	if len(candidates) == 0 {
		return domain.Question{}, domain.ErrNoQuestionsAvailable
	}
	return s.questions[candidates[rand.Intn(len(candidates))]], nil
}

func (s *Store) InsertQuestions(_ context.Context, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, question := range questions {
		if question.ID == "" {
			s.nextQID++
			question.ID = "q-" + strconv.Itoa(s.nextQID)
		}
		s.questions[question.ID] = question
		s.byLevel[question.Difficulty] = append(s.byLevel[question.Difficulty], question.ID)
	}
	return nil
}

func (s *Store) CountQuestions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions), nil
}

func applyUpdate(state *domain.UserState, update domain.StateUpdate) {
	if update.CurrentDifficulty != nil {
		state.CurrentDifficulty = *update.CurrentDifficulty
	}
	if update.Streak != nil {
		state.Streak = *update.Streak
	}
	if update.MaxStreak != nil {
		state.MaxStreak = *update.MaxStreak
	}
	if update.TotalScore != nil {
		state.TotalScore = *update.TotalScore
	}
	if update.LastQuestionID != nil {
		state.LastQuestionID = *update.LastQuestionID
	}
	if update.LastAnswerAt != nil {
		t := *update.LastAnswerAt
		state.LastAnswerAt = &t
	}
}
