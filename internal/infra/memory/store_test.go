package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"brainbolt/internal/domain"
)

func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestUpsertCreatesStateAtVersionZero(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	state, err := store.UpsertUserState(ctx, "alice", domain.StateUpdate{
		Streak:     intPtr(0),
		TotalScore: floatPtr(0),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if state.StateVersion != 0 {
		t.Errorf("version = %d, want 0", state.StateVersion)
	}
	if state.CurrentDifficulty != 1.0 {
		t.Errorf("difficulty = %v, want 1.0", state.CurrentDifficulty)
	}
}

func TestUpsertPatchesWithoutBumpingVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.UpsertUserState(ctx, "alice", domain.StateUpdate{
		Streak:     intPtr(4),
		TotalScore: floatPtr(50),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Only Streak is set; everything else must survive the patch.
	state, err := store.UpsertUserState(ctx, "alice", domain.StateUpdate{Streak: intPtr(2)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if state.Streak != 2 {
		t.Errorf("streak = %d, want 2", state.Streak)
	}
	if state.TotalScore != 50 {
		t.Errorf("score = %v, want 50 (untouched)", state.TotalScore)
	}
	if state.StateVersion != 0 {
		t.Errorf("version = %d, want 0 (upsert never bumps)", state.StateVersion)
	}
}

func TestAtomicUpdateCAS(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.AtomicUpdateUserState(ctx, "ghost", 0, domain.StateUpdate{})
	if !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("missing user: got %v, want ErrStateNotFound", err)
	}

	if _, err := store.UpsertUserState(ctx, "alice", domain.StateUpdate{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now()
	updated, err := store.AtomicUpdateUserState(ctx, "alice", 0, domain.StateUpdate{
		CurrentDifficulty: floatPtr(2.5),
		Streak:            intPtr(1),
		MaxStreak:         intPtr(1),
		TotalScore:        floatPtr(10),
		LastQuestionID:    strPtr("q7"),
		LastAnswerAt:      timePtr(now),
	})
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if updated.StateVersion != 1 {
		t.Errorf("version = %d, want 1", updated.StateVersion)
	}
	if updated.LastQuestionID != "q7" || updated.LastAnswerAt == nil {
		t.Errorf("update fields not applied: %+v", updated)
	}

	// Same expected version again must lose.
	_, err = store.AtomicUpdateUserState(ctx, "alice", 0, domain.StateUpdate{Streak: intPtr(9)})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("stale cas: got %v, want ErrVersionConflict", err)
	}

	state, err := store.GetUserState(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Streak != 1 {
		t.Errorf("losing cas mutated state: streak = %d, want 1", state.Streak)
	}
}

func TestRecentAnswersNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i, correct := range []bool{true, true, false} {
		if err := store.InsertAnswerLog(ctx, domain.AnswerLog{
			UserID:     "alice",
			QuestionID: "q1",
			Correct:    correct,
			AnsweredAt: time.Now().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("insert log %d: %v", i, err)
		}
	}

	recent, err := store.GetRecentAnswers(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0] != false || recent[1] != true {
		t.Errorf("recent = %v, want [false true]", recent)
	}
}

func TestGetRandomQuestionFallbackLadder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	questions := []domain.Question{
		{ID: "q3", Difficulty: 3, Prompt: "p3", Choices: []string{"a", "b", "c", "d"}},
		{ID: "q8", Difficulty: 8, Prompt: "p8", Choices: []string{"a", "b", "c", "d"}},
	}
	if err := store.InsertQuestions(ctx, questions); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Exact level.
	q, err := store.GetRandomQuestion(ctx, 3, "")
	if err != nil || q.ID != "q3" {
		t.Errorf("exact level: got %q/%v, want q3", q.ID, err)
	}

	// Adjacent level.
	q, err = store.GetRandomQuestion(ctx, 4, "")
	if err != nil || q.ID != "q3" {
		t.Errorf("adjacent level: got %q/%v, want q3", q.ID, err)
	}

	// Whole bank when nothing is close.
	if _, err = store.GetRandomQuestion(ctx, 6, ""); err != nil {
		t.Errorf("whole-bank fallback failed: %v", err)
	}

	// Exclusion is dropped when it would empty the pool.
	q, err = store.GetRandomQuestion(ctx, 3, "q3")
	if err != nil || q.ID != "q3" {
		t.Errorf("exclusion should be dropped for a single candidate, got %q/%v", q.ID, err)
	}
}

func TestGetRandomQuestionEmptyBank(t *testing.T) {
	_, err := NewStore().GetRandomQuestion(context.Background(), 5, "")
	if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Errorf("got %v, want ErrNoQuestionsAvailable", err)
	}
}

func TestInsertQuestionsAssignsIDs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if err := store.InsertQuestions(ctx, []domain.Question{
		{Difficulty: 1, Prompt: "p1", Choices: []string{"a", "b", "c", "d"}},
		{Difficulty: 1, Prompt: "p2", Choices: []string{"a", "b", "c", "d"}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, err := store.CountQuestions(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	pool, err := store.GetQuestionsByDifficulty(ctx, 1)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	for _, q := range pool {
		if q.ID == "" {
			t.Errorf("question %q has no id", q.Prompt)
		}
	}
}

func TestLeaderboardRanksAndTops(t *testing.T) {
	ctx := context.Background()
	board := NewLeaderboard()

	if err := board.Update(ctx, "alice", 120, 4); err != nil {
		t.Fatalf("update alice: %v", err)
	}
	if err := board.Update(ctx, "bob", 80, 9); err != nil {
		t.Fatalf("update bob: %v", err)
	}

	rank, err := board.ScoreRank(ctx, "bob")
	if err != nil || rank != 2 {
		t.Errorf("bob score rank = %d/%v, want 2", rank, err)
	}
	rank, err = board.StreakRank(ctx, "bob")
	if err != nil || rank != 1 {
		t.Errorf("bob streak rank = %d/%v, want 1", rank, err)
	}
	rank, err = board.ScoreRank(ctx, "nobody")
	if err != nil || rank != 0 {
		t.Errorf("unknown user rank = %d/%v, want 0", rank, err)
	}

	top, err := board.TopByScore(ctx, 1)
	if err != nil {
		t.Fatalf("top by score: %v", err)
	}
	if len(top) != 1 || top[0].UserID != "alice" || top[0].Value != 120 {
		t.Errorf("top = %+v, want alice at 120", top)
	}

	top, err = board.TopByStreak(ctx, 10)
	if err != nil {
		t.Fatalf("top by streak: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "bob" {
		t.Errorf("streak top = %+v, want bob first", top)
	}
}
