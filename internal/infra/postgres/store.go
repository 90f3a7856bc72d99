// Package postgres implements the durable persistence collaborator. The
// state write path is a single conditional UPDATE keyed on the expected
// version, which is the only synchronization point of the whole request.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"brainbolt/internal/domain"
)

// Store is the pgxpool-backed implementation of app.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const stateColumns = `user_id, current_difficulty, streak, max_streak, total_score, last_question_id, last_answer_at, state_version`

func (s *Store) GetUserState(ctx context.Context, userID string) (domain.UserState, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+stateColumns+` FROM user_states WHERE user_id=$1`, userID)
	state, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserState{}, domain.ErrStateNotFound
	}
	if err != nil {
		return domain.UserState{}, fmt.Errorf("get user state: %w", err)
	}
	return state, nil
}

// UpsertUserState creates missing state at version 0 or patches present
// fields of an existing row. The version is never bumped here; that is the
// CAS path's job.
func (s *Store) UpsertUserState(ctx context.Context, userID string, update domain.StateUpdate) (domain.UserState, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_states (user_id, current_difficulty, streak, max_streak, total_score, last_question_id, last_answer_at, state_version)
		VALUES ($1, COALESCE($2::float8, 1), COALESCE($3::int, 0), COALESCE($4::int, 0), COALESCE($5::float8, 0), $6, $7, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			current_difficulty = COALESCE($2::float8, user_states.current_difficulty),
			streak             = COALESCE($3::int, user_states.streak),
			max_streak         = COALESCE($4::int, user_states.max_streak),
			total_score        = COALESCE($5::float8, user_states.total_score),
			last_question_id   = COALESCE($6, user_states.last_question_id),
			last_answer_at     = COALESCE($7, user_states.last_answer_at)
		RETURNING `+stateColumns,
		userID, update.CurrentDifficulty, update.Streak, update.MaxStreak, update.TotalScore,
		update.LastQuestionID, update.LastAnswerAt)
	state, err := scanState(row)
	if err != nil {
		return domain.UserState{}, fmt.Errorf("upsert user state: %w", err)
	}
	return state, nil
}

// AtomicUpdateUserState is the compare-and-swap: the conditional UPDATE only
// matches while the stored version equals the one the request read.
func (s *Store) AtomicUpdateUserState(ctx context.Context, userID string, expectedVersion int, update domain.StateUpdate) (domain.UserState, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE user_states SET
			current_difficulty = COALESCE($3::float8, current_difficulty),
			streak             = COALESCE($4::int, streak),
			max_streak         = COALESCE($5::int, max_streak),
			total_score        = COALESCE($6::float8, total_score),
			last_question_id   = COALESCE($7, last_question_id),
			last_answer_at     = COALESCE($8, last_answer_at),
			state_version      = state_version + 1
		WHERE user_id=$1 AND state_version=$2
		RETURNING `+stateColumns,
		userID, expectedVersion, update.CurrentDifficulty, update.Streak, update.MaxStreak,
		update.TotalScore, update.LastQuestionID, update.LastAnswerAt)
	state, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_states WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
			return domain.UserState{}, fmt.Errorf("atomic update user state: %w", err)
		}
		if !exists {
			return domain.UserState{}, domain.ErrStateNotFound
		}
		return domain.UserState{}, domain.ErrVersionConflict
	}
	if err != nil {
		return domain.UserState{}, fmt.Errorf("atomic update user state: %w", err)
	}
	return state, nil
}

func (s *Store) InsertAnswerLog(ctx context.Context, entry domain.AnswerLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answer_logs (user_id, question_id, difficulty, answer_index, correct, score_delta, streak_at_answer, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.UserID, entry.QuestionID, entry.Difficulty, entry.AnswerIndex, entry.Correct,
		entry.ScoreDelta, entry.StreakAtAnswer, entry.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert answer log: %w", err)
	}
	return nil
}

func (s *Store) GetRecentAnswers(ctx context.Context, userID string, limit int) ([]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT correct FROM answer_logs
		WHERE user_id=$1 ORDER BY answered_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent answers: %w", err)
	}
	defer rows.Close()

	var recent []bool
	for rows.Next() {
		var correct bool
		if err := rows.Scan(&correct); err != nil {
			return nil, fmt.Errorf("recent answers: %w", err)
		}
		recent = append(recent, correct)
	}
	return recent, rows.Err()
}

func (s *Store) GetUserAnswerStats(ctx context.Context, userID string) (domain.AnswerStats, error) {
	var stats domain.AnswerStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE correct)
		FROM answer_logs WHERE user_id=$1`, userID).Scan(&stats.TotalAnswered, &stats.TotalCorrect)
	if err != nil {
		return domain.AnswerStats{}, fmt.Errorf("answer stats: %w", err)
	}
	return stats, nil
}

func (s *Store) GetDifficultyHistogram(ctx context.Context, userID string) ([]domain.DifficultyBucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT difficulty, COUNT(*) FROM answer_logs
		WHERE user_id=$1 GROUP BY difficulty ORDER BY difficulty`, userID)
	if err != nil {
		return nil, fmt.Errorf("difficulty histogram: %w", err)
	}
	defer rows.Close()

	var buckets []domain.DifficultyBucket
	for rows.Next() {
		var bucket domain.DifficultyBucket
		if err := rows.Scan(&bucket.Difficulty, &bucket.Count); err != nil {
			return nil, fmt.Errorf("difficulty histogram: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

func (s *Store) GetRecentPerformance(ctx context.Context, userID string, limit int) ([]domain.PerformanceEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, difficulty, correct, score_delta, answered_at
		FROM answer_logs WHERE user_id=$1
		ORDER BY answered_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent performance: %w", err)
	}
	defer rows.Close()

	var entries []domain.PerformanceEntry
	for rows.Next() {
		var entry domain.PerformanceEntry
		if err := rows.Scan(&entry.QuestionID, &entry.Difficulty, &entry.Correct, &entry.ScoreDelta, &entry.AnsweredAt); err != nil {
			return nil, fmt.Errorf("recent performance: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) GetQuestionByID(ctx context.Context, id string) (domain.Question, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, difficulty, prompt, choices, correct_answer_hash, tags
		FROM questions WHERE id=$1`, numericID)
	question, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return question, nil
}

func (s *Store) GetQuestionsByDifficulty(ctx context.Context, difficulty int) ([]domain.Question, error) {
	return s.queryQuestions(ctx, `
		SELECT id, difficulty, prompt, choices, correct_answer_hash, tags
		FROM questions WHERE difficulty=$1`, difficulty)
}

// GetRandomQuestion walks the fallback ladder in SQL: exact level, adjacent
// levels, then the whole bank, dropping the exclusion when it would empty the
// candidate set.
func (s *Store) GetRandomQuestion(ctx context.Context, difficulty int, excludeID string) (domain.Question, error) {
	level := difficulty
	if level < 1 {
		level = 1
	}
	if level > 10 {
		level = 10
	}

	levels := []int{level, level - 1, level + 1}
	for _, l := range levels {
		if l < 1 || l > 10 {
			continue
		}
		question, err := s.randomAtLevel(ctx, l, excludeID)
		if err == nil {
			return question, nil
		}
		if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
			return domain.Question{}, err
		}
	}
	return s.randomAtLevel(ctx, 0, excludeID)
}

func (s *Store) randomAtLevel(ctx context.Context, level int, excludeID string) (domain.Question, error) {
	query := `
		SELECT id, difficulty, prompt, choices, correct_answer_hash, tags FROM questions
		WHERE ($1 = 0 OR difficulty = $1) AND ($2 = '' OR id::text <> $2)
		ORDER BY random() LIMIT 1`
	row := s.pool.QueryRow(ctx, query, level, excludeID)
	question, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if excludeID != "" {
			// Exclusion emptied the set; retry without it.
			row = s.pool.QueryRow(ctx, query, level, "")
			question, err = scanQuestion(row)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Question{}, domain.ErrNoQuestionsAvailable
			}
			if err != nil {
				return domain.Question{}, fmt.Errorf("random question: %w", err)
			}
			return question, nil
		}
		return domain.Question{}, domain.ErrNoQuestionsAvailable
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("random question: %w", err)
	}
	return question, nil
}

func (s *Store) InsertQuestions(ctx context.Context, questions []domain.Question) error {
	for _, question := range questions {
		choices, err := json.Marshal(question.Choices)
		if err != nil {
			return fmt.Errorf("marshal choices: %w", err)
		}
		tags, err := json.Marshal(question.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO questions (difficulty, prompt, choices, correct_answer_hash, tags)
			VALUES ($1, $2, $3::jsonb, $4, $5::jsonb)`,
			question.Difficulty, question.Prompt, string(choices), question.CorrectAnswerHash, string(tags)); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}

func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("query questions: %w", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (domain.UserState, error) {
	var state domain.UserState
	var lastQuestionID sql.NullString
	var lastAnswerAt sql.NullTime
	err := row.Scan(&state.UserID, &state.CurrentDifficulty, &state.Streak, &state.MaxStreak,
		&state.TotalScore, &lastQuestionID, &lastAnswerAt, &state.StateVersion)
	if err != nil {
		return domain.UserState{}, err
	}
	state.LastQuestionID = lastQuestionID.String
	if lastAnswerAt.Valid {
		t := lastAnswerAt.Time
		state.LastAnswerAt = &t
	}
	return state, nil
}

func scanQuestion(row rowScanner) (domain.Question, error) {
	var question domain.Question
	var id int64
	var choices, tags []byte
	if err := row.Scan(&id, &question.Difficulty, &question.Prompt, &choices, &question.CorrectAnswerHash, &tags); err != nil {
		return domain.Question{}, err
	}
	question.ID = strconv.FormatInt(id, 10)
	if err := json.Unmarshal(choices, &question.Choices); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal choices: %w", err)
	}
	if err := json.Unmarshal(tags, &question.Tags); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	return question, nil
}
