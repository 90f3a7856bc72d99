package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"brainbolt/internal/domain"
)

// Leaderboard keeps both projections in a single table for deployments
// without Redis. Ranks are count-greater queries, so ties share a rank.
type Leaderboard struct {
	pool *pgxpool.Pool
}

func NewLeaderboard(pool *pgxpool.Pool) *Leaderboard {
	return &Leaderboard{pool: pool}
}

func (l *Leaderboard) Update(ctx context.Context, userID string, totalScore float64, maxStreak int) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO leaderboard (user_id, total_score, max_streak, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			max_streak  = EXCLUDED.max_streak,
			updated_at  = EXCLUDED.updated_at`,
		userID, totalScore, maxStreak, time.Now())
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	return nil
}

func (l *Leaderboard) ScoreRank(ctx context.Context, userID string) (int, error) {
	return l.rank(ctx, userID, `
		SELECT COUNT(*) + 1 FROM leaderboard
		WHERE total_score > (SELECT total_score FROM leaderboard WHERE user_id=$1)`)
}

func (l *Leaderboard) StreakRank(ctx context.Context, userID string) (int, error) {
	return l.rank(ctx, userID, `
		SELECT COUNT(*) + 1 FROM leaderboard
		WHERE max_streak > (SELECT max_streak FROM leaderboard WHERE user_id=$1)`)
}

func (l *Leaderboard) TopByScore(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return l.top(ctx, `
		SELECT user_id, total_score, updated_at FROM leaderboard
		ORDER BY total_score DESC, user_id LIMIT $1`, limit)
}

func (l *Leaderboard) TopByStreak(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return l.top(ctx, `
		SELECT user_id, max_streak::float8, updated_at FROM leaderboard
		ORDER BY max_streak DESC, user_id LIMIT $1`, limit)
}

func (l *Leaderboard) rank(ctx context.Context, userID, query string) (int, error) {
	var exists bool
	if err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leaderboard WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("leaderboard rank: %w", err)
	}
	if !exists {
		return 0, nil
	}
	var rank int
	if err := l.pool.QueryRow(ctx, query, userID).Scan(&rank); err != nil {
		return 0, fmt.Errorf("leaderboard rank: %w", err)
	}
	return rank, nil
}

func (l *Leaderboard) top(ctx context.Context, query string, limit int) ([]domain.LeaderboardRow, error) {
	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardRow
	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.Value, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("leaderboard top: %w", err)
		}
		entries = append(entries, row)
	}
	return entries, rows.Err()
}
