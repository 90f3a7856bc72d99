// Package redis implements the shared leaderboard projection on Redis sorted
// sets, so every instance of the service ranks against the same boards.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"brainbolt/internal/domain"
)

const (
	scoreBoardKey  = "leaderboard:score"
	streakBoardKey = "leaderboard:streak"
	updatedAtKey   = "leaderboard:updated_at"
)

// Leaderboard is the Redis implementation of app.Leaderboard. Both boards and
// the updated-at hash are written in a single pipeline round trip.
type Leaderboard struct {
	client *redis.Client
	now    func() time.Time
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client, now: time.Now}
}

func (l *Leaderboard) Update(ctx context.Context, userID string, totalScore float64, maxStreak int) error {
	now := l.now()
	pipe := l.client.Pipeline()
	pipe.ZAdd(ctx, scoreBoardKey, redis.Z{Score: totalScore, Member: userID})
	pipe.ZAdd(ctx, streakBoardKey, redis.Z{Score: float64(maxStreak), Member: userID})
	pipe.HSet(ctx, updatedAtKey, userID, now.UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

// ScoreRank is 1-indexed; users not on the board rank 0.
func (l *Leaderboard) ScoreRank(ctx context.Context, userID string) (int, error) {
	return l.rank(ctx, scoreBoardKey, userID)
}

func (l *Leaderboard) StreakRank(ctx context.Context, userID string) (int, error) {
	return l.rank(ctx, streakBoardKey, userID)
}

func (l *Leaderboard) TopByScore(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return l.top(ctx, scoreBoardKey, limit)
}

func (l *Leaderboard) TopByStreak(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return l.top(ctx, streakBoardKey, limit)
}

func (l *Leaderboard) rank(ctx context.Context, key, userID string) (int, error) {
	rank, err := l.client.ZRevRank(ctx, key, userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(rank) + 1, nil
}

func (l *Leaderboard) top(ctx context.Context, key string, limit int) ([]domain.LeaderboardRow, error) {
	members, err := l.client.ZRevRangeWithScores(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	userIDs := make([]string, 0, len(members))
	for _, member := range members {
		if userID, ok := member.Member.(string); ok {
			userIDs = append(userIDs, userID)
		}
	}
	updatedAt, err := l.client.HMGet(ctx, updatedAtKey, userIDs...).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]domain.LeaderboardRow, 0, len(userIDs))
	for i, userID := range userIDs {
		row := domain.LeaderboardRow{UserID: userID, Value: members[i].Score}
		if i < len(updatedAt) {
			if raw, ok := updatedAt[i].(string); ok {
				if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
					row.UpdatedAt = time.UnixMilli(millis)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
