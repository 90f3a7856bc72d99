package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"brainbolt/internal/domain"
)

type boardEntry struct {
	totalScore float64
	maxStreak  int
	updatedAt  time.Time
}

// Leaderboard is the in-process implementation of app.Leaderboard, holding
// both projections in one map.
type Leaderboard struct {
	mu      sync.Mutex
	entries map[string]boardEntry
	now     func() time.Time
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		entries: make(map[string]boardEntry),
		now:     time.Now,
	}
}

func (l *Leaderboard) Update(_ context.Context, userID string, totalScore float64, maxStreak int) error {
	l.mu.Lock()
	l.entries[userID] = boardEntry{totalScore: totalScore, maxStreak: maxStreak, updatedAt: l.now()}
	l.mu.Unlock()
	return nil
}

// ScoreRank is 1-indexed; users not on the board rank 0.
func (l *Leaderboard) ScoreRank(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mine, ok := l.entries[userID]
	if !ok {
		return 0, nil
	}
	rank := 1
	for _, entry := range l.entries {
		if entry.totalScore > mine.totalScore {
			rank++
		}
	}
	return rank, nil
}

func (l *Leaderboard) StreakRank(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mine, ok := l.entries[userID]
	if !ok {
		return 0, nil
	}
	rank := 1
	for _, entry := range l.entries {
		if entry.maxStreak > mine.maxStreak {
			rank++
		}
	}
	return rank, nil
}

func (l *Leaderboard) TopByScore(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return l.top(limit, func(e boardEntry) float64 { return e.totalScore }), nil
}

func (l *Leaderboard) TopByStreak(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return l.top(limit, func(e boardEntry) float64 { return float64(e.maxStreak) }), nil
}

func (l *Leaderboard) top(limit int, value func(boardEntry) float64) []domain.LeaderboardRow {
	l.mu.Lock()
	rows := make([]domain.LeaderboardRow, 0, len(l.entries))
	for userID, entry := range l.entries {
		rows = append(rows, domain.LeaderboardRow{UserID: userID, Value: value(entry), UpdatedAt: entry.updatedAt})
	}
	l.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
