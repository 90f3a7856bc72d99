// Package cache provides the in-process TTL caches that keep the hot quiz
// paths off the durable store. Every cache is an optimization only: callers
// must stay correct when every lookup misses.
package cache

import (
	"sync"
	"time"

	"brainbolt/internal/domain"
)

// Default TTLs per namespace.
const (
	DefaultUserStateTTL    = 30 * time.Second
	DefaultQuestionPoolTTL = 300 * time.Second
	DefaultLeaderboardTTL  = 15 * time.Second
	DefaultMetricsTTL      = 60 * time.Second
	DefaultIdempotencyTTL  = 300 * time.Second
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a mutex-guarded expiring map. Expiry is checked on read, so no
// background sweeper is needed; Set always overwrites.
type TTLCache[K comparable, V any] struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[K]entry[V]
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[K]entry[V]),
	}
}

// NewTTLCacheWithClock allows deterministic expiry in tests.
func NewTTLCacheWithClock[K comparable, V any](ttl time.Duration, clock func() time.Time) *TTLCache[K, V] {
	c := NewTTLCache[K, V](ttl)
	c.clock = clock
	return c
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.expiresAt.After(c.clock()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock().Add(c.ttl)}
	c.mu.Unlock()
}

// SetIfAbsent writes only when no live entry exists; first writer wins.
func (c *TTLCache[K, V]) SetIfAbsent(key K, value V) bool {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.expiresAt.After(now) {
		return false
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
	return true
}

// Delete removes one entry immediately.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes every entry in the namespace.
func (c *TTLCache[K, V]) Flush() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// BoardKey addresses one cached leaderboard snapshot.
type BoardKey struct {
	Board string
	Limit int
}

// IdemKey scopes idempotency tokens per user.
type IdemKey struct {
	UserID string
	Token  string
}

// Config carries per-namespace TTL overrides; zero values fall back to the
// defaults above.
type Config struct {
	UserStateTTL    time.Duration
	QuestionPoolTTL time.Duration
	LeaderboardTTL  time.Duration
	MetricsTTL      time.Duration
	IdempotencyTTL  time.Duration
}

// Layers bundles the five cache namespaces injected into the session
// controller. Each namespace expires independently.
type Layers struct {
	UserState    *TTLCache[string, domain.UserState]
	QuestionPool *TTLCache[int, []domain.Question]
	Leaderboard  *TTLCache[BoardKey, []domain.LeaderboardRow]
	Metrics      *TTLCache[string, domain.UserMetrics]
	Idempotency  *TTLCache[IdemKey, domain.AnswerResult]
}

func NewLayers(cfg Config) *Layers {
	return &Layers{
		UserState:    NewTTLCache[string, domain.UserState](ttlOr(cfg.UserStateTTL, DefaultUserStateTTL)),
		QuestionPool: NewTTLCache[int, []domain.Question](ttlOr(cfg.QuestionPoolTTL, DefaultQuestionPoolTTL)),
		Leaderboard:  NewTTLCache[BoardKey, []domain.LeaderboardRow](ttlOr(cfg.LeaderboardTTL, DefaultLeaderboardTTL)),
		Metrics:      NewTTLCache[string, domain.UserMetrics](ttlOr(cfg.MetricsTTL, DefaultMetricsTTL)),
		Idempotency:  NewTTLCache[IdemKey, domain.AnswerResult](ttlOr(cfg.IdempotencyTTL, DefaultIdempotencyTTL)),
	}
}

// InvalidateUser drops every per-user namespace entry after an accepted
// answer. Leaderboard snapshots are flushed wholesale because any accepted
// answer can reorder both boards.
func (l *Layers) InvalidateUser(userID string) {
	l.UserState.Delete(userID)
	l.Metrics.Delete(userID)
	l.Leaderboard.Flush()
}

func ttlOr(ttl, fallback time.Duration) time.Duration {
	if ttl <= 0 {
		return fallback
	}
	return ttl
}
