package app

import (
	"sync"

	"brainbolt/internal/domain"
)

// Broadcaster fans leaderboard updates out to websocket subscribers. Sends
// never block: when a subscriber's buffer is full the stale snapshot is
// dropped in favor of the newest one.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan domain.LeaderboardUpdate]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan domain.LeaderboardUpdate]struct{}),
	}
}

// Subscribe registers a new listener. The caller must invoke the returned
// cancel function to avoid leaks.
func (b *Broadcaster) Subscribe() (<-chan domain.LeaderboardUpdate, func()) {
	ch := make(chan domain.LeaderboardUpdate, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// HasSubscribers lets publishers skip building a snapshot nobody wants.
func (b *Broadcaster) HasSubscribers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers) > 0
}

// Publish delivers the update to every subscriber, replacing a pending stale
// snapshot when a slow reader has not caught up.
func (b *Broadcaster) Publish(update domain.LeaderboardUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}
