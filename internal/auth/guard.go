package auth

import (
	"context"
	"sync"
	"time"
)

// Guard gates login attempts per username over a sliding window. It is a
// speed bump against automated guessing, not a record of truth.
type Guard interface {
	IsBlocked(ctx context.Context, username string) bool
	RecordAttempt(ctx context.Context, username string, succeeded bool)
}

// MemoryGuard keeps failure timestamps in process memory. Counters are lost
// on restart.
type MemoryGuard struct {
	threshold int
	window    time.Duration
	now       func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
}

func NewMemoryGuard(threshold int, window time.Duration) *MemoryGuard {
	return &MemoryGuard{
		threshold: threshold,
		window:    window,
		now:       time.Now,
		attempts:  make(map[string][]time.Time),
	}
}

// WithClock replaces the time source.
func (g *MemoryGuard) WithClock(now func() time.Time) *MemoryGuard {
	g.now = now
	return g
}

func (g *MemoryGuard) IsBlocked(_ context.Context, username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.prune(username, g.now())) >= g.threshold
}

func (g *MemoryGuard) RecordAttempt(_ context.Context, username string, succeeded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if succeeded {
		delete(g.attempts, username)
		return
	}

	now := g.now()
	g.attempts[username] = append(g.prune(username, now), now)
}

// prune drops entries older than the window. Caller holds mu.
func (g *MemoryGuard) prune(username string, now time.Time) []time.Time {
	list, ok := g.attempts[username]
	if !ok {
		return nil
	}

	cutoff := now.Add(-g.window)
	i := 0
	for i < len(list) && !list[i].After(cutoff) {
		i++
	}
	list = list[i:]

	if len(list) == 0 {
		delete(g.attempts, username)
		return nil
	}
	g.attempts[username] = list
	return list
}
