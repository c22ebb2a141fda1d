package service

import (
	"context"
	"sync"
)

// Guard serialises plan work per athlete. TryAcquire never waits, which lets
// a second matching pass turn into a no-op while Acquire queues slot edits
// behind whatever is running.
type Guard struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewGuard constructs an empty Guard.
func NewGuard() *Guard {
	return &Guard{slots: make(map[string]chan struct{})}
}

// TryAcquire takes the lock for key if it is free. The returned release
// func must be called exactly once when ok is true.
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.slots[key]; busy {
		return nil, false
	}
	done := make(chan struct{})
	g.slots[key] = done
	return g.releaser(key, done), true
}

// Acquire blocks until key is free or ctx is done.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		g.mu.Lock()
		busy, held := g.slots[key]
		if !held {
			done := make(chan struct{})
			g.slots[key] = done
			g.mu.Unlock()
			return g.releaser(key, done), nil
		}
		g.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Busy reports whether key is currently held.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.slots[key]
	return busy
}

func (g *Guard) releaser(key string, done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.slots, key)
			g.mu.Unlock()
			close(done)
		})
	}
}
