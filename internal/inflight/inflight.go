// Package inflight provides a per-key busy guard. It deliberately rejects
// instead of queueing: callers retry explicitly once the holder releases.
package inflight

import "sync"

// Key builds a guard key from a mutation kind and its target.
func Key(kind, target string) string {
	return kind + ":" + target
}

// Guard tracks which keys currently have an operation outstanding.
type Guard struct {
	mu   sync.Mutex
	busy map[string]bool
}

func NewGuard() *Guard {
	return &Guard{busy: make(map[string]bool)}
}

// Acquire marks key busy and reports whether the caller won the slot.
// A false return means another operation on the same key is outstanding.
func (g *Guard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[key] {
		return false
	}
	g.busy[key] = true
	return true
}

// Release clears the busy flag. It must be called exactly once per
// successful Acquire, regardless of the operation's outcome.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, key)
}
