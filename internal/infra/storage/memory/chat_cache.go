package memory

import (
	"sync"

	"noe/internal/domain/chat"
)

// ChatCache holds the current chat state. Reducers run under the write lock so
// socket and API goroutines observe one serial history of states.
type ChatCache struct {
	mu    sync.RWMutex
	state chat.State
}

// NewChatCache builds an empty cache.
func NewChatCache() *ChatCache {
	return &ChatCache{state: chat.NewState()}
}

// Snapshot returns the current state. States are immutable, so the value is
// safe to read after the lock is released.
func (c *ChatCache) Snapshot() chat.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Apply runs reducers in order and returns the resulting state.
func (c *ChatCache) Apply(reducers ...chat.Reducer) chat.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.Apply(reducers...)
	return c.state
}

// Reset drops everything, used on logout.
func (c *ChatCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = chat.NewState()
}
