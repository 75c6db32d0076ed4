package runtime

import (
	"slices"
	"sync"
)

type Set map[string]struct{}

// Presence tracks the live connection handles of every user.
// A user is online as long as at least one handle is registered, so a second
// tab closing does not mark a still-connected user offline.
type Presence struct {
	mu      sync.RWMutex
	handles map[string]Set // map user -> connection handles
}

func NewPresence() *Presence {
	return &Presence{handles: make(map[string]Set)}
}

// Join registers connID for userID and reports whether the user just came online.
// Joining twice with the same handle is counted once.
func (p *Presence) Join(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles, ok := p.handles[userID]
	if !ok {
		handles = make(Set)
		p.handles[userID] = handles
	}
	handles[connID] = struct{}{}
	return !ok
}

// Leave drops connID and reports whether the user went offline.
// Unknown handles are ignored.
func (p *Presence) Leave(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles, ok := p.handles[userID]
	if !ok {
		return false
	}
	if _, ok := handles[connID]; !ok {
		return false
	}
	delete(handles, connID)

	// Remove empty sets so the map does not grow with every user ever seen
	if len(handles) == 0 {
		delete(p.handles, userID)
		return true
	}
	return false
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles[userID]) > 0
}

// Snapshot returns the online user ids, sorted.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.handles))
	for userID := range p.handles {
		users = append(users, userID)
	}
	p.mu.RUnlock()

	slices.Sort(users)
	return users
}

// Count returns the number of online users.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}
