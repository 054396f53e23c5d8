package agent

import (
	"sync"
	"time"
)

// Gate rate-limits proactive suggestions. User-initiated conversation
// never consults the gate; only snapshot analysis does.
type Gate struct {
	mu        sync.Mutex
	cooldown  time.Duration
	lastFired time.Time
}

// NewGate creates a gate with the given cooldown.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// Allow reports whether a suggestion may fire at now: true when the
// gate has never fired, or when at least the cooldown has passed since
// the last fire. Exactly at the boundary counts as allowed.
func (g *Gate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastFired.IsZero() {
		return true
	}
	return now.Sub(g.lastFired) >= g.cooldown
}

// Fire records a suggestion at now, starting a new cooldown window.
func (g *Gate) Fire(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFired = now
}

// LastFired returns the time of the most recent fire, zero if never.
func (g *Gate) LastFired() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFired
}
