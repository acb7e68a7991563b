package aggregator

import "time"

// DefaultCooldown is how long a source's aggregator sits idle after a
// completed sweep before it's eligible to run again.
const DefaultCooldown = 30 * 24 * time.Hour

// Gate decides whether a source's aggregator may run now, based on when
// it last completed a full sweep.
type Gate struct {
	cooldown time.Duration
}

// NewGate builds a Gate enforcing the given cooldown between sweeps.
func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{cooldown: cooldown}
}

// GateDecision is whether a sweep may start now, and if not, when it may.
type GateDecision struct {
	Admit   bool
	RunAt   time.Time
}

// Check returns whether a sweep may start now. lastRun is the zero
// time.Time if the source has never completed a sweep.
func (g *Gate) Check(lastRun time.Time) GateDecision {
	if lastRun.IsZero() {
		return GateDecision{Admit: true}
	}
	readyAt := lastRun.Add(g.cooldown)
	if time.Now().After(readyAt) {
		return GateDecision{Admit: true}
	}
	return GateDecision{RunAt: readyAt}
}
