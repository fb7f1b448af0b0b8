package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/decision"
)

// Sessions is an in-process registry of live sessions. Each session is
// guarded by its own lock so walks in different sessions proceed in parallel.
//
// Sessions idle for longer than the registry's idle limit are dropped the
// next time a session is registered. Finished sessions stay readable until
// then so their facts can still be priced.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idle     time.Duration
	now      func() time.Time
}

type entry struct {
	mu       sync.Mutex
	s        *decision.Session
	lastUsed time.Time
}

// NewSessions returns an empty registry. An idle limit of zero keeps
// sessions until they are deleted.
func NewSessions(idle time.Duration) *Sessions {
	return &Sessions{sessions: make(map[string]*entry), idle: idle, now: time.Now}
}

// Put registers s under its ID and expires idle sessions.
func (r *Sessions) Put(s *decision.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	r.sessions[s.ID()] = &entry{s: s, lastUsed: now}
}

// With runs fn with exclusive access to the session id.
func (r *Sessions) With(id string, fn func(*decision.Session) error) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		e.lastUsed = r.now()
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", estimate.ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.s)
}

// Delete forgets the session id.
func (r *Sessions) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep drops sessions idle past the limit and returns how many it dropped.
func (r *Sessions) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweep(r.now())
}

func (r *Sessions) sweep(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastUsed) > r.idle {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of registered sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
