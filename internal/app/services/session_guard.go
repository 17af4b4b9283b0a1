package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/infrastructure/metrics"
)

// BusyPolicy decides what happens when a run targets a session that already
// has a run in flight.
type BusyPolicy string

const (
	// BusyReject fails the second run with checkpoint.ErrSessionBusy.
	BusyReject BusyPolicy = "reject"
	// BusyWait queues the second run until the first releases the session.
	BusyWait BusyPolicy = "wait"
)

// ParseBusyPolicy resolves a configured policy name.
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch p := BusyPolicy(strings.ToLower(s)); p {
	case BusyReject, BusyWait:
		return p, nil
	case "":
		return BusyReject, nil
	}
	return "", fmt.Errorf("unknown busy policy %q", s)
}

// SessionGuard serializes runs per session. Different sessions never block
// each other.
type SessionGuard struct {
	policy BusyPolicy

	mu    sync.Mutex
	slots map[string]*slot
}

// slot is a one-token semaphore shared by every run of a session. refs counts
// holders and waiters so the entry is dropped once nobody needs it.
type slot struct {
	token chan struct{}
	refs  int
}

// NewSessionGuard creates a guard with the given policy.
func NewSessionGuard(policy BusyPolicy) *SessionGuard {
	if policy == "" {
		policy = BusyReject
	}
	return &SessionGuard{policy: policy, slots: make(map[string]*slot)}
}

// Policy returns the configured policy.
func (g *SessionGuard) Policy() BusyPolicy {
	return g.policy
}

// Acquire claims the session. The returned release func must be called
// exactly once. Under BusyWait it blocks until the session is free or ctx ends.
func (g *SessionGuard) Acquire(ctx context.Context, sessionID string) (func(), error) {
	g.mu.Lock()
	s, ok := g.slots[sessionID]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		g.slots[sessionID] = s
	}
	s.refs++
	g.mu.Unlock()

	select {
	case s.token <- struct{}{}:
		return g.releaser(sessionID, s), nil
	default:
	}

	if g.policy == BusyReject {
		g.unref(sessionID, s)
		metrics.SessionBusy()
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrSessionBusy, sessionID)
	}

	select {
	case s.token <- struct{}{}:
		return g.releaser(sessionID, s), nil
	case <-ctx.Done():
		g.unref(sessionID, s)
		return nil, ctx.Err()
	}
}

func (g *SessionGuard) releaser(sessionID string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.token
			g.unref(sessionID, s)
		})
	}
}

func (g *SessionGuard) unref(sessionID string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, sessionID)
	}
}

// Active returns the number of sessions with a run in flight or queued.
func (g *SessionGuard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}
