// Package checkpoint provides the per-session checkpoint entity and the
// persistence port implemented by storage adapters.
package checkpoint

import (
	"regexp"
	"time"

	"github.com/devbrain/devbrain/internal/core/state"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// ValidSessionID reports whether id is usable as a storage key.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Checkpoint is the last committed state of one session.
// PRINCIPLES:
// - KISS: Simple struct with clear fields
// - SRP: Only responsible for checkpoint data structure
type Checkpoint struct {
	SessionID string      `json:"sessionId" msgpack:"session_id"`
	State     state.State `json:"state" msgpack:"state"`
	UpdatedAt time.Time   `json:"updatedAt" msgpack:"updated_at"`
}

// New creates a checkpoint holding a private copy of st.
func New(sessionID string, st state.State) *Checkpoint {
	return &Checkpoint{
		SessionID: sessionID,
		State:     st.Clone(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Validate ensures checkpoint integrity
func (c *Checkpoint) Validate() error {
	if !ValidSessionID(c.SessionID) {
		return ErrInvalidSessionID
	}
	return nil
}
