// Package checkpoint provides checkpoint persistence interfaces
package checkpoint

import "context"

// Saver persists one checkpoint per session.
// PRINCIPLES:
// - ISP: three methods, nothing a backend cannot do atomically
// - DIP: Core domain depends on interface, not implementations
//
// Save must replace the previous checkpoint atomically: a concurrent Load
// observes either the old or the new record, never a mix. Load returns
// ErrCheckpointNotFound for unseen sessions. Backend failures should wrap
// ErrStoreUnavailable.
type Saver interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, sessionID string) (*Checkpoint, error)
	Delete(ctx context.Context, sessionID string) error
}
