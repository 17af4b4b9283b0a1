// Package graph provides edge definitions
package graph

// EdgeType represents the type of edge
type EdgeType string

const (
	// EdgeTypeDefault is an unconditional transition
	EdgeTypeDefault EdgeType = "default"
	// EdgeTypeConditional is one arm of a conditional branch
	EdgeTypeConditional EdgeType = "conditional"
)

// Edge represents a connection between nodes
// PRINCIPLES:
// - KISS: Simple edge representation
// - SRP: Only responsible for edge data
type Edge struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"` // node ID or END
	Type      EdgeType `json:"type"`
	Condition string   `json:"condition,omitempty"` // route key for conditional edges
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.Source == "" || e.Source == END {
		return ErrInvalidSource
	}
	if e.Target == "" {
		return ErrInvalidTarget
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	if e.Type == "" {
		e.Type = EdgeTypeDefault
	}
	return nil
}

// IsConditional checks if edge is conditional
func (e *Edge) IsConditional() bool {
	return e.Type == EdgeTypeConditional
}
