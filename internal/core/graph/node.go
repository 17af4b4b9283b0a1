// Package graph provides node definitions
package graph

import (
	"time"

	"github.com/devbrain/devbrain/internal/core/state"
)

// END is the pseudo-node that terminates a run.
const END = "__end__"

// NodeType represents the type of node
type NodeType string

const (
	// NodeTypeFunction has a single static successor
	NodeTypeFunction NodeType = "function"
	// NodeTypeConditional picks its successor from the merged state
	NodeTypeConditional NodeType = "conditional"
)

// Node represents a vertex in the graph
// PRINCIPLES:
// - KISS: Simple node representation
// - SRP: Only responsible for node data, the behavior is bound by the executor
type Node struct {
	ID          string             `json:"id"`
	Type        NodeType           `json:"type"`
	Name        string             `json:"name,omitempty"`
	Timeout     time.Duration      `json:"timeout,omitempty"`
	Conditional *ConditionalBranch `json:"conditional,omitempty"`
}

// Router maps a post-merge state to a route key.
type Router func(state.State) string

// ConditionalBranch defines conditional routing logic
type ConditionalBranch struct {
	Route      Router            `json:"-"`
	Conditions map[string]string `json:"conditions"` // route key -> target node ID
	Default    string            `json:"default"`    // target when the key is missing or unknown
}

// Targets returns every node the branch can route to, default included.
func (b *ConditionalBranch) Targets() []string {
	out := make([]string, 0, len(b.Conditions)+1)
	for _, t := range b.Conditions {
		out = append(out, t)
	}
	return append(out, b.Default)
}

// Resolve picks the successor for st; unknown keys fall back to Default.
func (b *ConditionalBranch) Resolve(st state.State) string {
	if target, ok := b.Conditions[b.Route(st)]; ok {
		return target
	}
	return b.Default
}

// Validate ensures node integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation, <10 lines
func (n *Node) Validate() error {
	if n.ID == "" || n.ID == END {
		return ErrInvalidNodeID
	}
	if n.Type != NodeTypeFunction && n.Type != NodeTypeConditional {
		return ErrInvalidNodeType
	}
	if n.Type == NodeTypeConditional && n.Conditional == nil {
		return ErrMissingConditional
	}
	return nil
}

// IsConditional checks if node is conditional
func (n *Node) IsConditional() bool {
	return n.Type == NodeTypeConditional
}
