package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/devbrain/devbrain/internal/core/graph"
	"github.com/devbrain/devbrain/internal/core/state"
)

// NodeFunc is the body of one graph node.
type NodeFunc func(ctx context.Context, input NodeInput) (state.Partial, error)

// DefaultNodeProcessor implements the NodeProcessor interface
// PRINCIPLES:
// - SRP: Handles only node dispatch
// - OCP: New nodes are registered, not coded in
// - LSP: Substitutable for any NodeProcessor implementation
type DefaultNodeProcessor struct {
	mu    sync.RWMutex
	nodes map[string]NodeFunc
}

// NewDefaultNodeProcessor creates an empty node processor
func NewDefaultNodeProcessor() *DefaultNodeProcessor {
	return &DefaultNodeProcessor{nodes: make(map[string]NodeFunc)}
}

// RegisterNode binds fn to the node with the given ID.
func (p *DefaultNodeProcessor) RegisterNode(nodeID string, fn NodeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[nodeID] = fn
}

// Process executes a single node with the given context and input
func (p *DefaultNodeProcessor) Process(ctx context.Context, node *graph.Node, input NodeInput) (state.Partial, error) {
	p.mu.RLock()
	fn, exists := p.nodes[node.ID]
	p.mu.RUnlock()
	if !exists {
		return state.Partial{}, fmt.Errorf("no processor registered for node: %s", node.ID)
	}
	return fn(ctx, input)
}

// CanProcess returns true if a handler is registered for nodeID
func (p *DefaultNodeProcessor) CanProcess(nodeID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.nodes[nodeID]
	return exists
}
