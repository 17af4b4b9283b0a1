package usecases

import (
	"context"

	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/core/graph"
	"github.com/devbrain/devbrain/internal/core/state"
)

// GraphExecutor defines the interface for executing the conversation graph
// PRINCIPLES:
// - SRP: Single responsibility for graph execution orchestration
// - OCP: Open for extension with different execution strategies
// - DIP: Depends on abstractions, not concretions
type GraphExecutor interface {
	// Run processes one user message to completion and returns the final state.
	Run(ctx context.Context, req dto.RunRequest) (*dto.RunResult, error)

	// Stop cancels an in-flight run by its run ID.
	Stop(ctx context.Context, runID string) error
}

// NodeInput is what a node sees: a private copy of the session state plus
// the invocation-local capabilities.
type NodeInput struct {
	SessionID string
	State     state.State
	Retriever dto.Retriever
}

// NodeProcessor defines the interface for processing individual nodes
type NodeProcessor interface {
	// Process executes a single node and returns its partial update
	Process(ctx context.Context, node *graph.Node, input NodeInput) (state.Partial, error)

	// CanProcess returns true if this processor has a handler for the node
	CanProcess(nodeID string) bool
}

// Classifier labels the latest user message. The raw label is normalized by
// the classify node, never by the implementation.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Generator produces the assistant reply from a system context and the
// conversation so far.
type Generator interface {
	Generate(ctx context.Context, system string, history []state.Message) (string, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, system string, history []state.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, system string, history []state.Message) (string, error) {
	return f(ctx, system, history)
}
