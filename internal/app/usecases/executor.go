package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/app/services"
	"github.com/devbrain/devbrain/internal/core/graph"
	"github.com/devbrain/devbrain/internal/core/state"
	"github.com/devbrain/devbrain/internal/infrastructure/metrics"
	logx "github.com/devbrain/devbrain/pkg/logger"
	"github.com/devbrain/devbrain/pkg/validation"
)

// ErrRunNotFound is returned by Stop for an unknown or finished run.
var ErrRunNotFound = errors.New("run not found")

// Executor defaults.
const (
	DefaultNodeTimeout   = 60 * time.Second
	DefaultMaxSteps      = 16
	DefaultCommitTimeout = 5 * time.Second
)

// ExecutorConfig tunes the run loop.
type ExecutorConfig struct {
	// NodeTimeout bounds a node that does not set its own Timeout.
	NodeTimeout time.Duration
	// MaxSteps aborts runs that visit more nodes than this.
	MaxSteps int
	// CommitTimeout bounds each checkpoint write.
	CommitTimeout time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.NodeTimeout <= 0 {
		c.NodeTimeout = DefaultNodeTimeout
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = DefaultCommitTimeout
	}
	return c
}

// emitFunc receives every event of a run in order. It is called after the
// step's checkpoint has been committed.
type emitFunc func(dto.StepEvent)

// DefaultGraphExecutor implements the GraphExecutor interface
// PRINCIPLES:
// - KISS: One node at a time, commit, emit, move on
// - SRP: Focuses only on graph execution orchestration
// - DIP: Nodes, checkpoints and the session guard are injected
type DefaultGraphExecutor struct {
	graph       *graph.Graph
	processor   NodeProcessor
	checkpoints *services.CheckpointService
	guard       *services.SessionGuard
	config      ExecutorConfig

	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

// NewDefaultGraphExecutor compiles g if needed and checks that every node
// has a processor. Failures wrap graph.ErrGraphConstruction.
func NewDefaultGraphExecutor(
	g *graph.Graph,
	processor NodeProcessor,
	checkpoints *services.CheckpointService,
	guard *services.SessionGuard,
	config ExecutorConfig,
) (*DefaultGraphExecutor, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: graph is nil", graph.ErrGraphConstruction)
	}
	if err := g.Compile(); err != nil {
		return nil, err
	}
	for id := range g.Nodes {
		if !processor.CanProcess(id) {
			return nil, fmt.Errorf("%w: no processor for node %q", graph.ErrGraphConstruction, id)
		}
	}
	if guard == nil {
		guard = services.NewSessionGuard(services.BusyReject)
	}
	return &DefaultGraphExecutor{
		graph:       g,
		processor:   processor,
		checkpoints: checkpoints,
		guard:       guard,
		config:      config.withDefaults(),
		runs:        make(map[string]context.CancelFunc),
	}, nil
}

// Graph returns the compiled graph the executor runs.
func (e *DefaultGraphExecutor) Graph() *graph.Graph {
	return e.graph
}

// Run processes one user message to completion. The returned result is
// non-nil whenever the request was valid, including failed and cancelled runs.
func (e *DefaultGraphExecutor) Run(ctx context.Context, req dto.RunRequest) (*dto.RunResult, error) {
	var events []dto.StepEvent
	res, err := e.execute(ctx, uuid.NewString(), req, func(ev dto.StepEvent) {
		events = append(events, ev)
	})
	if res != nil {
		res.Events = events
	}
	return res, err
}

// Stop cancels an in-flight run by its run ID.
func (e *DefaultGraphExecutor) Stop(ctx context.Context, runID string) error {
	e.mu.Lock()
	cancel, exists := e.runs[runID]
	e.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cancel()
	return nil
}

// Running returns the IDs of runs currently in flight.
func (e *DefaultGraphExecutor) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	return ids
}

func (e *DefaultGraphExecutor) track(runID string, cancel context.CancelFunc) func() {
	e.mu.Lock()
	e.runs[runID] = cancel
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.runs, runID)
		e.mu.Unlock()
		cancel()
	}
}

// execute is the run loop shared by Run and RunStreaming. Every outcome,
// including rejection before the first node, ends with exactly one terminal
// event passed to emit.
func (e *DefaultGraphExecutor) execute(ctx context.Context, runID string, req dto.RunRequest, emit emitFunc) (*dto.RunResult, error) {
	start := time.Now()
	res := &dto.RunResult{RunID: runID, SessionID: req.SessionID}
	log := logx.With().Str("runID", runID).Str("sessionID", req.SessionID).Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer e.track(runID, cancel)()

	metrics.RunStarted()
	defer metrics.RunEnded()

	step := 0
	finish := func(st state.State, node string, err error) (*dto.RunResult, error) {
		res.State = st
		res.Duration = time.Since(start)
		ev := dto.StepEvent{RunID: runID, SessionID: req.SessionID, Step: step, Node: node, Timestamp: time.Now().UTC()}
		switch kind := dto.KindOf(err); kind {
		case dto.KindNone:
			res.Status = dto.RunStatusCompleted
			ev.Type = dto.EventCompleted
			log.Info().Int("steps", step).Dur("duration", res.Duration).Msg("run completed")
		case dto.KindCancelled:
			res.Status = dto.RunStatusCancelled
			ev.Type = dto.EventCancelled
			ev.ErrorKind = kind
			ev.Error = err.Error()
			log.Info().Str("node", node).Int("steps", step).Msg("run cancelled")
		default:
			res.Status = dto.RunStatusFailed
			ev.Type = dto.EventError
			ev.ErrorKind = kind
			ev.Error = err.Error()
			log.Error().Err(err).Str("node", node).Str("kind", string(kind)).Msg("run failed")
		}
		metrics.RunFinished(string(res.Status))
		emit(ev)
		return res, err
	}

	if err := validation.ValidateStruct(&req); err != nil {
		return finish(state.Zero(), "", fmt.Errorf("%w: %w", dto.ErrInvalidRequest, err))
	}

	release, err := e.guard.Acquire(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: waiting for session: %w", dto.ErrCancelled, err)
		}
		return finish(state.Zero(), "", err)
	}
	defer release()

	st, err := e.checkpoints.Load(ctx, req.SessionID)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", dto.ErrCancelled, err)
		}
		return finish(state.Zero(), "", err)
	}
	st = state.Merge(st, state.Partial{Messages: []state.Message{state.UserMessage(req.Message)}})
	log.Debug().Int("history", len(st.Messages)).Msg("run started")

	current := e.graph.Entry()
	for current != graph.END {
		if ctx.Err() != nil {
			return finish(st, current, fmt.Errorf("%w: %w", dto.ErrCancelled, ctx.Err()))
		}
		if step >= e.config.MaxSteps {
			return finish(st, current, fmt.Errorf("%w: %d", dto.ErrMaxStepsExceeded, e.config.MaxSteps))
		}
		node, ok := e.graph.Node(current)
		if !ok {
			return finish(st, current, fmt.Errorf("%w: %q", graph.ErrNodeNotFound, current))
		}
		step++

		partial, err := e.runNode(ctx, node, NodeInput{SessionID: req.SessionID, State: st.Clone(), Retriever: req.Retriever})
		if err != nil {
			if dto.KindOf(err) != dto.KindCancelled {
				metrics.NodeFailed(string(dto.KindOf(err)))
			}
			return finish(st, current, err)
		}
		if ctx.Err() != nil {
			// The node finished after cancellation; its output is discarded.
			return finish(st, current, fmt.Errorf("%w: %w", dto.ErrCancelled, ctx.Err()))
		}

		next := state.Merge(st, partial)
		if err := e.commit(ctx, req.SessionID, next); err != nil {
			return finish(st, current, err)
		}
		st = next
		emit(dto.StepEvent{
			Type:      dto.EventStep,
			RunID:     runID,
			SessionID: req.SessionID,
			Step:      step,
			Node:      current,
			Data:      &partial,
			Timestamp: time.Now().UTC(),
		})

		if current, err = e.graph.Next(current, st); err != nil {
			return finish(st, node.ID, err)
		}
	}
	return finish(st, "", nil)
}

// runNode invokes one node under its deadline. The node runs on a context
// detached from the caller so an external call already issued can finish;
// cancellation is observed here and the late result is dropped.
func (e *DefaultGraphExecutor) runNode(ctx context.Context, node *graph.Node, in NodeInput) (state.Partial, error) {
	timeout := e.config.NodeTimeout
	if node.Timeout > 0 {
		timeout = node.Timeout
	}
	nodeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	type result struct {
		partial state.Partial
		err     error
	}
	done := make(chan result, 1)
	started := time.Now()
	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		p, err := e.processor.Process(nodeCtx, node, in)
		done <- result{partial: p, err: err}
	}()

	select {
	case r := <-done:
		metrics.NodeExecuted(node.ID, time.Since(started))
		return settle(node.ID, r.partial, r.err, nodeCtx, timeout)
	case <-nodeCtx.Done():
		if !errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
			// The node returned and released its context.
			r := <-done
			metrics.NodeExecuted(node.ID, time.Since(started))
			return settle(node.ID, r.partial, r.err, nodeCtx, timeout)
		}
		return state.Partial{}, fmt.Errorf("node %s: %w after %s", node.ID, dto.ErrNodeTimeout, timeout)
	case <-ctx.Done():
		return state.Partial{}, fmt.Errorf("node %s: %w: %w", node.ID, dto.ErrCancelled, ctx.Err())
	}
}

func settle(nodeID string, p state.Partial, err error, nodeCtx context.Context, timeout time.Duration) (state.Partial, error) {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
			return state.Partial{}, fmt.Errorf("node %s: %w after %s", nodeID, dto.ErrNodeTimeout, timeout)
		}
		return state.Partial{}, fmt.Errorf("node %s: %w: %w", nodeID, dto.ErrNodeCapabilityFailure, err)
	}
	if err := p.Validate(); err != nil {
		return state.Partial{}, fmt.Errorf("node %s: %w: %w", nodeID, dto.ErrInvalidPartial, err)
	}
	return p, nil
}

// commit writes the checkpoint on a context that ignores run cancellation:
// once a node has been accepted its commit completes.
func (e *DefaultGraphExecutor) commit(ctx context.Context, sessionID string, st state.State) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.CommitTimeout)
	defer cancel()
	return e.checkpoints.Commit(commitCtx, sessionID, st)
}
