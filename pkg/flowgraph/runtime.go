package flowgraph

import (
	"context"
	"fmt"

	llm "github.com/devbrain/devbrain/internal/adapters/llm/openai"
	"github.com/devbrain/devbrain/internal/adapters/repository/postgres"
	"github.com/devbrain/devbrain/internal/adapters/retrieval/pgvector"
	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/app/services"
	"github.com/devbrain/devbrain/internal/app/usecases"
	"github.com/devbrain/devbrain/internal/config"
	"github.com/devbrain/devbrain/internal/core/checkpoint"
	coregraph "github.com/devbrain/devbrain/internal/core/graph"
	"github.com/devbrain/devbrain/internal/core/state"
	logx "github.com/devbrain/devbrain/pkg/logger"
	"github.com/devbrain/devbrain/pkg/prebuilt"
	"github.com/devbrain/devbrain/pkg/prebuilt/rag"
)

// Re-export core types for convenience
type (
	Graph       = coregraph.Graph
	State       = state.State
	Message     = state.Message
	Checkpoint  = checkpoint.Checkpoint
	RunRequest  = dto.RunRequest
	RunResult   = dto.RunResult
	StepEvent   = dto.StepEvent
	Passage     = dto.Passage
	Retriever   = dto.Retriever
	Classifier  = usecases.Classifier
	Generator   = usecases.Generator
	EventStream = usecases.EventStream
	Subscriber  = usecases.EventSubscriber
)

type options struct {
	classifier  usecases.Classifier
	generator   usecases.Generator
	retriever   dto.Retriever
	saver       checkpoint.Saver
	subscribers []usecases.EventSubscriber
	registry    *prebuilt.Registry
}

// Option customizes New.
type Option func(*options)

// WithClassifier replaces the LLM classifier.
func WithClassifier(c Classifier) Option { return func(o *options) { o.classifier = c } }

// WithGenerator replaces the LLM generator.
func WithGenerator(g Generator) Option { return func(o *options) { o.generator = g } }

// WithRetriever sets the retriever used by runs that do not bring their own.
func WithRetriever(r Retriever) Option { return func(o *options) { o.retriever = r } }

// WithSaver bypasses backend selection.
func WithSaver(s checkpoint.Saver) Option { return func(o *options) { o.saver = s } }

// WithSubscriber attaches an event subscriber to the streaming executor.
func WithSubscriber(s Subscriber) Option {
	return func(o *options) { o.subscribers = append(o.subscribers, s) }
}

// WithRegistry resolves the router pipeline from r instead of prebuilt.DefaultRegistry.
func WithRegistry(r *prebuilt.Registry) Option { return func(o *options) { o.registry = r } }

// Runtime owns one engine instance and the resources behind it.
type Runtime struct {
	cfg         *config.Config
	executor    *usecases.StreamingExecutor
	checkpoints *services.CheckpointService
	retriever   dto.Retriever
	metrics     *usecases.MetricsSubscriber
	closers     []func()
}

// New wires cfg into a ready runtime. Capabilities not given as options are
// built from cfg.LLM and cfg.Retrieval.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("flowgraph: nil config")
	}
	o := options{registry: prebuilt.DefaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}
	rt := &Runtime{cfg: cfg, metrics: usecases.NewMetricsSubscriber()}

	if o.classifier == nil || o.generator == nil || (o.retriever == nil && cfg.Retrieval.Enabled) {
		client := llm.NewClient(llm.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			ChatModel:       cfg.LLM.ChatModel,
			ClassifierModel: cfg.LLM.ClassifierModel,
			EmbeddingModel:  cfg.LLM.EmbeddingModel,
			RequestTimeout:  cfg.LLM.RequestTimeout,
		})
		if o.classifier == nil {
			o.classifier = client
		}
		if o.generator == nil {
			o.generator = client
		}
		if o.retriever == nil && cfg.Retrieval.Enabled {
			store, err := openRetriever(ctx, cfg, client)
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, store.Close)
			o.retriever = store
		}
	}
	rt.retriever = o.retriever

	saver := o.saver
	if saver == nil {
		s, closeSaver, err := OpenSaver(ctx, cfg)
		if err != nil {
			rt.Close()
			return nil, err
		}
		saver = s
		rt.closers = append(rt.closers, closeSaver)
	}
	rt.checkpoints = services.NewCheckpointService(saver)

	pipeline, err := o.registry.Build(ctx, rag.Name, rag.Config{
		Classifier:           o.classifier,
		Generator:            o.generator,
		StrictClassification: cfg.Engine.StrictClassification,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	policy, err := services.ParseBusyPolicy(cfg.Engine.BusyPolicy)
	if err != nil {
		rt.Close()
		return nil, err
	}
	base, err := usecases.NewDefaultGraphExecutor(pipeline.Graph, pipeline.Processor, rt.checkpoints,
		services.NewSessionGuard(policy), usecases.ExecutorConfig{
			NodeTimeout:   cfg.Engine.NodeTimeout,
			MaxSteps:      cfg.Engine.MaxSteps,
			CommitTimeout: cfg.Engine.CommitTimeout,
		})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.executor = usecases.NewStreamingExecutor(base)
	rt.executor.Subscribe(rt.metrics)
	rt.executor.Subscribe(&usecases.LoggingSubscriber{Verbose: !cfg.Env().IsProduction()})
	for _, s := range o.subscribers {
		rt.executor.Subscribe(s)
	}

	logx.Info().
		Str("backend", cfg.Checkpoint.Backend).
		Str("graph", pipeline.Graph.Name).
		Bool("retrieval", rt.retriever != nil).
		Msg("runtime ready")
	return rt, nil
}

func openRetriever(ctx context.Context, cfg *config.Config, embedder pgvector.Embedder) (*pgvector.Store, error) {
	pool, err := postgres.NewPool(ctx, cfg.RetrievalDSN(), postgres.PoolConfig{MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("retrieval database: %w", err)
	}
	store := pgvector.NewStore(pool, embedder, pgvector.Config{
		Limit:      cfg.Retrieval.Limit,
		Threshold:  cfg.Retrieval.Threshold,
		Dimensions: cfg.Retrieval.Dimensions,
	})
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (rt *Runtime) withRetriever(req RunRequest) RunRequest {
	if req.Retriever == nil {
		req.Retriever = rt.retriever
	}
	return req
}

// Execute runs a request to completion.
func (rt *Runtime) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	return rt.executor.Run(ctx, rt.withRetriever(req))
}

// Run is Execute for a plain session and message.
func (rt *Runtime) Run(ctx context.Context, sessionID, message string) (*RunResult, error) {
	return rt.Execute(ctx, RunRequest{SessionID: sessionID, Message: message})
}

// Stream starts a run whose events are consumed from the returned stream.
func (rt *Runtime) Stream(ctx context.Context, req RunRequest) (*EventStream, error) {
	return rt.executor.RunStreaming(ctx, rt.withRetriever(req))
}

// Stop cancels an in-flight run.
func (rt *Runtime) Stop(ctx context.Context, runID string) error {
	return rt.executor.Stop(ctx, runID)
}

// Session returns the committed checkpoint of a session.
func (rt *Runtime) Session(ctx context.Context, sessionID string) (*Checkpoint, error) {
	return rt.checkpoints.Get(ctx, sessionID)
}

// ResetSession deletes a session's checkpoint.
func (rt *Runtime) ResetSession(ctx context.Context, sessionID string) error {
	return rt.checkpoints.Reset(ctx, sessionID)
}

// Metrics returns the event counters gathered since start.
func (rt *Runtime) Metrics() map[string]interface{} {
	return rt.metrics.GetMetrics()
}

// Retriever returns the default retriever, nil when retrieval is disabled.
func (rt *Runtime) Retriever() Retriever {
	return rt.retriever
}

// Config returns the configuration the runtime was built from.
func (rt *Runtime) Config() *config.Config {
	return rt.cfg
}

// Close releases backends in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
