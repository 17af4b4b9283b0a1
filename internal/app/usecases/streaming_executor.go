package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/infrastructure/metrics"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

// ErrStreamConsumed is returned when a stream is started a second time.
var ErrStreamConsumed = errors.New("event stream already consumed")

// StreamingExecutor provides real-time streaming execution capabilities
// PRINCIPLES:
// - One StepEvent per committed node, pushed as it happens
// - Consumer disconnect is the cancel signal
// - Subscribers see every event of every run
type StreamingExecutor struct {
	base     *DefaultGraphExecutor
	eventBus *EventBus
	buffer   int
}

// NewStreamingExecutor creates a streaming-enabled graph executor
func NewStreamingExecutor(base *DefaultGraphExecutor) *StreamingExecutor {
	return &StreamingExecutor{base: base, eventBus: NewEventBus(), buffer: 4}
}

// Subscribe adds an event subscriber to the event bus
func (se *StreamingExecutor) Subscribe(subscriber EventSubscriber) {
	se.eventBus.Subscribe(subscriber)
}

// Run executes without streaming; subscribers are still notified.
func (se *StreamingExecutor) Run(ctx context.Context, req dto.RunRequest) (*dto.RunResult, error) {
	var events []dto.StepEvent
	res, err := se.base.execute(ctx, uuid.NewString(), req, func(ev dto.StepEvent) {
		events = append(events, ev)
		se.eventBus.Publish(ctx, ev)
	})
	if res != nil {
		res.Events = events
	}
	return res, err
}

// Stop cancels an in-flight run by its run ID.
func (se *StreamingExecutor) Stop(ctx context.Context, runID string) error {
	return se.base.Stop(ctx, runID)
}

// RunStreaming returns a lazy event stream for one run. Nothing executes
// until the first call to Next or Events.
func (se *StreamingExecutor) RunStreaming(ctx context.Context, req dto.RunRequest) (*EventStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &EventStream{
		runID:  uuid.NewString(),
		events: make(chan dto.StepEvent, se.buffer),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.start = func() {
		go func() {
			defer close(s.done)
			defer close(s.events)
			defer cancel()
			res, err := se.base.execute(runCtx, s.runID, req, func(ev dto.StepEvent) {
				se.eventBus.Publish(context.WithoutCancel(runCtx), ev)
				s.push(ev)
			})
			s.mu.Lock()
			s.result, s.err = res, err
			s.mu.Unlock()
		}()
	}
	return s, nil
}

// EventStream is a finite, non-restartable sequence of StepEvents that ends
// with exactly one terminal event.
type EventStream struct {
	runID  string
	start  func()
	once   sync.Once
	events chan dto.StepEvent
	closed chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	closeOnce sync.Once

	mu     sync.Mutex
	result *dto.RunResult
	err    error
}

// RunID identifies the run behind the stream.
func (s *EventStream) RunID() string {
	return s.runID
}

// Events starts the run (once) and returns the event channel. The channel is
// closed after the terminal event.
func (s *EventStream) Events() <-chan dto.StepEvent {
	s.once.Do(s.start)
	return s.events
}

// Next blocks until the next event. ok is false once the stream is exhausted
// or ctx ends.
func (s *EventStream) Next(ctx context.Context) (dto.StepEvent, bool) {
	select {
	case ev, ok := <-s.Events():
		return ev, ok
	case <-ctx.Done():
		return dto.StepEvent{}, false
	}
}

// Close signals that the consumer has gone away. The run is cancelled at
// its next boundary and undelivered events are dropped.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() {
		select {
		case <-s.done:
		default:
			metrics.StreamDisconnected()
		}
		close(s.closed)
		s.cancel()
	})
}

// Wait blocks until the run has finished and returns its result. A stream
// that was never started is started here.
func (s *EventStream) Wait() (*dto.RunResult, error) {
	s.once.Do(s.start)
	<-s.done
	return s.Result()
}

// Result returns the run result once the stream is exhausted.
func (s *EventStream) Result() (*dto.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Err returns the run error once the stream is exhausted.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *EventStream) push(ev dto.StepEvent) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

// EventBus manages event distribution
type EventBus struct {
	subscribers map[dto.EventType][]EventSubscriber
	mu          sync.RWMutex
}

// EventSubscriber handles specific event types
type EventSubscriber interface {
	HandleEvent(ctx context.Context, event dto.StepEvent) error
	GetEventTypes() []dto.EventType
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[dto.EventType][]EventSubscriber)}
}

// Subscribe adds an event subscriber for specific event types
func (eb *EventBus) Subscribe(subscriber EventSubscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, eventType := range subscriber.GetEventTypes() {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	}
}

// Publish delivers an event to its subscribers synchronously, in
// subscription order. Subscriber errors are logged and otherwise ignored.
func (eb *EventBus) Publish(ctx context.Context, event dto.StepEvent) {
	eb.mu.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mu.RUnlock()

	for _, sub := range subscribers {
		if err := sub.HandleEvent(ctx, event); err != nil {
			logx.Warn().Err(err).Str("event", string(event.Type)).Msg("event subscriber failed")
		}
	}
}

// Built-in Event Subscribers

// AllEventTypes lists every event type a run can emit.
var AllEventTypes = []dto.EventType{dto.EventStep, dto.EventCompleted, dto.EventError, dto.EventCancelled}

// LoggingSubscriber logs all execution events
type LoggingSubscriber struct {
	Verbose bool
}

func (ls *LoggingSubscriber) HandleEvent(ctx context.Context, event dto.StepEvent) error {
	e := logx.Debug()
	if ls.Verbose || event.Terminal() {
		e = logx.Info()
	}
	e = e.Str("type", string(event.Type)).
		Str("runID", event.RunID).
		Str("sessionID", event.SessionID).
		Int("step", event.Step)
	if event.Node != "" {
		e = e.Str("node", event.Node)
	}
	if event.ErrorKind != dto.KindNone {
		e = e.Str("kind", string(event.ErrorKind)).Str("error", event.Error)
	}
	e.Msg("run event")
	return nil
}

func (ls *LoggingSubscriber) GetEventTypes() []dto.EventType {
	return AllEventTypes
}

// MetricsSubscriber counts events per type and run duration per status.
type MetricsSubscriber struct {
	mu          sync.RWMutex
	EventCounts map[dto.EventType]int
	NodeCounts  map[string]int
	ErrorKinds  map[dto.ErrorKind]int
	started     map[string]time.Time
	RunTimes    map[string]time.Duration
}

func NewMetricsSubscriber() *MetricsSubscriber {
	return &MetricsSubscriber{
		EventCounts: make(map[dto.EventType]int),
		NodeCounts:  make(map[string]int),
		ErrorKinds:  make(map[dto.ErrorKind]int),
		started:     make(map[string]time.Time),
		RunTimes:    make(map[string]time.Duration),
	}
}

func (ms *MetricsSubscriber) HandleEvent(ctx context.Context, event dto.StepEvent) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.EventCounts[event.Type]++
	switch event.Type {
	case dto.EventStep:
		ms.NodeCounts[event.Node]++
		if _, ok := ms.started[event.RunID]; !ok {
			ms.started[event.RunID] = event.Timestamp
		}
	case dto.EventError, dto.EventCancelled:
		ms.ErrorKinds[event.ErrorKind]++
		fallthrough
	case dto.EventCompleted:
		if t, ok := ms.started[event.RunID]; ok {
			ms.RunTimes[event.RunID] = event.Timestamp.Sub(t)
			delete(ms.started, event.RunID)
		}
	}
	return nil
}

func (ms *MetricsSubscriber) GetEventTypes() []dto.EventType {
	return AllEventTypes
}

func (ms *MetricsSubscriber) GetMetrics() map[string]interface{} {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	events := make(map[string]int, len(ms.EventCounts))
	for k, v := range ms.EventCounts {
		events[string(k)] = v
	}
	nodes := make(map[string]int, len(ms.NodeCounts))
	for k, v := range ms.NodeCounts {
		nodes[k] = v
	}
	kinds := make(map[string]int, len(ms.ErrorKinds))
	for k, v := range ms.ErrorKinds {
		kinds[string(k)] = v
	}
	return map[string]interface{}{
		"event_counts": events,
		"node_counts":  nodes,
		"error_kinds":  kinds,
		"runs_timed":   len(ms.RunTimes),
	}
}
