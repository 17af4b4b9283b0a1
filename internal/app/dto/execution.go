package dto

import (
	"time"

	"github.com/devbrain/devbrain/internal/core/state"
)

// RunRequest asks the engine to process one user message in a session.
type RunRequest struct {
	SessionID string    `json:"threadId" validate:"required,session_id"`
	Message   string    `json:"message" validate:"required,max=16000"`
	Retriever Retriever `json:"-"`
}

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// EventType discriminates StepEvent.
type EventType string

const (
	EventStep      EventType = "step"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// StepEvent reports progress of a run. A step event is emitted only after
// its partial has been committed.
type StepEvent struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"runId"`
	SessionID string         `json:"threadId"`
	Step      int            `json:"step,omitempty"`
	Node      string         `json:"node,omitempty"`
	Data      *state.Partial `json:"data,omitempty"`
	ErrorKind ErrorKind      `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Terminal reports whether no event can follow e.
func (e StepEvent) Terminal() bool {
	return e.Type != EventStep
}

// RunResult is the outcome of a non-streaming run.
type RunResult struct {
	RunID     string        `json:"runId"`
	SessionID string        `json:"threadId"`
	Status    RunStatus     `json:"status"`
	State     state.State   `json:"state"`
	Events    []StepEvent   `json:"events"`
	Duration  time.Duration `json:"duration"`
}

// Reply returns the content of the last assistant message, if any.
func (r *RunResult) Reply() string {
	if m, ok := r.State.LastMessage(); ok && m.Role == state.RoleAssistant {
		return m.Content
	}
	return ""
}
