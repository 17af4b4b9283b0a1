package dto

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/graph"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"timeout", fmt.Errorf("classify: %w", ErrNodeTimeout), KindNodeTimeout},
		{"capability", fmt.Errorf("generate: %w: boom", ErrNodeCapabilityFailure), KindNodeCapabilityFailure},
		{"invalid partial", ErrInvalidPartial, KindNodeCapabilityFailure},
		{"store", fmt.Errorf("commit: %w", checkpoint.ErrStoreUnavailable), KindStoreUnavailable},
		{"busy", checkpoint.ErrSessionBusy, KindSessionBusy},
		{"graph", fmt.Errorf("%w: %w", graph.ErrGraphConstruction, graph.ErrCyclicGraph), KindGraphConstruction},
		{"cancelled", ErrCancelled, KindCancelled},
		{"context cancelled", context.Canceled, KindCancelled},
		{"missing retriever", ErrMissingRetriever, KindInvalidRequest},
		{"other", errors.New("x"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStepEvent_Terminal(t *testing.T) {
	assert.False(t, StepEvent{Type: EventStep}.Terminal())
	for _, typ := range []EventType{EventCompleted, EventError, EventCancelled} {
		assert.True(t, StepEvent{Type: typ}.Terminal())
	}
}
