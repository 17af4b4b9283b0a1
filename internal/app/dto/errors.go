package dto

import (
	"context"
	"errors"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/graph"
)

// Run errors
var (
	ErrNodeTimeout           = errors.New("node timed out")
	ErrNodeCapabilityFailure = errors.New("node capability failed")
	ErrCancelled             = errors.New("run cancelled")
	ErrInvalidPartial        = errors.New("node produced an invalid partial update")
	ErrMissingRetriever      = errors.New("retriever is required for this run")
	ErrMaxStepsExceeded      = errors.New("maximum number of steps exceeded")
	ErrInvalidRequest        = errors.New("invalid run request")
)

// ErrorKind is the machine-readable class of a failed run.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindNodeTimeout           ErrorKind = "NodeTimeout"
	KindNodeCapabilityFailure ErrorKind = "NodeCapabilityFailure"
	KindStoreUnavailable      ErrorKind = "StoreUnavailable"
	KindSessionBusy           ErrorKind = "SessionBusy"
	KindGraphConstruction     ErrorKind = "GraphConstructionError"
	KindCancelled             ErrorKind = "Cancelled"
	KindInvalidRequest        ErrorKind = "InvalidRequest"
	KindInternal              ErrorKind = "Internal"
)

// KindOf classifies err. Order matters: a capability that failed because the
// node deadline passed is reported as a timeout.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNodeTimeout):
		return KindNodeTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, checkpoint.ErrSessionBusy):
		return KindSessionBusy
	case errors.Is(err, checkpoint.ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, graph.ErrGraphConstruction):
		return KindGraphConstruction
	case errors.Is(err, ErrNodeCapabilityFailure), errors.Is(err, ErrInvalidPartial):
		return KindNodeCapabilityFailure
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrMissingRetriever):
		return KindInvalidRequest
	default:
		return KindInternal
	}
}
