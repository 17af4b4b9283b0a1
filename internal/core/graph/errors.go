// Package graph defines domain-specific errors
package graph

import "errors"

// ErrGraphConstruction wraps every structural problem found while building a graph.
var ErrGraphConstruction = errors.New("graph construction failed")

var (
	// Graph errors
	ErrInvalidGraphName  = errors.New("invalid graph name")
	ErrNoEntryPoint      = errors.New("no entry point specified")
	ErrInvalidEntryPoint = errors.New("entry point node not found")
	ErrCyclicGraph       = errors.New("cyclic dependency detected")
	ErrGraphCompiled     = errors.New("graph is compiled and cannot be modified")
	ErrGraphNotCompiled  = errors.New("graph has not been compiled")

	// Node errors
	ErrNilNode            = errors.New("node cannot be nil")
	ErrInvalidNodeID      = errors.New("invalid node ID")
	ErrInvalidNodeType    = errors.New("invalid node type")
	ErrNodeNotFound       = errors.New("node not found")
	ErrDuplicateNode      = errors.New("duplicate node ID")
	ErrMissingConditional = errors.New("conditional node missing conditions")
	ErrMissingRouter      = errors.New("conditional branch has no router")
	ErrNoRoute            = errors.New("node has no outgoing route")
	ErrAmbiguousRoute     = errors.New("node has more than one outgoing route")

	// Edge errors
	ErrNilEdge            = errors.New("edge cannot be nil")
	ErrInvalidSource      = errors.New("invalid source node")
	ErrInvalidTarget      = errors.New("invalid target node")
	ErrSourceNodeNotFound = errors.New("source node not found")
	ErrTargetNodeNotFound = errors.New("target node not found")
	ErrDuplicateEdge      = errors.New("duplicate edge")
	ErrSelfLoop           = errors.New("self-loops are not allowed")
)
