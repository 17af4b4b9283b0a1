package validation

import (
	"fmt"

	"github.com/devbrain/devbrain/internal/core/graph"
)

// GraphValidationOptions controls optional validation checks.
type GraphValidationOptions struct {
	// CheckCycles enables detection of directed cycles.
	CheckCycles bool
}

// ValidateGraph performs structural validation on a graph assembled outside
// the AddNode/AddEdge guards, e.g. one decoded from JSON. Compile still has
// the final word on routing.
func ValidateGraph(g *graph.Graph, opts ...GraphValidationOptions) error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	if err := g.Validate(); err != nil {
		return err
	}

	for id, n := range g.Nodes {
		if n == nil {
			return fmt.Errorf("nil node encountered")
		}
		if err := n.Validate(); err != nil {
			return err
		}
		if !nodeIDPattern.MatchString(id) {
			return fmt.Errorf("%w: %q", graph.ErrInvalidNodeID, id)
		}
	}

	type edgeKey struct{ s, t, ty, cond string }
	seen := make(map[edgeKey]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if e == nil {
			return fmt.Errorf("nil edge encountered")
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if _, ok := g.Nodes[e.Source]; !ok {
			return graph.ErrSourceNodeNotFound
		}
		if _, ok := g.Nodes[e.Target]; !ok && e.Target != graph.END {
			return graph.ErrTargetNodeNotFound
		}
		k := edgeKey{e.Source, e.Target, string(e.Type), e.Condition}
		if _, dup := seen[k]; dup {
			return graph.ErrDuplicateEdge
		}
		seen[k] = struct{}{}
	}

	var cfg GraphValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.CheckCycles && graph.HasCycle(g) {
		return graph.ErrCyclicGraph
	}
	return nil
}
