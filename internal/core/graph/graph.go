// Package graph provides the workflow graph entity: nodes, static and
// conditional edges, and the successor function used by the executor.
package graph

import (
	"fmt"
	"sort"

	"github.com/devbrain/devbrain/internal/core/state"
)

// Graph represents the core graph entity
// PRINCIPLES:
// - KISS: Simple struct, no complex hierarchies
// - SRP: Only responsible for graph structure, not execution
// Once Compile succeeds the graph is immutable and safe to share between runs.
type Graph struct {
	Name       string           `json:"name"`
	Nodes      map[string]*Node `json:"nodes"`
	Edges      []*Edge          `json:"edges"`
	EntryPoint string           `json:"entry_point"`

	compiled bool
	static   map[string]string
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{Name: name, Nodes: make(map[string]*Node)}
}

// Validate ensures graph integrity
func (g *Graph) Validate() error {
	if g.Name == "" {
		return ErrInvalidGraphName
	}
	if g.EntryPoint == "" {
		return ErrNoEntryPoint
	}
	if _, exists := g.Nodes[g.EntryPoint]; !exists {
		return ErrInvalidEntryPoint
	}
	return nil
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(node *Node) error {
	if g.compiled {
		return ErrGraphCompiled
	}
	if node == nil {
		return ErrNilNode
	}
	if node.Type == "" {
		node.Type = NodeTypeFunction
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return ErrDuplicateNode
	}
	if node.Name == "" {
		node.Name = node.ID
	}
	g.Nodes[node.ID] = node
	return nil
}

// AddEdge adds a static edge; the target may be END.
func (g *Graph) AddEdge(edge *Edge) error {
	if g.compiled {
		return ErrGraphCompiled
	}
	if edge == nil {
		return ErrNilEdge
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	if _, exists := g.Nodes[edge.Source]; !exists {
		return ErrSourceNodeNotFound
	}
	if !g.isTarget(edge.Target) {
		return ErrTargetNodeNotFound
	}
	for _, e := range g.Edges {
		if e.Source == edge.Source && e.Target == edge.Target && e.Type == edge.Type && e.Condition == edge.Condition {
			return ErrDuplicateEdge
		}
	}
	g.Edges = append(g.Edges, edge)
	return nil
}

// AddConditionalEdges turns source into a conditional node routed by branch.
func (g *Graph) AddConditionalEdges(source string, branch ConditionalBranch) error {
	if g.compiled {
		return ErrGraphCompiled
	}
	n, exists := g.Nodes[source]
	if !exists {
		return ErrSourceNodeNotFound
	}
	if branch.Route == nil {
		return ErrMissingRouter
	}
	if n.Conditional != nil {
		return ErrAmbiguousRoute
	}
	if branch.Default == "" {
		return fmt.Errorf("%w: conditional branch on %q has no default", ErrInvalidTarget, source)
	}
	keys := make([]string, 0, len(branch.Conditions))
	for k := range branch.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !g.isTarget(branch.Conditions[k]) {
			return fmt.Errorf("%w: %q -> %q", ErrTargetNodeNotFound, k, branch.Conditions[k])
		}
	}
	if !g.isTarget(branch.Default) {
		return fmt.Errorf("%w: default -> %q", ErrTargetNodeNotFound, branch.Default)
	}
	n.Type = NodeTypeConditional
	n.Conditional = &branch
	for _, k := range keys {
		g.Edges = append(g.Edges, &Edge{Source: source, Target: branch.Conditions[k], Type: EdgeTypeConditional, Condition: k})
	}
	g.Edges = append(g.Edges, &Edge{Source: source, Target: branch.Default, Type: EdgeTypeConditional})
	return nil
}

// SetEntryPoint marks the node every run starts from.
func (g *Graph) SetEntryPoint(id string) error {
	if g.compiled {
		return ErrGraphCompiled
	}
	if _, exists := g.Nodes[id]; !exists {
		return ErrInvalidEntryPoint
	}
	g.EntryPoint = id
	return nil
}

// Compile checks the whole structure and freezes the graph. Every failure
// wraps ErrGraphConstruction.
func (g *Graph) Compile() error {
	if g.compiled {
		return nil
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrGraphConstruction, err)
	}
	static := make(map[string]string, len(g.Nodes))
	for _, e := range g.Edges {
		if e.IsConditional() {
			continue
		}
		if _, dup := static[e.Source]; dup {
			return fmt.Errorf("%w: %w: %q", ErrGraphConstruction, ErrAmbiguousRoute, e.Source)
		}
		static[e.Source] = e.Target
	}
	for id, n := range g.Nodes {
		_, hasStatic := static[id]
		switch {
		case n.Conditional != nil && hasStatic:
			return fmt.Errorf("%w: %w: %q", ErrGraphConstruction, ErrAmbiguousRoute, id)
		case n.Conditional == nil && !hasStatic:
			return fmt.Errorf("%w: %w: %q", ErrGraphConstruction, ErrNoRoute, id)
		}
	}
	if HasCycle(g) {
		return fmt.Errorf("%w: %w", ErrGraphConstruction, ErrCyclicGraph)
	}
	g.static = static
	g.compiled = true
	return nil
}

// Compiled reports whether Compile has succeeded.
func (g *Graph) Compiled() bool {
	return g.compiled
}

// Entry returns the entry node ID.
func (g *Graph) Entry() string {
	return g.EntryPoint
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Next returns the successor of current given the post-merge state. It reads
// only immutable data, so concurrent runs may share one compiled graph.
func (g *Graph) Next(current string, st state.State) (string, error) {
	if !g.compiled {
		return "", ErrGraphNotCompiled
	}
	n, ok := g.Nodes[current]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, current)
	}
	if n.Conditional != nil {
		return n.Conditional.Resolve(st), nil
	}
	return g.static[current], nil
}

func (g *Graph) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, ok := g.Nodes[id]
	return ok
}

// HasCycle detects any cycle in a directed graph using DFS with coloring.
// END is a sink and never part of a cycle.
func HasCycle(g *Graph) bool {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		if e.Target != END {
			adj[e.Source] = append(adj[e.Source], e.Target)
		}
	}
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range adj[u] {
			if color[v] == gray {
				return true // back-edge
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}
	for id := range g.Nodes {
		if color[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
