package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbrain/devbrain/internal/core/state"
)

func byQueryType(st state.State) string { return string(st.QueryType) }

// routerGraph builds classify -> {retrieve, generate} -> END.
func routerGraph(t *testing.T) *Graph {
	t.Helper()
	g := New("router")
	for _, id := range []string{"classify", "retrieve", "generate"} {
		require.NoError(t, g.AddNode(&Node{ID: id}))
	}
	require.NoError(t, g.SetEntryPoint("classify"))
	require.NoError(t, g.AddConditionalEdges("classify", ConditionalBranch{
		Route:      byQueryType,
		Conditions: map[string]string{"WIKI": "retrieve", "GENERAL": "generate"},
		Default:    "generate",
	}))
	require.NoError(t, g.AddEdge(&Edge{Source: "retrieve", Target: "generate"}))
	require.NoError(t, g.AddEdge(&Edge{Source: "generate", Target: END}))
	return g
}

func TestGraph_Validate(t *testing.T) {
	tests := []struct {
		name    string
		graph   *Graph
		wantErr error
	}{
		{
			name: "valid graph",
			graph: &Graph{
				Name:       "test-graph",
				EntryPoint: "node1",
				Nodes:      map[string]*Node{"node1": {ID: "node1", Type: NodeTypeFunction}},
			},
		},
		{
			name:    "missing name",
			graph:   &Graph{EntryPoint: "node1", Nodes: map[string]*Node{"node1": {ID: "node1"}}},
			wantErr: ErrInvalidGraphName,
		},
		{
			name:    "missing entry point",
			graph:   &Graph{Name: "test-graph"},
			wantErr: ErrNoEntryPoint,
		},
		{
			name:    "invalid entry point",
			graph:   &Graph{Name: "test-graph", EntryPoint: "nonexistent", Nodes: map[string]*Node{}},
			wantErr: ErrInvalidEntryPoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGraph_AddNode(t *testing.T) {
	g := New("test-graph")

	require.NoError(t, g.AddNode(&Node{ID: "node1"}))
	assert.Equal(t, NodeTypeFunction, g.Nodes["node1"].Type)
	assert.Equal(t, "node1", g.Nodes["node1"].Name)

	assert.ErrorIs(t, g.AddNode(nil), ErrNilNode)
	assert.ErrorIs(t, g.AddNode(&Node{ID: "node1"}), ErrDuplicateNode)
	assert.ErrorIs(t, g.AddNode(&Node{ID: END}), ErrInvalidNodeID)
	assert.ErrorIs(t, g.AddNode(&Node{ID: "x", Type: NodeTypeConditional}), ErrMissingConditional)
}

func TestGraph_AddEdge(t *testing.T) {
	g := New("test-graph")
	require.NoError(t, g.AddNode(&Node{ID: "a"}))
	require.NoError(t, g.AddNode(&Node{ID: "b"}))

	require.NoError(t, g.AddEdge(&Edge{Source: "a", Target: "b"}))
	assert.Equal(t, EdgeTypeDefault, g.Edges[0].Type)
	require.NoError(t, g.AddEdge(&Edge{Source: "b", Target: END}))

	assert.ErrorIs(t, g.AddEdge(nil), ErrNilEdge)
	assert.ErrorIs(t, g.AddEdge(&Edge{Source: "a", Target: "b"}), ErrDuplicateEdge)
	assert.ErrorIs(t, g.AddEdge(&Edge{Source: "a", Target: "a"}), ErrSelfLoop)
	assert.ErrorIs(t, g.AddEdge(&Edge{Source: "missing", Target: "a"}), ErrSourceNodeNotFound)
	assert.ErrorIs(t, g.AddEdge(&Edge{Source: "a", Target: "missing"}), ErrTargetNodeNotFound)
	assert.ErrorIs(t, g.AddEdge(&Edge{Source: END, Target: "a"}), ErrInvalidSource)
}

func TestGraph_AddConditionalEdges(t *testing.T) {
	g := New("test-graph")
	require.NoError(t, g.AddNode(&Node{ID: "a"}))
	require.NoError(t, g.AddNode(&Node{ID: "b"}))

	assert.ErrorIs(t, g.AddConditionalEdges("a", ConditionalBranch{Default: "b"}), ErrMissingRouter)
	assert.ErrorIs(t, g.AddConditionalEdges("a", ConditionalBranch{
		Route:      byQueryType,
		Conditions: map[string]string{"WIKI": "nowhere"},
		Default:    "b",
	}), ErrTargetNodeNotFound)
	assert.ErrorIs(t, g.AddConditionalEdges("a", ConditionalBranch{Route: byQueryType}), ErrInvalidTarget)

	require.NoError(t, g.AddConditionalEdges("a", ConditionalBranch{Route: byQueryType, Default: "b"}))
	assert.True(t, g.Nodes["a"].IsConditional())
	assert.ErrorIs(t, g.AddConditionalEdges("a", ConditionalBranch{Route: byQueryType, Default: "b"}), ErrAmbiguousRoute)
}

func TestGraph_Compile(t *testing.T) {
	t.Run("router graph compiles", func(t *testing.T) {
		g := routerGraph(t)
		require.NoError(t, g.Compile())
		assert.True(t, g.Compiled())
		assert.ErrorIs(t, g.AddNode(&Node{ID: "late"}), ErrGraphCompiled)
	})

	t.Run("node without route", func(t *testing.T) {
		g := New("g")
		require.NoError(t, g.AddNode(&Node{ID: "a"}))
		require.NoError(t, g.SetEntryPoint("a"))
		err := g.Compile()
		assert.ErrorIs(t, err, ErrGraphConstruction)
		assert.ErrorIs(t, err, ErrNoRoute)
	})

	t.Run("node with two static routes", func(t *testing.T) {
		g := New("g")
		require.NoError(t, g.AddNode(&Node{ID: "a"}))
		require.NoError(t, g.AddNode(&Node{ID: "b"}))
		require.NoError(t, g.SetEntryPoint("a"))
		require.NoError(t, g.AddEdge(&Edge{Source: "a", Target: "b"}))
		require.NoError(t, g.AddEdge(&Edge{Source: "a", Target: END}))
		require.NoError(t, g.AddEdge(&Edge{Source: "b", Target: END}))
		err := g.Compile()
		assert.ErrorIs(t, err, ErrGraphConstruction)
		assert.ErrorIs(t, err, ErrAmbiguousRoute)
	})

	t.Run("static and conditional route", func(t *testing.T) {
		g := New("g")
		require.NoError(t, g.AddNode(&Node{ID: "a"}))
		require.NoError(t, g.SetEntryPoint("a"))
		require.NoError(t, g.AddConditionalEdges("a", ConditionalBranch{Route: byQueryType, Default: END}))
		require.NoError(t, g.AddEdge(&Edge{Source: "a", Target: END}))
		assert.ErrorIs(t, g.Compile(), ErrAmbiguousRoute)
	})

	t.Run("cycle", func(t *testing.T) {
		g := New("g")
		require.NoError(t, g.AddNode(&Node{ID: "a"}))
		require.NoError(t, g.AddNode(&Node{ID: "b"}))
		require.NoError(t, g.SetEntryPoint("a"))
		require.NoError(t, g.AddEdge(&Edge{Source: "a", Target: "b"}))
		require.NoError(t, g.AddEdge(&Edge{Source: "b", Target: "a"}))
		err := g.Compile()
		assert.ErrorIs(t, err, ErrGraphConstruction)
		assert.ErrorIs(t, err, ErrCyclicGraph)
	})

	t.Run("missing entry", func(t *testing.T) {
		g := New("g")
		require.NoError(t, g.AddNode(&Node{ID: "a"}))
		require.NoError(t, g.AddEdge(&Edge{Source: "a", Target: END}))
		err := g.Compile()
		assert.ErrorIs(t, err, ErrGraphConstruction)
		assert.ErrorIs(t, err, ErrNoEntryPoint)
	})
}

func TestGraph_Next(t *testing.T) {
	g := routerGraph(t)

	_, err := g.Next("classify", state.Zero())
	require.ErrorIs(t, err, ErrGraphNotCompiled)
	require.NoError(t, g.Compile())

	tests := []struct {
		name    string
		current string
		qt      state.QueryType
		want    string
	}{
		{"wiki routes to retrieve", "classify", state.QueryWiki, "retrieve"},
		{"general routes to generate", "classify", state.QueryGeneral, "generate"},
		{"unknown key falls back to default", "classify", state.QueryType("OTHER"), "generate"},
		{"missing key falls back to default", "classify", "", "generate"},
		{"static successor", "retrieve", state.QueryWiki, "generate"},
		{"terminal", "generate", state.QueryGeneral, END},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.Zero()
			st.QueryType = tt.qt
			got, err := g.Next(tt.current, st)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = g.Next("missing", state.Zero())
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestHasCycle(t *testing.T) {
	assert.False(t, HasCycle(routerGraph(t)))
}
