// Package rag registers the router RAG pipeline: classify the question,
// retrieve internal docs for WIKI questions, then generate the reply.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/devbrain/devbrain/internal/app/usecases"
	"github.com/devbrain/devbrain/internal/core/graph"
	"github.com/devbrain/devbrain/internal/core/state"
	"github.com/devbrain/devbrain/pkg/prebuilt"
	"github.com/devbrain/devbrain/pkg/validation"
)

// Name is the registry key of the router pipeline.
const Name = "router_rag"

// Config binds the pipeline's capabilities.
type Config struct {
	GraphName string
	// Classifier labels each question WIKI or GENERAL.
	Classifier usecases.Classifier
	Generator  usecases.Generator
	// StrictClassification fails the classify node on any label other
	// than exactly WIKI or GENERAL.
	StrictClassification bool
}

// RouteByQueryType keys the classify branch on the merged query type.
func RouteByQueryType(st state.State) string {
	return string(st.QueryType)
}

// NewGraph builds and compiles classify -> {retrieve -> generate | generate} -> END.
func NewGraph(name string) (*graph.Graph, error) {
	if name == "" {
		name = Name
	}
	g := graph.New(name)
	for _, id := range []string{usecases.NodeClassify, usecases.NodeRetrieve, usecases.NodeGenerate} {
		if err := g.AddNode(&graph.Node{ID: id}); err != nil {
			return nil, err
		}
	}
	if err := g.SetEntryPoint(usecases.NodeClassify); err != nil {
		return nil, err
	}
	err := g.AddConditionalEdges(usecases.NodeClassify, graph.ConditionalBranch{
		Route: RouteByQueryType,
		Conditions: map[string]string{
			string(state.QueryWiki):    usecases.NodeRetrieve,
			string(state.QueryGeneral): usecases.NodeGenerate,
		},
		Default: usecases.NodeGenerate,
	})
	if err != nil {
		return nil, err
	}
	if err := g.AddEdge(&graph.Edge{Source: usecases.NodeRetrieve, Target: usecases.NodeGenerate}); err != nil {
		return nil, err
	}
	if err := g.AddEdge(&graph.Edge{Source: usecases.NodeGenerate, Target: graph.END}); err != nil {
		return nil, err
	}
	if err := validation.ValidateGraph(g, validation.GraphValidationOptions{CheckCycles: true}); err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrGraphConstruction, err)
	}
	if err := g.Compile(); err != nil {
		return nil, err
	}
	return g, nil
}

// Build returns the compiled router graph with its nodes registered.
func Build(cfg Config) (*prebuilt.Pipeline, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("router_rag: classifier is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("router_rag: generator is required")
	}
	g, err := NewGraph(cfg.GraphName)
	if err != nil {
		return nil, err
	}
	p := usecases.NewDefaultNodeProcessor()
	p.RegisterNode(usecases.NodeClassify, usecases.ClassifyNode(cfg.Classifier, cfg.StrictClassification))
	p.RegisterNode(usecases.NodeRetrieve, usecases.RetrieveNode())
	p.RegisterNode(usecases.NodeGenerate, usecases.GenerateNode(cfg.Generator))
	return &prebuilt.Pipeline{Graph: g, Processor: p}, nil
}

// NewRouterRAG returns the registry builder; cfg must be a Config.
func NewRouterRAG() prebuilt.Builder {
	return prebuilt.NewBuildFunc(Name, func(_ context.Context, cfg any) (*prebuilt.Pipeline, error) {
		switch c := cfg.(type) {
		case Config:
			return Build(c)
		case *Config:
			if c == nil {
				break
			}
			return Build(*c)
		}
		return nil, fmt.Errorf("invalid config type for %s, expected rag.Config", Name)
	})
}

func init() {
	prebuilt.DefaultRegistry.MustRegister(NewRouterRAG())
}
