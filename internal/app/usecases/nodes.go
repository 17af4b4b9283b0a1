package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/core/state"
)

// Node IDs of the router graph.
const (
	NodeClassify = "classify"
	NodeRetrieve = "retrieve"
	NodeGenerate = "generate"
)

const (
	systemPromptPrefix = "You are a Senior Dev Assistant. "
	docsPrompt         = "Using these internal docs: "
	generalPrompt      = "Answer generally."
)

// ClassifyNode labels the latest user message. In strict mode a label that
// is not exactly WIKI or GENERAL fails the node; otherwise anything that
// mentions WIKI routes to retrieval and the rest is GENERAL.
func ClassifyNode(classifier Classifier, strict bool) NodeFunc {
	return func(ctx context.Context, in NodeInput) (state.Partial, error) {
		text, ok := lastUserText(in.State)
		if !ok {
			return state.Partial{}, fmt.Errorf("%w: no user message to classify", dto.ErrNodeCapabilityFailure)
		}
		label, err := classifier.Classify(ctx, text)
		if err != nil {
			return state.Partial{}, err
		}
		if strict {
			qt, ok := state.ParseQueryType(label)
			if !ok {
				return state.Partial{}, fmt.Errorf("%w: unrecognized classification %q", dto.ErrNodeCapabilityFailure, label)
			}
			return state.WithQueryType(qt), nil
		}
		return state.WithQueryType(state.NormalizeQueryType(label)), nil
	}
}

// RetrieveNode looks up passages for the latest user message with the
// run's retriever and replaces the state context with them.
func RetrieveNode() NodeFunc {
	return func(ctx context.Context, in NodeInput) (state.Partial, error) {
		if in.Retriever == nil {
			return state.Partial{}, dto.ErrMissingRetriever
		}
		text, _ := lastUserText(in.State)
		passages, err := in.Retriever.Retrieve(ctx, text)
		if err != nil {
			return state.Partial{}, err
		}
		docs := make([]string, 0, len(passages))
		for _, p := range passages {
			docs = append(docs, FormatPassage(p))
		}
		return state.Partial{Context: docs}, nil
	}
}

// GenerateNode asks the generator for a reply grounded in the state context.
func GenerateNode(generator Generator) NodeFunc {
	return func(ctx context.Context, in NodeInput) (state.Partial, error) {
		reply, err := generator.Generate(ctx, SystemPrompt(in.State.Context), in.State.Messages)
		if err != nil {
			return state.Partial{}, err
		}
		if strings.TrimSpace(reply) == "" {
			return state.Partial{}, fmt.Errorf("%w: empty reply", dto.ErrNodeCapabilityFailure)
		}
		return state.Partial{Messages: []state.Message{state.AssistantMessage(reply)}}, nil
	}
}

// FormatPassage renders a retrieved passage the way the generator expects it.
func FormatPassage(p dto.Passage) string {
	return fmt.Sprintf("Source: %s\nContent: %s", p.Source, p.Content)
}

// SystemPrompt builds the generator's system message from the retrieved docs.
func SystemPrompt(docs []string) string {
	if len(docs) == 0 {
		return systemPromptPrefix + generalPrompt
	}
	return systemPromptPrefix + docsPrompt + strings.Join(docs, " ")
}

func lastUserText(st state.State) (string, bool) {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == state.RoleUser {
			return st.Messages[i].Content, true
		}
	}
	return "", false
}
