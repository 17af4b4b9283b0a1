package dto

import "context"

// Passage is one retrieved document section.
type Passage struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity,omitempty"`
}

// Retriever finds passages relevant to a query. It is supplied per run and is
// never stored with the session.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Passage, error)
}

// RetrieverFunc adapts a plain function to Retriever.
type RetrieverFunc func(ctx context.Context, query string) ([]Passage, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	return f(ctx, query)
}
