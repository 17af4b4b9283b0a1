// Package state provides the typed conversation state shared by graph nodes
// and the merge rules applied to every node's partial update.
package state

import "fmt"

// State is the record threaded through a graph run and persisted per session.
// PRINCIPLES:
// - KISS: three fields, each with one merge rule
// - SRP: holds data only; capabilities such as retrievers never live here
type State struct {
	Messages  []Message `json:"messages" msgpack:"messages"`
	QueryType QueryType `json:"queryType" msgpack:"query_type"`
	Context   []string  `json:"context" msgpack:"context"`
}

// Zero returns the state of a session that has never been committed.
func Zero() State {
	return State{
		Messages:  []Message{},
		QueryType: QueryGeneral,
		Context:   []string{},
	}
}

// Clone returns a deep copy so later merges cannot alias committed slices.
func (s State) Clone() State {
	out := State{QueryType: s.QueryType}
	out.Messages = append(make([]Message, 0, len(s.Messages)), s.Messages...)
	out.Context = append(make([]string, 0, len(s.Context)), s.Context...)
	if out.QueryType == "" {
		out.QueryType = QueryGeneral
	}
	return out
}

// LastMessage returns the most recent message, if any.
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Partial is a node's output. A nil field is absent and leaves the state
// untouched; a non-nil empty Context overwrites the context with nothing.
type Partial struct {
	Messages  []Message  `json:"messages,omitempty"`
	QueryType *QueryType `json:"queryType,omitempty"`
	Context   []string   `json:"context,omitempty"`
}

// WithQueryType is a convenience for building a partial that sets the label.
func WithQueryType(q QueryType) Partial {
	return Partial{QueryType: &q}
}

// IsEmpty reports whether the partial carries no field at all.
func (p Partial) IsEmpty() bool {
	return p.Messages == nil && p.QueryType == nil && p.Context == nil
}

// Validate rejects malformed partials at the node boundary so Merge can stay total.
func (p Partial) Validate() error {
	for i, m := range p.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	if p.QueryType != nil && !p.QueryType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidQueryType, *p.QueryType)
	}
	return nil
}

// Merge applies a partial to a state and returns the result. It never mutates
// old: messages are appended, queryType and context are replaced when present.
func Merge(old State, p Partial) State {
	next := old.Clone()
	if len(p.Messages) > 0 {
		next.Messages = append(next.Messages, p.Messages...)
	}
	if p.QueryType != nil {
		next.QueryType = *p.QueryType
	}
	if p.Context != nil {
		next.Context = append(make([]string, 0, len(p.Context)), p.Context...)
	}
	return next
}
