package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	z := Zero()
	assert.Empty(t, z.Messages)
	assert.Equal(t, QueryGeneral, z.QueryType)
	assert.Empty(t, z.Context)
}

func TestMerge(t *testing.T) {
	base := State{
		Messages:  []Message{UserMessage("hi")},
		QueryType: QueryGeneral,
		Context:   []string{"old"},
	}
	wiki := QueryWiki

	tests := []struct {
		name    string
		partial Partial
		want    State
	}{
		{
			name:    "empty partial is identity",
			partial: Partial{},
			want:    base,
		},
		{
			name:    "messages append",
			partial: Partial{Messages: []Message{AssistantMessage("hello")}},
			want: State{
				Messages:  []Message{UserMessage("hi"), AssistantMessage("hello")},
				QueryType: QueryGeneral,
				Context:   []string{"old"},
			},
		},
		{
			name:    "query type overwrites",
			partial: Partial{QueryType: &wiki},
			want: State{
				Messages:  []Message{UserMessage("hi")},
				QueryType: QueryWiki,
				Context:   []string{"old"},
			},
		},
		{
			name:    "context overwrites",
			partial: Partial{Context: []string{"a", "b"}},
			want: State{
				Messages:  []Message{UserMessage("hi")},
				QueryType: QueryGeneral,
				Context:   []string{"a", "b"},
			},
		},
		{
			name:    "empty context clears",
			partial: Partial{Context: []string{}},
			want: State{
				Messages:  []Message{UserMessage("hi")},
				QueryType: QueryGeneral,
				Context:   []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(base, tt.partial)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	base := State{Messages: []Message{UserMessage("q")}, QueryType: QueryGeneral, Context: []string{"c"}}
	snapshot := base.Clone()

	next := Merge(base, Partial{Messages: []Message{AssistantMessage("a")}, Context: []string{"d"}})
	next.Messages[0].Content = "changed"
	next.Context[0] = "changed"

	assert.Equal(t, snapshot, base)
}

func TestMerge_MessagesNeverShrink(t *testing.T) {
	s := Zero()
	partials := []Partial{
		{Messages: []Message{UserMessage("1")}},
		WithQueryType(QueryWiki),
		{Context: []string{}},
		{Messages: []Message{AssistantMessage("2")}},
	}
	prev := 0
	for _, p := range partials {
		s = Merge(s, p)
		require.GreaterOrEqual(t, len(s.Messages), prev)
		prev = len(s.Messages)
	}
	assert.Len(t, s.Messages, 2)
}

func TestPartial_Validate(t *testing.T) {
	bad := QueryType("OTHER")

	assert.NoError(t, Partial{}.Validate())
	assert.NoError(t, WithQueryType(QueryWiki).Validate())
	assert.ErrorIs(t, Partial{QueryType: &bad}.Validate(), ErrInvalidQueryType)
	assert.ErrorIs(t, Partial{Messages: []Message{{Role: "robot", Content: "x"}}}.Validate(), ErrInvalidRole)
	assert.ErrorIs(t, Partial{Messages: []Message{{Role: RoleAssistant}}}.Validate(), ErrEmptyMessage)
}

func TestParseQueryType(t *testing.T) {
	tests := []struct {
		raw    string
		want   QueryType
		wantOK bool
	}{
		{"WIKI", QueryWiki, true},
		{" general.\n", QueryGeneral, true},
		{"wiki", QueryWiki, true},
		{"I think WIKI", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseQueryType(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeQueryType(t *testing.T) {
	assert.Equal(t, QueryWiki, NormalizeQueryType("Answer: WIKI"))
	assert.Equal(t, QueryWiki, NormalizeQueryType("wiki"))
	assert.Equal(t, QueryGeneral, NormalizeQueryType("GENERAL"))
	assert.Equal(t, QueryGeneral, NormalizeQueryType("no idea"))
}
