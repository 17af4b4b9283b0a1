package state

import "strings"

// QueryType is the routing label produced by the classify step.
type QueryType string

const (
	QueryWiki    QueryType = "WIKI"
	QueryGeneral QueryType = "GENERAL"
)

// Valid reports whether q is a known label.
func (q QueryType) Valid() bool {
	return q == QueryWiki || q == QueryGeneral
}

// ParseQueryType accepts only an exact label, ignoring case and surrounding
// whitespace or punctuation.
func ParseQueryType(raw string) (QueryType, bool) {
	label := QueryType(strings.ToUpper(strings.Trim(raw, " \t\r\n.\"'`")))
	if label.Valid() {
		return label, true
	}
	return "", false
}

// NormalizeQueryType maps free-form classifier output onto a label: anything
// mentioning WIKI is a wiki question, everything else is general.
func NormalizeQueryType(raw string) QueryType {
	if strings.Contains(strings.ToUpper(raw), string(QueryWiki)) {
		return QueryWiki
	}
	return QueryGeneral
}
