// Package filter defines the loosely-typed filter and field specification
// accepted by the query compiler, and the parsing of the caller input
// shapes (JSON strings, maps, tuple lists) into normalized filters.
package filter

import (
	"strings"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// Operator is one comparison operator of the fixed enumerated set.
// Unknown operators are rejected before any SQL is synthesized.
type Operator string

const (
	Eq               Operator = "="
	Ne               Operator = "!="
	Gt               Operator = ">"
	Lt               Operator = "<"
	Ge               Operator = ">="
	Le               Operator = "<="
	Like             Operator = "like"
	NotLike          Operator = "not like"
	In               Operator = "in"
	NotIn            Operator = "not in"
	Between          Operator = "between"
	Is               Operator = "is"
	AncestorsOf      Operator = "ancestors of"
	DescendantsOf    Operator = "descendants of"
	NotAncestorsOf   Operator = "not ancestors of"
	NotDescendantsOf Operator = "not descendants of"
	Previous         Operator = "previous"
	Next             Operator = "next"
	Timespan         Operator = "timespan"
)

var operators = map[Operator]bool{
	Eq: true, Ne: true, Gt: true, Lt: true, Ge: true, Le: true,
	Like: true, NotLike: true, In: true, NotIn: true, Between: true, Is: true,
	AncestorsOf: true, DescendantsOf: true, NotAncestorsOf: true, NotDescendantsOf: true,
	Previous: true, Next: true, Timespan: true,
}

// ParseOperator normalizes and validates an operator string.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if !operators[op] {
		return "", core.NewDataError("unknown filter operator %q", s)
	}
	return op, nil
}

// IsHierarchy reports whether the operator walks the tree structure of a
// hierarchical doctype.
func (o Operator) IsHierarchy() bool {
	switch o {
	case AncestorsOf, DescendantsOf, NotAncestorsOf, NotDescendantsOf:
		return true
	}
	return false
}

// IsRelativeDate reports whether the operator names a relative date
// window that is rewritten to an absolute between range.
func (o Operator) IsRelativeDate() bool {
	return o == Previous || o == Next || o == Timespan
}

// Column marks a filter value as a reference to another column of the
// same table instead of a literal. Column comparisons are never
// null-coalesced.
type Column struct {
	Name string
}

// Filter is one normalized filter expression. Raw, when set, is a
// pre-built predicate string passed through untouched.
type Filter struct {
	DocType   string
	Fieldname string
	Operator  Operator
	Value     any
	Raw       string
}

// IsRaw reports whether the filter is a raw predicate string.
func (f Filter) IsRaw() bool { return f.Raw != "" }
