// Package filters turns declarative segment predicates into safe,
// parameterized SQL fragments for the contacts relation. All compilation is
// pure: the registry and compiler never touch the database.
package filters

import "errors"

// CompiledExpression A boolean SQL fragment plus its ordered bound parameters.
// Placeholders inside SQL are numbered $1..$len(Params) with no gaps, prior to
// being embedded into an outer statement.
type CompiledExpression struct {
	SQL    string
	Params []interface{}
}

// AlwaysFalseCondition Emitted when every predicate of a segment was skipped.
// A stale definition matches no contacts instead of every contact of a tenant.
const AlwaysFalseCondition = "(1 = 0)"

var (
	ErrInvalidCombinator = errors.New("invalid combinator, must be and/or")

	// ErrInvalidCustomFieldKey The custom field key is interpolated into query
	// text and cannot be bound as a parameter. Rejection here is a security
	// boundary and surfaces as a validation failure, never as a skip.
	ErrInvalidCustomFieldKey = errors.New("invalid custom field key")

	// errSkipPredicate Internal sentinel for value shapes the operator cannot
	// use. Degrades to skip, matching the tolerance for catalog drift.
	errSkipPredicate = errors.New("predicate skipped")
)
