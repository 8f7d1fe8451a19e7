package filters

import (
	"strings"

	"relate/model/model"
)

// CompileAll Compiles an ordered predicate list into one boolean expression
// with parameters renumbered sequentially from 1. The compiler owns the final
// numbering: each registry fragment counts from 1 internally and is shifted by
// the running parameter count before joining.
//
// Skipped predicates are dropped. If every predicate skips, the result is the
// explicit always-false condition: a segment whose definition no longer
// matches the field catalog matches no contacts rather than all of them.
func CompileAll(predicates []model.SegmentPredicate, combinator string) (CompiledExpression, error) {
	if !model.IsValidCombinator(combinator) {
		return CompiledExpression{}, ErrInvalidCombinator
	}

	joiner := " AND "
	if combinator == model.CombinatorOr {
		joiner = " OR "
	}

	fragments := make([]string, 0, len(predicates))
	params := make([]interface{}, 0)
	for _, p := range predicates {
		expr, ok, err := Compile(p)
		if err != nil {
			return CompiledExpression{}, err
		}
		if !ok {
			continue
		}

		shifted := Embed(expr, len(params))
		fragments = append(fragments, shifted.SQL)
		params = append(params, shifted.Params...)
	}

	if len(fragments) == 0 {
		return CompiledExpression{SQL: AlwaysFalseCondition}, nil
	}

	return CompiledExpression{
		SQL:    "(" + strings.Join(fragments, joiner) + ")",
		Params: params,
	}, nil
}
