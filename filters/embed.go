package filters

import (
	"regexp"
	"strconv"
)

// placeholderRegex Matches a complete $N token. The digit run is consumed
// whole, so $1 inside $12 can never be rewritten on its own.
var placeholderRegex = regexp.MustCompile(`\$(\d+)`)

// Embed Rewrites every placeholder $k in the expression to $(k +
// existingParamCount) so the fragment can be appended to an outer statement
// that already binds existingParamCount parameters. Params order is unchanged.
// The rewrite is a single pass over complete tokens; naive substring
// replacement would corrupt multi-digit placeholders.
func Embed(expr CompiledExpression, existingParamCount int) CompiledExpression {
	if existingParamCount == 0 || expr.SQL == "" {
		return expr
	}

	shifted := placeholderRegex.ReplaceAllStringFunc(expr.SQL, func(token string) string {
		index, err := strconv.Atoi(token[1:])
		if err != nil {
			return token
		}
		return "$" + strconv.Itoa(index+existingParamCount)
	})

	return CompiledExpression{SQL: shifted, Params: expr.Params}
}
