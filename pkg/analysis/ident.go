package analysis

import (
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// resolveIdent is the single place identifiers become authoritative text.
// Unquoted identifiers are folded per dialect rules and rejected when they
// collide with a reserved keyword; quoted identifiers pass through exactly.
func resolveIdent(d *dialect.Dialect, name string, quoted bool) (string, error) {
	if quoted {
		return name, nil
	}
	if d.IsReservedWord(name) {
		return "", &safesql.ReservedKeyword{Keyword: name}
	}
	return d.NormalizeName(name), nil
}

// isCountStar reports whether the call is count(*) or count(1), the forms
// that reveal nothing about any column and escape analysis entirely.
func isCountStar(fn *parser.FuncCall) bool {
	if !fn.IsCount() {
		return false
	}
	if fn.Star {
		return true
	}
	if len(fn.Args) == 1 {
		if lit, ok := fn.Args[0].(*parser.Literal); ok {
			return lit.Type == parser.LiteralNumber && lit.Value == "1"
		}
	}
	return false
}

// isCountCall reports whether the expression is a count() in any form.
func isCountCall(e parser.Expr) bool {
	fn, ok := e.(*parser.FuncCall)
	return ok && fn.IsCount()
}
