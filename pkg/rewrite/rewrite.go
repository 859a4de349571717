// Package rewrite repairs a parse tree that is valid SQL but not yet
// compliant with a policy, then serializes it back to text. Repair never
// mutates the caller's tree: it transforms a deep clone.
//
// Three repairs are attempted, in order:
//
//   - insert or tighten the top-level row limit
//   - rewrite select-list alias references in conditions to their
//     fully-qualified columns
//   - drop selected columns the policy rejects
//
// Issues beyond these, such as a missing identity or an illegal function,
// are not repairable and surface during validation.
package rewrite

import (
	"github.com/leapstack-labs/bifrost/pkg/analysis"
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// Repair clones the statement, applies every repair the policy allows,
// and returns the repaired SQL text. The caller re-parses the text before
// validating so the tree and its positions agree with the final output.
func Repair(stmt *parser.SelectStmt, pol safesql.Policy, d *dialect.Dialect) (string, error) {
	clone := stmt.Clone()

	aliases, err := analysis.CollectAliases(clone, d)
	if err != nil {
		return "", err
	}

	r := &repairer{policy: pol, dialect: d, aliases: aliases}

	// Limit repair applies only to the top-level scope
	if maxLimit, ok := pol.MaxLimit(); ok {
		applyLimit(clone.Select, maxLimit)
	}

	if err := r.repairStmt(clone); err != nil {
		return "", err
	}

	return Serialize(clone, d), nil
}

// applyLimit ensures a limit exists and does not exceed the maximum. An
// existing OFFSET is preserved exactly.
func applyLimit(sc *parser.SelectCore, maxLimit int) {
	if sc.Limit == nil {
		sc.Limit = &parser.LimitClause{Count: maxLimit}
		return
	}
	if sc.Limit.Count > maxLimit {
		sc.Limit.Count = maxLimit
	}
}

type repairer struct {
	policy  safesql.Policy
	dialect *dialect.Dialect
	aliases *analysis.Collector
}

// repairStmt walks one query scope and its nested scopes.
func (r *repairer) repairStmt(stmt *parser.SelectStmt) error {
	if stmt == nil {
		return nil
	}
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			if err := r.repairStmt(cte.Select); err != nil {
				return err
			}
		}
	}

	sc := stmt.Select
	scope := r.aliases.Scope(sc)

	if err := r.dropIllegalColumns(sc, scope); err != nil {
		return err
	}

	// Alias references in conditions become fully-qualified columns
	sc.Where = r.rewriteAliasRefs(sc.Where, scope)
	sc.Having = r.rewriteAliasRefs(sc.Having, scope)
	for i := range sc.OrderBy {
		sc.OrderBy[i].Expr = r.rewriteAliasRefs(sc.OrderBy[i].Expr, scope)
	}
	// GROUP BY keeps its aliases: grouping by the backing column instead
	// of the aliased expression would change the aggregation

	// Nested scopes in FROM and conditions
	if sc.From != nil {
		if derived, ok := sc.From.Source.(*parser.DerivedTable); ok {
			if err := r.repairStmt(derived.Select); err != nil {
				return err
			}
		}
		for _, join := range sc.From.Joins {
			if derived, ok := join.Right.(*parser.DerivedTable); ok {
				if err := r.repairStmt(derived.Select); err != nil {
					return err
				}
			}
			join.On = r.rewriteAliasRefs(join.On, scope)
		}
	}

	return r.repairSubqueries(sc)
}

// repairSubqueries recurses into subqueries nested in expressions.
func (r *repairer) repairSubqueries(sc *parser.SelectCore) error {
	var exprs []parser.Expr
	for _, item := range sc.Columns {
		exprs = append(exprs, item.Expr)
	}
	exprs = append(exprs, sc.Where, sc.Having)
	exprs = append(exprs, sc.GroupBy...)
	for _, o := range sc.OrderBy {
		exprs = append(exprs, o.Expr)
	}
	if sc.From != nil {
		for _, join := range sc.From.Joins {
			exprs = append(exprs, join.On)
		}
	}

	var err error
	for _, expr := range exprs {
		parser.WalkSubqueries(expr, func(sub *parser.SelectStmt) {
			if err != nil {
				return
			}
			err = r.repairStmt(sub)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// dropIllegalColumns removes selected columns the policy rejects. Counts
// and subqueries are kept as-is. When every column is dropped, the repair
// fails naming the last dropped column.
func (r *repairer) dropIllegalColumns(sc *parser.SelectCore, scope *analysis.Scope) error {
	var kept []*parser.SelectItem
	var lastDropped safesql.FqColumn

	for _, item := range sc.Columns {
		if r.keepSelectItem(item, scope, &lastDropped) {
			kept = append(kept, item)
		}
	}

	if len(kept) == 0 {
		return &safesql.IllegalSelectedColumn{Column: lastDropped.Name()}
	}
	sc.Columns = kept
	return nil
}

// keepSelectItem decides whether a select item survives the column
// allowlist.
func (r *repairer) keepSelectItem(item *parser.SelectItem, scope *analysis.Scope, lastDropped *safesql.FqColumn) bool {
	// Count aggregates and subqueries are never dropped
	if fn, ok := item.Expr.(*parser.FuncCall); ok && fn.IsCount() {
		return true
	}
	hasSubquery := false
	parser.WalkSubqueries(item.Expr, func(*parser.SelectStmt) { hasSubquery = true })
	if hasSubquery {
		return true
	}

	keep := true
	parser.WalkColumnRefs(item.Expr, func(ref *parser.ColumnRef) {
		if !keep || !ref.IsQualified() {
			return
		}
		table := r.dialect.NormalizeName(ref.Table)
		if ref.TableQuoted {
			table = ref.Table
		}
		column := r.dialect.NormalizeName(ref.Column)
		if ref.ColumnQuoted {
			column = ref.Column
		}
		if name, derived := scope.ResolveTable(table); !derived {
			fq := safesql.FqColumn{Table: name, Column: column}
			if !r.policy.SelectColumnAllowed(fq) {
				*lastDropped = fq
				keep = false
			}
		}
	})
	return keep
}

// rewriteAliasRefs replaces bare column references with fully-qualified
// ones where the enclosing scope can attribute them:
//
//   - expression aliases stay as written
//   - a single backing column replaces the alias
//   - composite aliases stay as written
//   - unknown names fall back to the scope's FROM table, unless they name
//     a derived table or the FROM source is itself a derived table
func (r *repairer) rewriteAliasRefs(expr parser.Expr, scope *analysis.Scope) parser.Expr {
	if expr == nil {
		return nil
	}

	rewrite := func(ref *parser.ColumnRef) parser.Expr {
		if ref.IsQualified() {
			return ref
		}
		name := ref.Column
		if !ref.ColumnQuoted {
			name = r.dialect.NormalizeName(name)
		}

		ac := scope.ResolveColumnAlias(name)
		if ac != nil {
			if ac.Expr || len(ac.Columns) != 1 {
				return ref
			}
			col := ac.Columns[0]
			return &parser.ColumnRef{Table: col.Table, Column: col.Column}
		}

		// A derived-table alias stays as written
		if _, derived := scope.ResolveTable(name); derived {
			return ref
		}

		// Not a select alias: a bare column on the single FROM table,
		// unless the FROM source is a derived table
		if _, derived := scope.ResolveTable(scope.SelectedTable); derived {
			return ref
		}
		if scope.SelectedTable == "" {
			return ref
		}
		return &parser.ColumnRef{Table: scope.SelectedTable, Column: ref.Column, ColumnQuoted: ref.ColumnQuoted}
	}

	return rewriteColumnRefs(expr, rewrite)
}

// rewriteColumnRefs maps fn over every column reference outside
// subqueries, rebuilding parent nodes as needed.
func rewriteColumnRefs(expr parser.Expr, fn func(*parser.ColumnRef) parser.Expr) parser.Expr {
	switch e := expr.(type) {
	case nil:
		return nil
	case *parser.ColumnRef:
		return fn(e)
	case *parser.ParamComparison:
		if col, ok := fn(e.Column).(*parser.ColumnRef); ok {
			e.Column = col
		}
		return e
	case *parser.BinaryExpr:
		e.Left = rewriteColumnRefs(e.Left, fn)
		e.Right = rewriteColumnRefs(e.Right, fn)
		return e
	case *parser.UnaryExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		return e
	case *parser.FuncCall:
		for i, arg := range e.Args {
			e.Args[i] = rewriteColumnRefs(arg, fn)
		}
		return e
	case *parser.CaseExpr:
		e.Operand = rewriteColumnRefs(e.Operand, fn)
		for i := range e.Whens {
			e.Whens[i].Condition = rewriteColumnRefs(e.Whens[i].Condition, fn)
			e.Whens[i].Result = rewriteColumnRefs(e.Whens[i].Result, fn)
		}
		e.Else = rewriteColumnRefs(e.Else, fn)
		return e
	case *parser.CastExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		return e
	case *parser.InExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		for i, v := range e.Values {
			e.Values[i] = rewriteColumnRefs(v, fn)
		}
		return e
	case *parser.BetweenExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		e.Low = rewriteColumnRefs(e.Low, fn)
		e.High = rewriteColumnRefs(e.High, fn)
		return e
	case *parser.IsNullExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		return e
	case *parser.LikeExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		e.Pattern = rewriteColumnRefs(e.Pattern, fn)
		return e
	case *parser.ParenExpr:
		e.Expr = rewriteColumnRefs(e.Expr, fn)
		return e
	default:
		return expr
	}
}
