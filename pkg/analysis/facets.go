package analysis

import (
	"strings"

	"github.com/google/uuid"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
	"github.com/leapstack-labs/bifrost/pkg/token"
)

// ScopeFacets are the join facts collected for one query scope.
type ScopeFacets struct {
	// SelectedTable is the authoritative FROM table (or derived alias).
	SelectedTable string
	// JoinedTables maps each join endpoint table to the join conditions
	// that reference it.
	JoinedTables map[string]map[safesql.JoinKey]safesql.JoinCondition
	// BadJoins lists joined tables whose conditions never reference the
	// table itself.
	BadJoins []string
}

func newScopeFacets() *ScopeFacets {
	return &ScopeFacets{
		JoinedTables: make(map[string]map[safesql.JoinKey]safesql.JoinCondition),
	}
}

func (sf *ScopeFacets) addJoinEdge(table string, jc safesql.JoinCondition) {
	edges := sf.JoinedTables[table]
	if edges == nil {
		edges = make(map[safesql.JoinKey]safesql.JoinCondition)
		sf.JoinedTables[table] = edges
	}
	edges[jc.Key()] = jc
}

// Facets are the structural properties of a query that the validator
// checks against a policy. They are collected once per traversal.
type Facets struct {
	SelectedColumns          map[safesql.FqColumn]struct{}
	Scopes                   map[uuid.UUID]*ScopeFacets
	ConditionColumns         map[safesql.FqColumn]struct{}
	ParameterizedConstraints map[safesql.ParameterizedConstraint]struct{}
	Functions                map[string]struct{}
	Limits                   map[uuid.UUID]*int
}

// NewFacets returns an empty facet set.
func NewFacets() *Facets {
	return &Facets{
		SelectedColumns:          make(map[safesql.FqColumn]struct{}),
		Scopes:                   make(map[uuid.UUID]*ScopeFacets),
		ConditionColumns:         make(map[safesql.FqColumn]struct{}),
		ParameterizedConstraints: make(map[safesql.ParameterizedConstraint]struct{}),
		Functions:                make(map[string]struct{}),
		Limits:                   make(map[uuid.UUID]*int),
	}
}

// HasConstraint reports whether the constraint was found unconditionally
// enforced in the query.
func (f *Facets) HasConstraint(pc safesql.ParameterizedConstraint) bool {
	_, ok := f.ParameterizedConstraints[pc]
	return ok
}

// Collect parses out every facet of the statement. The alias collector
// must have run on the same statement.
func Collect(stmt *parser.SelectStmt, aliases *Collector, d *dialect.Dialect) (*Facets, error) {
	fc := &facetCollector{
		facets:  NewFacets(),
		aliases: aliases,
		dialect: d,
	}
	if err := fc.collectStmt(stmt, false); err != nil {
		return nil, err
	}
	return fc.facets, nil
}

type facetCollector struct {
	facets  *Facets
	aliases *Collector
	dialect *dialect.Dialect
}

// collectStmt processes one query scope and recurses into nested scopes.
// inSubquery is true for every scope but the outermost; constraints found
// there never satisfy an outer requirement.
func (fc *facetCollector) collectStmt(stmt *parser.SelectStmt, inSubquery bool) error {
	scope := fc.aliases.Scope(stmt.Select)
	sc := stmt.Select

	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			if err := fc.collectStmt(cte.Select, true); err != nil {
				return err
			}
		}
	}

	// A derived table in FROM is its own scope with its own facets
	if sc.From != nil {
		if dt, ok := sc.From.Source.(*parser.DerivedTable); ok {
			if err := fc.collectStmt(dt.Select, true); err != nil {
				return err
			}
		}
	}

	sf := newScopeFacets()
	sf.SelectedTable = scope.SelectedTable
	fc.facets.Scopes[scope.ID] = sf

	// Selected columns
	for _, item := range sc.Columns {
		if err := fc.collectSelectItem(scope, item); err != nil {
			return err
		}
	}

	// Joins
	if sc.From != nil {
		for _, join := range sc.From.Joins {
			if err := fc.collectJoin(scope, sf, join, inSubquery); err != nil {
				return err
			}
		}
	}

	// WHERE: unconditional parameterized constraints, then every column
	if sc.Where != nil {
		if !inSubquery {
			fc.collectUntaintedConstraints(scope, sc.Where)
		}
		if err := fc.collectConditionColumns(scope, sc.Where); err != nil {
			return err
		}
		if err := fc.collectExprTail(sc.Where); err != nil {
			return err
		}
	}

	// HAVING and ORDER BY feed the same condition walker
	if sc.Having != nil {
		if err := fc.collectConditionColumns(scope, sc.Having); err != nil {
			return err
		}
		if err := fc.collectExprTail(sc.Having); err != nil {
			return err
		}
	}
	for _, item := range sc.OrderBy {
		if err := fc.collectConditionColumns(scope, item.Expr); err != nil {
			return err
		}
		if err := fc.collectExprTail(item.Expr); err != nil {
			return err
		}
	}
	for _, g := range sc.GroupBy {
		if err := fc.collectExprTail(g); err != nil {
			return err
		}
	}

	// Row limit, recorded for every scope even when absent
	if sc.Limit != nil {
		n := sc.Limit.Count
		fc.facets.Limits[scope.ID] = &n
	} else {
		fc.facets.Limits[scope.ID] = nil
	}

	return nil
}

// collectExprTail records function usage and recurses into subqueries of
// an expression. Both are global facets; the per-scope walkers skip them.
func (fc *facetCollector) collectExprTail(expr parser.Expr) error {
	parser.WalkFunctions(expr, func(fn *parser.FuncCall) {
		if isCountStar(fn) {
			return
		}
		fc.facets.Functions[strings.ToLower(fn.Name)] = struct{}{}
	})

	var err error
	parser.WalkSubqueries(expr, func(sub *parser.SelectStmt) {
		if err != nil {
			return
		}
		err = fc.collectStmt(sub, true)
	})
	return err
}

// ---------- Selected columns ----------

func (fc *facetCollector) collectSelectItem(scope *Scope, item *parser.SelectItem) error {
	if err := fc.collectExprTail(item.Expr); err != nil {
		return err
	}

	switch e := item.Expr.(type) {
	case *parser.StarExpr:
		name := "*"
		if e.Table != "" {
			name = e.Table + ".*"
		}
		return &safesql.IllegalSelectedColumn{Column: name}

	case *parser.FuncCall:
		// Counting reveals nothing; aliased or not
		if e.IsCount() {
			return nil
		}

	case *parser.SubqueryExpr:
		// The subquery's own select list is analyzed in its scope
		return nil
	}

	// A bare column name is not fully qualified
	if ref, ok := item.Expr.(*parser.ColumnRef); ok && !ref.IsQualified() {
		name, err := resolveIdent(fc.dialect, ref.Column, ref.ColumnQuoted)
		if err != nil {
			return err
		}
		return &safesql.UnqualifiedColumn{Column: name}
	}

	// Any unqualified reference nested in the value is equally illegal
	var unqual string
	var walkErr error
	parser.WalkColumnRefs(item.Expr, func(ref *parser.ColumnRef) {
		if walkErr != nil || unqual != "" {
			return
		}
		if !ref.IsQualified() {
			name, err := resolveIdent(fc.dialect, ref.Column, ref.ColumnQuoted)
			if err != nil {
				walkErr = err
				return
			}
			unqual = name
		}
	})
	if walkErr != nil {
		return walkErr
	}
	if unqual != "" {
		return &safesql.UnqualifiedColumn{Column: unqual}
	}

	// Record every qualified column the item exposes
	var cols []*parser.ColumnRef
	parser.WalkColumnRefs(item.Expr, func(ref *parser.ColumnRef) {
		cols = append(cols, ref)
	})
	for _, ref := range cols {
		fq, derived, err := fc.resolveColumn(scope, ref)
		if err != nil {
			return err
		}
		if derived {
			// Derived-table columns are validated in their own scope
			continue
		}
		fc.facets.SelectedColumns[fq] = struct{}{}
	}
	return nil
}

// resolveColumn turns a qualified reference into an authoritative FqColumn.
// derived is true when the table component names a derived table or CTE.
func (fc *facetCollector) resolveColumn(scope *Scope, ref *parser.ColumnRef) (safesql.FqColumn, bool, error) {
	table, err := resolveIdent(fc.dialect, ref.Table, ref.TableQuoted)
	if err != nil {
		return safesql.FqColumn{}, false, err
	}
	column, err := resolveIdent(fc.dialect, ref.Column, ref.ColumnQuoted)
	if err != nil {
		return safesql.FqColumn{}, false, err
	}
	authoritative, derived := scope.ResolveTable(table)
	if derived {
		return safesql.FqColumn{}, true, nil
	}
	return safesql.FqColumn{Table: authoritative, Column: column}, false, nil
}

// ---------- Joins ----------

func (fc *facetCollector) collectJoin(scope *Scope, sf *ScopeFacets, join *parser.Join, inSubquery bool) error {
	if t := join.IllegalType(); t != "" {
		return &safesql.IllegalJoinType{JoinType: t}
	}

	var joinedName string
	switch right := join.Right.(type) {
	case *parser.TableName:
		name, err := resolveIdent(fc.dialect, right.Name, right.Quoted)
		if err != nil {
			return err
		}
		authoritative, derived := scope.ResolveTable(name)
		if derived {
			return &safesql.UnsupportedQuery{Reason: "JOIN on derived table"}
		}
		joinedName = authoritative
	case *parser.DerivedTable:
		return &safesql.UnsupportedQuery{Reason: "JOIN on derived table"}
	}

	// Unconditionally enforced parameterized comparisons in the ON body
	// count toward the required constraints, outside subqueries
	if join.On != nil && !inSubquery {
		fc.collectUntaintedConstraints(scope, join.On)
	}

	// Every column in the ON body is a condition column
	if join.On != nil {
		if err := fc.collectConditionColumns(scope, join.On); err != nil {
			return err
		}
		if err := fc.collectExprTail(join.On); err != nil {
			return err
		}
	}

	// Equi-join edges connect the join graph
	var edgeErr error
	walkConjunction(join.On, func(expr parser.Expr) {
		if edgeErr != nil {
			return
		}
		bin, ok := expr.(*parser.BinaryExpr)
		if !ok || bin.Op != token.EQ {
			return
		}
		from, ok := bin.Left.(*parser.ColumnRef)
		if !ok || !from.IsQualified() {
			return
		}
		to, ok := bin.Right.(*parser.ColumnRef)
		if !ok || !to.IsQualified() {
			// A literal or function RHS contributes nothing to
			// connectivity
			return
		}

		fromCol, fromDerived, err := fc.resolveColumn(scope, from)
		if err != nil {
			edgeErr = err
			return
		}
		toCol, toDerived, err := fc.resolveColumn(scope, to)
		if err != nil {
			edgeErr = err
			return
		}
		if fromDerived || toDerived {
			edgeErr = &safesql.UnsupportedQuery{Reason: "JOIN condition on derived table"}
			return
		}

		// The joined table must appear on one side of its own condition
		if joinedName != fromCol.Table && joinedName != toCol.Table {
			sf.BadJoins = append(sf.BadJoins, joinedName)
			return
		}

		jc := safesql.JoinCondition{First: fromCol, Second: toCol}
		sf.addJoinEdge(fromCol.Table, jc)
		sf.addJoinEdge(toCol.Table, jc)
	})
	return edgeErr
}

// walkConjunction visits the conjunctive terms of an expression: AND
// chains and parentheses are flattened, everything else is a term.
func walkConjunction(expr parser.Expr, fn func(parser.Expr)) {
	switch e := expr.(type) {
	case nil:
		return
	case *parser.BinaryExpr:
		if e.Op == token.AND {
			walkConjunction(e.Left, fn)
			walkConjunction(e.Right, fn)
			return
		}
		fn(e)
	case *parser.ParenExpr:
		walkConjunction(e.Expr, fn)
	default:
		fn(e)
	}
}

// ---------- Parameterized constraints ----------

// collectUntaintedConstraints walks the boolean structure of a condition
// level by level. A level containing OR taints the whole level: nothing
// below it can be counted as unconditionally enforced. This defeats
// spoofs like "... AND (identity = :id OR 1=1)".
func (fc *facetCollector) collectUntaintedConstraints(scope *Scope, expr parser.Expr) {
	switch e := expr.(type) {
	case nil:
		return
	case *parser.BinaryExpr:
		if e.Op == token.AND {
			fc.collectUntaintedConstraints(scope, e.Left)
			fc.collectUntaintedConstraints(scope, e.Right)
		}
		// OR (or any other operator) stops the walk: conditions below
		// may never be enforced
	case *parser.ParenExpr:
		fc.collectUntaintedConstraints(scope, e.Expr)
	case *parser.ParamComparison:
		fc.addConstraint(scope, e)
	}
}

// addConstraint records a parameterized comparison, expanding a column
// alias to its single backing column when possible.
func (fc *facetCollector) addConstraint(scope *Scope, pc *parser.ParamComparison) {
	ref := pc.Column
	if !ref.IsQualified() {
		name, err := resolveIdent(fc.dialect, ref.Column, ref.ColumnQuoted)
		if err != nil {
			return
		}
		ac := scope.ResolveColumnAlias(name)
		if ac == nil || ac.Expr || len(ac.Columns) != 1 {
			// Unknown, expression-backed, or composite aliases cannot
			// be attributed to one column
			return
		}
		fc.facets.ParameterizedConstraints[safesql.ParameterizedConstraint{
			Column:      ac.Columns[0],
			Placeholder: pc.Placeholder.Name,
		}] = struct{}{}
		return
	}

	fq, derived, err := fc.resolveColumn(scope, ref)
	if err != nil || derived {
		return
	}
	fc.facets.ParameterizedConstraints[safesql.ParameterizedConstraint{
		Column:      fq,
		Placeholder: pc.Placeholder.Name,
	}] = struct{}{}
}

// ---------- Condition columns ----------

// collectConditionColumns records every column reachable in a WHERE, JOIN,
// HAVING, or ORDER BY body, resolving aliases. Subquery bodies are skipped:
// their conditions are collected in their own scope.
func (fc *facetCollector) collectConditionColumns(scope *Scope, expr parser.Expr) error {
	var err error
	parser.WalkColumnRefs(expr, func(ref *parser.ColumnRef) {
		if err != nil {
			return
		}

		if ref.IsQualified() {
			fq, derived, resolveErr := fc.resolveColumn(scope, ref)
			if resolveErr != nil {
				err = resolveErr
				return
			}
			if derived {
				err = &safesql.UnsupportedQuery{Reason: "condition on derived table"}
				return
			}
			fc.facets.ConditionColumns[fq] = struct{}{}
			return
		}

		name, identErr := resolveIdent(fc.dialect, ref.Column, ref.ColumnQuoted)
		if identErr != nil {
			err = identErr
			return
		}
		ac := scope.ResolveColumnAlias(name)
		switch {
		case ac == nil:
			err = &safesql.UnqualifiedColumn{Column: name}
		case ac.Expr:
			// An expression alias is fine as a condition; there is no
			// column to check
		default:
			for _, col := range ac.Columns {
				fc.facets.ConditionColumns[col] = struct{}{}
			}
		}
	})
	return err
}
