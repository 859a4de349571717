// Package analysis builds the alias scopes and facets the validator
// consumes. It runs two passes over a parsed statement: the alias collector
// resolves table, column, and subquery aliases per query scope, then the
// facet collector extracts everything the policy checks look at.
package analysis

import (
	"github.com/google/uuid"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// AliasColumns is the resolution of one select-list alias. Expr marks an
// expression alias that cannot be attributed to any column; otherwise
// Columns holds the backing columns (more than one for composites).
type AliasColumns struct {
	Expr    bool
	Columns []safesql.FqColumn
}

// Scope is the alias namespace of one query level. Nested queries get
// their own scope with a parent link.
type Scope struct {
	ID     uuid.UUID
	Parent *Scope

	// Tables maps an alias (or a bare table name aliased to itself) to
	// its candidate authoritative names. Resolution demands exactly one.
	Tables map[string]map[string]struct{}

	// Columns maps select-list aliases to their backing columns.
	Columns map[string]*AliasColumns

	// Subqueries maps derived-table and CTE aliases to their scopes.
	Subqueries map[string]*Scope

	// SelectedTable is the authoritative name of the FROM table, or the
	// alias of a derived table.
	SelectedTable string

	core *parser.SelectCore
}

func newScope(parent *Scope, core *parser.SelectCore) *Scope {
	return &Scope{
		ID:         uuid.New(),
		Parent:     parent,
		Tables:     make(map[string]map[string]struct{}),
		Columns:    make(map[string]*AliasColumns),
		Subqueries: make(map[string]*Scope),
		core:       core,
	}
}

// ResolveTable maps a possibly-aliased table name to its authoritative
// name. The second result is true when the name refers to a derived table
// or CTE, in which case the authoritative name is empty.
func (s *Scope) ResolveTable(name string) (string, bool) {
	for scope := s; scope != nil; scope = scope.Parent {
		if _, ok := scope.Subqueries[name]; ok {
			return "", true
		}
		if names, ok := scope.Tables[name]; ok {
			for n := range names {
				return n, false
			}
		}
	}
	return name, false
}

// lookupSubquery finds a derived-table or CTE scope by name in this scope
// and its ancestors.
func (s *Scope) lookupSubquery(name string) *Scope {
	for scope := s; scope != nil; scope = scope.Parent {
		if sub, ok := scope.Subqueries[name]; ok {
			return sub
		}
	}
	return nil
}

// ResolveColumnAlias looks up a select-list alias in this scope and its
// ancestors. Returns nil when the alias is unknown.
func (s *Scope) ResolveColumnAlias(alias string) *AliasColumns {
	for scope := s; scope != nil; scope = scope.Parent {
		if ac, ok := scope.Columns[alias]; ok {
			return ac
		}
	}
	return nil
}

// Collector holds the alias scopes for one parsed statement.
type Collector struct {
	dialect *dialect.Dialect
	scopes  map[*parser.SelectCore]*Scope
	ordered []*Scope
}

// CollectAliases runs both alias phases over the statement: the visit phase
// records every table, column, and subquery alias per scope, and the
// resolve phase rejects conflicts and rewrites alias-qualified columns to
// their authoritative tables.
func CollectAliases(stmt *parser.SelectStmt, d *dialect.Dialect) (*Collector, error) {
	c := &Collector{
		dialect: d,
		scopes:  make(map[*parser.SelectCore]*Scope),
	}
	if _, err := c.visitStmt(stmt, nil); err != nil {
		return nil, err
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

// Scope returns the scope belonging to a query level.
func (c *Collector) Scope(core *parser.SelectCore) *Scope {
	return c.scopes[core]
}

// TopScope returns the outermost query scope.
func (c *Collector) TopScope() *Scope {
	if len(c.ordered) == 0 {
		return nil
	}
	return c.ordered[0]
}

// ---------- Phase A: visit ----------

func (c *Collector) visitStmt(stmt *parser.SelectStmt, parent *Scope) (*Scope, error) {
	scope := newScope(parent, stmt.Select)
	c.scopes[stmt.Select] = scope
	c.ordered = append(c.ordered, scope)

	// CTEs behave as derived tables: own scope, registered under their name
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			name, err := resolveIdent(c.dialect, cte.Name, cte.Quoted)
			if err != nil {
				return nil, err
			}
			sub, err := c.visitStmt(cte.Select, scope)
			if err != nil {
				return nil, err
			}
			scope.Subqueries[name] = sub
		}
	}

	sc := stmt.Select
	if sc.From != nil {
		if err := c.visitTableRef(scope, sc.From.Source, true); err != nil {
			return nil, err
		}
		for _, join := range sc.From.Joins {
			if err := c.visitTableRef(scope, join.Right, false); err != nil {
				return nil, err
			}
			if err := c.visitExprSubqueries(scope, join.On); err != nil {
				return nil, err
			}
		}
	}

	for _, item := range sc.Columns {
		if err := c.visitSelectItem(scope, item); err != nil {
			return nil, err
		}
	}

	for _, e := range [][]parser.Expr{sc.GroupBy, {sc.Where, sc.Having}} {
		for _, expr := range e {
			if err := c.visitExprSubqueries(scope, expr); err != nil {
				return nil, err
			}
		}
	}
	for _, item := range sc.OrderBy {
		if err := c.visitExprSubqueries(scope, item.Expr); err != nil {
			return nil, err
		}
	}

	return scope, nil
}

func (c *Collector) visitTableRef(scope *Scope, ref parser.TableRef, selected bool) error {
	switch t := ref.(type) {
	case *parser.TableName:
		name, err := resolveIdent(c.dialect, t.Name, t.Quoted)
		if err != nil {
			return err
		}
		alias := name
		if t.Alias != "" {
			alias, err = resolveIdent(c.dialect, t.Alias, t.AliasQuoted)
			if err != nil {
				return err
			}
		}

		// A name that refers to a CTE is a derived-table reference, not
		// a physical table
		if sub := scope.lookupSubquery(name); sub != nil {
			if alias != name {
				scope.Subqueries[alias] = sub
			}
			if selected {
				scope.SelectedTable = alias
			}
			return nil
		}

		if scope.Tables[alias] == nil {
			scope.Tables[alias] = make(map[string]struct{})
		}
		scope.Tables[alias][name] = struct{}{}
		if selected {
			scope.SelectedTable = name
		}

	case *parser.DerivedTable:
		alias, err := resolveIdent(c.dialect, t.Alias, t.AliasQuoted)
		if err != nil {
			return err
		}
		sub, err := c.visitStmt(t.Select, scope)
		if err != nil {
			return err
		}
		scope.Subqueries[alias] = sub
		if selected {
			scope.SelectedTable = alias
		}
	}
	return nil
}

func (c *Collector) visitSelectItem(scope *Scope, item *parser.SelectItem) error {
	// The aliased value's subqueries need scopes whether or not the item
	// is aliased
	if err := c.visitExprSubqueries(scope, item.Expr); err != nil {
		return err
	}

	if item.Alias == "" {
		return nil
	}
	alias, err := resolveIdent(c.dialect, item.Alias, item.AliasQuoted)
	if err != nil {
		return err
	}

	// Counting is an expression alias: nothing to attribute
	if isCountCall(item.Expr) {
		scope.Columns[alias] = &AliasColumns{Expr: true}
		return nil
	}

	// An aliased scalar subquery joins the subquery namespace
	if sub, ok := item.Expr.(*parser.SubqueryExpr); ok {
		scope.Subqueries[alias] = c.scopes[sub.Select.Select]
		return nil
	}

	// Otherwise gather every qualified column backing the alias
	var cols []safesql.FqColumn
	var walkErr error
	parser.WalkColumnRefs(item.Expr, func(ref *parser.ColumnRef) {
		if walkErr != nil || !ref.IsQualified() {
			return
		}
		table, err := resolveIdent(c.dialect, ref.Table, ref.TableQuoted)
		if err != nil {
			walkErr = err
			return
		}
		column, err := resolveIdent(c.dialect, ref.Column, ref.ColumnQuoted)
		if err != nil {
			walkErr = err
			return
		}
		cols = append(cols, safesql.FqColumn{Table: table, Column: column})
	})
	if walkErr != nil {
		return walkErr
	}

	if len(cols) == 0 {
		scope.Columns[alias] = &AliasColumns{Expr: true}
	} else {
		scope.Columns[alias] = &AliasColumns{Columns: cols}
	}
	return nil
}

// visitExprSubqueries creates scopes for subqueries nested in an expression.
func (c *Collector) visitExprSubqueries(scope *Scope, expr parser.Expr) error {
	var err error
	parser.WalkSubqueries(expr, func(sub *parser.SelectStmt) {
		if err != nil {
			return
		}
		_, err = c.visitStmt(sub, scope)
	})
	return err
}

// ---------- Phase B: resolve ----------

func (c *Collector) resolve() error {
	// Table aliases must collapse to exactly one authoritative name
	for _, scope := range c.ordered {
		for alias, names := range scope.Tables {
			if len(names) > 1 {
				return &safesql.AliasConflict{Alias: alias}
			}
		}
	}

	// Subquery aliases may not shadow any table alias anywhere
	tableAliases := make(map[string]struct{})
	for _, scope := range c.ordered {
		for alias := range scope.Tables {
			tableAliases[alias] = struct{}{}
		}
	}
	for _, scope := range c.ordered {
		for alias := range scope.Subqueries {
			if _, ok := tableAliases[alias]; ok {
				return &safesql.AliasConflict{Alias: alias}
			}
		}
	}

	// Rewrite alias-qualified columns to their authoritative tables
	for _, scope := range c.ordered {
		for _, ac := range scope.Columns {
			for i, col := range ac.Columns {
				if name, derived := scope.ResolveTable(col.Table); !derived {
					ac.Columns[i] = safesql.FqColumn{Table: name, Column: col.Column}
				}
			}
		}
	}
	return nil
}
