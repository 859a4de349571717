package safesql

import "strings"

// Policy is the allowlist consulted by the validator. A policy is read-only
// during validation and may be shared across concurrent traversals.
type Policy interface {
	// RequesterIdentities returns the acceptable identities of the
	// requester. At least one must constrain the query unconditionally,
	// unless the set (plus identity joins) is empty.
	RequesterIdentities() []ParameterizedConstraint

	// ParameterizedConstraints returns the constraints that must appear,
	// unconditionally, anywhere in the WHERE clause or a JOIN condition.
	ParameterizedConstraints() []ParameterizedConstraint

	// SelectColumnAllowed reports whether a column may appear in the
	// SELECT list. It also drives illegal-column dropping during repair.
	SelectColumnAllowed(FqColumn) bool

	// ConditionColumnAllowed reports whether a column may appear in a
	// WHERE, JOIN, HAVING, or ORDER BY clause.
	ConditionColumnAllowed(FqColumn) bool

	// AllowedJoins returns the permitted equi-joins. Include AnyJoin to
	// disable join-pair checking (connectivity is still checked).
	AllowedJoins() []JoinCondition

	// MaxLimit returns the maximum row count a query may request. The
	// second result is false when there is no limit.
	MaxLimit() (int, bool)

	// CanUseFunction reports whether the lowercase function name may be
	// used anywhere in the query.
	CanUseFunction(name string) bool
}

// ColumnSet is an allowlist of fully-qualified columns with wildcard
// support: "table.column" allows one column, "table.*" allows a whole
// table, and "*" allows everything.
type ColumnSet struct {
	exact  map[FqColumn]struct{}
	tables map[string]struct{}
	all    bool
}

// NewColumnSet builds a ColumnSet from allowlist entries.
func NewColumnSet(entries ...string) (ColumnSet, error) {
	cs := ColumnSet{
		exact:  make(map[FqColumn]struct{}),
		tables: make(map[string]struct{}),
	}
	for _, entry := range entries {
		if entry == "*" {
			cs.all = true
			continue
		}
		table, column, ok := strings.Cut(entry, ".")
		if !ok || table == "" || column == "" {
			return ColumnSet{}, &UnqualifiedColumn{Column: entry}
		}
		if column == "*" {
			cs.tables[table] = struct{}{}
			continue
		}
		cs.exact[FqColumn{Table: table, Column: column}] = struct{}{}
	}
	return cs, nil
}

// MustColumnSet is like NewColumnSet but panics on a malformed entry.
func MustColumnSet(entries ...string) ColumnSet {
	cs, err := NewColumnSet(entries...)
	if err != nil {
		panic(err)
	}
	return cs
}

// Contains reports whether the set allows the column.
func (cs ColumnSet) Contains(c FqColumn) bool {
	if cs.all {
		return true
	}
	if _, ok := cs.tables[c.Table]; ok {
		return true
	}
	_, ok := cs.exact[c]
	return ok
}

// IsEmpty reports whether the set allows nothing.
func (cs ColumnSet) IsEmpty() bool {
	return !cs.all && len(cs.exact) == 0 && len(cs.tables) == 0
}

// RuleSet is a declarative Policy. The zero value denies everything except
// functions, which fall back to the curated safe set.
type RuleSet struct {
	// Name labels the rule set in logs and CLI output.
	Name string

	Identities []ParameterizedConstraint
	Required   []ParameterizedConstraint
	Joins      []JoinCondition

	SelectColumns ColumnSet
	// CondColumns is consulted for condition columns; when empty the
	// select allowlist applies ("if you can see it, you can use it").
	CondColumns ColumnSet

	// Functions is an explicit allowlist; when nil the curated safe
	// function set applies.
	Functions []string

	// RowLimit caps the number of rows a query may request. Nil means
	// unlimited.
	RowLimit *int
}

var _ Policy = (*RuleSet)(nil)

// RequesterIdentities implements Policy.
func (r *RuleSet) RequesterIdentities() []ParameterizedConstraint { return r.Identities }

// ParameterizedConstraints implements Policy.
func (r *RuleSet) ParameterizedConstraints() []ParameterizedConstraint { return r.Required }

// AllowedJoins implements Policy.
func (r *RuleSet) AllowedJoins() []JoinCondition { return r.Joins }

// SelectColumnAllowed implements Policy.
func (r *RuleSet) SelectColumnAllowed(c FqColumn) bool {
	return r.SelectColumns.Contains(c)
}

// ConditionColumnAllowed implements Policy.
func (r *RuleSet) ConditionColumnAllowed(c FqColumn) bool {
	if r.CondColumns.IsEmpty() {
		return r.SelectColumns.Contains(c)
	}
	return r.CondColumns.Contains(c)
}

// MaxLimit implements Policy.
func (r *RuleSet) MaxLimit() (int, bool) {
	if r.RowLimit == nil {
		return 0, false
	}
	return *r.RowLimit, true
}

// CanUseFunction implements Policy.
func (r *RuleSet) CanUseFunction(name string) bool {
	if r.Functions == nil {
		return IsSafeFunction(name)
	}
	for _, fn := range r.Functions {
		if strings.EqualFold(fn, name) {
			return true
		}
	}
	return false
}

// PolicyFuncs adapts plain functions to the Policy interface. Nil fields
// fall back to permissive-for-functions, deny-for-columns defaults, which
// makes it convenient for tests and one-off policies.
type PolicyFuncs struct {
	IdentitiesFunc      func() []ParameterizedConstraint
	RequiredFunc        func() []ParameterizedConstraint
	JoinsFunc           func() []JoinCondition
	SelectAllowedFunc   func(FqColumn) bool
	CondAllowedFunc     func(FqColumn) bool
	MaxLimitFunc        func() (int, bool)
	CanUseFunctionsFunc func(string) bool
}

var _ Policy = (*PolicyFuncs)(nil)

// RequesterIdentities implements Policy.
func (p *PolicyFuncs) RequesterIdentities() []ParameterizedConstraint {
	if p.IdentitiesFunc == nil {
		return nil
	}
	return p.IdentitiesFunc()
}

// ParameterizedConstraints implements Policy.
func (p *PolicyFuncs) ParameterizedConstraints() []ParameterizedConstraint {
	if p.RequiredFunc == nil {
		return nil
	}
	return p.RequiredFunc()
}

// AllowedJoins implements Policy.
func (p *PolicyFuncs) AllowedJoins() []JoinCondition {
	if p.JoinsFunc == nil {
		return nil
	}
	return p.JoinsFunc()
}

// SelectColumnAllowed implements Policy.
func (p *PolicyFuncs) SelectColumnAllowed(c FqColumn) bool {
	if p.SelectAllowedFunc == nil {
		return false
	}
	return p.SelectAllowedFunc(c)
}

// ConditionColumnAllowed implements Policy.
func (p *PolicyFuncs) ConditionColumnAllowed(c FqColumn) bool {
	if p.CondAllowedFunc != nil {
		return p.CondAllowedFunc(c)
	}
	return p.SelectColumnAllowed(c)
}

// MaxLimit implements Policy.
func (p *PolicyFuncs) MaxLimit() (int, bool) {
	if p.MaxLimitFunc == nil {
		return 0, false
	}
	return p.MaxLimitFunc()
}

// CanUseFunction implements Policy.
func (p *PolicyFuncs) CanUseFunction(name string) bool {
	if p.CanUseFunctionsFunc == nil {
		return IsSafeFunction(name)
	}
	return p.CanUseFunctionsFunc(name)
}
