// Package safesql defines the domain objects for the SQL trust pipeline:
// fully-qualified columns, parameterized constraints, join conditions, the
// allowlist policy consulted by the validator, and the error taxonomy shared
// by every stage of a traversal.
package safesql

import "strings"

// FqColumn is a fully-qualified column in the form table.column.
// Comparison is case-sensitive; dialects that fold identifier case
// normalize before constructing one.
type FqColumn struct {
	Table  string
	Column string
}

// ParseColumn parses a fully-qualified column from its "table.column" form.
func ParseColumn(s string) (FqColumn, error) {
	table, column, ok := strings.Cut(s, ".")
	if !ok || table == "" || column == "" {
		return FqColumn{}, &UnqualifiedColumn{Column: s}
	}
	return FqColumn{Table: table, Column: column}, nil
}

// MustColumn is like ParseColumn but panics on a malformed input.
// Intended for static policy definitions.
func MustColumn(s string) FqColumn {
	c, err := ParseColumn(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the column in "table.column" form.
func (c FqColumn) Name() string {
	return c.Table + "." + c.Column
}

func (c FqColumn) String() string {
	return c.Name()
}

// IsZero returns true if the column has no components.
func (c FqColumn) IsZero() bool {
	return c.Table == "" && c.Column == ""
}

// ParameterizedConstraint binds a column to a named runtime parameter with
// strict equality: table.column = :placeholder. Two constraints are equal
// iff both the column and the placeholder match.
type ParameterizedConstraint struct {
	Column      FqColumn
	Placeholder string
}

// NewConstraint builds a constraint from a "table.column" string and a
// placeholder name.
func NewConstraint(column, placeholder string) (ParameterizedConstraint, error) {
	c, err := ParseColumn(column)
	if err != nil {
		return ParameterizedConstraint{}, err
	}
	return ParameterizedConstraint{Column: c, Placeholder: placeholder}, nil
}

// MustConstraint is like NewConstraint but panics on a malformed column.
func MustConstraint(column, placeholder string) ParameterizedConstraint {
	pc, err := NewConstraint(column, placeholder)
	if err != nil {
		panic(err)
	}
	return pc
}

func (p ParameterizedConstraint) String() string {
	return p.Column.Name() + "=:" + p.Placeholder
}

// JoinCondition is an equi-join between two columns. The order of the two
// sides does not matter for equality. If IdentityPlaceholder is set, either
// side of the join may satisfy the requester-identity requirement when bound
// to that placeholder.
type JoinCondition struct {
	First               FqColumn
	Second              FqColumn
	IdentityPlaceholder string

	anyJoin bool
}

// AnyJoin is the sentinel join condition that matches every join. It only
// equals itself, never a concrete join. Use it in a policy that represents
// full access to the join graph.
var AnyJoin = JoinCondition{anyJoin: true}

// NewJoin builds a join condition from two "table.column" strings.
func NewJoin(first, second string) (JoinCondition, error) {
	f, err := ParseColumn(first)
	if err != nil {
		return JoinCondition{}, err
	}
	s, err := ParseColumn(second)
	if err != nil {
		return JoinCondition{}, err
	}
	return JoinCondition{First: f, Second: s}, nil
}

// MustJoin is like NewJoin but panics on a malformed column.
func MustJoin(first, second string) JoinCondition {
	j, err := NewJoin(first, second)
	if err != nil {
		panic(err)
	}
	return j
}

// MustIdentityJoin builds a join condition whose sides double as requester
// identities under the given placeholder.
func MustIdentityJoin(first, second, placeholder string) JoinCondition {
	j := MustJoin(first, second)
	j.IdentityPlaceholder = placeholder
	return j
}

// IsAny returns true if this is the AnyJoin sentinel.
func (j JoinCondition) IsAny() bool {
	return j.anyJoin
}

// Equal reports order-independent equality of the two sides. The AnyJoin
// sentinel equals only itself.
func (j JoinCondition) Equal(o JoinCondition) bool {
	if j.anyJoin || o.anyJoin {
		return j.anyJoin && o.anyJoin
	}
	return (j.First == o.First && j.Second == o.Second) ||
		(j.First == o.Second && j.Second == o.First)
}

// Key returns an order-normalized form usable as a map key.
func (j JoinCondition) Key() JoinKey {
	a, b := j.First, j.Second
	if b.Name() < a.Name() {
		a, b = b, a
	}
	return JoinKey{A: a, B: b}
}

// JoinKey is the comparable, order-normalized identity of a join condition.
type JoinKey struct {
	A, B FqColumn
}

// RequesterIdentities expands an identity join into the constraints that
// satisfy the identity requirement: one per side, both bound to the join's
// identity placeholder.
func (j JoinCondition) RequesterIdentities() []ParameterizedConstraint {
	if j.anyJoin || j.IdentityPlaceholder == "" {
		return nil
	}
	return []ParameterizedConstraint{
		{Column: j.First, Placeholder: j.IdentityPlaceholder},
		{Column: j.Second, Placeholder: j.IdentityPlaceholder},
	}
}

func (j JoinCondition) String() string {
	if j.anyJoin {
		return "*.*=*.*"
	}
	return j.First.Name() + "=" + j.Second.Name()
}
