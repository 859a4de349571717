package safesql

import (
	"fmt"
	"strings"
)

// Kind identifies the category of a trust error.
type Kind int

// Error kinds, one per rejection reason in the pipeline.
const (
	KindInvalidQuery Kind = iota + 1
	KindUnsupportedQuery
	KindReservedKeyword
	KindAmbiguousParse
	KindUnqualifiedColumn
	KindIllegalSelectedColumn
	KindIllegalConditionColumn
	KindMissingParameterizedConstraint
	KindMissingRequiredIdentity
	KindIllegalJoinTable
	KindIllegalJoinType
	KindDisconnectedTable
	KindBogusJoinedTable
	KindTooManyRows
	KindIllegalFunction
	KindAliasConflict
)

// String returns the kind's name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindNames = map[Kind]string{
	KindInvalidQuery:                   "InvalidQuery",
	KindUnsupportedQuery:               "UnsupportedQuery",
	KindReservedKeyword:                "ReservedKeyword",
	KindAmbiguousParse:                 "AmbiguousParse",
	KindUnqualifiedColumn:              "UnqualifiedColumn",
	KindIllegalSelectedColumn:          "IllegalSelectedColumn",
	KindIllegalConditionColumn:         "IllegalConditionColumn",
	KindMissingParameterizedConstraint: "MissingParameterizedConstraint",
	KindMissingRequiredIdentity:        "MissingRequiredIdentity",
	KindIllegalJoinTable:               "IllegalJoinTable",
	KindIllegalJoinType:                "IllegalJoinType",
	KindDisconnectedTable:              "DisconnectedTable",
	KindBogusJoinedTable:               "BogusJoinedTable",
	KindTooManyRows:                    "TooManyRows",
	KindIllegalFunction:                "IllegalFunction",
	KindAliasConflict:                  "AliasConflict",
}

// TraverseContext captures the text at each stage of a traversal. It is
// attached to every trust error so callers can report what the user asked,
// what the LLM produced, and what was actually analyzed.
type TraverseContext struct {
	HumanInput string // the original natural-language request
	LLMOutput  string // the raw LLM completion
	Unwrapped  string // the LLM completion with the envelope stripped
}

// Error is the interface satisfied by every trust error. Catch generically
// with errors.As:
//
//	var te safesql.Error
//	if errors.As(err, &te) { ... te.Kind() ... }
type Error interface {
	error
	Kind() Kind
	Context() *TraverseContext

	attach(*TraverseContext)
}

// Attach records the traversal context on err if it is a trust error.
// It returns err unchanged either way.
func Attach(err error, ctx *TraverseContext) error {
	if te, ok := err.(Error); ok {
		te.attach(ctx)
	}
	return err
}

// baseError carries the traversal context shared by all trust errors.
type baseError struct {
	ctx *TraverseContext
}

func (b *baseError) Context() *TraverseContext   { return b.ctx }
func (b *baseError) attach(ctx *TraverseContext) { b.ctx = ctx }

// InvalidQuery reports that the unwrapped LLM output could not be parsed as
// a statement in the restricted grammar.
type InvalidQuery struct {
	baseError
	Query string
}

func (e *InvalidQuery) Kind() Kind { return KindInvalidQuery }
func (e *InvalidQuery) Error() string {
	return fmt.Sprintf("invalid query:\n\n%s\n", e.Query)
}

// UnsupportedQuery reports a construct that parses but is outside the
// analyzable subset, such as a JOIN on a derived table.
type UnsupportedQuery struct {
	baseError
	Reason string
}

func (e *UnsupportedQuery) Kind() Kind { return KindUnsupportedQuery }
func (e *UnsupportedQuery) Error() string {
	return "unsupported query: " + e.Reason
}

// ReservedKeyword reports an unquoted reserved keyword used as an alias.
type ReservedKeyword struct {
	baseError
	Keyword string
}

func (e *ReservedKeyword) Kind() Kind { return KindReservedKeyword }
func (e *ReservedKeyword) Error() string {
	return fmt.Sprintf("alias %q is a reserved keyword", e.Keyword)
}

// AmbiguousParse reports that a query survived parsing with more than one
// candidate interpretation.
type AmbiguousParse struct {
	baseError
	Query string
	Trees []string
}

func (e *AmbiguousParse) Kind() Kind { return KindAmbiguousParse }
func (e *AmbiguousParse) Error() string {
	return fmt.Sprintf("query produced %d ambiguous parse trees", len(e.Trees))
}

// UnqualifiedColumn reports a column that is not in table.column form.
type UnqualifiedColumn struct {
	baseError
	Column string // may be empty when the offending name is unknown
}

func (e *UnqualifiedColumn) Kind() Kind { return KindUnqualifiedColumn }
func (e *UnqualifiedColumn) Error() string {
	msg := "fully-qualified column name needs to be in the form 'table.column'"
	if e.Column != "" {
		msg += fmt.Sprintf(" (got %q)", e.Column)
	}
	return msg
}

// IllegalSelectedColumn reports a selected column outside the allowlist.
// The column is a plain string because a table name is not always known,
// for example for "*".
type IllegalSelectedColumn struct {
	baseError
	Column string
}

func (e *IllegalSelectedColumn) Kind() Kind { return KindIllegalSelectedColumn }
func (e *IllegalSelectedColumn) Error() string {
	return fmt.Sprintf("column %q is not allowed in SELECT", e.Column)
}

// IllegalConditionColumn reports a WHERE/JOIN/HAVING/ORDER BY column outside
// the allowlist.
type IllegalConditionColumn struct {
	baseError
	Column FqColumn
}

func (e *IllegalConditionColumn) Kind() Kind { return KindIllegalConditionColumn }
func (e *IllegalConditionColumn) Error() string {
	return fmt.Sprintf("column %q is not allowed in a condition", e.Column.Name())
}

// MissingParameterizedConstraint reports a required constraint absent from
// the query's unconditional constraint set.
type MissingParameterizedConstraint struct {
	baseError
	Column      FqColumn
	Placeholder string
}

func (e *MissingParameterizedConstraint) Kind() Kind {
	return KindMissingParameterizedConstraint
}

func (e *MissingParameterizedConstraint) Error() string {
	return fmt.Sprintf("missing required constraint %s=:%s", e.Column.Name(), e.Placeholder)
}

// MissingRequiredIdentity reports that none of the acceptable requester
// identities constrain the query.
type MissingRequiredIdentity struct {
	baseError
	Identities []ParameterizedConstraint
}

func (e *MissingRequiredIdentity) Kind() Kind { return KindMissingRequiredIdentity }
func (e *MissingRequiredIdentity) Error() string {
	parts := make([]string, len(e.Identities))
	for i, id := range e.Identities {
		parts[i] = id.String()
	}
	return "missing one of the required identities: " + strings.Join(parts, ", ")
}

// IllegalJoinTable reports a join condition outside the allowlist.
type IllegalJoinTable struct {
	baseError
	Join JoinCondition
}

func (e *IllegalJoinTable) Kind() Kind { return KindIllegalJoinTable }
func (e *IllegalJoinTable) Error() string {
	return fmt.Sprintf("join condition %s is not allowed", e.Join)
}

// IllegalJoinType reports a non-inner join.
type IllegalJoinType struct {
	baseError
	JoinType string
}

func (e *IllegalJoinType) Kind() Kind { return KindIllegalJoinType }
func (e *IllegalJoinType) Error() string {
	return fmt.Sprintf("JOIN type %q is not allowed", e.JoinType)
}

// DisconnectedTable reports that the FROM table participates in no join
// edge even though the query contains joins.
type DisconnectedTable struct {
	baseError
	Table string
}

func (e *DisconnectedTable) Kind() Kind { return KindDisconnectedTable }
func (e *DisconnectedTable) Error() string {
	return fmt.Sprintf("table %q is not connected to the query", e.Table)
}

// BogusJoinedTable reports a joined table whose join condition does not
// reference the table itself.
type BogusJoinedTable struct {
	baseError
	Table string
}

func (e *BogusJoinedTable) Kind() Kind { return KindBogusJoinedTable }
func (e *BogusJoinedTable) Error() string {
	return fmt.Sprintf("join condition for %q does not reference the table", e.Table)
}

// TooManyRows reports a missing or excessive row limit. Limit is nil when
// the query specified no limit at all.
type TooManyRows struct {
	baseError
	Limit *int
}

func (e *TooManyRows) Kind() Kind { return KindTooManyRows }
func (e *TooManyRows) Error() string {
	if e.Limit == nil {
		return "attempting to return too many rows (unlimited)"
	}
	return fmt.Sprintf("attempting to return too many rows (%d)", *e.Limit)
}

// IllegalFunction reports a function outside the allowlist.
type IllegalFunction struct {
	baseError
	Function string
}

func (e *IllegalFunction) Kind() Kind { return KindIllegalFunction }
func (e *IllegalFunction) Error() string {
	return fmt.Sprintf("function %q is not allowed", e.Function)
}

// AliasConflict reports an alias that shadows a table name or another alias.
type AliasConflict struct {
	baseError
	Alias string
}

func (e *AliasConflict) Kind() Kind { return KindAliasConflict }
func (e *AliasConflict) Error() string {
	return fmt.Sprintf("alias %q conflicts with a table name or another alias", e.Alias)
}
