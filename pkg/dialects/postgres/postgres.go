// Package postgres registers the PostgreSQL dialect: "$name" placeholders,
// lowercase identifier folding, the postgres reserved-keyword set, and the
// "::" cast operator.
package postgres

import (
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/token"
)

// CastOp is the dynamic token for the postgres "::" cast operator.
var CastOp = token.Register("DCOLON")

// Postgres is the registered PostgreSQL dialect.
var Postgres = dialect.NewDialect("postgres").
	Identifiers(`"`, `"`, `""`, dialect.NormLowercase).
	WithReservedWords(reservedWords...).
	PlaceholderFunc(func(name string) string { return "$" + name }).
	AddOperator("::", CastOp).
	Build()

func init() {
	dialect.Register(Postgres)
}
