// Package sqlite registers the SQLite dialect: ":name" placeholders and the
// SQLite reserved-keyword set.
package sqlite

import (
	"github.com/leapstack-labs/bifrost/pkg/dialect"
)

// SQLite is the registered SQLite dialect.
var SQLite = dialect.NewDialect("sqlite").
	Identifiers(`"`, `"`, `""`, dialect.NormCaseSensitive).
	WithReservedWords(reservedWords...).
	PlaceholderFunc(func(name string) string { return ":" + name }).
	Build()

func init() {
	dialect.Register(SQLite)
}
