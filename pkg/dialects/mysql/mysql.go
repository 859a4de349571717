// Package mysql registers the MySQL dialect: "%(name)s" placeholders,
// backtick-quoted identifiers, and the MySQL reserved-keyword set.
package mysql

import (
	"github.com/leapstack-labs/bifrost/pkg/dialect"
)

// MySQL is the registered MySQL dialect.
var MySQL = dialect.NewDialect("mysql").
	Identifiers("`", "`", "``", dialect.NormCaseSensitive).
	WithReservedWords(reservedWords...).
	PlaceholderFunc(func(name string) string { return "%(" + name + ")s" }).
	Build()

func init() {
	dialect.Register(MySQL)
}
