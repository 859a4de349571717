package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/postgres"
	"github.com/leapstack-labs/bifrost/pkg/dialects/sqlite"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
	"github.com/leapstack-labs/bifrost/pkg/token"
)

func mustDialect(t *testing.T, name string) *dialect.Dialect {
	t.Helper()
	d, ok := dialect.Get(name)
	require.True(t, ok, "dialect %s not registered", name)
	return d
}

func mustParse(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	stmt, err := parser.Parse(sql, sqlite.SQLite)
	require.NoError(t, err)
	return stmt
}

func TestParseSimpleSelect(t *testing.T) {
	stmt := mustParse(t, "SELECT t.a, t.b FROM t")

	require.NotNil(t, stmt.Select)
	require.Len(t, stmt.Select.Columns, 2)

	ref, ok := stmt.Select.Columns[0].Expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "t", ref.Table)
	assert.Equal(t, "a", ref.Column)

	source, ok := stmt.Select.From.Source.(*parser.TableName)
	require.True(t, ok)
	assert.Equal(t, "t", source.Name)
	assert.Empty(t, source.Alias)
}

func TestParseAliases(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		tableAlias string
		itemAlias  string
	}{
		{
			name:       "explicit AS",
			sql:        "SELECT f.title AS name FROM film AS f",
			tableAlias: "f",
			itemAlias:  "name",
		},
		{
			name:       "implicit alias",
			sql:        "SELECT f.title name FROM film f",
			tableAlias: "f",
			itemAlias:  "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := mustParse(t, tt.sql)
			source := stmt.Select.From.Source.(*parser.TableName)
			assert.Equal(t, tt.tableAlias, source.Alias)
			assert.Equal(t, tt.itemAlias, stmt.Select.Columns[0].Alias)
		})
	}
}

func TestParseJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		joinType parser.JoinType
		illegal  string
	}{
		{
			name:     "plain join",
			sql:      "SELECT t1.a FROM t1 JOIN t2 ON t1.id = t2.id",
			joinType: parser.JoinInner,
		},
		{
			name:     "inner join",
			sql:      "SELECT t1.a FROM t1 INNER JOIN t2 ON t1.id = t2.id",
			joinType: parser.JoinInner,
		},
		{
			name:     "left join",
			sql:      "SELECT t1.a FROM t1 LEFT JOIN t2 ON t1.id = t2.id",
			joinType: parser.JoinLeft,
			illegal:  "OUTER_JOIN",
		},
		{
			name:     "left outer join",
			sql:      "SELECT t1.a FROM t1 LEFT OUTER JOIN t2 ON t1.id = t2.id",
			joinType: parser.JoinLeft,
			illegal:  "OUTER_JOIN",
		},
		{
			name:     "right join",
			sql:      "SELECT t1.a FROM t1 RIGHT JOIN t2 ON t1.id = t2.id",
			joinType: parser.JoinRight,
			illegal:  "OUTER_JOIN",
		},
		{
			name:     "full outer join",
			sql:      "SELECT t1.a FROM t1 FULL OUTER JOIN t2 ON t1.id = t2.id",
			joinType: parser.JoinFull,
			illegal:  "OUTER_JOIN",
		},
		{
			name:     "cross join",
			sql:      "SELECT t1.a FROM t1 CROSS JOIN t2",
			joinType: parser.JoinCross,
			illegal:  "CROSS_JOIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := mustParse(t, tt.sql)
			require.Len(t, stmt.Select.From.Joins, 1)
			join := stmt.Select.From.Joins[0]
			assert.Equal(t, tt.joinType, join.Type)
			assert.Equal(t, tt.illegal, join.IllegalType())
		})
	}
}

func TestParseJoinChain(t *testing.T) {
	stmt := mustParse(t, `SELECT f.title FROM film f
		JOIN inventory i ON f.film_id = i.film_id
		JOIN rental r ON i.inventory_id = r.inventory_id
		WHERE r.customer_id = :customer_id LIMIT 20;`)

	require.Len(t, stmt.Select.From.Joins, 2)
	require.NotNil(t, stmt.Select.Where)
	require.NotNil(t, stmt.Select.Limit)
	assert.Equal(t, 20, stmt.Select.Limit.Count)

	pc, ok := stmt.Select.Where.(*parser.ParamComparison)
	require.True(t, ok)
	assert.Equal(t, "customer_id", pc.Placeholder.Name)
	assert.False(t, pc.Reversed)
}

func TestParseParamComparisonOrientations(t *testing.T) {
	stmt := mustParse(t, "SELECT t.a FROM t WHERE :id = t.id")
	pc, ok := stmt.Select.Where.(*parser.ParamComparison)
	require.True(t, ok)
	assert.True(t, pc.Reversed)
	assert.Equal(t, "id", pc.Placeholder.Name)
	assert.Equal(t, "id", pc.Column.Column)

	// Equality without a placeholder stays a plain comparison
	stmt = mustParse(t, "SELECT t.a FROM t WHERE t.id = 42")
	bin, ok := stmt.Select.Where.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.EQ, bin.Op)
}

func TestParseLimitOffset(t *testing.T) {
	stmt := mustParse(t, "SELECT t.a FROM t LIMIT 10 OFFSET 5")
	require.NotNil(t, stmt.Select.Limit)
	assert.Equal(t, 10, stmt.Select.Limit.Count)
	require.NotNil(t, stmt.Select.Limit.Offset)
	assert.Equal(t, 5, *stmt.Select.Limit.Offset)
}

func TestParseDerivedTable(t *testing.T) {
	stmt := mustParse(t, "SELECT d.x FROM (SELECT t.a AS x FROM t) d")
	derived, ok := stmt.Select.From.Source.(*parser.DerivedTable)
	require.True(t, ok)
	assert.Equal(t, "d", derived.Alias)
	require.NotNil(t, derived.Select)
}

func TestParseCTE(t *testing.T) {
	stmt := mustParse(t, "WITH recent AS (SELECT t.a FROM t) SELECT recent.a FROM recent")
	require.NotNil(t, stmt.With)
	require.Len(t, stmt.With.CTEs, 1)
	assert.Equal(t, "recent", stmt.With.CTEs[0].Name)
}

func TestParseScalarSubquery(t *testing.T) {
	stmt := mustParse(t, "SELECT (SELECT u.n FROM u) AS n, t.a FROM t")
	_, ok := stmt.Select.Columns[0].Expr.(*parser.SubqueryExpr)
	assert.True(t, ok)
}

func TestParseGroupHavingOrder(t *testing.T) {
	stmt := mustParse(t, `SELECT t.a, count(*) FROM t
		GROUP BY t.a HAVING count(*) > 2 ORDER BY t.a DESC`)
	require.Len(t, stmt.Select.GroupBy, 1)
	require.NotNil(t, stmt.Select.Having)
	require.Len(t, stmt.Select.OrderBy, 1)
	assert.True(t, stmt.Select.OrderBy[0].Desc)
}

func TestParseCountForms(t *testing.T) {
	stmt := mustParse(t, "SELECT count(*), COUNT(1), count(t.a) FROM t")
	star := stmt.Select.Columns[0].Expr.(*parser.FuncCall)
	assert.True(t, star.Star)
	assert.True(t, star.IsCount())

	one := stmt.Select.Columns[1].Expr.(*parser.FuncCall)
	assert.True(t, one.IsCount())
	require.Len(t, one.Args, 1)

	col := stmt.Select.Columns[2].Expr.(*parser.FuncCall)
	assert.True(t, col.IsCount())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{name: "empty", sql: ""},
		{name: "not a select", sql: "DELETE FROM t"},
		{name: "missing from", sql: "SELECT t.a"},
		{name: "trailing garbage", sql: "SELECT t.a FROM t extra garbage"},
		{name: "unterminated paren", sql: "SELECT t.a FROM (SELECT t.b FROM t"},
		{name: "union rejected", sql: "SELECT t.a FROM t UNION SELECT u.a FROM u"},
		{name: "non-literal limit", sql: "SELECT t.a FROM t LIMIT t.a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.sql, sqlite.SQLite)
			assert.Error(t, err)
		})
	}
}

func TestParseReservedKeywordAlias(t *testing.T) {
	// "temp" is reserved in sqlite but is not a grammar keyword
	_, err := parser.Parse("SELECT t.a AS temp FROM t", sqlite.SQLite)
	var rk *safesql.ReservedKeyword
	require.ErrorAs(t, err, &rk)
	assert.Equal(t, "temp", rk.Keyword)

	// Quoting the alias removes the error
	_, err = parser.Parse(`SELECT t.a AS "temp" FROM t`, sqlite.SQLite)
	assert.NoError(t, err)

	// An implicit reserved-keyword candidate is not consumed as an alias,
	// so the keyword fails the grammar instead of silently aliasing
	_, err = parser.Parse("SELECT t.a temp FROM t", sqlite.SQLite)
	assert.Error(t, err)
}

func TestReservedKeywordNotAliasInJoinPosition(t *testing.T) {
	// "left" must parse as the join keyword, not as an alias for t1
	stmt := mustParse(t, "SELECT t1.secret FROM t1 LEFT JOIN t2 ON t1.id = t2.id")
	require.Len(t, stmt.Select.From.Joins, 1)
	assert.Equal(t, parser.JoinLeft, stmt.Select.From.Joins[0].Type)

	source := stmt.Select.From.Source.(*parser.TableName)
	assert.Empty(t, source.Alias)
}

func TestParsePostgresCast(t *testing.T) {
	stmt, err := parser.Parse("SELECT t.a::int FROM t", mustDialect(t, "postgres"))
	require.NoError(t, err)
	cast, ok := stmt.Select.Columns[0].Expr.(*parser.CastExpr)
	require.True(t, ok)
	assert.Equal(t, "int", cast.TypeName)
	assert.True(t, cast.Postfix)
}

func TestCloneIsDeep(t *testing.T) {
	stmt := mustParse(t, "SELECT t.a FROM t WHERE t.id = :id LIMIT 5")
	clone := stmt.Clone()

	clone.Select.Limit.Count = 99
	clone.Select.Columns[0].Expr.(*parser.ColumnRef).Column = "changed"

	assert.Equal(t, 5, stmt.Select.Limit.Count)
	assert.Equal(t, "a", stmt.Select.Columns[0].Expr.(*parser.ColumnRef).Column)
}

func TestPlaceholderSpans(t *testing.T) {
	sql := "SELECT t.a FROM t WHERE t.id = :id AND t.b = :other"
	stmt := mustParse(t, sql)

	var names []string
	parser.WalkPlaceholders(stmt, func(ph *parser.Placeholder) {
		names = append(names, ph.Name)
		start, end := ph.Span.Start.Offset, ph.Span.End.Offset
		assert.Equal(t, ":"+ph.Name, sql[start:end])
	})
	assert.ElementsMatch(t, []string{"id", "other"}, names)
}
