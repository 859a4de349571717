package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/bifrost/pkg/analysis"
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/postgres"
	"github.com/leapstack-labs/bifrost/pkg/dialects/sqlite"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

func dialectGet(t *testing.T, name string) (*dialect.Dialect, bool) {
	t.Helper()
	d, ok := dialect.Get(name)
	require.True(t, ok)
	return d, ok
}

func collect(t *testing.T, sql string) *analysis.Facets {
	t.Helper()
	facets, err := tryCollect(sql)
	require.NoError(t, err)
	return facets
}

func tryCollect(sql string) (*analysis.Facets, error) {
	stmt, err := parser.Parse(sql, sqlite.SQLite)
	if err != nil {
		return nil, err
	}
	aliases, err := analysis.CollectAliases(stmt, sqlite.SQLite)
	if err != nil {
		return nil, err
	}
	return analysis.Collect(stmt, aliases, sqlite.SQLite)
}

func constraints(f *analysis.Facets) []string {
	var out []string
	for pc := range f.ParameterizedConstraints {
		out = append(out, pc.String())
	}
	return out
}

// ---------- Selected columns ----------

func TestSelectedColumns(t *testing.T) {
	facets := collect(t, "SELECT f.title, f.rating FROM film f")
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("film.title"))
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("film.rating"))
}

func TestSelectedColumnsThroughExpressions(t *testing.T) {
	facets := collect(t, "SELECT upper(f.title || f.rating) AS label FROM film f")
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("film.title"))
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("film.rating"))
	assert.Contains(t, facets.Functions, "upper")
}

func TestSelectStarRejected(t *testing.T) {
	_, err := tryCollect("SELECT * FROM t1")
	var ic *safesql.IllegalSelectedColumn
	require.ErrorAs(t, err, &ic)
	assert.Equal(t, "*", ic.Column)
}

func TestSelectTableStarRejected(t *testing.T) {
	_, err := tryCollect("SELECT t1.* FROM t1")
	var ic *safesql.IllegalSelectedColumn
	require.ErrorAs(t, err, &ic)
	assert.Equal(t, "t1.*", ic.Column)
}

func TestCountFormsIgnored(t *testing.T) {
	facets := collect(t, "SELECT count(*), count(1), count(t.a) AS n FROM t")
	assert.Empty(t, facets.SelectedColumns)

	// count(*) and count(1) add nothing; count(column) is a function use
	assert.Contains(t, facets.Functions, "count")
}

func TestUnqualifiedSelectedColumn(t *testing.T) {
	_, err := tryCollect("SELECT title FROM film")
	var uc *safesql.UnqualifiedColumn
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "title", uc.Column)
}

func TestUnqualifiedColumnInFunction(t *testing.T) {
	_, err := tryCollect("SELECT whatever(col) FROM t1")
	var uc *safesql.UnqualifiedColumn
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "col", uc.Column)
}

func TestDerivedTableColumnsSkipped(t *testing.T) {
	facets := collect(t, "SELECT d.x FROM (SELECT t.a AS x FROM t) d")

	// d.x is not recorded; the inner t.a is, from its own scope
	assert.NotContains(t, facets.SelectedColumns, safesql.FqColumn{Table: "", Column: "x"})
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("t.a"))
}

func TestSubquerySelectListFlowsIn(t *testing.T) {
	facets := collect(t, "SELECT (SELECT u.email FROM u) AS email, t.a FROM t")
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("u.email"))
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("t.a"))
}

// ---------- Aliases ----------

func TestAliasConflictSameAliasTwoTables(t *testing.T) {
	_, err := tryCollect("SELECT a.x FROM t1 a JOIN t2 a ON a.x = a.y")
	var ac *safesql.AliasConflict
	require.ErrorAs(t, err, &ac)
	assert.Equal(t, "a", ac.Alias)
}

func TestAliasConflictSubqueryShadowsTable(t *testing.T) {
	_, err := tryCollect("SELECT (SELECT t2.x FROM t2) AS t1 FROM t1")
	var ac *safesql.AliasConflict
	require.ErrorAs(t, err, &ac)
	assert.Equal(t, "t1", ac.Alias)
}

func TestAliasRewriteToAuthoritativeTable(t *testing.T) {
	// "thing" aliases f.title; the alias table must resolve f -> film
	facets := collect(t, "SELECT f.title AS thing FROM film f WHERE thing LIKE 'A%'")
	assert.Contains(t, facets.ConditionColumns, safesql.MustColumn("film.title"))
}

func TestCTEBehavesAsDerivedTable(t *testing.T) {
	facets := collect(t, `WITH recent AS (SELECT t.a AS x FROM t)
		SELECT recent.x FROM recent`)

	// The CTE body is analyzed in its own scope; the outer reference
	// through the CTE name is skipped like any derived-table column
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("t.a"))
	assert.NotContains(t, facets.SelectedColumns, safesql.MustColumn("recent.x"))
	assert.Len(t, facets.Limits, 2)
}

func TestCTEWithAliasedReference(t *testing.T) {
	facets := collect(t, `WITH recent AS (SELECT t.a AS x FROM t)
		SELECT q.x FROM recent q`)
	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("t.a"))
}

// ---------- Condition columns ----------

func TestConditionColumns(t *testing.T) {
	facets := collect(t, `SELECT f.title FROM film f
		JOIN inventory i ON f.film_id = i.film_id
		WHERE f.rating = 'PG' HAVING count(*) > 1 ORDER BY f.title`)

	want := []safesql.FqColumn{
		safesql.MustColumn("film.film_id"),
		safesql.MustColumn("inventory.film_id"),
		safesql.MustColumn("film.rating"),
		safesql.MustColumn("film.title"),
	}
	for _, col := range want {
		assert.Contains(t, facets.ConditionColumns, col)
	}
}

func TestConditionColumnExpressionAliasAccepted(t *testing.T) {
	facets := collect(t, `SELECT count(*) AS n, t.a FROM t ORDER BY n`)
	assert.NotContains(t, facets.ConditionColumns, safesql.FqColumn{Table: "", Column: "n"})
}

func TestConditionColumnUnknownAlias(t *testing.T) {
	_, err := tryCollect("SELECT t.a FROM t WHERE mystery = 1")
	var uc *safesql.UnqualifiedColumn
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "mystery", uc.Column)
}

func TestCompositeAliasAddsAllColumns(t *testing.T) {
	facets := collect(t, "SELECT t.a || t.b AS combo FROM t WHERE combo = 'x'")
	assert.Contains(t, facets.ConditionColumns, safesql.MustColumn("t.a"))
	assert.Contains(t, facets.ConditionColumns, safesql.MustColumn("t.b"))
}

// ---------- Joins ----------

func TestJoinGraph(t *testing.T) {
	facets := collect(t, `SELECT f.title FROM film f
		JOIN inventory i ON f.film_id = i.film_id
		JOIN rental r ON i.inventory_id = r.inventory_id`)

	require.Len(t, facets.Scopes, 1)
	for _, sf := range facets.Scopes {
		assert.Equal(t, "film", sf.SelectedTable)
		assert.NotEmpty(t, sf.JoinedTables["film"])
		assert.NotEmpty(t, sf.JoinedTables["inventory"])
		assert.NotEmpty(t, sf.JoinedTables["rental"])
		assert.Empty(t, sf.BadJoins)
	}
}

func TestBogusJoinRecorded(t *testing.T) {
	facets := collect(t, "SELECT t1.a FROM t1 JOIN t2 ON t1.x = t3.x")
	for _, sf := range facets.Scopes {
		assert.Equal(t, []string{"t2"}, sf.BadJoins)
	}
}

func TestIllegalJoinTypes(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT t1.a FROM t1 LEFT JOIN t2 ON t1.id = t2.id", "OUTER_JOIN"},
		{"SELECT t1.a FROM t1 RIGHT OUTER JOIN t2 ON t1.id = t2.id", "OUTER_JOIN"},
		{"SELECT t1.a FROM t1 FULL JOIN t2 ON t1.id = t2.id", "OUTER_JOIN"},
		{"SELECT t1.a FROM t1 CROSS JOIN t2", "CROSS_JOIN"},
	}
	for _, tt := range tests {
		_, err := tryCollect(tt.sql)
		var ij *safesql.IllegalJoinType
		require.ErrorAs(t, err, &ij, tt.sql)
		assert.Equal(t, tt.want, ij.JoinType)
	}
}

func TestJoinOnDerivedTableUnsupported(t *testing.T) {
	_, err := tryCollect("SELECT t.a FROM t JOIN (SELECT u.x FROM u) d ON t.a = d.x")
	var uq *safesql.UnsupportedQuery
	require.ErrorAs(t, err, &uq)
}

func TestJoinLiteralRHSContributesNoEdge(t *testing.T) {
	facets := collect(t, "SELECT t1.a FROM t1 JOIN t2 ON t2.x = 5 AND t1.id = t2.id")
	for _, sf := range facets.Scopes {
		// Only the column pair creates an edge
		assert.Len(t, sf.JoinedTables["t2"], 1)
		assert.Empty(t, sf.BadJoins)
	}
}

// ---------- Parameterized constraints ----------

func TestConstraintCollected(t *testing.T) {
	facets := collect(t, "SELECT t.a FROM t WHERE t.id = :id")
	assert.True(t, facets.HasConstraint(safesql.MustConstraint("t.id", "id")))
}

func TestConstraintReversedOrientation(t *testing.T) {
	facets := collect(t, "SELECT t.a FROM t WHERE :id = t.id")
	assert.True(t, facets.HasConstraint(safesql.MustConstraint("t.id", "id")))
}

func TestConstraintInJoinCondition(t *testing.T) {
	facets := collect(t, `SELECT f.title FROM film f
		JOIN rental r ON f.id = r.film_id AND r.customer_id = :customer_id`)
	assert.True(t, facets.HasConstraint(safesql.MustConstraint("rental.customer_id", "customer_id")))
}

func TestConstraintTaintedByOr(t *testing.T) {
	tests := []string{
		// top-level OR makes the whole constraint optional
		"SELECT t.a FROM t WHERE t.id = :id OR t.b > 0",
		// OR nested in the parenthesized level
		"SELECT t.a FROM t WHERE t.b = 1 AND (t.id = :id OR 1 = 1)",
		// the spoof with parens on the left
		"SELECT t.a FROM t WHERE (t.b = 1 AND t.id = :id) OR t.c > 0",
	}
	for _, sql := range tests {
		facets := collect(t, sql)
		assert.Empty(t, constraints(facets), sql)
	}
}

func TestConstraintSurvivesNestedAnds(t *testing.T) {
	facets := collect(t, `SELECT t.a FROM t WHERE
		(t.b >= 1 AND (1 = 1 AND (t.id = :id) AND (t.c = 2)))`)
	assert.True(t, facets.HasConstraint(safesql.MustConstraint("t.id", "id")))
}

func TestOrBesideUntaintedBranch(t *testing.T) {
	// The OR taints only its own level; the AND branch above it still counts
	facets := collect(t, `SELECT t.a FROM t WHERE t.id = :id AND (t.b = 1 OR t.c = 2)`)
	assert.True(t, facets.HasConstraint(safesql.MustConstraint("t.id", "id")))
}

func TestConstraintInSubqueryDoesNotCount(t *testing.T) {
	facets := collect(t, `SELECT t.a FROM t WHERE t.b IN
		(SELECT u.b FROM u WHERE u.id = :id)`)
	assert.False(t, facets.HasConstraint(safesql.MustConstraint("u.id", "id")))
}

func TestConstraintThroughSingleColumnAlias(t *testing.T) {
	facets := collect(t, "SELECT t.secret_id AS sid FROM t WHERE sid = :id")
	assert.True(t, facets.HasConstraint(safesql.MustConstraint("t.secret_id", "id")))
}

func TestConstraintThroughCompositeAliasIgnored(t *testing.T) {
	facets := collect(t, "SELECT t.a || t.b AS combo FROM t WHERE combo = :id")
	assert.Empty(t, constraints(facets))
}

func TestConstraintThroughExpressionAliasIgnored(t *testing.T) {
	facets := collect(t, "SELECT count(*) AS n, t.a FROM t HAVING n = :id")
	assert.Empty(t, constraints(facets))
}

// ---------- Limits and functions ----------

func TestLimitsPerScope(t *testing.T) {
	facets := collect(t, "SELECT t.a FROM t LIMIT 10")
	require.Len(t, facets.Limits, 1)
	for _, limit := range facets.Limits {
		require.NotNil(t, limit)
		assert.Equal(t, 10, *limit)
	}
}

func TestMissingLimitRecordedAsNil(t *testing.T) {
	facets := collect(t, "SELECT t.a FROM t")
	require.Len(t, facets.Limits, 1)
	for _, limit := range facets.Limits {
		assert.Nil(t, limit)
	}
}

func TestSubqueryLimitRecorded(t *testing.T) {
	facets := collect(t, "SELECT d.x FROM (SELECT t.a AS x FROM t LIMIT 5) d LIMIT 10")
	assert.Len(t, facets.Limits, 2)
}

func TestFunctionsLowercased(t *testing.T) {
	facets := collect(t, "SELECT UPPER(t.a), t.b FROM t WHERE LENGTH(t.b) > 3")
	assert.Contains(t, facets.Functions, "upper")
	assert.Contains(t, facets.Functions, "length")
	assert.NotContains(t, facets.Functions, "UPPER")
}

// ---------- Dialect normalization ----------

func TestPostgresFoldsUnquotedIdentifiers(t *testing.T) {
	d, _ := dialectGet(t, "postgres")
	stmt, err := parser.Parse("SELECT F.Title FROM Film F WHERE F.Title = :p", d)
	require.NoError(t, err)
	aliases, err := analysis.CollectAliases(stmt, d)
	require.NoError(t, err)
	facets, err := analysis.Collect(stmt, aliases, d)
	require.NoError(t, err)

	assert.Contains(t, facets.SelectedColumns, safesql.MustColumn("film.title"))
}
