package rewrite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/bifrost/pkg/analysis"
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/postgres"
	"github.com/leapstack-labs/bifrost/pkg/dialects/sqlite"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/rewrite"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

func parse(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	stmt, err := parser.Parse(sql, sqlite.SQLite)
	require.NoError(t, err)
	return stmt
}

func permissive() *safesql.PolicyFuncs {
	return &safesql.PolicyFuncs{
		SelectAllowedFunc: func(safesql.FqColumn) bool { return true },
		JoinsFunc: func() []safesql.JoinCondition {
			return []safesql.JoinCondition{safesql.AnyJoin}
		},
	}
}

func withLimit(pol *safesql.PolicyFuncs, max int) *safesql.PolicyFuncs {
	pol.MaxLimitFunc = func() (int, bool) { return max, true }
	return pol
}

// facetsOf collects facets for equivalence comparisons.
func facetsOf(t *testing.T, sql string) *analysis.Facets {
	t.Helper()
	stmt := parse(t, sql)
	aliases, err := analysis.CollectAliases(stmt, sqlite.SQLite)
	require.NoError(t, err)
	facets, err := analysis.Collect(stmt, aliases, sqlite.SQLite)
	require.NoError(t, err)
	return facets
}

// ---------- Serialization ----------

func TestSerializeRoundTrip(t *testing.T) {
	tests := []string{
		"SELECT t.a FROM t",
		"SELECT DISTINCT t.a, t.b AS x FROM t AS src",
		"SELECT f.title FROM film AS f JOIN inventory AS i ON f.film_id = i.film_id WHERE f.rating = 'PG' LIMIT 20",
		"SELECT t.a FROM t WHERE t.id = :id AND (t.b > 1 OR t.c < 2) ORDER BY t.a DESC LIMIT 5 OFFSET 2",
		"SELECT count(*) AS n, upper(t.a) AS u FROM t GROUP BY t.a HAVING count(*) > 1",
		"SELECT d.x FROM (SELECT t.a AS x FROM t LIMIT 5) AS d LIMIT 10",
		"WITH recent AS (SELECT t.a FROM t LIMIT 3) SELECT recent.a FROM recent LIMIT 3",
		"SELECT t.a FROM t WHERE t.b IN (1, 2, 3) AND t.c IS NOT NULL AND t.d LIKE 'x%'",
		"SELECT t.a FROM t WHERE EXISTS (SELECT u.x FROM u WHERE u.id = t.id)",
		"SELECT CASE WHEN t.a > 1 THEN 'big' ELSE 'small' END AS size_label FROM t",
	}

	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			stmt := parse(t, sql)
			out := rewrite.Serialize(stmt, sqlite.SQLite)

			// The serialized text parses back
			reparsed, err := parser.Parse(out, sqlite.SQLite)
			require.NoError(t, err, "serialized: %s", out)

			// And serializing again is a fixed point
			assert.Equal(t, out, rewrite.Serialize(reparsed, sqlite.SQLite))
		})
	}
}

func TestSerializePreservesQuotedIdentifiers(t *testing.T) {
	stmt := parse(t, `SELECT t."order" FROM t`)
	out := rewrite.Serialize(stmt, sqlite.SQLite)
	assert.Contains(t, out, `"order"`)

	_, err := parser.Parse(out, sqlite.SQLite)
	assert.NoError(t, err)
}

// ---------- Limit repair ----------

func TestRepairAddsMissingLimit(t *testing.T) {
	stmt := parse(t, "SELECT t.a FROM t")
	out, err := rewrite.Repair(stmt, withLimit(permissive(), 20), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 20")
}

func TestRepairTightensLimit(t *testing.T) {
	stmt := parse(t, "SELECT t.a FROM t LIMIT 40")
	out, err := rewrite.Repair(stmt, withLimit(permissive(), 20), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 20")
	assert.NotContains(t, out, "40")
}

func TestRepairKeepsCompliantLimit(t *testing.T) {
	stmt := parse(t, "SELECT t.a FROM t LIMIT 10")
	out, err := rewrite.Repair(stmt, withLimit(permissive(), 20), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 10")
}

func TestRepairPreservesOffset(t *testing.T) {
	stmt := parse(t, "SELECT t.a FROM t LIMIT 40 OFFSET 7")
	out, err := rewrite.Repair(stmt, withLimit(permissive(), 20), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 20 OFFSET 7")
}

func TestRepairLeavesSubqueryLimitsAlone(t *testing.T) {
	stmt := parse(t, "SELECT d.x FROM (SELECT t.a AS x FROM t) AS d")
	out, err := rewrite.Repair(stmt, withLimit(permissive(), 20), sqlite.SQLite)
	require.NoError(t, err)

	// The top level gains a limit; the subquery stays unlimited
	assert.Equal(t, 1, strings.Count(out, "LIMIT"))
	assert.True(t, strings.HasSuffix(out, "LIMIT 20"), out)
}

func TestRepairNoLimitPolicyIsIdentity(t *testing.T) {
	sql := "SELECT t.a FROM t"
	stmt := parse(t, sql)
	out, err := rewrite.Repair(stmt, permissive(), sqlite.SQLite)
	require.NoError(t, err)
	assert.NotContains(t, out, "LIMIT")
}

// ---------- Illegal column dropping ----------

func denyIDs() *safesql.PolicyFuncs {
	pol := permissive()
	pol.SelectAllowedFunc = func(c safesql.FqColumn) bool {
		return !strings.HasSuffix(c.Column, "_id")
	}
	return pol
}

func TestRepairDropsIllegalColumn(t *testing.T) {
	stmt := parse(t, `SELECT f.film_id, f.title FROM film f
		JOIN customer c ON f.x = c.x WHERE c.customer_id = :customer_id`)
	out, err := rewrite.Repair(stmt, denyIDs(), sqlite.SQLite)
	require.NoError(t, err)

	assert.NotContains(t, out, "film_id,")
	assert.Contains(t, out, "f.title")
	assert.Contains(t, out, ":customer_id")
}

func TestRepairResolvesAliasBeforeDropping(t *testing.T) {
	// f aliases film; the allowlist speaks in authoritative names
	stmt := parse(t, "SELECT f.secret_id, f.title FROM film f")
	pol := permissive()
	pol.SelectAllowedFunc = func(c safesql.FqColumn) bool {
		return c.Name() != "film.secret_id"
	}
	out, err := rewrite.Repair(stmt, pol, sqlite.SQLite)
	require.NoError(t, err)
	assert.NotContains(t, out, "secret_id")
	assert.Contains(t, out, "f.title")
}

func TestRepairKeepsCountAndSubqueries(t *testing.T) {
	stmt := parse(t, "SELECT count(t.a) AS n, (SELECT u.x FROM u) AS v FROM t")
	pol := permissive()
	// Deny every t column: the count and the subquery item survive anyway
	pol.SelectAllowedFunc = func(c safesql.FqColumn) bool { return c.Table != "t" }
	out, err := rewrite.Repair(stmt, pol, sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "count(t.a)")
	assert.Contains(t, out, "SELECT u.x")
}

func TestRepairDropsInsideSubquerySelectList(t *testing.T) {
	stmt := parse(t, "SELECT d.ok FROM (SELECT t.ok, t.secret FROM t) AS d")
	pol := permissive()
	pol.SelectAllowedFunc = func(c safesql.FqColumn) bool { return c.Column != "secret" }
	out, err := rewrite.Repair(stmt, pol, sqlite.SQLite)
	require.NoError(t, err)
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "SELECT t.ok")
}

func TestRepairAllColumnsDroppedFails(t *testing.T) {
	stmt := parse(t, "SELECT f.film_id, f.other_id FROM film f")
	_, err := rewrite.Repair(stmt, denyIDs(), sqlite.SQLite)
	var ic *safesql.IllegalSelectedColumn
	require.ErrorAs(t, err, &ic)
	assert.Equal(t, "film.other_id", ic.Column)
}

// ---------- Alias-to-FQ rewriting ----------

func TestRepairRewritesSingleColumnAlias(t *testing.T) {
	stmt := parse(t, "SELECT t.col AS thing FROM t WHERE thing = 42")
	out, err := rewrite.Repair(stmt, permissive(), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "WHERE t.col = 42")
}

func TestRepairLeavesExpressionAlias(t *testing.T) {
	stmt := parse(t, "SELECT count(*) AS n, t.a FROM t ORDER BY n")
	out, err := rewrite.Repair(stmt, permissive(), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "ORDER BY n")
}

func TestRepairLeavesCompositeAlias(t *testing.T) {
	stmt := parse(t, "SELECT t.a || t.b AS combo FROM t ORDER BY combo")
	out, err := rewrite.Repair(stmt, permissive(), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "ORDER BY combo")
}

func TestRepairInfersSingleTableForUnknownName(t *testing.T) {
	stmt := parse(t, "SELECT t.a FROM t WHERE rating = 'PG'")
	out, err := rewrite.Repair(stmt, permissive(), sqlite.SQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "t.rating = 'PG'")
}

// ---------- Repair is identity on compliant queries ----------

func TestRepairIdentityOnFacets(t *testing.T) {
	sql := `SELECT f.title FROM film AS f
JOIN inventory AS i ON f.film_id = i.film_id
WHERE i.store_id = :store_id LIMIT 20`
	stmt := parse(t, sql)
	out, err := rewrite.Repair(stmt, withLimit(permissive(), 20), sqlite.SQLite)
	require.NoError(t, err)

	before := facetsOf(t, sql)
	after := facetsOf(t, out)

	assert.Equal(t, before.SelectedColumns, after.SelectedColumns)
	assert.Equal(t, before.ConditionColumns, after.ConditionColumns)
	assert.Equal(t, before.ParameterizedConstraints, after.ParameterizedConstraints)
	assert.Equal(t, before.Functions, after.Functions)
}

// ---------- Placeholder post-transform ----------

func TestPostTransformDialects(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{dialect: "sqlite", want: "WHERE t1.id = :id"},
		{dialect: "mysql", want: "WHERE t1.id = %(id)s"},
		{dialect: "postgres", want: "WHERE t1.id = $id"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			d, ok := dialect.Get(tt.dialect)
			require.True(t, ok)

			sql := "SELECT t1.a FROM t1 WHERE t1.id = :id"
			stmt, err := parser.Parse(sql, d)
			require.NoError(t, err)

			out := rewrite.PostTransform(sql, stmt, d)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestPostTransformMultiplePlaceholders(t *testing.T) {
	d, ok := dialect.Get("mysql")
	require.True(t, ok)

	sql := "SELECT t.a FROM t WHERE t.x = :first AND t.y = :second AND t.z = :third"
	stmt, err := parser.Parse(sql, d)
	require.NoError(t, err)

	out := rewrite.PostTransform(sql, stmt, d)
	assert.Equal(t,
		"SELECT t.a FROM t WHERE t.x = %(first)s AND t.y = %(second)s AND t.z = %(third)s",
		out)
}
