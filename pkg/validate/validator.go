// Package validate applies an allowlist policy to the facets collected
// from a parsed statement. Checks run in a fixed order and the first
// failure wins.
package validate

import (
	"github.com/leapstack-labs/bifrost/pkg/analysis"
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// Statement runs the full analysis and policy validation over a parsed
// statement: alias collection, facet collection, then the ordered checks.
func Statement(stmt *parser.SelectStmt, pol safesql.Policy, d *dialect.Dialect) error {
	aliases, err := analysis.CollectAliases(stmt, d)
	if err != nil {
		return err
	}
	facets, err := analysis.Collect(stmt, aliases, d)
	if err != nil {
		return err
	}
	return Facets(facets, pol)
}

// Facets checks collected facets against the policy. The checks run in
// order; the first failing check produces the error.
func Facets(facets *analysis.Facets, pol safesql.Policy) error {
	// 1. Selected columns
	for col := range facets.SelectedColumns {
		if !pol.SelectColumnAllowed(col) {
			return &safesql.IllegalSelectedColumn{Column: col.Name()}
		}
	}

	allowedJoins := pol.AllowedJoins()
	anyJoinAllowed := false
	for _, j := range allowedJoins {
		if j.IsAny() {
			anyJoinAllowed = true
			break
		}
	}

	for _, sf := range facets.Scopes {
		// 2. Join allowlist
		if !anyJoinAllowed {
			for _, edges := range sf.JoinedTables {
				for _, jc := range edges {
					if !joinAllowed(allowedJoins, jc) {
						return &safesql.IllegalJoinTable{Join: jc}
					}
				}
			}
		}

		// 3. Join connectivity: when the scope has join edges, the FROM
		// table must participate in at least one
		if len(sf.JoinedTables) > 0 && len(sf.JoinedTables[sf.SelectedTable]) == 0 {
			return &safesql.DisconnectedTable{Table: sf.SelectedTable}
		}

		// 4. Joins must reference the table they bring in
		if len(sf.BadJoins) > 0 {
			return &safesql.BogusJoinedTable{Table: sf.BadJoins[0]}
		}
	}

	// Columns named by allowed joins are implicitly usable in conditions
	joinColumns := make(map[safesql.FqColumn]struct{})
	for _, j := range allowedJoins {
		if j.IsAny() {
			continue
		}
		joinColumns[j.First] = struct{}{}
		joinColumns[j.Second] = struct{}{}
	}

	// 5. Condition columns
	for col := range facets.ConditionColumns {
		if _, ok := joinColumns[col]; ok {
			continue
		}
		if !pol.ConditionColumnAllowed(col) {
			return &safesql.IllegalConditionColumn{Column: col}
		}
	}

	// 6. Required parameterized constraints
	for _, pc := range pol.ParameterizedConstraints() {
		if !facets.HasConstraint(pc) {
			return &safesql.MissingParameterizedConstraint{
				Column:      pc.Column,
				Placeholder: pc.Placeholder,
			}
		}
	}

	// 7. Requester identity: explicit identities plus identity joins
	identities := requesterIdentities(pol)
	if len(identities) > 0 {
		found := false
		for _, id := range identities {
			if facets.HasConstraint(id) {
				found = true
				break
			}
		}
		if !found {
			return &safesql.MissingRequiredIdentity{Identities: identities}
		}
	}

	// 8. Row limit: every scope must carry a limit within the maximum
	if maxLimit, ok := pol.MaxLimit(); ok {
		for _, limit := range facets.Limits {
			if limit == nil || *limit > maxLimit {
				return &safesql.TooManyRows{Limit: limit}
			}
		}
	}

	// 9. Function allowlist
	for fn := range facets.Functions {
		if !pol.CanUseFunction(fn) {
			return &safesql.IllegalFunction{Function: fn}
		}
	}

	return nil
}

// requesterIdentities merges the policy's explicit identities with the
// identities derived from identity-annotated join conditions. Duplicates
// collapse.
func requesterIdentities(pol safesql.Policy) []safesql.ParameterizedConstraint {
	seen := make(map[safesql.ParameterizedConstraint]struct{})
	var out []safesql.ParameterizedConstraint

	add := func(pc safesql.ParameterizedConstraint) {
		if _, ok := seen[pc]; ok {
			return
		}
		seen[pc] = struct{}{}
		out = append(out, pc)
	}

	for _, id := range pol.RequesterIdentities() {
		add(id)
	}
	for _, j := range pol.AllowedJoins() {
		for _, id := range j.RequesterIdentities() {
			add(id)
		}
	}
	return out
}

func joinAllowed(allowed []safesql.JoinCondition, jc safesql.JoinCondition) bool {
	for _, a := range allowed {
		if a.Equal(jc) {
			return true
		}
	}
	return false
}
