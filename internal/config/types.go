// Package config loads the application configuration and compiles the
// declarative policy documents into rule sets the validator consumes.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// Config is the root configuration document.
type Config struct {
	// Dialect names the SQL dialect: sqlite, mysql, or postgres.
	Dialect string `koanf:"dialect"`

	// SchemaFile points at the schema text handed to the LLM.
	SchemaFile string `koanf:"schema_file"`

	Log      LogConfig      `koanf:"log"`
	LLM      LLMConfig      `koanf:"llm"`
	Server   ServerConfig   `koanf:"server"`
	Policies []PolicyConfig `koanf:"policies"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LLMConfig configures the LLM provider.
type LLMConfig struct {
	// Provider is "openai" for an OpenAI-compatible endpoint or "echo"
	// for the test provider.
	Provider    string  `koanf:"provider"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// PolicyConfig is one declarative policy document.
type PolicyConfig struct {
	Name string `koanf:"name"`

	// Identities lists requester identities as "table.column=:placeholder".
	Identities []string `koanf:"identities"`

	// Required lists constraints that must always be present, in the
	// same form as Identities.
	Required []string `koanf:"required"`

	// Joins lists allowed equi-joins as "a.b=c.d", or the single word
	// "any" to disable join-pair checking.
	Joins []string `koanf:"joins"`

	// IdentityJoins lists joins whose sides double as requester
	// identities.
	IdentityJoins []IdentityJoin `koanf:"identity_joins"`

	// SelectColumns is the select allowlist; "table.*" and "*" wildcards
	// are supported.
	SelectColumns []string `koanf:"select_columns"`

	// ConditionColumns is the condition allowlist; empty means the
	// select allowlist applies.
	ConditionColumns []string `koanf:"condition_columns"`

	// Functions is an explicit function allowlist; empty means the
	// curated safe set.
	Functions []string `koanf:"functions"`

	// MaxLimit caps the number of rows; absent means unlimited.
	MaxLimit *int `koanf:"max_limit"`
}

// IdentityJoin is a join condition annotated with an identity placeholder.
type IdentityJoin struct {
	Condition   string `koanf:"condition"`
	Placeholder string `koanf:"placeholder"`
}

// Compile turns the policy document into a rule set.
func (pc PolicyConfig) Compile() (*safesql.RuleSet, error) {
	rs := &safesql.RuleSet{Name: pc.Name, RowLimit: pc.MaxLimit}

	for _, raw := range pc.Identities {
		c, err := parseConstraint(raw)
		if err != nil {
			return nil, fmt.Errorf("policy %q: identity %q: %w", pc.Name, raw, err)
		}
		rs.Identities = append(rs.Identities, c)
	}

	for _, raw := range pc.Required {
		c, err := parseConstraint(raw)
		if err != nil {
			return nil, fmt.Errorf("policy %q: required %q: %w", pc.Name, raw, err)
		}
		rs.Required = append(rs.Required, c)
	}

	for _, raw := range pc.Joins {
		if strings.EqualFold(raw, "any") {
			rs.Joins = append(rs.Joins, safesql.AnyJoin)
			continue
		}
		j, err := parseJoin(raw)
		if err != nil {
			return nil, fmt.Errorf("policy %q: join %q: %w", pc.Name, raw, err)
		}
		rs.Joins = append(rs.Joins, j)
	}

	for _, ij := range pc.IdentityJoins {
		j, err := parseJoin(ij.Condition)
		if err != nil {
			return nil, fmt.Errorf("policy %q: identity join %q: %w", pc.Name, ij.Condition, err)
		}
		j.IdentityPlaceholder = ij.Placeholder
		rs.Joins = append(rs.Joins, j)
	}

	var err error
	rs.SelectColumns, err = safesql.NewColumnSet(pc.SelectColumns...)
	if err != nil {
		return nil, fmt.Errorf("policy %q: select columns: %w", pc.Name, err)
	}
	if len(pc.ConditionColumns) > 0 {
		rs.CondColumns, err = safesql.NewColumnSet(pc.ConditionColumns...)
		if err != nil {
			return nil, fmt.Errorf("policy %q: condition columns: %w", pc.Name, err)
		}
	}

	if len(pc.Functions) > 0 {
		rs.Functions = pc.Functions
	}

	return rs, nil
}

// parseConstraint parses "table.column=:placeholder".
func parseConstraint(raw string) (safesql.ParameterizedConstraint, error) {
	column, placeholder, ok := strings.Cut(raw, "=:")
	if !ok || placeholder == "" {
		return safesql.ParameterizedConstraint{}, fmt.Errorf("expected table.column=:placeholder")
	}
	return safesql.NewConstraint(strings.TrimSpace(column), strings.TrimSpace(placeholder))
}

// parseJoin parses "a.b=c.d".
func parseJoin(raw string) (safesql.JoinCondition, error) {
	first, second, ok := strings.Cut(raw, "=")
	if !ok {
		return safesql.JoinCondition{}, fmt.Errorf("expected a.b=c.d")
	}
	return safesql.NewJoin(strings.TrimSpace(first), strings.TrimSpace(second))
}
