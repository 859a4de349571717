// Package bifrost composes the full traversal from untrusted
// natural-language input to a trusted SQL statement: prompt envelope, LLM
// completion, parsing, policy validation with optional repair, and the
// dialect placeholder post-transform.
//
// Traversing the bifrost means successfully returning from Traverse,
// which is only possible when every stage succeeds.
package bifrost

import (
	"context"
	"errors"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/llm"
	"github.com/leapstack-labs/bifrost/pkg/log"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/rewrite"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
	"github.com/leapstack-labs/bifrost/pkg/validate"
)

// Config assembles a Bifrost.
type Config struct {
	LLM      llm.Integration
	Envelope PromptEnvelope
	Dialect  *dialect.Dialect
	// Policies are tried in order; the first to accept the statement
	// wins, and the last failure surfaces when none do.
	Policies []safesql.Policy
	Logger   log.Logger
}

// Bifrost is the bridge from the outside world to a trusted statement.
// One Bifrost is safe for concurrent traversals: the dialect and policies
// are read-only and every traversal owns its own tree.
type Bifrost struct {
	llm      llm.Integration
	envelope PromptEnvelope
	dialect  *dialect.Dialect
	policies []safesql.Policy
	logger   log.Logger
}

// New builds a Bifrost from the config.
func New(cfg Config) (*Bifrost, error) {
	if cfg.LLM == nil {
		return nil, errors.New("bifrost: LLM integration is required")
	}
	if cfg.Dialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	if len(cfg.Policies) == 0 {
		return nil, errors.New("bifrost: at least one policy is required")
	}
	if cfg.Envelope == nil {
		cfg.Envelope = &SQLEnvelope{Dialect: cfg.Dialect, Policies: cfg.Policies}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Bifrost{
		llm:      cfg.LLM,
		envelope: cfg.Envelope,
		dialect:  cfg.Dialect,
		policies: cfg.Policies,
		logger:   cfg.Logger,
	}, nil
}

// Mocked builds a Bifrost whose "LLM" echoes its input, so tests can feed
// SQL directly through the whole pipeline. The envelope is still
// exercised.
func Mocked(d *dialect.Dialect, policies ...safesql.Policy) *Bifrost {
	b, err := New(Config{
		LLM:      llm.Echo{},
		Envelope: &testEnvelope{inner: SQLEnvelope{Schema: "<schema>", Dialect: d, Policies: policies}},
		Dialect:  d,
		Policies: policies,
	})
	if err != nil {
		panic(err)
	}
	return b
}

// Traverse runs the full chain from untrusted input to trusted output.
// With repair enabled, a statement that misses a repairable constraint is
// rewritten instead of rejected.
func (b *Bifrost) Traverse(ctx context.Context, untrusted string, repair bool) (string, error) {
	tc := &safesql.TraverseContext{HumanInput: untrusted}

	b.logger.InfoContext(ctx, "traversing untrusted input", "repair", repair)

	prompt, err := b.envelope.Wrap(untrusted)
	if err != nil {
		return "", safesql.Attach(err, tc)
	}
	b.logger.DebugContext(ctx, "wrapped input in prompt envelope")

	completion, err := b.llm.Complete(ctx, prompt)
	if err != nil {
		b.logger.ErrorContext(ctx, "LLM completion failed", "error", err)
		return "", safesql.Attach(err, tc)
	}
	tc.LLMOutput = completion
	b.logger.DebugContext(ctx, "received raw result from LLM")

	unwrapped, err := b.envelope.Unwrap(completion)
	if err != nil {
		return "", safesql.Attach(err, tc)
	}
	tc.Unwrapped = unwrapped
	b.logger.DebugContext(ctx, "unwrapped LLM output", "sql", unwrapped)

	trusted, err := b.validateSQL(ctx, unwrapped, repair)
	if err != nil {
		b.logger.ErrorContext(ctx, "validation failed", "error", err)
		return "", safesql.Attach(err, tc)
	}

	b.logger.InfoContext(ctx, "validation succeeded", "trusted", trusted)
	return trusted, nil
}

// ValidateSQL runs parsing and policy validation over SQL text directly,
// skipping the LLM. Useful for offline checking of candidate statements.
func (b *Bifrost) ValidateSQL(ctx context.Context, sql string, repair bool) (string, error) {
	tc := &safesql.TraverseContext{Unwrapped: sql}
	out, err := b.validateSQL(ctx, sql, repair)
	if err != nil {
		return "", safesql.Attach(err, tc)
	}
	return out, nil
}

func (b *Bifrost) validateSQL(ctx context.Context, sql string, repair bool) (string, error) {
	stmt, err := b.parse(sql)
	if err != nil {
		return "", err
	}

	// Try each policy in order; the first success wins and only the last
	// failure surfaces
	var lastErr error
	for _, pol := range b.policies {
		text, tree, tryErr := b.tryPolicy(sql, stmt, pol, repair)
		if tryErr != nil {
			lastErr = tryErr
			continue
		}
		return rewrite.PostTransform(text, tree, b.dialect), nil
	}

	b.logger.DebugContext(ctx, "no policy accepted the statement")
	return "", lastErr
}

// tryPolicy validates the statement under one policy, repairing first
// when enabled. Repair output is re-parsed so the validated tree and its
// positions match the final text.
func (b *Bifrost) tryPolicy(sql string, stmt *parser.SelectStmt, pol safesql.Policy, repair bool) (string, *parser.SelectStmt, error) {
	text, tree := sql, stmt

	if repair {
		repaired, err := rewrite.Repair(stmt, pol, b.dialect)
		if err != nil {
			return "", nil, err
		}
		reparsed, err := b.parse(repaired)
		if err != nil {
			return "", nil, err
		}
		text, tree = repaired, reparsed
	}

	if err := validate.Statement(tree, pol, b.dialect); err != nil {
		return "", nil, err
	}
	return text, tree, nil
}

// parse converts SQL text into a tree. Plain syntax errors normalize to
// InvalidQuery; typed trust errors (a reserved-keyword alias, say) pass
// through unchanged.
func (b *Bifrost) parse(sql string) (*parser.SelectStmt, error) {
	stmt, err := parser.Parse(sql, b.dialect)
	if err != nil {
		var te safesql.Error
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &safesql.InvalidQuery{Query: sql}
	}
	return stmt, nil
}
