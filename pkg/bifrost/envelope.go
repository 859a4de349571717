package bifrost

import (
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// PromptEnvelope wraps untrusted human input with the context the LLM
// needs to produce a parseable statement, and strips the model's framing
// from its output. The envelope does no validation: prompt injection is
// assumed, and the grammar plus validator are the only defense.
type PromptEnvelope interface {
	Wrap(untrusted string) (string, error)
	Unwrap(llmOutput string) (string, error)
}

// promptTemplate guides the LLM toward output the grammar accepts. The
// identity constraints from the policies are included so the model knows
// how to constrain the query.
const promptTemplate = `You are a {{.Dialect}} SQL generator. Produce a single SELECT statement
answering the request below, against this schema:

{{.Schema}}

Rules:
- fully qualify every column as table.column
- use only inner joins
- constrain the query with {{.IDConstraints}} using the named placeholder
- use named placeholders like :param for runtime values
- limit the result to {{.MaxRows}} rows

Request: {{.Query}}

Reply with only the SQL inside a ` + "```sql```" + ` block.`

// SQLEnvelope is the default envelope. It renders the prompt from a
// template and tolerates the usual framing the model puts around SQL.
type SQLEnvelope struct {
	// Schema is the database schema text shown to the LLM.
	Schema string
	// Policies contribute their identity constraints to the prompt.
	Policies []safesql.Policy
	// Dialect names the SQL dialect in the prompt.
	Dialect *dialect.Dialect
	// Template overrides the built-in prompt template.
	Template *template.Template
}

// Wrap renders the prompt around the untrusted input.
func (e *SQLEnvelope) Wrap(untrusted string) (string, error) {
	tmpl := e.Template
	if tmpl == nil {
		tmpl = defaultTemplate
	}

	var idents []string
	maxRows := "a reasonable number of"
	for _, pol := range e.Policies {
		for _, id := range pol.RequesterIdentities() {
			idents = append(idents, id.String())
		}
		if m, ok := pol.MaxLimit(); ok {
			maxRows = strconv.Itoa(m)
		}
	}
	idConstraints := strings.Join(idents, " or ")
	if idConstraints == "" {
		idConstraints = "the relevant identity columns"
	}

	var sb strings.Builder
	err := tmpl.Execute(&sb, map[string]any{
		"Dialect":       e.Dialect.Name,
		"Schema":        e.Schema,
		"IDConstraints": idConstraints,
		"MaxRows":       maxRows,
		"Query":         untrusted,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

var defaultTemplate = template.Must(template.New("prompt").Parse(promptTemplate))

// fenceRe matches a triple-backtick block with an optional sql language
// tag, case-insensitively, across lines.
var fenceRe = regexp.MustCompile(`(?is)` + "```" + `(?:sql)?(.*?)` + "```")

// sqlPrefixRe matches a bare "sql" line the model sometimes prefixes even
// when told not to.
var sqlPrefixRe = regexp.MustCompile(`(?i)^\s*sql\n+`)

// Unwrap extracts the SQL from the model's reply.
func (e *SQLEnvelope) Unwrap(llmOutput string) (string, error) {
	if strings.Contains(llmOutput, "```") {
		if m := fenceRe.FindStringSubmatch(llmOutput); m != nil {
			return strings.TrimSpace(m[1]), nil
		}
	}
	return strings.TrimSpace(sqlPrefixRe.ReplaceAllString(llmOutput, "")), nil
}

// testEnvelope exercises the real wrap path but hands the input through
// unchanged, so tests can feed SQL directly to an echo LLM.
type testEnvelope struct {
	inner SQLEnvelope
}

func (e *testEnvelope) Wrap(untrusted string) (string, error) {
	if _, err := e.inner.Wrap(untrusted); err != nil {
		return "", err
	}
	return untrusted, nil
}

func (e *testEnvelope) Unwrap(llmOutput string) (string, error) {
	return e.inner.Unwrap(llmOutput)
}

