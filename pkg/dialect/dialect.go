// Package dialect provides SQL dialect configuration for the trust pipeline.
//
// A dialect carries the reserved-keyword set consulted during alias checks,
// the identifier quoting rules, the renderer for native parameter
// placeholders, and any dialect-specific lexer symbols. Concrete dialects
// are registered from pkg/dialects/* packages and are immutable after
// construction, so one dialect value is safe for concurrent traversals.
package dialect

import (
	"strings"

	"github.com/leapstack-labs/bifrost/pkg/token"
)

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormCaseSensitive preserves identifier case exactly (the default).
	NormCaseSensitive NormalizationStrategy = iota
	// NormLowercase folds unquoted identifiers to lowercase.
	NormLowercase
	// NormUppercase folds unquoted identifiers to uppercase.
	NormUppercase
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: " or `
	QuoteEnd      string                // End quote character (usually same as Quote)
	Escape        string                // Escape sequence for the quote inside a name
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}

// PlaceholderFunc renders the dialect-native form of a named parameter
// placeholder, e.g. ":name", "%(name)s", or "$name".
type PlaceholderFunc func(name string) string

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers IdentifierConfig

	reservedWords map[string]struct{}
	placeholder   PlaceholderFunc
	symbols       map[string]token.TokenType
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormLowercase:
		return strings.ToLower(name)
	case NormUppercase:
		return strings.ToUpper(name)
	default:
		return name
	}
}

// IsReservedWord reports whether the word is reserved in this dialect.
// The check is case-insensitive.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// ReservedWords returns the dialect's reserved words, lowercased.
func (d *Dialect) ReservedWords() []string {
	out := make([]string, 0, len(d.reservedWords))
	for w := range d.reservedWords {
		out = append(out, w)
	}
	return out
}

// Placeholder renders the dialect-native parameter placeholder for a name.
func (d *Dialect) Placeholder(name string) string {
	if d.placeholder == nil {
		return ":" + name
	}
	return d.placeholder(name)
}

// Symbols returns the dialect-specific operator symbols for the lexer,
// e.g. "::" for postgres casts. May be nil.
func (d *Dialect) Symbols() map[string]token.TokenType {
	return d.symbols
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: IdentifierConfig{
				Quote:    `"`,
				QuoteEnd: `"`,
				Escape:   `""`,
			},
			reservedWords: make(map[string]struct{}),
			symbols:       make(map[string]token.TokenType),
		},
	}
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm NormalizationStrategy) *Builder {
	b.dialect.Identifiers = IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// WithReservedWords registers reserved words that cannot be used as
// unquoted aliases.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// PlaceholderFunc sets the renderer for named parameter placeholders.
func (b *Builder) PlaceholderFunc(fn PlaceholderFunc) *Builder {
	b.dialect.placeholder = fn
	return b
}

// AddOperator registers a custom operator symbol for the lexer.
func (b *Builder) AddOperator(symbol string, t token.TokenType) *Builder {
	b.dialect.symbols[symbol] = t
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
