// Package parser provides lexing and parsing of the restricted SELECT
// grammar consumed by the trust pipeline.
//
// # Parser Architecture
//
// The parser is split across multiple files:
//
//   - parser.go (this file): Public API, Parser struct, token helpers
//   - parser_stmt.go: Statement parsing (WITH, SELECT core, ORDER BY, LIMIT)
//   - parser_from.go: FROM clause parsing (table refs, JOINs)
//   - parser_expr.go: Expression precedence parsing (OR, AND, comparisons)
//   - parser_primary.go: Primary expressions (literals, columns, functions)
//
// # Grammar Overview
//
//	statement   → [WITH cte_list] select_core [";"]
//	select_core → SELECT [DISTINCT] select_list FROM table_ref join*
//	              [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	              [ORDER BY order_list] [LIMIT number [OFFSET number]]
//
// The grammar only admits read-only SELECT statements over a single FROM
// table plus inner joins. Outer and cross joins still parse so the
// validator can reject them by name; set operations and DML do not parse
// at all.
//
// Interpretations that would be ambiguous in a generative grammar are
// pinned here: an implicit alias candidate that is an unquoted reserved
// keyword is never consumed as an alias, an equality against a placeholder
// always parses as a parameterized comparison, and arithmetic is grouped
// by precedence climbing.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
	"github.com/leapstack-labs/bifrost/pkg/token"
)

// Parser parses the restricted SELECT grammar into an AST.
type Parser struct {
	lexer  *Lexer
	token  token.Token // current token
	peek   token.Token // lookahead token
	peek2  token.Token // second lookahead token
	errors []error

	dialect *dialect.Dialect
}

// NewParser creates a new parser for the given SQL input and dialect.
func NewParser(sql string, d *dialect.Dialect) *Parser {
	p := &Parser{
		lexer:   NewLexer(sql, d),
		dialect: d,
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the SQL with the given dialect and returns the AST.
func Parse(sql string, d *dialect.Dialect) (*SelectStmt, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	p := NewParser(sql, d)
	stmt := p.parseStatement()
	// Tolerate a single trailing semicolon
	if p.check(token.ILLEGAL) && p.token.Literal == ";" {
		p.nextToken()
	}
	if p.errors == nil && !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, p.token.Type))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// Dialect returns the parser's dialect.
func (p *Parser) Dialect() *dialect.Dialect {
	return p.dialect
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// checkPeek2 returns true if the peek2 token is of the given type.
func (p *Parser) checkPeek2(t token.TokenType) bool {
	return p.peek2.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, t))
	return false
}

// addError adds a parse error.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// addTrustError records a typed trust error, such as a reserved-keyword
// alias. Trust errors are surfaced ahead of plain syntax errors.
func (p *Parser) addTrustError(err error) {
	p.errors = append([]error{err}, p.errors...)
}

// ---------- Alias Helpers ----------

// parseOptionalAlias parses [AS] alias after a table or select item.
// An explicit AS alias that is an unquoted reserved keyword raises
// ReservedKeyword. An implicit candidate that is an unquoted reserved
// keyword is not consumed: the keyword belongs to the surrounding clause.
func (p *Parser) parseOptionalAlias() (alias string, quoted, ok bool) {
	if p.match(token.AS) {
		if !p.check(token.IDENT) {
			p.addError("expected alias after AS")
			return "", false, false
		}
		alias, quoted = p.token.Literal, p.token.Quoted
		if !quoted && p.dialect.IsReservedWord(alias) {
			p.addTrustError(&safesql.ReservedKeyword{Keyword: alias})
			return "", false, false
		}
		p.nextToken()
		return alias, quoted, true
	}

	if p.check(token.IDENT) {
		alias, quoted = p.token.Literal, p.token.Quoted
		if !quoted && p.dialect.IsReservedWord(alias) {
			return "", false, false
		}
		p.nextToken()
		return alias, quoted, true
	}

	return "", false, false
}
