package parser

import (
	"github.com/leapstack-labs/bifrost/pkg/token"
)

// FROM clause parsing: table references, derived tables, JOINs.
//
// Grammar:
//
//	from_clause   → table_ref join*
//	table_ref     → table_name [[AS] identifier] | derived_table
//	derived_table → "(" statement ")" [AS] identifier
//	join          → join_type JOIN table_ref [ON expr]
//	join_type     → [INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS
//
// Outer and cross joins parse on purpose: the facet collector names them in
// an IllegalJoinType rejection instead of a generic syntax error.

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{}
	from.Source = p.parseTableRef()

	for {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	return from
}

// parseTableRef parses a table reference.
func (p *Parser) parseTableRef() TableRef {
	if p.check(token.LPAREN) {
		return p.parseDerivedTable()
	}
	return p.parseTableName()
}

// parseTableName parses a table name with optional alias.
func (p *Parser) parseTableName() *TableName {
	table := &TableName{}
	start := p.token.Pos

	if !p.check(token.IDENT) {
		p.addError("expected table name")
		return table
	}

	table.Name = p.token.Literal
	table.Quoted = p.token.Quoted
	p.nextToken()

	if alias, quoted, ok := p.parseOptionalAlias(); ok {
		table.Alias = alias
		table.AliasQuoted = quoted
	}

	table.Span = token.Span{Start: start, End: p.token.Pos}
	return table
}

// parseDerivedTable parses a derived table (subquery in FROM).
func (p *Parser) parseDerivedTable() *DerivedTable {
	start := p.token.Pos
	p.expect(token.LPAREN)
	derived := &DerivedTable{}
	derived.Select = p.parseStatement()
	p.expect(token.RPAREN)

	// Alias is required for derived tables
	if alias, quoted, ok := p.parseOptionalAlias(); ok {
		derived.Alias = alias
		derived.AliasQuoted = quoted
	} else {
		p.addError("derived table requires an alias")
	}

	derived.Span = token.Span{Start: start, End: p.token.Pos}
	return derived
}

// parseJoin parses a JOIN clause. Returns nil when the current token does
// not start a join.
func (p *Parser) parseJoin() *Join {
	join := &Join{}
	start := p.token.Pos

	switch p.token.Type {
	case token.JOIN:
		join.Type = JoinInner
		p.nextToken()
	case token.INNER:
		join.Type = JoinInner
		p.nextToken()
		if !p.expect(token.JOIN) {
			return nil
		}
	case token.LEFT, token.RIGHT, token.FULL:
		switch p.token.Type {
		case token.LEFT:
			join.Type = JoinLeft
		case token.RIGHT:
			join.Type = JoinRight
		case token.FULL:
			join.Type = JoinFull
		}
		p.nextToken()
		join.Outer = p.match(token.OUTER)
		if !p.expect(token.JOIN) {
			return nil
		}
	case token.CROSS:
		join.Type = JoinCross
		p.nextToken()
		if !p.expect(token.JOIN) {
			return nil
		}
	default:
		return nil
	}

	join.Right = p.parseTableRef()

	if p.match(token.ON) {
		join.On = p.parseExpression()
	}

	join.Span = token.Span{Start: start, End: p.token.Pos}
	return join
}
