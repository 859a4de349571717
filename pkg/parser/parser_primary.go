package parser

import (
	"fmt"

	"github.com/leapstack-labs/bifrost/pkg/token"
)

// Primary expression parsing: literals, column refs, placeholders,
// function calls, CASE, CAST, EXISTS, scalar subqueries.
//
// Grammar:
//
//	primary    → literal | placeholder | column_ref | func_call |
//	             paren_expr | case_expr | cast_expr | exists_expr | subquery
//	literal    → NUMBER | STRING | TRUE | FALSE | NULL
//	column_ref → [table "."] column
//	func_call  → identifier "(" [DISTINCT] (expr_list | "*") ")"

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case token.NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case token.STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case token.TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "true"}

	case token.FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "false"}

	case token.NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "null"}

	case token.PLACEHOLDER:
		ph := &Placeholder{Name: p.token.Literal}
		ph.Span = token.Span{
			Start: p.token.Pos,
			End:   token.Position{Offset: p.token.End()},
		}
		p.nextToken()
		return ph

	case token.CASE:
		return p.parseCaseExpr()

	case token.CAST:
		return p.parseCastExpr()

	case token.NOT:
		if p.checkPeek(token.EXISTS) {
			p.nextToken() // consume NOT
			return p.parseExistsExpr(true)
		}
		p.nextToken()
		return &UnaryExpr{Op: token.NOT, Expr: p.parsePrimary()}

	case token.EXISTS:
		return p.parseExistsExpr(false)

	case token.IDENT:
		return p.parseIdentifierExpr()

	case token.LPAREN:
		return p.parseParenExpr()

	default:
		p.addError(fmt.Sprintf("unexpected token in expression: %s", p.token.Type))
		p.nextToken()
		return nil
	}
}

// parseIdentifierExpr parses an identifier, which could be a column ref or
// a function call.
func (p *Parser) parseIdentifierExpr() Expr {
	name := p.token.Literal
	quoted := p.token.Quoted
	p.nextToken()

	// Function call
	if p.check(token.LPAREN) && !quoted {
		return p.parseFuncCall(name)
	}

	// Qualified column reference: table.column
	if p.match(token.DOT) {
		if !p.check(token.IDENT) {
			p.addError("expected column name after '.'")
			return &ColumnRef{Table: name, TableQuoted: quoted}
		}
		ref := &ColumnRef{
			Table:        name,
			TableQuoted:  quoted,
			Column:       p.token.Literal,
			ColumnQuoted: p.token.Quoted,
		}
		p.nextToken()
		return ref
	}

	// Bare column name: an alias reference to be resolved against the scope
	return &ColumnRef{Column: name, ColumnQuoted: quoted}
}

// parseFuncCall parses a function call.
func (p *Parser) parseFuncCall(name string) Expr {
	fn := &FuncCall{Name: name}

	p.expect(token.LPAREN)

	if p.check(token.STAR) {
		fn.Star = true
		p.nextToken()
	} else if !p.check(token.RPAREN) {
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		}

		for {
			arg := p.parseExpression()
			fn.Args = append(fn.Args, arg)

			if !p.match(token.COMMA) {
				break
			}
		}
	}

	p.expect(token.RPAREN)
	return fn
}

// parseParenExpr parses a parenthesized expression or scalar subquery.
func (p *Parser) parseParenExpr() Expr {
	p.expect(token.LPAREN)

	if p.check(token.SELECT) || p.check(token.WITH) {
		sub := &SubqueryExpr{Select: p.parseStatement()}
		p.expect(token.RPAREN)
		return sub
	}

	expr := p.parseExpression()
	p.expect(token.RPAREN)
	return &ParenExpr{Expr: expr}
}

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(token.CASE)
	caseExpr := &CaseExpr{}

	// Optional operand (simple CASE)
	if !p.check(token.WHEN) {
		caseExpr.Operand = p.parseExpression()
	}

	for p.match(token.WHEN) {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		p.expect(token.THEN)
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}

	if p.match(token.ELSE) {
		caseExpr.Else = p.parseExpression()
	}

	p.expect(token.END)
	return caseExpr
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() Expr {
	p.expect(token.CAST)
	p.expect(token.LPAREN)

	cast := &CastExpr{}
	cast.Expr = p.parseExpression()

	p.expect(token.AS)
	if p.check(token.IDENT) {
		cast.TypeName = p.token.Literal
		p.nextToken()
	} else {
		p.addError("expected type name in CAST")
	}

	p.expect(token.RPAREN)
	return cast
}

// parseExistsExpr parses an EXISTS expression.
func (p *Parser) parseExistsExpr(not bool) Expr {
	p.expect(token.EXISTS)
	p.expect(token.LPAREN)
	exists := &ExistsExpr{Not: not}
	exists.Select = p.parseStatement()
	p.expect(token.RPAREN)
	return exists
}
