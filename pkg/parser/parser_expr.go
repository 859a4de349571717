package parser

import (
	"github.com/leapstack-labs/bifrost/pkg/token"
)

// Expression precedence parsing: OR, AND, NOT, comparisons, arithmetic.
//
// Precedence (lowest to highest):
//
//  1. OR
//  2. AND
//  3. NOT
//  4. Comparisons: =, !=, <, >, <=, >=, IS [NOT] NULL, IN, BETWEEN, LIKE
//  5. Addition: +, -, ||
//  6. Multiplication: *, /, %
//  7. Unary: -, +
//  8. Primary: literals, columns, placeholders, functions, parens
//
// An equality with a placeholder on exactly one side always builds a
// ParamComparison, the interpretation the constraint checks can count.

// parseExpression parses an expression.
func (p *Parser) parseExpression() Expr {
	return p.parseOrExpr()
}

// parseOrExpr parses OR expressions.
func (p *Parser) parseOrExpr() Expr {
	left := p.parseAndExpr()

	for p.match(token.OR) {
		right := p.parseAndExpr()
		left = &BinaryExpr{Left: left, Op: token.OR, Right: right}
	}

	return left
}

// parseAndExpr parses AND expressions.
func (p *Parser) parseAndExpr() Expr {
	left := p.parseNotExpr()

	for p.match(token.AND) {
		right := p.parseNotExpr()
		left = &BinaryExpr{Left: left, Op: token.AND, Right: right}
	}

	return left
}

// parseNotExpr parses NOT expressions.
func (p *Parser) parseNotExpr() Expr {
	if p.check(token.NOT) && !p.checkPeek(token.EXISTS) {
		p.nextToken()
		expr := p.parseNotExpr()
		return &UnaryExpr{Op: token.NOT, Expr: expr}
	}
	return p.parseComparison()
}

// parseComparison parses comparison expressions.
func (p *Parser) parseComparison() Expr {
	left := p.parseAddition()

	var not bool
	if p.check(token.NOT) && !p.checkPeek(token.EXISTS) {
		p.nextToken()
		not = true
	}

	switch {
	case p.match(token.IN):
		return p.parseInExpr(left, not)

	case p.match(token.BETWEEN):
		between := &BetweenExpr{Expr: left, Not: not}
		between.Low = p.parseAddition()
		p.expect(token.AND)
		between.High = p.parseAddition()
		return between

	case p.match(token.LIKE):
		like := &LikeExpr{Expr: left, Not: not}
		like.Pattern = p.parseAddition()
		return like
	}

	if not {
		p.addError("expected IN, BETWEEN, or LIKE after NOT")
		return left
	}

	// IS [NOT] NULL
	if p.match(token.IS) {
		isNot := p.match(token.NOT)
		if p.match(token.NULL) {
			return &IsNullExpr{Expr: left, Not: isNot}
		}
		p.addError("expected NULL after IS")
		return left
	}

	switch p.token.Type {
	case token.EQ:
		p.nextToken()
		right := p.parseAddition()
		if pc := paramComparison(left, right); pc != nil {
			return pc
		}
		return &BinaryExpr{Left: left, Op: token.EQ, Right: right}
	case token.NE, token.LT, token.GT, token.LE, token.GE:
		op := p.token.Type
		p.nextToken()
		return &BinaryExpr{Left: left, Op: op, Right: p.parseAddition()}
	}

	return left
}

// paramComparison builds a ParamComparison when exactly one side of an
// equality is a placeholder and the other is a column reference.
func paramComparison(left, right Expr) *ParamComparison {
	if col, ok := left.(*ColumnRef); ok {
		if ph, ok := right.(*Placeholder); ok {
			return &ParamComparison{Column: col, Placeholder: ph}
		}
	}
	if ph, ok := left.(*Placeholder); ok {
		if col, ok := right.(*ColumnRef); ok {
			return &ParamComparison{Column: col, Placeholder: ph, Reversed: true}
		}
	}
	return nil
}

// parseInExpr parses an IN expression.
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	p.expect(token.LPAREN)
	in := &InExpr{Expr: left, Not: not}

	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseStatement()
	} else {
		in.Values = p.parseExpressionList()
	}

	p.expect(token.RPAREN)
	return in
}

// parseAddition parses addition/subtraction/concatenation expressions.
func (p *Parser) parseAddition() Expr {
	left := p.parseMultiplication()

	for {
		switch p.token.Type {
		case token.PLUS, token.MINUS, token.DPIPE:
			op := p.token.Type
			p.nextToken()
			left = &BinaryExpr{Left: left, Op: op, Right: p.parseMultiplication()}
		default:
			return left
		}
	}
}

// parseMultiplication parses multiplication/division/modulo expressions.
func (p *Parser) parseMultiplication() Expr {
	left := p.parsePostfix(p.parseUnary())

	for {
		switch p.token.Type {
		case token.STAR, token.SLASH, token.MOD:
			op := p.token.Type
			p.nextToken()
			left = &BinaryExpr{Left: left, Op: op, Right: p.parsePostfix(p.parseUnary())}
		default:
			return left
		}
	}
}

// parsePostfix handles dialect postfix operators, currently the postgres
// "::" cast.
func (p *Parser) parsePostfix(expr Expr) Expr {
	for token.IsDynamic(p.token.Type) && p.token.Literal == "::" {
		p.nextToken()
		if !p.check(token.IDENT) {
			p.addError("expected type name after ::")
			return expr
		}
		expr = &CastExpr{Expr: expr, TypeName: p.token.Literal, Postfix: true}
		p.nextToken()
	}
	return expr
}

// parseUnary parses unary expressions.
func (p *Parser) parseUnary() Expr {
	switch p.token.Type {
	case token.MINUS:
		p.nextToken()
		return &UnaryExpr{Op: token.MINUS, Expr: p.parseUnary()}
	case token.PLUS:
		p.nextToken()
		return &UnaryExpr{Op: token.PLUS, Expr: p.parseUnary()}
	}
	return p.parsePrimary()
}
