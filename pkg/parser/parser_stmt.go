package parser

import (
	"strconv"

	"github.com/leapstack-labs/bifrost/pkg/token"
)

// Statement parsing: WITH clause, CTEs, SELECT core, ORDER BY, LIMIT.
//
// Grammar:
//
//	statement   → [WITH [RECURSIVE] cte_list] select_core
//	cte_list    → cte ("," cte)*
//	cte         → identifier AS "(" statement ")"
//	select_core → SELECT [DISTINCT] select_list FROM from_clause
//	              [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	              [ORDER BY order_list] [LIMIT number [OFFSET number]]
//	select_list → select_item ("," select_item)*
//	select_item → "*" | table "." "*" | expr [[AS] identifier]
//	order_list  → order_item ("," order_item)*
//	order_item  → expr [ASC|DESC]

// parseStatement parses a complete statement.
func (p *Parser) parseStatement() *SelectStmt {
	stmt := &SelectStmt{}
	start := p.token.Pos

	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
	}

	stmt.Select = p.parseSelectCore()

	stmt.Span = token.Span{Start: start, End: p.token.Pos}
	return stmt
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *WithClause {
	p.expect(token.WITH)
	with := &WithClause{}

	if p.match(token.RECURSIVE) {
		with.Recursive = true
	}

	for {
		cte := p.parseCTE()
		with.CTEs = append(with.CTEs, cte)

		if !p.match(token.COMMA) {
			break
		}
	}

	return with
}

// parseCTE parses a single CTE.
func (p *Parser) parseCTE() *CTE {
	cte := &CTE{}

	if !p.check(token.IDENT) {
		p.addError("expected CTE name")
		return cte
	}
	cte.Name = p.token.Literal
	cte.Quoted = p.token.Quoted
	p.nextToken()

	p.expect(token.AS)

	p.expect(token.LPAREN)
	cte.Select = p.parseStatement()
	p.expect(token.RPAREN)

	return cte
}

// parseSelectCore parses a single SELECT query scope.
func (p *Parser) parseSelectCore() *SelectCore {
	start := p.token.Pos
	p.expect(token.SELECT)
	sc := &SelectCore{}

	if p.match(token.DISTINCT) {
		sc.Distinct = true
	}

	sc.Columns = p.parseSelectList()

	// Exactly one source table; joins hang off it
	if p.expect(token.FROM) {
		sc.From = p.parseFromClause()
	}

	if p.match(token.WHERE) {
		sc.Where = p.parseExpression()
	}

	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		sc.GroupBy = p.parseExpressionList()
	}

	if p.match(token.HAVING) {
		sc.Having = p.parseExpression()
	}

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		sc.OrderBy = p.parseOrderByList()
	}

	if p.check(token.LIMIT) {
		sc.Limit = p.parseLimitClause()
	}

	sc.Span = token.Span{Start: start, End: p.token.Pos}
	return sc
}

// parseSelectList parses the list of SELECT items.
func (p *Parser) parseSelectList() []*SelectItem {
	var items []*SelectItem

	for {
		item := p.parseSelectItem()
		items = append(items, item)

		if !p.match(token.COMMA) {
			break
		}
	}

	return items
}

// parseSelectItem parses a single SELECT item.
func (p *Parser) parseSelectItem() *SelectItem {
	item := &SelectItem{}
	start := p.token.Pos

	// Bare *
	if p.check(token.STAR) {
		p.nextToken()
		item.Expr = &StarExpr{}
		item.Span = token.Span{Start: start, End: p.token.Pos}
		return item
	}

	// table.* via 3-token lookahead
	if p.check(token.IDENT) && p.checkPeek(token.DOT) && p.checkPeek2(token.STAR) {
		tableName := p.token.Literal
		p.nextToken() // identifier
		p.nextToken() // DOT
		p.nextToken() // STAR
		item.Expr = &StarExpr{Table: tableName}
		item.Span = token.Span{Start: start, End: p.token.Pos}
		return item
	}

	item.Expr = p.parseExpression()

	if alias, quoted, ok := p.parseOptionalAlias(); ok {
		item.Alias = alias
		item.AliasQuoted = quoted
	}

	item.Span = token.Span{Start: start, End: p.token.Pos}
	return item
}

// parseOrderByList parses a list of ORDER BY items.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem

	for {
		item := OrderByItem{}
		item.Expr = p.parseExpression()

		if p.match(token.ASC) {
			item.Desc = false
		} else if p.match(token.DESC) {
			item.Desc = true
		}

		items = append(items, item)

		if !p.match(token.COMMA) {
			break
		}
	}

	return items
}

// parseLimitClause parses LIMIT n [OFFSET m]. Counts must be integer
// literals so the validator can compare them against the policy.
func (p *Parser) parseLimitClause() *LimitClause {
	start := p.token.Pos
	p.expect(token.LIMIT)

	lc := &LimitClause{}
	lc.Count = p.parseLimitNumber()

	if p.match(token.OFFSET) {
		n := p.parseLimitNumber()
		lc.Offset = &n
	}

	lc.Span = token.Span{Start: start, End: p.token.Pos}
	return lc
}

// parseLimitNumber parses a non-negative integer literal.
func (p *Parser) parseLimitNumber() int {
	if !p.check(token.NUMBER) {
		p.addError("expected integer limit")
		return 0
	}
	n, err := strconv.Atoi(p.token.Literal)
	if err != nil {
		p.addError("expected integer limit")
		n = 0
	}
	p.nextToken()
	return n
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr

	for {
		expr := p.parseExpression()
		exprs = append(exprs, expr)

		if !p.match(token.COMMA) {
			break
		}
	}

	return exprs
}
