package rewrite

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
	"github.com/leapstack-labs/bifrost/pkg/token"
)

// Serialize renders a statement back to SQL text. The output parses back
// to an equivalent tree, which the repair path relies on: a repaired
// statement is re-parsed before validation so every recorded position is
// consistent with the final text.
func Serialize(stmt *parser.SelectStmt, d *dialect.Dialect) string {
	p := &printer{dialect: d}
	p.formatStmt(stmt)
	return p.sb.String()
}

// printer emits compact single-line SQL.
type printer struct {
	sb      strings.Builder
	dialect *dialect.Dialect
}

func (p *printer) write(s string) {
	p.sb.WriteString(s)
}

func (p *printer) space() {
	p.sb.WriteByte(' ')
}

func (p *printer) ident(name string, quoted bool) {
	if quoted {
		p.write(p.dialect.QuoteIdentifier(name))
	} else {
		p.write(name)
	}
}

func (p *printer) formatStmt(stmt *parser.SelectStmt) {
	if stmt == nil {
		return
	}
	if stmt.With != nil {
		p.write("WITH ")
		if stmt.With.Recursive {
			p.write("RECURSIVE ")
		}
		for i, cte := range stmt.With.CTEs {
			if i > 0 {
				p.write(", ")
			}
			p.ident(cte.Name, cte.Quoted)
			p.write(" AS (")
			p.formatStmt(cte.Select)
			p.write(")")
		}
		p.space()
	}
	p.formatCore(stmt.Select)
}

func (p *printer) formatCore(sc *parser.SelectCore) {
	if sc == nil {
		return
	}
	p.write("SELECT ")
	if sc.Distinct {
		p.write("DISTINCT ")
	}
	for i, item := range sc.Columns {
		if i > 0 {
			p.write(", ")
		}
		p.formatExpr(item.Expr)
		if item.Alias != "" {
			p.write(" AS ")
			p.ident(item.Alias, item.AliasQuoted)
		}
	}

	if sc.From != nil {
		p.write(" FROM ")
		p.formatTableRef(sc.From.Source)
		for _, join := range sc.From.Joins {
			p.formatJoin(join)
		}
	}

	if sc.Where != nil {
		p.write(" WHERE ")
		p.formatExpr(sc.Where)
	}

	if len(sc.GroupBy) > 0 {
		p.write(" GROUP BY ")
		for i, g := range sc.GroupBy {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(g)
		}
	}

	if sc.Having != nil {
		p.write(" HAVING ")
		p.formatExpr(sc.Having)
	}

	if len(sc.OrderBy) > 0 {
		p.write(" ORDER BY ")
		for i, item := range sc.OrderBy {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(item.Expr)
			if item.Desc {
				p.write(" DESC")
			}
		}
	}

	if sc.Limit != nil {
		p.write(" LIMIT ")
		p.write(strconv.Itoa(sc.Limit.Count))
		if sc.Limit.Offset != nil {
			p.write(" OFFSET ")
			p.write(strconv.Itoa(*sc.Limit.Offset))
		}
	}
}

func (p *printer) formatTableRef(ref parser.TableRef) {
	switch t := ref.(type) {
	case *parser.TableName:
		p.ident(t.Name, t.Quoted)
		if t.Alias != "" {
			p.write(" AS ")
			p.ident(t.Alias, t.AliasQuoted)
		}
	case *parser.DerivedTable:
		p.write("(")
		p.formatStmt(t.Select)
		p.write(") AS ")
		p.ident(t.Alias, t.AliasQuoted)
	}
}

func (p *printer) formatJoin(join *parser.Join) {
	p.space()
	switch join.Type {
	case parser.JoinInner:
		p.write("JOIN ")
	case parser.JoinCross:
		p.write("CROSS JOIN ")
	default:
		p.write(string(join.Type))
		if join.Outer {
			p.write(" OUTER")
		}
		p.write(" JOIN ")
	}
	p.formatTableRef(join.Right)
	if join.On != nil {
		p.write(" ON ")
		p.formatExpr(join.On)
	}
}

func (p *printer) formatExpr(expr parser.Expr) {
	switch e := expr.(type) {
	case nil:
		return

	case *parser.ColumnRef:
		if e.IsQualified() {
			p.ident(e.Table, e.TableQuoted)
			p.write(".")
		}
		p.ident(e.Column, e.ColumnQuoted)

	case *parser.Placeholder:
		p.write(":")
		p.write(e.Name)

	case *parser.ParamComparison:
		if e.Reversed {
			p.formatExpr(e.Placeholder)
			p.write(" = ")
			p.formatExpr(e.Column)
		} else {
			p.formatExpr(e.Column)
			p.write(" = ")
			p.formatExpr(e.Placeholder)
		}

	case *parser.Literal:
		switch e.Type {
		case parser.LiteralString:
			p.write("'")
			p.write(strings.ReplaceAll(e.Value, "'", "''"))
			p.write("'")
		case parser.LiteralBool:
			p.write(strings.ToUpper(e.Value))
		case parser.LiteralNull:
			p.write("NULL")
		default:
			p.write(e.Value)
		}

	case *parser.BinaryExpr:
		p.formatExpr(e.Left)
		p.space()
		p.write(e.Op.String())
		p.space()
		p.formatExpr(e.Right)

	case *parser.UnaryExpr:
		if e.Op == token.NOT {
			p.write("NOT ")
		} else {
			p.write(e.Op.String())
		}
		p.formatExpr(e.Expr)

	case *parser.FuncCall:
		p.write(e.Name)
		p.write("(")
		if e.Star {
			p.write("*")
		} else {
			if e.Distinct {
				p.write("DISTINCT ")
			}
			for i, arg := range e.Args {
				if i > 0 {
					p.write(", ")
				}
				p.formatExpr(arg)
			}
		}
		p.write(")")

	case *parser.CaseExpr:
		p.write("CASE")
		if e.Operand != nil {
			p.space()
			p.formatExpr(e.Operand)
		}
		for _, w := range e.Whens {
			p.write(" WHEN ")
			p.formatExpr(w.Condition)
			p.write(" THEN ")
			p.formatExpr(w.Result)
		}
		if e.Else != nil {
			p.write(" ELSE ")
			p.formatExpr(e.Else)
		}
		p.write(" END")

	case *parser.CastExpr:
		if e.Postfix {
			p.formatExpr(e.Expr)
			p.write("::")
			p.write(e.TypeName)
		} else {
			p.write("CAST(")
			p.formatExpr(e.Expr)
			p.write(" AS ")
			p.write(e.TypeName)
			p.write(")")
		}

	case *parser.InExpr:
		p.formatExpr(e.Expr)
		if e.Not {
			p.write(" NOT")
		}
		p.write(" IN (")
		if e.Query != nil {
			p.formatStmt(e.Query)
		} else {
			for i, v := range e.Values {
				if i > 0 {
					p.write(", ")
				}
				p.formatExpr(v)
			}
		}
		p.write(")")

	case *parser.BetweenExpr:
		p.formatExpr(e.Expr)
		if e.Not {
			p.write(" NOT")
		}
		p.write(" BETWEEN ")
		p.formatExpr(e.Low)
		p.write(" AND ")
		p.formatExpr(e.High)

	case *parser.IsNullExpr:
		p.formatExpr(e.Expr)
		if e.Not {
			p.write(" IS NOT NULL")
		} else {
			p.write(" IS NULL")
		}

	case *parser.LikeExpr:
		p.formatExpr(e.Expr)
		if e.Not {
			p.write(" NOT")
		}
		p.write(" LIKE ")
		p.formatExpr(e.Pattern)

	case *parser.ParenExpr:
		p.write("(")
		p.formatExpr(e.Expr)
		p.write(")")

	case *parser.StarExpr:
		if e.Table != "" {
			p.write(e.Table)
			p.write(".")
		}
		p.write("*")

	case *parser.SubqueryExpr:
		p.write("(")
		p.formatStmt(e.Select)
		p.write(")")

	case *parser.ExistsExpr:
		if e.Not {
			p.write("NOT ")
		}
		p.write("EXISTS (")
		p.formatStmt(e.Select)
		p.write(")")
	}
}
