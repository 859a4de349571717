package parser

// Deep copies of the AST. The reconstructor transforms a clone so the tree
// handed to it stays valid for the caller.

// Clone returns a deep copy of the statement.
func (s *SelectStmt) Clone() *SelectStmt {
	if s == nil {
		return nil
	}
	out := &SelectStmt{NodeInfo: s.NodeInfo}
	if s.With != nil {
		w := &WithClause{NodeInfo: s.With.NodeInfo, Recursive: s.With.Recursive}
		for _, cte := range s.With.CTEs {
			w.CTEs = append(w.CTEs, &CTE{
				NodeInfo: cte.NodeInfo,
				Name:     cte.Name,
				Quoted:   cte.Quoted,
				Select:   cte.Select.Clone(),
			})
		}
		out.With = w
	}
	out.Select = s.Select.clone()
	return out
}

func (sc *SelectCore) clone() *SelectCore {
	if sc == nil {
		return nil
	}
	out := &SelectCore{
		NodeInfo: sc.NodeInfo,
		Distinct: sc.Distinct,
	}
	for _, item := range sc.Columns {
		out.Columns = append(out.Columns, &SelectItem{
			NodeInfo:    item.NodeInfo,
			Expr:        cloneExpr(item.Expr),
			Alias:       item.Alias,
			AliasQuoted: item.AliasQuoted,
		})
	}
	if sc.From != nil {
		from := &FromClause{NodeInfo: sc.From.NodeInfo, Source: cloneTableRef(sc.From.Source)}
		for _, j := range sc.From.Joins {
			from.Joins = append(from.Joins, &Join{
				NodeInfo: j.NodeInfo,
				Type:     j.Type,
				Outer:    j.Outer,
				Right:    cloneTableRef(j.Right),
				On:       cloneExpr(j.On),
			})
		}
		out.From = from
	}
	out.Where = cloneExpr(sc.Where)
	for _, g := range sc.GroupBy {
		out.GroupBy = append(out.GroupBy, cloneExpr(g))
	}
	out.Having = cloneExpr(sc.Having)
	for _, o := range sc.OrderBy {
		out.OrderBy = append(out.OrderBy, OrderByItem{Expr: cloneExpr(o.Expr), Desc: o.Desc})
	}
	if sc.Limit != nil {
		lc := &LimitClause{NodeInfo: sc.Limit.NodeInfo, Count: sc.Limit.Count}
		if sc.Limit.Offset != nil {
			off := *sc.Limit.Offset
			lc.Offset = &off
		}
		out.Limit = lc
	}
	return out
}

func cloneTableRef(ref TableRef) TableRef {
	switch t := ref.(type) {
	case *TableName:
		cp := *t
		return &cp
	case *DerivedTable:
		return &DerivedTable{
			NodeInfo:    t.NodeInfo,
			Select:      t.Select.Clone(),
			Alias:       t.Alias,
			AliasQuoted: t.AliasQuoted,
		}
	}
	return nil
}

func cloneExpr(e Expr) Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *ColumnRef:
		cp := *x
		return &cp
	case *Placeholder:
		cp := *x
		return &cp
	case *ParamComparison:
		return &ParamComparison{
			NodeInfo:    x.NodeInfo,
			Column:      cloneExpr(x.Column).(*ColumnRef),
			Placeholder: cloneExpr(x.Placeholder).(*Placeholder),
			Reversed:    x.Reversed,
		}
	case *Literal:
		cp := *x
		return &cp
	case *BinaryExpr:
		return &BinaryExpr{Left: cloneExpr(x.Left), Op: x.Op, Right: cloneExpr(x.Right)}
	case *UnaryExpr:
		return &UnaryExpr{Op: x.Op, Expr: cloneExpr(x.Expr)}
	case *FuncCall:
		fn := &FuncCall{Name: x.Name, Distinct: x.Distinct, Star: x.Star}
		for _, arg := range x.Args {
			fn.Args = append(fn.Args, cloneExpr(arg))
		}
		return fn
	case *CaseExpr:
		c := &CaseExpr{Operand: cloneExpr(x.Operand), Else: cloneExpr(x.Else)}
		for _, w := range x.Whens {
			c.Whens = append(c.Whens, WhenClause{
				Condition: cloneExpr(w.Condition),
				Result:    cloneExpr(w.Result),
			})
		}
		return c
	case *CastExpr:
		return &CastExpr{Expr: cloneExpr(x.Expr), TypeName: x.TypeName, Postfix: x.Postfix}
	case *InExpr:
		in := &InExpr{Expr: cloneExpr(x.Expr), Not: x.Not, Query: x.Query.Clone()}
		for _, v := range x.Values {
			in.Values = append(in.Values, cloneExpr(v))
		}
		return in
	case *BetweenExpr:
		return &BetweenExpr{
			Expr: cloneExpr(x.Expr),
			Not:  x.Not,
			Low:  cloneExpr(x.Low),
			High: cloneExpr(x.High),
		}
	case *IsNullExpr:
		return &IsNullExpr{Expr: cloneExpr(x.Expr), Not: x.Not}
	case *LikeExpr:
		return &LikeExpr{Expr: cloneExpr(x.Expr), Not: x.Not, Pattern: cloneExpr(x.Pattern)}
	case *ParenExpr:
		return &ParenExpr{Expr: cloneExpr(x.Expr)}
	case *StarExpr:
		cp := *x
		return &cp
	case *SubqueryExpr:
		return &SubqueryExpr{Select: x.Select.Clone()}
	case *ExistsExpr:
		return &ExistsExpr{Not: x.Not, Select: x.Select.Clone()}
	}
	return e
}
