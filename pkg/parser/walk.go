package parser

// Expression walkers shared by the analysis and rewrite passes. Apart from
// WalkPlaceholders, none of them descend into subqueries: a subquery is its
// own scope and is walked when that scope is processed.

// WalkColumnRefs calls fn for every column reference in the expression.
func WalkColumnRefs(expr Expr, fn func(*ColumnRef)) {
	switch e := expr.(type) {
	case nil:
		return
	case *ColumnRef:
		fn(e)
	case *ParamComparison:
		fn(e.Column)
	case *BinaryExpr:
		WalkColumnRefs(e.Left, fn)
		WalkColumnRefs(e.Right, fn)
	case *UnaryExpr:
		WalkColumnRefs(e.Expr, fn)
	case *FuncCall:
		for _, arg := range e.Args {
			WalkColumnRefs(arg, fn)
		}
	case *CaseExpr:
		WalkColumnRefs(e.Operand, fn)
		for _, w := range e.Whens {
			WalkColumnRefs(w.Condition, fn)
			WalkColumnRefs(w.Result, fn)
		}
		WalkColumnRefs(e.Else, fn)
	case *CastExpr:
		WalkColumnRefs(e.Expr, fn)
	case *InExpr:
		WalkColumnRefs(e.Expr, fn)
		for _, v := range e.Values {
			WalkColumnRefs(v, fn)
		}
	case *BetweenExpr:
		WalkColumnRefs(e.Expr, fn)
		WalkColumnRefs(e.Low, fn)
		WalkColumnRefs(e.High, fn)
	case *IsNullExpr:
		WalkColumnRefs(e.Expr, fn)
	case *LikeExpr:
		WalkColumnRefs(e.Expr, fn)
		WalkColumnRefs(e.Pattern, fn)
	case *ParenExpr:
		WalkColumnRefs(e.Expr, fn)
	}
}

// WalkSubqueries calls fn for every directly nested subquery statement in
// the expression, without recursing into the subqueries themselves.
func WalkSubqueries(expr Expr, fn func(*SelectStmt)) {
	switch e := expr.(type) {
	case nil:
		return
	case *SubqueryExpr:
		fn(e.Select)
	case *ExistsExpr:
		fn(e.Select)
	case *InExpr:
		WalkSubqueries(e.Expr, fn)
		for _, v := range e.Values {
			WalkSubqueries(v, fn)
		}
		if e.Query != nil {
			fn(e.Query)
		}
	case *BinaryExpr:
		WalkSubqueries(e.Left, fn)
		WalkSubqueries(e.Right, fn)
	case *UnaryExpr:
		WalkSubqueries(e.Expr, fn)
	case *FuncCall:
		for _, arg := range e.Args {
			WalkSubqueries(arg, fn)
		}
	case *CaseExpr:
		WalkSubqueries(e.Operand, fn)
		for _, w := range e.Whens {
			WalkSubqueries(w.Condition, fn)
			WalkSubqueries(w.Result, fn)
		}
		WalkSubqueries(e.Else, fn)
	case *CastExpr:
		WalkSubqueries(e.Expr, fn)
	case *BetweenExpr:
		WalkSubqueries(e.Expr, fn)
		WalkSubqueries(e.Low, fn)
		WalkSubqueries(e.High, fn)
	case *IsNullExpr:
		WalkSubqueries(e.Expr, fn)
	case *LikeExpr:
		WalkSubqueries(e.Expr, fn)
		WalkSubqueries(e.Pattern, fn)
	case *ParenExpr:
		WalkSubqueries(e.Expr, fn)
	}
}

// WalkFunctions calls fn for every function call in the expression.
func WalkFunctions(expr Expr, fn func(*FuncCall)) {
	switch e := expr.(type) {
	case nil:
		return
	case *FuncCall:
		fn(e)
		for _, arg := range e.Args {
			WalkFunctions(arg, fn)
		}
	case *BinaryExpr:
		WalkFunctions(e.Left, fn)
		WalkFunctions(e.Right, fn)
	case *UnaryExpr:
		WalkFunctions(e.Expr, fn)
	case *CaseExpr:
		WalkFunctions(e.Operand, fn)
		for _, w := range e.Whens {
			WalkFunctions(w.Condition, fn)
			WalkFunctions(w.Result, fn)
		}
		WalkFunctions(e.Else, fn)
	case *CastExpr:
		WalkFunctions(e.Expr, fn)
	case *InExpr:
		WalkFunctions(e.Expr, fn)
		for _, v := range e.Values {
			WalkFunctions(v, fn)
		}
	case *BetweenExpr:
		WalkFunctions(e.Expr, fn)
		WalkFunctions(e.Low, fn)
		WalkFunctions(e.High, fn)
	case *IsNullExpr:
		WalkFunctions(e.Expr, fn)
	case *LikeExpr:
		WalkFunctions(e.Expr, fn)
		WalkFunctions(e.Pattern, fn)
	case *ParenExpr:
		WalkFunctions(e.Expr, fn)
	}
}

// WalkPlaceholders calls fn for every placeholder in the statement,
// including those inside subqueries.
func WalkPlaceholders(stmt *SelectStmt, fn func(*Placeholder)) {
	if stmt == nil {
		return
	}
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			WalkPlaceholders(cte.Select, fn)
		}
	}
	sc := stmt.Select
	if sc == nil {
		return
	}

	walk := func(expr Expr) {
		walkPlaceholderExpr(expr, fn)
	}

	for _, item := range sc.Columns {
		walk(item.Expr)
	}
	if sc.From != nil {
		if derived, ok := sc.From.Source.(*DerivedTable); ok {
			WalkPlaceholders(derived.Select, fn)
		}
		for _, join := range sc.From.Joins {
			if derived, ok := join.Right.(*DerivedTable); ok {
				WalkPlaceholders(derived.Select, fn)
			}
			walk(join.On)
		}
	}
	walk(sc.Where)
	for _, g := range sc.GroupBy {
		walk(g)
	}
	walk(sc.Having)
	for _, o := range sc.OrderBy {
		walk(o.Expr)
	}
}

func walkPlaceholderExpr(expr Expr, fn func(*Placeholder)) {
	switch e := expr.(type) {
	case nil:
		return
	case *Placeholder:
		fn(e)
	case *ParamComparison:
		fn(e.Placeholder)
	case *BinaryExpr:
		walkPlaceholderExpr(e.Left, fn)
		walkPlaceholderExpr(e.Right, fn)
	case *UnaryExpr:
		walkPlaceholderExpr(e.Expr, fn)
	case *FuncCall:
		for _, arg := range e.Args {
			walkPlaceholderExpr(arg, fn)
		}
	case *CaseExpr:
		walkPlaceholderExpr(e.Operand, fn)
		for _, w := range e.Whens {
			walkPlaceholderExpr(w.Condition, fn)
			walkPlaceholderExpr(w.Result, fn)
		}
		walkPlaceholderExpr(e.Else, fn)
	case *CastExpr:
		walkPlaceholderExpr(e.Expr, fn)
	case *InExpr:
		walkPlaceholderExpr(e.Expr, fn)
		for _, v := range e.Values {
			walkPlaceholderExpr(v, fn)
		}
		WalkPlaceholders(e.Query, fn)
	case *BetweenExpr:
		walkPlaceholderExpr(e.Expr, fn)
		walkPlaceholderExpr(e.Low, fn)
		walkPlaceholderExpr(e.High, fn)
	case *IsNullExpr:
		walkPlaceholderExpr(e.Expr, fn)
	case *LikeExpr:
		walkPlaceholderExpr(e.Expr, fn)
		walkPlaceholderExpr(e.Pattern, fn)
	case *ParenExpr:
		walkPlaceholderExpr(e.Expr, fn)
	case *SubqueryExpr:
		WalkPlaceholders(e.Select, fn)
	case *ExistsExpr:
		WalkPlaceholders(e.Select, fn)
	}
}
