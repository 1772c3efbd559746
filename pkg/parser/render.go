package parser

import (
	"fmt"
	"strings"
)

// RenderStatement returns the SQL text for a statement. Output is
// deterministic: the same AST always renders to the same bytes.
func RenderStatement(stmt *SelectStatement) string {
	var b strings.Builder
	writeStatement(&b, stmt)
	return b.String()
}

// RenderExpr returns the SQL text for an expression.
func RenderExpr(expr Expr) string {
	var b strings.Builder
	writeExpr(&b, expr)
	return b.String()
}

func writeStatement(b *strings.Builder, stmt *SelectStatement) {
	if len(stmt.CTEs) > 0 {
		b.WriteString("WITH ")
		for i, cte := range stmt.CTEs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(cte.Name)
			b.WriteString(" AS (")
			writeStatement(b, cte.Select)
			b.WriteString(")")
		}
		b.WriteString(" ")
	}

	b.WriteString("SELECT ")
	if stmt.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range stmt.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, item.Expr)
		if item.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(item.Alias)
		}
	}

	if stmt.From != nil {
		b.WriteString(" FROM ")
		writeTableRef(b, stmt.From)
		for _, join := range stmt.Joins {
			b.WriteString(" ")
			b.WriteString(join.Type.String())
			b.WriteString(" ")
			writeTableRef(b, join.Table)
			if join.On != nil {
				b.WriteString(" ON ")
				writeExpr(b, join.On)
			}
		}
	}

	if stmt.Where != nil {
		b.WriteString(" WHERE ")
		writeExpr(b, stmt.Where)
	}

	if len(stmt.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range stmt.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, g)
		}
	}

	if stmt.Having != nil {
		b.WriteString(" HAVING ")
		writeExpr(b, stmt.Having)
	}

	if len(stmt.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		writeOrderBy(b, stmt.OrderBy)
	}

	if stmt.Limit != nil {
		b.WriteString(" LIMIT ")
		writeExpr(b, stmt.Limit)
	}
	if stmt.Offset != nil {
		b.WriteString(" OFFSET ")
		writeExpr(b, stmt.Offset)
	}
}

func writeTableRef(b *strings.Builder, ref *TableRef) {
	if ref.Subquery != nil {
		b.WriteString("(")
		writeStatement(b, ref.Subquery)
		b.WriteString(")")
	} else if ref.Name != nil {
		writeExpr(b, ref.Name)
	}
	if ref.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(ref.Alias)
	}
}

func writeOrderBy(b *strings.Builder, items []OrderByItem) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, item.Expr)
		if item.Desc {
			b.WriteString(" DESC")
		}
		if item.NullsFirst != nil {
			if *item.NullsFirst {
				b.WriteString(" NULLS FIRST")
			} else {
				b.WriteString(" NULLS LAST")
			}
		}
	}
}

func writeExpr(b *strings.Builder, expr Expr) {
	switch e := expr.(type) {
	case *Identifier:
		for i, part := range e.Parts {
			if i > 0 {
				b.WriteString(".")
			}
			if i < len(e.Quoted) && e.Quoted[i] {
				b.WriteString(`"`)
				b.WriteString(strings.ReplaceAll(part, `"`, `""`))
				b.WriteString(`"`)
			} else {
				b.WriteString(part)
			}
		}

	case *NumberLit:
		b.WriteString(e.Value)

	case *StringLit:
		b.WriteString("'")
		b.WriteString(strings.ReplaceAll(e.Value, "'", "''"))
		b.WriteString("'")

	case *BoolLit:
		if e.Value {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}

	case *NullLit:
		b.WriteString("NULL")

	case *Star:
		b.WriteString("*")

	case *BinaryExpr:
		writeExpr(b, e.Left)
		b.WriteString(" ")
		b.WriteString(e.Op)
		b.WriteString(" ")
		writeExpr(b, e.Right)

	case *UnaryExpr:
		b.WriteString(e.Op)
		if e.Op != "-" {
			b.WriteString(" ")
		}
		writeExpr(b, e.Operand)

	case *ParenExpr:
		b.WriteString("(")
		writeExpr(b, e.Inner)
		b.WriteString(")")

	case *FuncCall:
		b.WriteString(e.Name)
		b.WriteString("(")
		if e.Distinct {
			b.WriteString("DISTINCT ")
		}
		for i, arg := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, arg)
		}
		b.WriteString(")")
		if len(e.WithinGroup) > 0 {
			b.WriteString(" WITHIN GROUP (ORDER BY ")
			writeOrderBy(b, e.WithinGroup)
			b.WriteString(")")
		}
		if e.Over != nil {
			b.WriteString(" OVER (")
			writeWindowSpec(b, e.Over)
			b.WriteString(")")
		}

	case *CaseExpr:
		b.WriteString("CASE")
		if e.Operand != nil {
			b.WriteString(" ")
			writeExpr(b, e.Operand)
		}
		for _, w := range e.Whens {
			b.WriteString(" WHEN ")
			writeExpr(b, w.Cond)
			b.WriteString(" THEN ")
			writeExpr(b, w.Result)
		}
		if e.Else != nil {
			b.WriteString(" ELSE ")
			writeExpr(b, e.Else)
		}
		b.WriteString(" END")

	case *CastExpr:
		b.WriteString("CAST(")
		writeExpr(b, e.Operand)
		b.WriteString(" AS ")
		b.WriteString(e.Type)
		b.WriteString(")")

	case *InExpr:
		writeExpr(b, e.Operand)
		if e.Not {
			b.WriteString(" NOT IN (")
		} else {
			b.WriteString(" IN (")
		}
		if e.Subquery != nil {
			writeStatement(b, e.Subquery)
		} else {
			for i, item := range e.List {
				if i > 0 {
					b.WriteString(", ")
				}
				writeExpr(b, item)
			}
		}
		b.WriteString(")")

	case *BetweenExpr:
		writeExpr(b, e.Operand)
		if e.Not {
			b.WriteString(" NOT BETWEEN ")
		} else {
			b.WriteString(" BETWEEN ")
		}
		writeExpr(b, e.Low)
		b.WriteString(" AND ")
		writeExpr(b, e.High)

	case *IsNullExpr:
		writeExpr(b, e.Operand)
		if e.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}

	case *ExistsExpr:
		if e.Not {
			b.WriteString("NOT ")
		}
		b.WriteString("EXISTS (")
		writeStatement(b, e.Subquery)
		b.WriteString(")")

	case *IndexExpr:
		writeExpr(b, e.Operand)
		b.WriteString("[")
		writeExpr(b, e.Index)
		b.WriteString("]")

	case *SubqueryExpr:
		b.WriteString("(")
		writeStatement(b, e.Select)
		b.WriteString(")")

	case *RawExpr:
		b.WriteString(e.SQL)

	default:
		// Unreachable for parser-produced ASTs.
		b.WriteString(fmt.Sprintf("/* unrenderable %T */", expr))
	}
}

func writeWindowSpec(b *strings.Builder, spec *WindowSpec) {
	wrote := false
	if len(spec.PartitionBy) > 0 {
		b.WriteString("PARTITION BY ")
		for i, p := range spec.PartitionBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, p)
		}
		wrote = true
	}
	if len(spec.OrderBy) > 0 {
		if wrote {
			b.WriteString(" ")
		}
		b.WriteString("ORDER BY ")
		writeOrderBy(b, spec.OrderBy)
		wrote = true
	}
	if spec.Frame != nil {
		if wrote {
			b.WriteString(" ")
		}
		if spec.Frame.Unit == FrameRange {
			b.WriteString("RANGE BETWEEN ")
		} else {
			b.WriteString("ROWS BETWEEN ")
		}
		writeFrameBound(b, spec.Frame.Start)
		b.WriteString(" AND ")
		writeFrameBound(b, spec.Frame.End)
	}
}

func writeFrameBound(b *strings.Builder, bound FrameBound) {
	switch bound.Kind {
	case BoundUnboundedPreceding:
		b.WriteString("UNBOUNDED PRECEDING")
	case BoundPreceding:
		writeExpr(b, bound.Offset)
		b.WriteString(" PRECEDING")
	case BoundCurrentRow:
		b.WriteString("CURRENT ROW")
	case BoundFollowing:
		writeExpr(b, bound.Offset)
		b.WriteString(" FOLLOWING")
	case BoundUnboundedFollowing:
		b.WriteString("UNBOUNDED FOLLOWING")
	}
}
