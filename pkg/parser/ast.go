package parser

// Node is implemented by every AST node.
type Node interface {
	Pos() Position
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Identifier is a possibly qualified name: col, table.col, schema.table.col.
type Identifier struct {
	Parts    []string
	Quoted   []bool // parallel to Parts
	Position Position
}

func (i *Identifier) Pos() Position { return i.Position }
func (i *Identifier) exprNode()     {}

// Name returns the final path component.
func (i *Identifier) Name() string {
	if len(i.Parts) == 0 {
		return ""
	}
	return i.Parts[len(i.Parts)-1]
}

// Qualifier returns the path before the final component, or "".
func (i *Identifier) Qualifier() string {
	if len(i.Parts) < 2 {
		return ""
	}
	return i.Parts[len(i.Parts)-2]
}

// NumberLit is a numeric literal, kept verbatim.
type NumberLit struct {
	Value    string
	Position Position
}

func (n *NumberLit) Pos() Position { return n.Position }
func (n *NumberLit) exprNode()     {}

// StringLit is a single-quoted string literal, unescaped.
type StringLit struct {
	Value    string
	Position Position
}

func (s *StringLit) Pos() Position { return s.Position }
func (s *StringLit) exprNode()     {}

// BoolLit is TRUE or FALSE.
type BoolLit struct {
	Value    bool
	Position Position
}

func (b *BoolLit) Pos() Position { return b.Position }
func (b *BoolLit) exprNode()     {}

// NullLit is the NULL literal.
type NullLit struct {
	Position Position
}

func (n *NullLit) Pos() Position { return n.Position }
func (n *NullLit) exprNode()     {}

// Star is the bare * select item or the argument of COUNT(*).
type Star struct {
	Position Position
}

func (s *Star) Pos() Position { return s.Position }
func (s *Star) exprNode()     {}

// BinaryExpr is a binary operation. Op holds the SQL spelling
// ("+", "AND", "LIKE", ...).
type BinaryExpr struct {
	Left     Expr
	Op       string
	Right    Expr
	Position Position
}

func (b *BinaryExpr) Pos() Position { return b.Position }
func (b *BinaryExpr) exprNode()     {}

// UnaryExpr is a prefix operation ("-", "NOT").
type UnaryExpr struct {
	Op       string
	Operand  Expr
	Position Position
}

func (u *UnaryExpr) Pos() Position { return u.Position }
func (u *UnaryExpr) exprNode()     {}

// ParenExpr preserves explicit grouping from the source.
type ParenExpr struct {
	Inner    Expr
	Position Position
}

func (p *ParenExpr) Pos() Position { return p.Position }
func (p *ParenExpr) exprNode()     {}

// FuncCall is a function invocation, optionally with DISTINCT, a
// WITHIN GROUP ordering (ordered-set aggregates such as PERCENTILE_CONT),
// and an OVER clause.
type FuncCall struct {
	Name        string
	Distinct    bool
	Args        []Expr
	WithinGroup []OrderByItem // nil unless a WITHIN GROUP clause is present
	Over        *WindowSpec   // nil unless an OVER clause is present
	Position    Position
}

func (f *FuncCall) Pos() Position { return f.Position }
func (f *FuncCall) exprNode()     {}

// IndexExpr is a bracket subscript: expr[index]. BigQuery array access
// (APPROX_QUANTILES(x, 2)[SAFE_OFFSET(1)]) is the main producer.
type IndexExpr struct {
	Operand  Expr
	Index    Expr
	Position Position
}

func (i *IndexExpr) Pos() Position { return i.Position }
func (i *IndexExpr) exprNode()     {}

// WindowSpec is the contents of an OVER (...) clause.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *WindowFrame
}

// FrameUnit distinguishes ROWS from RANGE frames.
type FrameUnit int

const (
	FrameRows FrameUnit = iota
	FrameRange
)

// FrameBoundKind identifies a window frame bound.
type FrameBoundKind int

const (
	BoundUnboundedPreceding FrameBoundKind = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// FrameBound is one endpoint of a window frame. Offset is set only for
// N PRECEDING / N FOLLOWING.
type FrameBound struct {
	Kind   FrameBoundKind
	Offset Expr
}

// WindowFrame is a ROWS/RANGE BETWEEN frame clause.
type WindowFrame struct {
	Unit  FrameUnit
	Start FrameBound
	End   FrameBound
}

// CaseExpr is a CASE expression. Operand is nil for searched CASE.
type CaseExpr struct {
	Operand  Expr
	Whens    []CaseWhen
	Else     Expr
	Position Position
}

func (c *CaseExpr) Pos() Position { return c.Position }
func (c *CaseExpr) exprNode()     {}

// CaseWhen is one WHEN ... THEN ... arm.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// CastExpr is CAST(expr AS type).
type CastExpr struct {
	Operand  Expr
	Type     string
	Position Position
}

func (c *CastExpr) Pos() Position { return c.Position }
func (c *CastExpr) exprNode()     {}

// InExpr is expr [NOT] IN (list) or expr [NOT] IN (subquery).
type InExpr struct {
	Operand  Expr
	Not      bool
	List     []Expr
	Subquery *SelectStatement
	Position Position
}

func (i *InExpr) Pos() Position { return i.Position }
func (i *InExpr) exprNode()     {}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Operand  Expr
	Not      bool
	Low      Expr
	High     Expr
	Position Position
}

func (b *BetweenExpr) Pos() Position { return b.Position }
func (b *BetweenExpr) exprNode()     {}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Operand  Expr
	Not      bool
	Position Position
}

func (i *IsNullExpr) Pos() Position { return i.Position }
func (i *IsNullExpr) exprNode()     {}

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not      bool
	Subquery *SelectStatement
	Position Position
}

func (e *ExistsExpr) Pos() Position { return e.Position }
func (e *ExistsExpr) exprNode()     {}

// SubqueryExpr is a scalar subquery used in expression position.
type SubqueryExpr struct {
	Select   *SelectStatement
	Position Position
}

func (s *SubqueryExpr) Pos() Position { return s.Position }
func (s *SubqueryExpr) exprNode()     {}

// RawExpr carries pre-rendered SQL text injected during rewriting. The
// parser never produces it.
type RawExpr struct {
	SQL      string
	Position Position
}

func (r *RawExpr) Pos() Position { return r.Position }
func (r *RawExpr) exprNode()     {}

// SelectItem is one projection in a SELECT list.
type SelectItem struct {
	Expr  Expr
	Alias string // "" if no alias
}

// JoinType enumerates supported join kinds.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// String returns the SQL keyword sequence for the join type.
func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	case JoinCross:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

// TableRef is a FROM or JOIN source: a named table or a subquery.
type TableRef struct {
	Name     *Identifier      // nil if Subquery is set
	Subquery *SelectStatement // nil if Name is set
	Alias    string
	Position Position
}

func (t *TableRef) Pos() Position { return t.Position }

// JoinClause is one JOIN in a FROM clause.
type JoinClause struct {
	Type  JoinType
	Table *TableRef
	On    Expr // nil for CROSS JOIN
}

// OrderByItem is one ORDER BY term.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool // nil means dialect default
}

// CTE is one common table expression in a WITH clause.
type CTE struct {
	Name   string
	Select *SelectStatement
}

// SelectStatement is a SELECT query, optionally with a WITH clause.
type SelectStatement struct {
	CTEs     []CTE
	Distinct bool
	Items    []SelectItem
	From     *TableRef
	Joins    []JoinClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
	Position Position
}

func (s *SelectStatement) Pos() Position { return s.Position }

// Walk calls fn for every expression node reachable from expr,
// depth-first. fn returning false prunes the subtree.
func Walk(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *BinaryExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *UnaryExpr:
		Walk(e.Operand, fn)
	case *ParenExpr:
		Walk(e.Inner, fn)
	case *FuncCall:
		for _, a := range e.Args {
			Walk(a, fn)
		}
		for _, o := range e.WithinGroup {
			Walk(o.Expr, fn)
		}
		if e.Over != nil {
			for _, p := range e.Over.PartitionBy {
				Walk(p, fn)
			}
			for _, o := range e.Over.OrderBy {
				Walk(o.Expr, fn)
			}
		}
	case *CaseExpr:
		Walk(e.Operand, fn)
		for _, w := range e.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(e.Else, fn)
	case *CastExpr:
		Walk(e.Operand, fn)
	case *InExpr:
		Walk(e.Operand, fn)
		for _, item := range e.List {
			Walk(item, fn)
		}
	case *BetweenExpr:
		Walk(e.Operand, fn)
		Walk(e.Low, fn)
		Walk(e.High, fn)
	case *IsNullExpr:
		Walk(e.Operand, fn)
	case *IndexExpr:
		Walk(e.Operand, fn)
		Walk(e.Index, fn)
	case *SubqueryExpr, *ExistsExpr:
		// Subquery internals are not walked. Rewriting descends into
		// statements explicitly.
	}
}
