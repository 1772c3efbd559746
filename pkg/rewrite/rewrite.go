// Package rewrite interprets free-form SQL whose table and column
// references are semantic names and replaces the statement body with
// compiled SQL. A statement selects either from one model's table or from
// the virtual "metrics" table for cross-model queries; user CTEs are
// preserved ahead of the compiled body.
package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/strata/pkg/compile"
	"github.com/leapstack-labs/strata/pkg/parser"
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// VirtualMetricsTable is the table name that opens a cross-model query:
// every reference must then be model-qualified or a graph-level metric.
const VirtualMetricsTable = "metrics"

// Options controls rewriting.
type Options struct {
	// Strict rejects statements that cannot be interpreted semantically.
	// Non-strict passes them through unchanged, for introspection queries
	// and dialect-specific SQL from generic clients.
	Strict bool

	// Dialect and PreAggSchema are forwarded to the compile request.
	Dialect      string
	PreAggSchema string
}

// Result is the rewriting outcome. Rewritten is false when the statement
// passed through untouched.
type Result struct {
	SQL       string
	Rewritten bool
	Columns   []compile.Column
}

// Rewrite parses sql, resolves its references through the graph, compiles
// the resulting request, and splices the compiled SQL under any user CTEs.
func Rewrite(g *semantic.Graph, sql string, opts Options) (*Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return bail(sql, opts, err.Error())
	}

	if stmt.From == nil || stmt.From.Name == nil || stmt.From.Subquery != nil {
		return bail(sql, opts, "FROM must name a model table or the metrics table")
	}
	if len(stmt.Joins) > 0 {
		return bail(sql, opts, "explicit joins are not rewritable, joins are derived from relationships")
	}
	if stmt.Distinct || stmt.Having != nil {
		return bail(sql, opts, "DISTINCT and HAVING are not rewritable")
	}

	fromName := strings.Join(stmt.From.Name.Parts, ".")
	for _, c := range stmt.CTEs {
		if c.Name == fromName {
			return bail(sql, opts, fmt.Sprintf("FROM references the user CTE %q, not a model", fromName))
		}
	}

	contextModel := ""
	if fromName != VirtualMetricsTable {
		if _, ok := g.Model(fromName); !ok {
			return bail(sql, opts, fmt.Sprintf("table %q is neither a model nor the metrics table", fromName))
		}
		contextModel = fromName
	}

	req := compile.Request{Dialect: opts.Dialect, PreAggSchema: opts.PreAggSchema}

	dimSet := make(map[string]bool)
	for _, item := range stmt.Items {
		id, ok := item.Expr.(*parser.Identifier)
		if !ok {
			return bail(sql, opts, "select items must be plain semantic references")
		}
		ref, isMetric, rerr := resolveRef(g, contextModel, id)
		if rerr != nil {
			return bailErr(sql, opts, rerr)
		}
		if isMetric {
			req.Metrics = append(req.Metrics, ref)
		} else {
			req.Dimensions = append(req.Dimensions, ref)
			dimSet[ref] = true
		}
	}

	for _, gb := range stmt.GroupBy {
		id, ok := gb.(*parser.Identifier)
		if !ok {
			return bail(sql, opts, "GROUP BY terms must be plain semantic references")
		}
		ref, isMetric, rerr := resolveRef(g, contextModel, id)
		if rerr != nil {
			return bailErr(sql, opts, rerr)
		}
		if isMetric || !dimSet[ref] {
			return bail(sql, opts, fmt.Sprintf("GROUP BY %q does not match a selected dimension", ref))
		}
	}

	if stmt.Where != nil {
		qualify(stmt.Where, contextModel)
		for _, conjunct := range splitAnd(stmt.Where) {
			if seg, ok := segmentRef(g, conjunct); ok {
				req.Segments = append(req.Segments, seg)
				continue
			}
			req.Filters = append(req.Filters, parser.RenderExpr(conjunct))
		}
	}

	for _, ob := range stmt.OrderBy {
		if ob.NullsFirst != nil {
			return bail(sql, opts, "NULLS FIRST/LAST ordering is not rewritable")
		}
		id, ok := ob.Expr.(*parser.Identifier)
		if !ok {
			return bail(sql, opts, "ORDER BY terms must be plain semantic references")
		}
		ref, _, rerr := resolveRef(g, contextModel, id)
		if rerr != nil {
			return bailErr(sql, opts, rerr)
		}
		entry := ref
		if ob.Desc {
			entry += " desc"
		}
		req.OrderBy = append(req.OrderBy, entry)
	}

	if req.Limit, err = intClause(stmt.Limit); err != nil {
		return bail(sql, opts, err.Error())
	}
	if req.Offset, err = intClause(stmt.Offset); err != nil {
		return bail(sql, opts, err.Error())
	}

	res, err := compile.Compile(g, req)
	if err != nil {
		return nil, err
	}

	out := res.SQL
	if len(stmt.CTEs) > 0 {
		out = spliceUserCTEs(stmt.CTEs, out)
	}
	return &Result{SQL: out, Rewritten: true, Columns: res.Columns}, nil
}

// bail passes the statement through in non-strict mode and errors in
// strict mode.
func bail(sql string, opts Options, reason string) (*Result, error) {
	if opts.Strict {
		return nil, &NotRewritableError{Reason: reason}
	}
	return &Result{SQL: sql}, nil
}

// bailErr is bail for typed resolution errors, surfaced as-is in strict
// mode.
func bailErr(sql string, opts Options, err error) (*Result, error) {
	if opts.Strict {
		return nil, err
	}
	return &Result{SQL: sql}, nil
}

// resolveRef resolves a select/order/group reference to its canonical
// request string. Metrics win over dimensions on a name collision, matching
// how bare metric references resolve elsewhere.
func resolveRef(g *semantic.Graph, contextModel string, id *parser.Identifier) (string, bool, error) {
	switch len(id.Parts) {
	case 1:
		name := id.Parts[0]
		if contextModel == "" {
			if _, ok := g.Metric(name); ok {
				return name, true, nil
			}
			return "", false, &compile.UnknownMetricError{Metric: name}
		}
		return resolveModelField(g, contextModel, name)
	case 2:
		model, field := id.Parts[0], id.Parts[1]
		if _, ok := g.Model(model); !ok {
			return "", false, &compile.UnknownModelError{Model: model}
		}
		return resolveModelField(g, model, field)
	default:
		return "", false, &NotRewritableError{Reason: fmt.Sprintf("reference %q has too many parts", strings.Join(id.Parts, "."))}
	}
}

func resolveModelField(g *semantic.Graph, model, field string) (string, bool, error) {
	m, _ := g.Model(model)
	if _, ok := m.Metric(field); ok {
		return model + "." + field, true, nil
	}
	name := field
	if i := strings.LastIndex(field, "__"); i > 0 {
		name = field[:i]
	}
	if _, ok := m.Dimension(name); ok {
		return model + "." + field, false, nil
	}
	return "", false, &compile.UnknownDimensionError{Model: model, Dimension: field}
}

// qualify prefixes bare column references in a predicate with the context
// model so the compiled filters are unambiguous.
func qualify(e parser.Expr, contextModel string) {
	if contextModel == "" {
		return
	}
	parser.Walk(e, func(n parser.Expr) bool {
		if id, ok := n.(*parser.Identifier); ok && len(id.Parts) == 1 {
			id.Parts = []string{contextModel, id.Parts[0]}
			id.Quoted = []bool{false, id.Quoted[0]}
		}
		return true
	})
}

// splitAnd flattens a predicate into its top-level AND conjuncts.
func splitAnd(e parser.Expr) []parser.Expr {
	if b, ok := e.(*parser.BinaryExpr); ok && b.Op == "AND" {
		return append(splitAnd(b.Left), splitAnd(b.Right)...)
	}
	return []parser.Expr{e}
}

// segmentRef reports whether a conjunct is a bare reference to a model
// segment.
func segmentRef(g *semantic.Graph, e parser.Expr) (string, bool) {
	id, ok := e.(*parser.Identifier)
	if !ok || len(id.Parts) != 2 {
		return "", false
	}
	m, ok := g.Model(id.Parts[0])
	if !ok {
		return "", false
	}
	if _, ok := m.Segment(id.Parts[1]); !ok {
		return "", false
	}
	return id.Parts[0] + "." + id.Parts[1], true
}

// intClause extracts a LIMIT/OFFSET literal.
func intClause(e parser.Expr) (int, error) {
	if e == nil {
		return 0, nil
	}
	lit, ok := e.(*parser.NumberLit)
	if !ok {
		return 0, fmt.Errorf("LIMIT and OFFSET must be integer literals")
	}
	n, err := strconv.Atoi(lit.Value)
	if err != nil {
		return 0, fmt.Errorf("LIMIT and OFFSET must be integer literals")
	}
	return n, nil
}

// spliceUserCTEs re-emits the user's WITH clause ahead of the compiled
// statement, merging with any CTEs the compiler generated.
func spliceUserCTEs(ctes []parser.CTE, compiled string) string {
	var b strings.Builder
	for i, c := range ctes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteString(" AS (\n")
		b.WriteString(parser.RenderStatement(c.Select))
		b.WriteString("\n)")
	}
	user := b.String()

	if rest, ok := strings.CutPrefix(compiled, "WITH "); ok {
		return "WITH " + user + ", " + rest
	}
	return "WITH " + user + "\n" + compiled
}
