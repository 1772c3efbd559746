package compile

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/pkg/parser"
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// metricNode is a resolved metric reference with its dependency subtree.
type metricNode struct {
	Ref    string // canonical reference: "model.name" or bare graph name
	Model  string // "" for graph-level metrics
	Metric *semantic.Metric
	Deps   []*metricNode // in References order
}

// isWindowed reports whether the metric needs a window layer over the
// aggregated result.
func (n *metricNode) isWindowed() bool {
	return n.Metric.Kind == semantic.MetricCumulative ||
		n.Metric.Kind == semantic.MetricTimeComparison
}

// metricResolver resolves metric references into render trees, memoized per
// compilation, with DFS cycle detection.
type metricResolver struct {
	graph *semantic.Graph
	memo  map[string]*metricNode
	stack []string
}

func newMetricResolver(g *semantic.Graph) *metricResolver {
	return &metricResolver{graph: g, memo: make(map[string]*metricNode)}
}

// resolve resolves a reference. Bare names resolve against the context
// model first, then the graph-level metric table.
func (r *metricResolver) resolve(ref, contextModel string) (*metricNode, error) {
	model, name, qualified := splitRef(ref)
	if !qualified {
		model, name = "", ref
		if contextModel != "" {
			if m, ok := r.graph.Model(contextModel); ok {
				if _, ok := m.Metric(name); ok {
					model = contextModel
				}
			}
		}
	}

	var metric *semantic.Metric
	if model != "" {
		m, ok := r.graph.Model(model)
		if !ok {
			return nil, &UnknownModelError{Model: model}
		}
		metric, ok = m.Metric(name)
		if !ok {
			return nil, &UnknownMetricError{Model: model, Metric: name}
		}
	} else {
		var ok bool
		metric, ok = r.graph.Metric(name)
		if !ok {
			return nil, &UnknownMetricError{Model: contextModel, Metric: name}
		}
	}

	canonical := name
	if model != "" {
		canonical = model + "." + name
	}
	if node, ok := r.memo[canonical]; ok {
		return node, nil
	}
	for i, entry := range r.stack {
		if entry == canonical {
			cycle := append(append([]string(nil), r.stack[i:]...), canonical)
			return nil, &CyclicMetricDependencyError{Cycle: cycle}
		}
	}

	if model == "" && metric.Kind == semantic.MetricAggregation {
		return nil, fmt.Errorf("metric %q: graph-level metrics must reference model metrics, not aggregate directly", name)
	}

	node := &metricNode{Ref: canonical, Model: model, Metric: metric}
	r.stack = append(r.stack, canonical)
	for _, dep := range metric.References() {
		child, err := r.resolve(dep, model)
		if err != nil {
			r.stack = r.stack[:len(r.stack)-1]
			return nil, err
		}
		node.Deps = append(node.Deps, child)
	}
	r.stack = r.stack[:len(r.stack)-1]

	r.memo[canonical] = node
	return node, nil
}

// aggregationLeaves appends the plain-aggregation leaves under node, in
// dependency order, skipping refs already seen.
func aggregationLeaves(node *metricNode, seen map[string]bool, out []*metricNode) []*metricNode {
	if node.Metric.Kind == semantic.MetricAggregation {
		if !seen[node.Ref] {
			seen[node.Ref] = true
			out = append(out, node)
		}
		return out
	}
	for _, dep := range node.Deps {
		out = aggregationLeaves(dep, seen, out)
	}
	return out
}

// replaceIdents rebuilds an expression tree, substituting identifiers
// through repl. repl returning nil keeps the identifier as is.
func replaceIdents(e parser.Expr, repl func(*parser.Identifier) parser.Expr) parser.Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *parser.Identifier:
		if sub := repl(x); sub != nil {
			return sub
		}
		return x
	case *parser.BinaryExpr:
		return &parser.BinaryExpr{
			Left:     replaceIdents(x.Left, repl),
			Op:       x.Op,
			Right:    replaceIdents(x.Right, repl),
			Position: x.Position,
		}
	case *parser.UnaryExpr:
		return &parser.UnaryExpr{Op: x.Op, Operand: replaceIdents(x.Operand, repl), Position: x.Position}
	case *parser.ParenExpr:
		return &parser.ParenExpr{Inner: replaceIdents(x.Inner, repl), Position: x.Position}
	case *parser.FuncCall:
		out := &parser.FuncCall{Name: x.Name, Distinct: x.Distinct, WithinGroup: x.WithinGroup, Over: x.Over, Position: x.Position}
		for _, a := range x.Args {
			out.Args = append(out.Args, replaceIdents(a, repl))
		}
		return out
	case *parser.CaseExpr:
		out := &parser.CaseExpr{Operand: replaceIdents(x.Operand, repl), Position: x.Position}
		for _, w := range x.Whens {
			out.Whens = append(out.Whens, parser.CaseWhen{
				Cond:   replaceIdents(w.Cond, repl),
				Result: replaceIdents(w.Result, repl),
			})
		}
		out.Else = replaceIdents(x.Else, repl)
		return out
	case *parser.CastExpr:
		return &parser.CastExpr{Operand: replaceIdents(x.Operand, repl), Type: x.Type, Position: x.Position}
	case *parser.InExpr:
		out := &parser.InExpr{Operand: replaceIdents(x.Operand, repl), Not: x.Not, Subquery: x.Subquery, Position: x.Position}
		for _, item := range x.List {
			out.List = append(out.List, replaceIdents(item, repl))
		}
		return out
	case *parser.BetweenExpr:
		return &parser.BetweenExpr{
			Operand:  replaceIdents(x.Operand, repl),
			Not:      x.Not,
			Low:      replaceIdents(x.Low, repl),
			High:     replaceIdents(x.High, repl),
			Position: x.Position,
		}
	case *parser.IsNullExpr:
		return &parser.IsNullExpr{Operand: replaceIdents(x.Operand, repl), Not: x.Not, Position: x.Position}
	case *parser.IndexExpr:
		return &parser.IndexExpr{
			Operand:  replaceIdents(x.Operand, repl),
			Index:    replaceIdents(x.Index, repl),
			Position: x.Position,
		}
	default:
		return e
	}
}

// renderDerived renders a derived metric formula, substituting each
// dependency reference with its already-rendered SQL. Substitution is
// AST-based so similar substrings never partially match.
func renderDerived(node *metricNode, depSQL func(*metricNode) string) (string, error) {
	spec := node.Metric.Derived

	byName := make(map[string]*metricNode, len(node.Deps))
	for i, dep := range node.Deps {
		byName[spec.Metrics[i]] = dep
		byName[dep.Ref] = dep
	}

	expr, err := parser.ParseExpression(spec.Expr)
	if err != nil {
		return "", fmt.Errorf("metric %q: derived expression: %w", node.Ref, err)
	}

	replaced := replaceIdents(expr, func(id *parser.Identifier) parser.Expr {
		full := strings.Join(id.Parts, ".")
		if dep, ok := byName[full]; ok {
			return &parser.RawExpr{SQL: "(" + depSQL(dep) + ")", Position: id.Position}
		}
		return nil
	})
	return parser.RenderExpr(replaced), nil
}

// renderCombined renders a non-windowed metric node given SQL for its
// aggregation leaves. Ratios always guard the denominator with NULLIF.
func renderCombined(node *metricNode, leafSQL func(*metricNode) string) (string, error) {
	switch node.Metric.Kind {
	case semantic.MetricAggregation:
		return leafSQL(node), nil
	case semantic.MetricRatio:
		num, err := renderCombined(node.Deps[0], leafSQL)
		if err != nil {
			return "", err
		}
		den, err := renderCombined(node.Deps[1], leafSQL)
		if err != nil {
			return "", err
		}
		return num + " / NULLIF(" + den + ", 0)", nil
	case semantic.MetricDerived:
		var depErr error
		sql, err := renderDerived(node, func(dep *metricNode) string {
			s, err := renderCombined(dep, leafSQL)
			if err != nil && depErr == nil {
				depErr = err
			}
			return s
		})
		if err != nil {
			return "", err
		}
		if depErr != nil {
			return "", depErr
		}
		return sql, nil
	default:
		return "", fmt.Errorf("metric %q: kind %q cannot render without a window layer", node.Ref, node.Metric.Kind)
	}
}
