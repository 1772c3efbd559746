package compile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/strata/pkg/dialect"
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// compilation is the per-request state threaded through the generator.
// It is never shared between requests.
type compilation struct {
	graph   *semantic.Graph
	dialect *dialect.Dialect
	req     Request

	dims      []dimRef
	requested []*metricNode
	leaves    []*metricNode
	filters   []*filterExpr
	segments  []segRef
	bindings  map[string]*sourceBinding
}

func (c *compilation) run() (*Result, error) {
	if len(c.req.Dimensions) == 0 && len(c.req.Metrics) == 0 {
		return nil, fmt.Errorf("request selects no dimensions and no metrics")
	}
	c.bindings = make(map[string]*sourceBinding)

	for _, ref := range c.req.Dimensions {
		d, err := resolveDimension(c.graph, ref)
		if err != nil {
			return nil, err
		}
		c.dims = append(c.dims, d)
	}

	resolver := newMetricResolver(c.graph)
	for _, ref := range c.req.Metrics {
		node, err := resolver.resolve(ref, "")
		if err != nil {
			return nil, err
		}
		c.requested = append(c.requested, node)
	}

	seen := make(map[string]bool)
	for _, node := range c.requested {
		if node.isWindowed() {
			for _, dep := range node.Deps {
				if dep.isWindowed() {
					return nil, fmt.Errorf("metric %q: window metrics cannot reference other window metrics", node.Ref)
				}
			}
		}
		c.leaves = aggregationLeaves(node, seen, c.leaves)
	}

	for _, leaf := range c.leaves {
		nad := leaf.Metric.NonAdditiveDimension
		if nad == "" {
			continue
		}
		covered := false
		for _, d := range c.dims {
			if d.Model == leaf.Model && d.Dim.Name == nad {
				covered = true
				break
			}
		}
		if !covered {
			return nil, fmt.Errorf("metric %q: request must group by its non-additive dimension %q", leaf.Ref, nad)
		}
	}

	for _, raw := range c.req.Filters {
		f, err := parseFilter(c.graph, raw)
		if err != nil {
			return nil, err
		}
		c.filters = append(c.filters, f)
	}
	for _, ref := range c.req.Segments {
		s, err := resolveSegment(c.graph, ref)
		if err != nil {
			return nil, err
		}
		c.segments = append(c.segments, s)
	}

	models := make(map[string]bool)
	for _, l := range c.leaves {
		models[l.Model] = true
	}
	for _, d := range c.dims {
		models[d.Model] = true
	}
	for _, f := range c.filters {
		for _, m := range f.Models {
			models[m] = true
		}
	}
	for _, s := range c.segments {
		models[s.Model] = true
	}

	anchor := ""
	if len(c.leaves) > 0 {
		anchor = c.leaves[0].Model
	} else {
		anchor = c.dims[0].Model
	}
	var targets []string
	for m := range models {
		if m != anchor {
			targets = append(targets, m)
		}
	}

	tree, err := buildJoinTree(c.graph, anchor, targets)
	if err != nil {
		return nil, err
	}

	if !c.req.Ungrouped {
		c.matchRollups(tree)
	}

	switch {
	case c.req.Ungrouped:
		return c.ungroupedSQL(tree)
	case len(c.leaves) == 0:
		return c.dimensionOnlySQL(tree)
	case !tree.hasFanOut():
		return c.simpleSQL(tree)
	default:
		return c.fanOutSQL()
	}
}

// matchRollups binds each model to a covering rollup where one exists.
func (c *compilation) matchRollups(tree *joinTree) {
	joined := len(tree.nodes) > 1
	for _, name := range tree.nodes {
		m, _ := c.graph.Model(name)
		needs := modelNeeds{joined: joined}
		for _, l := range c.leaves {
			if l.Model == name {
				needs.metrics = append(needs.metrics, l.Metric)
			}
		}
		for _, d := range c.dims {
			if d.Model == name {
				needs.dims = append(needs.dims, d)
			}
		}
		for _, f := range c.filters {
			needs.filterDims = append(needs.filterDims, f.dimFields[name]...)
			if len(f.rawFields[name]) > 0 {
				needs.opaque = true
			}
		}
		for _, s := range c.segments {
			if s.Model == name {
				needs.opaque = true
			}
		}
		if b := matchPreAggregation(m, needs, c.req.PreAggSchema); b != nil {
			c.bindings[name] = b
		}
	}
}

// binding returns the source binding for a model, defaulting to its base
// table.
func (c *compilation) binding(model string) *sourceBinding {
	if b, ok := c.bindings[model]; ok {
		return b
	}
	m, _ := c.graph.Model(model)
	b := &sourceBinding{model: m}
	c.bindings[model] = b
	return b
}

func (c *compilation) q(name string) string {
	return c.dialect.QuoteIdentifier(name)
}

// fromClause renders a model's FROM source with its alias.
func (c *compilation) fromClause(model string) string {
	b := c.binding(model)
	if src := b.from(); src != b.alias() {
		return src + " AS " + b.alias()
	}
	return b.alias()
}

// joinClauses renders the join clause(s) that attach edge e's target,
// expanding many_to_many through its junction model.
func (c *compilation) joinClauses(e semantic.Edge) []string {
	parent, child := e.From, e.To
	rel := e.Rel
	if rel.Cardinality == semantic.ManyToMany {
		j := rel.Junction
		jm, _ := c.graph.Model(j.Model)
		jfrom := j.Model
		if src := jm.Source(); src != j.Model {
			jfrom = src + " AS " + j.Model
		}
		if !e.Reverse {
			return []string{
				"LEFT JOIN " + jfrom + " ON " + parent + "." + rel.LocalKey + " = " + j.Model + "." + j.LocalKey,
				"LEFT JOIN " + c.fromClause(child) + " ON " + j.Model + "." + j.ForeignKey + " = " + child + "." + rel.ForeignKey,
			}
		}
		return []string{
			"LEFT JOIN " + jfrom + " ON " + parent + "." + rel.ForeignKey + " = " + j.Model + "." + j.ForeignKey,
			"LEFT JOIN " + c.fromClause(child) + " ON " + j.Model + "." + j.LocalKey + " = " + child + "." + rel.LocalKey,
		}
	}

	var on string
	if !e.Reverse {
		on = parent + "." + rel.LocalKey + " = " + child + "." + rel.ForeignKey
	} else {
		on = parent + "." + rel.ForeignKey + " = " + child + "." + rel.LocalKey
	}
	return []string{"LEFT JOIN " + c.fromClause(child) + " ON " + on}
}

// filterResolve maps a model.field reference to SQL through the model's
// binding. Dimension names (optionally grain-suffixed) render through the
// dimension expression; anything else addresses a raw column.
func (c *compilation) filterResolve(model, field string) string {
	b := c.binding(model)
	name, grain := dimensionGrain(b.model, field)
	if d, ok := b.model.Dimension(name); ok {
		return b.dimensionSQL(dimRef{Model: model, Dim: d, Grain: grain}, c.dialect)
	}
	return b.alias() + "." + field
}

// predicates renders all request filters and segments for a single-region
// statement.
func (c *compilation) predicates() []string {
	var out []string
	for _, f := range c.filters {
		out = append(out, "("+f.render(c.filterResolve)+")")
	}
	for _, s := range c.segments {
		out = append(out, "("+s.Segment.Render(s.Model)+")")
	}
	return out
}

func (c *compilation) columns() []Column {
	cols := make([]Column, 0, len(c.dims)+len(c.requested))
	for _, d := range c.dims {
		cols = append(cols, Column{Name: d.Ref, Kind: ColumnDimension})
	}
	for _, m := range c.requested {
		cols = append(cols, Column{Name: m.Ref, Kind: ColumnMetric})
	}
	return cols
}

func (c *compilation) selectedRefs() map[string]bool {
	selected := make(map[string]bool, len(c.dims)+len(c.requested))
	for _, d := range c.dims {
		selected[d.Ref] = true
	}
	for _, m := range c.requested {
		selected[m.Ref] = true
	}
	return selected
}

// orderByItems validates order_by entries against the selected aliases.
func (c *compilation) orderByItems() ([]string, error) {
	selected := c.selectedRefs()
	var out []string
	for _, entry := range c.req.OrderBy {
		fields := strings.Fields(entry)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, fmt.Errorf("invalid order_by entry %q", entry)
		}
		ref := fields[0]
		if !selected[ref] {
			return nil, fmt.Errorf("order_by field %q is not a selected dimension or metric", ref)
		}
		dir := ""
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
				dir = " ASC"
			case "desc":
				dir = " DESC"
			default:
				return nil, fmt.Errorf("order_by direction %q must be asc or desc", fields[1])
			}
		}
		out = append(out, c.q(ref)+dir)
	}
	return out, nil
}

// applyTail sets ORDER BY, LIMIT and OFFSET on the outermost statement.
func (c *compilation) applyTail(sb *selectBuilder) error {
	ob, err := c.orderByItems()
	if err != nil {
		return err
	}
	sb.orderBy = ob
	if c.req.Limit > 0 {
		sb.limit = strconv.Itoa(c.req.Limit)
	}
	if c.req.Offset > 0 {
		sb.offset = strconv.Itoa(c.req.Offset)
	}
	return nil
}

// ungroupedSQL renders raw rows: dimension expressions and unaggregated
// metric expressions, no GROUP BY.
func (c *compilation) ungroupedSQL(tree *joinTree) (*Result, error) {
	sb := &selectBuilder{from: c.fromClause(tree.root)}
	for _, n := range tree.nodes[1:] {
		sb.joins = append(sb.joins, c.joinClauses(tree.parent[n])...)
	}
	for _, d := range c.dims {
		expr := c.binding(d.Model).dimensionSQL(d, c.dialect)
		sb.items = append(sb.items, expr+" AS "+c.q(d.Ref))
	}
	for _, node := range c.requested {
		if node.Metric.Kind != semantic.MetricAggregation {
			return nil, fmt.Errorf("metric %q: ungrouped mode supports aggregation metrics only, not %q", node.Ref, node.Metric.Kind)
		}
		sb.items = append(sb.items, c.binding(node.Model).rawSQL(node.Metric)+" AS "+c.q(node.Ref))
	}
	sb.where = c.predicates()
	if err := c.applyTail(sb); err != nil {
		return nil, err
	}
	return &Result{SQL: sb.SQL(), Columns: c.columns()}, nil
}

// dimensionOnlySQL renders a metric-free request: grouping by the
// dimensions deduplicates fan-out rows.
func (c *compilation) dimensionOnlySQL(tree *joinTree) (*Result, error) {
	sb := &selectBuilder{from: c.fromClause(tree.root)}
	for _, n := range tree.nodes[1:] {
		sb.joins = append(sb.joins, c.joinClauses(tree.parent[n])...)
	}
	for _, d := range c.dims {
		expr := c.binding(d.Model).dimensionSQL(d, c.dialect)
		sb.items = append(sb.items, expr+" AS "+c.q(d.Ref))
		sb.groupBy = append(sb.groupBy, expr)
	}
	sb.where = c.predicates()
	if err := c.applyTail(sb); err != nil {
		return nil, err
	}
	return &Result{SQL: sb.SQL(), Columns: c.columns()}, nil
}

// simpleSQL renders the single-statement shape used when the join tree
// cannot multiply rows.
func (c *compilation) simpleSQL(tree *joinTree) (*Result, error) {
	sb := &selectBuilder{from: c.fromClause(tree.root)}
	for _, n := range tree.nodes[1:] {
		sb.joins = append(sb.joins, c.joinClauses(tree.parent[n])...)
	}
	for _, d := range c.dims {
		expr := c.binding(d.Model).dimensionSQL(d, c.dialect)
		sb.items = append(sb.items, expr+" AS "+c.q(d.Ref))
		sb.groupBy = append(sb.groupBy, expr)
	}
	sb.where = c.predicates()

	var aggErr error
	leafSQL := func(l *metricNode) string {
		s, err := c.binding(l.Model).aggregateSQL(l.Metric, c.dialect, false)
		if err != nil && aggErr == nil {
			aggErr = err
		}
		return s
	}
	return c.finalize(sb, nil, nil, leafSQL, &aggErr)
}

// fanOutSQL renders the corrected shape: one aggregation CTE per
// metric-owning model, rooted at that model with every fan-out branch
// collapsed to DISTINCT key+dimension tuples, then a top-level join of the
// CTEs on the dimension columns.
func (c *compilation) fanOutSQL() (*Result, error) {
	var metricModels []string
	seen := make(map[string]bool)
	for _, l := range c.leaves {
		if !seen[l.Model] {
			seen[l.Model] = true
			metricModels = append(metricModels, l.Model)
		}
	}

	var names, bodies []string
	for _, mm := range metricModels {
		body, err := c.metricCTE(mm)
		if err != nil {
			return nil, err
		}
		names = append(names, cteName(mm))
		bodies = append(bodies, body)
	}

	first := cteName(metricModels[0])
	top := &selectBuilder{from: first}
	for _, mm := range metricModels[1:] {
		name := cteName(mm)
		if len(c.dims) == 0 {
			top.joins = append(top.joins, "CROSS JOIN "+name)
			continue
		}
		conds := make([]string, len(c.dims))
		for i, d := range c.dims {
			conds[i] = first + "." + c.q(d.Ref) + " = " + name + "." + c.q(d.Ref)
		}
		top.joins = append(top.joins, "LEFT JOIN "+name+" ON "+strings.Join(conds, " AND "))
	}
	for _, d := range c.dims {
		top.items = append(top.items, first+"."+c.q(d.Ref)+" AS "+c.q(d.Ref))
	}

	leafSQL := func(l *metricNode) string {
		return cteName(l.Model) + "." + c.q(l.Ref)
	}
	var noErr error
	return c.finalize(top, names, bodies, leafSQL, &noErr)
}

// cteName derives the aggregation CTE name for a metric model.
func cteName(model string) string {
	return model + "_agg"
}

// finalize appends metric items and the request tail. When a window metric
// is present the statement so far becomes a "base" CTE and the windows are
// applied in an outer SELECT over its aliases.
func (c *compilation) finalize(sb *selectBuilder, names, bodies []string, leafSQL func(*metricNode) string, leafErr *error) (*Result, error) {
	windowed := false
	for _, node := range c.requested {
		if node.isWindowed() {
			windowed = true
			break
		}
	}

	if !windowed {
		for _, node := range c.requested {
			expr, err := renderCombined(node, leafSQL)
			if err != nil {
				return nil, err
			}
			if *leafErr != nil {
				return nil, *leafErr
			}
			sb.items = append(sb.items, expr+" AS "+c.q(node.Ref))
		}
		if err := c.applyTail(sb); err != nil {
			return nil, err
		}
		sql := sb.SQL()
		if len(names) > 0 {
			sql = withClause(names, bodies) + sql
		}
		return &Result{SQL: sql, Columns: c.columns()}, nil
	}

	// Base layer: every non-window value the outer SELECT needs, under its
	// canonical alias. Window metric dependencies appear here even when not
	// requested directly.
	baseSeen := make(map[string]bool)
	addBase := func(node *metricNode) error {
		if baseSeen[node.Ref] {
			return nil
		}
		baseSeen[node.Ref] = true
		expr, err := renderCombined(node, leafSQL)
		if err != nil {
			return err
		}
		if *leafErr != nil {
			return *leafErr
		}
		sb.items = append(sb.items, expr+" AS "+c.q(node.Ref))
		return nil
	}
	for _, node := range c.requested {
		if node.isWindowed() {
			if err := addBase(node.Deps[0]); err != nil {
				return nil, err
			}
			continue
		}
		if err := addBase(node); err != nil {
			return nil, err
		}
	}

	names = append(names, "base")
	bodies = append(bodies, sb.SQL())

	final := &selectBuilder{from: "base"}
	for _, d := range c.dims {
		final.items = append(final.items, "base."+c.q(d.Ref)+" AS "+c.q(d.Ref))
	}
	for _, node := range c.requested {
		if !node.isWindowed() {
			final.items = append(final.items, "base."+c.q(node.Ref)+" AS "+c.q(node.Ref))
			continue
		}
		expr, err := c.windowExpr(node)
		if err != nil {
			return nil, err
		}
		final.items = append(final.items, expr+" AS "+c.q(node.Ref))
	}
	if err := c.applyTail(final); err != nil {
		return nil, err
	}
	return &Result{SQL: withClause(names, bodies) + final.SQL(), Columns: c.columns()}, nil
}

// timeAxis picks the request's time dimension for a window metric. A
// non-empty grain constrains the pick to that exact grain.
func (c *compilation) timeAxis(metricRef string, grain semantic.Grain) (dimRef, error) {
	for _, d := range c.dims {
		if d.Dim.Kind != semantic.KindTime {
			continue
		}
		if grain == "" || d.Grain == grain {
			return d, nil
		}
	}
	if grain == "" {
		return dimRef{}, fmt.Errorf("metric %q: request must include a time dimension", metricRef)
	}
	return dimRef{}, fmt.Errorf("metric %q: request must include a time dimension at %q granularity", metricRef, grain)
}

// windowPartition renders the PARTITION BY columns: every dimension except
// the time axis, plus any extra expressions.
func (c *compilation) windowPartition(axis dimRef, extra ...string) string {
	var cols []string
	for _, d := range c.dims {
		if d.Ref == axis.Ref {
			continue
		}
		cols = append(cols, "base."+c.q(d.Ref))
	}
	cols = append(cols, extra...)
	if len(cols) == 0 {
		return ""
	}
	return "PARTITION BY " + strings.Join(cols, ", ") + " "
}

// windowExpr renders a cumulative or time comparison metric over the base
// CTE's aliases.
func (c *compilation) windowExpr(node *metricNode) (string, error) {
	dep := "base." + c.q(node.Deps[0].Ref)

	switch node.Metric.Kind {
	case semantic.MetricCumulative:
		spec := node.Metric.Cumulative
		if spec.GrainToDate != "" {
			axis, err := c.timeAxis(node.Ref, "")
			if err != nil {
				return "", err
			}
			timeCol := "base." + c.q(axis.Ref)
			reset := c.dialect.DateTrunc(string(spec.GrainToDate), timeCol)
			return "SUM(" + dep + ") OVER (" + c.windowPartition(axis, reset) +
				"ORDER BY " + timeCol + " ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)", nil
		}
		n, unit, err := parseTrailingWindow(spec.Window)
		if err != nil {
			return "", fmt.Errorf("metric %q: %w", node.Ref, err)
		}
		axis, err := c.timeAxis(node.Ref, unit)
		if err != nil {
			return "", err
		}
		timeCol := "base." + c.q(axis.Ref)
		return "SUM(" + dep + ") OVER (" + c.windowPartition(axis) +
			"ORDER BY " + timeCol + " ROWS BETWEEN " + strconv.Itoa(n-1) + " PRECEDING AND CURRENT ROW)", nil

	case semantic.MetricTimeComparison:
		spec := node.Metric.TimeComparison
		axis, err := c.timeAxis(node.Ref, spec.Unit)
		if err != nil {
			return "", err
		}
		timeCol := "base." + c.q(axis.Ref)
		prior := "LAG(" + dep + ") OVER (" + c.windowPartition(axis) + "ORDER BY " + timeCol + ")"
		switch spec.Calculation {
		case semantic.CalcDifference:
			return dep + " - " + prior, nil
		case semantic.CalcPercentChange:
			return "100.0 * (" + dep + " - " + prior + ") / NULLIF(" + prior + ", 0)", nil
		case semantic.CalcRatio:
			return dep + " / NULLIF(" + prior + ", 0)", nil
		default:
			return "", fmt.Errorf("metric %q: unsupported calculation %q", node.Ref, spec.Calculation)
		}

	default:
		return "", fmt.Errorf("metric %q: kind %q is not a window metric", node.Ref, node.Metric.Kind)
	}
}

// parseTrailingWindow parses a trailing window spec like "7 day" or
// "4 weeks".
func parseTrailingWindow(window string) (int, semantic.Grain, error) {
	fields := strings.Fields(window)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("invalid cumulative window %q", window)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return 0, "", fmt.Errorf("invalid cumulative window %q", window)
	}
	unit := semantic.Grain(strings.TrimSuffix(strings.ToLower(fields[1]), "s"))
	if !semantic.ValidGrain(unit) {
		return 0, "", fmt.Errorf("invalid cumulative window unit %q", fields[1])
	}
	return n, unit, nil
}
