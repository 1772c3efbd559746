package compile

import (
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// Fan-out correction. Each metric-owning model gets its own aggregation
// CTE rooted at that model, so no edge on the way to the metric's rows can
// multiply them. Every fan-out branch hanging off that tree contributes
// only dimensions and is collapsed to DISTINCT (join key, dimension)
// tuples before joining, which keeps each of the metric model's rows
// appearing exactly once per output group. The aggregate therefore equals
// its unjoined value, for sum, count, count_distinct, and avg alike.

// regionMap assigns each tree node to its rendering region: "" for the
// plain join spine, or the name of the topmost collapse root above it.
func regionMap(tree *joinTree) map[string]string {
	region := make(map[string]string, len(tree.nodes))
	for _, n := range tree.nodes[1:] {
		e := tree.parent[n]
		if r := region[e.From]; r != "" {
			region[n] = r
			continue
		}
		if e.Cardinality().FansOut() {
			region[n] = n
		} else {
			region[n] = ""
		}
	}
	return region
}

// filterRegion returns the single region a filter belongs to. A filter
// whose references straddle a collapse boundary cannot be scoped safely
// and is rejected.
func filterRegion(f *filterExpr, region map[string]string) (string, error) {
	r := ""
	set := false
	for _, m := range f.Models {
		mr := region[m]
		if !set {
			r, set = mr, true
			continue
		}
		if mr != r {
			return "", &InvalidFilterExpressionError{Filter: f.Raw, Reason: "filter spans a fan-out boundary"}
		}
	}
	return r, nil
}

// metricCTE renders the aggregation CTE for one metric-owning model.
func (c *compilation) metricCTE(mm string) (string, error) {
	targetSet := make(map[string]bool)
	for _, d := range c.dims {
		targetSet[d.Model] = true
	}
	for _, f := range c.filters {
		for _, m := range f.Models {
			targetSet[m] = true
		}
	}
	for _, s := range c.segments {
		targetSet[s.Model] = true
	}
	delete(targetSet, mm)
	var targets []string
	for m := range targetSet {
		targets = append(targets, m)
	}

	tree, err := buildJoinTree(c.graph, mm, targets)
	if err != nil {
		return "", err
	}
	region := regionMap(tree)

	sb := &selectBuilder{from: c.fromClause(mm)}
	for _, n := range tree.nodes[1:] {
		switch region[n] {
		case "":
			sb.joins = append(sb.joins, c.joinClauses(tree.parent[n])...)
		case n:
			join, err := c.collapseJoin(tree, region, n)
			if err != nil {
				return "", err
			}
			sb.joins = append(sb.joins, join)
		}
	}

	for _, d := range c.dims {
		var expr string
		if r := region[d.Model]; r != "" {
			expr = r + "." + c.q(d.Ref)
		} else {
			expr = c.binding(d.Model).dimensionSQL(d, c.dialect)
		}
		sb.items = append(sb.items, expr+" AS "+c.q(d.Ref))
		sb.groupBy = append(sb.groupBy, expr)
	}

	for _, l := range c.leaves {
		if l.Model != mm {
			continue
		}
		agg, err := c.binding(mm).aggregateSQL(l.Metric, c.dialect, true)
		if err != nil {
			return "", err
		}
		sb.items = append(sb.items, agg+" AS "+c.q(l.Ref))
	}

	for _, f := range c.filters {
		fr, err := filterRegion(f, region)
		if err != nil {
			return "", err
		}
		if fr == "" {
			sb.where = append(sb.where, "("+f.render(c.filterResolve)+")")
		}
	}
	for _, s := range c.segments {
		if region[s.Model] == "" {
			sb.where = append(sb.where, "("+s.Segment.Render(s.Model)+")")
		}
	}

	return sb.SQL(), nil
}

// collapseJoin renders the join against a collapsed fan-out branch: a
// DISTINCT subquery over the branch's models exposing the join key and the
// branch's requested dimension columns, aliased as the branch root.
func (c *compilation) collapseJoin(tree *joinTree, region map[string]string, root string) (string, error) {
	e := tree.parent[root]
	inSub := make(map[string]bool)
	for _, n := range tree.subtree(root) {
		inSub[n] = true
	}

	inner := &selectBuilder{distinct: true}
	var on string

	if e.Rel.Cardinality == semantic.ManyToMany {
		j := e.Rel.Junction
		jm, _ := c.graph.Model(j.Model)
		jfrom := j.Model
		if src := jm.Source(); src != j.Model {
			jfrom = src + " AS " + j.Model
		}
		inner.from = jfrom
		if !e.Reverse {
			inner.joins = append(inner.joins,
				"LEFT JOIN "+c.fromClause(root)+" ON "+j.Model+"."+j.ForeignKey+" = "+root+"."+e.Rel.ForeignKey)
			inner.items = append(inner.items, j.Model+"."+j.LocalKey+" AS "+j.LocalKey)
			on = e.From + "." + e.Rel.LocalKey + " = " + root + "." + j.LocalKey
		} else {
			inner.joins = append(inner.joins,
				"LEFT JOIN "+c.fromClause(root)+" ON "+j.Model+"."+j.LocalKey+" = "+root+"."+e.Rel.LocalKey)
			inner.items = append(inner.items, j.Model+"."+j.ForeignKey+" AS "+j.ForeignKey)
			on = e.From + "." + e.Rel.ForeignKey + " = " + root + "." + j.ForeignKey
		}
	} else {
		inner.from = c.fromClause(root)
		parentKey, childKey := e.Rel.LocalKey, e.Rel.ForeignKey
		if e.Reverse {
			parentKey, childKey = e.Rel.ForeignKey, e.Rel.LocalKey
		}
		inner.items = append(inner.items, root+"."+childKey)
		on = e.From + "." + parentKey + " = " + root + "." + childKey
	}

	for _, n := range tree.nodes {
		if inSub[n] && n != root {
			inner.joins = append(inner.joins, c.joinClauses(tree.parent[n])...)
		}
	}

	for _, d := range c.dims {
		if !inSub[d.Model] {
			continue
		}
		inner.items = append(inner.items, c.binding(d.Model).dimensionSQL(d, c.dialect)+" AS "+c.q(d.Ref))
	}

	for _, f := range c.filters {
		fr, err := filterRegion(f, region)
		if err != nil {
			return "", err
		}
		if fr == root {
			inner.where = append(inner.where, "("+f.render(c.filterResolve)+")")
		}
	}
	for _, s := range c.segments {
		if inSub[s.Model] {
			inner.where = append(inner.where, "("+s.Segment.Render(s.Model)+")")
		}
	}

	return "LEFT JOIN (" + inner.compact() + ") AS " + root + " ON " + on, nil
}
