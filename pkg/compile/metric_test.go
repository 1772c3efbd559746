package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/strata/pkg/dialect"
	"github.com/leapstack-labs/strata/pkg/semantic"

	"github.com/leapstack-labs/strata/pkg/dialects/ansi"
)

func ansiDialect() *dialect.Dialect {
	return ansi.Dialect
}

func TestAggregateSQLShapes(t *testing.T) {
	b := &sourceBinding{model: &semantic.Model{Name: "orders"}}
	d := ansiDialect()

	cases := []struct {
		metric semantic.Metric
		want   string
	}{
		{semantic.Metric{Agg: semantic.AggSum, Expr: "{model}.amount"}, "SUM(orders.amount)"},
		{semantic.Metric{Agg: semantic.AggCount}, "COUNT(*)"},
		{semantic.Metric{Agg: semantic.AggCountDistinct, Expr: "{model}.user_id"}, "COUNT(DISTINCT orders.user_id)"},
		{semantic.Metric{Agg: semantic.AggAvg, Expr: "{model}.amount"}, "AVG(orders.amount)"},
		{semantic.Metric{Agg: semantic.AggMedian, Expr: "{model}.amount"}, "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY orders.amount)"},
	}
	for _, tc := range cases {
		got, err := b.aggregateSQL(&tc.metric, d, false)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestAggregateSQLMetricFilters(t *testing.T) {
	b := &sourceBinding{model: &semantic.Model{Name: "orders"}}
	m := &semantic.Metric{
		Agg:     semantic.AggSum,
		Expr:    "{model}.amount",
		Filters: []string{"{model}.status = 'paid'", "{model}.amount > 0"},
	}

	got, err := b.aggregateSQL(m, ansiDialect(), false)
	require.NoError(t, err)
	assert.Equal(t, "SUM(CASE WHEN orders.status = 'paid' AND orders.amount > 0 THEN orders.amount END)", got)

	// Bare count still respects the filter guard.
	counted := &semantic.Metric{Agg: semantic.AggCount, Filters: []string{"{model}.status = 'paid'"}}
	got, err = b.aggregateSQL(counted, ansiDialect(), false)
	require.NoError(t, err)
	assert.Equal(t, "COUNT(CASE WHEN orders.status = 'paid' THEN 1 END)", got)
}

func TestAggregateSQLAvgAsFraction(t *testing.T) {
	b := &sourceBinding{model: &semantic.Model{Name: "orders"}}
	m := &semantic.Metric{Agg: semantic.AggAvg, Expr: "{model}.amount"}

	got, err := b.aggregateSQL(m, ansiDialect(), true)
	require.NoError(t, err)
	assert.Equal(t, "SUM(orders.amount) / NULLIF(COUNT(orders.amount), 0)", got)
}

func TestRenderDerivedSubstitutesWholeNamesOnly(t *testing.T) {
	// "rev" must not match inside "revenue".
	node := &metricNode{
		Ref: "orders.margin",
		Metric: &semantic.Metric{
			Name: "margin",
			Kind: semantic.MetricDerived,
			Derived: &semantic.DerivedSpec{
				Expr:    "revenue - rev",
				Metrics: []string{"revenue", "rev"},
			},
		},
		Deps: []*metricNode{
			{Ref: "orders.revenue", Metric: &semantic.Metric{Name: "revenue", Kind: semantic.MetricAggregation, Agg: semantic.AggSum}},
			{Ref: "orders.rev", Metric: &semantic.Metric{Name: "rev", Kind: semantic.MetricAggregation, Agg: semantic.AggSum}},
		},
	}

	got, err := renderDerived(node, func(dep *metricNode) string {
		if dep.Ref == "orders.revenue" {
			return "SUM(a)"
		}
		return "SUM(b)"
	})
	require.NoError(t, err)
	assert.Equal(t, "(SUM(a)) - (SUM(b))", got)
}

func TestRenderCombinedRatio(t *testing.T) {
	num := &metricNode{Ref: "m.a", Metric: &semantic.Metric{Name: "a", Kind: semantic.MetricAggregation, Agg: semantic.AggSum}}
	den := &metricNode{Ref: "m.b", Metric: &semantic.Metric{Name: "b", Kind: semantic.MetricAggregation, Agg: semantic.AggSum}}
	node := &metricNode{
		Ref:    "m.r",
		Metric: &semantic.Metric{Name: "r", Kind: semantic.MetricRatio, Ratio: &semantic.RatioSpec{Numerator: "a", Denominator: "b"}},
		Deps:   []*metricNode{num, den},
	}

	got, err := renderCombined(node, func(l *metricNode) string {
		if l == num {
			return "SUM(x)"
		}
		return "SUM(y)"
	})
	require.NoError(t, err)
	assert.Equal(t, "SUM(x) / NULLIF(SUM(y), 0)", got)
}

func TestParseTrailingWindow(t *testing.T) {
	n, unit, err := parseTrailingWindow("7 day")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, semantic.GrainDay, unit)

	n, unit, err = parseTrailingWindow("4 weeks")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, semantic.GrainWeek, unit)

	for _, bad := range []string{"", "day", "0 day", "7 fortnight", "7 day extra"} {
		_, _, err := parseTrailingWindow(bad)
		assert.Error(t, err, "window %q", bad)
	}
}

func TestResolveBareMetricPrefersContextModel(t *testing.T) {
	g := testGraph(t)
	r := newMetricResolver(g)

	node, err := r.resolve("revenue", "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders.revenue", node.Ref)
	assert.Equal(t, "orders", node.Model)

	// Without a context model the bare name falls through to the graph
	// metric table.
	node, err = r.resolve("rev_per_item", "")
	require.NoError(t, err)
	assert.Equal(t, "rev_per_item", node.Ref)
	assert.Equal(t, "", node.Model)
	require.Len(t, node.Deps, 2)
	assert.Equal(t, "orders.revenue", node.Deps[0].Ref)
}
