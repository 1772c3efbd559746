package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/strata/pkg/parser"
	"github.com/leapstack-labs/strata/pkg/semantic"

	_ "github.com/leapstack-labs/strata/pkg/dialects/ansi"
	_ "github.com/leapstack-labs/strata/pkg/dialects/bigquery"
	_ "github.com/leapstack-labs/strata/pkg/dialects/postgres"
)

// testGraph builds the shared fixture: orders with customers on the
// to-one side and line_items fanning out, plus a graph-level ratio.
func testGraph(t *testing.T) *semantic.Graph {
	t.Helper()
	g := semantic.NewGraph()

	orders := &semantic.Model{
		Name:       "orders",
		Table:      "orders",
		PrimaryKey: "id",
		Dimensions: []*semantic.Dimension{
			{Name: "status", Kind: semantic.KindCategorical, Expr: "{model}.status"},
			{Name: "created_at", Kind: semantic.KindTime, Expr: "{model}.created_at"},
		},
		Metrics: []*semantic.Metric{
			{Name: "revenue", Agg: semantic.AggSum, Expr: "{model}.amount"},
			{Name: "order_count", Agg: semantic.AggCount},
			{Name: "aov", Ratio: &semantic.RatioSpec{Numerator: "revenue", Denominator: "order_count"}},
			{Name: "net_revenue", Derived: &semantic.DerivedSpec{
				Expr:    "revenue - refunds",
				Metrics: []string{"revenue", "refunds"},
			}},
			{Name: "refunds", Agg: semantic.AggSum, Expr: "{model}.refund_amount"},
			{Name: "typical_amount", Agg: semantic.AggMedian, Expr: "{model}.amount"},
			{Name: "paid_amount", Agg: semantic.AggSum, Expr: "{model}.amount",
				Filters: []string{"{model}.status = 'paid'"}},
			{Name: "running_revenue", Cumulative: &semantic.CumulativeSpec{Metric: "revenue", Window: "7 day"}},
			{Name: "mtd_revenue", Cumulative: &semantic.CumulativeSpec{Metric: "revenue", GrainToDate: semantic.GrainMonth}},
			{Name: "revenue_mom", TimeComparison: &semantic.TimeComparisonSpec{
				Metric: "revenue", Unit: semantic.GrainMonth, Calculation: semantic.CalcPercentChange,
			}},
		},
		Relationships: []*semantic.Relationship{
			{Name: "customers", Cardinality: semantic.ManyToOne, LocalKey: "customer_id", ForeignKey: "id"},
			{Name: "line_items", Cardinality: semantic.OneToMany, LocalKey: "id", ForeignKey: "order_id"},
		},
		Segments: []*semantic.Segment{
			{Name: "completed", Predicate: "{model}.status = 'completed'", Public: true},
		},
	}

	customers := &semantic.Model{
		Name:       "customers",
		Table:      "customers",
		PrimaryKey: "id",
		Dimensions: []*semantic.Dimension{
			{Name: "region", Kind: semantic.KindCategorical, Expr: "{model}.region"},
		},
	}

	lineItems := &semantic.Model{
		Name:       "line_items",
		Table:      "line_items",
		PrimaryKey: "id",
		Dimensions: []*semantic.Dimension{
			{Name: "product", Kind: semantic.KindCategorical, Expr: "{model}.product"},
		},
		Metrics: []*semantic.Metric{
			{Name: "quantity", Agg: semantic.AggSum, Expr: "{model}.qty"},
		},
	}

	require.NoError(t, g.AddModel(orders))
	require.NoError(t, g.AddModel(customers))
	require.NoError(t, g.AddModel(lineItems))
	require.NoError(t, g.AddMetric(&semantic.Metric{
		Name:  "rev_per_item",
		Ratio: &semantic.RatioSpec{Numerator: "orders.revenue", Denominator: "line_items.quantity"},
	}))
	require.NoError(t, g.RebuildAdjacency())
	return g
}

// mustCompile compiles and asserts the generated SQL re-parses.
func mustCompile(t *testing.T, g *semantic.Graph, req Request) *Result {
	t.Helper()
	res, err := Compile(g, req)
	require.NoError(t, err)
	_, perr := parser.Parse(res.SQL)
	require.NoError(t, perr, "generated SQL must re-parse:\n%s", res.SQL)
	return res
}

func TestCompileSingleModelAggregation(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.revenue"},
	})

	assert.Contains(t, res.SQL, "SUM(orders.amount)")
	assert.Contains(t, res.SQL, "GROUP BY orders.status")
	assert.Contains(t, res.SQL, `AS "orders.status"`)
	assert.Equal(t, []Column{
		{Name: "orders.status", Kind: ColumnDimension},
		{Name: "orders.revenue", Kind: ColumnMetric},
	}, res.Columns)
}

func TestCompileIdempotent(t *testing.T) {
	g := testGraph(t)
	req := Request{
		Dimensions: []string{"customers.region", "orders.created_at__month"},
		Metrics:    []string{"orders.revenue", "orders.order_count"},
		OrderBy:    []string{"orders.revenue desc"},
		Limit:      10,
	}
	first := mustCompile(t, g, req)
	second := mustCompile(t, g, req)
	assert.Equal(t, first.SQL, second.SQL)
}

func TestCompileSingleJoin(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"customers.region"},
		Metrics:    []string{"orders.revenue"},
	})

	assert.Equal(t, 1, strings.Count(res.SQL, "JOIN"))
	assert.Contains(t, res.SQL, "LEFT JOIN customers ON orders.customer_id = customers.id")
}

func TestCompileRatioUsesNullif(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.aov"},
	})

	assert.Contains(t, res.SQL, "SUM(orders.amount) / NULLIF(COUNT(*), 0)")
	assert.NotContains(t, res.SQL, "amount) / COUNT")
}

func TestCompileDerivedMetric(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.net_revenue"},
	})

	assert.Contains(t, res.SQL, "(SUM(orders.amount)) - (SUM(orders.refund_amount))")
}

func TestCompileGranularityColumns(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.created_at__day", "orders.created_at__month"},
		Metrics:    []string{"orders.revenue"},
	})

	assert.Contains(t, res.SQL, `date_trunc('day', orders.created_at) AS "orders.created_at__day"`)
	assert.Contains(t, res.SQL, `date_trunc('month', orders.created_at) AS "orders.created_at__month"`)
}

func TestCompileGranularityErrors(t *testing.T) {
	g := testGraph(t)

	_, err := Compile(g, Request{Dimensions: []string{"orders.created_at__fortnight"}})
	var gerr *InvalidGranularityError
	require.ErrorAs(t, err, &gerr)

	_, err = Compile(g, Request{Dimensions: []string{"orders.status__month"}})
	require.ErrorAs(t, err, &gerr)
}

func TestCompileFanOutCorrection(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"line_items.product"},
		Metrics:    []string{"orders.revenue"},
	})

	// The metric is computed in its own CTE against DISTINCT line item
	// tuples, so an order with several line items of one product counts
	// its total once per group.
	assert.Contains(t, res.SQL, "WITH orders_agg AS (")
	assert.Contains(t, res.SQL, "SELECT DISTINCT line_items.order_id")
	assert.Contains(t, res.SQL, "ON orders.id = line_items.order_id")
	assert.Contains(t, res.SQL, "SUM(orders.amount)")
}

func TestCompileCrossModelRatio(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"rev_per_item"},
	})

	assert.Contains(t, res.SQL, "WITH orders_agg AS (")
	assert.Contains(t, res.SQL, "line_items_agg AS (")
	assert.Contains(t, res.SQL, `orders_agg."orders.revenue" / NULLIF(line_items_agg."line_items.quantity", 0)`)
	assert.Equal(t, []Column{
		{Name: "orders.status", Kind: ColumnDimension},
		{Name: "rev_per_item", Kind: ColumnMetric},
	}, res.Columns)
}

func TestCompileSegmentsAndFilters(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.revenue"},
		Filters:    []string{"{orders}.created_at__year = 2024"},
		Segments:   []string{"orders.completed"},
	})

	assert.Contains(t, res.SQL, "(date_trunc('year', orders.created_at) = 2024)")
	assert.Contains(t, res.SQL, "(orders.status = 'completed')")
}

func TestCompileFilterRejectsDDL(t *testing.T) {
	g := testGraph(t)
	for _, f := range []string{
		"orders.status = 'x'; DROP TABLE orders",
		"DELETE FROM orders",
		"1 = 1 OR drop",
	} {
		_, err := Compile(g, Request{
			Dimensions: []string{"orders.status"},
			Filters:    []string{f},
		})
		var ferr *InvalidFilterExpressionError
		require.ErrorAs(t, err, &ferr, "filter %q", f)
	}
}

func TestCompileOrderLimitOffset(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.revenue"},
		OrderBy:    []string{"orders.revenue desc", "orders.status"},
		Limit:      25,
		Offset:     50,
	})

	assert.Contains(t, res.SQL, `ORDER BY "orders.revenue" DESC, "orders.status"`)
	assert.Contains(t, res.SQL, "LIMIT 25")
	assert.Contains(t, res.SQL, "OFFSET 50")

	_, err := Compile(g, Request{
		Dimensions: []string{"orders.status"},
		OrderBy:    []string{"orders.revenue desc"},
	})
	require.Error(t, err, "order_by must reference a selected column")
}

func TestCompileUngrouped(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.revenue"},
		Ungrouped:  true,
	})

	assert.NotContains(t, res.SQL, "GROUP BY")
	assert.NotContains(t, res.SQL, "SUM(")
	assert.Contains(t, res.SQL, `orders.amount AS "orders.revenue"`)

	_, err := Compile(g, Request{
		Metrics:   []string{"orders.aov"},
		Ungrouped: true,
	})
	require.Error(t, err)
}

func TestCompileUngroupedBareCount(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.order_count"},
		Ungrouped:  true,
	})

	// A bare count has no expression; each raw row contributes 1.
	assert.Contains(t, res.SQL, `1 AS "orders.order_count"`)
	assert.NotContains(t, res.SQL, "COUNT(")
}

func TestCompileUngroupedMetricFilters(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Metrics:   []string{"orders.paid_amount"},
		Ungrouped: true,
	})

	assert.Contains(t, res.SQL,
		`CASE WHEN orders.status = 'paid' THEN orders.amount END AS "orders.paid_amount"`)
}

func TestCompileMedianStatement(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.typical_amount"},
	})
	assert.Contains(t, res.SQL,
		`PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY orders.amount) AS "orders.typical_amount"`)

	res = mustCompile(t, g, Request{
		Dimensions: []string{"orders.status"},
		Metrics:    []string{"orders.typical_amount"},
		Dialect:    "bigquery",
	})
	assert.Contains(t, res.SQL, "APPROX_QUANTILES(orders.amount, 2)[SAFE_OFFSET(1)]")
}

func TestCompileCumulativeWindow(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.created_at__day"},
		Metrics:    []string{"orders.running_revenue"},
	})

	assert.Contains(t, res.SQL, "WITH base AS (")
	assert.Contains(t, res.SQL, `SUM(base."orders.revenue") OVER (ORDER BY base."orders.created_at__day" ROWS BETWEEN 6 PRECEDING AND CURRENT ROW)`)

	// The trailing window needs a time axis at its unit.
	_, err := Compile(g, Request{
		Dimensions: []string{"orders.created_at__month"},
		Metrics:    []string{"orders.running_revenue"},
	})
	require.Error(t, err)
}

func TestCompileGrainToDate(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.created_at__day"},
		Metrics:    []string{"orders.mtd_revenue"},
	})

	assert.Contains(t, res.SQL, `PARTITION BY date_trunc('month', base."orders.created_at__day")`)
	assert.Contains(t, res.SQL, "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW")
}

func TestCompileTimeComparison(t *testing.T) {
	g := testGraph(t)
	res := mustCompile(t, g, Request{
		Dimensions: []string{"orders.created_at__month"},
		Metrics:    []string{"orders.revenue", "orders.revenue_mom"},
	})

	assert.Contains(t, res.SQL, `LAG(base."orders.revenue") OVER (ORDER BY base."orders.created_at__month")`)
	assert.Contains(t, res.SQL, "100.0 *")
	assert.Contains(t, res.SQL, "NULLIF(LAG(")
}

func TestCompileUnknownReferences(t *testing.T) {
	g := testGraph(t)

	_, err := Compile(g, Request{Dimensions: []string{"nope.status"}})
	var merr *UnknownModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "nope", merr.Model)

	_, err = Compile(g, Request{Dimensions: []string{"orders.nope"}})
	var derr *UnknownDimensionError
	require.ErrorAs(t, err, &derr)

	_, err = Compile(g, Request{Metrics: []string{"orders.nope"}})
	var xerr *UnknownMetricError
	require.ErrorAs(t, err, &xerr)

	_, err = Compile(g, Request{Dimensions: []string{"orders.status"}, Segments: []string{"orders.nope"}})
	var serr *UnknownSegmentError
	require.ErrorAs(t, err, &serr)
}

func TestCompileCyclicMetrics(t *testing.T) {
	g := semantic.NewGraph()
	m := &semantic.Model{
		Name: "m", Table: "m", PrimaryKey: "id",
		Metrics: []*semantic.Metric{
			{Name: "a", Derived: &semantic.DerivedSpec{Expr: "b + 1", Metrics: []string{"b"}}},
			{Name: "b", Derived: &semantic.DerivedSpec{Expr: "a + 1", Metrics: []string{"a"}}},
		},
	}
	require.NoError(t, g.AddModel(m))
	require.NoError(t, g.RebuildAdjacency())

	_, err := Compile(g, Request{Metrics: []string{"m.a"}})
	var cerr *CyclicMetricDependencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"m.a", "m.b", "m.a"}, cerr.Cycle)
}

func TestCompileBigQueryDialect(t *testing.T) {
	g := testGraph(t)
	res, err := Compile(g, Request{
		Dimensions: []string{"orders.created_at__month"},
		Metrics:    []string{"orders.revenue"},
		Dialect:    "bigquery",
	})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "timestamp_trunc(orders.created_at, MONTH)")
	assert.Contains(t, res.SQL, "`orders.created_at__month`")
}
