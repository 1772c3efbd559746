package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBraces(t *testing.T) {
	cases := map[string]string{
		"{orders}.status = 'x'":          "orders.status = 'x'",
		"orders.status = '{orders}'":     "orders.status = '{orders}'",
		"{a}.x = 1 AND {b}.y = 2":        "a.x = 1 AND b.y = 2",
		"amount > 10":                    "amount > 10",
		"{not valid}.x = 1":              "{not valid}.x = 1",
		"json_col = '{\"k\": 1}'":        "json_col = '{\"k\": 1}'",
		"{line_items}.qty > {orders}.id": "line_items.qty > orders.id",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeBraces(in), "input %q", in)
	}
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("drop table x", "drop"))
	assert.True(t, containsWord("x or drop", "drop"))
	assert.False(t, containsWord("dropdown = 1", "drop"))
	assert.False(t, containsWord("backdrop = 1", "drop"))
	assert.False(t, containsWord("updated_at > now()", "update"))
}

func TestParseFilterClassifiesFields(t *testing.T) {
	g := testGraph(t)
	f, err := parseFilter(g, "{orders}.status = 'paid' AND orders.tax_rate > 0")
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, f.Models)
	assert.Equal(t, []string{"status"}, f.dimFields["orders"])
	assert.Equal(t, []string{"tax_rate"}, f.rawFields["orders"])
}

func TestParseFilterGrainSuffix(t *testing.T) {
	g := testGraph(t)
	f, err := parseFilter(g, "orders.created_at__month = '2024-01-01'")
	require.NoError(t, err)

	// The grain suffix still classifies as the underlying dimension.
	assert.Equal(t, []string{"created_at"}, f.dimFields["orders"])
	assert.Empty(t, f.rawFields["orders"])
}

func TestParseFilterUnknownModel(t *testing.T) {
	g := testGraph(t)
	_, err := parseFilter(g, "nope.status = 'x'")
	var merr *UnknownModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "nope", merr.Model)
}

func TestParseFilterRejections(t *testing.T) {
	g := testGraph(t)
	for _, raw := range []string{
		"orders.status = 'x';",
		"truncate",
		"orders.status = 'x' AND (SELECT", // unparseable
	} {
		_, err := parseFilter(g, raw)
		var ferr *InvalidFilterExpressionError
		require.ErrorAs(t, err, &ferr, "filter %q", raw)
	}
}

func TestFilterRenderSubstitutes(t *testing.T) {
	g := testGraph(t)
	f, err := parseFilter(g, "{orders}.status = 'paid'")
	require.NoError(t, err)

	sql := f.render(func(model, field string) string {
		return model + "_t." + field
	})
	assert.Equal(t, "orders_t.status = 'paid'", sql)
}

func TestCompileFilterAcrossFanOutBoundary(t *testing.T) {
	g := testGraph(t)

	// A predicate tying the metric's model to a collapsed branch cannot be
	// placed on either side of the DISTINCT.
	_, err := Compile(g, Request{
		Dimensions: []string{"line_items.product"},
		Metrics:    []string{"orders.revenue"},
		Filters:    []string{"orders.status = line_items.product"},
	})
	var ferr *InvalidFilterExpressionError
	require.ErrorAs(t, err, &ferr)
	assert.Contains(t, ferr.Reason, "fan-out boundary")

	// Scoped to one region it compiles fine.
	res := mustCompile(t, g, Request{
		Dimensions: []string{"line_items.product"},
		Metrics:    []string{"orders.revenue"},
		Filters:    []string{"orders.status = 'paid'", "line_items.product <> 'gift'"},
	})
	assert.Contains(t, res.SQL, "(orders.status = 'paid')")
	assert.Contains(t, res.SQL, "(line_items.product <> 'gift')")
}
