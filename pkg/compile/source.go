package compile

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/pkg/dialect"
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// sourceBinding fixes where a model's rows come from for one compilation:
// the base table/SQL, or a matched rollup. All dimension and aggregate
// rendering for the model goes through the binding so a substitution
// changes every consumer at once.
type sourceBinding struct {
	model  *semantic.Model
	rollup *semantic.PreAggregation

	// exactDims is set when the request's dimension set on this model
	// equals the rollup's covered set, which makes each group a single
	// rollup row.
	exactDims bool

	schema string // rollup schema override
}

// from returns the FROM source for the binding.
func (b *sourceBinding) from() string {
	if b.rollup != nil {
		return b.rollup.TableName(b.model.Name, b.schema)
	}
	return b.model.Source()
}

// alias is the SQL alias the model's columns are addressed through.
func (b *sourceBinding) alias() string {
	return b.model.Name
}

// dimensionSQL renders a dimension reference against this binding. Rollup
// columns are stored under the dimension name and the time column is
// already truncated, so no expression or truncation applies there.
func (b *sourceBinding) dimensionSQL(ref dimRef, d *dialect.Dialect) string {
	if b.rollup != nil {
		return b.alias() + "." + ref.Dim.Name
	}
	expr := ref.Dim.Render(b.alias())
	if ref.Grain != "" {
		expr = d.DateTrunc(string(ref.Grain), expr)
	}
	return expr
}

// aggregateSQL renders a plain aggregation metric against this binding.
// avgAsFraction renders avg as corrected sum over corrected count, used in
// fan-out subqueries.
func (b *sourceBinding) aggregateSQL(m *semantic.Metric, d *dialect.Dialect, avgAsFraction bool) (string, error) {
	if b.rollup != nil {
		return b.rollupAggregateSQL(m)
	}

	alias := b.alias()
	expr := strings.ReplaceAll(m.Expr, semantic.ModelPlaceholder, alias)

	cond := ""
	if len(m.Filters) > 0 {
		parts := make([]string, len(m.Filters))
		for i, f := range m.Filters {
			parts[i] = strings.ReplaceAll(f, semantic.ModelPlaceholder, alias)
		}
		cond = strings.Join(parts, " AND ")
	}

	guarded := func(value string) string {
		if cond == "" {
			return value
		}
		return "CASE WHEN " + cond + " THEN " + value + " END"
	}

	switch m.Agg {
	case semantic.AggSum:
		return "SUM(" + guarded(expr) + ")", nil
	case semantic.AggCount:
		if expr == "" {
			if cond == "" {
				return "COUNT(*)", nil
			}
			return "COUNT(" + guarded("1") + ")", nil
		}
		return "COUNT(" + guarded(expr) + ")", nil
	case semantic.AggCountDistinct:
		return "COUNT(DISTINCT " + guarded(expr) + ")", nil
	case semantic.AggAvg:
		if avgAsFraction {
			v := guarded(expr)
			return "SUM(" + v + ") / NULLIF(COUNT(" + v + "), 0)", nil
		}
		return "AVG(" + guarded(expr) + ")", nil
	case semantic.AggMin:
		return "MIN(" + guarded(expr) + ")", nil
	case semantic.AggMax:
		return "MAX(" + guarded(expr) + ")", nil
	case semantic.AggMedian:
		return d.Median(guarded(expr)), nil
	default:
		return "", fmt.Errorf("metric %q: unsupported aggregation %q", m.Name, m.Agg)
	}
}

// rollupAggregateSQL re-aggregates a pre-aggregated column. Sums and counts
// re-aggregate with SUM; min/max keep their own function; the non-additive
// aggregations are only valid when the request's dimensions equal the
// rollup's, in which case each group is exactly one stored row.
func (b *sourceBinding) rollupAggregateSQL(m *semantic.Metric) (string, error) {
	col := b.alias() + "." + m.Name
	switch m.Agg {
	case semantic.AggSum, semantic.AggCount:
		return "SUM(" + col + ")", nil
	case semantic.AggMin:
		return "MIN(" + col + ")", nil
	case semantic.AggMax:
		return "MAX(" + col + ")", nil
	case semantic.AggCountDistinct, semantic.AggAvg, semantic.AggMedian:
		if !b.exactDims {
			return "", fmt.Errorf("metric %q: aggregation %q cannot re-aggregate rollup %q", m.Name, m.Agg, b.rollup.Name)
		}
		return "MAX(" + col + ")", nil
	default:
		return "", fmt.Errorf("metric %q: unsupported aggregation %q", m.Name, m.Agg)
	}
}

// rawSQL renders a metric's unaggregated expression, used by ungrouped
// mode. A bare count has no expression, so each row contributes 1. Metric
// filters guard the raw value the same way they guard the aggregate:
// non-matching rows yield NULL.
func (b *sourceBinding) rawSQL(m *semantic.Metric) string {
	if b.rollup != nil {
		return b.alias() + "." + m.Name
	}
	alias := b.alias()
	expr := strings.ReplaceAll(m.Expr, semantic.ModelPlaceholder, alias)
	if expr == "" {
		expr = "1"
	}
	if len(m.Filters) == 0 {
		return expr
	}
	parts := make([]string, len(m.Filters))
	for i, f := range m.Filters {
		parts[i] = strings.ReplaceAll(f, semantic.ModelPlaceholder, alias)
	}
	return "CASE WHEN " + strings.Join(parts, " AND ") + " THEN " + expr + " END"
}
