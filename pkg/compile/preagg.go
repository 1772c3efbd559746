package compile

import "github.com/leapstack-labs/strata/pkg/semantic"

// modelNeeds is what one compilation demands from a single model, collected
// before source binding.
type modelNeeds struct {
	// metrics are the plain-aggregation metrics computed on the model.
	metrics []*semantic.Metric
	// dims are the requested dimensions on the model.
	dims []dimRef
	// filterDims are local dimension names referenced by request filters.
	filterDims []string
	// opaque is set when the model is touched by predicates the matcher
	// cannot prove covered: segments, or filters on raw columns.
	opaque bool
	// joined is set when the model participates in any join. Rollup tables
	// do not materialize join keys, so joined models never substitute.
	joined bool
}

// matchPreAggregation returns a rollup-backed binding for the model when
// one of its pre-aggregations covers everything the request needs from it,
// or nil. Absence of a match never blocks compilation. Rollups are checked
// in declaration order and the first match wins.
func matchPreAggregation(m *semantic.Model, needs modelNeeds, schema string) *sourceBinding {
	if needs.opaque || needs.joined || len(needs.metrics) == 0 {
		return nil
	}

	for _, p := range m.PreAggregations {
		if p.Kind != semantic.Rollup {
			continue
		}
		if !rollupCovers(p, needs) {
			continue
		}
		exact := rollupExactDims(p, needs.dims)
		if !nonAdditiveOK(needs.metrics, exact) {
			continue
		}
		return &sourceBinding{model: m, rollup: p, exactDims: exact, schema: schema}
	}
	return nil
}

// rollupCovers checks the subset invariant: every needed metric, dimension,
// granularity, and filter dimension is covered by the rollup.
func rollupCovers(p *semantic.PreAggregation, needs modelNeeds) bool {
	for _, met := range needs.metrics {
		if !p.CoversMetric(met.Name) {
			return false
		}
	}
	for _, ref := range needs.dims {
		if ref.Grain != "" || ref.Dim.Kind == semantic.KindTime {
			// Time buckets match only at the rollup's stored granularity.
			if ref.Dim.Name != p.TimeDimension || ref.Grain != p.Granularity {
				return false
			}
			continue
		}
		if !coversPlainDimension(p, ref.Dim.Name) {
			return false
		}
	}
	for _, name := range needs.filterDims {
		if !coversPlainDimension(p, name) {
			return false
		}
	}
	return true
}

// coversPlainDimension checks membership in the rollup's non-time
// dimension list.
func coversPlainDimension(p *semantic.PreAggregation, name string) bool {
	for _, d := range p.Dimensions {
		if d == name {
			return true
		}
	}
	return false
}

// rollupExactDims reports whether the requested dimensions equal the
// rollup's covered set, making each output group exactly one stored row.
func rollupExactDims(p *semantic.PreAggregation, dims []dimRef) bool {
	requested := make(map[string]bool, len(dims))
	for _, ref := range dims {
		requested[ref.Dim.Name] = true
	}
	covered := make(map[string]bool, len(p.Dimensions)+1)
	for _, d := range p.Dimensions {
		covered[d] = true
	}
	if p.TimeDimension != "" {
		covered[p.TimeDimension] = true
	}
	if len(requested) != len(covered) {
		return false
	}
	for d := range covered {
		if !requested[d] {
			return false
		}
	}
	return true
}

// nonAdditiveOK rejects re-aggregation of count_distinct, avg, and median
// unless each group maps to one stored row.
func nonAdditiveOK(metrics []*semantic.Metric, exact bool) bool {
	if exact {
		return true
	}
	for _, m := range metrics {
		switch m.Agg {
		case semantic.AggCountDistinct, semantic.AggAvg, semantic.AggMedian:
			return false
		}
	}
	return true
}
