package semantic

import "fmt"

// PreAggregationKind classifies a pre-aggregation. Only rollups are
// currently supported.
type PreAggregationKind string

// Pre-aggregation kinds.
const (
	Rollup PreAggregationKind = "rollup"
)

// RefreshKey describes when a materialized rollup should be rebuilt. The
// compiler carries it as metadata for the materialization tooling; it does
// not affect query compilation.
type RefreshKey struct {
	Every string `koanf:"every"`
	SQL   string `koanf:"sql"`
}

// PreAggregation describes a materialized rollup that can substitute for
// base-table computation when it covers a request.
type PreAggregation struct {
	Name string             `koanf:"name"`
	Kind PreAggregationKind `koanf:"kind"`

	// Metrics and Dimensions are the covered member names, local to the
	// owning model.
	Metrics    []string `koanf:"metrics"`
	Dimensions []string `koanf:"dimensions"`

	// TimeDimension plus Granularity describe the rollup's time bucket.
	TimeDimension string `koanf:"time_dimension"`
	Granularity   Grain  `koanf:"granularity"`

	// PartitionGranularity controls physical partitioning of the rollup
	// table; it does not affect matching.
	PartitionGranularity Grain `koanf:"partition_granularity"`

	Refresh *RefreshKey `koanf:"refresh"`

	// Indexes are column lists the materializer should index.
	Indexes [][]string `koanf:"indexes"`
}

// Validate checks pre-aggregation invariants.
func (p *PreAggregation) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pre-aggregation has no name")
	}
	if p.Kind == "" {
		p.Kind = Rollup
	}
	if p.Kind != Rollup {
		return fmt.Errorf("pre-aggregation %q: unsupported kind %q", p.Name, p.Kind)
	}
	if len(p.Metrics) == 0 {
		return fmt.Errorf("pre-aggregation %q: covers no metrics", p.Name)
	}
	if (p.TimeDimension == "") != (p.Granularity == "") {
		return fmt.Errorf("pre-aggregation %q: time_dimension and granularity must be set together", p.Name)
	}
	if p.Granularity != "" && !ValidGrain(p.Granularity) {
		return fmt.Errorf("pre-aggregation %q: unsupported granularity %q", p.Name, p.Granularity)
	}
	return nil
}

// TableName derives the rollup's physical table name. The schema override
// is optional; the name itself is deterministic so that the compiler and
// the materialization tooling agree without coordination.
func (p *PreAggregation) TableName(model, schema string) string {
	name := model + "_rollup_" + p.Name
	if schema != "" {
		return schema + "." + name
	}
	return name
}

// CoversMetric reports whether the rollup covers the named metric.
func (p *PreAggregation) CoversMetric(name string) bool {
	for _, m := range p.Metrics {
		if m == name {
			return true
		}
	}
	return false
}

// CoversDimension reports whether the rollup covers the named dimension.
// The rollup's time dimension counts as covered.
func (p *PreAggregation) CoversDimension(name string) bool {
	if name == p.TimeDimension {
		return true
	}
	for _, d := range p.Dimensions {
		if d == name {
			return true
		}
	}
	return false
}
