// Package compile turns semantic requests into dialect-correct SQL. It is
// pure computation over an immutable semantic.Graph: no I/O, no logging,
// and byte-identical output for identical (graph, request) pairs.
package compile

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/pkg/dialect"
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// Request is the compilation contract exposed to callers. Dimensions and
// metrics are ordered reference strings; their order fixes the output
// column order.
type Request struct {
	// Dimensions are "model.dimension" references, optionally with a
	// granularity suffix: "orders.created_at__month".
	Dimensions []string

	// Metrics are "model.metric" references or bare graph-level metric
	// names.
	Metrics []string

	// Filters are raw boolean fragments using "model.field" or
	// "{model}.field" references.
	Filters []string

	// Segments are qualified "model.segment" names.
	Segments []string

	// OrderBy entries are "field [asc|desc]" where field is a selected
	// dimension or metric reference.
	OrderBy []string

	Limit  int
	Offset int

	// Ungrouped disables aggregation and GROUP BY and returns raw rows.
	Ungrouped bool

	// PreAggSchema optionally overrides the schema rollup tables are read
	// from. Empty reads them unqualified.
	PreAggSchema string

	// Dialect names the registered target dialect. Empty means "ansi".
	Dialect string
}

// ColumnKind classifies an output column.
type ColumnKind string

// Output column kinds.
const (
	ColumnDimension ColumnKind = "dimension"
	ColumnMetric    ColumnKind = "metric"
)

// Column describes one column of the compiled statement, in SELECT order.
type Column struct {
	Name string
	Kind ColumnKind
}

// Result is a compiled statement plus the structural facts callers need.
type Result struct {
	SQL     string
	Columns []Column
}

// Compile compiles a request against the graph into a single SQL statement.
func Compile(g *semantic.Graph, req Request) (*Result, error) {
	name := req.Dialect
	if name == "" {
		name = "ansi"
	}
	d, err := dialect.Require(name)
	if err != nil {
		return nil, err
	}
	c := &compilation{graph: g, dialect: d, req: req}
	return c.run()
}

// dimRef is a resolved dimension reference.
type dimRef struct {
	Ref   string // full reference string, also the output alias
	Model string
	Dim   *semantic.Dimension
	Grain semantic.Grain // "" when no suffix and no default applies
}

// splitRef splits "model.name" into its parts. ok is false for bare names.
func splitRef(ref string) (model, name string, ok bool) {
	i := strings.Index(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", ref, false
	}
	return ref[:i], ref[i+1:], true
}

// resolveDimension resolves a "model.dimension[__granularity]" reference.
func resolveDimension(g *semantic.Graph, ref string) (dimRef, error) {
	model, rest, ok := splitRef(ref)
	if !ok {
		return dimRef{}, &UnknownDimensionError{Dimension: ref}
	}
	m, found := g.Model(model)
	if !found {
		return dimRef{}, &UnknownModelError{Model: model}
	}

	name, grain, err := splitGranularity(m, rest)
	if err != nil {
		return dimRef{}, err
	}
	d, found := m.Dimension(name)
	if !found {
		return dimRef{}, &UnknownDimensionError{Model: model, Dimension: name}
	}
	if grain == "" && d.Kind == semantic.KindTime && d.Granularity != "" {
		// Bare time dimension falls back to its declared default grain.
		grain = d.Granularity
	}
	if grain != "" && !d.SupportsGrain(grain) {
		reason := fmt.Sprintf("dimension %q does not support grain %q", name, grain)
		if d.Kind != semantic.KindTime {
			reason = fmt.Sprintf("dimension %q is not a time dimension", name)
		}
		return dimRef{}, &InvalidGranularityError{Ref: ref, Reason: reason}
	}
	return dimRef{Ref: ref, Model: model, Dim: d, Grain: grain}, nil
}

// segRef is a resolved segment reference.
type segRef struct {
	Model   string
	Segment *semantic.Segment
}

// resolveSegment resolves a "model.segment" reference.
func resolveSegment(g *semantic.Graph, ref string) (segRef, error) {
	model, name, ok := splitRef(ref)
	if !ok {
		return segRef{}, &UnknownSegmentError{Segment: ref}
	}
	m, found := g.Model(model)
	if !found {
		return segRef{}, &UnknownModelError{Model: model}
	}
	s, found := m.Segment(name)
	if !found {
		return segRef{}, &UnknownSegmentError{Model: model, Segment: name}
	}
	return segRef{Model: model, Segment: s}, nil
}
