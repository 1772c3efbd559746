package compile

import (
	"fmt"
	"strings"
)

// UnknownModelError reports a reference to a model that does not exist in
// the graph.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Model)
}

// UnknownDimensionError reports a reference to a dimension that does not
// exist on its model.
type UnknownDimensionError struct {
	Model     string
	Dimension string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("unknown dimension %q on model %q", e.Dimension, e.Model)
}

// UnknownMetricError reports a reference to a metric that does not exist.
// Model is empty for graph-level references.
type UnknownMetricError struct {
	Model  string
	Metric string
}

func (e *UnknownMetricError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("unknown metric %q", e.Metric)
	}
	return fmt.Sprintf("unknown metric %q on model %q", e.Metric, e.Model)
}

// UnknownSegmentError reports a reference to a segment that does not exist
// on its model.
type UnknownSegmentError struct {
	Model   string
	Segment string
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("unknown segment %q on model %q", e.Segment, e.Model)
}

// NoJoinPathError reports that two models referenced by one request are not
// connected by any relationship chain.
type NoJoinPathError struct {
	From   string
	To     string
	Models []string
}

func (e *NoJoinPathError) Error() string {
	if len(e.Models) > 0 {
		return fmt.Sprintf("no join path from %q to %q among models [%s]",
			e.From, e.To, strings.Join(e.Models, ", "))
	}
	return fmt.Sprintf("no join path from %q to %q", e.From, e.To)
}

// AmbiguousJoinPathError reports that two distinct shortest join paths
// compare equal even under the lexical relationship-name tie-break.
type AmbiguousJoinPathError struct {
	From  string
	To    string
	Paths []string
}

func (e *AmbiguousJoinPathError) Error() string {
	return fmt.Sprintf("ambiguous join path from %q to %q: candidates [%s]",
		e.From, e.To, strings.Join(e.Paths, "; "))
}

// CyclicMetricDependencyError reports a dependency cycle between metrics.
// Cycle holds the full path, first and last entries equal.
type CyclicMetricDependencyError struct {
	Cycle []string
}

func (e *CyclicMetricDependencyError) Error() string {
	return fmt.Sprintf("cyclic metric dependency: %s", strings.Join(e.Cycle, " -> "))
}

// InvalidGranularityError reports a granularity suffix that is unsupported,
// applied to a non-time dimension, or excluded by the dimension's declared
// granularity set.
type InvalidGranularityError struct {
	Ref    string
	Reason string
}

func (e *InvalidGranularityError) Error() string {
	return fmt.Sprintf("invalid granularity in %q: %s", e.Ref, e.Reason)
}

// InvalidFilterExpressionError reports a filter fragment that is malformed
// or disallowed.
type InvalidFilterExpressionError struct {
	Filter string
	Reason string
}

func (e *InvalidFilterExpressionError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %s", e.Filter, e.Reason)
}
