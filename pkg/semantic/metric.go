package semantic

import "fmt"

// Aggregation is a plain aggregate function applied to a metric expression.
type Aggregation string

// Supported aggregations.
const (
	AggSum           Aggregation = "sum"
	AggCount         Aggregation = "count"
	AggCountDistinct Aggregation = "count_distinct"
	AggAvg           Aggregation = "avg"
	AggMin           Aggregation = "min"
	AggMax           Aggregation = "max"
	AggMedian        Aggregation = "median"
)

// ValidAggregation reports whether a is a supported aggregation.
func ValidAggregation(a Aggregation) bool {
	switch a {
	case AggSum, AggCount, AggCountDistinct, AggAvg, AggMin, AggMax, AggMedian:
		return true
	}
	return false
}

// MetricKind discriminates the metric tagged union. Every consumption site
// must switch exhaustively over these values.
type MetricKind string

// Metric kinds.
const (
	MetricAggregation    MetricKind = "aggregation"
	MetricRatio          MetricKind = "ratio"
	MetricDerived        MetricKind = "derived"
	MetricCumulative     MetricKind = "cumulative"
	MetricTimeComparison MetricKind = "time_comparison"
)

// RatioSpec divides one metric by another, with divide-by-zero protection.
type RatioSpec struct {
	Numerator   string `koanf:"numerator"`
	Denominator string `koanf:"denominator"`
}

// DerivedSpec is a formula over other metrics. Expr references the metrics
// listed in Metrics by name.
type DerivedSpec struct {
	Expr    string   `koanf:"expr"`
	Metrics []string `koanf:"metrics"`
}

// CumulativeSpec is a running or windowed aggregate over a base metric.
// Exactly one of Window and GrainToDate is set: Window is a trailing span
// such as "7 day"; GrainToDate resets the running total at each boundary
// of the given grain (month-to-date, year-to-date, ...).
type CumulativeSpec struct {
	Metric      string `koanf:"metric"`
	Window      string `koanf:"window"`
	GrainToDate Grain  `koanf:"grain_to_date"`
}

// Calculation combines the two evaluations of a time comparison metric.
type Calculation string

// Supported time comparison calculations.
const (
	CalcDifference    Calculation = "difference"
	CalcPercentChange Calculation = "percent_change"
	CalcRatio         Calculation = "ratio"
)

// TimeComparisonSpec evaluates a base metric at the current and the prior
// time bucket and combines the two values.
type TimeComparisonSpec struct {
	Metric      string      `koanf:"metric"`
	Unit        Grain       `koanf:"unit"`
	Calculation Calculation `koanf:"calculation"`
}

// Metric is an aggregable or derived numeric quantity. It is a closed
// tagged union: Kind selects which payload is populated, and Validate
// enforces exactly-one-of.
type Metric struct {
	Name string     `koanf:"name"`
	Kind MetricKind `koanf:"kind"`

	// Aggregation payload.
	Agg  Aggregation `koanf:"agg"`
	Expr string      `koanf:"expr"`

	// Type-tagged payloads.
	Ratio          *RatioSpec          `koanf:"ratio"`
	Derived        *DerivedSpec        `koanf:"derived"`
	Cumulative     *CumulativeSpec     `koanf:"cumulative"`
	TimeComparison *TimeComparisonSpec `koanf:"time_comparison"`

	// Filters are boolean fragments with a {model} placeholder, ANDed
	// into the aggregate so only matching rows contribute.
	Filters []string `koanf:"filters"`

	// NonAdditiveDimension names a dimension the metric must not be
	// summed across (typically a snapshot date).
	NonAdditiveDimension string `koanf:"non_additive_dimension"`

	// Format carries display metadata; the compiler ignores it.
	Format string `koanf:"format"`
}

// Validate enforces the tagged-union invariant: the Kind matches the single
// populated payload. An empty Kind is inferred from the payload for
// convenience of hand-built graphs.
func (m *Metric) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("metric has no name")
	}
	populated := 0
	var inferred MetricKind
	if m.Agg != "" {
		populated++
		inferred = MetricAggregation
	}
	if m.Ratio != nil {
		populated++
		inferred = MetricRatio
	}
	if m.Derived != nil {
		populated++
		inferred = MetricDerived
	}
	if m.Cumulative != nil {
		populated++
		inferred = MetricCumulative
	}
	if m.TimeComparison != nil {
		populated++
		inferred = MetricTimeComparison
	}
	if populated != 1 {
		return fmt.Errorf("metric %q: exactly one of aggregation, ratio, derived, cumulative, time_comparison must be set", m.Name)
	}
	if m.Kind == "" {
		m.Kind = inferred
	}
	if m.Kind != inferred {
		return fmt.Errorf("metric %q: kind %q does not match populated payload %q", m.Name, m.Kind, inferred)
	}

	switch m.Kind {
	case MetricAggregation:
		if !ValidAggregation(m.Agg) {
			return fmt.Errorf("metric %q: unsupported aggregation %q", m.Name, m.Agg)
		}
		if m.Expr == "" && m.Agg != AggCount {
			return fmt.Errorf("metric %q: aggregation %q requires an expression", m.Name, m.Agg)
		}
	case MetricRatio:
		if m.Ratio.Numerator == "" || m.Ratio.Denominator == "" {
			return fmt.Errorf("metric %q: ratio requires numerator and denominator", m.Name)
		}
	case MetricDerived:
		if m.Derived.Expr == "" {
			return fmt.Errorf("metric %q: derived metric requires an expression", m.Name)
		}
		if len(m.Derived.Metrics) == 0 {
			return fmt.Errorf("metric %q: derived metric references no metrics", m.Name)
		}
	case MetricCumulative:
		if m.Cumulative.Metric == "" {
			return fmt.Errorf("metric %q: cumulative metric requires a base metric", m.Name)
		}
		if (m.Cumulative.Window == "") == (m.Cumulative.GrainToDate == "") {
			return fmt.Errorf("metric %q: cumulative metric requires exactly one of window and grain_to_date", m.Name)
		}
		if m.Cumulative.GrainToDate != "" && !ValidGrain(m.Cumulative.GrainToDate) {
			return fmt.Errorf("metric %q: unsupported grain_to_date %q", m.Name, m.Cumulative.GrainToDate)
		}
	case MetricTimeComparison:
		if m.TimeComparison.Metric == "" {
			return fmt.Errorf("metric %q: time comparison requires a base metric", m.Name)
		}
		if !ValidGrain(m.TimeComparison.Unit) {
			return fmt.Errorf("metric %q: unsupported comparison unit %q", m.Name, m.TimeComparison.Unit)
		}
		switch m.TimeComparison.Calculation {
		case CalcDifference, CalcPercentChange, CalcRatio:
		default:
			return fmt.Errorf("metric %q: unsupported calculation %q", m.Name, m.TimeComparison.Calculation)
		}
	default:
		return fmt.Errorf("metric %q: unknown kind %q", m.Name, m.Kind)
	}
	return nil
}

// References returns the metric names this metric depends on, in
// declaration order. Aggregation metrics have no dependencies.
func (m *Metric) References() []string {
	switch m.Kind {
	case MetricAggregation:
		return nil
	case MetricRatio:
		return []string{m.Ratio.Numerator, m.Ratio.Denominator}
	case MetricDerived:
		return append([]string(nil), m.Derived.Metrics...)
	case MetricCumulative:
		return []string{m.Cumulative.Metric}
	case MetricTimeComparison:
		return []string{m.TimeComparison.Metric}
	default:
		return nil
	}
}
