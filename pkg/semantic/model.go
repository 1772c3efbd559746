// Package semantic defines the in-memory semantic model: Models with their
// dimensions, metrics, relationships, segments and pre-aggregations, plus
// the SemanticGraph that owns them.
//
// The graph is assembled once by loaders (internal/config or external
// callers) and is read-only during compilation. The only supported
// post-load mutation is Model.AddPreAggregation, which the caller must
// synchronize externally.
package semantic

import (
	"fmt"
	"strings"
)

// DimensionKind classifies a dimension.
type DimensionKind string

// Dimension kinds.
const (
	KindCategorical DimensionKind = "categorical"
	KindTime        DimensionKind = "time"
	KindNumeric     DimensionKind = "numeric"
	KindBoolean     DimensionKind = "boolean"
)

// Grain is a time resolution for truncating time dimensions.
type Grain string

// Supported grains, finest to coarsest.
const (
	GrainHour    Grain = "hour"
	GrainDay     Grain = "day"
	GrainWeek    Grain = "week"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
)

// grainOrder maps each grain to its position on the hour..year ladder.
var grainOrder = map[Grain]int{
	GrainHour:    0,
	GrainDay:     1,
	GrainWeek:    2,
	GrainMonth:   3,
	GrainQuarter: 4,
	GrainYear:    5,
}

// ValidGrain reports whether g is a supported grain.
func ValidGrain(g Grain) bool {
	_, ok := grainOrder[g]
	return ok
}

// Grains returns all supported grains, finest first.
func Grains() []Grain {
	return []Grain{GrainHour, GrainDay, GrainWeek, GrainMonth, GrainQuarter, GrainYear}
}

// ModelPlaceholder is the placeholder in dimension, metric, and segment
// expressions that is replaced with the owning model's SQL alias at render
// time.
const ModelPlaceholder = "{model}"

// Dimension is a groupable, filterable attribute of a Model.
type Dimension struct {
	Name string        `koanf:"name"`
	Kind DimensionKind `koanf:"kind"`

	// Expr is a SQL fragment with a {model} placeholder, e.g.
	// "{model}.created_at" or "lower({model}.status)".
	Expr string `koanf:"expr"`

	// Granularity is the default grain for time dimensions.
	Granularity Grain `koanf:"granularity"`

	// Granularities restricts the grains a time dimension supports.
	// Empty means all grains are allowed.
	Granularities []Grain `koanf:"granularities"`

	// Parent names the next-coarser dimension in a hierarchy
	// (e.g. city -> state -> country).
	Parent string `koanf:"parent"`

	// Format carries display metadata for downstream tools ("percent",
	// "currency", ...). The compiler ignores it.
	Format string `koanf:"format"`
}

// Render substitutes the model alias into the dimension expression.
func (d *Dimension) Render(alias string) string {
	return strings.ReplaceAll(d.Expr, ModelPlaceholder, alias)
}

// SupportsGrain reports whether the dimension may be truncated to g.
func (d *Dimension) SupportsGrain(g Grain) bool {
	if d.Kind != KindTime || !ValidGrain(g) {
		return false
	}
	if len(d.Granularities) == 0 {
		return true
	}
	for _, allowed := range d.Granularities {
		if allowed == g {
			return true
		}
	}
	return false
}

// Segment is a named, reusable boolean predicate on a Model.
type Segment struct {
	Name string `koanf:"name"`

	// Predicate is a boolean SQL fragment with a {model} placeholder.
	Predicate string `koanf:"predicate"`

	// Public controls whether outward-facing surfaces list the segment.
	// The compiler accepts both public and private segments.
	Public bool `koanf:"public"`
}

// Render substitutes the model alias into the segment predicate.
func (s *Segment) Render(alias string) string {
	return strings.ReplaceAll(s.Predicate, ModelPlaceholder, alias)
}

// Model is a queryable semantic entity backed by a table or an inline SQL
// source.
type Model struct {
	Name string `koanf:"name"`

	// Exactly one of Table and SQL is set.
	Table string `koanf:"table"`
	SQL   string `koanf:"sql"`

	PrimaryKey string `koanf:"primary_key"`

	Dimensions      []*Dimension      `koanf:"dimensions"`
	Metrics         []*Metric         `koanf:"metrics"`
	Relationships   []*Relationship   `koanf:"relationships"`
	Segments        []*Segment        `koanf:"segments"`
	PreAggregations []*PreAggregation `koanf:"pre_aggregations"`

	// DefaultTimeDimension names the dimension used when a request needs a
	// time axis but does not name one.
	DefaultTimeDimension string `koanf:"default_time_dimension"`
	DefaultGranularity   Grain  `koanf:"default_granularity"`

	dimIndex map[string]*Dimension
	metIndex map[string]*Metric
	segIndex map[string]*Segment
}

// Validate checks model-level invariants and builds the name indexes.
func (m *Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model has no name")
	}
	if (m.Table == "") == (m.SQL == "") {
		return fmt.Errorf("model %q: exactly one of table and sql must be set", m.Name)
	}
	m.dimIndex = make(map[string]*Dimension, len(m.Dimensions))
	for _, d := range m.Dimensions {
		if _, dup := m.dimIndex[d.Name]; dup {
			return fmt.Errorf("model %q: duplicate dimension %q", m.Name, d.Name)
		}
		if d.Kind != KindTime && len(d.Granularities) > 0 {
			return fmt.Errorf("model %q: dimension %q declares granularities but is not a time dimension", m.Name, d.Name)
		}
		m.dimIndex[d.Name] = d
	}
	m.metIndex = make(map[string]*Metric, len(m.Metrics))
	for _, met := range m.Metrics {
		if _, dup := m.metIndex[met.Name]; dup {
			return fmt.Errorf("model %q: duplicate metric %q", m.Name, met.Name)
		}
		if err := met.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", m.Name, err)
		}
		m.metIndex[met.Name] = met
	}
	m.segIndex = make(map[string]*Segment, len(m.Segments))
	for _, s := range m.Segments {
		if _, dup := m.segIndex[s.Name]; dup {
			return fmt.Errorf("model %q: duplicate segment %q", m.Name, s.Name)
		}
		m.segIndex[s.Name] = s
	}
	for _, r := range m.Relationships {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", m.Name, err)
		}
	}
	for _, p := range m.PreAggregations {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", m.Name, err)
		}
	}
	if m.DefaultTimeDimension != "" {
		d, ok := m.dimIndex[m.DefaultTimeDimension]
		if !ok {
			return fmt.Errorf("model %q: default time dimension %q does not exist", m.Name, m.DefaultTimeDimension)
		}
		if d.Kind != KindTime {
			return fmt.Errorf("model %q: default time dimension %q is not a time dimension", m.Name, m.DefaultTimeDimension)
		}
	}
	return nil
}

// Dimension returns the named dimension.
func (m *Model) Dimension(name string) (*Dimension, bool) {
	d, ok := m.dimIndex[name]
	return d, ok
}

// Metric returns the named metric.
func (m *Model) Metric(name string) (*Metric, bool) {
	met, ok := m.metIndex[name]
	return met, ok
}

// Segment returns the named segment.
func (m *Model) Segment(name string) (*Segment, bool) {
	s, ok := m.segIndex[name]
	return s, ok
}

// Source returns the FROM source for the model: the table name, or the
// inline SQL wrapped in parentheses.
func (m *Model) Source() string {
	if m.Table != "" {
		return m.Table
	}
	return "(" + strings.TrimRight(strings.TrimSpace(m.SQL), ";") + ")"
}

// AddPreAggregation appends a pre-aggregation to the model. This is the
// only supported post-load mutation; callers must serialize it against
// concurrent compilations.
func (m *Model) AddPreAggregation(p *PreAggregation) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, existing := range m.PreAggregations {
		if existing.Name == p.Name {
			return fmt.Errorf("model %q: pre-aggregation %q already exists", m.Name, p.Name)
		}
	}
	m.PreAggregations = append(m.PreAggregations, p)
	return nil
}
