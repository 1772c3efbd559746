package semantic

import (
	"fmt"
	"sort"
)

// Edge is one traversable direction of a declared relationship, as indexed
// by the adjacency map. Forward edges go from the relationship's owner to
// its target; Reverse edges are the synthesized opposite direction.
type Edge struct {
	From string
	To   string

	// Owner is the model that declares the relationship.
	Owner string
	Rel   *Relationship

	Reverse bool
}

// Cardinality returns the cardinality seen when traversing this edge.
func (e Edge) Cardinality() Cardinality {
	if e.Reverse {
		return e.Rel.Cardinality.Invert()
	}
	return e.Rel.Cardinality
}

// Graph owns all models plus graph-level metrics and the adjacency index
// derived from relationships. Build it once, call RebuildAdjacency, then
// treat it as read-only.
type Graph struct {
	models  map[string]*Model
	metrics map[string]*Metric

	// adjacency maps model name to its outgoing edges, sorted by
	// relationship name then target so traversal order never depends on
	// insertion order.
	adjacency map[string][]Edge
}

// NewGraph returns an empty semantic graph.
func NewGraph() *Graph {
	return &Graph{
		models:    make(map[string]*Model),
		metrics:   make(map[string]*Metric),
		adjacency: make(map[string][]Edge),
	}
}

// AddModel validates and adds a model. Model names are unique per graph.
func (g *Graph) AddModel(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, dup := g.models[m.Name]; dup {
		return fmt.Errorf("model %q already exists", m.Name)
	}
	g.models[m.Name] = m
	return nil
}

// AddMetric validates and adds a graph-level metric, addressable without a
// model qualifier.
func (g *Graph) AddMetric(m *Metric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, dup := g.metrics[m.Name]; dup {
		return fmt.Errorf("metric %q already exists", m.Name)
	}
	g.metrics[m.Name] = m
	return nil
}

// Model returns the named model.
func (g *Graph) Model(name string) (*Model, bool) {
	m, ok := g.models[name]
	return m, ok
}

// Metric returns the named graph-level metric.
func (g *Graph) Metric(name string) (*Metric, bool) {
	m, ok := g.metrics[name]
	return m, ok
}

// ModelNames returns all model names, sorted.
func (g *Graph) ModelNames() []string {
	names := make([]string, 0, len(g.models))
	for name := range g.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MetricNames returns all graph-level metric names, sorted.
func (g *Graph) MetricNames() []string {
	names := make([]string, 0, len(g.metrics))
	for name := range g.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RebuildAdjacency rebuilds the adjacency index from the declared
// relationships. Call it after any bulk load and before compiling.
func (g *Graph) RebuildAdjacency() error {
	adjacency := make(map[string][]Edge, len(g.models))
	for _, name := range g.ModelNames() {
		m := g.models[name]
		for _, rel := range m.Relationships {
			target := rel.Target()
			if _, ok := g.models[target]; !ok {
				return fmt.Errorf("model %q: relationship %q targets unknown model %q", m.Name, rel.Name, target)
			}
			if rel.Junction != nil {
				if _, ok := g.models[rel.Junction.Model]; !ok {
					return fmt.Errorf("model %q: relationship %q uses unknown junction model %q", m.Name, rel.Name, rel.Junction.Model)
				}
			}
			adjacency[m.Name] = append(adjacency[m.Name], Edge{
				From:  m.Name,
				To:    target,
				Owner: m.Name,
				Rel:   rel,
			})
			adjacency[target] = append(adjacency[target], Edge{
				From:    target,
				To:      m.Name,
				Owner:   m.Name,
				Rel:     rel,
				Reverse: true,
			})
		}
	}
	for name := range adjacency {
		edges := adjacency[name]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Rel.Name != edges[j].Rel.Name {
				return edges[i].Rel.Name < edges[j].Rel.Name
			}
			return edges[i].To < edges[j].To
		})
	}
	g.adjacency = adjacency
	return nil
}

// Edges returns the outgoing edges of a model in deterministic order.
func (g *Graph) Edges(model string) []Edge {
	return g.adjacency[model]
}
