package compile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/strata/pkg/semantic"
)

// FindPath returns the shortest relationship chain from one model to
// another. When several shortest paths exist the lexically smallest
// sequence of relationship names wins; two distinct paths that compare
// equal even by name are an AmbiguousJoinPathError. Insertion order is
// never consulted.
func FindPath(g *semantic.Graph, from, to string) ([]semantic.Edge, error) {
	if _, ok := g.Model(from); !ok {
		return nil, &UnknownModelError{Model: from}
	}
	if _, ok := g.Model(to); !ok {
		return nil, &UnknownModelError{Model: to}
	}
	if from == to {
		return nil, nil
	}

	depth := shortestDepth(g, from, to)
	if depth < 0 {
		return nil, &NoJoinPathError{From: from, To: to}
	}

	paths := enumeratePaths(g, from, to, depth)
	sort.SliceStable(paths, func(i, j int) bool {
		return pathLess(paths[i], paths[j])
	})

	best := paths[0]
	if len(paths) > 1 && pathSignature(paths[1]) == pathSignature(best) {
		return nil, &AmbiguousJoinPathError{
			From:  from,
			To:    to,
			Paths: []string{pathSignature(best), pathSignature(paths[1])},
		}
	}
	return best, nil
}

// shortestDepth runs a BFS and returns the hop count to the target, or -1.
func shortestDepth(g *semantic.Graph, from, to string) int {
	visited := map[string]bool{from: true}
	frontier := []string{from}
	depth := 0
	for len(frontier) > 0 {
		depth++
		var next []string
		for _, node := range frontier {
			for _, e := range g.Edges(node) {
				if e.To == to {
					return depth
				}
				if !visited[e.To] {
					visited[e.To] = true
					next = append(next, e.To)
				}
			}
		}
		frontier = next
	}
	return -1
}

// enumeratePaths collects every simple path of exactly depth hops.
func enumeratePaths(g *semantic.Graph, from, to string, depth int) [][]semantic.Edge {
	var paths [][]semantic.Edge
	onPath := map[string]bool{from: true}

	var walk func(node string, trail []semantic.Edge)
	walk = func(node string, trail []semantic.Edge) {
		if len(trail) == depth {
			if node == to {
				paths = append(paths, append([]semantic.Edge(nil), trail...))
			}
			return
		}
		for _, e := range g.Edges(node) {
			if onPath[e.To] {
				continue
			}
			onPath[e.To] = true
			walk(e.To, append(trail, e))
			onPath[e.To] = false
		}
	}
	walk(from, nil)
	return paths
}

// pathSignature renders the relationship-name sequence of a path.
func pathSignature(path []semantic.Edge) string {
	names := make([]string, len(path))
	for i, e := range path {
		names[i] = e.Rel.Name
	}
	return strings.Join(names, " -> ")
}

// pathLess orders paths by their relationship-name sequence, then by the
// visited model sequence for stability.
func pathLess(a, b []semantic.Edge) bool {
	for i := range a {
		if a[i].Rel.Name != b[i].Rel.Name {
			return a[i].Rel.Name < b[i].Rel.Name
		}
		if a[i].To != b[i].To {
			return a[i].To < b[i].To
		}
	}
	return false
}

// joinTree is the minimal connecting subgraph of a request, rooted at the
// anchor model. Every node except the root has exactly one inbound edge.
type joinTree struct {
	root     string
	nodes    []string                 // root first, then in merge order
	parent   map[string]semantic.Edge // child -> edge arriving from parent
	children map[string][]string
}

// buildJoinTree connects the anchor to every target with shortest paths,
// merging them into a single tree so a diamond request joins each model at
// most once. Targets are processed in sorted order for determinism.
func buildJoinTree(g *semantic.Graph, anchor string, targets []string) (*joinTree, error) {
	t := &joinTree{
		root:     anchor,
		nodes:    []string{anchor},
		parent:   make(map[string]semantic.Edge),
		children: make(map[string][]string),
	}

	sorted := append([]string(nil), targets...)
	sort.Strings(sorted)
	for _, target := range sorted {
		if t.contains(target) {
			continue
		}
		path, err := FindPath(g, anchor, target)
		if err != nil {
			if nope, ok := err.(*NoJoinPathError); ok {
				nope.Models = append([]string{anchor}, sorted...)
			}
			return nil, err
		}
		for _, e := range path {
			if t.contains(e.To) {
				continue
			}
			if e.Rel.Cardinality == semantic.ManyToMany && e.Rel.Junction == nil {
				return nil, fmt.Errorf("relationship %q between %q and %q: many_to_many requires a junction model",
					e.Rel.Name, e.From, e.To)
			}
			t.parent[e.To] = e
			t.children[e.From] = append(t.children[e.From], e.To)
			t.nodes = append(t.nodes, e.To)
		}
	}
	return t, nil
}

func (t *joinTree) contains(model string) bool {
	for _, n := range t.nodes {
		if n == model {
			return true
		}
	}
	return false
}

// subtree returns node plus every model below it.
func (t *joinTree) subtree(node string) []string {
	out := []string{node}
	for _, c := range t.children[node] {
		out = append(out, t.subtree(c)...)
	}
	return out
}

// hasFanOut reports whether any edge of the tree can multiply rows.
func (t *joinTree) hasFanOut() bool {
	for _, n := range t.nodes {
		if e, ok := t.parent[n]; ok && e.Cardinality().FansOut() {
			return true
		}
	}
	return false
}
