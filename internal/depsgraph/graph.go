// Package depsgraph orders workspace packages for release (spec.md
// §4.9): a package must publish after every path-dependency it needs at
// its declared version. Scoped to normal/build dependency edges only —
// dev-dependency edges never gate publish order since they aren't part
// of what gets uploaded to the registry.
//
// Adapted from the teacher's pkg/depsgraph/graph.go Kahn's-algorithm
// topological sort (module-release-graph ordering), repurposed from Go
// module dependency edges to Cargo path-dependency edges.
package depsgraph

import (
	"fmt"
	"sort"

	"github.com/grovetools/release-plz-go/internal/model"
)

// Graph is a directed dependency graph over workspace package names:
// an edge from A to B means "A depends on B".
type Graph struct {
	nodes map[string]bool
	edges map[string][]string // name -> names it depends on
	rev   map[string][]string // name -> names that depend on it
}

// New builds a Graph from ws, considering only DepNormal and DepBuild
// edges (dev-dependencies are excluded per spec.md §4.9).
func New(ws *model.Workspace) *Graph {
	g := &Graph{
		nodes: make(map[string]bool),
		edges: make(map[string][]string),
		rev:   make(map[string][]string),
	}
	for _, pkg := range ws.Packages {
		g.nodes[pkg.Name] = true
	}
	for _, pkg := range ws.Packages {
		for _, dep := range pkg.PathDeps(model.DepNormal, model.DepBuild) {
			if !g.nodes[dep.Name] {
				continue // path dep outside the workspace
			}
			g.edges[pkg.Name] = append(g.edges[pkg.Name], dep.Name)
			g.rev[dep.Name] = append(g.rev[dep.Name], pkg.Name)
		}
	}
	return g
}

// ReleaseOrder returns package names grouped into waves: every name in
// wave N can be released in parallel once every wave before it has
// finished, since none of wave N's path-dependencies remain unreleased.
// subset, when non-nil, restricts consideration to those names (and
// their edges to each other) — used to order just the packages a run
// actually touched.
func (g *Graph) ReleaseOrder(subset map[string]bool) ([][]string, error) {
	consider := subset
	if consider == nil {
		consider = g.nodes
	}
	if len(consider) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(consider))
	for name := range consider {
		count := 0
		for _, dep := range g.edges[name] {
			if consider[dep] {
				count++
			}
		}
		inDegree[name] = count
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var waves [][]string
	processed := 0
	for len(queue) > 0 {
		wave := append([]string(nil), queue...)
		waves = append(waves, wave)
		processed += len(wave)

		var next []string
		for _, name := range queue {
			for _, dependent := range g.rev[name] {
				if !consider[dependent] {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		queue = next
	}

	if processed != len(consider) {
		var stuck []string
		for name, degree := range inDegree {
			if degree > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("depsgraph: dependency cycle among packages: %v", stuck)
	}

	return waves, nil
}
