// Package graph analyzes the dependency structure of a job batch:
// cycle detection, topological order, critical path and parallel groups.
package graph

import (
	"fmt"
	"slices"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// Analysis is the outcome of analyzing an acyclic batch.
type Analysis struct {
	// Order is a topological order: every dependency precedes its dependents.
	// Ties are broken by submission order.
	Order []string
	// CriticalPath is the longest dependency chain, measured in edges.
	CriticalPath Path
	// Groups partitions Order into sets with no dependency path between
	// any two members. A scheduling hint, not a constraint.
	Groups [][]string
}

// Path is a dependency chain length plus the job ids attaining it.
type Path struct {
	Length int
	Ends   []string
}

// Graph holds forward and reverse adjacency of a batch.
// Dependency ids not present in the batch are treated as external and add
// no edge; they must never crash the analysis.
type Graph struct {
	jobs    []model.Job
	index   map[string]int // submission order
	deps    map[string][]string
	reverse map[string][]string
}

func New(jobs []model.Job) *Graph {
	g := &Graph{
		jobs:    jobs,
		index:   make(map[string]int, len(jobs)),
		deps:    make(map[string][]string, len(jobs)),
		reverse: make(map[string][]string, len(jobs)),
	}
	for i, j := range jobs {
		if _, ok := g.index[j.ID]; !ok {
			g.index[j.ID] = i
		}
	}
	for _, j := range jobs {
		for _, dep := range j.DependsOn {
			if _, ok := g.index[dep]; !ok {
				continue // external dependency
			}
			// self edges stay in, cycle detection names them
			g.deps[j.ID] = append(g.deps[j.ID], dep)
			g.reverse[dep] = append(g.reverse[dep], j.ID)
		}
	}
	return g
}

// Deps returns the in-batch dependency ids of a job.
func (g *Graph) Deps(id string) []string {
	return g.deps[id]
}

// Analyze runs cycle detection first; a cyclic batch is a fatal input error
// and produces no ordering at all.
func (g *Graph) Analyze() (Analysis, error) {
	if err := g.findCycle(); err != nil {
		return Analysis{}, err
	}

	order := g.topologicalOrder()
	dist := g.distances(order)

	return Analysis{
		Order:        order,
		CriticalPath: criticalPath(order, dist),
		Groups:       groups(order, dist),
	}, nil
}

// findCycle is a depth first search with an explicit recursion stack;
// a back edge into a node still on the stack names the offending edge.
func (g *Graph) findCycle() error {
	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(g.jobs))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range g.deps[id] {
			switch color[dep] {
			case gray:
				return fmt.Errorf("edge %s -> %s: %w", id, dep, model.ErrCycle)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, j := range g.jobs {
		if color[j.ID] == white {
			if err := visit(j.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalOrder is Kahn's algorithm over in-batch edges. Zero in-degree
// ties resolve by submission order for determinism. Anything not emitted
// (defensive, cannot happen on an acyclic graph) is appended at the end.
func (g *Graph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.jobs))
	for _, j := range g.jobs {
		indegree[j.ID] = len(g.deps[j.ID])
	}

	var ready []string
	for _, j := range g.jobs {
		if indegree[j.ID] == 0 {
			ready = append(ready, j.ID)
		}
	}

	order := make([]string, 0, len(g.jobs))
	emitted := make(map[string]struct{}, len(g.jobs))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		emitted[id] = struct{}{}

		released := false
		for _, dependent := range g.reverse[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			slices.SortFunc(ready, func(a, b string) int {
				return g.index[a] - g.index[b]
			})
		}
	}

	for _, j := range g.jobs {
		if _, ok := emitted[j.ID]; !ok {
			order = append(order, j.ID)
		}
	}
	return order
}

// distances computes the longest dependency chain (in edges) ending at
// each node, walking the topological order.
func (g *Graph) distances(order []string) map[string]int {
	dist := make(map[string]int, len(order))
	for _, id := range order {
		d := 0
		for _, dep := range g.deps[id] {
			if dist[dep]+1 > d {
				d = dist[dep] + 1
			}
		}
		dist[id] = d
	}
	return dist
}

func criticalPath(order []string, dist map[string]int) Path {
	var p Path
	for _, id := range order {
		switch {
		case dist[id] > p.Length:
			p.Length = dist[id]
			p.Ends = []string{id}
		case dist[id] == p.Length:
			p.Ends = append(p.Ends, id)
		}
	}
	return p
}

// groups partitions by chain depth: two nodes at the same depth cannot
// have a dependency path between them, so each group may run in parallel.
func groups(order []string, dist map[string]int) [][]string {
	if len(order) == 0 {
		return nil
	}
	max := 0
	for _, id := range order {
		if dist[id] > max {
			max = dist[id]
		}
	}
	out := make([][]string, max+1)
	for _, id := range order {
		out[dist[id]] = append(out[dist[id]], id)
	}
	return out
}
