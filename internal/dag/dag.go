package dag

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Graph holds components and the dependencies between them. It is safe for
// concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	// order lists nodes as they were added; every traversal follows it.
	order []*node
}

// node keeps its edges in insertion order so traversals are deterministic.
type node struct {
	id         string
	seq        int
	deps       []*node // predecessors
	dependents []*node // successors
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	n := &node{id: id, seq: len(g.order)}
	g.nodes[id] = n
	g.order = append(g.order, n)
}

// Has reports whether the node exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge records that `to` depends on `from`. Both nodes must exist.
// Adding the same edge twice is a no-op.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", from, to)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	f, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("source node not found: %s", from)
	}
	t, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("destination node not found: %s", to)
	}
	if slices.Contains(t.deps, f) {
		return nil
	}
	t.deps = append(t.deps, f)
	f.dependents = append(f.dependents, t)
	return nil
}

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

// FindCycle returns the first cycle found, walking nodes in insertion
// order, as a path that starts and ends with the same node. It returns nil
// for an acyclic graph.
func (g *Graph) FindCycle() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.findCycle()
}

// DetectCycles returns an error naming the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return cycleError(g.findCycle())
}

func cycleError(cycle []string) error {
	if cycle == nil {
		return nil
	}
	return fmt.Errorf("cycle detected: %s", strings.Join(cycle, " -> "))
}

// findCycle is a depth-first search along dependent edges. Nodes on the
// current path are "open"; nodes whose subgraph is known to be acyclic are
// "done".
func (g *Graph) findCycle() []string {
	done := make(map[*node]bool, len(g.nodes))
	open := make(map[*node]bool)
	var path []*node

	var visit func(n *node) []string
	visit = func(n *node) []string {
		if done[n] {
			return nil
		}
		if open[n] {
			start := slices.Index(path, n)
			return append(ids(path[start:]), n.id)
		}
		open[n] = true
		path = append(path, n)
		for _, d := range n.dependents {
			if cycle := visit(d); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		delete(open, n)
		done[n] = true
		return nil
	}

	for _, n := range g.order {
		if cycle := visit(n); cycle != nil {
			return cycle
		}
	}
	return nil
}
