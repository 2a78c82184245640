package dag

import (
	"container/heap"
	"fmt"
)

// TopologicalSort returns every node ID such that each node comes after all
// of its dependencies. Among nodes that are ready at the same time, the one
// with the lowest rank goes first, then the one inserted first. A nil rank
// function ranks all nodes equally.
func (g *Graph) TopologicalSort(rank func(id string) int) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if rank == nil {
		rank = func(string) int { return 0 }
	}

	waiting := make(map[*node]int, len(g.nodes))
	ready := &readyQueue{}
	for _, n := range g.order {
		waiting[n] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, readyItem{node: n, rank: rank(n.id)})
		}
	}

	sorted := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(readyItem).node
		sorted = append(sorted, n.id)
		for _, d := range n.dependents {
			waiting[d]--
			if waiting[d] == 0 {
				heap.Push(ready, readyItem{node: d, rank: rank(d.id)})
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		if err := cycleError(g.findCycle()); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%d nodes could not be ordered", len(g.nodes)-len(sorted))
	}
	return sorted, nil
}

type readyItem struct {
	node *node
	rank int
}

// readyQueue is a min-heap of nodes ordered by rank, then insertion order.
type readyQueue []readyItem

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].rank != q[j].rank {
		return q[i].rank < q[j].rank
	}
	return q[i].node.seq < q[j].node.seq
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(readyItem)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
