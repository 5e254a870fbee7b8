package partitions

import (
	"math"
	"math/rand/v2"
)

// level is one step of the coarsening hierarchy. cmap sends each node of the
// finer graph to its node in graph.
type level struct {
	graph *Graph
	cmap  []int
}

// coarsen builds the hierarchy by heavy-edge matching until the graph has at
// most coarsenTo nodes or a step shrinks it by less than 5%. The first entry
// is the input graph with a nil cmap.
func coarsen(gr *Graph, coarsenTo int, rng *rand.Rand) []level {
	levels := []level{{graph: gr}}
	maxW := int(math.Ceil(1.5 * float64(gr.TotalWeight()) / float64(coarsenTo)))
	maxW = max(maxW, 2)
	for cur := gr; cur.NumNodes() > coarsenTo; {
		cmap, nc := matchHeavyEdges(cur, maxW, rng)
		if float64(nc) > 0.95*float64(cur.NumNodes()) {
			break
		}
		next := contract(cur, cmap, nc)
		levels = append(levels, level{graph: next, cmap: cmap})
		cur = next
	}
	return levels
}

// matchHeavyEdges visits nodes in random order and pairs each unmatched node
// with the unmatched neighbor sharing the heaviest edge, as long as the pair
// weighs at most maxW. It returns the coarse index of every node.
func matchHeavyEdges(gr *Graph, maxW int, rng *rand.Rand) ([]int, int) {
	n := gr.NumNodes()
	match := make([]int, n)
	for i := range match {
		match[i] = -1
	}
	for _, u := range rng.Perm(n) {
		if match[u] >= 0 {
			continue
		}
		best, bestW := -1, -1.0
		adj, wgt := gr.neighbors(u)
		for k, v := range adj {
			if match[v] >= 0 || v == u || gr.Vwgt[u]+gr.Vwgt[v] > maxW {
				continue
			}
			if wgt[k] > bestW || (wgt[k] == bestW && v < best) {
				best, bestW = v, wgt[k]
			}
		}
		if best < 0 {
			match[u] = u
			continue
		}
		match[u], match[best] = best, u
	}

	cmap := make([]int, n)
	for i := range cmap {
		cmap[i] = -1
	}
	nc := 0
	for u := 0; u < n; u++ {
		if cmap[u] >= 0 {
			continue
		}
		cmap[u] = nc
		cmap[match[u]] = nc
		nc++
	}
	return cmap, nc
}

// contract merges matched nodes, summing node weights and the weights of
// parallel edges
func contract(gr *Graph, cmap []int, nc int) *Graph {
	members := make([][]int, nc)
	for u, c := range cmap {
		members[c] = append(members[c], u)
	}
	cg := &Graph{Xadj: make([]int, nc+1), Vwgt: make([]int, nc)}
	slot := make([]int, nc)
	for i := range slot {
		slot[i] = -1
	}
	for c := 0; c < nc; c++ {
		start := len(cg.Adjncy)
		for _, u := range members[c] {
			cg.Vwgt[c] += gr.Vwgt[u]
			adj, wgt := gr.neighbors(u)
			for k, v := range adj {
				cv := cmap[v]
				if cv == c {
					continue
				}
				if slot[cv] >= start {
					cg.Adjwgt[slot[cv]] += wgt[k]
					continue
				}
				slot[cv] = len(cg.Adjncy)
				cg.Adjncy = append(cg.Adjncy, cv)
				cg.Adjwgt = append(cg.Adjwgt, wgt[k])
			}
		}
		cg.Xadj[c+1] = len(cg.Adjncy)
	}
	return cg
}
