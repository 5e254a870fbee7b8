package partitions

import (
	"math/rand/v2"
)

// bfsOrder returns the hop distance from the sources to every node, -1 where
// unreachable, and the last node reached
func bfsOrder(gr *Graph, sources []int) ([]int, int) {
	dist := make([]int, gr.NumNodes())
	for i := range dist {
		dist[i] = -1
	}
	queue := make([]int, 0, gr.NumNodes())
	for _, s := range sources {
		if dist[s] < 0 {
			dist[s] = 0
			queue = append(queue, s)
		}
	}
	last := sources[0]
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		last = u
		adj, _ := gr.neighbors(u)
		for _, v := range adj {
			if dist[v] < 0 {
				dist[v] = dist[u] + 1
				queue = append(queue, v)
			}
		}
	}
	return dist, last
}

// pseudoPeripheral returns a node far from the rest of the graph by repeated
// breadth-first sweeps from start
func pseudoPeripheral(gr *Graph, start int) int {
	u := start
	for i := 0; i < 3; i++ {
		_, far := bfsOrder(gr, []int{u})
		if far == u {
			break
		}
		u = far
	}
	return u
}

// seeds picks k spread-out nodes: a pseudo-peripheral node, then repeatedly
// the node farthest from all seeds chosen so far
func seeds(gr *Graph, k int, rng *rand.Rand) []int {
	s := []int{pseudoPeripheral(gr, rng.IntN(gr.NumNodes()))}
	for len(s) < k {
		dist, _ := bfsOrder(gr, s)
		best := -1
		for i, d := range dist {
			if d > 0 && (best < 0 || d > dist[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		s = append(s, best)
	}
	return s
}

// growRegions assigns every node of a connected graph to one of k parts by
// greedy graph growing. The lightest part that can still grow takes the
// frontier node most strongly connected to it, so each part stays connected.
func growRegions(gr *Graph, k int, rng *rand.Rand) []int {
	n := gr.NumNodes()
	part := make([]int, n)
	for i := range part {
		part[i] = -1
	}
	weight := make([]int, k)
	// conn[p][v] is the edge weight between unassigned node v and part p
	conn := make([]map[int]float64, k)
	for p, s := range seeds(gr, k, rng) {
		conn[p] = make(map[int]float64)
		part[s] = p
		weight[p] = gr.Vwgt[s]
	}
	for p := range conn {
		if conn[p] == nil {
			conn[p] = make(map[int]float64)
		}
	}
	for u := 0; u < n; u++ {
		if part[u] < 0 {
			continue
		}
		adj, wgt := gr.neighbors(u)
		for j, v := range adj {
			if part[v] < 0 {
				conn[part[u]][v] += wgt[j]
			}
		}
	}

	assigned := 0
	for _, p := range part {
		if p >= 0 {
			assigned++
		}
	}
	for assigned < n {
		p := -1
		for q := 0; q < k; q++ {
			if len(conn[q]) == 0 {
				continue
			}
			if p < 0 || weight[q] < weight[p] {
				p = q
			}
		}
		if p < 0 {
			break
		}
		best, bestC := -1, 0.0
		for v, c := range conn[p] {
			if best < 0 || c > bestC || (c == bestC && v < best) {
				best, bestC = v, c
			}
		}
		part[best] = p
		weight[p] += gr.Vwgt[best]
		assigned++
		for q := range conn {
			delete(conn[q], best)
		}
		adj, wgt := gr.neighbors(best)
		for j, v := range adj {
			if part[v] < 0 {
				conn[p][v] += wgt[j]
			}
		}
	}
	return part
}
