package partitions

import (
	"math/rand/v2"
)

// kway holds a k-way assignment of one connected graph together with the
// per-part bookkeeping used by refinement and balancing
type kway struct {
	gr     *Graph
	k      int
	part   []int
	weight []int
	count  []int
	lo, hi float64

	conn    []float64 // scratch, indexed by part
	touched []int
	mark    []int // scratch for connectivity searches
	stamp   int
}

func newKway(gr *Graph, k int, part []int, tol float64) *kway {
	s := &kway{
		gr:     gr,
		k:      k,
		part:   part,
		weight: make([]int, k),
		count:  make([]int, k),
		conn:   make([]float64, k),
		mark:   make([]int, gr.NumNodes()),
	}
	for v, p := range part {
		s.weight[p] += gr.Vwgt[v]
		s.count[p]++
	}
	mean := float64(gr.TotalWeight()) / float64(k)
	s.lo, s.hi = mean*(1-tol), mean*(1+tol)
	return s
}

func (s *kway) balanced() bool {
	for _, w := range s.weight {
		if float64(w) > s.hi || float64(w) < s.lo {
			return false
		}
	}
	return true
}

// violation is the total weight outside the balance bounds
func (s *kway) violation() float64 {
	var v float64
	for _, w := range s.weight {
		fw := float64(w)
		if fw > s.hi {
			v += fw - s.hi
		} else if fw < s.lo {
			v += s.lo - fw
		}
	}
	return v
}

// connections fills s.conn with the edge weight from v to each part and
// returns the parts touched. Reset with clearConn.
func (s *kway) connections(v int) []int {
	adj, wgt := s.gr.neighbors(v)
	for j, u := range adj {
		p := s.part[u]
		if s.conn[p] == 0 {
			s.touched = append(s.touched, p)
		}
		s.conn[p] += wgt[j]
	}
	return s.touched
}

func (s *kway) clearConn() {
	for _, p := range s.touched {
		s.conn[p] = 0
	}
	s.touched = s.touched[:0]
}

// canLeave reports whether removing v keeps its part non-empty and connected
func (s *kway) canLeave(v int) bool {
	p := s.part[v]
	if s.count[p] <= 1 {
		return false
	}
	adj, _ := s.gr.neighbors(v)
	var same []int
	for _, u := range adj {
		if s.part[u] == p {
			same = append(same, u)
		}
	}
	if len(same) <= 1 {
		return true
	}

	s.stamp++
	need := make(map[int]bool, len(same))
	for _, u := range same[1:] {
		need[u] = true
	}
	s.mark[v] = s.stamp
	s.mark[same[0]] = s.stamp
	queue := []int{same[0]}
	for len(queue) > 0 && len(need) > 0 {
		u := queue[0]
		queue = queue[1:]
		nbrs, _ := s.gr.neighbors(u)
		for _, w := range nbrs {
			if s.part[w] != p || s.mark[w] == s.stamp {
				continue
			}
			s.mark[w] = s.stamp
			delete(need, w)
			queue = append(queue, w)
		}
	}
	return len(need) == 0
}

func (s *kway) move(v, q int) {
	p := s.part[v]
	s.weight[p] -= s.gr.Vwgt[v]
	s.count[p]--
	s.weight[q] += s.gr.Vwgt[v]
	s.count[q]++
	s.part[v] = q
}

// refine greedily moves boundary nodes to the neighboring part they are most
// strongly connected to when that lowers the edge cut without breaking the
// balance bounds, or when it relieves an overweight part. Returns the number
// of moves.
func (s *kway) refine(passes int, rng *rand.Rand) int {
	total := 0
	for pass := 0; pass < passes; pass++ {
		moves := 0
		for _, v := range rng.Perm(s.gr.NumNodes()) {
			p := s.part[v]
			w := s.gr.Vwgt[v]
			parts := s.connections(v)
			internal := s.conn[p]
			best, bestGain := -1, 0.0
			for _, q := range parts {
				if q == p {
					continue
				}
				gain := s.conn[q] - internal
				wq, wp := float64(s.weight[q]+w), float64(s.weight[p]-w)
				ok := gain > 0 && wq <= s.hi && wp >= s.lo
				ok = ok || (float64(s.weight[p]) > s.hi && s.weight[q]+w < s.weight[p] && wq <= s.hi)
				if !ok {
					continue
				}
				if best < 0 || gain > bestGain ||
					(gain == bestGain && (s.weight[q] < s.weight[best] || (s.weight[q] == s.weight[best] && q < best))) {
					best, bestGain = q, gain
				}
			}
			s.clearConn()
			if best >= 0 && s.canLeave(v) {
				s.move(v, best)
				moves++
			}
		}
		total += moves
		if moves == 0 {
			break
		}
	}
	return total
}

// quotientPath returns the shortest chain of adjacent parts from a to z
func (s *kway) quotientPath(a, z int) []int {
	adj := make([]map[int]bool, s.k)
	for p := range adj {
		adj[p] = make(map[int]bool)
	}
	for v := 0; v < s.gr.NumNodes(); v++ {
		nbrs, _ := s.gr.neighbors(v)
		for _, u := range nbrs {
			if s.part[u] != s.part[v] {
				adj[s.part[v]][s.part[u]] = true
			}
		}
	}
	prev := make([]int, s.k)
	for i := range prev {
		prev[i] = -2
	}
	prev[a] = -1
	queue := []int{a}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == z {
			break
		}
		for q := 0; q < s.k; q++ {
			if adj[p][q] && prev[q] == -2 {
				prev[q] = p
				queue = append(queue, q)
			}
		}
	}
	if prev[z] == -2 {
		return nil
	}
	var path []int
	for p := z; p != -1; p = prev[p] {
		path = append([]int{p}, path...)
	}
	return path
}

// moveOne transfers the best movable boundary node of p into q
func (s *kway) moveOne(p, q int) bool {
	best, bestGain, bestW := -1, 0.0, 0
	for v := 0; v < s.gr.NumNodes(); v++ {
		if s.part[v] != p {
			continue
		}
		s.connections(v)
		touchesQ := s.conn[q] > 0
		gain := s.conn[q] - s.conn[p]
		s.clearConn()
		if !touchesQ {
			continue
		}
		w := s.gr.Vwgt[v]
		if best >= 0 && (gain < bestGain || (gain == bestGain && w >= bestW)) {
			continue
		}
		if !s.canLeave(v) {
			continue
		}
		best, bestGain, bestW = v, gain, w
	}
	if best < 0 {
		return false
	}
	s.move(best, q)
	return true
}

// balance shifts weight from the heaviest part to the lightest along chains
// of adjacent parts until the bounds hold or no chain makes progress
func (s *kway) balance(maxIter int) {
	stalled := 0
	for it := 0; it < maxIter && !s.balanced() && stalled < 3; it++ {
		a, z := 0, 0
		for p := range s.weight {
			if s.weight[p] > s.weight[a] {
				a = p
			}
			if s.weight[p] < s.weight[z] {
				z = p
			}
		}
		if s.weight[a]-s.weight[z] <= 1 {
			return
		}
		path := s.quotientPath(a, z)
		if path == nil {
			return
		}
		before := s.violation()
		for i := 0; i+1 < len(path); i++ {
			if !s.moveOne(path[i], path[i+1]) {
				break
			}
		}
		if s.violation() < before {
			stalled = 0
		} else {
			stalled++
		}
	}
}
