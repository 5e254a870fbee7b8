// Package partitions splits the active cells of a grid into face-connected,
// weight-balanced partitions and derives the per-partition subdomains and the
// exchange map of faces cut by the split.
//
// The partitioner is multilevel: the cell graph is coarsened by heavy-edge
// matching, the coarsest graph is split by greedy region growing, and the
// split is projected back level by level with boundary refinement. A final
// balancing step moves cells along chains of adjacent partitions. Every step
// keeps each partition connected.
package partitions

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/notargets/gwgrid/grid"
)

const (
	DefaultTolerance    = 0.05
	DefaultMaxAttempts  = 8
	DefaultRefinePasses = 8

	// initialTrials is the number of region growing runs on the coarsest graph
	initialTrials = 4
	seedStride    = 0x9E3779B97F4A7C15
)

type Options struct {
	NumPartitions int
	// Tolerance bounds every partition weight to mean*(1±Tolerance). Zero
	// selects DefaultTolerance.
	Tolerance float64
	// Seed makes runs reproducible. Nil draws a random seed.
	Seed         *uint64
	MaxAttempts  int
	RefinePasses int
	// CoarsenTo stops coarsening once the graph has this many nodes. Zero
	// selects max(20, 15*NumPartitions).
	CoarsenTo int
	// AllowEmpty permits empty partitions in SplitByLabels
	AllowEmpty bool
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RefinePasses <= 0 {
		o.RefinePasses = DefaultRefinePasses
	}
	if o.CoarsenTo <= 0 {
		o.CoarsenTo = max(20, 15*o.NumPartitions)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type Partitioner struct {
	opts Options
}

func NewPartitioner(opts Options) *Partitioner {
	return &Partitioner{opts: opts.withDefaults()}
}

func (p *Partitioner) Options() Options { return p.opts }

// Partition splits the active cells of g into Options.NumPartitions
// connected partitions whose weights lie within the balance tolerance
func (p *Partitioner) Partition(g *grid.Grid) (*Result, error) {
	o := p.opts
	k := o.NumPartitions
	if k < 1 {
		return nil, fmt.Errorf("partition count must be positive, got %d", k)
	}
	if o.Tolerance < 0 || o.Tolerance >= 1 {
		return nil, fmt.Errorf("balance tolerance %g outside [0,1)", o.Tolerance)
	}
	gr := NewGraph(g)
	n := gr.NumNodes()
	if n == 0 {
		return nil, fmt.Errorf("grid has no active cells")
	}
	total := gr.TotalWeight()
	mean := float64(total) / float64(k)
	if k > n {
		return nil, &InfeasibleBalanceError{NumPartitions: k, Tolerance: o.Tolerance, Mean: mean}
	}

	comps := gr.Components()
	if len(comps) > k {
		return nil, &DisconnectedPartitionError{Partition: -1, Components: len(comps)}
	}
	alloc := allocate(gr, comps, k)

	seed := rand.Uint64()
	if o.Seed != nil {
		seed = *o.Seed
	}
	o.Logger.Debug("partitioning",
		"cells", n, "weight", total, "partitions", k, "components", len(comps), "seed", seed)

	var (
		best     []int
		bestViol = math.Inf(1)
		bestCut  = math.Inf(1)
		lastErr  error
	)
	for attempt := 0; attempt < o.MaxAttempts; attempt++ {
		s := seed + uint64(attempt)*seedStride
		rng := rand.New(rand.NewPCG(s, s^seedStride))

		part, ok := p.partitionComponents(gr, comps, alloc, rng)
		if !ok {
			continue
		}
		cellToPart := toCells(g, gr, part)
		if err := checkConnected(gr, cellToPart, k); err != nil {
			lastErr = err
			continue
		}
		viol := globalViolation(gr, part, k, o.Tolerance)
		cut := gr.EdgeCut(part)
		o.Logger.Debug("partition attempt", "attempt", attempt, "violation", viol, "edge_cut", cut)
		if viol < bestViol || (viol == bestViol && cut < bestCut) {
			best, bestViol, bestCut = part, viol, cut
		}
		if viol == 0 {
			break
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &InfeasibleBalanceError{NumPartitions: k, Tolerance: o.Tolerance, Mean: mean, Attempts: o.MaxAttempts}
	}
	if bestViol > 0 {
		return nil, &InfeasibleBalanceError{
			NumPartitions: k,
			Tolerance:     o.Tolerance,
			Weights:       partWeights(gr, best, k),
			Mean:          mean,
			Attempts:      o.MaxAttempts,
		}
	}

	res, err := newResult(g, toCells(g, gr, best), k, false)
	if err != nil {
		return nil, err
	}
	o.Logger.Info("grid partitioned",
		"partitions", k,
		"imbalance", res.Stats.Imbalance,
		"edge_cut", res.Stats.EdgeCut,
		"cut_faces", res.Stats.CutFaces,
		"run_id", res.RunID)
	return res, nil
}

// partitionComponents partitions each connected component separately with
// its allocated share of the partitions, numbering them consecutively
func (p *Partitioner) partitionComponents(gr *Graph, comps [][]int, alloc []int, rng *rand.Rand) ([]int, bool) {
	part := make([]int, gr.NumNodes())
	offset := 0
	for ci, comp := range comps {
		sub := gr
		if len(comps) > 1 {
			sub = gr.subgraph(comp)
		}
		local := p.multilevel(sub, alloc[ci], rng)
		if local == nil {
			return nil, false
		}
		for i, node := range comp {
			part[node] = offset + local[i]
		}
		offset += alloc[ci]
	}
	return part, true
}

// multilevel splits one connected graph into k connected parts. Nil when the
// graph has fewer nodes than parts or region growing fails.
func (p *Partitioner) multilevel(gr *Graph, k int, rng *rand.Rand) []int {
	n := gr.NumNodes()
	if k == 1 {
		return make([]int, n)
	}
	if n < k {
		return nil
	}
	o := p.opts
	levels := coarsen(gr, o.CoarsenTo, rng)
	coarsest := levels[len(levels)-1].graph

	var (
		part     []int
		bestViol = math.Inf(1)
		bestCut  = math.Inf(1)
	)
	for t := 0; t < initialTrials; t++ {
		cand := growRegions(coarsest, k, rng)
		if !complete(cand) {
			continue
		}
		s := newKway(coarsest, k, cand, o.Tolerance)
		s.balance(coarsest.NumNodes())
		s.refine(o.RefinePasses, rng)
		viol, cut := s.violation(), coarsest.EdgeCut(cand)
		if viol < bestViol || (viol == bestViol && cut < bestCut) {
			part, bestViol, bestCut = cand, viol, cut
		}
	}
	if part == nil {
		return nil
	}

	for l := len(levels) - 1; l >= 1; l-- {
		fine, cmap := levels[l-1].graph, levels[l].cmap
		fp := make([]int, fine.NumNodes())
		for u := range fp {
			fp[u] = part[cmap[u]]
		}
		part = fp
		s := newKway(fine, k, part, o.Tolerance)
		s.refine(o.RefinePasses, rng)
		s.balance(fine.NumNodes())
	}
	s := newKway(gr, k, part, o.Tolerance)
	s.refine(o.RefinePasses, rng)
	return part
}

// SplitByLabels builds a Result from caller-chosen labels instead of the
// heuristic. labels is indexed by grid cell; labels of inactive cells are
// ignored. Options.NumPartitions of zero uses the largest label plus one.
// Balance is not enforced but every partition must be connected.
func (p *Partitioner) SplitByLabels(g *grid.Grid, labels []int) (*Result, error) {
	if len(labels) != g.NumCells() {
		return nil, fmt.Errorf("got %d labels for %d cells", len(labels), g.NumCells())
	}
	k := p.opts.NumPartitions
	if k <= 0 {
		for c, l := range labels {
			if g.CellActive(c) {
				k = max(k, l+1)
			}
		}
	}
	if k < 1 {
		return nil, fmt.Errorf("grid has no active cells")
	}
	cellToPart := make([]int, len(labels))
	for c, l := range labels {
		if !g.CellActive(c) {
			cellToPart[c] = -1
			continue
		}
		if l < 0 || l >= k {
			return nil, fmt.Errorf("cell %d has label %d outside [0,%d)", c, l, k)
		}
		cellToPart[c] = l
	}
	if err := checkConnected(NewGraph(g), cellToPart, k); err != nil {
		return nil, err
	}
	res, err := newResult(g, cellToPart, k, p.opts.AllowEmpty)
	if err != nil {
		return nil, err
	}
	p.opts.Logger.Info("grid split by labels",
		"partitions", k, "imbalance", res.Stats.Imbalance, "cut_faces", res.Stats.CutFaces, "run_id", res.RunID)
	return res, nil
}

// allocate shares k partitions among the components in proportion to their
// weight by largest remainder, at least one each
func allocate(gr *Graph, comps [][]int, k int) []int {
	total := float64(gr.TotalWeight())
	ideal := make([]float64, len(comps))
	alloc := make([]int, len(comps))
	sum := 0
	for i, comp := range comps {
		w := 0
		for _, node := range comp {
			w += gr.Vwgt[node]
		}
		ideal[i] = float64(k) * float64(w) / total
		alloc[i] = max(1, int(math.Floor(ideal[i])))
		sum += alloc[i]
	}
	for sum > k {
		j := -1
		for i := range alloc {
			if alloc[i] > 1 && (j < 0 || float64(alloc[i])-ideal[i] > float64(alloc[j])-ideal[j]) {
				j = i
			}
		}
		alloc[j]--
		sum--
	}
	for sum < k {
		j := 0
		for i := range alloc {
			if ideal[i]-float64(alloc[i]) > ideal[j]-float64(alloc[j]) {
				j = i
			}
		}
		alloc[j]++
		sum++
	}
	return alloc
}

func complete(part []int) bool {
	for _, p := range part {
		if p < 0 {
			return false
		}
	}
	return true
}

func partWeights(gr *Graph, part []int, k int) []int {
	w := make([]int, k)
	for v, p := range part {
		w[p] += gr.Vwgt[v]
	}
	return w
}

// globalViolation measures the total weight outside mean*(1±tol) against the
// mean over the whole graph
func globalViolation(gr *Graph, part []int, k int, tol float64) float64 {
	mean := float64(gr.TotalWeight()) / float64(k)
	lo, hi := mean*(1-tol), mean*(1+tol)
	var v float64
	for _, w := range partWeights(gr, part, k) {
		fw := float64(w)
		if fw > hi {
			v += fw - hi
		} else if fw < lo {
			v += lo - fw
		}
	}
	return v
}

func toCells(g *grid.Grid, gr *Graph, part []int) []int {
	cellToPart := make([]int, g.NumCells())
	for i := range cellToPart {
		cellToPart[i] = -1
	}
	for v, p := range part {
		cellToPart[gr.Cells[v]] = p
	}
	return cellToPart
}
