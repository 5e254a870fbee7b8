// Package overlap computes the area shared between the cells of two grids.
// Structured pairs are intersected axis by axis; anything involving
// unstructured cells goes through an R-tree over the source cells followed by
// exact polygon intersection of the surviving candidates.
package overlap

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/utils"
)

// Record is the area shared by a source cell and a target cell
type Record struct {
	Source, Target int
	Measure        float64
}

type Options struct {
	// Overlaps below RelativeTolerance times the smaller of the two cell
	// areas are discarded. Zero selects 1e-9.
	RelativeTolerance float64
	// Workers is the number of parallel buckets, zero for one per CPU
	Workers int
	Logger  *slog.Logger
	// Cache is shared between engines when set, otherwise each engine
	// holds its own.
	Cache *IndexCache
}

const DefaultRelativeTolerance = 1e-9

type Engine struct {
	relTol  float64
	workers int
	log     *slog.Logger
	cache   *IndexCache
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		relTol:  opts.RelativeTolerance,
		workers: opts.Workers,
		log:     opts.Logger,
		cache:   opts.Cache,
	}
	if e.relTol <= 0 {
		e.relTol = DefaultRelativeTolerance
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.cache == nil {
		e.cache = NewIndexCache()
	}
	return e
}

func (e *Engine) Cache() *IndexCache { return e.cache }

// Compute returns every overlap between cells of src and tgt, ordered by
// (Target, Source)
func (e *Engine) Compute(src, tgt *grid.Grid) ([]Record, error) {
	se, te := src.Extent(), tgt.Extent()
	if boxOverlap(se, te) <= 0 {
		return nil, &DisjointGridsError{Source: se, Target: te}
	}

	var (
		recs []Record
		path string
	)
	if src.Kind() == grid.Structured && tgt.Kind() == grid.Structured {
		path = "axis"
		recs = e.structured(src, tgt)
	} else {
		path = "rtree"
		recs = e.indexed(src, tgt)
	}
	if len(recs) == 0 {
		return nil, &DisjointGridsError{Source: se, Target: te}
	}
	e.log.Debug("overlap computed",
		"path", path,
		"source_cells", src.NumCells(),
		"target_cells", tgt.NumCells(),
		"records", len(recs))
	return recs, nil
}

func (e *Engine) keep(m float64, src, tgt *grid.Grid, s, t int) bool {
	return m > 0 && m >= e.relTol*min(src.Area(s), tgt.Area(t))
}

type span struct {
	idx int
	len float64
}

// spans returns the cells of edges overlapping [a, b] with their overlap length
func spans(edges []float64, a, b float64) []span {
	var out []span
	n := len(edges) - 1
	for j := max(sort.SearchFloat64s(edges, a)-1, 0); j < n && edges[j] < b; j++ {
		l := min(edges[j+1], b) - max(edges[j], a)
		if l > 0 {
			out = append(out, span{idx: j, len: l})
		}
	}
	return out
}

func (e *Engine) structured(src, tgt *grid.Grid) []Record {
	sx, sy := src.XEdges(), src.YEdges()
	tx, ty := tgt.XEdges(), tgt.YEdges()
	_, sncol := src.Shape()
	_, tncol := tgt.Shape()

	colSpans := make([][]span, len(tx)-1)
	for c := range colSpans {
		colSpans[c] = spans(sx, tx[c], tx[c+1])
	}
	rowSpans := make([][]span, len(ty)-1)
	for r := range rowSpans {
		rowSpans[r] = spans(sy, ty[r], ty[r+1])
	}

	return e.collect(tgt.NumCells(), func(t int, out []Record) []Record {
		r, c := t/tncol, t%tncol
		for _, ry := range rowSpans[r] {
			for _, cx := range colSpans[c] {
				s := ry.idx*sncol + cx.idx
				m := ry.len * cx.len
				if e.keep(m, src, tgt, s, t) {
					out = append(out, Record{Source: s, Target: t, Measure: m})
				}
			}
		}
		return out
	})
}

func (e *Engine) indexed(src, tgt *grid.Grid) []Record {
	tree := e.cache.Get(src)
	return e.collect(tgt.NumCells(), func(t int, out []Record) []Record {
		tb := tgt.CellBounds(t)
		ts := newCellShape(tgt.Polygon(t), tb, tgt.IsRectangle(t))
		for _, s := range candidates(tree, tb) {
			ss := newCellShape(src.Polygon(s), src.CellBounds(s), src.IsRectangle(s))
			m := intersectionArea(ss, ts)
			if e.keep(m, src, tgt, s, t) {
				out = append(out, Record{Source: s, Target: t, Measure: m})
			}
		}
		return out
	})
}

// collect runs fn over target buckets in parallel and concatenates the
// bucket outputs in target order
func (e *Engine) collect(n int, fn func(t int, out []Record) []Record) []Record {
	bm := utils.NewBucketMap(e.workers, n)
	parts := make([][]Record, bm.ParallelDegree)
	utils.ForEachBucket(bm.ParallelDegree, n, func(np, kMin, kMax int) {
		var out []Record
		for t := kMin; t < kMax; t++ {
			out = fn(t, out)
		}
		parts[np] = out
	})
	var total int
	for _, p := range parts {
		total += len(p)
	}
	recs := make([]Record, 0, total)
	for _, p := range parts {
		recs = append(recs, p...)
	}
	return recs
}

// SelfOverlaps returns the pairs of distinct cells of g that share positive
// area, with Source < Target. A valid planar partition has none.
func (e *Engine) SelfOverlaps(g *grid.Grid) []Record {
	if g.Kind() == grid.Structured {
		return nil
	}
	tree := e.cache.Get(g)
	return e.collect(g.NumCells(), func(a int, out []Record) []Record {
		ab := g.CellBounds(a)
		as := newCellShape(g.Polygon(a), ab, g.IsRectangle(a))
		for _, b := range candidates(tree, ab) {
			if b <= a {
				continue
			}
			bs := newCellShape(g.Polygon(b), g.CellBounds(b), g.IsRectangle(b))
			m := intersectionArea(as, bs)
			if e.keep(m, g, g, a, b) {
				out = append(out, Record{Source: a, Target: b, Measure: m})
			}
		}
		return out
	})
}

// Coverage returns, per target cell, the summed measure of its records
func Coverage(recs []Record, nTarget int) []float64 {
	cov := make([]float64, nTarget)
	for _, r := range recs {
		cov[r.Target] += r.Measure
	}
	return cov
}

// Validate checks that recs are ordered by (Target, Source) without
// duplicates and reference cells of src and tgt
func Validate(recs []Record, src, tgt *grid.Grid) error {
	for i, r := range recs {
		if r.Source < 0 || r.Source >= src.NumCells() || r.Target < 0 || r.Target >= tgt.NumCells() {
			return fmt.Errorf("overlap record %d references cell out of range: %+v", i, r)
		}
		if i > 0 {
			p := recs[i-1]
			if p.Target > r.Target || (p.Target == r.Target && p.Source >= r.Source) {
				return fmt.Errorf("overlap records out of order at %d", i)
			}
		}
	}
	return nil
}
