package regrid

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/utils"
)

// sample is a source cell centroid carrying its cell id
type sample struct {
	x, y float64
	id   int
}

func (p sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(sample)
	if d == 0 {
		return p.x - q.x
	}
	return p.y - q.y
}

func (p sample) Dims() int { return 2 }

// Distance is the squared euclidean distance
func (p sample) Distance(c kdtree.Comparable) float64 {
	q := c.(sample)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type samples []sample

func (s samples) Index(i int) kdtree.Comparable         { return s[i] }
func (s samples) Len() int                              { return len(s) }
func (s samples) Pivot(d kdtree.Dim) int                { return plane{samples: s, Dim: d}.Pivot() }
func (s samples) Slice(start, end int) kdtree.Interface { return s[start:end] }

type plane struct {
	kdtree.Dim
	samples
}

func (p plane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.samples[i].x < p.samples[j].x
	}
	return p.samples[i].y < p.samples[j].y
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.samples = p.samples[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.samples[i], p.samples[j] = p.samples[j], p.samples[i] }

type neighbor struct {
	sample
	d2 float64
}

// nearest returns up to k samples closest to q ordered by distance, then id
func nearest(tree *kdtree.Tree, q sample, k int) []neighbor {
	keep := kdtree.NewNKeeper(k)
	tree.NearestSet(keep, q)
	out := make([]neighbor, 0, k)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, neighbor{sample: cd.Comparable.(sample), d2: cd.Dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].d2 != out[j].d2 {
			return out[i].d2 < out[j].d2
		}
		return out[i].id < out[j].id
	})
	return out
}

func (r *Regridder) pointSample(src, out *grid.Field, opts Options) error {
	sg, tg := src.Grid(), out.Grid()
	ncomp := src.NumComponents()

	for _, k := range out.LayerSet() {
		var pts samples
		for id := 0; id < sg.NumCells(); id++ {
			if src.State(k, id) == grid.Defined {
				c := sg.Centroid(id)
				pts = append(pts, sample{x: c.X, y: c.Y, id: id})
			}
		}
		var tree *kdtree.Tree
		if len(pts) > 0 {
			tree = kdtree.New(pts, false)
		}

		utils.ForEachBucket(r.workers, tg.NumCells(), func(_, tMin, tMax int) {
			acc := make([]float64, ncomp)
			for t := tMin; t < tMax; t++ {
				if !out.IsActive(k, t) {
					out.SetNoData(k, t)
					continue
				}
				if tree == nil {
					setOrFill(out, k, t, false, acc, opts.Fill)
					continue
				}
				c := tg.Centroid(t)
				nb := nearest(tree, sample{x: c.X, y: c.Y, id: -1}, opts.K)
				ok := false
				if opts.Interpolation == Linear {
					ok = linear(src, k, nb, c.X, c.Y, acc)
				}
				if !ok {
					idw(src, k, nb, opts.Power, acc)
				}
				setOrFill(out, k, t, true, acc, opts.Fill)
			}
		})
	}
	return nil
}

func idw(src *grid.Field, k int, nb []neighbor, power float64, acc []float64) {
	if nb[0].d2 == 0 {
		for c := range acc {
			acc[c], _ = src.Component(k, nb[0].id, c)
		}
		return
	}
	for c := range acc {
		acc[c] = 0
	}
	var wsum float64
	for _, n := range nb {
		w := 1 / math.Pow(math.Sqrt(n.d2), power)
		for c := range acc {
			v, _ := src.Component(k, n.id, c)
			acc[c] += w * v
		}
		wsum += w
	}
	for c := range acc {
		acc[c] /= wsum
	}
}

// linear fits v = a + b(x-x0) + c(y-y0) by least squares and stores a. It
// reports false when the neighbors do not span a plane.
func linear(src *grid.Field, k int, nb []neighbor, x0, y0 float64, acc []float64) bool {
	if len(nb) < 3 {
		return false
	}
	var scale, spread float64
	for _, n := range nb {
		scale = math.Max(scale, n.d2)
	}
	p0 := nb[0]
	for _, n := range nb[1:] {
		for _, m := range nb[1:] {
			cr := (n.x-p0.x)*(m.y-p0.y) - (n.y-p0.y)*(m.x-p0.x)
			spread = math.Max(spread, math.Abs(cr))
		}
	}
	if spread <= 1e-10*scale {
		return false
	}

	ncomp := len(acc)
	A := mat.NewDense(len(nb), 3, nil)
	B := mat.NewDense(len(nb), ncomp, nil)
	for i, n := range nb {
		A.Set(i, 0, 1)
		A.Set(i, 1, n.x-x0)
		A.Set(i, 2, n.y-y0)
		for c := 0; c < ncomp; c++ {
			v, _ := src.Component(k, n.id, c)
			B.Set(i, c, v)
		}
	}
	var X mat.Dense
	if err := X.Solve(A, B); err != nil {
		return false
	}
	for c := range acc {
		acc[c] = X.At(0, c)
	}
	return true
}
