package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// ClipBox returns the grid restricted to the cells whose centroid lies in the
// closed box and to layers [layerMin, layerMax]. A nil box keeps every cell;
// infinite bounds give half-bounded boxes. A negative layerMax selects the
// last layer. Structured grids stay structured.
func (g *Grid) ClipBox(box *geom.Bounds, layerMin, layerMax int) (*Grid, error) {
	if layerMax < 0 {
		layerMax = g.nlay - 1
	}
	if layerMin < 0 || layerMin > layerMax || layerMax >= g.nlay {
		return nil, invalidGrid("layer range [%d,%d] outside [0,%d)", layerMin, layerMax, g.nlay)
	}
	if box == nil {
		box = &geom.Bounds{
			Min: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
			Max: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		}
	}
	in := func(p geom.Point) bool {
		return p.X >= box.Min.X && p.X <= box.Max.X && p.Y >= box.Min.Y && p.Y <= box.Max.Y
	}

	if t, ok := g.structured(); ok {
		c0, c1 := -1, -1
		for c := 0; c < t.ncol; c++ {
			x := 0.5 * (t.xe[c] + t.xe[c+1])
			if x >= box.Min.X && x <= box.Max.X {
				if c0 < 0 {
					c0 = c
				}
				c1 = c
			}
		}
		r0, r1 := -1, -1
		for r := 0; r < t.nrow; r++ {
			y := 0.5 * (t.ye[r] + t.ye[r+1])
			if y >= box.Min.Y && y <= box.Max.Y {
				if r0 < 0 {
					r0 = r
				}
				r1 = r
			}
		}
		if c0 < 0 || r0 < 0 {
			return nil, invalidGrid("clip box selects no cells")
		}
		var ids []int
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				ids = append(ids, r*t.ncol+c)
			}
		}
		nt := &structuredTopo{
			xe:   append([]float64(nil), t.xe[c0:c1+2]...),
			ye:   append([]float64(nil), t.ye[r0:r1+2]...),
			nrow: r1 - r0 + 1,
			ncol: c1 - c0 + 1,
		}
		return newGrid(Structured, nt, g.slice(ids, layerMin, layerMax), g.parentsOf(ids))
	}

	var ids []int
	for id := 0; id < g.NumCells(); id++ {
		if in(g.Centroid(id)) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, invalidGrid("clip box selects no cells")
	}
	return g.subset(ids, layerMin, layerMax)
}

// Subset returns an unstructured grid holding the given cells, renumbered in
// ascending order of their id in g. Vertices shared between selected cells
// stay shared, so neighbor relations among them are preserved.
func (g *Grid) Subset(ids []int) (*Grid, error) {
	if len(ids) == 0 {
		return nil, invalidGrid("empty cell subset")
	}
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	for i, id := range sorted {
		if id < 0 || id >= g.NumCells() {
			return nil, invalidGrid("subset cell %d out of range", id)
		}
		if i > 0 && sorted[i-1] == id {
			return nil, invalidGrid("subset cell %d repeated", id)
		}
	}
	return g.subset(sorted, 0, g.nlay-1)
}

func (g *Grid) subset(ids []int, kMin, kMax int) (*Grid, error) {
	vmap := make(map[int]int)
	var verts []geom.Point
	cells := make([][]int, len(ids))
	for i, id := range ids {
		cv := g.topo.cellVertices(id)
		cells[i] = make([]int, len(cv))
		for j, v := range cv {
			nv, ok := vmap[v]
			if !ok {
				nv = len(verts)
				vmap[v] = nv
				verts = append(verts, g.topo.vertex(v))
			}
			cells[i][j] = nv
		}
	}
	t, err := newUnstructuredTopo(verts, cells)
	if err != nil {
		return nil, fmt.Errorf("subset: %w", err)
	}
	return newGrid(Unstructured, t, g.slice(ids, kMin, kMax), g.parentsOf(ids))
}

func (g *Grid) parentsOf(ids []int) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = g.ParentID(id)
	}
	return out
}
