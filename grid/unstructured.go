package grid

import (
	"hash"
	"math"
	"sort"

	"github.com/ctessum/geom"
)

type unstructuredTopo struct {
	verts  []geom.Point
	cells  [][]int // counter-clockwise vertex indices, not closed
	areas  []float64
	cents  []geom.Point
	bounds []*geom.Bounds
	faceL  []Face
	ext    *geom.Bounds
}

// NewUnstructured builds a grid of simple polygons. cells[i] lists the vertex
// indices of cell i in either orientation without repeating the first vertex.
// Cells that share an edge must reference the same two vertex indices for it;
// that is how neighbors are found.
func NewUnstructured(vertices []geom.Point, cells [][]int, layers LayerTable) (*Grid, error) {
	t, err := newUnstructuredTopo(vertices, cells)
	if err != nil {
		return nil, err
	}
	return newGrid(Unstructured, t, layers, nil)
}

func newUnstructuredTopo(vertices []geom.Point, cells [][]int) (*unstructuredTopo, error) {
	for i, v := range vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return nil, invalidGrid("vertex %d is not finite", i)
		}
	}
	t := &unstructuredTopo{
		verts:  append([]geom.Point(nil), vertices...),
		cells:  make([][]int, len(cells)),
		areas:  make([]float64, len(cells)),
		cents:  make([]geom.Point, len(cells)),
		bounds: make([]*geom.Bounds, len(cells)),
	}
	for id, cv := range cells {
		if len(cv) < 3 {
			return nil, invalidCell(id, "cell has %d vertices, need at least 3", len(cv))
		}
		seen := make(map[int]bool, len(cv))
		for _, v := range cv {
			if v < 0 || v >= len(vertices) {
				return nil, invalidCell(id, "vertex index %d out of range", v)
			}
			if seen[v] {
				return nil, invalidCell(id, "vertex %d repeated", v)
			}
			seen[v] = true
		}
		ring := make([]int, len(cv))
		copy(ring, cv)

		b := emptyBounds()
		for _, v := range ring {
			extendPoint(b, vertices[v])
		}
		a := signedArea(vertices, ring)
		w, h := b.Max.X-b.Min.X, b.Max.Y-b.Min.Y
		if math.Abs(a) <= 1e-12*(w*w+h*h) {
			return nil, invalidCell(id, "zero area")
		}
		if selfIntersects(vertices, ring) {
			return nil, invalidCell(id, "self-intersecting polygon")
		}
		if a < 0 {
			for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
				ring[i], ring[j] = ring[j], ring[i]
			}
			a = -a
		}
		t.cells[id] = ring
		t.areas[id] = a
		t.cents[id] = polygonCentroid(vertices, ring, a)
		t.bounds[id] = b
	}
	t.ext = emptyBounds()
	for _, b := range t.bounds {
		extendPoint(t.ext, b.Min)
		extendPoint(t.ext, b.Max)
	}

	type edgeKey struct{ lo, hi int }
	owners := make(map[edgeKey][]int)
	for id, ring := range t.cells {
		for i, v := range ring {
			w := ring[(i+1)%len(ring)]
			k := edgeKey{min(v, w), max(v, w)}
			owners[k] = append(owners[k], id)
		}
	}
	for k, ids := range owners {
		switch {
		case len(ids) > 2:
			return nil, invalidCell(ids[2], "edge (%d,%d) shared by %d cells", k.lo, k.hi, len(ids))
		case len(ids) == 2:
			if ids[0] == ids[1] {
				return nil, invalidCell(ids[0], "edge (%d,%d) used twice", k.lo, k.hi)
			}
			p, q := vertices[k.lo], vertices[k.hi]
			t.faceL = append(t.faceL, Face{
				A:      min(ids[0], ids[1]),
				B:      max(ids[0], ids[1]),
				Length: math.Hypot(q.X-p.X, q.Y-p.Y),
			})
		}
	}
	// Two cells may share more than one edge; keep one face per pair with
	// the summed length.
	sort.Slice(t.faceL, func(i, j int) bool {
		if t.faceL[i].A != t.faceL[j].A {
			return t.faceL[i].A < t.faceL[j].A
		}
		return t.faceL[i].B < t.faceL[j].B
	})
	merged := t.faceL[:0]
	for _, f := range t.faceL {
		if n := len(merged); n > 0 && merged[n-1].A == f.A && merged[n-1].B == f.B {
			merged[n-1].Length += f.Length
			continue
		}
		merged = append(merged, f)
	}
	t.faceL = merged
	return t, nil
}

func emptyBounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

func extendPoint(b *geom.Bounds, p geom.Point) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
}

func signedArea(v []geom.Point, ring []int) float64 {
	var a float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		a += v[p].X*v[q].Y - v[q].X*v[p].Y
	}
	return 0.5 * a
}

// polygonCentroid expects a counter-clockwise ring of area a
func polygonCentroid(v []geom.Point, ring []int, a float64) geom.Point {
	// Shift to the first vertex to keep the products small.
	o := v[ring[0]]
	var cx, cy float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		px, py := v[p].X-o.X, v[p].Y-o.Y
		qx, qy := v[q].X-o.X, v[q].Y-o.Y
		cr := px*qy - qx*py
		cx += (px + qx) * cr
		cy += (py + qy) * cr
	}
	return geom.Point{X: o.X + cx/(6*a), Y: o.Y + cy/(6*a)}
}

func orient(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p geom.Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

func segmentsIntersect(p1, p2, q1, q2 geom.Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// selfIntersects tests every pair of non-adjacent edges of the ring
func selfIntersects(v []geom.Point, ring []int) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a1, a2 := v[ring[i]], v[ring[(i+1)%n]]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsIntersect(a1, a2, v[ring[j]], v[ring[(j+1)%n]]) {
				return true
			}
		}
	}
	return false
}

func (t *unstructuredTopo) numCells() int { return len(t.cells) }

func (t *unstructuredTopo) polygon(id int) geom.Polygon {
	ring := t.cells[id]
	path := make(geom.Path, len(ring)+1)
	for i, v := range ring {
		path[i] = t.verts[v]
	}
	path[len(ring)] = t.verts[ring[0]]
	return geom.Polygon{path}
}

func (t *unstructuredTopo) area(id int) float64        { return t.areas[id] }
func (t *unstructuredTopo) centroid(id int) geom.Point { return t.cents[id] }

func (t *unstructuredTopo) cellBounds(id int) *geom.Bounds {
	b := t.bounds[id]
	return &geom.Bounds{Min: b.Min, Max: b.Max}
}

func (t *unstructuredTopo) isRectangle(id int) bool {
	ring := t.cells[id]
	if len(ring) != 4 {
		return false
	}
	for i, p := range ring {
		a, b := t.verts[p], t.verts[ring[(i+1)%4]]
		if a.X != b.X && a.Y != b.Y {
			return false
		}
	}
	return true
}

func (t *unstructuredTopo) faces() []Face             { return t.faceL }
func (t *unstructuredTopo) extent() *geom.Bounds      { return t.ext }
func (t *unstructuredTopo) numVertices() int          { return len(t.verts) }
func (t *unstructuredTopo) vertex(v int) geom.Point   { return t.verts[v] }
func (t *unstructuredTopo) cellVertices(id int) []int { return t.cells[id] }

func (t *unstructuredTopo) writeHash(h hash.Hash) {
	h.Write([]byte{byte(Unstructured)})
	xy := make([]float64, 0, 2*len(t.verts))
	for _, p := range t.verts {
		xy = append(xy, p.X, p.Y)
	}
	writeFloats(h, xy)
	for _, ring := range t.cells {
		idx := make([]float64, len(ring))
		for i, v := range ring {
			idx[i] = float64(v)
		}
		writeFloats(h, idx)
	}
}

// Vertices returns a copy of the grid's vertex list. Structured grids number
// their corners row-major from the lower-left.
func (g *Grid) Vertices() []geom.Point {
	out := make([]geom.Point, g.topo.numVertices())
	for i := range out {
		out[i] = g.topo.vertex(i)
	}
	return out
}

// CellVertices returns the counter-clockwise vertex indices of cell id
func (g *Grid) CellVertices(id int) []int {
	return append([]int(nil), g.topo.cellVertices(id)...)
}
