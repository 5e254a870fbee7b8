package grid

import (
	"encoding/binary"
	"hash"
	"math"

	"github.com/ctessum/geom"
)

type structuredTopo struct {
	xe, ye     []float64
	nrow, ncol int
}

// NewStructured builds a rectilinear grid from column edges xEdges and row
// edges yEdges, both strictly increasing. Cell id is row*ncol+col, where row r
// spans [yEdges[r], yEdges[r+1]].
func NewStructured(xEdges, yEdges []float64, layers LayerTable) (*Grid, error) {
	if len(xEdges) < 2 || len(yEdges) < 2 {
		return nil, invalidGrid("structured grid needs at least two edges per axis, have %d x %d",
			len(xEdges), len(yEdges))
	}
	t := &structuredTopo{
		xe:   append([]float64(nil), xEdges...),
		ye:   append([]float64(nil), yEdges...),
		nrow: len(yEdges) - 1,
		ncol: len(xEdges) - 1,
	}
	for c := 0; c < t.ncol; c++ {
		if !(t.xe[c+1] > t.xe[c]) || math.IsInf(t.xe[c], 0) || math.IsInf(t.xe[c+1], 0) {
			return nil, invalidCell(c, "zero-area column: x edges %g, %g", t.xe[c], t.xe[c+1])
		}
	}
	for r := 0; r < t.nrow; r++ {
		if !(t.ye[r+1] > t.ye[r]) || math.IsInf(t.ye[r], 0) || math.IsInf(t.ye[r+1], 0) {
			return nil, invalidCell(r*t.ncol, "zero-area row: y edges %g, %g", t.ye[r], t.ye[r+1])
		}
	}
	return newGrid(Structured, t, layers, nil)
}

func (t *structuredTopo) numCells() int { return t.nrow * t.ncol }

func (t *structuredTopo) rc(id int) (r, c int) { return id / t.ncol, id % t.ncol }

func (t *structuredTopo) polygon(id int) geom.Polygon {
	r, c := t.rc(id)
	x0, x1, y0, y1 := t.xe[c], t.xe[c+1], t.ye[r], t.ye[r+1]
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

func (t *structuredTopo) area(id int) float64 {
	r, c := t.rc(id)
	return (t.xe[c+1] - t.xe[c]) * (t.ye[r+1] - t.ye[r])
}

func (t *structuredTopo) centroid(id int) geom.Point {
	r, c := t.rc(id)
	return geom.Point{X: 0.5 * (t.xe[c] + t.xe[c+1]), Y: 0.5 * (t.ye[r] + t.ye[r+1])}
}

func (t *structuredTopo) cellBounds(id int) *geom.Bounds {
	r, c := t.rc(id)
	return &geom.Bounds{
		Min: geom.Point{X: t.xe[c], Y: t.ye[r]},
		Max: geom.Point{X: t.xe[c+1], Y: t.ye[r+1]},
	}
}

func (t *structuredTopo) isRectangle(int) bool { return true }

func (t *structuredTopo) faces() []Face {
	var out []Face
	for id := 0; id < t.numCells(); id++ {
		r, c := t.rc(id)
		if c+1 < t.ncol {
			out = append(out, Face{A: id, B: id + 1, Length: t.ye[r+1] - t.ye[r]})
		}
		if r+1 < t.nrow {
			out = append(out, Face{A: id, B: id + t.ncol, Length: t.xe[c+1] - t.xe[c]})
		}
	}
	return out
}

func (t *structuredTopo) extent() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: t.xe[0], Y: t.ye[0]},
		Max: geom.Point{X: t.xe[t.ncol], Y: t.ye[t.nrow]},
	}
}

func (t *structuredTopo) numVertices() int { return (t.nrow + 1) * (t.ncol + 1) }

func (t *structuredTopo) vertex(v int) geom.Point {
	r, c := v/(t.ncol+1), v%(t.ncol+1)
	return geom.Point{X: t.xe[c], Y: t.ye[r]}
}

func (t *structuredTopo) cellVertices(id int) []int {
	r, c := t.rc(id)
	w := t.ncol + 1
	return []int{r*w + c, r*w + c + 1, (r+1)*w + c + 1, (r+1)*w + c}
}

func (t *structuredTopo) writeHash(h hash.Hash) {
	h.Write([]byte{byte(Structured)})
	writeFloats(h, t.xe)
	writeFloats(h, t.ye)
}

func writeFloats(h hash.Hash, v []float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(v)))
	h.Write(buf[:])
	for _, x := range v {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
}

func (g *Grid) structured() (*structuredTopo, bool) {
	t, ok := g.topo.(*structuredTopo)
	return t, ok
}

// Shape returns the row and column counts of a structured grid, and zero for
// an unstructured one.
func (g *Grid) Shape() (nrow, ncol int) {
	if t, ok := g.structured(); ok {
		return t.nrow, t.ncol
	}
	return 0, 0
}

// XEdges returns a copy of the column edges, nil for unstructured grids
func (g *Grid) XEdges() []float64 {
	if t, ok := g.structured(); ok {
		return append([]float64(nil), t.xe...)
	}
	return nil
}

// YEdges returns a copy of the row edges, nil for unstructured grids
func (g *Grid) YEdges() []float64 {
	if t, ok := g.structured(); ok {
		return append([]float64(nil), t.ye...)
	}
	return nil
}

// RowCol converts a structured cell id to its row and column
func (g *Grid) RowCol(id int) (row, col int) {
	t, ok := g.structured()
	if !ok {
		panic("RowCol called on unstructured grid")
	}
	return t.rc(id)
}

// CellID converts a structured row and column to a cell id
func (g *Grid) CellID(row, col int) int {
	t, ok := g.structured()
	if !ok {
		panic("CellID called on unstructured grid")
	}
	if row < 0 || row >= t.nrow || col < 0 || col >= t.ncol {
		panic("row/col out of range")
	}
	return row*t.ncol + col
}

// Spacing reports the cell size of a structured grid. Equidistant is true
// when every column width is within 1e-6*dx of the first and every row
// height within 1e-6*dy of the first. Unstructured grids report zeros.
func (g *Grid) Spacing() (dx, dy float64, equidistant bool) {
	t, ok := g.structured()
	if !ok {
		return 0, 0, false
	}
	dx = t.xe[1] - t.xe[0]
	dy = t.ye[1] - t.ye[0]
	equidistant = uniformSteps(t.xe, dx) && uniformSteps(t.ye, dy)
	return
}

func uniformSteps(e []float64, d float64) bool {
	tol := 1e-6 * math.Abs(d)
	for i := 1; i < len(e); i++ {
		if math.Abs((e[i]-e[i-1])-d) > tol {
			return false
		}
	}
	return true
}
