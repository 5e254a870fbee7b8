// Package grid holds the spatial discretization of a groundwater model: a
// planar tessellation of cells (structured rectangles or unstructured
// polygons), a layer-elevation table and per-layer active flags, plus the
// Fields defined on it.
//
// A Grid is immutable. Operations such as ClipBox and Subset return a new
// Grid whose cells are renumbered contiguously and which remembers the ids of
// the cells it was derived from.
package grid

import (
	"fmt"
	"hash"
	"sync"

	"github.com/ctessum/geom"
)

// Kind identifies the tessellation of a Grid
type Kind uint8

const (
	Structured   Kind = iota // Axis-aligned rectangles from edge coordinates
	Unstructured             // Arbitrary simple polygons over a vertex list
)

func (k Kind) String() string {
	switch k {
	case Structured:
		return "structured"
	case Unstructured:
		return "unstructured"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Face is a boundary segment shared by two cells of the same grid
type Face struct {
	A, B   int     // Cell ids, A < B
	Length float64 // Shared boundary length
}

// Neighbor is a cell sharing a face with another cell
type Neighbor struct {
	Cell   int
	Length float64
}

// topology is the capability set every grid kind provides. Consumers use the
// Grid methods and never switch on the kind themselves.
type topology interface {
	numCells() int
	polygon(id int) geom.Polygon
	area(id int) float64
	centroid(id int) geom.Point
	cellBounds(id int) *geom.Bounds
	isRectangle(id int) bool
	faces() []Face
	extent() *geom.Bounds
	numVertices() int
	vertex(v int) geom.Point
	cellVertices(id int) []int // counter-clockwise, not closed
	writeHash(h hash.Hash)
}

// Grid is a planar tessellation plus a vertical layering scheme
type Grid struct {
	kind Kind
	topo topology

	nlay   int
	top    []float64   // [cell]
	bot    [][]float64 // [layer][cell]
	active [][]bool    // [layer][cell]

	faceList []Face
	adj      [][]Neighbor

	parent []int // ids in the grid this one was derived from, nil for a root grid

	hashOnce sync.Once
	hash     string
}

func newGrid(kind Kind, topo topology, layers LayerTable, parent []int) (*Grid, error) {
	n := topo.numCells()
	if n == 0 {
		return nil, invalidGrid("grid has no cells")
	}
	top, bot, active, err := layers.expand(n)
	if err != nil {
		return nil, err
	}
	g := &Grid{
		kind:     kind,
		topo:     topo,
		nlay:     len(bot),
		top:      top,
		bot:      bot,
		active:   active,
		faceList: topo.faces(),
		parent:   parent,
	}
	g.adj = make([][]Neighbor, n)
	for _, f := range g.faceList {
		g.adj[f.A] = append(g.adj[f.A], Neighbor{Cell: f.B, Length: f.Length})
		g.adj[f.B] = append(g.adj[f.B], Neighbor{Cell: f.A, Length: f.Length})
	}
	return g, nil
}

func (g *Grid) Kind() Kind { return g.kind }
func (g *Grid) NumCells() int { return g.topo.numCells() }
func (g *Grid) NumLayers() int { return g.nlay }

// Extent returns the bounding box of all cells
func (g *Grid) Extent() *geom.Bounds {
	b := g.topo.extent()
	return &geom.Bounds{Min: b.Min, Max: b.Max}
}

// Polygon returns the closed, counter-clockwise outline of cell id
func (g *Grid) Polygon(id int) geom.Polygon { return g.topo.polygon(id) }

func (g *Grid) Area(id int) float64 { return g.topo.area(id) }
func (g *Grid) Centroid(id int) geom.Point { return g.topo.centroid(id) }
func (g *Grid) CellBounds(id int) *geom.Bounds { return g.topo.cellBounds(id) }

// IsRectangle reports whether cell id is an axis-aligned rectangle equal to
// its bounding box
func (g *Grid) IsRectangle(id int) bool { return g.topo.isRectangle(id) }

func (g *Grid) Top(id int) float64 { return g.top[id] }
func (g *Grid) Bottom(layer, id int) float64 { return g.bot[layer][id] }
func (g *Grid) IsActive(layer, id int) bool { return g.active[layer][id] }

// Thickness returns the thickness of layer at cell id
func (g *Grid) Thickness(layer, id int) float64 {
	if layer == 0 {
		return g.top[id] - g.bot[0][id]
	}
	return g.bot[layer-1][id] - g.bot[layer][id]
}

// TotalThickness returns the distance from model top to the bottom of the
// last layer at cell id
func (g *Grid) TotalThickness(id int) float64 {
	return g.top[id] - g.bot[g.nlay-1][id]
}

// CellActive reports whether cell id is active in at least one layer
func (g *Grid) CellActive(id int) bool {
	for k := 0; k < g.nlay; k++ {
		if g.active[k][id] {
			return true
		}
	}
	return false
}

// ActiveLayerCount returns the number of layers in which cell id is active
func (g *Grid) ActiveLayerCount(id int) int {
	n := 0
	for k := 0; k < g.nlay; k++ {
		if g.active[k][id] {
			n++
		}
	}
	return n
}

// ActiveCells returns, in ascending order, the cells active in any layer
func (g *Grid) ActiveCells() []int {
	var ids []int
	for id := 0; id < g.NumCells(); id++ {
		if g.CellActive(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Neighbors returns the cells sharing a face with cell id. The slice must
// not be modified.
func (g *Grid) Neighbors(id int) []Neighbor { return g.adj[id] }

// Faces returns every interior face exactly once, ordered by (A, B). The
// slice must not be modified.
func (g *Grid) Faces() []Face { return g.faceList }

// ParentID returns the id cell id had in the root grid it was derived from.
// For a root grid it returns id.
func (g *Grid) ParentID(id int) int {
	if g.parent == nil {
		return id
	}
	return g.parent[id]
}

// ParentIDs returns the root-grid id of every cell
func (g *Grid) ParentIDs() []int {
	out := make([]int, g.NumCells())
	for i := range out {
		out[i] = g.ParentID(i)
	}
	return out
}

func (g *Grid) checkLayer(layer int) error {
	if layer < 0 || layer >= g.nlay {
		return fmt.Errorf("layer %d outside [0,%d)", layer, g.nlay)
	}
	return nil
}
