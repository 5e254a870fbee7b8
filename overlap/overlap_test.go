package overlap

import (
	"errors"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gwgrid/grid"
)

func edges(x0, dx float64, n int) []float64 {
	e := make([]float64, n+1)
	for i := range e {
		e[i] = x0 + float64(i)*dx
	}
	return e
}

func structured(t *testing.T, x0, dx float64, nx int, y0, dy float64, ny int) *grid.Grid {
	g, err := grid.NewStructured(edges(x0, dx, nx), edges(y0, dy, ny), grid.UniformLayers(1, 0))
	require.NoError(t, err)
	return g
}

// triangulated splits every cell of a structured grid into two triangles
func triangulated(t *testing.T, g *grid.Grid) *grid.Grid {
	verts := g.Vertices()
	var cells [][]int
	for id := 0; id < g.NumCells(); id++ {
		v := g.CellVertices(id)
		cells = append(cells, []int{v[0], v[1], v[2]}, []int{v[0], v[2], v[3]})
	}
	u, err := grid.NewUnstructured(verts, cells, grid.UniformLayers(1, 0))
	require.NoError(t, err)
	return u
}

func TestCompute_StructuredAggregation(t *testing.T) {
	src := structured(t, 0, 100, 10, 0, 100, 10)
	tgt := structured(t, 0, 200, 5, 0, 200, 5)

	recs, err := NewEngine(Options{Workers: 3}).Compute(src, tgt)
	require.NoError(t, err)
	require.Len(t, recs, 100)
	require.NoError(t, Validate(recs, src, tgt))

	for _, r := range recs {
		assert.InDelta(t, 10000.0, r.Measure, 1e-9)
		sr, sc := src.RowCol(r.Source)
		tr, tc := tgt.RowCol(r.Target)
		assert.Equal(t, tr, sr/2)
		assert.Equal(t, tc, sc/2)
	}
	cov := Coverage(recs, tgt.NumCells())
	for id, c := range cov {
		assert.InDelta(t, tgt.Area(id), c, 1e-9)
	}
}

func TestCompute_StructuredOffset(t *testing.T) {
	src := structured(t, 0, 1, 4, 0, 1, 4)
	tgt := structured(t, 0.5, 1, 2, 0.5, 1, 2)

	recs, err := NewEngine(Options{}).Compute(src, tgt)
	require.NoError(t, err)
	// each target cell straddles four source cells by a quarter each
	assert.Len(t, recs, 16)
	for _, r := range recs {
		assert.InDelta(t, 0.25, r.Measure, 1e-12)
	}
}

func TestCompute_IndexedMatchesStructured(t *testing.T) {
	src := structured(t, 0, 1, 6, 0, 1, 6)
	tgt := structured(t, 0.25, 1.5, 3, 0.25, 1.5, 3)
	e := NewEngine(Options{})

	want, err := e.Compute(src, tgt)
	require.NoError(t, err)

	usrc, err := src.Subset(allCells(src))
	require.NoError(t, err)
	got, err := e.Compute(usrc, tgt)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Source, got[i].Source)
		assert.Equal(t, want[i].Target, got[i].Target)
		assert.InDelta(t, want[i].Measure, got[i].Measure, 1e-12)
	}
	assert.Equal(t, 1, e.Cache().Len())

	// second call reuses the cached index
	_, err = e.Compute(usrc, tgt)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Cache().Len())
}

func TestCompute_Triangles(t *testing.T) {
	src := triangulated(t, structured(t, 0, 1, 3, 0, 1, 3))
	tgt := structured(t, 0, 1.5, 2, 0, 1.5, 2)

	recs, err := NewEngine(Options{}).Compute(src, tgt)
	require.NoError(t, err)
	require.NoError(t, Validate(recs, src, tgt))
	cov := Coverage(recs, tgt.NumCells())
	for id, c := range cov {
		assert.InDelta(t, tgt.Area(id), c, 1e-9)
	}

	// source side sums back to source areas as well
	srcCov := make([]float64, src.NumCells())
	for _, r := range recs {
		srcCov[r.Source] += r.Measure
	}
	for id, c := range srcCov {
		assert.InDelta(t, src.Area(id), c, 1e-9)
	}
}

func TestCompute_NonConvex(t *testing.T) {
	// L-shaped cell covering three quarters of a 2x2 square, plus the
	// missing quarter
	verts := []geom.Point{
		{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}, {X: 2, Y: 2},
	}
	cells := [][]int{{0, 1, 2, 3, 4, 5}, {3, 2, 6, 4}}
	src, err := grid.NewUnstructured(verts, cells, grid.UniformLayers(1, 0))
	require.NoError(t, err)
	tgt := structured(t, -0.5, 3, 1, -0.5, 3, 1)

	recs, err := NewEngine(Options{}).Compute(src, tgt)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.InDelta(t, 3.0, recs[0].Measure, 1e-9)
	assert.InDelta(t, 1.0, recs[1].Measure, 1e-9)
	assert.Len(t, src.Faces(), 1)
	assert.InDelta(t, 2.0, src.Faces()[0].Length, 1e-12)
}

func TestCompute_Disjoint(t *testing.T) {
	a := structured(t, 0, 1, 2, 0, 1, 2)
	b := structured(t, 2, 1, 2, 0, 1, 2) // touches along x = 2 only
	_, err := NewEngine(Options{}).Compute(a, b)
	var de *DisjointGridsError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2.0, de.Target.Min.X)
}

func TestCompute_ToleranceDropsSlivers(t *testing.T) {
	src := structured(t, 0, 1, 2, 0, 1, 1)
	tgt, err := grid.NewStructured([]float64{0, 1 + 1e-12}, []float64{0, 1}, grid.UniformLayers(1, 0))
	require.NoError(t, err)
	recs, err := NewEngine(Options{RelativeTolerance: 1e-6}).Compute(src, tgt)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSelfOverlaps(t *testing.T) {
	verts := []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}}
	g, err := grid.NewUnstructured(verts, [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}}, grid.UniformLayers(1, 0))
	require.NoError(t, err)
	over := NewEngine(Options{}).SelfOverlaps(g)
	require.Len(t, over, 1)
	assert.Equal(t, 0, over[0].Source)
	assert.Equal(t, 1, over[0].Target)
	assert.InDelta(t, 1.0, over[0].Measure, 1e-12)
}

func TestClipConvex(t *testing.T) {
	sq := func(x0, y0, s float64) []geom.Point {
		return []geom.Point{{X: x0, Y: y0}, {X: x0 + s, Y: y0}, {X: x0 + s, Y: y0 + s}, {X: x0, Y: y0 + s}}
	}
	assert.InDelta(t, 0.25, ringArea(clipConvex(sq(0, 0, 1), sq(0.5, 0.5, 1))), 1e-12)
	assert.InDelta(t, 0.0, ringArea(clipConvex(sq(0, 0, 1), sq(2, 2, 1))), 1e-12)
	tri := []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	assert.InDelta(t, 1.0, ringArea(clipConvex(tri, sq(0, 0, 1))), 1e-12)
	assert.InDelta(t, 1.75, ringArea(clipConvex(tri, sq(0, 0, 1.5))), 1e-12)
	assert.True(t, isConvex(tri))
}

func allCells(g *grid.Grid) []int {
	ids := make([]int, g.NumCells())
	for i := range ids {
		ids[i] = i
	}
	return ids
}
