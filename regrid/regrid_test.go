package regrid

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/overlap"
)

func edges(x0, dx float64, n int) []float64 {
	e := make([]float64, n+1)
	for i := range e {
		e[i] = x0 + float64(i)*dx
	}
	return e
}

func square(t *testing.T, x0, dx float64, n int, layers grid.LayerTable) *grid.Grid {
	g, err := grid.NewStructured(edges(x0, dx, n), edges(x0, dx, n), layers)
	require.NoError(t, err)
	return g
}

func planarField(t *testing.T, g *grid.Grid, name string, fn func(id int) float64) *grid.Field {
	f, err := grid.NewField(g, name, nil, 1)
	require.NoError(t, err)
	for id := 0; id < g.NumCells(); id++ {
		f.Set(grid.Planar, id, fn(id))
	}
	return f
}

func values(f *grid.Field, layer int) []float64 {
	out := make([]float64, f.Grid().NumCells())
	for id := range out {
		out[id], _ = f.Value(layer, id)
	}
	return out
}

func TestConservative_FourToOne(t *testing.T) {
	src := square(t, 0, 100, 10, grid.UniformLayers(10, 0))
	tgt := square(t, 0, 200, 5, grid.UniformLayers(10, 0))
	f := planarField(t, src, "recharge", func(id int) float64 { return float64(id + 1) })

	r := New(nil, nil, 2)
	recs, err := r.Engine().Compute(src, tgt)
	require.NoError(t, err)
	assert.Len(t, recs, 100, "no overlap may be discarded")

	out, err := r.Apply(recs, f, tgt, Options{Method: Conservative})
	require.NoError(t, err)
	for tid := 0; tid < tgt.NumCells(); tid++ {
		tr, tc := tgt.RowCol(tid)
		var want float64
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				want += float64(src.CellID(2*tr+i, 2*tc+j) + 1)
			}
		}
		got, ok := out.Value(grid.Planar, tid)
		require.True(t, ok)
		assert.InDelta(t, want, got, 1e-9)
	}
	assert.InDelta(t, f.Total(0), out.Total(0), 1e-6*f.Total(0))
}

func TestConservative_OffsetGridsConserve(t *testing.T) {
	src := square(t, 0, 1, 9, grid.UniformLayers(1, 0))
	tgt := square(t, -1, 2.5, 5, grid.UniformLayers(1, 0)) // covers the source entirely
	f := planarField(t, src, "q", func(id int) float64 { return float64(id%7) + 0.5 })

	out, err := New(nil, nil, 0).Regrid(f, tgt, Options{Method: Conservative, Fill: new(float64)})
	require.NoError(t, err)
	assert.InDelta(t, f.Total(0), out.Total(0), 1e-6*f.Total(0))
}

func TestMean_AreaAndVolume(t *testing.T) {
	// two source cells of different thickness under one target cell
	lt := grid.LayerTable{Top: []float64{10}, Bottoms: [][]float64{{8, 4}}}
	src, err := grid.NewStructured([]float64{0, 1, 2}, []float64{0, 1}, lt)
	require.NoError(t, err)
	tgt, err := grid.NewStructured([]float64{0, 2}, []float64{0, 1}, grid.UniformLayers(10, 0))
	require.NoError(t, err)

	f := planarField(t, src, "kh", func(id int) float64 { return []float64{1, 4}[id] })
	r := New(nil, nil, 1)

	out, err := r.Regrid(f, tgt, Options{Method: Mean})
	require.NoError(t, err)
	v, _ := out.Value(grid.Planar, 0)
	assert.InDelta(t, 2.5, v, 1e-12)

	out, err = r.Regrid(f, tgt, Options{Method: Mean, Weighting: Volume})
	require.NoError(t, err)
	v, _ = out.Value(grid.Planar, 0)
	assert.InDelta(t, (1*2+4*6)/8.0, v, 1e-12)
}

func TestMean_IgnoresNoData(t *testing.T) {
	src := square(t, 0, 1, 2, grid.UniformLayers(1, 0))
	tgt := square(t, 0, 2, 1, grid.UniformLayers(1, 0))
	f := planarField(t, src, "head", func(id int) float64 { return float64(id) })
	f.SetNoData(grid.Planar, 3)

	out, err := New(nil, nil, 1).Regrid(f, tgt, Options{Method: Mean})
	require.NoError(t, err)
	v, ok := out.Value(grid.Planar, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-12) // (0+1+2)/3
}

func TestMajority_TieLowestID(t *testing.T) {
	src := square(t, 0, 1, 2, grid.UniformLayers(1, 0))
	tgt := square(t, 0, 2, 1, grid.UniformLayers(1, 0))
	f := planarField(t, src, "zone", func(id int) float64 { return []float64{7, 3, 3, 9}[id] })

	r := New(nil, nil, 1)
	out, err := r.Regrid(f, tgt, Options{Method: Majority})
	require.NoError(t, err)
	v, _ := out.Value(grid.Planar, 0)
	assert.Equal(t, 7.0, v, "equal overlaps resolve to the lowest source id")

	// shifted target overlaps source cell 3 the most
	shifted, err := grid.NewStructured([]float64{0.8, 2}, []float64{0.8, 2}, grid.UniformLayers(1, 0))
	require.NoError(t, err)
	out, err = r.Regrid(f, shifted, Options{Method: Majority})
	require.NoError(t, err)
	v, _ = out.Value(grid.Planar, 0)
	assert.Equal(t, 9.0, v)
}

func TestUncoveredAndInactiveTargets(t *testing.T) {
	src := square(t, 0, 1, 2, grid.UniformLayers(1, 0))
	lt := grid.UniformLayers(1, 0)
	lt.Active = [][]bool{{true, true, true, false, true, true, true, true, true}}
	tgt := square(t, 0, 1, 3, lt) // third row and column lie outside the source
	f := planarField(t, src, "k", func(int) float64 { return 5 })

	r := New(nil, nil, 1)
	out, err := r.Regrid(f, tgt, Options{Method: Mean})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5, 6, 7, 8}, out.Cells(grid.Planar, grid.NoData))
	assert.Empty(t, out.Cells(grid.Planar, grid.Unset))

	fill := -1.0
	out, err = r.Regrid(f, tgt, Options{Method: Mean, Fill: &fill})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out.Cells(grid.Planar, grid.NoData), "inactive entries stay no-data")
	v, _ := out.Value(grid.Planar, 8)
	assert.Equal(t, -1.0, v)
	v, _ = out.Value(grid.Planar, 0)
	assert.Equal(t, 5.0, v)
}

func TestIdempotentRoundTrip(t *testing.T) {
	a := square(t, 0, 1, 8, grid.UniformLayers(1, 0))
	b := square(t, 0, 2, 4, grid.UniformLayers(1, 0))
	// constant over each 2x2 block, so nothing varies below b's resolution
	fa := planarField(t, a, "h", func(id int) float64 {
		r, c := a.RowCol(id)
		return float64(b.CellID(r/2, c/2)) * 1.25
	})

	r := New(nil, nil, 0)
	opts := Options{Method: Mean}
	fb, err := r.Regrid(fa, b, opts)
	require.NoError(t, err)
	fa2, err := r.Regrid(fb, a, opts)
	require.NoError(t, err)
	fb2, err := r.Regrid(fa2, b, opts)
	require.NoError(t, err)

	assert.InDeltaSlice(t, values(fa, grid.Planar), values(fa2, grid.Planar), 1e-12)
	assert.InDeltaSlice(t, values(fb, grid.Planar), values(fb2, grid.Planar), 1e-12)

	// bit-for-bit repeatable
	again, err := r.Regrid(fa, b, opts)
	require.NoError(t, err)
	if diff := cmp.Diff(values(fb, grid.Planar), values(again, grid.Planar)); diff != "" {
		t.Errorf("repeated regrid differs (-first +second):\n%s", diff)
	}
}

func TestLayeredVectorField(t *testing.T) {
	src := square(t, 0, 1, 2, grid.UniformLayers(3, 2, 1))
	tgt := square(t, 0, 2, 1, grid.UniformLayers(3, 2, 1))
	f, err := grid.NewField(src, "v", []int{1}, 2)
	require.NoError(t, err)
	for id := 0; id < 4; id++ {
		f.Set(1, id, float64(id), 10*float64(id))
	}
	out, err := New(nil, nil, 1).Regrid(f, tgt, Options{Method: Conservative})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out.Layers())
	vec, ok := out.Vector(1, 0)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{6, 60}, vec, 1e-12)

	shallow := square(t, 0, 2, 1, grid.UniformLayers(3, 2))
	_, err = New(nil, nil, 1).Regrid(f, shallow, Options{Method: Conservative})
	assert.Error(t, err)
}

func TestPointSample(t *testing.T) {
	src := square(t, 0, 1, 5, grid.UniformLayers(1, 0))
	plane := func(x, y float64) float64 { return 3 + 2*x - y }
	f := planarField(t, src, "obs", func(id int) float64 {
		c := src.Centroid(id)
		return plane(c.X, c.Y)
	})
	r := New(nil, nil, 1)

	// targets centred on source centroids hit exactly
	same := square(t, 0, 1, 5, grid.UniformLayers(1, 0))
	out, err := r.Regrid(f, same, Options{Method: PointSample})
	require.NoError(t, err)
	assert.InDeltaSlice(t, values(f, grid.Planar), values(out, grid.Planar), 1e-12)

	// a linear field is reproduced by the plane fit
	off := square(t, 0.3, 1.3, 3, grid.UniformLayers(1, 0))
	out, err = r.Regrid(f, off, Options{Method: PointSample, Interpolation: Linear, K: 6})
	require.NoError(t, err)
	for id := 0; id < off.NumCells(); id++ {
		c := off.Centroid(id)
		v, ok := out.Value(grid.Planar, id)
		require.True(t, ok)
		assert.InDelta(t, plane(c.X, c.Y), v, 1e-9)
	}

	// inverse distance stays within the range of its neighbors
	out, err = r.Regrid(f, off, Options{Method: PointSample})
	require.NoError(t, err)
	lo, hi := plane(0, 5), plane(5, 0)
	for _, v := range values(out, grid.Planar) {
		assert.True(t, v >= lo && v <= hi)
	}
}

func TestRegridAll(t *testing.T) {
	src := square(t, 0, 1, 4, grid.UniformLayers(1, 0))
	tgt := square(t, 0, 2, 2, grid.UniformLayers(1, 0))
	kh := planarField(t, src, "kh", func(int) float64 { return 2 })
	rch := planarField(t, src, "rch", func(int) float64 { return 1 })

	e := overlap.NewEngine(overlap.Options{})
	r := New(e, nil, 0)
	out, err := r.RegridAll([]*grid.Field{kh, rch}, tgt, map[string]Options{
		"kh":  {Method: Mean},
		"rch": {Method: Conservative},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "kh", out[0].Name())
	assert.InDeltaSlice(t, []float64{2, 2, 2, 2}, values(out[0], grid.Planar), 1e-12)
	assert.InDeltaSlice(t, []float64{4, 4, 4, 4}, values(out[1], grid.Planar), 1e-12)

	_, err = r.RegridAll([]*grid.Field{kh}, tgt, map[string]Options{})
	assert.Error(t, err)
}

func TestRegrid_Disjoint(t *testing.T) {
	src := square(t, 0, 1, 2, grid.UniformLayers(1, 0))
	tgt := square(t, 10, 1, 2, grid.UniformLayers(1, 0))
	f := planarField(t, src, "x", func(int) float64 { return 1 })
	_, err := New(nil, nil, 1).Regrid(f, tgt, Options{Method: Mean})
	var de *overlap.DisjointGridsError
	assert.True(t, errors.As(err, &de))
}

func TestParseMethod(t *testing.T) {
	for s, want := range map[string]Method{
		"mean": Mean, "Conservative": Conservative, "sum": Conservative,
		"majority": Majority, "nearest": Majority, "point_sample": PointSample, "idw": PointSample,
	} {
		m, err := ParseMethod(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, m, s)
		if s == want.String() {
			assert.Equal(t, s, m.String())
		}
	}
	_, err := ParseMethod("bilinear")
	assert.Error(t, err)
}
