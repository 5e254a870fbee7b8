package partitions

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
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

func block(t *testing.T, nrow, ncol int, layers grid.LayerTable) *grid.Grid {
	g, err := grid.NewStructured(edges(0, 10, ncol), edges(0, 10, nrow), layers)
	require.NoError(t, err)
	return g
}

func seed(s uint64) *uint64 { return &s }

func TestNewGraph(t *testing.T) {
	g := block(t, 3, 3, grid.UniformLayers(10, 0))
	gr := NewGraph(g)
	assert.Equal(t, 9, gr.NumNodes())
	assert.Equal(t, 9, gr.TotalWeight())
	assert.Equal(t, 24, gr.Xadj[9], "12 undirected edges stored twice")
	for _, w := range gr.Adjwgt {
		assert.InDelta(t, 10.0, w, 1e-12)
	}
	// split into left column and the rest: three horizontal faces are cut
	part := []int{0, 1, 1, 0, 1, 1, 0, 1, 1}
	assert.InDelta(t, 30.0, gr.EdgeCut(part), 1e-12)
	assert.Len(t, gr.Components(), 1)
}

func TestNewGraph_InactiveAndWeights(t *testing.T) {
	lt := grid.UniformLayers(10, 5, 0)
	// cell 1 inactive in both layers, cell 2 only in the lower layer
	lt.Active = [][]bool{
		{true, false, false},
		{true, false, true},
	}
	g := block(t, 1, 3, lt)
	gr := NewGraph(g)
	assert.Equal(t, []int{0, 2}, gr.Cells)
	assert.Equal(t, []int{2, 1}, gr.Vwgt)
	assert.Len(t, gr.Components(), 2)
}

func TestPartition_TenByTen(t *testing.T) {
	g := block(t, 10, 10, grid.UniformLayers(10, 0))
	p := NewPartitioner(Options{NumPartitions: 4, Tolerance: 0.05, Seed: seed(7)})
	res, err := p.Partition(g)
	require.NoError(t, err)

	assert.Equal(t, res.RunID, res.Assignment.RunID)
	assert.Equal(t, res.RunID, res.Exchange.RunID)
	assert.Same(t, g, res.Grid())

	counts := make([]int, 4)
	for c, part := range res.Assignment.CellToPart {
		require.True(t, part >= 0 && part < 4, "cell %d assigned to %d", c, part)
		counts[part]++
	}
	for part, n := range counts {
		assert.True(t, n >= 24 && n <= 26, "partition %d has %d cells", part, n)
	}
	assert.Equal(t, counts, res.Stats.Weights)
	assert.LessOrEqual(t, res.Stats.Imbalance, 1.05)

	require.NoError(t, CheckConnected(g, res.Assignment.CellToPart, 4))

	cut := 0
	for _, f := range g.Faces() {
		if res.Assignment.CellToPart[f.A] != res.Assignment.CellToPart[f.B] {
			cut++
		}
	}
	assert.Equal(t, cut, res.Exchange.NumFaces())
	assert.Equal(t, cut, res.Stats.CutFaces)
	assert.InDelta(t, 10*float64(cut), res.Stats.EdgeCut, 1e-9)

	total := 0
	for i, sd := range res.Subdomains {
		require.NotNil(t, sd.Grid)
		assert.Equal(t, i, sd.Index)
		assert.Equal(t, sd.Cells, sd.Grid.ParentIDs())
		total += len(sd.Cells)
	}
	assert.Equal(t, 100, total)

	for _, it := range res.Exchange.Interfaces {
		assert.Less(t, it.PartA, it.PartB)
		for _, e := range it.Entries {
			assert.Equal(t, it.PartA, res.Assignment.Part(e.CellA))
			assert.Equal(t, it.PartB, res.Assignment.Part(e.CellB))
			assert.Equal(t, e.CellA, res.Subdomains[it.PartA].Cells[e.LocalA])
			assert.Equal(t, e.CellB, res.Subdomains[it.PartB].Cells[e.LocalB])
		}
	}
}

func TestPartition_Deterministic(t *testing.T) {
	g := block(t, 12, 9, grid.UniformLayers(10, 0))
	opts := Options{NumPartitions: 3, Seed: seed(42)}
	a, err := NewPartitioner(opts).Partition(g)
	require.NoError(t, err)
	b, err := NewPartitioner(opts).Partition(g)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Assignment.CellToPart, b.Assignment.CellToPart); diff != "" {
		t.Errorf("same seed gave different assignments (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestPartition_SinglePartition(t *testing.T) {
	g := block(t, 4, 4, grid.UniformLayers(10, 0))
	res, err := NewPartitioner(Options{NumPartitions: 1}).Partition(g)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Exchange.NumFaces())
	assert.Equal(t, 16, res.Subdomains[0].Grid.NumCells())
}

func islands(t *testing.T) *grid.Grid {
	lt := grid.UniformLayers(10, 0)
	// column 2 of a 2x5 block is inactive, leaving two islands of four cells
	lt.Active = [][]bool{{
		true, true, false, true, true,
		true, true, false, true, true,
	}}
	return block(t, 2, 5, lt)
}

func TestPartition_Components(t *testing.T) {
	g := islands(t)

	_, err := NewPartitioner(Options{NumPartitions: 1}).Partition(g)
	var de *DisconnectedPartitionError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, -1, de.Partition)
	assert.Equal(t, 2, de.Components)

	res, err := NewPartitioner(Options{NumPartitions: 2, Seed: seed(1)}).Partition(g)
	require.NoError(t, err)
	want := []int{0, 0, -1, 1, 1, 0, 0, -1, 1, 1}
	assert.Equal(t, want, res.Assignment.CellToPart)
	assert.Equal(t, 0, res.Exchange.NumFaces())
}

func TestPartition_Infeasible(t *testing.T) {
	g := block(t, 2, 2, grid.UniformLayers(10, 0))
	_, err := NewPartitioner(Options{NumPartitions: 5}).Partition(g)
	var ie *InfeasibleBalanceError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, 5, ie.NumPartitions)

	// three cells cannot be split in two within 5%
	g = block(t, 1, 3, grid.UniformLayers(10, 0))
	_, err = NewPartitioner(Options{NumPartitions: 2, Seed: seed(3), MaxAttempts: 2}).Partition(g)
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, 2, ie.Attempts)
	assert.ElementsMatch(t, []int{1, 2}, ie.Weights)
}

func TestAllocate(t *testing.T) {
	gr := &Graph{Vwgt: make([]int, 40)}
	for i := range gr.Vwgt {
		gr.Vwgt[i] = 1
	}
	var big, small []int
	for i := 0; i < 40; i++ {
		if i < 30 {
			big = append(big, i)
		} else {
			small = append(small, i)
		}
	}
	assert.Equal(t, []int{3, 1}, allocate(gr, [][]int{big, small}, 4))
	assert.Equal(t, []int{1, 1}, allocate(gr, [][]int{big, small}, 2))
	assert.Equal(t, []int{5, 2}, allocate(gr, [][]int{big, small}, 7))
}

func halves(g *grid.Grid) []int {
	_, ncol := g.Shape()
	labels := make([]int, g.NumCells())
	for id := range labels {
		if id%ncol >= ncol/2 {
			labels[id] = 1
		}
	}
	return labels
}

func TestSplitByLabels(t *testing.T) {
	g := block(t, 4, 4, grid.UniformLayers(10, 0))
	res, err := NewPartitioner(Options{}).SplitByLabels(g, halves(g))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assignment.NumPartitions)
	assert.Equal(t, []int{0, 1, 4, 5, 8, 9, 12, 13}, res.Subdomains[0].Cells)
	assert.Equal(t, 4, res.Exchange.NumFaces())
	assert.Equal(t, []int{1}, res.Exchange.Neighbors(0))

	fwd := res.Exchange.Between(0, 1)
	require.Len(t, fwd, 4)
	assert.Equal(t, ExchangeEntry{CellA: 1, CellB: 2, LocalA: 1, LocalB: 0, Length: 10}, fwd[0])

	back := res.Exchange.Between(1, 0)
	require.Len(t, back, 4)
	assert.Equal(t, ExchangeEntry{CellA: 2, CellB: 1, LocalA: 0, LocalB: 1, Length: 10}, back[0])
	assert.Nil(t, res.Exchange.Between(0, 3))
}

func TestSplitByLabels_Errors(t *testing.T) {
	g := block(t, 4, 4, grid.UniformLayers(10, 0))

	labels := make([]int, 16)
	for i := range labels {
		labels[i] = 1
	}
	labels[0], labels[15] = 0, 0
	_, err := NewPartitioner(Options{}).SplitByLabels(g, labels)
	var de *DisconnectedPartitionError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, 0, de.Partition)
	assert.Equal(t, []int{15}, de.Cells)

	_, err = NewPartitioner(Options{NumPartitions: 3}).SplitByLabels(g, halves(g))
	assert.Error(t, err, "empty partition")

	res, err := NewPartitioner(Options{NumPartitions: 3, AllowEmpty: true}).SplitByLabels(g, halves(g))
	require.NoError(t, err)
	assert.Nil(t, res.Subdomains[2].Grid)

	labels = halves(g)
	labels[3] = 2
	_, err = NewPartitioner(Options{NumPartitions: 2}).SplitByLabels(g, labels)
	assert.Error(t, err)

	_, err = NewPartitioner(Options{}).SplitByLabels(g, labels[:4])
	assert.Error(t, err)
}

func TestSplitAndMergeFields(t *testing.T) {
	g := block(t, 4, 4, grid.UniformLayers(10, 5, 0))
	res, err := NewPartitioner(Options{}).SplitByLabels(g, halves(g))
	require.NoError(t, err)

	f, err := grid.NewField(g, "head", grid.AllLayers(g), 1)
	require.NoError(t, err)
	for k := 0; k < 2; k++ {
		for id := 0; id < 16; id++ {
			f.Set(k, id, float64(100*k+id))
		}
	}
	f.SetNoData(1, 6)

	parts, err := res.SplitField(f)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	v, ok := parts[1].Value(0, 0)
	require.True(t, ok)
	assert.Equal(t, 2.0, v, "first cell of the right half is global cell 2")
	assert.Equal(t, grid.NoData, parts[1].State(1, 2))

	merged, err := res.MergeFields(parts)
	require.NoError(t, err)
	for k := 0; k < 2; k++ {
		for id := 0; id < 16; id++ {
			assert.Equal(t, f.State(k, id), merged.State(k, id))
			want, _ := f.Value(k, id)
			got, _ := merged.Value(k, id)
			assert.Equal(t, want, got)
		}
	}

	_, err = res.MergeFields(parts[:1])
	assert.Error(t, err)

	other := block(t, 4, 4, grid.UniformLayers(10, 5, 0))
	stray, err := grid.NewField(other, "head", nil, 1)
	require.NoError(t, err)
	_, err = res.SplitField(stray)
	assert.ErrorIs(t, err, grid.ErrGridMismatch)
}

func TestMergeFields_InactiveCellsAreNoData(t *testing.T) {
	g := islands(t)
	res, err := NewPartitioner(Options{NumPartitions: 2, Seed: seed(1)}).Partition(g)
	require.NoError(t, err)
	f, err := grid.NewField(g, "k", nil, 1)
	require.NoError(t, err)
	for id := 0; id < g.NumCells(); id++ {
		f.Set(grid.Planar, id, 1)
	}
	parts, err := res.SplitField(f)
	require.NoError(t, err)
	merged, err := res.MergeFields(parts)
	require.NoError(t, err)
	assert.Equal(t, grid.NoData, merged.State(grid.Planar, 2))
	assert.Equal(t, grid.NoData, merged.State(grid.Planar, 7))
	assert.Equal(t, grid.Defined, merged.State(grid.Planar, 8))
}

func TestCoarsen_PreservesWeight(t *testing.T) {
	gr := NewGraph(block(t, 10, 10, grid.UniformLayers(10, 0)))
	rng := rand.New(rand.NewPCG(1, 2))
	levels := coarsen(gr, 20, rng)
	require.Greater(t, len(levels), 1)
	for i, lv := range levels {
		assert.Equal(t, 100, lv.graph.TotalWeight(), "level %d", i)
		if i > 0 {
			assert.Len(t, lv.cmap, levels[i-1].graph.NumNodes())
			assert.Less(t, lv.graph.NumNodes(), levels[i-1].graph.NumNodes())
		}
	}
	coarse := levels[len(levels)-1].graph
	assert.Len(t, coarse.Components(), 1)
}

func TestKway_CanLeave(t *testing.T) {
	gr := NewGraph(block(t, 1, 3, grid.UniformLayers(10, 0)))
	s := newKway(gr, 2, []int{0, 0, 1}, 0.05)
	assert.True(t, s.canLeave(1), "node 0 stays connected on its own")
	assert.False(t, (&kway{gr: gr, part: []int{0, 0, 0}, count: []int{3}, mark: make([]int, 3)}).canLeave(1),
		"removing the middle node splits the part")
	assert.False(t, newKway(gr, 2, []int{0, 0, 1}, 0.05).canLeave(2), "last node of a part")
}
