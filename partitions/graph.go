package partitions

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/gwgrid/grid"
)

// Graph is an undirected weighted graph in compressed sparse row form. The
// neighbors of node i are Adjncy[Xadj[i]:Xadj[i+1]] with edge weights in the
// same positions of Adjwgt.
type Graph struct {
	Xadj   []int
	Adjncy []int
	Adjwgt []float64
	Vwgt   []int

	// Cells maps node i to its grid cell. Nil for coarsened graphs.
	Cells []int
}

// NewGraph returns the active-cell adjacency graph of g: one node per cell
// active in any layer, weighted by its active layer count, and one edge per
// face between two active cells, weighted by the face length.
func NewGraph(g *grid.Grid) *Graph {
	cells := g.ActiveCells()
	node := make([]int, g.NumCells())
	for i := range node {
		node[i] = -1
	}
	for i, c := range cells {
		node[c] = i
	}
	gr := &Graph{
		Xadj:  make([]int, len(cells)+1),
		Vwgt:  make([]int, len(cells)),
		Cells: cells,
	}
	for i, c := range cells {
		gr.Vwgt[i] = g.ActiveLayerCount(c)
		for _, nb := range g.Neighbors(c) {
			if node[nb.Cell] >= 0 {
				gr.Xadj[i+1]++
			}
		}
	}
	for i := 0; i < len(cells); i++ {
		gr.Xadj[i+1] += gr.Xadj[i]
	}
	gr.Adjncy = make([]int, gr.Xadj[len(cells)])
	gr.Adjwgt = make([]float64, gr.Xadj[len(cells)])
	for i, c := range cells {
		pos := gr.Xadj[i]
		for _, nb := range g.Neighbors(c) {
			if j := node[nb.Cell]; j >= 0 {
				gr.Adjncy[pos] = j
				gr.Adjwgt[pos] = nb.Length
				pos++
			}
		}
	}
	return gr
}

func (gr *Graph) NumNodes() int { return len(gr.Vwgt) }

func (gr *Graph) TotalWeight() int {
	var w int
	for _, v := range gr.Vwgt {
		w += v
	}
	return w
}

func (gr *Graph) neighbors(i int) ([]int, []float64) {
	return gr.Adjncy[gr.Xadj[i]:gr.Xadj[i+1]], gr.Adjwgt[gr.Xadj[i]:gr.Xadj[i+1]]
}

func (gr *Graph) undirected(keep func(i int) bool) *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for i := 0; i < gr.NumNodes(); i++ {
		if keep(i) {
			ug.AddNode(simple.Node(i))
		}
	}
	for i := 0; i < gr.NumNodes(); i++ {
		if !keep(i) {
			continue
		}
		adj, _ := gr.neighbors(i)
		for _, j := range adj {
			if j > i && keep(j) {
				ug.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}
	return ug
}

// components returns the connected components of the nodes accepted by keep,
// each sorted ascending, ordered by their smallest node
func (gr *Graph) components(keep func(i int) bool) [][]int {
	var out [][]int
	for _, cc := range topo.ConnectedComponents(gr.undirected(keep)) {
		ids := make([]int, len(cc))
		for i, n := range cc {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Components returns the connected components of the whole graph
func (gr *Graph) Components() [][]int {
	return gr.components(func(int) bool { return true })
}

// subgraph returns the graph induced by nodes, which must be sorted. Node i
// of the result is nodes[i] of gr.
func (gr *Graph) subgraph(nodes []int) *Graph {
	local := make(map[int]int, len(nodes))
	for i, n := range nodes {
		local[n] = i
	}
	sub := &Graph{Xadj: make([]int, len(nodes)+1), Vwgt: make([]int, len(nodes))}
	for i, n := range nodes {
		sub.Vwgt[i] = gr.Vwgt[n]
		adj, wgt := gr.neighbors(n)
		for k, m := range adj {
			if j, ok := local[m]; ok {
				sub.Adjncy = append(sub.Adjncy, j)
				sub.Adjwgt = append(sub.Adjwgt, wgt[k])
			}
		}
		sub.Xadj[i+1] = len(sub.Adjncy)
	}
	return sub
}

// EdgeCut returns the summed weight of edges whose ends lie in different
// parts
func (gr *Graph) EdgeCut(part []int) float64 {
	var cut float64
	for i := 0; i < gr.NumNodes(); i++ {
		adj, wgt := gr.neighbors(i)
		for k, j := range adj {
			if j > i && part[i] != part[j] {
				cut += wgt[k]
			}
		}
	}
	return cut
}
