package partitions

import (
	"github.com/notargets/gwgrid/grid"
)

// CheckConnected verifies that the active cells of each partition form a
// single face-connected region. cellToPart is indexed by grid cell; inactive
// cells and cells labelled -1 are ignored, as are empty partitions.
func CheckConnected(g *grid.Grid, cellToPart []int, numPartitions int) error {
	return checkConnected(NewGraph(g), cellToPart, numPartitions)
}

func checkConnected(gr *Graph, cellToPart []int, numPartitions int) error {
	for p := 0; p < numPartitions; p++ {
		comps := gr.components(func(i int) bool { return cellToPart[gr.Cells[i]] == p })
		if len(comps) <= 1 {
			continue
		}
		largest := 0
		for i, c := range comps {
			if len(c) > len(comps[largest]) {
				largest = i
			}
		}
		var stray []int
		for i, c := range comps {
			if i == largest {
				continue
			}
			for _, n := range c {
				stray = append(stray, gr.Cells[n])
			}
		}
		return &DisconnectedPartitionError{Partition: p, Components: len(comps), Cells: stray}
	}
	return nil
}
