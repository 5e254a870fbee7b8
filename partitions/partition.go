package partitions

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/notargets/gwgrid/grid"
)

// Assignment maps every grid cell to its partition. Cells that are inactive
// in every layer map to -1.
type Assignment struct {
	RunID         uuid.UUID
	NumPartitions int
	CellToPart    []int
}

// Part returns the partition of a grid cell, -1 for inactive cells
func (a *Assignment) Part(cell int) int {
	if cell < 0 || cell >= len(a.CellToPart) {
		return -1
	}
	return a.CellToPart[cell]
}

// Subdomain is the part of the model owned by one partition. Grid cell i is
// global cell Cells[i]; the same mapping is available as Grid.ParentIDs().
type Subdomain struct {
	Index int
	Grid  *grid.Grid // nil for an empty partition
	Cells []int
}

// Stats summarizes the quality of a partitioning
type Stats struct {
	NumPartitions int
	Weights       []int // summed active layer count per partition
	CellCounts    []int
	MinWeight     int
	MaxWeight     int
	MeanWeight    float64
	Imbalance     float64 // MaxWeight / MeanWeight
	EdgeCut       float64 // summed length of cut faces
	CutFaces      int
}

// Result is the output of one partitioning run. Assignment and Exchange carry
// the same RunID.
type Result struct {
	RunID      uuid.UUID
	Assignment *Assignment
	Subdomains []Subdomain
	Exchange   *ExchangeMap
	Stats      Stats

	grid *grid.Grid
}

// Grid returns the global grid that was partitioned
func (r *Result) Grid() *grid.Grid { return r.grid }

// newResult derives subdomains, exchange map and statistics from a complete
// assignment of the active cells
func newResult(g *grid.Grid, cellToPart []int, numPartitions int, allowEmpty bool) (*Result, error) {
	runID := uuid.New()
	res := &Result{
		RunID: runID,
		Assignment: &Assignment{
			RunID:         runID,
			NumPartitions: numPartitions,
			CellToPart:    cellToPart,
		},
		grid: g,
	}

	members := make([][]int, numPartitions)
	for c, p := range cellToPart {
		if p >= 0 {
			members[p] = append(members[p], c)
		}
	}
	res.Subdomains = make([]Subdomain, numPartitions)
	for p, cells := range members {
		res.Subdomains[p] = Subdomain{Index: p, Cells: cells}
		if len(cells) == 0 {
			if !allowEmpty {
				return nil, fmt.Errorf("partition %d has no active cells", p)
			}
			continue
		}
		sub, err := g.Subset(cells)
		if err != nil {
			return nil, fmt.Errorf("subdomain %d: %w", p, err)
		}
		res.Subdomains[p].Grid = sub
	}

	ex, fc, err := buildExchange(runID, g, cellToPart, numPartitions)
	if err != nil {
		return nil, err
	}
	res.Exchange = ex

	st := Stats{
		NumPartitions: numPartitions,
		Weights:       make([]int, numPartitions),
		CellCounts:    fc.CellsPerPartition,
		MinWeight:     math.MaxInt,
		CutFaces:      len(fc.CutFaces),
	}
	total := 0
	for c, p := range cellToPart {
		if p >= 0 {
			w := g.ActiveLayerCount(c)
			st.Weights[p] += w
			total += w
		}
	}
	for _, w := range st.Weights {
		st.MinWeight = min(st.MinWeight, w)
		st.MaxWeight = max(st.MaxWeight, w)
	}
	st.MeanWeight = float64(total) / float64(numPartitions)
	if st.MeanWeight > 0 {
		st.Imbalance = float64(st.MaxWeight) / st.MeanWeight
	}
	for _, it := range ex.Interfaces {
		for _, e := range it.Entries {
			st.EdgeCut += e.Length
		}
	}
	res.Stats = st
	return res, nil
}
