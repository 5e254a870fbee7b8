package utils

import (
	"fmt"
)

// FaceConnector manages global/local cell numbering and the pick and place
// indices for faces that cross partition boundaries
type FaceConnector struct {
	NumPartitions int
	K             int // Total cells in the global numbering

	// Input connectivity
	CellToPart []int    // Cell → partition mapping, -1 for cells outside every partition
	Faces      [][2]int // Global faces as (cellA, cellB) pairs

	// Partition mappings
	CellsPerPartition []int         // Cells per partition
	GlobalToLocal     []map[int]int // [partition][globalCell] → localCell
	LocalToGlobal     [][]int       // [partition][localCell] → globalCell

	// Pick/Place indices per partition pair
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]

	// CutFaces lists the indices into Faces whose cells lie in different partitions
	CutFaces []int
}

// PickBuffer contains local cell indices gathered from a partition for a neighbor
type PickBuffer struct {
	Indices         []int // Local cell indices in the source partition
	TargetPartition int
}

// PlaceBuffer contains local cell indices receiving values from a neighbor
type PlaceBuffer struct {
	Indices         []int // Local cell indices in the target partition
	SourcePartition int
}

// NewFaceConnector creates a face connector from a cell partitioning and face list
func NewFaceConnector(numPartitions int, cellToPart []int, faces [][2]int) (*FaceConnector, error) {
	if numPartitions <= 0 {
		return nil, fmt.Errorf("invalid partition count %d", numPartitions)
	}
	for cell, p := range cellToPart {
		if p < -1 || p >= numPartitions {
			return nil, fmt.Errorf("cell %d assigned to partition %d outside [0,%d)",
				cell, p, numPartitions)
		}
	}
	for i, f := range faces {
		if f[0] < 0 || f[0] >= len(cellToPart) || f[1] < 0 || f[1] >= len(cellToPart) {
			return nil, fmt.Errorf("face %d references cell outside [0,%d)", i, len(cellToPart))
		}
	}

	fc := &FaceConnector{
		NumPartitions: numPartitions,
		K:             len(cellToPart),
		CellToPart:    cellToPart,
		Faces:         faces,
	}

	fc.buildPartitionMappings()
	fc.initializeBuffers()
	fc.BuildIndices()

	return fc, nil
}

// buildPartitionMappings creates bidirectional mappings between global and
// local numbering. Local numbers follow ascending global order.
func (fc *FaceConnector) buildPartitionMappings() {
	fc.CellsPerPartition = make([]int, fc.NumPartitions)
	for _, p := range fc.CellToPart {
		if p >= 0 {
			fc.CellsPerPartition[p]++
		}
	}

	fc.GlobalToLocal = make([]map[int]int, fc.NumPartitions)
	fc.LocalToGlobal = make([][]int, fc.NumPartitions)
	for p := 0; p < fc.NumPartitions; p++ {
		fc.GlobalToLocal[p] = make(map[int]int, fc.CellsPerPartition[p])
		fc.LocalToGlobal[p] = make([]int, 0, fc.CellsPerPartition[p])
	}

	for global := 0; global < fc.K; global++ {
		p := fc.CellToPart[global]
		if p < 0 {
			continue
		}
		local := len(fc.LocalToGlobal[p])
		fc.GlobalToLocal[p][global] = local
		fc.LocalToGlobal[p] = append(fc.LocalToGlobal[p], global)
	}
}

// initializeBuffers creates empty pick and place buffer structures
func (fc *FaceConnector) initializeBuffers() {
	fc.PickIndices = make([][]PickBuffer, fc.NumPartitions)
	fc.PlaceIndices = make([][]PlaceBuffer, fc.NumPartitions)

	for p := 0; p < fc.NumPartitions; p++ {
		fc.PickIndices[p] = make([]PickBuffer, fc.NumPartitions)
		fc.PlaceIndices[p] = make([]PlaceBuffer, fc.NumPartitions)
		for q := 0; q < fc.NumPartitions; q++ {
			fc.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			fc.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

// BuildIndices walks the face list once. Every cut face contributes a value
// in both directions, so partition p picks its cell for q and q places it,
// and the reverse.
func (fc *FaceConnector) BuildIndices() {
	fc.CutFaces = fc.CutFaces[:0]
	for i, f := range fc.Faces {
		pa, pb := fc.CellToPart[f[0]], fc.CellToPart[f[1]]
		if pa < 0 || pb < 0 || pa == pb {
			continue
		}
		fc.CutFaces = append(fc.CutFaces, i)

		la := fc.GlobalToLocal[pa][f[0]]
		lb := fc.GlobalToLocal[pb][f[1]]

		fc.PickIndices[pa][pb].Indices = append(fc.PickIndices[pa][pb].Indices, la)
		fc.PlaceIndices[pb][pa].Indices = append(fc.PlaceIndices[pb][pa].Indices, lb)

		fc.PickIndices[pb][pa].Indices = append(fc.PickIndices[pb][pa].Indices, lb)
		fc.PlaceIndices[pa][pb].Indices = append(fc.PlaceIndices[pa][pb].Indices, la)
	}
}

// GetPickIndices returns pick indices for sending from source to target partition
func (fc *FaceConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= fc.NumPartitions ||
		targetPartition < 0 || targetPartition >= fc.NumPartitions {
		return nil
	}
	return fc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (fc *FaceConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= fc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= fc.NumPartitions {
		return nil
	}
	return fc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// Verify checks index validity and conservation properties
func (fc *FaceConnector) Verify() error {
	// Verify 1: Local validity - all pick and place indices are within bounds
	for p := 0; p < fc.NumPartitions; p++ {
		maxLocal := fc.CellsPerPartition[p]
		for q := 0; q < fc.NumPartitions; q++ {
			for _, idx := range fc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= maxLocal {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
						idx, p, maxLocal-1)
				}
			}
			for _, idx := range fc.PlaceIndices[p][q].Indices {
				if idx < 0 || idx >= maxLocal {
					return fmt.Errorf("invalid place index %d for partition %d (max %d)",
						idx, p, maxLocal-1)
				}
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays have same length
	for p := 0; p < fc.NumPartitions; p++ {
		for q := 0; q < fc.NumPartitions; q++ {
			pickLen := len(fc.PickIndices[p][q].Indices)
			placeLen := len(fc.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
		}
	}

	// Verify 3: Conservation - every cut face is picked exactly once per direction
	totalPicks := 0
	for p := 0; p < fc.NumPartitions; p++ {
		for q := 0; q < fc.NumPartitions; q++ {
			totalPicks += len(fc.PickIndices[p][q].Indices)
		}
	}
	if totalPicks != 2*len(fc.CutFaces) {
		return fmt.Errorf("conservation error: total picks %d != 2 x cut faces %d",
			totalPicks, len(fc.CutFaces))
	}

	// Verify 4: Round trip of the numbering
	for p := 0; p < fc.NumPartitions; p++ {
		for local, global := range fc.LocalToGlobal[p] {
			if back, ok := fc.GlobalToLocal[p][global]; !ok || back != local {
				return fmt.Errorf("partition %d: local %d -> global %d does not map back",
					p, local, global)
			}
		}
	}

	return nil
}
