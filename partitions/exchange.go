package partitions

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/utils"
)

// ExchangeEntry is one face shared by two partitions. CellA lies in the
// lower-numbered partition. LocalA and LocalB are the cell positions inside
// the respective subdomain grids.
type ExchangeEntry struct {
	CellA, CellB   int
	LocalA, LocalB int
	Length         float64
}

// Interface groups the faces between one pair of partitions, PartA < PartB
type Interface struct {
	PartA, PartB int
	Entries      []ExchangeEntry
}

// ExchangeMap lists every face whose two cells were assigned to different
// partitions, grouped by partition pair and sorted by (PartA, PartB)
type ExchangeMap struct {
	RunID      uuid.UUID
	Interfaces []Interface
}

// NumFaces returns the number of cut faces
func (m *ExchangeMap) NumFaces() int {
	n := 0
	for _, it := range m.Interfaces {
		n += len(it.Entries)
	}
	return n
}

// Between returns the faces shared by partitions a and b, oriented so that
// CellA and LocalA refer to partition a. Nil when they do not touch.
func (m *ExchangeMap) Between(a, b int) []ExchangeEntry {
	swap := a > b
	if swap {
		a, b = b, a
	}
	i := sort.Search(len(m.Interfaces), func(i int) bool {
		it := m.Interfaces[i]
		return it.PartA > a || (it.PartA == a && it.PartB >= b)
	})
	if i == len(m.Interfaces) || m.Interfaces[i].PartA != a || m.Interfaces[i].PartB != b {
		return nil
	}
	out := make([]ExchangeEntry, len(m.Interfaces[i].Entries))
	copy(out, m.Interfaces[i].Entries)
	if swap {
		for j, e := range out {
			out[j] = ExchangeEntry{CellA: e.CellB, CellB: e.CellA, LocalA: e.LocalB, LocalB: e.LocalA, Length: e.Length}
		}
	}
	return out
}

// Neighbors returns the partitions sharing at least one face with p
func (m *ExchangeMap) Neighbors(p int) []int {
	var out []int
	for _, it := range m.Interfaces {
		switch p {
		case it.PartA:
			out = append(out, it.PartB)
		case it.PartB:
			out = append(out, it.PartA)
		}
	}
	sort.Ints(out)
	return out
}

// buildExchange derives the exchange map from the grid faces through the
// face connector, which also supplies the local numbering
func buildExchange(runID uuid.UUID, g *grid.Grid, cellToPart []int, numPartitions int) (*ExchangeMap, *utils.FaceConnector, error) {
	gridFaces := g.Faces()
	faces := make([][2]int, len(gridFaces))
	for i, f := range gridFaces {
		faces[i] = [2]int{f.A, f.B}
	}
	fc, err := utils.NewFaceConnector(numPartitions, cellToPart, faces)
	if err != nil {
		return nil, nil, err
	}
	if err = fc.Verify(); err != nil {
		return nil, nil, fmt.Errorf("exchange indices: %w", err)
	}

	byPair := make(map[[2]int][]ExchangeEntry)
	for _, fi := range fc.CutFaces {
		f := gridFaces[fi]
		a, b := f.A, f.B
		pa, pb := cellToPart[a], cellToPart[b]
		if pa > pb {
			a, b, pa, pb = b, a, pb, pa
		}
		key := [2]int{pa, pb}
		byPair[key] = append(byPair[key], ExchangeEntry{
			CellA:  a,
			CellB:  b,
			LocalA: fc.GlobalToLocal[pa][a],
			LocalB: fc.GlobalToLocal[pb][b],
			Length: f.Length,
		})
	}
	m := &ExchangeMap{RunID: runID, Interfaces: make([]Interface, 0, len(byPair))}
	for key, entries := range byPair {
		m.Interfaces = append(m.Interfaces, Interface{PartA: key[0], PartB: key[1], Entries: entries})
	}
	sort.Slice(m.Interfaces, func(i, j int) bool {
		x, y := m.Interfaces[i], m.Interfaces[j]
		if x.PartA != y.PartA {
			return x.PartA < y.PartA
		}
		return x.PartB < y.PartB
	})
	return m, fc, nil
}
