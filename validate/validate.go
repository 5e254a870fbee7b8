// Package validate checks the invariants a model must satisfy after
// regridding and after partitioning. Every violation is returned as a typed
// error; nothing is downgraded to a warning.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/overlap"
	"github.com/notargets/gwgrid/partitions"
	"github.com/notargets/gwgrid/regrid"
)

const DefaultConservationTolerance = 1e-6

// Validator is stateless; the zero value uses the defaults
type Validator struct {
	// ConservationTolerance bounds the relative residual of conservative
	// totals. Zero selects DefaultConservationTolerance.
	ConservationTolerance float64
	// Engine computes self overlaps for CheckMesh. Nil creates one.
	Engine *overlap.Engine
	Logger *slog.Logger
}

func (v *Validator) tolerance() float64 {
	if v.ConservationTolerance > 0 {
		return v.ConservationTolerance
	}
	return DefaultConservationTolerance
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

func (v *Validator) engine() *overlap.Engine {
	if v.Engine != nil {
		return v.Engine
	}
	return overlap.NewEngine(overlap.Options{Logger: v.Logger})
}

// CheckField verifies that every active entry of f was either given a value
// or explicitly marked no-data
func (v *Validator) CheckField(f *grid.Field) error {
	for _, k := range f.LayerSet() {
		var missing []int
		for _, id := range f.Cells(k, grid.Unset) {
			if f.IsActive(k, id) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return &MissingValueError{Field: f.Name(), Layer: k, Cells: missing}
		}
	}
	return nil
}

// CheckConservation compares per-layer, per-component totals of a source
// field and its conservatively regridded counterpart. recs, when given, are
// the overlaps used and serve only to name the source cells that were not
// fully covered.
func (v *Validator) CheckConservation(src, tgt *grid.Field, recs []overlap.Record) error {
	if src.NumComponents() != tgt.NumComponents() {
		return fmt.Errorf("field %q has %d components, %q has %d",
			src.Name(), src.NumComponents(), tgt.Name(), tgt.NumComponents())
	}
	srcLayers, tgtLayers := src.LayerSet(), tgt.LayerSet()
	if len(srcLayers) != len(tgtLayers) {
		return fmt.Errorf("field %q covers %d layers, %q covers %d",
			src.Name(), len(srcLayers), tgt.Name(), len(tgtLayers))
	}
	tol := v.tolerance()
	for i, k := range srcLayers {
		for c := 0; c < src.NumComponents(); c++ {
			st, tt := src.Sum(k, c), tgt.Sum(tgtLayers[i], c)
			scale := math.Max(math.Abs(st), math.Abs(tt))
			if scale == 0 {
				continue
			}
			res := math.Abs(tt-st) / scale
			if res <= tol {
				continue
			}
			e := &ConservationViolationError{
				Field:       src.Name(),
				Layer:       k,
				Component:   c,
				SourceTotal: st,
				TargetTotal: tt,
				Residual:    res,
			}
			if recs != nil {
				e.Cells = uncovered(src, k, recs)
			}
			return e
		}
	}
	v.logger().Debug("conservation holds", "field", src.Name(), "tolerance", tol)
	return nil
}

// uncovered returns the defined source cells of one layer whose overlaps sum
// to less than their area
func uncovered(src *grid.Field, layer int, recs []overlap.Record) []int {
	g := src.Grid()
	cover := make([]float64, g.NumCells())
	for _, r := range recs {
		if r.Source >= 0 && r.Source < len(cover) {
			cover[r.Source] += r.Measure
		}
	}
	var ids []int
	for _, id := range src.Cells(layer, grid.Defined) {
		if cover[id] < g.Area(id)*(1-overlap.DefaultRelativeTolerance*10) {
			ids = append(ids, id)
		}
	}
	return ids
}

// CheckMesh reports the first pair of cells of g whose polygons overlap
func (v *Validator) CheckMesh(g *grid.Grid) error {
	pairs := v.engine().SelfOverlaps(g)
	if len(pairs) > 0 {
		p := pairs[0]
		return &grid.InvalidGeometryError{
			Cell:   p.Source,
			Layer:  -1,
			Reason: fmt.Sprintf("overlaps cell %d by %g (%d overlapping pairs)", p.Target, p.Measure, len(pairs)),
		}
	}
	return nil
}

// CheckPartition verifies a partitioning result against its grid: one run,
// every active cell owned exactly once, connected partitions and an exchange
// map listing every cut face exactly once
func (v *Validator) CheckPartition(g *grid.Grid, res *partitions.Result) error {
	if res == nil || res.Assignment == nil || res.Exchange == nil {
		return fmt.Errorf("incomplete partition result")
	}
	if res.Grid() != nil && res.Grid() != g {
		return fmt.Errorf("partition result: %w", grid.ErrGridMismatch)
	}
	if res.Assignment.RunID != res.RunID || res.Exchange.RunID != res.RunID {
		return &RunMismatchError{Result: res.RunID, Assignment: res.Assignment.RunID, Exchange: res.Exchange.RunID}
	}
	a := res.Assignment
	if len(a.CellToPart) != g.NumCells() {
		return fmt.Errorf("assignment covers %d cells, grid has %d", len(a.CellToPart), g.NumCells())
	}
	if err := checkOwnership(g, res); err != nil {
		return err
	}
	if err := partitions.CheckConnected(g, a.CellToPart, a.NumPartitions); err != nil {
		return err
	}
	if err := checkExchange(g, res); err != nil {
		return err
	}
	v.logger().Debug("partition valid", "run_id", res.RunID, "partitions", a.NumPartitions)
	return nil
}

func checkOwnership(g *grid.Grid, res *partitions.Result) error {
	a := res.Assignment
	listed := make([]int, g.NumCells())
	for p, sd := range res.Subdomains {
		for _, c := range sd.Cells {
			if c < 0 || c >= g.NumCells() {
				return fmt.Errorf("subdomain %d lists cell %d outside the grid", p, c)
			}
			listed[c]++
			if a.CellToPart[c] != p {
				// owned by p here and by another partition in the assignment
				listed[c]++
			}
		}
	}
	var dup, miss []int
	for c := 0; c < g.NumCells(); c++ {
		p := a.CellToPart[c]
		switch {
		case listed[c] > 1:
			dup = append(dup, c)
		case !g.CellActive(c):
			if p >= 0 || listed[c] > 0 {
				dup = append(dup, c)
			}
		case p < 0 || p >= a.NumPartitions || listed[c] == 0:
			miss = append(miss, c)
		}
	}
	if len(dup) > 0 || len(miss) > 0 {
		return &AssignmentError{Duplicated: dup, Missing: miss}
	}
	return nil
}

func faceKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func checkExchange(g *grid.Grid, res *partitions.Result) error {
	part := res.Assignment.CellToPart
	want := make(map[[2]int]bool)
	for _, f := range g.Faces() {
		pa, pb := part[f.A], part[f.B]
		if pa >= 0 && pb >= 0 && pa != pb {
			want[faceKey(f.A, f.B)] = true
		}
	}
	seen := make(map[[2]int]int)
	e := &ExchangeMismatchError{}
	for _, it := range res.Exchange.Interfaces {
		for _, en := range it.Entries {
			key := faceKey(en.CellA, en.CellB)
			seen[key]++
			switch {
			case seen[key] == 2:
				e.Duplicated = append(e.Duplicated, key)
			case seen[key] > 2:
			case !want[key] || !entryOK(res, it, en):
				e.Unexpected = append(e.Unexpected, key)
			}
		}
	}
	for key := range want {
		if seen[key] == 0 {
			e.Missing = append(e.Missing, key)
		}
	}
	if len(e.Missing)+len(e.Duplicated)+len(e.Unexpected) == 0 {
		return nil
	}
	for _, s := range [][][2]int{e.Missing, e.Duplicated, e.Unexpected} {
		sort.Slice(s, func(i, j int) bool {
			return s[i][0] < s[j][0] || (s[i][0] == s[j][0] && s[i][1] < s[j][1])
		})
	}
	return e
}

// entryOK checks that an entry's cells belong to the interface's partitions
// and that its local indices point back at those cells
func entryOK(res *partitions.Result, it partitions.Interface, en partitions.ExchangeEntry) bool {
	part := res.Assignment.CellToPart
	return part[en.CellA] == it.PartA && part[en.CellB] == it.PartB &&
		localOK(res, it.PartA, en.LocalA, en.CellA) && localOK(res, it.PartB, en.LocalB, en.CellB)
}

func localOK(res *partitions.Result, p, local, cell int) bool {
	if p < 0 || p >= len(res.Subdomains) {
		return false
	}
	cells := res.Subdomains[p].Cells
	return local >= 0 && local < len(cells) && cells[local] == cell
}

// AfterRegrid runs the checks that apply to a regridded field: completeness
// always, conservation for the conservative method
func (v *Validator) AfterRegrid(src, out *grid.Field, method regrid.Method, recs []overlap.Record) error {
	if err := v.CheckField(out); err != nil {
		return err
	}
	if method == regrid.Conservative {
		return v.CheckConservation(src, out, recs)
	}
	return nil
}

// AfterPartition runs CheckPartition
func (v *Validator) AfterPartition(g *grid.Grid, res *partitions.Result) error {
	return v.CheckPartition(g, res)
}
