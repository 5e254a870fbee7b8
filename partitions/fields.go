package partitions

import (
	"fmt"

	"github.com/notargets/gwgrid/grid"
)

// SplitField cuts a field on the partitioned grid into one field per
// subdomain. Empty subdomains get a nil field.
func (r *Result) SplitField(f *grid.Field) ([]*grid.Field, error) {
	if err := f.On(r.grid); err != nil {
		return nil, err
	}
	out := make([]*grid.Field, len(r.Subdomains))
	for p, sd := range r.Subdomains {
		if sd.Grid == nil {
			continue
		}
		pf, err := grid.NewField(sd.Grid, f.Name(), f.Layers(), f.NumComponents())
		if err != nil {
			return nil, fmt.Errorf("subdomain %d: %w", p, err)
		}
		for _, k := range f.LayerSet() {
			for local, global := range sd.Cells {
				copyEntry(pf, local, f, global, k)
			}
		}
		out[p] = pf
	}
	return out, nil
}

// MergeFields reassembles per-subdomain fields, as returned by SplitField,
// into one field on the partitioned grid. Cells outside every partition are
// no-data.
func (r *Result) MergeFields(parts []*grid.Field) (*grid.Field, error) {
	if len(parts) != len(r.Subdomains) {
		return nil, fmt.Errorf("got %d fields for %d subdomains", len(parts), len(r.Subdomains))
	}
	var first *grid.Field
	for p, sd := range r.Subdomains {
		pf := parts[p]
		if sd.Grid == nil {
			if pf != nil {
				return nil, fmt.Errorf("field given for empty subdomain %d", p)
			}
			continue
		}
		if pf == nil {
			return nil, fmt.Errorf("missing field for subdomain %d", p)
		}
		if err := pf.On(sd.Grid); err != nil {
			return nil, fmt.Errorf("subdomain %d: %w", p, err)
		}
		if first == nil {
			first = pf
			continue
		}
		if pf.NumComponents() != first.NumComponents() || !sameLayers(pf.LayerSet(), first.LayerSet()) {
			return nil, fmt.Errorf("subdomain %d: field %q does not match the layers or components of %q",
				p, pf.Name(), first.Name())
		}
	}
	if first == nil {
		return nil, fmt.Errorf("no subdomain fields to merge")
	}

	out, err := grid.NewField(r.grid, first.Name(), first.Layers(), first.NumComponents())
	if err != nil {
		return nil, err
	}
	for _, k := range out.LayerSet() {
		for c := 0; c < r.grid.NumCells(); c++ {
			if r.Assignment.Part(c) < 0 {
				out.SetNoData(k, c)
			}
		}
	}
	for p, sd := range r.Subdomains {
		if sd.Grid == nil {
			continue
		}
		for _, k := range out.LayerSet() {
			for local, global := range sd.Cells {
				copyEntry(out, global, parts[p], local, k)
			}
		}
	}
	return out, nil
}

func copyEntry(dst *grid.Field, dc int, src *grid.Field, sc, layer int) {
	switch src.State(layer, sc) {
	case grid.Defined:
		v, _ := src.Vector(layer, sc)
		dst.Set(layer, dc, v...)
	case grid.NoData:
		dst.SetNoData(layer, dc)
	}
}

func sameLayers(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
