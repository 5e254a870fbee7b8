package grid

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Planar is the layer index used to address a Field without layers
const Planar = -1

// State of one Field entry
type State uint8

const (
	Unset   State = iota // Never assigned
	NoData               // Explicitly marked as having no value
	Defined              // Holds a value
)

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case NoData:
		return "no-data"
	case Defined:
		return "defined"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Field maps the cells of one Grid, over a fixed set of layers, to scalar or
// small vector values. A planar field has no layers and is addressed with
// layer Planar.
type Field struct {
	name   string
	g      *Grid
	layers []int // nil for a planar field
	slotOf map[int]int
	ncomp  int

	// Entry (slot, cell) lives at values[(slot*ncell+cell)*ncomp:]
	values []float64
	state  []State
}

// NewField allocates a field on g. layers lists the grid layers the field
// covers; nil makes a planar field. ncomp is the number of components per
// entry.
func NewField(g *Grid, name string, layers []int, ncomp int) (*Field, error) {
	if g == nil {
		return nil, fmt.Errorf("field %q: nil grid", name)
	}
	if ncomp < 1 {
		return nil, fmt.Errorf("field %q: component count %d < 1", name, ncomp)
	}
	f := &Field{name: name, g: g, ncomp: ncomp, slotOf: make(map[int]int)}
	if layers == nil {
		f.slotOf[Planar] = 0
	} else {
		if len(layers) == 0 {
			return nil, fmt.Errorf("field %q: empty layer set", name)
		}
		f.layers = append([]int{}, layers...)
		for i, k := range f.layers {
			if err := g.checkLayer(k); err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			if _, dup := f.slotOf[k]; dup {
				return nil, fmt.Errorf("field %q: layer %d repeated", name, k)
			}
			f.slotOf[k] = i
		}
	}
	n := len(f.slotOf) * g.NumCells()
	f.values = make([]float64, n*ncomp)
	f.state = make([]State, n)
	return f, nil
}

// AllLayers returns 0..g.NumLayers()-1
func AllLayers(g *Grid) []int {
	ks := make([]int, g.NumLayers())
	for k := range ks {
		ks[k] = k
	}
	return ks
}

func (f *Field) Name() string       { return f.name }
func (f *Field) Grid() *Grid        { return f.g }
func (f *Field) NumComponents() int { return f.ncomp }
func (f *Field) IsPlanar() bool     { return f.layers == nil }

// Layers returns the grid layers covered, nil for a planar field
func (f *Field) Layers() []int {
	if f.layers == nil {
		return nil
	}
	return append([]int{}, f.layers...)
}

// LayerSet returns the layer indices accepted by the accessors: the covered
// layers, or {Planar} for a planar field.
func (f *Field) LayerSet() []int {
	if f.layers == nil {
		return []int{Planar}
	}
	return f.Layers()
}

// On returns ErrGridMismatch unless f is defined on g
func (f *Field) On(g *Grid) error {
	if f.g != g {
		return fmt.Errorf("field %q: %w", f.name, ErrGridMismatch)
	}
	return nil
}

func (f *Field) entry(layer, cell int) int {
	slot, ok := f.slotOf[layer]
	if !ok {
		panic(fmt.Sprintf("field %q has no layer %d", f.name, layer))
	}
	if cell < 0 || cell >= f.g.NumCells() {
		panic(fmt.Sprintf("field %q: cell %d out of range", f.name, cell))
	}
	return slot*f.g.NumCells() + cell
}

// Set assigns the components of entry (layer, cell)
func (f *Field) Set(layer, cell int, v ...float64) {
	if len(v) != f.ncomp {
		panic(fmt.Sprintf("field %q: %d components given, want %d", f.name, len(v), f.ncomp))
	}
	e := f.entry(layer, cell)
	copy(f.values[e*f.ncomp:(e+1)*f.ncomp], v)
	f.state[e] = Defined
}

// SetNoData marks entry (layer, cell) as having no value
func (f *Field) SetNoData(layer, cell int) {
	e := f.entry(layer, cell)
	for c := 0; c < f.ncomp; c++ {
		f.values[e*f.ncomp+c] = 0
	}
	f.state[e] = NoData
}

func (f *Field) State(layer, cell int) State { return f.state[f.entry(layer, cell)] }

// Value returns the first component of entry (layer, cell) and whether it is
// defined
func (f *Field) Value(layer, cell int) (float64, bool) {
	e := f.entry(layer, cell)
	return f.values[e*f.ncomp], f.state[e] == Defined
}

// Component returns component c of entry (layer, cell)
func (f *Field) Component(layer, cell, c int) (float64, bool) {
	e := f.entry(layer, cell)
	return f.values[e*f.ncomp+c], f.state[e] == Defined
}

// Vector returns a copy of all components of entry (layer, cell)
func (f *Field) Vector(layer, cell int) ([]float64, bool) {
	e := f.entry(layer, cell)
	return append([]float64{}, f.values[e*f.ncomp:(e+1)*f.ncomp]...), f.state[e] == Defined
}

// IsActive reports whether the grid cell behind entry (layer, cell) is
// active. A planar entry is active when its cell is active in any layer.
func (f *Field) IsActive(layer, cell int) bool {
	if layer == Planar {
		return f.g.CellActive(cell)
	}
	return f.g.IsActive(layer, cell)
}

// Cells returns, in ascending order, the cells of layer whose entry is in
// state s
func (f *Field) Cells(layer int, s State) []int {
	var ids []int
	for id := 0; id < f.g.NumCells(); id++ {
		if f.state[f.entry(layer, id)] == s {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sum adds component comp over the defined entries of one layer
func (f *Field) Sum(layer, comp int) float64 {
	vals := make([]float64, 0, f.g.NumCells())
	for id := 0; id < f.g.NumCells(); id++ {
		e := f.entry(layer, id)
		if f.state[e] == Defined {
			vals = append(vals, f.values[e*f.ncomp+comp])
		}
	}
	return floats.Sum(vals)
}

// Total adds component comp over the defined entries of every layer
func (f *Field) Total(comp int) float64 {
	sums := make([]float64, 0, len(f.slotOf))
	for _, k := range f.LayerSet() {
		sums = append(sums, f.Sum(k, comp))
	}
	return floats.Sum(sums)
}

// Clone returns a deep copy of f on the same grid
func (f *Field) Clone() *Field {
	c := *f
	c.layers = f.Layers()
	c.slotOf = make(map[int]int, len(f.slotOf))
	for k, v := range f.slotOf {
		c.slotOf[k] = v
	}
	c.values = append([]float64{}, f.values...)
	c.state = append([]State{}, f.state...)
	return &c
}

// Rebind returns a copy of f defined on g, which must have the same layout
// as f's grid
func (f *Field) Rebind(g *Grid) (*Field, error) {
	if !f.g.SameLayout(g) {
		return nil, fmt.Errorf("rebind field %q: %w", f.name, ErrGridMismatch)
	}
	c := f.Clone()
	c.g = g
	return c, nil
}

// Renamed returns a copy of f under a new name
func (f *Field) Renamed(name string) *Field {
	c := f.Clone()
	c.name = name
	return c
}
