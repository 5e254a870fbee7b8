package grid

// LayerTable describes the vertical discretization of a grid. Top holds the
// model top and Bottoms[k] the bottom of layer k. Each slice has either one
// entry (uniform over the grid) or one entry per cell.
type LayerTable struct {
	Top     []float64
	Bottoms [][]float64

	// Active is nil when every cell is active in every layer, otherwise
	// Active[k] is nil (layer fully active) or has one flag per cell.
	Active [][]bool
}

// UniformLayers returns a LayerTable with the same elevations at every cell.
func UniformLayers(top float64, bottoms ...float64) LayerTable {
	lt := LayerTable{Top: []float64{top}, Bottoms: make([][]float64, len(bottoms))}
	for k, b := range bottoms {
		lt.Bottoms[k] = []float64{b}
	}
	return lt
}

// expand validates lt against n cells and returns dense per-cell arrays.
// Elevations must decrease strictly downward at every cell.
func (lt LayerTable) expand(n int) (top []float64, bot [][]float64, active [][]bool, err error) {
	nlay := len(lt.Bottoms)
	if nlay == 0 {
		return nil, nil, nil, invalidGrid("layer table has no layers")
	}
	if top, err = broadcast(lt.Top, n, "top"); err != nil {
		return nil, nil, nil, err
	}
	bot = make([][]float64, nlay)
	for k := range lt.Bottoms {
		if bot[k], err = broadcast(lt.Bottoms[k], n, "bottom"); err != nil {
			return nil, nil, nil, err
		}
	}
	if lt.Active != nil && len(lt.Active) != nlay {
		return nil, nil, nil, invalidGrid("active table has %d layers, elevations have %d",
			len(lt.Active), nlay)
	}
	active = make([][]bool, nlay)
	for k := 0; k < nlay; k++ {
		active[k] = make([]bool, n)
		var src []bool
		if lt.Active != nil {
			src = lt.Active[k]
		}
		switch {
		case src == nil:
			for i := range active[k] {
				active[k][i] = true
			}
		case len(src) == n:
			copy(active[k], src)
		default:
			return nil, nil, nil, invalidGrid("active layer %d has %d entries for %d cells",
				k, len(src), n)
		}
	}

	for i := 0; i < n; i++ {
		above := top[i]
		for k := 0; k < nlay; k++ {
			if !(above > bot[k][i]) {
				return nil, nil, nil, invalidLayer(i, k,
					"layer elevations not decreasing: top %g, bottom %g", above, bot[k][i])
			}
			above = bot[k][i]
		}
	}
	return top, bot, active, nil
}

func broadcast(v []float64, n int, what string) ([]float64, error) {
	out := make([]float64, n)
	switch len(v) {
	case 1:
		for i := range out {
			out[i] = v[0]
		}
	case n:
		copy(out, v)
	default:
		return nil, invalidGrid("%s has %d values for %d cells", what, len(v), n)
	}
	return out, nil
}

// slice extracts the table for the given cells and layers [kMin, kMax].
// The top of the slice is the bottom of layer kMin-1 when layers above are
// dropped.
func (g *Grid) slice(ids []int, kMin, kMax int) LayerTable {
	nl := kMax - kMin + 1
	lt := LayerTable{
		Top:     make([]float64, len(ids)),
		Bottoms: make([][]float64, nl),
		Active:  make([][]bool, nl),
	}
	for k := 0; k < nl; k++ {
		lt.Bottoms[k] = make([]float64, len(ids))
		lt.Active[k] = make([]bool, len(ids))
	}
	for i, id := range ids {
		if kMin == 0 {
			lt.Top[i] = g.top[id]
		} else {
			lt.Top[i] = g.bot[kMin-1][id]
		}
		for k := 0; k < nl; k++ {
			lt.Bottoms[k][i] = g.bot[kMin+k][id]
			lt.Active[k][i] = g.active[kMin+k][id]
		}
	}
	return lt
}
