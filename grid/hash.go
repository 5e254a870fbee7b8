package grid

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns a hex sha256 digest of the planar geometry. Grids with equal
// hashes have identical cells and may share derived structures such as
// spatial indices.
func (g *Grid) Hash() string {
	g.hashOnce.Do(func() {
		h := sha256.New()
		g.topo.writeHash(h)
		g.hash = hex.EncodeToString(h.Sum(nil))
	})
	return g.hash
}

// SameLayout reports whether o has the same planar geometry, the same layer
// count and the same active flags as g
func (g *Grid) SameLayout(o *Grid) bool {
	if g == o {
		return true
	}
	if g.NumCells() != o.NumCells() || g.nlay != o.nlay || g.Hash() != o.Hash() {
		return false
	}
	for k := range g.active {
		for i := range g.active[k] {
			if g.active[k][i] != o.active[k][i] {
				return false
			}
		}
	}
	return true
}
