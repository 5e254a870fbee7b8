package overlap

import (
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/notargets/gwgrid/grid"
)

type indexedCell struct {
	geom.Polygon
	id int
}

// IndexCache holds one R-tree per distinct grid geometry, keyed by
// grid.Hash, so repeated overlap queries against the same source reuse the
// index. It is safe for concurrent use.
type IndexCache struct {
	mu    sync.Mutex
	trees map[string]*rtree.Rtree
}

func NewIndexCache() *IndexCache {
	return &IndexCache{trees: make(map[string]*rtree.Rtree)}
}

// Get returns the index for g, building it on first use
func (c *IndexCache) Get(g *grid.Grid) *rtree.Rtree {
	key := g.Hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if tr, ok := c.trees[key]; ok {
		return tr
	}
	tr := rtree.NewTree(25, 50)
	for id := 0; id < g.NumCells(); id++ {
		tr.Insert(indexedCell{Polygon: g.Polygon(id), id: id})
	}
	c.trees[key] = tr
	return tr
}

func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trees)
}

// candidates returns the ids of cells in tr whose bounds overlap b with
// positive area, in ascending order
func candidates(tr *rtree.Rtree, b *geom.Bounds) []int {
	var ids []int
	for _, it := range tr.SearchIntersect(b) {
		c := it.(indexedCell)
		if boxOverlap(c.Bounds(), b) > 0 {
			ids = append(ids, c.id)
		}
	}
	sort.Ints(ids)
	return ids
}

// boxOverlap returns the intersection area of two boxes, zero when they only
// touch
func boxOverlap(a, b *geom.Bounds) float64 {
	w := min(a.Max.X, b.Max.X) - max(a.Min.X, b.Min.X)
	h := min(a.Max.Y, b.Max.Y) - max(a.Min.Y, b.Min.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
