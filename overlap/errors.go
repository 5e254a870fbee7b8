package overlap

import (
	"fmt"

	"github.com/ctessum/geom"
)

// DisjointGridsError is returned when the source and target extents share no
// area. It indicates a caller error such as mismatched coordinate systems.
type DisjointGridsError struct {
	Source, Target *geom.Bounds
}

func (e *DisjointGridsError) Error() string {
	return fmt.Sprintf("grids are disjoint: source extent [%g,%g]x[%g,%g], target extent [%g,%g]x[%g,%g]",
		e.Source.Min.X, e.Source.Max.X, e.Source.Min.Y, e.Source.Max.Y,
		e.Target.Min.X, e.Target.Max.X, e.Target.Min.Y, e.Target.Max.Y)
}
