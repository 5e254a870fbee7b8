package overlap

import (
	"math"

	"github.com/ctessum/geom"
)

// cellShape caches what the area routines need to know about one cell
type cellShape struct {
	poly   geom.Polygon
	ring   []geom.Point // open, counter-clockwise
	bounds *geom.Bounds
	rect   bool
	convex bool
}

func newCellShape(poly geom.Polygon, b *geom.Bounds, rect bool) cellShape {
	ring := []geom.Point(poly[0])
	ring = ring[:len(ring)-1]
	return cellShape{poly: poly, ring: ring, bounds: b, rect: rect, convex: rect || isConvex(ring)}
}

// intersectionArea returns the area shared by two cells
func intersectionArea(a, b cellShape) float64 {
	switch {
	case a.rect && b.rect:
		return boxOverlap(a.bounds, b.bounds)
	case a.convex && b.convex:
		return ringArea(clipConvex(a.ring, b.ring))
	}
	isect := a.poly.Intersection(b.poly)
	if isect == nil {
		return 0
	}
	return math.Abs(isect.Area())
}

func isConvex(ring []geom.Point) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		if cross(ring[i], ring[(i+1)%n], ring[(i+2)%n]) < 0 {
			return false
		}
	}
	return true
}

func cross(o, a, b geom.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// clipConvex clips subject by the convex counter-clockwise polygon clip
// (Sutherland-Hodgman)
func clipConvex(subject, clip []geom.Point) []geom.Point {
	out := subject
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := out
		out = make([]geom.Point, 0, len(in)+2)
		for j := range in {
			p, q := in[j], in[(j+1)%len(in)]
			pin, qin := cross(a, b, p) >= 0, cross(a, b, q) >= 0
			switch {
			case pin && qin:
				out = append(out, q)
			case pin && !qin:
				out = append(out, lineIntersect(a, b, p, q))
			case !pin && qin:
				out = append(out, lineIntersect(a, b, p, q), q)
			}
		}
	}
	return out
}

func lineIntersect(a, b, p, q geom.Point) geom.Point {
	dp := cross(a, b, p)
	dq := cross(a, b, q)
	t := dp / (dp - dq)
	return geom.Point{X: p.X + t*(q.X-p.X), Y: p.Y + t*(q.Y-p.Y)}
}

func ringArea(ring []geom.Point) float64 {
	if len(ring) < 3 {
		return 0
	}
	var s float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		s += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(0.5 * s)
}
