// Package field models a candidate turbine field: site and water-area
// geometry, the boolean relations derived from it, and the repair step
// that keeps every water area coverable.
package field

import (
	"math"
	"math/rand"
)

// Point is a position on the field plane, in meters.
type Point struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Layout is the raw geometry of a scenario before any relation is
// derived. ZoneOf maps site index to rain zone; when nil, Build assigns
// zones with the seeded rule.
type Layout struct {
	Sites  []Point
	Areas  []Point
	Zones  int
	ZoneOf []int
}

// Generate places sites and water areas uniformly on a width by height
// field. The same generator state always yields the same layout. Zone
// assignment is left to Build.
func Generate(rng *rand.Rand, sites, areas, zones int, width, height float64) Layout {
	l := Layout{Zones: zones}
	for i := 0; i < sites; i++ {
		l.Sites = append(l.Sites, Point{X: rng.Float64() * width, Y: rng.Float64() * height})
	}
	for i := 0; i < areas; i++ {
		l.Areas = append(l.Areas, Point{X: rng.Float64() * width, Y: rng.Float64() * height})
	}
	return l
}
