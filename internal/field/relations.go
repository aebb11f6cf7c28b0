package field

import (
	"math"
	"math/rand"
)

type pairKey struct{ a, b int }

// Relation is a sparse boolean relation over index pairs. Membership is
// O(1) and rows iterate in insertion order.
type Relation struct {
	set  map[pairKey]struct{}
	rows map[int][]int
}

func NewRelation() *Relation {
	return &Relation{set: map[pairKey]struct{}{}, rows: map[int][]int{}}
}

// Add records the pair (a, b). Adding an existing pair is a no-op.
func (r *Relation) Add(a, b int) {
	k := pairKey{a, b}
	if _, ok := r.set[k]; ok {
		return
	}
	r.set[k] = struct{}{}
	r.rows[a] = append(r.rows[a], b)
}

// Has reports whether (a, b) is in the relation.
func (r *Relation) Has(a, b int) bool {
	_, ok := r.set[pairKey{a, b}]
	return ok
}

// Row returns the members related to a, in insertion order.
func (r *Relation) Row(a int) []int { return r.rows[a] }

// Len returns the number of pairs.
func (r *Relation) Len() int { return len(r.set) }

// Clone returns an independent copy.
func (r *Relation) Clone() *Relation {
	c := NewRelation()
	for a, row := range r.rows {
		for _, b := range row {
			c.Add(a, b)
		}
	}
	return c
}

// Relations holds every boolean structure a siting model is built from.
//
// Coverage relates water-area indexes to the sites whose sensor range
// reaches them. Adjacency relates site pairs within communication range;
// it is symmetric with an empty diagonal. ZoneOf maps each site to its
// rain zone and ZoneSites is the inverse, ordered by site index.
type Relations struct {
	Sites int
	Areas int
	Zones int

	Coverage  *Relation
	Adjacency *Relation
	ZoneOf    []int
	ZoneSites [][]int
}

// AssignZones maps each of n sites to a rain zone: zone z is seeded
// with site z so no zone starts empty, and every remaining site is
// assigned by rng.
func AssignZones(rng *rand.Rand, n, zones int) []int {
	out := make([]int, n)
	for j := range out {
		switch {
		case j < zones:
			out[j] = j
		case zones > 0:
			out[j] = rng.Intn(zones)
		}
	}
	return out
}

// Build derives the siting relations for a layout. Distances compare
// with <=, so a point exactly on a range boundary counts as reached.
// When the layout carries no zone assignment, AssignZones fills it.
func Build(l Layout, sensorRange, commRange float64, rng *rand.Rand) Relations {
	r := Relations{
		Sites:     len(l.Sites),
		Areas:     len(l.Areas),
		Zones:     l.Zones,
		Coverage:  NewRelation(),
		Adjacency: NewRelation(),
	}
	for i, a := range l.Areas {
		for j, s := range l.Sites {
			if Dist(a, s) <= sensorRange {
				r.Coverage.Add(i, j)
			}
		}
	}
	for j := range l.Sites {
		for k := j + 1; k < len(l.Sites); k++ {
			if Dist(l.Sites[j], l.Sites[k]) <= commRange {
				r.Adjacency.Add(j, k)
				r.Adjacency.Add(k, j)
			}
		}
	}
	r.ZoneOf = append([]int(nil), l.ZoneOf...)
	if r.ZoneOf == nil && r.Sites > 0 {
		r.ZoneOf = AssignZones(rng, r.Sites, l.Zones)
	}
	r.ZoneSites = make([][]int, r.Zones)
	for j, z := range r.ZoneOf {
		if z >= 0 && z < r.Zones {
			r.ZoneSites[z] = append(r.ZoneSites[z], j)
		}
	}
	return r
}

// Repair returns relations whose coverage has no empty row: every water
// area out of sensor range of all sites gets its nearest site forced
// in, ties resolved toward the lowest site index. Repairing an already
// full coverage relation changes nothing, so the pass is idempotent.
func Repair(r Relations, l Layout) Relations {
	out := r
	out.Coverage = r.Coverage.Clone()
	for i := range l.Areas {
		if len(out.Coverage.Row(i)) > 0 {
			continue
		}
		best, bestDist := -1, math.Inf(1)
		for j, s := range l.Sites {
			if d := Dist(l.Areas[i], s); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			out.Coverage.Add(i, best)
		}
	}
	return out
}
