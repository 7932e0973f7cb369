// Package testutils contains helpers shared by the module's tests.
package testutils

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"go.viam.com/spatialindex/spatialmath"
)

// RandomBoxes returns n pairwise disjoint boxes inside region. Each box sits in its own cell of a
// regular lattice over region and is shrunk by a random margin, so results are reproducible for a
// given rng seed.
func RandomBoxes(rng *rand.Rand, n int, region spatialmath.AABB) []spatialmath.AABB {
	if n <= 0 {
		return nil
	}
	side := 1
	for side*side*side < n {
		side++
	}
	cell := region.Extent().Mul(1 / float64(side))
	cells := rng.Perm(side * side * side)[:n]

	boxes := make([]spatialmath.AABB, 0, n)
	for _, c := range cells {
		ix, iy, iz := c%side, (c/side)%side, c/(side*side)
		lo := region.Low.Add(r3.Vector{X: float64(ix) * cell.X, Y: float64(iy) * cell.Y, Z: float64(iz) * cell.Z})
		a := r3.Vector{
			X: lo.X + cell.X*(0.05+0.4*rng.Float64()),
			Y: lo.Y + cell.Y*(0.05+0.4*rng.Float64()),
			Z: lo.Z + cell.Z*(0.05+0.4*rng.Float64()),
		}
		b := r3.Vector{
			X: lo.X + cell.X*(0.55+0.4*rng.Float64()),
			Y: lo.Y + cell.Y*(0.55+0.4*rng.Float64()),
			Z: lo.Z + cell.Z*(0.55+0.4*rng.Float64()),
		}
		boxes = append(boxes, spatialmath.NewAABB(a, b))
	}
	return boxes
}

// ClusteredBoxes returns n boxes whose centers are spread exponentially away from the origin along
// every axis, up to e^spread in magnitude on either side. Most boxes crowd around the origin while a
// few lie far out, leaving large empty stretches between them. Boxes may overlap.
func ClusteredBoxes(rng *rand.Rand, n int, spread float64) []spatialmath.AABB {
	coord := func() float64 {
		c := math.Exp(spread * rng.Float64())
		if rng.Intn(2) == 0 {
			return -c
		}
		return c
	}
	boxes := make([]spatialmath.AABB, 0, n)
	for i := 0; i < n; i++ {
		center := r3.Vector{X: coord(), Y: coord(), Z: coord()}
		half := r3.Vector{X: 0.05 + 0.2*rng.Float64(), Y: 0.05 + 0.2*rng.Float64(), Z: 0.05 + 0.2*rng.Float64()}
		boxes = append(boxes, spatialmath.NewAABB(center.Sub(half), center.Add(half)))
	}
	return boxes
}

// RandomPoint returns a point drawn uniformly from region.
func RandomPoint(rng *rand.Rand, region spatialmath.AABB) r3.Vector {
	d := region.Extent()
	return r3.Vector{
		X: region.Low.X + d.X*rng.Float64(),
		Y: region.Low.Y + d.Y*rng.Float64(),
		Z: region.Low.Z + d.Z*rng.Float64(),
	}
}

// RandomRay returns a ray between two random points of region and the distance between them.
func RandomRay(rng *rand.Rand, region spatialmath.AABB) (spatialmath.Ray, float64) {
	return spatialmath.NewRayFromTo(RandomPoint(rng, region), RandomPoint(rng, region))
}
