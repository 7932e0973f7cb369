package testutils

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/spatialindex/spatialmath"
)

func TestRandomBoxes(t *testing.T) {
	region := spatialmath.NewAABB(r3.Vector{X: -10, Y: -10, Z: -10}, r3.Vector{X: 10, Y: 10, Z: 10})
	test.That(t, RandomBoxes(rand.New(rand.NewSource(1)), 0, region), test.ShouldBeEmpty)

	boxes := RandomBoxes(rand.New(rand.NewSource(1)), 50, region)
	test.That(t, boxes, test.ShouldHaveLength, 50)
	for i, a := range boxes {
		test.That(t, a.Validate(), test.ShouldBeNil)
		test.That(t, region.Contains(a.Low), test.ShouldBeTrue)
		test.That(t, region.Contains(a.High), test.ShouldBeTrue)
		for _, b := range boxes[i+1:] {
			test.That(t, a.Overlaps(b), test.ShouldBeFalse)
		}
	}

	again := RandomBoxes(rand.New(rand.NewSource(1)), 50, region)
	test.That(t, again, test.ShouldResemble, boxes)
}

func TestClusteredBoxes(t *testing.T) {
	boxes := ClusteredBoxes(rand.New(rand.NewSource(4)), 500, 8)
	test.That(t, boxes, test.ShouldHaveLength, 500)
	limit := math.Exp(8) + 1
	near := 0
	for _, b := range boxes {
		test.That(t, b.Validate(), test.ShouldBeNil)
		c := b.Center()
		test.That(t, math.Max(math.Abs(c.X), math.Max(math.Abs(c.Y), math.Abs(c.Z))), test.ShouldBeLessThan, limit)
		if math.Abs(c.X) < math.Exp(4) {
			near++
		}
	}
	// half of the draws land within e^4 of the origin along x
	test.That(t, near, test.ShouldBeBetween, 150, 350)
	test.That(t, ClusteredBoxes(rand.New(rand.NewSource(4)), 500, 8), test.ShouldResemble, boxes)
}

func TestRandomRay(t *testing.T) {
	region := spatialmath.NewAABB(r3.Vector{}, r3.Vector{X: 5, Y: 5, Z: 5})
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		test.That(t, region.Contains(RandomPoint(rng, region)), test.ShouldBeTrue)
		ray, dist := RandomRay(rng, region)
		test.That(t, region.Contains(ray.Start()), test.ShouldBeTrue)
		test.That(t, region.Contains(ray.PointAt(dist)), test.ShouldBeTrue)
	}
}
