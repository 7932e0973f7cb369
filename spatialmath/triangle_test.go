package spatialmath

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestBasicTriangleFunctions(t *testing.T) {
	expectedPts := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 3, Z: 0}, {X: 3, Y: 0, Z: 0}}
	tri := NewTriangle(expectedPts[0], expectedPts[1], expectedPts[2])

	t.Run("constructor", func(t *testing.T) {
		test.That(t, tri.Points(), test.ShouldResemble, expectedPts)
		test.That(t, tri.Normal().Cross(r3.Vector{X: 0, Y: 0, Z: 1}), test.ShouldResemble, r3.Vector{})
	})

	t.Run("area", func(t *testing.T) {
		test.That(t, tri.Area(), test.ShouldEqual, 4.5)
	})

	t.Run("bounds", func(t *testing.T) {
		b := tri.Bounds()
		test.That(t, b.Low, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 0})
		test.That(t, b.High, test.ShouldResemble, r3.Vector{X: 3, Y: 3, Z: 0})
	})
}

func TestTriangleIntersectRay(t *testing.T) {
	tri := NewTriangle(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 0, Y: 3, Z: 0}, r3.Vector{X: 3, Y: 0, Z: 0})

	t.Run("straight down through interior", func(t *testing.T) {
		dist, ok := tri.IntersectRay(NewRay(r3.Vector{X: 1, Y: 1, Z: 5}, r3.Vector{X: 0, Y: 0, Z: -1}))
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, dist, test.ShouldAlmostEqual, 5)
	})

	t.Run("from below hits back face", func(t *testing.T) {
		dist, ok := tri.IntersectRay(NewRay(r3.Vector{X: 1, Y: 1, Z: -2}, r3.Vector{X: 0, Y: 0, Z: 1}))
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, dist, test.ShouldAlmostEqual, 2)
	})

	t.Run("outside edge", func(t *testing.T) {
		_, ok := tri.IntersectRay(NewRay(r3.Vector{X: 2.5, Y: 2.5, Z: 5}, r3.Vector{X: 0, Y: 0, Z: -1}))
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("parallel to plane", func(t *testing.T) {
		_, ok := tri.IntersectRay(NewRay(r3.Vector{X: -1, Y: 1, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}))
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("grazing along plane", func(t *testing.T) {
		_, ok := tri.IntersectRay(NewRay(r3.Vector{X: -2, Y: 1, Z: 1e-8}, r3.Vector{X: 1, Y: 0, Z: -1e-8 / 3}))
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("pointing away", func(t *testing.T) {
		_, ok := tri.IntersectRay(NewRay(r3.Vector{X: 1, Y: 1, Z: 5}, r3.Vector{X: 0, Y: 0, Z: 1}))
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestNewRayFromTo(t *testing.T) {
	r, dist := NewRayFromTo(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 4, Y: 5, Z: 1})
	test.That(t, dist, test.ShouldAlmostEqual, 5)
	test.That(t, r.Direction().X, test.ShouldAlmostEqual, 0.6)
	test.That(t, r.Direction().Y, test.ShouldAlmostEqual, 0.8)
	test.That(t, r.PointAt(dist).X, test.ShouldAlmostEqual, 4)
	test.That(t, r.Negative(AxisX), test.ShouldBeFalse)

	down, zero := NewRayFromTo(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, zero, test.ShouldEqual, 0)
	test.That(t, down.Direction(), test.ShouldResemble, r3.Vector{Z: -1})
	test.That(t, down.Negative(AxisZ), test.ShouldBeTrue)
}
