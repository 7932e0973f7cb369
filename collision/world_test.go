package collision

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/spatialindex/grid"
	"go.viam.com/spatialindex/spatialmath"
)

// newWorld covers [-40, 40] on both axes with 8 columns of side 10.
func newWorld(t *testing.T) *World[Collidable] {
	t.Helper()
	w, err := NewWorld[Collidable](grid.WithCells(8), grid.WithExtent(80))
	test.That(t, err, test.ShouldBeNil)
	return w
}

func TestBoxIntersectRay(t *testing.T) {
	b := NewBox("crate", spatialmath.NewAABB(r3.Vector{X: 4, Y: 4}, r3.Vector{X: 6, Y: 6, Z: 2}))
	ray := spatialmath.NewRay(r3.Vector{X: 0, Y: 5, Z: 1}, r3.Vector{X: 1})

	dist := 10.0
	test.That(t, b.IntersectRay(ray, &dist, false), test.ShouldBeTrue)
	test.That(t, dist, test.ShouldAlmostEqual, 4)

	dist = 3
	test.That(t, b.IntersectRay(ray, &dist, false), test.ShouldBeFalse)
	test.That(t, dist, test.ShouldEqual, 3)

	inside := spatialmath.NewRay(r3.Vector{X: 5, Y: 5, Z: 1}, r3.Vector{X: 1})
	dist = 10
	test.That(t, b.IntersectRay(inside, &dist, false), test.ShouldBeTrue)
	test.That(t, dist, test.ShouldEqual, 0)
	test.That(t, b.String(), test.ShouldContainSubstring, `"crate"`)
}

func TestLineOfSight(t *testing.T) {
	w := newWorld(t)
	wall := NewBox("wall", spatialmath.NewAABB(r3.Vector{X: 4, Y: 0}, r3.Vector{X: 6, Y: 10, Z: 3}))
	test.That(t, w.Insert(wall), test.ShouldBeNil)
	test.That(t, w.Balance(), test.ShouldBeNil)
	test.That(t, w.Contains(wall), test.ShouldBeTrue)
	test.That(t, w.Size(), test.ShouldEqual, 1)

	blocked, err := w.InLineOfSight(r3.Vector{X: -15, Y: 5, Z: 1}, r3.Vector{X: 25, Y: 5, Z: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blocked, test.ShouldBeFalse)

	over, err := w.InLineOfSight(r3.Vector{X: -15, Y: 5, Z: 4}, r3.Vector{X: 25, Y: 5, Z: 4})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, over, test.ShouldBeTrue)

	short, err := w.InLineOfSight(r3.Vector{X: -15, Y: 5, Z: 1}, r3.Vector{X: 3, Y: 5, Z: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, short, test.ShouldBeTrue)

	same, err := w.InLineOfSight(r3.Vector{X: 5, Y: 5, Z: 1}, r3.Vector{X: 5, Y: 5, Z: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, same, test.ShouldBeTrue)

	w.Remove(wall)
	test.That(t, w.Balance(), test.ShouldBeNil)
	open, err := w.InLineOfSight(r3.Vector{X: -15, Y: 5, Z: 1}, r3.Vector{X: 25, Y: 5, Z: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, open, test.ShouldBeTrue)
}

func TestObjectHitPos(t *testing.T) {
	w := newWorld(t)
	test.That(t, w.Insert(NewBox("wall", spatialmath.NewAABB(r3.Vector{X: 4, Y: 0}, r3.Vector{X: 6, Y: 10, Z: 3}))),
		test.ShouldBeNil)
	test.That(t, w.Balance(), test.ShouldBeNil)

	start := r3.Vector{X: -15, Y: 5, Z: 1}
	end := r3.Vector{X: 25, Y: 5, Z: 1}

	t.Run("exact", func(t *testing.T) {
		pos, hit, err := w.ObjectHitPos(start, end, 0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hit, test.ShouldBeTrue)
		test.That(t, pos.X, test.ShouldAlmostEqual, 4)
		test.That(t, pos.Y, test.ShouldAlmostEqual, 5)
		test.That(t, pos.Z, test.ShouldAlmostEqual, 1)
	})

	t.Run("pulled back", func(t *testing.T) {
		pos, hit, err := w.ObjectHitPos(start, end, -1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hit, test.ShouldBeTrue)
		test.That(t, pos.X, test.ShouldAlmostEqual, 3)
	})

	t.Run("pulled back past start", func(t *testing.T) {
		pos, hit, err := w.ObjectHitPos(start, end, -50)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hit, test.ShouldBeTrue)
		test.That(t, pos, test.ShouldResemble, start)
	})

	t.Run("pushed forward", func(t *testing.T) {
		pos, hit, err := w.ObjectHitPos(start, end, 0.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hit, test.ShouldBeTrue)
		test.That(t, pos.X, test.ShouldAlmostEqual, 4.5)
	})

	t.Run("miss", func(t *testing.T) {
		missEnd := r3.Vector{X: 25, Y: 15, Z: 1}
		pos, hit, err := w.ObjectHitPos(r3.Vector{X: -15, Y: 15, Z: 1}, missEnd, -1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hit, test.ShouldBeFalse)
		test.That(t, pos, test.ShouldResemble, missEnd)
	})

	t.Run("coincident", func(t *testing.T) {
		pos, hit, err := w.ObjectHitPos(start, start, 0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hit, test.ShouldBeFalse)
		test.That(t, pos, test.ShouldResemble, start)
	})
}

func TestIntersectionTime(t *testing.T) {
	w := newWorld(t)
	test.That(t, w.Insert(NewBox("near", spatialmath.NewAABB(r3.Vector{X: 4, Y: 4}, r3.Vector{X: 6, Y: 6, Z: 2}))),
		test.ShouldBeNil)
	test.That(t, w.Insert(NewBox("far", spatialmath.NewAABB(r3.Vector{X: 24, Y: 4}, r3.Vector{X: 26, Y: 6, Z: 2}))),
		test.ShouldBeNil)
	test.That(t, w.Balance(), test.ShouldBeNil)

	start := r3.Vector{X: -15, Y: 5, Z: 1}
	end := r3.Vector{X: 35, Y: 5, Z: 1}
	ray, length := spatialmath.NewRayFromTo(start, end)

	dist, hit, err := w.IntersectionTime(ray, end, length)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hit, test.ShouldBeTrue)
	test.That(t, dist, test.ShouldAlmostEqual, 19)

	reverse, length := spatialmath.NewRayFromTo(end, start)
	dist, hit, err = w.IntersectionTime(reverse, start, length)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hit, test.ShouldBeTrue)
	test.That(t, dist, test.ShouldAlmostEqual, 9)

	dist, hit, err = w.IntersectionTime(ray, end, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hit, test.ShouldBeFalse)
	test.That(t, dist, test.ShouldEqual, 10)
}

func TestHeight(t *testing.T) {
	w := newWorld(t)
	ground := NewBox("ground", spatialmath.NewAABB(r3.Vector{X: -30, Y: -30, Z: -1}, r3.Vector{X: 30, Y: 30, Z: 0}))
	roof := NewBox("roof", spatialmath.NewAABB(r3.Vector{X: 2, Y: 2, Z: 8}, r3.Vector{X: 8, Y: 8, Z: 9}))
	test.That(t, w.Insert(ground), test.ShouldBeNil)
	test.That(t, w.Insert(roof), test.ShouldBeNil)
	test.That(t, w.Balance(), test.ShouldBeNil)

	h, ok, err := w.Height(5, 5, 5, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, h, test.ShouldAlmostEqual, 0)

	h, ok, err = w.Height(5, 5, 20, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, h, test.ShouldAlmostEqual, 9)

	_, ok, err = w.Height(-20, -20, 5, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)

	h, ok, err = w.Height(35, 35, 5, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, math.IsInf(h, -1), test.ShouldBeTrue)
}

func TestMeshInWorld(t *testing.T) {
	_, err := NewMesh("empty", nil)
	test.That(t, err, test.ShouldNotBeNil)

	floor, err := NewMesh("floor", []*spatialmath.Triangle{
		spatialmath.NewTriangle(r3.Vector{X: -5, Y: -5, Z: 2}, r3.Vector{X: 5, Y: -5, Z: 2}, r3.Vector{X: 5, Y: 5, Z: 2}),
		spatialmath.NewTriangle(r3.Vector{X: -5, Y: -5, Z: 2}, r3.Vector{X: 5, Y: 5, Z: 2}, r3.Vector{X: -5, Y: 5, Z: 2}),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, floor.Name(), test.ShouldEqual, "floor")
	test.That(t, floor.Triangles(), test.ShouldHaveLength, 2)
	test.That(t, floor.Bounds().Low, test.ShouldResemble, r3.Vector{X: -5, Y: -5, Z: 2})
	test.That(t, floor.Area(), test.ShouldAlmostEqual, 100)
	test.That(t, floor.String(), test.ShouldContainSubstring, "2 triangles, area 100.0000")

	w := newWorld(t)
	crate := NewBox("crate", spatialmath.NewAABB(r3.Vector{X: 12, Y: 12}, r3.Vector{X: 14, Y: 14, Z: 4}))
	test.That(t, w.Insert(floor), test.ShouldBeNil)
	test.That(t, w.Insert(crate), test.ShouldBeNil)
	test.That(t, w.Balance(), test.ShouldBeNil)

	h, ok, err := w.Height(1, -3, 10, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, h, test.ShouldAlmostEqual, 2)

	h, ok, err = w.Height(13, 13, 10, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, h, test.ShouldAlmostEqual, 4)

	visible, err := w.InLineOfSight(r3.Vector{X: 0, Y: 0, Z: 10}, r3.Vector{X: 0, Y: 0, Z: -10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, visible, test.ShouldBeFalse)
}

func TestBoxVsBox(t *testing.T) {
	a := NewBox("a", spatialmath.NewAABB(r3.Vector{}, r3.Vector{X: 2, Y: 2, Z: 2}))
	touching := NewBox("touching", spatialmath.NewAABB(r3.Vector{X: 2}, r3.Vector{X: 3, Y: 1, Z: 1}))
	inside := NewBox("inside", spatialmath.NewAABB(r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}, r3.Vector{X: 1, Y: 1, Z: 1}))
	apart := NewBox("apart", spatialmath.NewAABB(r3.Vector{X: 1, Y: 1, Z: 3}, r3.Vector{X: 2, Y: 2, Z: 4}))

	test.That(t, BoxVsBox(a, touching), test.ShouldBeTrue)
	test.That(t, BoxVsBox(a, inside), test.ShouldBeTrue)
	test.That(t, BoxVsBox(inside, a), test.ShouldBeTrue)
	test.That(t, BoxVsBox(a, apart), test.ShouldBeFalse)

	boxes := []*Box{a, touching, inside, apart}
	test.That(t, Overlapping(a, boxes), test.ShouldResemble, []*Box{touching, inside})
	test.That(t, Overlapping(apart, boxes), test.ShouldBeEmpty)
}
