package collision

import (
	"math"
	"time"

	"github.com/golang/geo/r3"

	"go.viam.com/spatialindex/grid"
	"go.viam.com/spatialindex/spatialmath"
)

// minSegment is the length below which two points are treated as the same point.
const minSegment = 1e-10

// World is a grid of collidable objects.
type World[T Element] struct {
	grid *grid.Grid[T]
}

// NewWorld returns an empty world laid out by the grid options.
func NewWorld[T Element](opts ...grid.Option) (*World[T], error) {
	g, err := grid.New(func(obj T) spatialmath.AABB {
		return obj.Bounds()
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &World[T]{grid: g}, nil
}

// Grid returns the underlying grid.
func (w *World[T]) Grid() *grid.Grid[T] {
	return w.grid
}

// Insert adds obj to the world.
func (w *World[T]) Insert(obj T) error {
	return w.grid.Insert(obj)
}

// Remove drops obj from the world.
func (w *World[T]) Remove(obj T) {
	w.grid.Remove(obj)
}

// Contains reports whether obj is in the world.
func (w *World[T]) Contains(obj T) bool {
	return w.grid.Contains(obj)
}

// Size returns the number of objects in the world.
func (w *World[T]) Size() int {
	return w.grid.Size()
}

// Balance rebuilds every stale part of the world.
func (w *World[T]) Balance() error {
	return w.grid.Balance()
}

// Update advances the world's rebalance clock.
func (w *World[T]) Update(elapsed time.Duration) error {
	return w.grid.Update(elapsed)
}

func intersect[T Element](r spatialmath.Ray, obj T, maxDist *float64, stopAtFirst bool) bool {
	return obj.IntersectRay(r, maxDist, stopAtFirst)
}

// IntersectionTime returns the distance along ray to the nearest object hit before end, or maxDist
// and false when nothing is hit.
func (w *World[T]) IntersectionTime(ray spatialmath.Ray, end r3.Vector, maxDist float64) (float64, bool, error) {
	dist := maxDist
	hit, err := w.grid.IntersectRay(ray, intersect[T], &dist, end, false)
	if err != nil {
		return 0, false, err
	}
	return dist, hit, nil
}

// InLineOfSight reports whether no object blocks the segment from start to end.
func (w *World[T]) InLineOfSight(start, end r3.Vector) (bool, error) {
	ray, dist := spatialmath.NewRayFromTo(start, end)
	if dist < minSegment {
		return true, nil
	}
	hit, err := w.grid.IntersectRay(ray, intersect[T], &dist, end, true)
	if err != nil {
		return false, err
	}
	return !hit, nil
}

// ObjectHitPos returns where the segment from start to end first hits an object, moved along the
// segment by modifyDist. A negative modifyDist pulls the position back toward start but never past
// it. When nothing is hit it returns end and false.
func (w *World[T]) ObjectHitPos(start, end r3.Vector, modifyDist float64) (r3.Vector, bool, error) {
	ray, dist := spatialmath.NewRayFromTo(start, end)
	if dist < minSegment {
		return end, false, nil
	}
	hitDist, hit, err := w.IntersectionTime(ray, end, dist)
	if err != nil {
		return r3.Vector{}, false, err
	}
	if !hit {
		return end, false, nil
	}
	pos := ray.PointAt(hitDist)
	dir := ray.Direction()
	if modifyDist < 0 && pos.Sub(start).Norm() <= -modifyDist {
		return start, true, nil
	}
	return pos.Add(dir.Mul(modifyDist)), true, nil
}

// Height returns the height of the first surface straight below (x, y, z) within maxSearchDist.
func (w *World[T]) Height(x, y, z, maxSearchDist float64) (float64, bool, error) {
	ray := spatialmath.NewRay(r3.Vector{X: x, Y: y, Z: z}, r3.Vector{Z: -1})
	dist := maxSearchDist
	hit, err := w.grid.IntersectZAlignedRay(ray, intersect[T], &dist)
	if err != nil {
		return 0, false, err
	}
	if !hit {
		return math.Inf(-1), false, nil
	}
	return z - dist, true, nil
}
