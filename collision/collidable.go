// Package collision answers line of sight, hit position and ground height queries against a world of
// objects that can intersect rays themselves.
package collision

import (
	"fmt"
	"math"

	"go.viam.com/spatialindex/spatialmath"
)

// Collidable is an object with fixed bounds that can test itself against a ray.
type Collidable interface {
	Bounds() spatialmath.AABB
	// IntersectRay reports whether the ray hits the object no farther than *maxDist and, on a hit,
	// shrinks *maxDist to the hit distance.
	IntersectRay(ray spatialmath.Ray, maxDist *float64, stopAtFirst bool) bool
}

// Element is a Collidable usable as a world member.
type Element interface {
	comparable
	Collidable
}

// Box is a solid axis-aligned box.
type Box struct {
	Name string
	AABB spatialmath.AABB
}

// NewBox returns a named solid box.
func NewBox(name string, box spatialmath.AABB) *Box {
	return &Box{Name: name, AABB: box}
}

// Bounds returns the box itself.
func (b *Box) Bounds() spatialmath.AABB {
	return b.AABB
}

// IntersectRay hits the box at its entry point, or at distance zero for rays starting inside.
func (b *Box) IntersectRay(ray spatialmath.Ray, maxDist *float64, _ bool) bool {
	tNear, _, ok := b.AABB.IntersectRay(ray)
	if !ok {
		return false
	}
	d := math.Max(tNear, 0)
	if d > *maxDist {
		return false
	}
	*maxDist = d
	return true
}

func (b *Box) String() string {
	return fmt.Sprintf("box %q %v", b.Name, b.AABB)
}
