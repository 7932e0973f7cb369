package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Ray is a half-line with an origin and a direction. The inverse direction is cached at construction
// because every traversal step divides by it.
type Ray struct {
	origin    r3.Vector
	direction r3.Vector
	invDir    r3.Vector
}

// NewRay returns a ray starting at origin travelling along direction. The direction is used as given;
// distances reported for the ray are in units of its length.
func NewRay(origin, direction r3.Vector) Ray {
	return Ray{
		origin:    origin,
		direction: direction,
		invDir:    r3.Vector{X: 1 / direction.X, Y: 1 / direction.Y, Z: 1 / direction.Z},
	}
}

// NewRayFromTo returns a ray from start toward end with a unit direction, together with the distance
// between the two points. Coincident points yield a ray pointing straight down.
func NewRayFromTo(start, end r3.Vector) (Ray, float64) {
	d := end.Sub(start)
	dist := d.Norm()
	if dist == 0 {
		return NewRay(start, r3.Vector{Z: -1}), 0
	}
	return NewRay(start, d.Mul(1/dist)), dist
}

// Start returns the ray origin.
func (r Ray) Start() r3.Vector {
	return r.origin
}

// Direction returns the ray direction.
func (r Ray) Direction() r3.Vector {
	return r.direction
}

// InvDirection returns the component-wise inverse of the direction.
func (r Ray) InvDirection() r3.Vector {
	return r.invDir
}

// Origin returns the origin component along the axis.
func (r Ray) Origin(a Axis) float64 {
	return component(r.origin, a)
}

// Dir returns the direction component along the axis.
func (r Ray) Dir(a Axis) float64 {
	return component(r.direction, a)
}

// InvDir returns the inverse direction component along the axis.
func (r Ray) InvDir(a Axis) float64 {
	return component(r.invDir, a)
}

// PointAt returns the point at parametric distance t along the ray.
func (r Ray) PointAt(t float64) r3.Vector {
	return r.origin.Add(r.direction.Mul(t))
}

// Negative reports whether the direction's sign bit is set on the axis. Negative zero counts as
// negative so that near/far child selection agrees with the inverse direction's sign.
func (r Ray) Negative(a Axis) bool {
	return math.Signbit(r.Dir(a))
}

func (r Ray) String() string {
	return fmt.Sprintf("Ray | Origin: X:%.3f, Y:%.3f, Z:%.3f | Dir: X:%.3f, Y:%.3f, Z:%.3f",
		r.origin.X, r.origin.Y, r.origin.Z, r.direction.X, r.direction.Y, r.direction.Z)
}
