package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is three points in space with a cached unit normal.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a triangle whose normal follows the right-hand winding p0, p1, p2.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// PlaneNormal returns the unit normal of the plane through the three points.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	return p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
}

// Points returns the triangle's vertices.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the triangle's unit normal.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Area returns the triangle's area.
func (t *Triangle) Area() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// Bounds returns the smallest axis-aligned box containing the triangle.
func (t *Triangle) Bounds() AABB {
	return NewAABB(t.p0, t.p1).Merge(NewAABB(t.p2, t.p2))
}

// IntersectRay returns the parametric distance at which the ray crosses the triangle, using the
// Möller-Trumbore test. Both faces are considered; hits behind the origin are rejected.
func (t *Triangle) IntersectRay(r Ray) (float64, bool) {
	// rays running along the triangle's plane never cross it
	if math.Abs(r.Direction().Dot(t.Normal())) < floatEpsilon {
		return 0, false
	}
	e1 := t.p1.Sub(t.p0)
	e2 := t.p2.Sub(t.p0)
	h := r.Direction().Cross(e2)
	a := e1.Dot(h)
	if math.Abs(a) < floatEpsilon*floatEpsilon {
		return 0, false
	}
	f := 1 / a
	s := r.Start().Sub(t.p0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := f * r.Direction().Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	dist := f * e2.Dot(q)
	if dist < 0 {
		return 0, false
	}
	return dist, true
}
