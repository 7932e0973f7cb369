// Package spatialmath defines the axis-aligned bounding boxes, rays and triangles that the
// spatial indexes are built over.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Axis identifies one of the three coordinate axes.
type Axis int

// The three coordinate axes, in the order used by node kinds and serialized headers.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// AABB is an axis-aligned bounding box described by its low and high corners.
type AABB struct {
	Low  r3.Vector
	High r3.Vector
}

// BoundsFunc returns the bounding box of the i-th primitive of a caller-owned sequence.
type BoundsFunc func(i int) AABB

// NewAABB returns the box spanned by the two corners, reordering components as needed.
func NewAABB(a, b r3.Vector) AABB {
	return AABB{
		Low:  r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		High: r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

// NewAABBFromCenter returns the box centered at center with the given full dimensions.
func NewAABBFromCenter(center, dims r3.Vector) AABB {
	half := dims.Mul(0.5)
	return AABB{Low: center.Sub(half), High: center.Add(half)}
}

// EmptyAABB returns an inverted box that acts as the identity for Merge.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Low:  r3.Vector{X: inf, Y: inf, Z: inf},
		High: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// Validate returns an error if the box has NaN or infinite components or a low corner above its high
// corner.
func (b AABB) Validate() error {
	for a := AxisX; a <= AxisZ; a++ {
		lo, hi := b.Lo(a), b.Hi(a)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return errors.Errorf("%s has NaN %s component", b, a)
		}
		if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return errors.Errorf("%s has infinite %s component", b, a)
		}
		if lo > hi {
			return errors.Errorf("%s has low %s component above high", b, a)
		}
	}
	return nil
}

// String returns a human readable string that represents the box.
func (b AABB) String() string {
	return fmt.Sprintf("AABB | Low: X:%.3f, Y:%.3f, Z:%.3f | High: X:%.3f, Y:%.3f, Z:%.3f",
		b.Low.X, b.Low.Y, b.Low.Z, b.High.X, b.High.Y, b.High.Z)
}

// Lo returns the low corner component along the axis.
func (b AABB) Lo(a Axis) float64 {
	return component(b.Low, a)
}

// Hi returns the high corner component along the axis.
func (b AABB) Hi(a Axis) float64 {
	return component(b.High, a)
}

// Center returns the center point of the box.
func (b AABB) Center() r3.Vector {
	return b.Low.Add(b.High).Mul(0.5)
}

// Extent returns the full dimensions of the box.
func (b AABB) Extent() r3.Vector {
	return b.High.Sub(b.Low)
}

// Merge returns the smallest box containing both boxes.
func (b AABB) Merge(o AABB) AABB {
	return AABB{
		Low:  r3.Vector{X: math.Min(b.Low.X, o.Low.X), Y: math.Min(b.Low.Y, o.Low.Y), Z: math.Min(b.Low.Z, o.Low.Z)},
		High: r3.Vector{X: math.Max(b.High.X, o.High.X), Y: math.Max(b.High.Y, o.High.Y), Z: math.Max(b.High.Z, o.High.Z)},
	}
}

// Contains reports whether the point lies inside or on the boundary of the box.
func (b AABB) Contains(pt r3.Vector) bool {
	return pt.X >= b.Low.X && pt.X <= b.High.X &&
		pt.Y >= b.Low.Y && pt.Y <= b.High.Y &&
		pt.Z >= b.Low.Z && pt.Z <= b.High.Z
}

// Overlaps reports whether two boxes share any point, touching faces included.
func (b AABB) Overlaps(o AABB) bool {
	return b.Low.X <= o.High.X && b.High.X >= o.Low.X &&
		b.Low.Y <= o.High.Y && b.High.Y >= o.Low.Y &&
		b.Low.Z <= o.High.Z && b.High.Z >= o.Low.Z
}

// IntersectRay clips the ray against the box using the slab method. It returns the parametric
// entry and exit distances and whether the ray touches the box at a non-negative distance.
// Axes along which the ray does not move only reject rays starting outside the slab.
func (b AABB) IntersectRay(r Ray) (tNear, tFar float64, ok bool) {
	tNear = math.Inf(-1)
	tFar = math.Inf(1)
	for a := AxisX; a <= AxisZ; a++ {
		o := r.Origin(a)
		if r.Dir(a) == 0 {
			if o < b.Lo(a) || o > b.Hi(a) {
				return 0, 0, false
			}
			continue
		}
		inv := r.InvDir(a)
		t1 := (b.Lo(a) - o) * inv
		t2 := (b.Hi(a) - o) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tNear = math.Max(tNear, t1)
		tFar = math.Min(tFar, t2)
		if tNear > tFar {
			return 0, 0, false
		}
	}
	if tFar < 0 {
		return 0, 0, false
	}
	return tNear, tFar, true
}

// PrimaryAxis returns the axis along which the box is widest. Ties prefer the lower axis.
func (b AABB) PrimaryAxis() Axis {
	d := b.Extent()
	if d.X >= d.Y && d.X >= d.Z {
		return AxisX
	}
	if d.Y >= d.Z {
		return AxisY
	}
	return AxisZ
}

// PlaneSamples returns the corners, edge midpoints and center of the box's projection on the
// horizontal (XY) plane.
func (b AABB) PlaneSamples() [9]r3.Vector {
	lo, hi := b.Low, b.High
	mx, my := (lo.X+hi.X)*0.5, (lo.Y+hi.Y)*0.5
	return [9]r3.Vector{
		{X: lo.X, Y: lo.Y},
		{X: hi.X, Y: lo.Y},
		{X: lo.X, Y: hi.Y},
		{X: hi.X, Y: hi.Y},
		{X: mx, Y: lo.Y},
		{X: mx, Y: hi.Y},
		{X: lo.X, Y: my},
		{X: hi.X, Y: my},
		{X: mx, Y: my},
	}
}
