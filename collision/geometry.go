package collision

import (
	"math"

	"github.com/golang/geo/r3"
)

// worldAxes are the candidate separating plane normals for two axis-aligned boxes.
var worldAxes = [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}

// BoxVsBox reports whether two boxes touch or overlap.
func BoxVsBox(a, b *Box) bool {
	positionDelta := a.AABB.Center().Sub(b.AABB.Center())
	halfA := a.AABB.Extent().Mul(0.5)
	halfB := b.AABB.Extent().Mul(0.5)
	for _, plane := range worldAxes {
		if separatingPlaneTest(positionDelta, plane, halfA, halfB) {
			return false
		}
	}
	return true
}

// separatingPlaneTest reports whether the plane with the given normal separates two boxes whose
// centers differ by positionDelta.
func separatingPlaneTest(positionDelta, plane, halfA, halfB r3.Vector) bool {
	return math.Abs(positionDelta.Dot(plane)) > math.Abs(halfA.Dot(plane))+math.Abs(halfB.Dot(plane))
}

// Overlapping returns the members of boxes other than target that touch or overlap it.
func Overlapping(target *Box, boxes []*Box) []*Box {
	var out []*Box
	for _, b := range boxes {
		if b != target && BoxVsBox(target, b) {
			out = append(out, b)
		}
	}
	return out
}

