package bih

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/spatialindex/spatialmath"
)

// IntersectRay walks every leaf the ray reaches within *maxDist, nearest first, and invokes cb for each
// primitive in those leaves. cb may shrink *maxDist to prune farther branches. With stopAtFirst the
// walk ends at the first primitive cb reports as hit. It returns whether cb reported any hit.
func (t *Tree) IntersectRay(r spatialmath.Ray, cb RayCallback, maxDist *float64, stopAtFirst bool) bool {
	if len(t.objects) == 0 {
		return false
	}
	tNear, tFar, ok := t.bounds.IntersectRay(r)
	if !ok {
		return false
	}
	intervalMin := math.Max(tNear, 0)
	intervalMax := math.Min(tFar, *maxDist)
	if intervalMin > intervalMax {
		return false
	}

	// frontHigh[a] is true when the high child is reached first along axis a
	var frontHigh [3]bool
	for a := spatialmath.AxisX; a <= spatialmath.AxisZ; a++ {
		frontHigh[a] = r.Negative(a)
	}

	var stack rayStack
	hit := false
	node := uint32(0)
	for {
		for int(node) < len(t.nodes) {
			n := t.nodes[node]
			if n.IsLeaf() {
				for i := uint32(0); i < n.Count; i++ {
					idx := int(n.Offset) + int(i)
					if idx >= len(t.objects) {
						break
					}
					if cb(r, t.objects[idx], maxDist, stopAtFirst) {
						hit = true
						if stopAtFirst {
							return true
						}
					}
				}
				break
			}

			axis := n.Kind.Axis()
			org, inv := r.Origin(axis), r.InvDir(axis)
			front := frontHigh[axis]
			tf := (n.clip(front) - org) * inv
			tb := (n.clip(!front) - org) * inv

			if n.EmptySpace {
				node = n.Offset
				if tf >= intervalMin {
					intervalMin = tf
				}
				if tb <= intervalMax {
					intervalMax = tb
				}
				if intervalMin > intervalMax {
					break
				}
				continue
			}

			// ray passes between the clip planes
			if tf < intervalMin && tb > intervalMax {
				break
			}
			backNode := n.Offset + childOffset(!front)
			// far child only
			if tf < intervalMin {
				if tb >= intervalMin {
					intervalMin = tb
				}
				node = backNode
				continue
			}
			frontNode := n.Offset + childOffset(front)
			// near child only
			if tb > intervalMax {
				if tf <= intervalMax {
					intervalMax = tf
				}
				node = frontNode
				continue
			}
			// both: visit near now, far later
			backMin := intervalMin
			if tb >= intervalMin {
				backMin = tb
			}
			stack.push(rayStackEntry{node: backNode, tNear: backMin, tFar: intervalMax})
			if tf <= intervalMax {
				intervalMax = tf
			}
			node = frontNode
		}

		for {
			e, ok := stack.pop()
			if !ok {
				return hit
			}
			if *maxDist < e.tNear {
				continue
			}
			node = e.node
			intervalMin = e.tNear
			intervalMax = math.Min(e.tFar, *maxDist)
			break
		}
	}
}

// IntersectPoint invokes cb for every primitive in every leaf whose region contains pt. Where sibling
// regions overlap both are visited, so a primitive may be reported more than once.
func (t *Tree) IntersectPoint(pt r3.Vector, cb PointCallback) {
	if len(t.objects) == 0 || !t.bounds.Contains(pt) {
		return
	}

	var stack pointStack
	node := uint32(0)
	for {
		for int(node) < len(t.nodes) {
			n := t.nodes[node]
			if n.IsLeaf() {
				for i := uint32(0); i < n.Count; i++ {
					idx := int(n.Offset) + int(i)
					if idx >= len(t.objects) {
						break
					}
					cb(pt, t.objects[idx])
				}
				break
			}

			v := spatialmath.Component(pt, n.Kind.Axis())
			if n.EmptySpace {
				if n.ClipLow > v || n.ClipHigh < v {
					break
				}
				node = n.Offset
				continue
			}

			// point is between the clip planes
			if n.ClipLow < v && n.ClipHigh > v {
				break
			}
			high := n.Offset + 1
			if n.ClipLow < v {
				node = high
				continue
			}
			node = n.Offset
			if n.ClipHigh > v {
				continue
			}
			// in the overlap of both children
			stack.push(high)
		}

		next, ok := stack.pop()
		if !ok {
			return
		}
		node = next
	}
}

func childOffset(high bool) uint32 {
	if high {
		return 1
	}
	return 0
}
