// Package bih implements a bounding interval hierarchy over axis-aligned boxes.
//
// A tree is built once from a caller-owned sequence of primitives and then answers ray and point
// queries by handing candidate primitive indices to a callback. The tree never owns primitive data;
// exact intersection is the callback's job. Trees are immutable after Build or ReadFrom and may be
// written to and read from a fixed little-endian binary layout.
package bih

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/spatialindex/spatialmath"
)

const (
	// MaxDepth bounds the depth of any tree and sizes the traversal stack.
	MaxDepth = 64
	// DefaultLeafSize is the largest number of primitives a leaf holds before it is split.
	DefaultLeafSize = 3
	// DefaultEmptySpaceRatio is how much larger than its primitives' extent a node must be before an
	// empty-space node is emitted to clip the difference.
	DefaultEmptySpaceRatio = 1.3

	// maxOffset is the largest node or object offset that fits the 29-bit serialized field.
	maxOffset = 1<<29 - 1
)

var (
	// ErrInvalidGeometry is returned by Build when primitive bounds are malformed and the
	// hierarchy's invariants cannot hold.
	ErrInvalidGeometry = errors.New("invalid primitive geometry")
	// ErrCorruptTree is returned when a serialized tree is truncated or structurally unsound.
	ErrCorruptTree = errors.New("corrupt bounding interval hierarchy")
)

// NodeKind distinguishes internal nodes, by split axis, from leaves.
type NodeKind uint8

// Node kinds, matching the two high bits of a serialized node header.
const (
	NodeAxisX NodeKind = iota
	NodeAxisY
	NodeAxisZ
	NodeLeaf
)

func (k NodeKind) String() string {
	switch k {
	case NodeAxisX, NodeAxisY, NodeAxisZ:
		return "axis-" + k.Axis().String()
	case NodeLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Axis returns the split axis of an internal node kind.
func (k NodeKind) Axis() spatialmath.Axis {
	return spatialmath.Axis(k)
}

func kindForAxis(a spatialmath.Axis) NodeKind {
	return NodeKind(a)
}

// Node is one record of the flat node arena.
//
// An internal node's low child is at Offset and its high child at Offset+1. ClipLow is the highest
// extent of the low child's geometry along the split axis and ClipHigh the lowest extent of the high
// child's. An empty-space node has a single child at Offset and clips traversal to
// [ClipLow, ClipHigh]. A leaf references objects[Offset : Offset+Count].
type Node struct {
	Kind       NodeKind
	EmptySpace bool
	Offset     uint32
	Count      uint32
	ClipLow    float64
	ClipHigh   float64
}

// IsLeaf reports whether the node is a leaf.
func (n Node) IsLeaf() bool {
	return n.Kind == NodeLeaf
}

func (n Node) clip(high bool) float64 {
	if high {
		return n.ClipHigh
	}
	return n.ClipLow
}

// RayCallback is invoked for every candidate primitive a ray reaches. It may shrink maxDist as closer
// hits are found and reports whether the primitive was hit.
type RayCallback func(ray spatialmath.Ray, id uint32, maxDist *float64, stopAtFirst bool) bool

// PointCallback is invoked for every candidate primitive whose leaf region contains the point. The
// same primitive may be reported more than once for a single query.
type PointCallback func(pt r3.Vector, id uint32)

// Tree is a bounding interval hierarchy. The zero value is an empty tree.
type Tree struct {
	nodes   []Node
	objects []uint32
	bounds  spatialmath.AABB
}

// NewEmpty returns a tree with no primitives that reports no hits.
func NewEmpty() *Tree {
	t := &Tree{}
	t.initEmpty()
	return t
}

func (t *Tree) initEmpty() {
	t.nodes = []Node{{Kind: NodeLeaf}}
	t.objects = nil
	t.bounds = spatialmath.AABB{}
}

// Bounds returns the union of all primitive bounds the tree was built from.
func (t *Tree) Bounds() spatialmath.AABB {
	return t.bounds
}

// PrimCount returns the number of primitive references stored in the leaves.
func (t *Tree) PrimCount() int {
	return len(t.objects)
}

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// Node returns the i-th node of the arena.
func (t *Tree) Node(i int) (Node, bool) {
	if i < 0 || i >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Objects returns the leaf payload: primitive indices in leaf order.
func (t *Tree) Objects() []uint32 {
	return t.objects
}

func (t *Tree) String() string {
	return fmt.Sprintf("bih with %d primitives in %d nodes, bounds %v", len(t.objects), len(t.nodes), t.bounds)
}
