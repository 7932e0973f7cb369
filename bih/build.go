package bih

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/spatialindex/logging"
	"go.viam.com/spatialindex/spatialmath"
)

type buildConfig struct {
	leafSize        int
	maxDepth        int
	emptySpaceRatio float64
	logger          logging.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithLeafSize sets the largest number of primitives stored in one leaf.
func WithLeafSize(n int) BuildOption {
	return func(c *buildConfig) {
		c.leafSize = n
	}
}

// WithMaxDepth caps the tree depth. Nodes at the cap become leaves regardless of their size.
func WithMaxDepth(depth int) BuildOption {
	return func(c *buildConfig) {
		c.maxDepth = depth
	}
}

// WithEmptySpaceRatio sets how many times wider than its primitives a node must be before an
// empty-space node is emitted.
func WithEmptySpaceRatio(ratio float64) BuildOption {
	return func(c *buildConfig) {
		c.emptySpaceRatio = ratio
	}
}

// WithLogger logs build statistics at debug level.
func WithLogger(logger logging.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

func (c buildConfig) validate() error {
	if c.leafSize < 1 {
		return errors.Errorf("leaf size must be positive, got %d", c.leafSize)
	}
	if c.maxDepth < 1 || c.maxDepth > MaxDepth {
		return errors.Errorf("max depth must be within [1, %d], got %d", MaxDepth, c.maxDepth)
	}
	if math.IsNaN(c.emptySpaceRatio) || c.emptySpaceRatio < 1 {
		return errors.Errorf("empty space ratio must be at least 1, got %f", c.emptySpaceRatio)
	}
	return nil
}

// builder holds the state of one bulk construction.
type builder struct {
	buildConfig
	indices []uint32
	bounds  []spatialmath.AABB
	nodes   []Node
	stats   buildStats
}

// BuildFromBoxes builds a tree over a slice of boxes; primitive ids are slice indices.
func BuildFromBoxes(boxes []spatialmath.AABB, opts ...BuildOption) (*Tree, error) {
	return Build(len(boxes), func(i int) spatialmath.AABB { return boxes[i] }, opts...)
}

// Build constructs a tree over n primitives whose bounds are given by boundsFn. Primitive ids handed
// to query callbacks are the indices 0..n-1. Malformed bounds yield an error wrapping
// ErrInvalidGeometry; such trees must not be used.
func Build(n int, boundsFn spatialmath.BoundsFunc, opts ...BuildOption) (*Tree, error) {
	cfg := buildConfig{
		leafSize:        DefaultLeafSize,
		maxDepth:        MaxDepth,
		emptySpaceRatio: DefaultEmptySpaceRatio,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if n < 0 || n > maxOffset {
		return nil, errors.Errorf("primitive count %d outside [0, %d]", n, maxOffset)
	}

	tree := &Tree{}
	if n == 0 {
		tree.initEmpty()
		return tree, nil
	}

	b := &builder{
		buildConfig: cfg,
		indices:     make([]uint32, n),
		bounds:      make([]spatialmath.AABB, n),
	}
	total := spatialmath.EmptyAABB()
	for i := 0; i < n; i++ {
		box := boundsFn(i)
		if err := box.Validate(); err != nil {
			return nil, errors.Wrapf(ErrInvalidGeometry, "primitive %d: %v", i, err)
		}
		b.indices[i] = uint32(i)
		b.bounds[i] = box
		total = total.Merge(box)
	}

	// the root is a placeholder leaf until subdivide overwrites it
	b.nodes = append(b.nodes, Node{Kind: NodeLeaf})
	if err := b.subdivide(0, n-1, total, total, 0, 0); err != nil {
		return nil, err
	}

	tree.nodes = b.nodes
	tree.objects = b.indices
	tree.bounds = total

	if cfg.logger != nil {
		cfg.logger.Debugw("built bounding interval hierarchy",
			"primitives", n,
			"nodes", len(b.nodes),
			"leaves", b.stats.leaves,
			"emptySpaceNodes", b.stats.emptySpace,
			"minDepth", b.stats.minDepth,
			"maxDepth", b.stats.maxDepth,
			"maxLeafSize", b.stats.maxLeafSize,
		)
	}
	return tree, nil
}

func (b *builder) alloc() (uint32, error) {
	if len(b.nodes) > maxOffset {
		return 0, errors.Errorf("node arena exceeds %d nodes", maxOffset)
	}
	b.nodes = append(b.nodes, Node{Kind: NodeLeaf})
	return uint32(len(b.nodes) - 1), nil
}

func (b *builder) createLeaf(nodeIndex uint32, left, right, depth int) {
	b.stats.updateLeaf(depth, right-left+1)
	b.nodes[nodeIndex] = Node{Kind: NodeLeaf, Offset: uint32(left), Count: uint32(right - left + 1)}
}

// subdivide builds the subtree for indices[left..right] (inclusive) into nodes[nodeIndex]. gridBox is
// the spatial region being split; nodeBox is the tightened region inherited from the parent's clip
// values.
func (b *builder) subdivide(left, right int, gridBox, nodeBox spatialmath.AABB, nodeIndex uint32, depth int) error {
	if right-left+1 <= b.leafSize || depth >= b.maxDepth {
		b.createLeaf(nodeIndex, left, right, depth)
		return nil
	}

	axis := spatialmath.Axis(-1)
	var prevAxis spatialmath.Axis
	var clipL, clipR float64
	prevClip := math.NaN()
	split, prevSplit := math.NaN(), math.NaN()
	wasLeft := true
	nLeft := 0
	count := right - left + 1

	for {
		prevAxis = axis
		prevSplit = split

		d := gridBox.Extent()
		if d.X < 0 || d.Y < 0 || d.Z < 0 {
			return errors.Wrapf(ErrInvalidGeometry, "negative node extents %v", d)
		}
		for a := spatialmath.AxisX; a <= spatialmath.AxisZ; a++ {
			if nodeBox.Hi(a) < gridBox.Lo(a) || nodeBox.Lo(a) > gridBox.Hi(a) {
				return errors.Wrapf(ErrInvalidGeometry, "node bound %v escapes grid bound %v along %s", nodeBox, gridBox, a)
			}
		}

		axis = gridBox.PrimaryAxis()
		split = 0.5 * (gridBox.Lo(axis) + gridBox.Hi(axis))

		p := partition(b.indices[left:right+1], b.bounds, axis, split)
		nLeft, clipL, clipR = p.nLeft, p.clipL, p.clipR

		// collapse empty space around the primitives with a single-child clip node
		if p.nodeL > nodeBox.Lo(axis) && p.nodeR < nodeBox.Hi(axis) {
			nodeBoxW := nodeBox.Hi(axis) - nodeBox.Lo(axis)
			nodeNewW := p.nodeR - p.nodeL
			if b.emptySpaceRatio*nodeNewW < nodeBoxW {
				b.stats.updateEmptySpace()
				next, err := b.alloc()
				if err != nil {
					return err
				}
				b.nodes[nodeIndex] = Node{
					Kind:       kindForAxis(axis),
					EmptySpace: true,
					Offset:     next,
					ClipLow:    p.nodeL,
					ClipHigh:   p.nodeR,
				}
				setComponent(&nodeBox.Low, axis, p.nodeL)
				setComponent(&nodeBox.High, axis, p.nodeR)
				return b.subdivide(left, right, gridBox, nodeBox, next, depth+1)
			}
		}

		switch {
		case nLeft == count:
			// everything landed left
			if prevAxis == axis && spatialmath.Float64AlmostEqual(prevSplit, split) {
				b.createLeaf(nodeIndex, left, right, depth)
				return nil
			}
			setComponent(&gridBox.High, axis, split)
			if clipL <= split {
				prevClip = clipL
				wasLeft = true
			} else {
				prevClip = math.NaN()
			}
			continue
		case nLeft == 0:
			// everything landed right
			if prevAxis == axis && spatialmath.Float64AlmostEqual(prevSplit, split) {
				b.createLeaf(nodeIndex, left, right, depth)
				return nil
			}
			setComponent(&gridBox.Low, axis, split)
			if clipR >= split {
				prevClip = clipR
				wasLeft = false
			} else {
				prevClip = math.NaN()
			}
			continue
		}

		if prevAxis != -1 && !math.IsNaN(prevClip) {
			// the previous one-sided split carved off empty space; emit it before splitting for real
			if depth+1 >= b.maxDepth {
				b.createLeaf(nodeIndex, left, right, depth)
				return nil
			}
			next, err := b.alloc()
			if err != nil {
				return err
			}
			if wasLeft {
				b.nodes[nodeIndex] = Node{Kind: kindForAxis(prevAxis), Offset: next, ClipLow: prevClip, ClipHigh: math.Inf(1)}
			} else {
				b.nodes[nodeIndex] = Node{Kind: kindForAxis(prevAxis), Offset: next - 1, ClipLow: math.Inf(-1), ClipHigh: prevClip}
			}
			b.stats.updateInner()
			depth++
			// the child behind the infinite plane is an unused leaf
			b.stats.updateLeaf(depth, 0)
			nodeIndex = next
		}
		break
	}

	leftChild, err := b.alloc()
	if err != nil {
		return err
	}
	if _, err := b.alloc(); err != nil {
		return err
	}
	b.stats.updateInner()
	b.nodes[nodeIndex] = Node{Kind: kindForAxis(axis), Offset: leftChild, ClipLow: clipL, ClipHigh: clipR}

	gridBoxL, gridBoxR := gridBox, gridBox
	nodeBoxL, nodeBoxR := nodeBox, nodeBox
	setComponent(&gridBoxL.High, axis, split)
	setComponent(&gridBoxR.Low, axis, split)
	setComponent(&nodeBoxL.High, axis, clipL)
	setComponent(&nodeBoxR.Low, axis, clipR)

	mid := left + nLeft - 1
	if err := b.subdivide(left, mid, gridBoxL, nodeBoxL, leftChild, depth+1); err != nil {
		return err
	}
	return b.subdivide(mid+1, right, gridBoxR, nodeBoxR, leftChild+1, depth+1)
}

// partitionResult describes one two-way partition of an index range.
type partitionResult struct {
	// nLeft is the number of indices moved to the front of the range.
	nLeft int
	// clipL is the highest extent of the left subset, clipR the lowest of the right subset.
	clipL, clipR float64
	// nodeL and nodeR are the lowest and highest extents of the whole range.
	nodeL, nodeR float64
}

// partition reorders ids in place so that primitives whose centroid along axis is at or below split
// come first, and reports the clip planes of both halves.
func partition(ids []uint32, bounds []spatialmath.AABB, axis spatialmath.Axis, split float64) partitionResult {
	res := partitionResult{
		clipL: math.Inf(-1),
		clipR: math.Inf(1),
		nodeL: math.Inf(1),
		nodeR: math.Inf(-1),
	}
	right := len(ids) - 1
	for i := 0; i <= right; {
		box := bounds[ids[i]]
		minb, maxb := box.Lo(axis), box.Hi(axis)
		center := (minb + maxb) * 0.5
		if center <= split {
			i++
			res.clipL = math.Max(res.clipL, maxb)
		} else {
			ids[i], ids[right] = ids[right], ids[i]
			right--
			res.clipR = math.Min(res.clipR, minb)
		}
		res.nodeL = math.Min(res.nodeL, minb)
		res.nodeR = math.Max(res.nodeR, maxb)
	}
	res.nLeft = right + 1
	return res
}

func setComponent(v *r3.Vector, a spatialmath.Axis, val float64) {
	switch a {
	case spatialmath.AxisX:
		v.X = val
	case spatialmath.AxisY:
		v.Y = val
	default:
		v.Z = val
	}
}
