package bih

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// buildStats accumulates shape information during construction for debug logging.
type buildStats struct {
	inner       int
	leaves      int
	emptySpace  int
	minDepth    int
	maxDepth    int
	maxLeafSize int
}

func (s *buildStats) updateInner() {
	s.inner++
}

func (s *buildStats) updateEmptySpace() {
	s.emptySpace++
	s.inner++
}

func (s *buildStats) updateLeaf(depth, n int) {
	if s.leaves == 0 || depth < s.minDepth {
		s.minDepth = depth
	}
	if depth > s.maxDepth {
		s.maxDepth = depth
	}
	if n > s.maxLeafSize {
		s.maxLeafSize = n
	}
	s.leaves++
}

// Stats summarizes the shape of a tree.
type Stats struct {
	Primitives      int
	Nodes           int
	InnerNodes      int
	EmptySpaceNodes int
	Leaves          int
	MinLeafDepth    int
	MaxLeafDepth    int
	MaxLeafSize     int
	MeanLeafSize    float64
	StdDevLeafSize  float64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"primitives: %d, nodes: %d (inner %d, empty-space %d, leaves %d), leaf depth: [%d, %d], leaf size: max %d mean %.2f stddev %.2f",
		s.Primitives, s.Nodes, s.InnerNodes, s.EmptySpaceNodes, s.Leaves,
		s.MinLeafDepth, s.MaxLeafDepth, s.MaxLeafSize, s.MeanLeafSize, s.StdDevLeafSize)
}

// Stats walks the reachable nodes of the tree and summarizes them.
func (t *Tree) Stats() Stats {
	s := Stats{Primitives: len(t.objects), Nodes: len(t.nodes)}
	if len(t.nodes) == 0 {
		return s
	}
	var leafSizes []float64
	s.MinLeafDepth = math.MaxInt
	_ = t.walk(func(n Node, depth int) {
		switch {
		case n.IsLeaf():
			s.Leaves++
			leafSizes = append(leafSizes, float64(n.Count))
			s.MinLeafDepth = min(s.MinLeafDepth, depth)
			s.MaxLeafDepth = max(s.MaxLeafDepth, depth)
			s.MaxLeafSize = max(s.MaxLeafSize, int(n.Count))
		case n.EmptySpace:
			s.EmptySpaceNodes++
			s.InnerNodes++
		default:
			s.InnerNodes++
		}
	})
	if s.Leaves == 0 {
		s.MinLeafDepth = 0
		return s
	}
	s.MeanLeafSize, s.StdDevLeafSize = stat.MeanStdDev(leafSizes, nil)
	if math.IsNaN(s.StdDevLeafSize) {
		s.StdDevLeafSize = 0
	}
	return s
}

// walk visits every node reachable from the root depth first. Children that sit behind an infinite
// clip plane are unreachable by any query and are skipped. Walking stops with an error at a node that
// is reached twice or lies deeper than MaxDepth.
func (t *Tree) walk(fn func(n Node, depth int)) error {
	type item struct {
		node  uint32
		depth int
	}
	visited := make([]bool, len(t.nodes))
	stack := []item{{0, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int(it.node) >= len(t.nodes) {
			continue
		}
		if it.depth > MaxDepth {
			return errors.Errorf("node %d deeper than %d", it.node, MaxDepth)
		}
		if visited[it.node] {
			return errors.Errorf("node %d reachable by more than one path", it.node)
		}
		visited[it.node] = true
		n := t.nodes[it.node]
		fn(n, it.depth)
		switch {
		case n.IsLeaf():
		case n.EmptySpace:
			stack = append(stack, item{n.Offset, it.depth + 1})
		default:
			if !math.IsInf(n.ClipHigh, 1) {
				stack = append(stack, item{n.Offset + 1, it.depth + 1})
			}
			if !math.IsInf(n.ClipLow, -1) {
				stack = append(stack, item{n.Offset, it.depth + 1})
			}
		}
	}
	return nil
}
