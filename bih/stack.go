package bih

import "github.com/pkg/errors"

// errStackOverflow signals a tree deeper than MaxDepth; Build and ReadFrom never produce one.
var errStackOverflow = errors.New("bih traversal stack overflow: tree exceeds maximum depth")

type rayStackEntry struct {
	node  uint32
	tNear float64
	tFar  float64
}

// rayStack is a fixed-capacity traversal stack for ray queries.
type rayStack struct {
	entries [MaxDepth]rayStackEntry
	n       int
}

func (s *rayStack) push(e rayStackEntry) {
	if s.n == len(s.entries) {
		panic(errStackOverflow)
	}
	s.entries[s.n] = e
	s.n++
}

func (s *rayStack) pop() (rayStackEntry, bool) {
	if s.n == 0 {
		return rayStackEntry{}, false
	}
	s.n--
	return s.entries[s.n], true
}

// pointStack is a fixed-capacity traversal stack for point queries.
type pointStack struct {
	entries [MaxDepth]uint32
	n       int
}

func (s *pointStack) push(node uint32) {
	if s.n == len(s.entries) {
		panic(errStackOverflow)
	}
	s.entries[s.n] = node
	s.n++
}

func (s *pointStack) pop() (uint32, bool) {
	if s.n == 0 {
		return 0, false
	}
	s.n--
	return s.entries[s.n], true
}
