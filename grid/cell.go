package grid

import "fmt"

// Cell addresses one column of the grid.
type Cell struct {
	X, Y int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// valid reports whether the cell lies inside an n by n grid.
func (c Cell) valid(n int) bool {
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// cellSet is a small deduplicated set of cells, sized for the nine footprint samples.
type cellSet struct {
	cells [9]Cell
	n     int
}

func (s *cellSet) add(c Cell) {
	for _, existing := range s.cells[:s.n] {
		if existing == c {
			return
		}
	}
	s.cells[s.n] = c
	s.n++
}

func (s *cellSet) slice() []Cell {
	return append([]Cell(nil), s.cells[:s.n]...)
}
