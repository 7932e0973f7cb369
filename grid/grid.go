// Package grid partitions the horizontal plane into a fixed square grid of columns, each holding its
// own incremental bounding interval hierarchy.
//
// Objects are registered in every column their horizontal footprint touches, so a wide object is
// found from any of them and may be reported once per column by a single ray query. Rays are walked
// column by column in the order they cross them.
package grid

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/spatialindex/bih"
	"go.viam.com/spatialindex/dyntree"
	"go.viam.com/spatialindex/logging"
	"go.viam.com/spatialindex/spatialmath"
)

const (
	// DefaultCells is the number of columns along each side of the grid.
	DefaultCells = 64
	// DefaultExtent is the side length of the square region the grid covers.
	DefaultExtent = 64 * 533.33333
	// DefaultRebalancePeriod is how much elapsed time Update accumulates before rebuilding dirty
	// columns.
	DefaultRebalancePeriod = 200 * time.Millisecond
)

// ErrOutOfGrid is returned when an object's footprint lies entirely outside the grid.
var ErrOutOfGrid = errors.New("object lies outside the grid")

type options struct {
	cells           int
	extent          float64
	rebalancePeriod time.Duration
	indexOpts       []dyntree.Option
	logger          logging.Logger
}

// Option configures a Grid.
type Option func(*options)

// WithCells sets the number of columns along each side.
func WithCells(n int) Option {
	return func(o *options) {
		o.cells = n
	}
}

// WithExtent sets the side length of the covered square, which is centered on the origin.
func WithExtent(extent float64) Option {
	return func(o *options) {
		o.extent = extent
	}
}

// WithRebalancePeriod sets how much elapsed time Update accumulates between rebuilds.
func WithRebalancePeriod(d time.Duration) Option {
	return func(o *options) {
		o.rebalancePeriod = d
	}
}

// WithIndexOptions sets the options of every column's index.
func WithIndexOptions(opts ...dyntree.Option) Option {
	return func(o *options) {
		o.indexOpts = append(o.indexOpts, opts...)
	}
}

// WithObserver registers an observer with every column's index.
func WithObserver(observer dyntree.Observer) Option {
	return WithIndexOptions(dyntree.WithObserver(observer))
}

// WithLogger sets the logger used for rebalancing.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func (o options) validate() error {
	var err error
	if o.cells < 1 {
		err = multierr.Append(err, errors.Errorf("cell count must be positive, got %d", o.cells))
	}
	if !(o.extent > 0) || math.IsInf(o.extent, 0) {
		err = multierr.Append(err, errors.Errorf("extent must be positive and finite, got %f", o.extent))
	}
	if o.rebalancePeriod < 0 {
		err = multierr.Append(err, errors.Errorf("rebalance period must not be negative, got %v", o.rebalancePeriod))
	}
	return err
}

// Grid is an n by n array of lazily created indexes over the horizontal plane. A Grid is not safe
// for concurrent use.
type Grid[T comparable] struct {
	bounds   func(T) spatialmath.AABB
	opts     options
	cellSize float64

	nodes   [][]*dyntree.Index[T]
	members map[T][]Cell

	sinceRebalance time.Duration
	logger         logging.Logger
}

// New returns an empty grid. bounds must return the same box for an object for as long as it is in
// the grid.
func New[T comparable](bounds func(T) spatialmath.AABB, opts ...Option) (*Grid[T], error) {
	o := options{
		cells:           DefaultCells,
		extent:          DefaultExtent,
		rebalancePeriod: DefaultRebalancePeriod,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger = logging.NewBlankLogger("grid")
	}

	nodes := make([][]*dyntree.Index[T], o.cells)
	for x := range nodes {
		nodes[x] = make([]*dyntree.Index[T], o.cells)
	}
	return &Grid[T]{
		bounds:   bounds,
		opts:     o,
		cellSize: o.extent / float64(o.cells),
		nodes:    nodes,
		members:  map[T][]Cell{},
		logger:   logger,
	}, nil
}

// Cells returns the number of columns along each side.
func (g *Grid[T]) Cells() int {
	return g.opts.cells
}

// CellSize returns the side length of one column.
func (g *Grid[T]) CellSize() float64 {
	return g.cellSize
}

// Cell returns the column containing the horizontal position (x, y). The result may lie outside
// the grid.
func (g *Grid[T]) Cell(x, y float64) Cell {
	half := float64(g.opts.cells) / 2
	return Cell{
		X: int(math.Floor(x/g.cellSize + half)),
		Y: int(math.Floor(y/g.cellSize + half)),
	}
}

// CellBounds returns the horizontal extent of a column. The Z components are zero.
func (g *Grid[T]) CellBounds(c Cell) spatialmath.AABB {
	lowX, lowY := g.border(c.X), g.border(c.Y)
	return spatialmath.AABB{
		Low:  r3.Vector{X: lowX, Y: lowY},
		High: r3.Vector{X: lowX + g.cellSize, Y: lowY + g.cellSize},
	}
}

// border returns the world coordinate of the low edge of column index i.
func (g *Grid[T]) border(i int) float64 {
	return (float64(i) - float64(g.opts.cells)/2) * g.cellSize
}

// Valid reports whether the column lies inside the grid.
func (g *Grid[T]) Valid(c Cell) bool {
	return c.valid(g.opts.cells)
}

// Index returns the index of a column, if it has been created.
func (g *Grid[T]) Index(c Cell) (*dyntree.Index[T], bool) {
	if !g.Valid(c) {
		return nil, false
	}
	idx := g.nodes[c.X][c.Y]
	return idx, idx != nil
}

func (g *Grid[T]) getOrCreate(c Cell) *dyntree.Index[T] {
	idx := g.nodes[c.X][c.Y]
	if idx == nil {
		idx = dyntree.New(g.bounds, g.opts.indexOpts...)
		g.nodes[c.X][c.Y] = idx
	}
	return idx
}

// footprint returns the distinct columns covered by samples of box's horizontal projection.
func (g *Grid[T]) footprint(box spatialmath.AABB) []Cell {
	var set cellSet
	for _, p := range box.PlaneSamples() {
		if c := g.Cell(p.X, p.Y); g.Valid(c) {
			set.add(c)
		}
	}
	return set.slice()
}

// Insert adds obj to the index of every column its footprint samples fall in. Inserting an object
// already in the grid does nothing.
func (g *Grid[T]) Insert(obj T) error {
	if _, ok := g.members[obj]; ok {
		return nil
	}
	box := g.bounds(obj)
	if err := box.Validate(); err != nil {
		return errors.Wrap(bih.ErrInvalidGeometry, err.Error())
	}
	cells := g.footprint(box)
	if len(cells) == 0 {
		return errors.Wrapf(ErrOutOfGrid, "%v", box)
	}
	for _, c := range cells {
		g.getOrCreate(c).Insert(obj)
	}
	g.members[obj] = cells
	return nil
}

// Remove drops obj from every column it was inserted into. Unknown objects are ignored.
func (g *Grid[T]) Remove(obj T) {
	cells, ok := g.members[obj]
	if !ok {
		return
	}
	for _, c := range cells {
		g.nodes[c.X][c.Y].Remove(obj)
	}
	delete(g.members, obj)
}

// Contains reports whether obj is in the grid.
func (g *Grid[T]) Contains(obj T) bool {
	_, ok := g.members[obj]
	return ok
}

// Size returns the number of distinct objects in the grid.
func (g *Grid[T]) Size() int {
	return len(g.members)
}

// CellsOf returns the columns obj was inserted into.
func (g *Grid[T]) CellsOf(obj T) []Cell {
	return append([]Cell(nil), g.members[obj]...)
}

// Balance rebuilds every dirty column. It continues past failing columns and returns their
// combined errors.
func (g *Grid[T]) Balance() error {
	var err error
	rebuilt := 0
	for x, column := range g.nodes {
		for y, idx := range column {
			if idx == nil || idx.Dirty() == 0 {
				continue
			}
			if balanceErr := idx.Balance(); balanceErr != nil {
				err = multierr.Append(err, errors.Wrapf(balanceErr, "cell %v", Cell{x, y}))
				continue
			}
			rebuilt++
		}
	}
	if rebuilt > 0 {
		g.logger.Debugw("rebalanced grid", "cells", rebuilt, "objects", len(g.members))
	}
	return err
}

// Update advances the grid's clock by elapsed and rebuilds dirty columns once a rebalance period
// has accumulated. Queries rebuild stale columns on their own; Update moves that cost off the query
// path.
func (g *Grid[T]) Update(elapsed time.Duration) error {
	g.sinceRebalance += elapsed
	if g.sinceRebalance < g.opts.rebalancePeriod {
		return nil
	}
	g.sinceRebalance = 0
	return g.Balance()
}

// IntersectPoint hands cb every candidate object of the column containing pt.
func (g *Grid[T]) IntersectPoint(pt r3.Vector, cb dyntree.PointCallback[T]) error {
	idx, ok := g.Index(g.Cell(pt.X, pt.Y))
	if !ok {
		return nil
	}
	return idx.IntersectPoint(pt, cb)
}

// IntersectZAlignedRay queries the single column a vertical ray stays in.
func (g *Grid[T]) IntersectZAlignedRay(ray spatialmath.Ray, cb dyntree.RayCallback[T], maxDist *float64) (bool, error) {
	start := ray.Start()
	idx, ok := g.Index(g.Cell(start.X, start.Y))
	if !ok {
		return false, nil
	}
	return idx.IntersectRay(ray, cb, maxDist, false)
}

// IntersectRay walks the columns the ray's horizontal projection crosses from its start toward end,
// querying each column's index in order. The walk ends at end's column, when it leaves the grid,
// once the next column lies beyond *maxDist, or at the first hit when stopAtFirst is set.
func (g *Grid[T]) IntersectRay(
	ray spatialmath.Ray,
	cb dyntree.RayCallback[T],
	maxDist *float64,
	end r3.Vector,
	stopAtFirst bool,
) (bool, error) {
	start := ray.Start()
	cell := g.Cell(start.X, start.Y)
	if !g.Valid(cell) {
		return false, nil
	}
	last := g.Cell(end.X, end.Y)
	if cell == last || (math.IsInf(ray.InvDir(spatialmath.AxisX), 0) && math.IsInf(ray.InvDir(spatialmath.AxisY), 0)) {
		idx, ok := g.Index(cell)
		if !ok {
			return false, nil
		}
		return idx.IntersectRay(ray, cb, maxDist, stopAtFirst)
	}

	stepX, tMaxX, tDeltaX := g.dda(cell.X, start.X, ray.InvDir(spatialmath.AxisX))
	stepY, tMaxY, tDeltaY := g.dda(cell.Y, start.Y, ray.InvDir(spatialmath.AxisY))

	hit := false
	for {
		if idx, ok := g.Index(cell); ok {
			cellHit, err := idx.IntersectRay(ray, cb, maxDist, stopAtFirst)
			if err != nil {
				return hit, err
			}
			if cellHit {
				hit = true
				if stopAtFirst {
					return true, nil
				}
			}
		}
		if cell == last {
			return hit, nil
		}
		var entry float64
		if tMaxX < tMaxY {
			entry = tMaxX
			tMaxX += tDeltaX
			cell.X += stepX
		} else {
			entry = tMaxY
			tMaxY += tDeltaY
			cell.Y += stepY
		}
		if !g.Valid(cell) || entry > *maxDist {
			return hit, nil
		}
	}
}

// dda returns the step direction, the ray parameter at which the ray leaves column index i along
// one axis, and the parameter distance between successive column borders along that axis.
func (g *Grid[T]) dda(i int, origin, inv float64) (step int, tMax, tDelta float64) {
	if math.IsInf(inv, 0) {
		// the ray never crosses a border on this axis
		return 0, math.Inf(1), math.Inf(1)
	}
	if inv >= 0 {
		step = 1
		tMax = (g.border(i+1) - origin) * inv
	} else {
		step = -1
		tMax = (g.border(i) - origin) * inv
	}
	return step, tMax, g.cellSize * math.Abs(inv)
}
