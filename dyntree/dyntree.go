// Package dyntree wraps a bounding interval hierarchy with cheap insert and remove operations.
//
// Mutations only record intent. The first query after one or more mutations rebuilds the whole
// tree from the live object set, so a burst of changes costs a single bulk build. An Index is not
// safe for concurrent use; callers serialize mutation against query.
package dyntree

import (
	"sort"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/spatialindex/bih"
	"go.viam.com/spatialindex/logging"
	"go.viam.com/spatialindex/spatialmath"
)

// RayCallback is invoked for every candidate object a ray reaches. It may shrink maxDist as closer
// hits are found and reports whether the object was hit.
type RayCallback[T any] func(ray spatialmath.Ray, obj T, maxDist *float64, stopAtFirst bool) bool

// PointCallback is invoked for every candidate object whose region contains the point. An object may
// be reported more than once for a single query.
type PointCallback[T any] func(pt r3.Vector, obj T)

// Observer is notified of rebuilds and queries.
type Observer interface {
	ObserveRebuild(objects int, elapsed time.Duration)
	ObserveRayQuery()
	ObservePointQuery()
}

type options struct {
	buildOpts []bih.BuildOption
	observer  Observer
	logger    logging.Logger
}

// Option configures an Index.
type Option func(*options)

// WithBuildOptions sets the options passed to every rebuild.
func WithBuildOptions(opts ...bih.BuildOption) Option {
	return func(o *options) {
		o.buildOpts = append(o.buildOpts, opts...)
	}
}

// WithObserver registers an observer for rebuilds and queries.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithLogger logs rebuilds at debug level.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Index is an incrementally maintained bounding interval hierarchy over objects of type T.
type Index[T comparable] struct {
	bounds func(T) spatialmath.AABB
	opts   options

	tree    *bih.Tree
	objects []T
	// live is parallel to objects; removed objects stay in the tree as tombstones until the next
	// rebuild.
	live  []bool
	slots map[T]int
	// pending maps objects inserted since the last rebuild to their insertion sequence.
	pending map[T]uint64
	seq     uint64

	dirty  int
	builds int
}

// New returns an empty index. bounds must return the same box for an object for as long as it is
// in the index.
func New[T comparable](bounds func(T) spatialmath.AABB, opts ...Option) *Index[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Index[T]{
		bounds:  bounds,
		opts:    o,
		tree:    bih.NewEmpty(),
		slots:   map[T]int{},
		pending: map[T]uint64{},
	}
}

// Insert schedules obj for inclusion at the next rebuild. Inserting an object already in the index
// does nothing.
func (idx *Index[T]) Insert(obj T) {
	if idx.Contains(obj) {
		return
	}
	idx.seq++
	idx.pending[obj] = idx.seq
	idx.dirty++
}

// Remove drops obj from the index. A built object is tombstoned and skipped by queries until the
// next rebuild drops it; an object still waiting to be built is simply forgotten.
func (idx *Index[T]) Remove(obj T) {
	if slot, ok := idx.slots[obj]; ok {
		idx.live[slot] = false
		delete(idx.slots, obj)
		idx.dirty++
		return
	}
	delete(idx.pending, obj)
}

// Contains reports whether obj is in the index, built or not.
func (idx *Index[T]) Contains(obj T) bool {
	if _, ok := idx.slots[obj]; ok {
		return true
	}
	_, ok := idx.pending[obj]
	return ok
}

// Size returns the number of objects in the index, built or not.
func (idx *Index[T]) Size() int {
	return len(idx.slots) + len(idx.pending)
}

// Empty reports whether the index holds no objects.
func (idx *Index[T]) Empty() bool {
	return idx.Size() == 0
}

// Dirty returns the number of mutations since the last rebuild.
func (idx *Index[T]) Dirty() int {
	return idx.dirty
}

// Builds returns how many times the tree has been rebuilt.
func (idx *Index[T]) Builds() int {
	return idx.builds
}

// Bounds returns the bounds of the most recently built tree.
func (idx *Index[T]) Bounds() spatialmath.AABB {
	return idx.tree.Bounds()
}

// Tree returns the most recently built tree without rebuilding.
func (idx *Index[T]) Tree() *bih.Tree {
	return idx.tree
}

// Balance rebuilds the tree from the live objects if anything changed since the last rebuild. If
// the build fails the index is left as it was and the error is returned.
func (idx *Index[T]) Balance() error {
	if idx.dirty == 0 {
		return nil
	}
	start := time.Now()

	objects := make([]T, 0, idx.Size())
	for slot, obj := range idx.objects {
		if idx.live[slot] {
			objects = append(objects, obj)
		}
	}
	// pending objects are built in insertion order so rebuilds are reproducible
	pending := lo.Keys(idx.pending)
	sort.Slice(pending, func(i, j int) bool {
		return idx.pending[pending[i]] < idx.pending[pending[j]]
	})
	objects = append(objects, pending...)

	tree, err := bih.Build(len(objects), func(i int) spatialmath.AABB {
		return idx.bounds(objects[i])
	}, idx.opts.buildOpts...)
	if err != nil {
		return errors.Wrapf(err, "rebuilding index of %d objects", len(objects))
	}

	idx.tree = tree
	idx.objects = objects
	idx.live = make([]bool, len(objects))
	idx.slots = make(map[T]int, len(objects))
	for slot, obj := range objects {
		idx.live[slot] = true
		idx.slots[obj] = slot
	}
	idx.pending = map[T]uint64{}
	idx.dirty = 0
	idx.builds++

	elapsed := time.Since(start)
	if idx.opts.observer != nil {
		idx.opts.observer.ObserveRebuild(len(objects), elapsed)
	}
	if idx.opts.logger != nil {
		idx.opts.logger.Debugw("rebuilt index", "objects", len(objects), "nodes", tree.NodeCount(), "elapsed", elapsed)
	}
	return nil
}

// IntersectRay rebuilds the tree if needed and then hands every candidate object the ray reaches
// within *maxDist to cb, nearest regions first. It returns whether cb reported any hit.
func (idx *Index[T]) IntersectRay(ray spatialmath.Ray, cb RayCallback[T], maxDist *float64, stopAtFirst bool) (bool, error) {
	if err := idx.Balance(); err != nil {
		return false, err
	}
	if idx.opts.observer != nil {
		idx.opts.observer.ObserveRayQuery()
	}
	return idx.tree.IntersectRay(ray, func(r spatialmath.Ray, id uint32, maxDist *float64, stopAtFirst bool) bool {
		obj, ok := idx.lookup(id)
		if !ok {
			return false
		}
		return cb(r, obj, maxDist, stopAtFirst)
	}, maxDist, stopAtFirst), nil
}

// IntersectPoint rebuilds the tree if needed and then hands every candidate object whose region
// contains pt to cb.
func (idx *Index[T]) IntersectPoint(pt r3.Vector, cb PointCallback[T]) error {
	if err := idx.Balance(); err != nil {
		return err
	}
	if idx.opts.observer != nil {
		idx.opts.observer.ObservePointQuery()
	}
	idx.tree.IntersectPoint(pt, func(p r3.Vector, id uint32) {
		if obj, ok := idx.lookup(id); ok {
			cb(p, obj)
		}
	})
	return nil
}

func (idx *Index[T]) lookup(id uint32) (T, bool) {
	var zero T
	if int(id) >= len(idx.objects) || !idx.live[id] {
		return zero, false
	}
	return idx.objects[id], true
}
