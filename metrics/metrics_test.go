package metrics

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"

	"go.viam.com/spatialindex/dyntree"
	"go.viam.com/spatialindex/spatialmath"
	"go.viam.com/spatialindex/testutils"
)

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	test.That(t, err, test.ShouldBeNil)

	c.ObserveRebuild(10, 3*time.Millisecond)
	c.ObserveRayQuery()
	c.ObserveRayQuery()
	c.ObservePointQuery()

	test.That(t, testutil.ToFloat64(c.rebuilds), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(c.rayQueries), test.ShouldEqual, 2)
	test.That(t, testutil.ToFloat64(c.pointQueries), test.ShouldEqual, 1)

	expected := `
# HELP spatialindex_ray_queries_total The total number of ray queries answered by an index.
# TYPE spatialindex_ray_queries_total counter
spatialindex_ray_queries_total 2
`
	test.That(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "spatialindex_ray_queries_total"),
		test.ShouldBeNil)
	count, err := testutil.GatherAndCount(reg, "spatialindex_rebuild_objects", "spatialindex_rebuild_duration_seconds")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 2)

	_, err = NewCollector(reg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "registering index metrics")
}

func TestCollectorUnregistered(t *testing.T) {
	c, err := NewCollector(nil)
	test.That(t, err, test.ShouldBeNil)
	c.ObservePointQuery()
	test.That(t, testutil.ToFloat64(c.pointQueries), test.ShouldEqual, 1)
}

func TestCollectorObservesIndex(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	test.That(t, err, test.ShouldBeNil)

	boxes := testutils.RandomBoxes(rand.New(rand.NewSource(3)), 20, spatialmath.NewAABB(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10}))
	idx := dyntree.New(func(b *spatialmath.AABB) spatialmath.AABB { return *b }, dyntree.WithObserver(c))
	for i := range boxes {
		idx.Insert(&boxes[i])
	}
	test.That(t, idx.Balance(), test.ShouldBeNil)

	dist := 100.0
	_, err = idx.IntersectRay(spatialmath.NewRay(r3.Vector{X: -1, Y: 5, Z: 5}, r3.Vector{X: 1}),
		func(spatialmath.Ray, *spatialmath.AABB, *float64, bool) bool { return false }, &dist, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx.IntersectPoint(r3.Vector{X: 5, Y: 5, Z: 5}, func(r3.Vector, *spatialmath.AABB) {}), test.ShouldBeNil)

	test.That(t, testutil.ToFloat64(c.rebuilds), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(c.rayQueries), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(c.pointQueries), test.ShouldEqual, 1)
}
