// Package metrics exports index rebuild and query activity as prometheus metrics.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"go.viam.com/spatialindex/dyntree"
)

const namespace = "spatialindex"

// Collector counts rebuilds and queries of every index it observes.
type Collector struct {
	rebuilds       prometheus.Counter
	rayQueries     prometheus.Counter
	pointQueries   prometheus.Counter
	rebuildObjects prometheus.Histogram
	rebuildSeconds prometheus.Histogram
}

var _ dyntree.Observer = (*Collector)(nil)

// NewCollector creates a collector and registers its metrics with reg. A nil reg leaves the metrics
// unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "The total number of index rebuilds.",
		}),
		rayQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ray_queries_total",
			Help:      "The total number of ray queries answered by an index.",
		}),
		pointQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "point_queries_total",
			Help:      "The total number of point queries answered by an index.",
		}),
		rebuildObjects: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_objects",
			Help:      "The number of objects indexed per rebuild.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		rebuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "The time taken by each rebuild.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	if reg == nil {
		return c, nil
	}
	var err error
	for _, m := range c.collectors() {
		err = multierr.Append(err, reg.Register(m))
	}
	if err != nil {
		return nil, errors.Wrap(err, "registering index metrics")
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.rebuilds, c.rayQueries, c.pointQueries, c.rebuildObjects, c.rebuildSeconds}
}

// ObserveRebuild records one rebuild over the given number of objects.
func (c *Collector) ObserveRebuild(objects int, elapsed time.Duration) {
	c.rebuilds.Inc()
	c.rebuildObjects.Observe(float64(objects))
	c.rebuildSeconds.Observe(elapsed.Seconds())
}

// ObserveRayQuery records one ray query.
func (c *Collector) ObserveRayQuery() {
	c.rayQueries.Inc()
}

// ObservePointQuery records one point query.
func (c *Collector) ObservePointQuery() {
	c.pointQueries.Inc()
}
