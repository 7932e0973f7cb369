package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/spatialindex/bih"
	"go.viam.com/spatialindex/collision"
	"go.viam.com/spatialindex/config"
	"go.viam.com/spatialindex/grid"
	"go.viam.com/spatialindex/logging"
	"go.viam.com/spatialindex/metrics"
	"go.viam.com/spatialindex/spatialmath"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// session is the settings and logger shared by every command.
type session struct {
	cfg    *config.Config
	logger logging.Logger
}

func newSession(c *cli.Context) (*session, error) {
	cfg := config.Default()
	path := c.String(configFlag)
	if path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}
	var logger logging.Logger
	switch {
	case c.Bool(debugFlag):
		logger = logging.NewDebugLogger("spatialindex")
	case path != "":
		logger = logging.NewLogger("spatialindex")
		logger.SetLevel(cfg.LogLevel)
	default:
		logger = logging.NewBlankLogger("spatialindex")
	}
	logging.ReplaceGlobal(logger)
	return &session{cfg: cfg, logger: logger}, nil
}

// loadIndexed reads a tree and the box file it was built from.
func loadIndexed(c *cli.Context, s *session) (*bih.Tree, []*collision.Box, error) {
	tree, err := bih.ReadFromFile(c.String(treeFlag))
	if err != nil {
		return nil, nil, err
	}
	boxes, err := readBoxes(c.String(boxesFlag))
	if err != nil {
		return nil, nil, err
	}
	if tree.PrimCount() != len(boxes) {
		return nil, nil, errors.Errorf("tree indexes %d primitives but the box file has %d", tree.PrimCount(), len(boxes))
	}
	stats := tree.Stats()
	s.logger.Debugw("loaded tree", "path", c.String(treeFlag), "primitives", stats.Primitives,
		"nodes", stats.Nodes, "maxLeafSize", stats.MaxLeafSize)
	if stats.MaxLeafSize > s.cfg.Tree.LeafSize {
		s.logger.Warnw("tree has leaves larger than the configured leaf size",
			"maxLeafSize", stats.MaxLeafSize, "configured", s.cfg.Tree.LeafSize)
	}
	return tree, boxes, nil
}

// BuildAction builds a tree over a box file and writes it out.
func BuildAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	boxes, err := readBoxes(c.String(boxesFlag))
	if err != nil {
		return err
	}
	tree, err := bih.BuildFromBoxes(boxBounds(boxes), s.cfg.Tree.BuildOptions(s.logger.Sublogger("bih"))...)
	if err != nil {
		return err
	}
	out := c.String(outFlag)
	if err := tree.WriteToFile(out); err != nil {
		return err
	}
	s.logger.Infow("wrote tree", "path", out, "primitives", tree.PrimCount(), "nodes", tree.NodeCount())
	printf(c.App.Writer, "wrote %s", out)
	printf(c.App.Writer, "%s", tree.Stats())
	return nil
}

// InfoAction prints the bounds and shape of a tree file.
func InfoAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("info requires a tree file argument")
	}
	tree, err := bih.ReadFromFile(path)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "bounds: %v", tree.Bounds())
	printf(c.App.Writer, "%s", tree.Stats())
	return nil
}

// RaycastAction reports the nearest box hit by a segment, or any hit with --first.
func RaycastAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	tree, boxes, err := loadIndexed(c, s)
	if err != nil {
		return err
	}
	from, err := parseVector(fromFlag, c.Float64Slice(fromFlag))
	if err != nil {
		return err
	}
	to, err := parseVector(toFlag, c.Float64Slice(toFlag))
	if err != nil {
		return err
	}

	ray, dist := spatialmath.NewRayFromTo(from, to)
	var hitBox *collision.Box
	tree.IntersectRay(ray, func(r spatialmath.Ray, id uint32, maxDist *float64, stopAtFirst bool) bool {
		if !boxes[id].IntersectRay(r, maxDist, stopAtFirst) {
			return false
		}
		hitBox = boxes[id]
		return true
	}, &dist, c.Bool(firstFlag))
	s.logger.Debugw("raycast", "from", from, "to", to, "first", c.Bool(firstFlag), "hit", hitBox != nil)

	if hitBox == nil {
		printf(c.App.Writer, "no hit")
		return nil
	}
	printf(c.App.Writer, "hit %q at distance %.4f, position %v", hitBox.Name, dist, ray.PointAt(dist))
	return nil
}

// PointAction lists the boxes containing a point.
func PointAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	tree, boxes, err := loadIndexed(c, s)
	if err != nil {
		return err
	}
	at, err := parseVector(atFlag, c.Float64Slice(atFlag))
	if err != nil {
		return err
	}

	var hits []uint32
	tree.IntersectPoint(at, func(p r3.Vector, id uint32) {
		if boxes[id].AABB.Contains(p) {
			hits = append(hits, id)
		}
	})
	hits = lo.Uniq(hits)
	sort.Slice(hits, func(i, j int) bool { return hits[i] < hits[j] })
	s.logger.Debugw("point query", "at", at, "containing", len(hits))
	if len(hits) == 0 {
		printf(c.App.Writer, "no boxes contain %v", at)
		return nil
	}
	for _, id := range hits {
		printf(c.App.Writer, "%s", boxes[id].Name)
	}
	return nil
}

// OverlapAction lists every pair of boxes that touch or overlap, or with --name the boxes touching
// that one box.
func OverlapAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	boxes, err := readBoxes(c.String(boxesFlag))
	if err != nil {
		return err
	}

	if name := c.String(nameFlag); name != "" {
		target, ok := lo.Find(boxes, func(b *collision.Box) bool { return b.Name == name })
		if !ok {
			return errors.Errorf("no box named %q in %s", name, c.String(boxesFlag))
		}
		hits := collision.Overlapping(target, boxes)
		s.logger.Debugw("overlap query", "box", name, "overlapping", len(hits))
		if len(hits) == 0 {
			printf(c.App.Writer, "nothing overlaps %q", name)
			return nil
		}
		for _, b := range hits {
			printf(c.App.Writer, "%s", b.Name)
		}
		return nil
	}

	pairs := 0
	for i, a := range boxes {
		for _, b := range collision.Overlapping(a, boxes[i+1:]) {
			printf(c.App.Writer, "%s %s", a.Name, b.Name)
			pairs++
		}
	}
	s.logger.Debugw("overlap scan", "boxes", len(boxes), "pairs", pairs)
	if pairs == 0 {
		printf(c.App.Writer, "no overlapping boxes")
	}
	return nil
}

// loadWorld grids every box of the box file using the session's grid settings.
func loadWorld(c *cli.Context, s *session) (*collision.World[*collision.Box], *prometheus.Registry, error) {
	boxes, err := readBoxes(c.String(boxesFlag))
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, nil, err
	}
	opts, err := s.cfg.GridOptions(s.logger.Sublogger("grid"))
	if err != nil {
		return nil, nil, err
	}
	world, err := collision.NewWorld[*collision.Box](append(opts, grid.WithObserver(collector))...)
	if err != nil {
		return nil, nil, err
	}
	for _, b := range boxes {
		if err := world.Insert(b); err != nil {
			return nil, nil, errors.Wrapf(err, "placing box %q", b.Name)
		}
	}
	if err := world.Balance(); err != nil {
		return nil, nil, err
	}
	return world, reg, nil
}

// logMetrics logs the index activity gathered during a command at debug level.
func logMetrics(logger logging.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warnw("cannot gather index metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				logger.Debugw("index metric", "name", mf.GetName(), "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				logger.Debugw("index metric", "name", mf.GetName(),
					"count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
		}
	}
}

// SightAction reports whether two points can see each other and where the segment is blocked.
func SightAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	world, reg, err := loadWorld(c, s)
	if err != nil {
		return err
	}
	defer logMetrics(s.logger, reg)
	from, err := parseVector(fromFlag, c.Float64Slice(fromFlag))
	if err != nil {
		return err
	}
	to, err := parseVector(toFlag, c.Float64Slice(toFlag))
	if err != nil {
		return err
	}

	visible, err := world.InLineOfSight(from, to)
	if err != nil {
		return err
	}
	if visible {
		printf(c.App.Writer, "visible")
		return nil
	}
	pos, _, err := world.ObjectHitPos(from, to, -c.Float64(backFlag))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "blocked at %v", pos)
	return nil
}

// HeightAction reports the height of the first surface below a point.
func HeightAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	world, reg, err := loadWorld(c, s)
	if err != nil {
		return err
	}
	defer logMetrics(s.logger, reg)
	at, err := parseVector(atFlag, c.Float64Slice(atFlag))
	if err != nil {
		return err
	}
	h, ok, err := world.Height(at.X, at.Y, at.Z, c.Float64(maxDistFlag))
	if err != nil {
		return err
	}
	if !ok {
		printf(c.App.Writer, "no surface within %v below %v", c.Float64(maxDistFlag), at)
		return nil
	}
	printf(c.App.Writer, "height %.4f", h)
	return nil
}
