// Package config reads the JSON settings that shape tree builds and grid layout.
package config

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"

	"go.viam.com/spatialindex/bih"
	"go.viam.com/spatialindex/dyntree"
	"go.viam.com/spatialindex/grid"
	"go.viam.com/spatialindex/logging"
)

// Config is the full set of index settings.
type Config struct {
	Tree     TreeConfig    `json:"tree"`
	Grid     GridConfig    `json:"grid"`
	LogLevel logging.Level `json:"log_level"`
}

// TreeConfig controls how a bounding interval hierarchy is built. Zero fields take the defaults.
type TreeConfig struct {
	LeafSize        int     `json:"leaf_size,omitempty"`
	MaxDepth        int     `json:"max_depth,omitempty"`
	EmptySpaceRatio float64 `json:"empty_space_ratio,omitempty"`
}

// GridConfig controls the layout of a column grid. Zero fields take the defaults.
type GridConfig struct {
	Cells  int     `json:"cells,omitempty"`
	Extent float64 `json:"extent,omitempty"`
	// RebalancePeriod is a duration string such as "200ms".
	RebalancePeriod string `json:"rebalance_period,omitempty"`
}

// Default returns a config with every field set to its default.
func Default() *Config {
	return &Config{
		Tree: TreeConfig{
			LeafSize:        bih.DefaultLeafSize,
			MaxDepth:        bih.MaxDepth,
			EmptySpaceRatio: bih.DefaultEmptySpaceRatio,
		},
		Grid: GridConfig{
			Cells:           grid.DefaultCells,
			Extent:          grid.DefaultExtent,
			RebalancePeriod: grid.DefaultRebalancePeriod.String(),
		},
		LogLevel: logging.INFO,
	}
}

// Read reads and validates the config at path.
func Read(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	cfg, err := fromReader(f, path)
	return cfg, multierr.Combine(err, f.Close())
}

// FromReader reads and validates a config from r.
func FromReader(r io.Reader) (*Config, error) {
	return fromReader(r, "")
}

func fromReader(r io.Reader, path string) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	cfg.fillDefaults()
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Tree.LeafSize == 0 {
		c.Tree.LeafSize = def.Tree.LeafSize
	}
	if c.Tree.MaxDepth == 0 {
		c.Tree.MaxDepth = def.Tree.MaxDepth
	}
	if c.Tree.EmptySpaceRatio == 0 {
		c.Tree.EmptySpaceRatio = def.Tree.EmptySpaceRatio
	}
	if c.Grid.Cells == 0 {
		c.Grid.Cells = def.Grid.Cells
	}
	if c.Grid.Extent == 0 {
		c.Grid.Extent = def.Grid.Extent
	}
	if c.Grid.RebalancePeriod == "" {
		c.Grid.RebalancePeriod = def.Grid.RebalancePeriod
	}
}

// Validate reports every invalid field. path names the config in error messages.
func (c *Config) Validate(path string) error {
	prefix := "config"
	if path != "" {
		prefix = path
	}
	return multierr.Combine(
		errors.Wrapf(c.Tree.Validate(), "%s: tree", prefix),
		errors.Wrapf(c.Grid.Validate(), "%s: grid", prefix),
	)
}

// Validate reports every invalid tree setting.
func (c TreeConfig) Validate() error {
	var err error
	if c.LeafSize < 1 {
		err = multierr.Append(err, errors.Errorf("leaf_size must be positive, got %d", c.LeafSize))
	}
	if c.MaxDepth < 1 || c.MaxDepth > bih.MaxDepth {
		err = multierr.Append(err, errors.Errorf("max_depth must be within [1, %d], got %d", bih.MaxDepth, c.MaxDepth))
	}
	if math.IsNaN(c.EmptySpaceRatio) || c.EmptySpaceRatio < 1 {
		err = multierr.Append(err, errors.Errorf("empty_space_ratio must be at least 1, got %v", c.EmptySpaceRatio))
	}
	return err
}

// Validate reports every invalid grid setting.
func (c GridConfig) Validate() error {
	var err error
	if c.Cells < 1 {
		err = multierr.Append(err, errors.Errorf("cells must be positive, got %d", c.Cells))
	}
	if !(c.Extent > 0) || math.IsInf(c.Extent, 0) {
		err = multierr.Append(err, errors.Errorf("extent must be positive and finite, got %v", c.Extent))
	}
	if _, perr := c.rebalancePeriod(); perr != nil {
		err = multierr.Append(err, perr)
	}
	return err
}

func (c GridConfig) rebalancePeriod() (time.Duration, error) {
	d, err := time.ParseDuration(c.RebalancePeriod)
	if err != nil {
		return 0, errors.Wrap(err, "rebalance_period")
	}
	if d < 0 {
		return 0, errors.Errorf("rebalance_period must not be negative, got %v", d)
	}
	return d, nil
}

// BuildOptions converts the tree settings into build options.
func (c TreeConfig) BuildOptions(logger logging.Logger) []bih.BuildOption {
	opts := []bih.BuildOption{
		bih.WithLeafSize(c.LeafSize),
		bih.WithMaxDepth(c.MaxDepth),
		bih.WithEmptySpaceRatio(c.EmptySpaceRatio),
	}
	if logger != nil {
		opts = append(opts, bih.WithLogger(logger))
	}
	return opts
}

// GridOptions converts the config into grid options. The tree settings apply to every column's
// index.
func (c *Config) GridOptions(logger logging.Logger) ([]grid.Option, error) {
	period, err := c.Grid.rebalancePeriod()
	if err != nil {
		return nil, err
	}
	opts := []grid.Option{
		grid.WithCells(c.Grid.Cells),
		grid.WithExtent(c.Grid.Extent),
		grid.WithRebalancePeriod(period),
		grid.WithIndexOptions(dyntree.WithBuildOptions(c.Tree.BuildOptions(nil)...)),
	}
	if logger != nil {
		opts = append(opts, grid.WithLogger(logger))
	}
	return opts, nil
}
