package cli

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"

	"go.viam.com/spatialindex/collision"
	"go.viam.com/spatialindex/spatialmath"
)

// boxRecord is one entry of a box file.
type boxRecord struct {
	Name string     `json:"name"`
	Min  [3]float64 `json:"min"`
	Max  [3]float64 `json:"max"`
}

func readBoxes(path string) ([]*collision.Box, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read box file %q", path)
	}
	var records []boxRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "cannot parse box file %q", path)
	}
	boxes := make([]*collision.Box, 0, len(records))
	var verr error
	for i, rec := range records {
		box := collision.NewBox(rec.Name, spatialmath.AABB{
			Low:  r3.Vector{X: rec.Min[0], Y: rec.Min[1], Z: rec.Min[2]},
			High: r3.Vector{X: rec.Max[0], Y: rec.Max[1], Z: rec.Max[2]},
		})
		if err := box.AABB.Validate(); err != nil {
			verr = multierr.Append(verr, errors.Wrapf(err, "box %d (%q)", i, rec.Name))
		}
		boxes = append(boxes, box)
	}
	if verr != nil {
		return nil, errors.Wrapf(verr, "invalid box file %q", path)
	}
	return boxes, nil
}

func writeBoxes(path string, boxes []*collision.Box) error {
	records := make([]boxRecord, 0, len(boxes))
	for _, b := range boxes {
		records = append(records, boxRecord{
			Name: b.Name,
			Min:  [3]float64{b.AABB.Low.X, b.AABB.Low.Y, b.AABB.Low.Z},
			Max:  [3]float64{b.AABB.High.X, b.AABB.High.Y, b.AABB.High.Z},
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func boxBounds(boxes []*collision.Box) []spatialmath.AABB {
	out := make([]spatialmath.AABB, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, b.AABB)
	}
	return out
}

func parseVector(flag string, vals []float64) (r3.Vector, error) {
	if len(vals) != 3 {
		return r3.Vector{}, errors.Errorf("--%s needs three comma separated values, got %d", flag, len(vals))
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
