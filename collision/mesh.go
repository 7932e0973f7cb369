package collision

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/spatialindex/bih"
	"go.viam.com/spatialindex/spatialmath"
)

// Mesh is a static triangle mesh. Its triangles are indexed by their own bounding interval
// hierarchy, so a mesh placed in a world is a two level index.
type Mesh struct {
	name      string
	triangles []*spatialmath.Triangle
	tree      *bih.Tree
}

// NewMesh indexes the given triangles. At least one triangle is required.
func NewMesh(name string, triangles []*spatialmath.Triangle, opts ...bih.BuildOption) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, errors.Errorf("mesh %q has no triangles", name)
	}
	tree, err := bih.Build(len(triangles), func(i int) spatialmath.AABB {
		return triangles[i].Bounds()
	}, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "indexing mesh %q", name)
	}
	return &Mesh{name: name, triangles: triangles, tree: tree}, nil
}

// Name returns the mesh name.
func (m *Mesh) Name() string {
	return m.name
}

// Triangles returns the mesh triangles.
func (m *Mesh) Triangles() []*spatialmath.Triangle {
	return m.triangles
}

// Bounds returns the bounds of all triangles.
func (m *Mesh) Bounds() spatialmath.AABB {
	return m.tree.Bounds()
}

// Area returns the total surface area of the mesh triangles.
func (m *Mesh) Area() float64 {
	return lo.SumBy(m.triangles, func(t *spatialmath.Triangle) float64 { return t.Area() })
}

// IntersectRay finds the nearest triangle the ray hits within *maxDist, or any hit when stopAtFirst
// is set.
func (m *Mesh) IntersectRay(ray spatialmath.Ray, maxDist *float64, stopAtFirst bool) bool {
	return m.tree.IntersectRay(ray, func(r spatialmath.Ray, id uint32, maxDist *float64, _ bool) bool {
		d, ok := m.triangles[id].IntersectRay(r)
		if !ok || d > *maxDist {
			return false
		}
		*maxDist = d
		return true
	}, maxDist, stopAtFirst)
}

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh %q with %d triangles, area %.4f", m.name, len(m.triangles), m.Area())
}
