package formats

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hschendel/stl"
)

// ParseSTL parses a binary or ASCII STL mesh. STL stores every triangle with
// its own corners, so identical corners are merged back into shared vertices.
func ParseSTL(data []byte) (*Mesh, error) {
	solid, err := stl.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMesh, err)
	}
	return meshFromSolid(solid), nil
}

// ParseSTLFile reads and parses an STL file from disk.
func ParseSTLFile(path string) (*Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("reading STL file: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidMesh, err)
	}
	return meshFromSolid(solid), nil
}

// WriteSTL writes m as binary STL. STL coordinates are single precision, so
// callers storing georeferenced meshes should translate them near the origin
// first.
func WriteSTL(w io.Writer, m *Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	header := make([]byte, 80)
	copy(header, "terracam tile")
	solid := &stl.Solid{Name: "terracam", BinaryHeader: header}
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		solid.AppendTriangle(stl.Triangle{
			Normal:   stlNormal(a, b, c),
			Vertices: [3]stl.Vec3{toSTLVec(a), toSTLVec(b), toSTLVec(c)},
		})
	}
	return solid.WriteAll(w)
}

func meshFromSolid(solid *stl.Solid) *Mesh {
	mesh := &Mesh{Faces: make([][3]uint32, 0, len(solid.Triangles))}
	index := make(map[stl.Vec3]uint32)
	for _, t := range solid.Triangles {
		var face [3]uint32
		for k, v := range t.Vertices {
			idx, ok := index[v]
			if !ok {
				idx = uint32(len(mesh.Vertices))
				index[v] = idx
				mesh.Vertices = append(mesh.Vertices, [3]float64{float64(v[0]), float64(v[1]), float64(v[2])})
			}
			face[k] = idx
		}
		mesh.Faces = append(mesh.Faces, face)
	}
	return mesh
}

func toSTLVec(v [3]float64) stl.Vec3 {
	return stl.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func stlNormal(a, b, c [3]float64) stl.Vec3 {
	u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float64{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	l := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
	if l == 0 {
		return stl.Vec3{}
	}
	l = 1 / math.Sqrt(l)
	return toSTLVec([3]float64{n[0] * l, n[1] * l, n[2] * l})
}
