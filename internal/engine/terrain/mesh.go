package terrain

import (
	"math"

	"github.com/Faultbox/terracam/pkg/formats"
)

// toWorld converts a block-local triangulation of tile t into a world space
// mesh. Faces are rewound where needed so they are counter-clockwise seen
// from +Z.
func toWorld(hm *Heightmap, t *Tile, tri Triangulation) (*formats.Mesh, Bounds) {
	pts := tri.Points()
	mesh := &formats.Mesh{
		Vertices: make([][3]float64, len(pts)),
		Faces:    tri.Faces(),
	}

	bounds := EmptyBounds()
	for i, p := range pts {
		col, row := t.Col0+p[0], t.Row0+p[1]
		x, y := hm.World(float64(col), float64(row))
		v := [3]float64{x, y, hm.At(col, row)}
		mesh.Vertices[i] = v
		bounds.Extend(Bounds{Min: v, Max: v})
	}

	for i, f := range mesh.Faces {
		a, b, c := mesh.Vertices[f[0]], mesh.Vertices[f[1]], mesh.Vertices[f[2]]
		if signedArea(a, b, c) < 0 {
			mesh.Faces[i] = [3]uint32{f[0], f[2], f[1]}
		}
	}

	return mesh, bounds
}

func signedArea(a, b, c [3]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1])
}

// VertexNormals returns area weighted, normalized vertex normals. Vertices
// without faces get +Z.
func VertexNormals(m *formats.Mesh) [][3]float64 {
	normals := make([][3]float64, len(m.Vertices))
	for _, f := range m.Faces {
		n := cross(
			sub(m.Vertices[f[1]], m.Vertices[f[0]]),
			sub(m.Vertices[f[2]], m.Vertices[f[0]]),
		)
		for _, idx := range f {
			normals[idx][0] += n[0]
			normals[idx][1] += n[1]
			normals[idx][2] += n[2]
		}
	}
	for i, n := range normals {
		normals[i] = normalize(n)
	}
	return normals
}

// UVs maps each vertex to its relative position in b's XY extent. A
// degenerate axis yields 0.
func UVs(m *formats.Mesh, b Bounds) [][2]float64 {
	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	uvs := make([][2]float64, len(m.Vertices))
	for i, v := range m.Vertices {
		if dx > 0 {
			uvs[i][0] = (v[0] - b.Min[0]) / dx
		}
		if dy > 0 {
			uvs[i][1] = (v[1] - b.Min[1]) / dy
		}
	}
	return uvs
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v [3]float64) [3]float64 {
	l := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return [3]float64{0, 0, 1}
	}
	return [3]float64{v[0] / l, v[1] / l, v[2] / l}
}
