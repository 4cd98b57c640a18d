package renderer

import (
	"github.com/Faultbox/terracam/internal/engine/scene"
)

// Vertex is the interleaved GPU vertex layout.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// vertexSize is the byte stride of Vertex.
const vertexSize = 8 * 4

// interleave packs an object into vertex and index buffers. Objects without
// UVs get zero texture coordinates.
func interleave(o *scene.Object) ([]Vertex, []uint32) {
	verts := make([]Vertex, len(o.Mesh.Vertices))
	for i, p := range o.Mesh.Vertices {
		v := Vertex{
			Position: [3]float32{float32(p[0]), float32(p[1]), float32(p[2])},
			Normal:   [3]float32{0, 0, 1},
		}
		if i < len(o.Normals) {
			n := o.Normals[i]
			v.Normal = [3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
		}
		if i < len(o.UVs) {
			v.TexCoord = [2]float32{float32(o.UVs[i][0]), float32(o.UVs[i][1])}
		}
		verts[i] = v
	}

	indices := make([]uint32, 0, 3*len(o.Mesh.Faces))
	for _, f := range o.Mesh.Faces {
		indices = append(indices, f[0], f[1], f[2])
	}
	return verts, indices
}
