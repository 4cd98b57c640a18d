package picking

import (
	"runtime"
	"sync"

	"github.com/unixpickle/model3d/model3d"

	"github.com/Faultbox/terracam/pkg/formats"
	"github.com/Faultbox/terracam/pkg/math"
)

type faceRef struct {
	object int
	face   int
}

// Index is an immutable ray-casting structure over a set of triangle meshes.
// It is safe for concurrent use.
type Index struct {
	collider model3d.Collider
	faces    map[*model3d.Triangle]faceRef
	bounds   AABB
	empty    bool
	workers  int
}

// NewIndex builds an index over meshes. The position of a mesh in the slice
// is reported as Hit.Object. Degenerate faces are skipped.
func NewIndex(meshes []*formats.Mesh) *Index {
	idx := &Index{
		faces: make(map[*model3d.Triangle]faceRef),
		empty: true,
	}

	mesh := model3d.NewMesh()
	var lo, hi math.Vec3
	for oi, m := range meshes {
		if m == nil {
			continue
		}
		for fi, f := range m.Faces {
			tri := &model3d.Triangle{
				coord(m.Vertices[f[0]]),
				coord(m.Vertices[f[1]]),
				coord(m.Vertices[f[2]]),
			}
			if tri.Area() == 0 {
				continue
			}
			mesh.Add(tri)
			idx.faces[tri] = faceRef{object: oi, face: fi}

			for _, c := range tri {
				p := math.Vec3{X: c.X, Y: c.Y, Z: c.Z}
				if idx.empty {
					lo, hi = p, p
					idx.empty = false
					continue
				}
				lo = math.Vec3{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
				hi = math.Vec3{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
			}
		}
	}

	if !idx.empty {
		idx.collider = model3d.MeshToCollider(mesh)
		idx.bounds = NewAABB(lo, hi)
	}
	return idx
}

// Bounds returns the bounding box of all indexed faces.
func (idx *Index) Bounds() AABB {
	return idx.bounds
}

// Len returns the number of indexed faces.
func (idx *Index) Len() int {
	return len(idx.faces)
}

// SetWorkers limits CastRays to n goroutines. n <= 0 means one per CPU.
// It must not be called while rays are being cast.
func (idx *Index) SetWorkers(n int) {
	idx.workers = n
}

// Cast returns the nearest intersection of r with the indexed faces.
func (idx *Index) Cast(r Ray) Hit {
	if idx.empty {
		return Miss()
	}
	if _, ok := r.IntersectAABB(idx.bounds); !ok {
		return Miss()
	}

	coll, ok := idx.collider.FirstRayCollision(&model3d.Ray{
		Origin:    coord(r.Origin.Array()),
		Direction: coord(r.Direction.Array()),
	})
	if !ok {
		return Miss()
	}

	hit := Hit{
		T:      coll.Scale,
		Object: -1,
		Face:   -1,
		Normal: math.Vec3{X: coll.Normal.X, Y: coll.Normal.Y, Z: coll.Normal.Z},
	}
	if tc, ok := coll.Extra.(*model3d.TriangleCollision); ok {
		if ref, ok := idx.faces[tc.Triangle]; ok {
			hit.Object = ref.object
			hit.Face = ref.face
		}
		hit.Bary = tc.Barycentric
	}
	return hit
}

// CastRays casts every ray in parallel and returns the hits in input order.
func (idx *Index) CastRays(rays []Ray) []Hit {
	hits := make([]Hit, len(rays))
	parallel(len(rays), idx.workers, func(i int) {
		hits[i] = idx.Cast(rays[i])
	})
	return hits
}

// parallel runs fn for 0..n-1 in contiguous chunks on at most workers
// goroutines, or one per CPU when workers <= 0.
func parallel(n, workers int, fn func(i int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

func coord(a [3]float64) model3d.Coord3D {
	return model3d.XYZ(a[0], a[1], a[2])
}
