package terrain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Faultbox/terracam/pkg/formats"
)

// ErrSeam reports neighbouring tiles whose shared edge vertices differ.
var ErrSeam = errors.New("tile seam mismatch")

// CheckSeams verifies that every pair of adjacent tiles carries the same
// vertices on their shared edge, within tol. It assumes a north-up grid, so
// the shared edge of (r,c) and (r,c+1) is the left tile's max x and the
// shared edge of (r,c) and (r+1,c) is the upper tile's min y.
func CheckSeams(g *Grid, tol float64) error {
	var errs []error
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			t := g.Tile(r, c)
			if right := g.Tile(r, c+1); right != nil {
				a := edgeVertices(t.Mesh, 0, t.Bounds.Max[0], tol)
				b := edgeVertices(right.Mesh, 0, right.Bounds.Min[0], tol)
				if !sameVertices(a, b, tol) {
					errs = append(errs, fmt.Errorf("%w: %s|%s: %d vs %d vertices", ErrSeam, t.ID, right.ID, len(a), len(b)))
				}
			}
			if below := g.Tile(r+1, c); below != nil {
				a := edgeVertices(t.Mesh, 1, t.Bounds.Min[1], tol)
				b := edgeVertices(below.Mesh, 1, below.Bounds.Max[1], tol)
				if !sameVertices(a, b, tol) {
					errs = append(errs, fmt.Errorf("%w: %s/%s: %d vs %d vertices", ErrSeam, t.ID, below.ID, len(a), len(b)))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func edgeVertices(m *formats.Mesh, axis int, value, tol float64) [][3]float64 {
	var out [][3]float64
	for _, v := range m.Vertices {
		if math.Abs(v[axis]-value) <= tol {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func sameVertices(a, b [][3]float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		for k := 0; k < 3; k++ {
			if math.Abs(a[i][k]-b[i][k]) > tol {
				return false
			}
		}
	}
	return true
}
