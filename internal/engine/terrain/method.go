package terrain

import (
	"fmt"
	"strings"
)

// Method is a mesh simplification algorithm. The set of methods is closed;
// use ParseMethod to select one by name.
type Method interface {
	// Name is the identifier accepted by ParseMethod.
	Name() string

	// Simplify triangulates a w x h block of row-major heights until no
	// sample deviates more than maxError from the surface. Coordinates of
	// the result are in block-local sample space.
	Simplify(heights []float64, w, h int, maxError float64) Triangulation

	sealed()
}

// Triangulation is the editable result of Method.Simplify.
type Triangulation interface {
	// Points returns vertex positions as (col, row) samples.
	Points() [][2]int

	// Faces returns the triangles as indices into Points.
	Faces() [][3]uint32

	// InsertBoundary adds a vertex on the outer hull at (x, y) and keeps the
	// triangulation Delaunay. Existing vertices are left untouched.
	InsertBoundary(x, y int) error

	// HasPoint reports whether (x, y) is already a vertex.
	HasPoint(x, y int) bool
}

// Delatin refines a Delaunay triangulation by greedy insertion of the worst
// sample.
type Delatin struct{}

// Name implements Method.
func (Delatin) Name() string { return "delatin" }

// Simplify implements Method.
func (Delatin) Simplify(heights []float64, w, h int, maxError float64) Triangulation {
	d := newDelatin(heights, w, h)
	d.run(maxError)
	return d
}

func (Delatin) sealed() {}

// ParseMethod returns the Method registered under name.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "delatin":
		return Delatin{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}
