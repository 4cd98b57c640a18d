// Package formats reads and writes the files exchanged by terracam: tile
// meshes (PLY, STL), the tile manifest and camera descriptions.
package formats

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
)

// Shared format errors.
var (
	ErrTruncated       = errors.New("truncated data")
	ErrUnsupported     = errors.New("unsupported format")
	ErrInvalidMesh     = errors.New("invalid mesh")
	ErrUnknownFormat   = errors.New("unknown mesh format")
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Mesh is an indexed triangle mesh. Faces index into Vertices and are wound
// counter-clockwise when seen from +Z.
type Mesh struct {
	Vertices [][3]float64
	Faces    [][3]uint32
}

// Bounds returns the axis aligned bounding box of all vertices.
// An empty mesh returns zero vectors.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if len(m.Vertices) == 0 {
		return min, max
	}
	min = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// Validate checks that every face references an existing vertex.
func (m *Mesh) Validate() error {
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			return fmt.Errorf("%w: face %d references vertex out of range", ErrInvalidMesh, i)
		}
	}
	return nil
}

// Translate returns a copy of the mesh with every vertex moved by d.
func (m *Mesh) Translate(d [3]float64) *Mesh {
	out := &Mesh{
		Vertices: make([][3]float64, len(m.Vertices)),
		Faces:    append([][3]uint32(nil), m.Faces...),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = [3]float64{v[0] + d[0], v[1] + d[1], v[2] + d[2]}
	}
	return out
}

// Format identifies a tile mesh file format.
type Format string

// Supported mesh formats.
const (
	FormatPLY Format = "ply"
	FormatSTL Format = "stl"
)

// ParseFormat maps a format name or file extension (with or without the dot)
// to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "ply":
		return FormatPLY, nil
	case "stl":
		return FormatSTL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ReadMeshFile reads a mesh, choosing the parser from the file extension.
func ReadMeshFile(path string) (*Mesh, error) {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatSTL:
		return ParseSTLFile(path)
	default:
		return ParsePLYFile(path)
	}
}

// WriteMesh writes m to w in format f.
func WriteMesh(w io.Writer, m *Mesh, f Format) error {
	switch f {
	case FormatPLY:
		return WritePLY(w, m)
	case FormatSTL:
		return WriteSTL(w, m)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}
