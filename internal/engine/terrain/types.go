// Package terrain builds simplified, boundary consistent tile meshes from
// DTM rasters.
package terrain

import (
	"errors"
	"math"

	"github.com/Faultbox/terracam/pkg/formats"
)

// Build errors. All of them are returned before any tile is produced.
var (
	ErrInvalidTileSize = errors.New("tile size must be positive")
	ErrInvalidMaxError = errors.New("max error must be positive")
	ErrUnknownMethod   = errors.New("unknown simplification method")
	ErrInvalidExtent   = errors.New("invalid extent")
	ErrRasterTooSmall  = errors.New("raster must be at least 2x2 samples")
)

// Bounds holds an axis aligned bounding box.
type Bounds struct {
	Min [3]float64
	Max [3]float64
}

// EmptyBounds returns inverted bounds that any Extend call replaces.
func EmptyBounds() Bounds {
	return Bounds{
		Min: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// Extend grows b to include o.
func (b *Bounds) Extend(o Bounds) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], o.Min[i])
		b.Max[i] = math.Max(b.Max[i], o.Max[i])
	}
}

// Extent is a world space rectangle used to clip the input raster.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Tile is one simplified block of the grid.
type Tile struct {
	ID    string // <name>_<row>_<col>
	Index int    // row*cols + col
	Row   int
	Col   int

	// Inclusive sample window in the (cropped) raster.
	Col0, Col1 int
	Row0, Row1 int

	Mesh   *formats.Mesh // World coordinates
	Bounds Bounds
}

// Grid is the result of Build: the tiles in row-major order.
type Grid struct {
	Name  string
	EPSG  int
	Rows  int
	Cols  int
	Tiles []*Tile
}

// Tile returns the tile at (row, col) or nil when out of range.
func (g *Grid) Tile(row, col int) *Tile {
	if row < 0 || col < 0 || row >= g.Rows || col >= g.Cols {
		return nil
	}
	return g.Tiles[row*g.Cols+col]
}

// Bounds returns the union of all tile bounds.
func (g *Grid) Bounds() Bounds {
	b := EmptyBounds()
	for _, t := range g.Tiles {
		b.Extend(t.Bounds)
	}
	return b
}

// Manifest describes the grid for persistence.
func (g *Grid) Manifest() *formats.Manifest {
	b := g.Bounds()
	m := &formats.Manifest{
		EPSG:   g.EPSG,
		MinXYZ: b.Min,
		MaxXYZ: b.Max,
		Tiles:  make([]formats.TileEntry, 0, len(g.Tiles)),
	}
	for _, t := range g.Tiles {
		m.Tiles = append(m.Tiles, formats.TileEntry{
			TID:    t.ID,
			TIDInt: t.Index,
			MinXYZ: t.Bounds.Min,
			MaxXYZ: t.Bounds.Max,
		})
	}
	return m
}

// BuildOptions configures Build.
type BuildOptions struct {
	TileSize int     // Tile edge in samples
	MaxError float64 // Maximum vertical error of the simplified surface
	Method   Method
	Extent   *Extent // Optional clip window in world coordinates
	Workers  int     // Concurrent tiles; 0 means runtime.NumCPU()
}
