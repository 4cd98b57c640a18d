// Package config handles terracam configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all tool settings.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Ortho      OrthoConfig      `yaml:"ortho"`
	Render     RenderConfig     `yaml:"render"`
	Historical HistoricalConfig `yaml:"historical"`
	Export     ExportConfig     `yaml:"export"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// MeshConfig holds tiling and simplification settings.
type MeshConfig struct {
	TileSize int    `yaml:"tile_size"` // Tile edge in DTM pixels
	Method   string `yaml:"method"`    // Simplification method name
	Format   string `yaml:"format"`    // Tile mesh file format: ply or stl
	Workers  int    `yaml:"workers"`   // Concurrent tile simplifications (0 = NumCPU)
}

// OrthoConfig holds orthophoto tiling settings.
type OrthoConfig struct {
	Resolution float64 `yaml:"resolution"` // Ground sampling distance of the tiles
	Resampling string  `yaml:"resampling"` // GDAL resampling algorithm
	Format     string  `yaml:"format"`     // GDAL output driver
}

// RenderConfig holds render pipeline settings.
type RenderConfig struct {
	Backend    string   `yaml:"backend"`    // gl or cpu
	Background [3]uint8 `yaml:"background"` // Clear color
	XYZ        bool     `yaml:"xyz"`        // Depth output for synthetic cameras
	Workers    int      `yaml:"workers"`    // Ray casting goroutines (0 = NumCPU)
}

// HistoricalConfig holds settings for oriented historical cameras.
type HistoricalConfig struct {
	Padding  float64 `yaml:"padding"`   // Degrees added to the field of view
	HistDist float64 `yaml:"hist_dist"` // Distance of the image plane from the camera
	WithHist bool    `yaml:"with_hist"` // Render again with the image plane
	Width    int     `yaml:"width"`     // Output width override (0 = image width)
	Height   int     `yaml:"height"`    // Output height override (0 = image height)
	XYZ      bool    `yaml:"xyz"`       // Depth output for historical cameras
}

// ExportConfig holds web export settings.
type ExportConfig struct {
	Canvas int `yaml:"canvas"` // Longest side of the padded preview image
	Thumb  int `yaml:"thumb"`  // Edge of the square thumbnail
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Mesh: MeshConfig{
			TileSize: 1000,
			Method:   "delatin",
			Format:   "ply",
		},
		Ortho: OrthoConfig{
			Resolution: 1,
			Resampling: "bilinear",
			Format:     "JPEG",
		},
		Render: RenderConfig{
			Backend:    "gl",
			Background: [3]uint8{255, 255, 255},
			XYZ:        true,
		},
		Historical: HistoricalConfig{
			Padding:  5,
			HistDist: 10,
			WithHist: true,
		},
		Export: ExportConfig{
			Canvas: 500,
			Thumb:  50,
		},
	}
}

// Validate checks values that the core packages do not check themselves.
func (c *Config) Validate() error {
	var errs []error
	switch c.Render.Backend {
	case "gl", "cpu":
	default:
		errs = append(errs, fmt.Errorf("render.backend: unknown backend %q", c.Render.Backend))
	}
	switch c.Mesh.Format {
	case "ply", "stl":
	default:
		errs = append(errs, fmt.Errorf("mesh.format: unknown format %q", c.Mesh.Format))
	}
	if c.Mesh.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("mesh.tile_size: must be positive, got %d", c.Mesh.TileSize))
	}
	if c.Ortho.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("ortho.resolution: must be positive, got %v", c.Ortho.Resolution))
	}
	if c.Historical.Width < 0 || c.Historical.Height < 0 {
		errs = append(errs, errors.New("historical: width and height must not be negative"))
	}
	if c.Export.Canvas <= 0 || c.Export.Thumb <= 0 {
		errs = append(errs, errors.New("export: canvas and thumb must be positive"))
	}
	return errors.Join(errs...)
}
