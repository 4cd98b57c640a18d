package config

import "github.com/spf13/pflag"

var (
	flagConfig  string
	flagDebug   bool
	flagLogFile string
	flagBackend string

	flagTileSize int
	flagMethod   string
	flagFormat   string

	flagOrthoRes float64

	flagXYZ      bool
	flagPadding  float64
	flagHistDist float64
	flagWithHist bool
	flagWidth    int
	flagHeight   int
)

// RegisterGlobalFlags binds the flags shared by every command.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagConfig, "config", "", "Path to config file")
	fs.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	fs.StringVar(&flagLogFile, "log-file", "", "Write logs to this file as well")
	fs.StringVar(&flagBackend, "backend", "", "Render backend: gl or cpu")
}

// RegisterMeshFlags binds the create-mesh options.
func RegisterMeshFlags(fs *pflag.FlagSet) {
	d := Default().Mesh
	fs.IntVar(&flagTileSize, "tile-size", d.TileSize, "Size of each tile in pixels")
	fs.StringVar(&flagMethod, "method", d.Method, "Mesh simplification method (delatin)")
	fs.StringVar(&flagFormat, "format", d.Format, "Tile mesh format: ply or stl")
}

// RegisterOrthoFlags binds the add-ortho options.
func RegisterOrthoFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&flagOrthoRes, "op-res", Default().Ortho.Resolution, "Output resolution of the orthophoto tiles")
}

// RegisterDepthFlag binds --xyz with a command specific default.
func RegisterDepthFlag(fs *pflag.FlagSet, def bool) {
	fs.BoolVar(&flagXYZ, "xyz", def, "Also write an image with the xyz coordinates of the scene")
}

// RegisterHistoricalFlags binds the render-gpkg options.
func RegisterHistoricalFlags(fs *pflag.FlagSet) {
	d := Default().Historical
	fs.Float64Var(&flagPadding, "padding", d.Padding, "Padding in degrees around the historical image extent")
	fs.Float64Var(&flagHistDist, "hist-dist", d.HistDist, "Distance of the historical image from the camera")
	fs.BoolVar(&flagWithHist, "w-hist", d.WithHist, "Create an additional rendering with the historical image")
	fs.IntVar(&flagWidth, "width", 0, "Width in px of the output rendering (default: image width)")
	fs.IntVar(&flagHeight, "height", 0, "Height in px of the output rendering (default: image height)")
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return flagConfig
}

// applyFlags applies CLI flag overrides to the config. Only flags the user
// actually set override file values.
func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	changed := func(name string) bool {
		return fs.Lookup(name) != nil && fs.Changed(name)
	}

	if flagDebug {
		cfg.Logging.Level = "debug"
	}
	if changed("log-file") {
		cfg.Logging.LogFile = flagLogFile
	}
	if changed("backend") {
		cfg.Render.Backend = flagBackend
	}
	if changed("tile-size") {
		cfg.Mesh.TileSize = flagTileSize
	}
	if changed("method") {
		cfg.Mesh.Method = flagMethod
	}
	if changed("format") {
		cfg.Mesh.Format = flagFormat
	}
	if changed("op-res") {
		cfg.Ortho.Resolution = flagOrthoRes
	}
	if changed("xyz") {
		cfg.Render.XYZ = flagXYZ
		cfg.Historical.XYZ = flagXYZ
	}
	if changed("padding") {
		cfg.Historical.Padding = flagPadding
	}
	if changed("hist-dist") {
		cfg.Historical.HistDist = flagHistDist
	}
	if changed("w-hist") {
		cfg.Historical.WithHist = flagWithHist
	}
	if changed("width") {
		cfg.Historical.Width = flagWidth
	}
	if changed("height") {
		cfg.Historical.Height = flagHeight
	}
}
