package geo

import (
	"fmt"
	"strconv"

	"github.com/airbusgeo/godal"
)

// WarpOptions controls WarpTile.
type WarpOptions struct {
	Bounds     [4]float64 // minx, miny, maxx, maxy in EPSG
	EPSG       int
	Resolution float64
	Resampling string // GDAL -r value, e.g. bilinear
	Format     string // GDAL driver, e.g. JPEG
}

// WarpTile cuts src to the given bounds, reprojecting into opts.EPSG, and
// writes the result to dst. The source SRS is taken from the file.
func WarpTile(src, dst string, opts WarpOptions) error {
	Init()
	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOpen, src, err)
	}
	defer ds.Close()

	out, err := godal.Warp(dst, []*godal.Dataset{ds}, warpSwitches(opts))
	if err != nil {
		return fmt.Errorf("warping %s: %w", dst, err)
	}
	return out.Close()
}

func warpSwitches(opts WarpOptions) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	resampling := opts.Resampling
	if resampling == "" {
		resampling = "bilinear"
	}
	format := opts.Format
	if format == "" {
		format = "JPEG"
	}
	return []string{
		"-of", format,
		"-t_srs", fmt.Sprintf("EPSG:%d", opts.EPSG),
		"-te", f(opts.Bounds[0]), f(opts.Bounds[1]), f(opts.Bounds[2]), f(opts.Bounds[3]),
		"-tr", f(opts.Resolution), f(opts.Resolution),
		"-r", resampling,
		"-overwrite",
	}
}
