// Package ortho cuts an orthophoto into one image per terrain tile.
package ortho

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/internal/tilestore"
)

// ErrInvalidResolution is returned for a non-positive output resolution.
var ErrInvalidResolution = errors.New("orthophoto resolution must be positive")

// Options configures Bind.
type Options struct {
	Resolution float64 // Ground sampling distance in manifest units
	Resampling string  // GDAL resampling algorithm
	Format     string  // GDAL driver name
}

// Warper cuts src to opts and writes dst.
type Warper func(src, dst string, opts geo.WarpOptions) error

// Bind warps src into <store>/op/<tid>.<ext> for every tile of store and
// returns the number of written images. Every image is written under a
// temporary name first, so an interrupted run never leaves a partial tile
// image that the terrain loader would pick up.
func Bind(ctx context.Context, src string, store *tilestore.Store, opts Options) (int, error) {
	return bind(ctx, geo.WarpTile, src, store, opts)
}

func bind(ctx context.Context, warp Warper, src string, store *tilestore.Store, opts Options) (int, error) {
	if !(opts.Resolution > 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResolution, opts.Resolution)
	}
	if err := os.MkdirAll(store.OrthoDir, 0755); err != nil {
		return 0, fmt.Errorf("creating orthophoto directory: %w", err)
	}

	log := logger.Named("ortho")
	ext := Ext(opts.Format)
	start := time.Now()
	log.Info("binding orthophoto",
		zap.String("source", src),
		zap.String("manifest", store.Path),
		zap.Int("tiles", len(store.Manifest.Tiles)),
		zap.Float64("resolution", opts.Resolution))

	written := 0
	for _, e := range store.Manifest.Tiles {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		dst := filepath.Join(store.OrthoDir, e.TID+ext)
		wo := geo.WarpOptions{
			Bounds:     [4]float64{e.MinXYZ[0], e.MinXYZ[1], e.MaxXYZ[0], e.MaxXYZ[1]},
			EPSG:       store.Manifest.EPSG,
			Resolution: opts.Resolution,
			Resampling: opts.Resampling,
			Format:     opts.Format,
		}
		if err := warpAtomic(warp, src, dst, wo); err != nil {
			return written, fmt.Errorf("tile %s: %w", e.TID, err)
		}
		written++
		log.Debug("tile orthophoto written", zap.String("tid", e.TID), zap.String("path", dst))
	}

	log.Info("orthophoto bound",
		zap.Int("written", written),
		zap.Duration("elapsed", time.Since(start)))
	return written, nil
}

func warpAtomic(warp Warper, src, dst string, opts geo.WarpOptions) error {
	tmp := fmt.Sprintf("%s.%s.tmp", dst, uuid.NewString())
	cleanup := func() {
		os.Remove(tmp)
		os.Remove(tmp + ".aux.xml")
	}

	if err := warp(src, tmp, opts); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		cleanup()
		return err
	}
	// GDAL may write georeferencing next to the image.
	if _, err := os.Stat(tmp + ".aux.xml"); err == nil {
		if err := os.Rename(tmp+".aux.xml", dst+".aux.xml"); err != nil {
			return err
		}
	}
	return nil
}

// Ext returns the file extension for a GDAL output driver.
func Ext(format string) string {
	switch strings.ToUpper(format) {
	case "", "JPEG":
		return ".jpg"
	case "PNG":
		return ".png"
	case "GTIFF", "COG":
		return ".tif"
	case "WEBP":
		return ".webp"
	}
	return "." + strings.ToLower(format)
}
