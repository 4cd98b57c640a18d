// Package geo wraps the GDAL operations terracam needs: reading the DTM and
// images, warping orthophotos, writing PNG and GeoTIFF outputs, reading
// GeoPackage layers and transforming coordinates.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/airbusgeo/godal"
)

// GDAL errors.
var (
	ErrOpen      = errors.New("cannot open dataset")
	ErrNoBands   = errors.New("dataset has no raster bands")
	ErrNoSRS     = errors.New("dataset has no spatial reference")
	ErrNoEPSG    = errors.New("spatial reference has no EPSG code")
	ErrNoLayer   = errors.New("layer not found")
	ErrTransform = errors.New("coordinate transformation failed")
)

// NoData is the value written for pixels without data.
const NoData = -9999

var registerOnce sync.Once

// Init registers all GDAL drivers. It is safe to call more than once.
func Init() {
	registerOnce.Do(godal.RegisterAll)
}

// EPSGOf returns the EPSG code of sr.
func EPSGOf(sr *godal.SpatialRef) (int, error) {
	if sr == nil {
		return 0, ErrNoSRS
	}
	code := sr.AuthorityCode("")
	if code == "" {
		return 0, ErrNoEPSG
	}
	epsg, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoEPSG, code)
	}
	return epsg, nil
}

// ToWGS84 transforms points from epsg to longitude and latitude in degrees.
func ToWGS84(epsg int, xs, ys []float64) (lon, lat []float64, err error) {
	Init()
	src, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		return nil, nil, fmt.Errorf("EPSG:%d: %w", epsg, err)
	}
	defer src.Close()
	dst, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, nil, err
	}
	defer dst.Close()

	tr, err := godal.NewTransform(src, dst)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransform, err)
	}
	defer tr.Close()

	lon = append([]float64(nil), xs...)
	lat = append([]float64(nil), ys...)
	ok := make([]bool, len(xs))
	if err := tr.TransformEx(lon, lat, nil, ok); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransform, err)
	}
	for i, good := range ok {
		if !good {
			return nil, nil, fmt.Errorf("%w: point %d (%f, %f)", ErrTransform, i, xs[i], ys[i])
		}
	}
	return lon, lat, nil
}
