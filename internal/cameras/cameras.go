// Package cameras reads camera poses from the two supported sources: a JSON
// file of synthetic cameras and a GeoPackage of oriented historical images.
package cameras

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
)

// Camera source errors.
var (
	ErrInvalidCameraFile = errors.New("invalid camera file")
	ErrNoRegion          = errors.New("geopackage has no region")
	ErrMissingField      = errors.New("camera field missing")
)

// GeoPackage layer names.
const (
	RegionLayer = "region"
	CameraLayer = "cameras"
)

// ParseSynthetic decodes a camera JSON object keyed by camera name. Cameras
// are returned sorted by name.
func ParseSynthetic(r io.Reader) ([]camera.Synthetic, error) {
	var raw map[string]camera.Synthetic
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCameraFile, err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	cams := make([]camera.Synthetic, 0, len(names))
	for _, name := range names {
		c := raw[name]
		c.Name = name
		cams = append(cams, c)
	}
	return cams, nil
}

// ReadSynthetic reads a camera JSON file.
func ReadSynthetic(path string) ([]camera.Synthetic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening camera file: %w", err)
	}
	defer f.Close()

	cams, err := ParseSynthetic(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Named("cameras").Info("synthetic cameras loaded",
		zap.String("path", path),
		zap.Int("cameras", len(cams)))
	return cams, nil
}

// GeoPackage is the content of a camera GeoPackage.
type GeoPackage struct {
	Name      string // File name up to the first dot
	TilesPath string // Manifest referenced by the region layer
	Cameras   []camera.Historical
}

// LayerReader returns the attribute records of one vector layer.
type LayerReader func(path, layer string) ([]geo.Record, error)

// ReadGeoPackage reads the region and the oriented cameras of a GeoPackage.
// When only is non-empty, cameras whose id is not listed are skipped.
func ReadGeoPackage(path string, only []string) (*GeoPackage, error) {
	return readGeoPackage(geo.ReadLayer, path, only)
}

func readGeoPackage(read LayerReader, path string, only []string) (*GeoPackage, error) {
	log := logger.Named("cameras")

	region, err := read(path, RegionLayer)
	if err != nil {
		return nil, err
	}
	if len(region) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRegion, path)
	}
	tiles, ok := region[0].String("json_path")
	if !ok {
		return nil, fmt.Errorf("%w: %s: region has no json_path", ErrNoRegion, path)
	}

	records, err := read(path, CameraLayer)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(only))
	for _, id := range only {
		wanted[id] = true
	}

	gp := &GeoPackage{Name: Name(path), TilesPath: tiles}
	pos := map[string]int{}
	for i, rec := range records {
		if oriented, _ := rec.Int("is_oriented"); oriented != 1 {
			continue
		}
		c, err := Historical(rec)
		if err != nil {
			return nil, fmt.Errorf("camera feature %d: %w", i, err)
		}
		if len(wanted) > 0 && !wanted[c.ID] {
			continue
		}
		// A repeated id replaces the earlier camera in place.
		if j, dup := pos[c.ID]; dup {
			log.Warn("duplicate camera id", zap.String("iid", c.ID))
			gp.Cameras[j] = c
			continue
		}
		pos[c.ID] = len(gp.Cameras)
		gp.Cameras = append(gp.Cameras, c)
	}

	for _, id := range only {
		if _, found := pos[id]; !found {
			log.Warn("requested camera not found or not oriented", zap.String("iid", id))
		}
	}

	log.Info("geopackage cameras loaded",
		zap.String("path", path),
		zap.String("tiles", tiles),
		zap.Int("cameras", len(gp.Cameras)))
	return gp, nil
}

// Name returns the base name of path cut at the first dot.
func Name(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// Historical converts a cameras layer record. Angles and FOVs are radians.
func Historical(rec geo.Record) (camera.Historical, error) {
	var c camera.Historical

	id, ok := rec.String("iid")
	if !ok {
		return c, fmt.Errorf("%w: iid", ErrMissingField)
	}
	c.ID = id

	floats := []struct {
		key string
		dst *float64
	}{
		{"obj_x0", &c.Pose.Position.X},
		{"obj_y0", &c.Pose.Position.Y},
		{"obj_z0", &c.Pose.Position.Z},
		{"alpha", &c.Pose.Alpha},
		{"zeta", &c.Pose.Zeta},
		{"kappa", &c.Pose.Kappa},
		{"img_x0", &c.X0},
		{"img_y0", &c.Y0},
		{"f", &c.F},
		{"hfov", &c.HFOV},
		{"vfov", &c.VFOV},
	}
	for _, f := range floats {
		v, ok := rec.Float(f.key)
		if !ok {
			return c, fmt.Errorf("%w: %s: %s", ErrMissingField, id, f.key)
		}
		*f.dst = v
	}

	if c.Width, ok = rec.Int("img_w"); !ok {
		return c, fmt.Errorf("%w: %s: img_w", ErrMissingField, id)
	}
	if c.Height, ok = rec.Int("img_h"); !ok {
		return c, fmt.Errorf("%w: %s: img_h", ErrMissingField, id)
	}
	if c.ImagePath, ok = rec.String("path"); !ok {
		return c, fmt.Errorf("%w: %s: path", ErrMissingField, id)
	}

	if v, ok := rec.String("archiv"); ok {
		c.Archive = &v
	}
	if v, ok := rec.String("copy"); ok {
		c.Copy = &v
	}
	if v, ok := rec.Int("jahr"); ok {
		c.Year = &v
	}

	if !c.Pose.Position.IsFinite() {
		return c, fmt.Errorf("%w: %s: position %v", camera.ErrInvalidCamera, id, c.Pose.Position)
	}
	return c, nil
}

