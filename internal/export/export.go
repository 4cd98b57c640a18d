// Package export writes the web viewer records of rendered historical
// cameras: a spot file describing every camera and a render file holding the
// renderings.
package export

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
)

// UnknownYear is used for von and bis when a camera has no year.
const UnknownYear = 1111

// Spot describes one camera for the viewer.
type Spot struct {
	IID      string  `json:"iid"`
	Image    string  `json:"image"`
	Thumb    string  `json:"thumb"`
	Geom     string  `json:"geom"`
	Altitude float64 `json:"altitude"`
	HFOV     float64 `json:"hfov"`
	VFOV     float64 `json:"vfov"`
	Alpha    float64 `json:"alpha"`
	Heading  float64 `json:"heading"`
	Zeta     float64 `json:"zeta"`
	Kappa    float64 `json:"kappa"`
	F        float64 `json:"f"`
	Archive  *string `json:"archive"`
	Copy     *string `json:"copy"`
	Von      string  `json:"von"`
	Bis      string  `json:"bis"`
}

// Render holds the renderings of one camera as PNG data URIs. RenderWith is
// null when no overlay rendering was made.
type Render struct {
	IID        string  `json:"iid"`
	Render     string  `json:"render"`
	RenderWith *string `json:"render_with"`
}

// Projector transforms points of one EPSG to WGS84 longitude and latitude.
type Projector func(epsg int, xs, ys []float64) (lon, lat []float64, err error)

// Options configures an Exporter.
type Options struct {
	Canvas int // Longest side of the square preview
	Thumb  int // Edge of the square thumbnail
}

// Exporter collects the records of one render-gpkg run.
type Exporter struct {
	dir     string
	name    string
	epsg    int
	opts    Options
	project Projector

	spots   []Spot
	renders []Render
}

// New returns an exporter that writes <dir>/<name>_spot.json and
// <dir>/<name>_render.json. Camera positions are in epsg.
func New(dir, name string, epsg int, opts Options) *Exporter {
	return &Exporter{
		dir:     dir,
		name:    name,
		epsg:    epsg,
		opts:    opts,
		project: geo.ToWGS84,
	}
}

// Add records camera c. photo is the historical image, render and renderWith
// the renderings without and with the image plane; renderWith may be nil.
// The padded preview is also written as <iid>_square.png.
func (e *Exporter) Add(c camera.Historical, photo, render, renderWith image.Image) error {
	lon, lat, err := e.project(e.epsg, []float64{c.Pose.Position.X}, []float64{c.Pose.Position.Y})
	if err != nil {
		return fmt.Errorf("camera %s: %w", c.ID, err)
	}

	thumb := Thumbnail(photo, e.opts.Canvas)
	square := Square(thumb, White)
	squarePNG, err := EncodePNG(square)
	if err != nil {
		return fmt.Errorf("camera %s: %w", c.ID, err)
	}
	if err := writeFile(filepath.Join(e.dir, c.ID+"_square.png"), squarePNG); err != nil {
		return err
	}

	uris, err := dataURIs(square, CenterCrop(thumb, e.opts.Thumb), render)
	if err != nil {
		return fmt.Errorf("camera %s: %w", c.ID, err)
	}

	spot := Spot{
		IID:      "H" + c.ID,
		Image:    uris[0],
		Thumb:    uris[1],
		Geom:     Geom(lon[0], lat[0]),
		Altitude: c.Pose.Position.Z,
		HFOV:     c.HFOV,
		VFOV:     c.VFOV,
		Alpha:    c.Pose.Alpha,
		Heading:  c.Pose.Heading(),
		Zeta:     c.Pose.Zeta,
		Kappa:    c.Pose.Kappa,
		F:        c.F,
		Archive:  c.Archive,
		Copy:     c.Copy,
	}
	spot.Von, spot.Bis = Period(c.Year)

	rec := Render{IID: spot.IID, Render: uris[2]}
	if renderWith != nil {
		uri, err := DataURI(renderWith)
		if err != nil {
			return fmt.Errorf("camera %s: %w", c.ID, err)
		}
		rec.RenderWith = &uri
	}

	e.spots = append(e.spots, spot)
	e.renders = append(e.renders, rec)
	return nil
}

// Len returns the number of recorded cameras.
func (e *Exporter) Len() int {
	return len(e.spots)
}

// Write writes the spot and render files and returns their paths.
func (e *Exporter) Write() (spotPath, renderPath string, err error) {
	spotPath = filepath.Join(e.dir, e.name+"_spot.json")
	renderPath = filepath.Join(e.dir, e.name+"_render.json")

	spots := e.spots
	if spots == nil {
		spots = []Spot{}
	}
	renders := e.renders
	if renders == nil {
		renders = []Render{}
	}

	if err := writeJSON(spotPath, spots); err != nil {
		return "", "", err
	}
	if err := writeJSON(renderPath, renders); err != nil {
		return "", "", err
	}

	logger.Named("export").Info("export written",
		zap.String("spot", spotPath),
		zap.String("render", renderPath),
		zap.Int("cameras", len(spots)))
	return spotPath, renderPath, nil
}

// Geom formats a WGS84 point as EWKT.
func Geom(lon, lat float64) string {
	return fmt.Sprintf("SRID=4326;POINT (%.6f %.6f)", lon, lat)
}

// Period returns the first and last day of year, or of UnknownYear when year
// is nil.
func Period(year *int) (von, bis string) {
	y := UnknownYear
	if year != nil {
		y = *year
	}
	return fmt.Sprintf("%d-01-01", y), fmt.Sprintf("%d-12-31", y)
}

func dataURIs(imgs ...image.Image) ([]string, error) {
	out := make([]string, len(imgs))
	for i, img := range imgs {
		uri, err := DataURI(img)
		if err != nil {
			return nil, err
		}
		out[i] = uri
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
