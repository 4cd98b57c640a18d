// Package pipeline renders color, depth and overlay images for a list of
// cameras over one loaded terrain.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/pkg/math"
)

// State is a step of the per-camera state machine.
type State int

const (
	BuildCamera State = iota
	RenderColor
	RenderDepth
	RenderWithOverlay
	Export
)

func (s State) String() string {
	switch s {
	case BuildCamera:
		return "build_camera"
	case RenderColor:
		return "render_color"
	case RenderDepth:
		return "render_depth"
	case RenderWithOverlay:
		return "render_with_overlay"
	case Export:
		return "export"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ImageWriter persists a color rendering.
type ImageWriter interface {
	WriteImage(path string, img *image.RGBA) error
}

// DepthWriter persists a depth rendering. Coordinates are in epsg.
type DepthWriter interface {
	WriteDepth(path string, xyz *scene.XYZ, epsg int) error
}

// GDAL writes PNG and GeoTIFF files through GDAL.
type GDAL struct{}

// WriteImage writes an 8-bit RGB PNG.
func (GDAL) WriteImage(path string, img *image.RGBA) error {
	return geo.WritePNG(path, img)
}

// WriteDepth writes a three band float32 GeoTIFF.
func (GDAL) WriteDepth(path string, xyz *scene.XYZ, epsg int) error {
	return geo.WriteXYZ(path, xyz.Width, xyz.Height, xyz.Data, epsg)
}

// Outputs lists the files written for one camera.
type Outputs struct {
	Color   string
	Depth   string
	Overlay string
}

// CameraError records the state in which a camera failed.
type CameraError struct {
	Camera string
	State  State
	Err    error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("camera %s: %s: %v", e.Camera, e.State, e.Err)
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// Pipeline renders cameras through a scene session.
type Pipeline struct {
	session *scene.Session
	outDir  string
	epsg    int
	images  ImageWriter
	depth   DepthWriter
	log     *zap.Logger
}

// New returns a pipeline writing into outDir. Depth rasters carry epsg.
func New(session *scene.Session, outDir string, epsg int, images ImageWriter, depth DepthWriter) *Pipeline {
	return &Pipeline{
		session: session,
		outDir:  outDir,
		epsg:    epsg,
		images:  images,
		depth:   depth,
		log:     logger.Named("pipeline"),
	}
}

// job is one camera run through the state machine.
type job struct {
	name    string
	view    func(origin math.Vec3) (camera.View, error)
	depth   bool
	overlay func(view camera.View) (*image.RGBA, error)
	export  func(color, overlay *image.RGBA) error

	// Filled while running.
	color      *image.RGBA
	overlayImg *image.RGBA
	outputs    Outputs
}

// run walks one camera through its states. It stops at the first failing state.
func (p *Pipeline) run(j *job) error {
	log := p.log.With(zap.String("camera", j.name))
	start := time.Now()

	state := BuildCamera
	fail := func(err error) error {
		log.Error("camera failed", zap.Stringer("state", state), zap.Error(err))
		return &CameraError{Camera: j.name, State: state, Err: err}
	}

	log.Debug("state", zap.Stringer("state", state))
	view, err := j.view(p.session.Origin())
	if err != nil {
		return fail(err)
	}

	state = RenderColor
	log.Debug("state", zap.Stringer("state", state))
	img, err := p.session.Render(view)
	if err != nil {
		return fail(err)
	}
	j.color = img
	path := filepath.Join(p.outDir, j.name+".png")
	if err := p.images.WriteImage(path, img); err != nil {
		return fail(err)
	}
	j.outputs.Color = path

	if j.depth {
		state = RenderDepth
		log.Debug("state", zap.Stringer("state", state))
		xyz, err := p.session.Depth(view)
		if err != nil {
			return fail(err)
		}
		path := filepath.Join(p.outDir, j.name+"_xyz.tif")
		if err := p.depth.WriteDepth(path, xyz, p.epsg); err != nil {
			return fail(err)
		}
		j.outputs.Depth = path
	}

	if j.overlay != nil {
		state = RenderWithOverlay
		log.Debug("state", zap.Stringer("state", state))
		img, err := j.overlay(view)
		if err != nil {
			return fail(err)
		}
		path := filepath.Join(p.outDir, j.name+"_hist.png")
		if err := p.images.WriteImage(path, img); err != nil {
			return fail(err)
		}
		j.overlayImg = img
		j.outputs.Overlay = path
	}

	if j.export != nil {
		state = Export
		log.Debug("state", zap.Stringer("state", state))
		if err := j.export(j.color, j.overlayImg); err != nil {
			return fail(err)
		}
	}

	log.Info("camera rendered",
		zap.String("color", j.outputs.Color),
		zap.String("depth", j.outputs.Depth),
		zap.String("overlay", j.outputs.Overlay),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// RenderSynthetic renders every JSON camera in order. Depth rasters are
// written when depth is set. A failing camera does not stop the others; all
// camera errors are returned combined.
func (p *Pipeline) RenderSynthetic(ctx context.Context, cams []camera.Synthetic, depth bool) (map[string]Outputs, error) {
	out := make(map[string]Outputs, len(cams))
	var errs error
	for _, c := range cams {
		if err := ctx.Err(); err != nil {
			return out, multierr.Append(errs, err)
		}
		j := &job{
			name: c.Name,
			view: func(origin math.Vec3) (camera.View, error) {
				return camera.SyntheticView(c, origin)
			},
			depth: depth,
		}
		if err := p.run(j); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[c.Name] = j.outputs
	}
	p.summary(len(cams), errs)
	return out, errs
}

func (p *Pipeline) summary(total int, errs error) {
	failed := len(multierr.Errors(errs))
	p.log.Info("rendering finished",
		zap.Int("cameras", total),
		zap.Int("succeeded", total-failed),
		zap.Int("failed", failed))
}
