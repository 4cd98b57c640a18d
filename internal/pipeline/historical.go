package pipeline

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/multierr"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/engine/texture"
	"github.com/Faultbox/terracam/pkg/math"
)

// HistoricalOptions configures RenderHistorical.
type HistoricalOptions struct {
	Padding  float64 // Degrees added to the camera FOV
	HistDist float64 // Distance of the image plane from the camera
	WithHist bool    // Render again with the image plane; needs Padding > 0
	Width    int     // Canvas width override, 0 keeps the image width
	Height   int     // Canvas height override, 0 keeps the image height
	Depth    bool
}

// overlay reports whether the image plane rendering is made.
func (o HistoricalOptions) overlay() bool {
	return o.WithHist && o.Padding > 0
}

// ImageReader loads a historical photograph.
type ImageReader func(path string) (*image.RGBA, error)

// Exporter receives the images of every successfully rendered camera.
// renderWith is nil when no overlay rendering was made.
type Exporter interface {
	Add(c camera.Historical, photo, render, renderWith image.Image) error
}

// RenderHistorical renders the oriented cameras in order. read loads the
// photographs, which are needed for the overlay rendering and for exp. exp
// may be nil. A failing camera does not stop the others; all camera errors
// are returned combined.
func (p *Pipeline) RenderHistorical(ctx context.Context, cams []camera.Historical, opts HistoricalOptions, read ImageReader, exp Exporter) (map[string]Outputs, error) {
	out := make(map[string]Outputs, len(cams))
	var errs error
	for _, c := range cams {
		if err := ctx.Err(); err != nil {
			return out, multierr.Append(errs, err)
		}
		j := p.historicalJob(c, opts, read, exp)
		if err := p.run(j); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[c.ID] = j.outputs
	}
	p.summary(len(cams), errs)
	return out, errs
}

func (p *Pipeline) historicalJob(c camera.Historical, opts HistoricalOptions, read ImageReader, exp Exporter) *job {
	var photo *image.RGBA
	loadPhoto := func() (*image.RGBA, error) {
		if photo != nil {
			return photo, nil
		}
		if read == nil {
			return nil, fmt.Errorf("no image reader for %s", c.ImagePath)
		}
		img, err := read(c.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("reading photograph: %w", err)
		}
		photo = img
		return photo, nil
	}

	j := &job{
		name: c.ID,
		view: func(origin math.Vec3) (camera.View, error) {
			return camera.HistoricalView(c, origin, opts.Padding, opts.Width, opts.Height)
		},
		depth: opts.Depth,
	}

	if opts.overlay() {
		j.overlay = func(view camera.View) (*image.RGBA, error) {
			img, err := loadPhoto()
			if err != nil {
				return nil, err
			}
			return p.renderOverlay(c, view, img, opts.HistDist)
		}
	}

	if exp != nil {
		j.export = func(color, overlay *image.RGBA) error {
			img, err := loadPhoto()
			if err != nil {
				return err
			}
			var with image.Image
			if overlay != nil {
				with = overlay
			}
			return exp.Add(c, img, color, with)
		}
	}
	return j
}

// renderOverlay draws the scene with the photograph placed on its image plane.
// The plane is removed again whatever the outcome.
func (p *Pipeline) renderOverlay(c camera.Historical, view camera.View, photo *image.RGBA, dist float64) (*image.RGBA, error) {
	plane, err := camera.OverlayPlane(c, p.session.Origin(), dist)
	if err != nil {
		return nil, err
	}
	obj, err := scene.NewObject(c.ID+"_hist", plane.Mesh, plane.UVs, texture.ImageToRGBA(photo, false))
	if err != nil {
		return nil, err
	}

	var img *image.RGBA
	err = p.session.WithOverlay(obj, func(f scene.Frame) error {
		var err error
		img, err = f.Render(view)
		return err
	})
	return img, err
}
