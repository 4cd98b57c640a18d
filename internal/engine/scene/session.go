package scene

import (
	"errors"
	"fmt"
	"image"
	gomath "math"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/pkg/math"
)

// ErrClosed is returned by a session after Close.
var ErrClosed = errors.New("scene session closed")

// XYZ is a per-pixel grid of global coordinates, three values per pixel in
// row-major order from the top-left. Pixels without a hit hold NaN.
type XYZ struct {
	Width  int
	Height int
	Data   []float64
}

// At returns the coordinate of pixel (x, y).
func (d *XYZ) At(x, y int) [3]float64 {
	i := 3 * (y*d.Width + x)
	return [3]float64{d.Data[i], d.Data[i+1], d.Data[i+2]}
}

// Session renders and ray-casts one loaded terrain. Scene mutation and drawing
// are serialized by the session lock.
type Session struct {
	mu       sync.Mutex
	renderer Renderable
	index    RayQueryable
	origin   math.Vec3
	closed   bool
	log      *zap.Logger
}

// NewSession binds a render backend and a ray index to a terrain whose local
// frame starts at origin. The session takes ownership of r.
func NewSession(r Renderable, index RayQueryable, origin math.Vec3) *Session {
	return &Session{
		renderer: r,
		index:    index,
		origin:   origin,
		log:      logger.Named("scene"),
	}
}

// Origin returns the global coordinate of the local frame origin.
func (s *Session) Origin() math.Vec3 {
	return s.origin
}

// Add inserts a permanent object.
func (s *Session) Add(o *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.renderer.Add(o)
}

// Render draws the scene from view.
func (s *Session) Render(view camera.View) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.renderer.Render(view)
}

// Frame draws the scene while the session lock is held by WithOverlay.
type Frame struct {
	s *Session
}

// Render draws the scene, overlay included, from view.
func (f Frame) Render(view camera.View) (*image.RGBA, error) {
	return f.s.renderer.Render(view)
}

// WithOverlay adds o for the duration of fn. The object is removed when fn
// returns, fails or panics.
func (s *Session) WithOverlay(o *Object, fn func(Frame) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.renderer.Add(o); err != nil {
		return fmt.Errorf("adding overlay %s: %w", o.Name, err)
	}
	s.log.Debug("overlay added", zap.String("object", o.Name))
	defer func() {
		s.renderer.Remove(o)
		s.log.Debug("overlay removed", zap.String("object", o.Name))
	}()

	return fn(Frame{s: s})
}

// Depth casts one ray per pixel of view and returns the global coordinates
// of the nearest hits.
func (s *Session) Depth(view camera.View) (*XYZ, error) {
	if s.index == nil {
		return nil, errors.New("scene session has no ray index")
	}
	w, h := view.Intrinsics.Width, view.Intrinsics.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", camera.ErrInvalidCamera, w, h)
	}

	rays := view.PixelRays()
	hits := s.index.CastRays(rays)
	if len(hits) != len(rays) {
		return nil, fmt.Errorf("ray index returned %d hits for %d rays", len(hits), len(rays))
	}

	out := &XYZ{Width: w, Height: h, Data: make([]float64, 3*len(rays))}
	misses := 0
	for i, hit := range hits {
		p := rays[i].At(hit.T).Add(s.origin)
		if !hit.Ok() || !p.IsFinite() {
			p = math.Vec3{X: gomath.NaN(), Y: gomath.NaN(), Z: gomath.NaN()}
			misses++
		}
		out.Data[3*i] = p.X
		out.Data[3*i+1] = p.Y
		out.Data[3*i+2] = p.Z
	}

	s.log.Debug("depth cast",
		zap.Int("rays", len(rays)),
		zap.Int("misses", misses))
	return out, nil
}

// Close releases the render backend. Further calls fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.renderer.Close()
}
