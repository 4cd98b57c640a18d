// Package raycaster is a CPU render backend. It shades the nearest hit of one
// ray per pixel and needs no GPU or display.
package raycaster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/picking"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/engine/texture"
	"github.com/Faultbox/terracam/pkg/formats"
)

type entry struct {
	obj     *scene.Object
	index   *picking.Index
	normals [][3]float64
}

// Renderer renders scene objects by ray casting.
type Renderer struct {
	entries    []*entry
	background color.RGBA
	workers    int
}

// New creates an empty renderer.
func New() *Renderer {
	bg := scene.Background
	return &Renderer{background: color.RGBA{R: bg[0], G: bg[1], B: bg[2], A: 255}}
}

// SetWorkers limits ray casting to n goroutines per object. n <= 0 means one
// per CPU.
func (r *Renderer) SetWorkers(n int) {
	r.workers = n
	for _, e := range r.entries {
		e.index.SetWorkers(n)
	}
}

// Add indexes o for rendering.
func (r *Renderer) Add(o *scene.Object) error {
	if err := o.Validate(); err != nil {
		return err
	}
	for _, e := range r.entries {
		if e.obj == o {
			return fmt.Errorf("%w: %s", scene.ErrDuplicateObject, o.Name)
		}
	}

	normals := o.Normals
	if normals == nil {
		normals = terrain.VertexNormals(o.Mesh)
	}
	index := picking.NewIndex([]*formats.Mesh{o.Mesh})
	index.SetWorkers(r.workers)
	r.entries = append(r.entries, &entry{
		obj:     o,
		index:   index,
		normals: normals,
	})
	return nil
}

// Remove drops o. Unknown objects are ignored.
func (r *Renderer) Remove(o *scene.Object) {
	for i, e := range r.entries {
		if e.obj == o {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of objects in the scene.
func (r *Renderer) Len() int {
	return len(r.entries)
}

// Render draws the scene from v on the background color.
func (r *Renderer) Render(v camera.View) (*image.RGBA, error) {
	w, h := v.Intrinsics.Width, v.Intrinsics.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", camera.ErrInvalidCamera, w, h)
	}

	rays := v.PixelRays()
	nearest := make([]picking.Hit, len(rays))
	owner := make([]*entry, len(rays))
	for i := range nearest {
		nearest[i] = picking.Miss()
	}

	for _, e := range r.entries {
		hits := e.index.CastRays(rays)
		for i, hit := range hits {
			if hit.Ok() && hit.T < nearest[i].T && inRange(hit.T, v) {
				nearest[i] = hit
				owner[i] = e
			}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, hit := range nearest {
		c := r.background
		if owner[i] != nil {
			c = owner[i].shade(hit)
		}
		img.SetRGBA(i%w, i/w, c)
	}
	return img, nil
}

// inRange applies the near and far planes. PixelRays directions have unit
// length along the optical axis, so t is the depth of the hit.
func inRange(t float64, v camera.View) bool {
	return t >= v.Near && t <= v.Far
}

// Close releases the indexed objects.
func (r *Renderer) Close() {
	r.entries = nil
}

func (e *entry) shade(hit picking.Hit) color.RGBA {
	f := e.obj.Mesh.Faces[hit.Face]
	b := hit.Bary

	if tex := e.obj.Material.Texture; tex != nil {
		var u, v float64
		for k := 0; k < 3; k++ {
			uv := e.obj.UVs[f[k]]
			u += b[k] * uv[0]
			v += b[k] * uv[1]
		}
		return texture.Sample(tex, u, v)
	}

	var n [3]float64
	for k := 0; k < 3; k++ {
		vn := e.normals[f[k]]
		n[0] += b[k] * vn[0]
		n[1] += b[k] * vn[1]
		n[2] += b[k] * vn[2]
	}
	return NormalColor(n)
}

// NormalColor maps a normal to the color n*0.5+0.5.
func NormalColor(n [3]float64) color.RGBA {
	l := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
	if l > 0 {
		s := 1 / math.Sqrt(l)
		n = [3]float64{n[0] * s, n[1] * s, n[2] * s}
	}
	return color.RGBA{
		R: channel(n[0]),
		G: channel(n[1]),
		B: channel(n[2]),
		A: 255,
	}
}

func channel(x float64) uint8 {
	v := (x*0.5 + 0.5) * 255
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
