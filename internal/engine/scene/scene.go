// Package scene holds the renderable objects of a terrain session and the
// capability interfaces the render backends implement.
package scene

import (
	"errors"
	"fmt"
	"image"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/picking"
	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/pkg/formats"
)

var (
	ErrInvalidObject   = errors.New("invalid scene object")
	ErrDuplicateObject = errors.New("object already in scene")
)

// Background is the clear color of every rendering.
var Background = [3]uint8{255, 255, 255}

// Material describes how an object is shaded. A nil Texture shades by normal.
type Material struct {
	// Texture rows are stored so that row v*H is sampled at texture coordinate v.
	Texture *image.RGBA
}

// Object is a mesh in the local terrain frame.
type Object struct {
	Name     string
	Mesh     *formats.Mesh
	UVs      [][2]float64
	Normals  [][3]float64
	Material Material
}

// NewObject builds an object with vertex normals. uvs may be nil for
// untextured objects.
func NewObject(name string, mesh *formats.Mesh, uvs [][2]float64, tex *image.RGBA) (*Object, error) {
	o := &Object{
		Name:     name,
		Mesh:     mesh,
		UVs:      uvs,
		Material: Material{Texture: tex},
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.Normals = terrain.VertexNormals(mesh)
	return o, nil
}

// Validate checks that the object can be drawn by every backend.
func (o *Object) Validate() error {
	if o == nil || o.Mesh == nil {
		return fmt.Errorf("%w: no mesh", ErrInvalidObject)
	}
	if err := o.Mesh.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidObject, o.Name, err)
	}
	if o.Material.Texture != nil && len(o.UVs) != len(o.Mesh.Vertices) {
		return fmt.Errorf("%w: %s: %d uvs for %d vertices",
			ErrInvalidObject, o.Name, len(o.UVs), len(o.Mesh.Vertices))
	}
	if o.Normals != nil && len(o.Normals) != len(o.Mesh.Vertices) {
		return fmt.Errorf("%w: %s: %d normals for %d vertices",
			ErrInvalidObject, o.Name, len(o.Normals), len(o.Mesh.Vertices))
	}
	return nil
}

// Renderable is a backend that draws a mutable set of objects.
type Renderable interface {
	Add(o *Object) error
	Remove(o *Object)
	Render(v camera.View) (*image.RGBA, error)
	Close()
}

// RayQueryable answers nearest-hit ray queries. A miss has T = +Inf.
type RayQueryable interface {
	CastRays(rays []picking.Ray) []picking.Hit
}
