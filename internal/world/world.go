// Package world assembles a persisted tile store into renderable scene objects
// and a ray-casting index in one local frame.
package world

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/picking"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/engine/texture"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/internal/tilestore"
	"github.com/Faultbox/terracam/pkg/formats"
	"github.com/Faultbox/terracam/pkg/math"
)

// TextureLoader reads a north-up RGB image.
type TextureLoader func(path string) (*image.RGBA, error)

// Terrain is a loaded tile store. Objects and Index share the local frame
// whose origin is the manifest min_xyz.
type Terrain struct {
	Name     string
	Objects  []*scene.Object
	Index    *picking.Index
	Origin   math.Vec3
	EPSG     int
	Textured int
}

// Load reads every tile of store. Tiles with exactly one orthophoto are
// textured with it; the others, including tiles with several candidates, are
// shaded by normal.
func Load(ctx context.Context, store *tilestore.Store, load TextureLoader) (*Terrain, error) {
	log := logger.Named("world")
	m := store.Manifest
	origin := math.V3(m.MinXYZ)

	t := &Terrain{
		Name:   store.Name(),
		Origin: origin,
		EPSG:   m.EPSG,
	}
	meshes := make([]*formats.Mesh, 0, len(m.Tiles))

	for _, e := range m.Tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obj, err := loadTile(log, store, e, origin, load)
		if err != nil {
			return nil, err
		}
		if obj.Material.Texture != nil {
			t.Textured++
		}
		t.Objects = append(t.Objects, obj)
		meshes = append(meshes, obj.Mesh)

		log.Debug("tile loaded",
			zap.String("tid", e.TID),
			zap.Int("vertices", len(obj.Mesh.Vertices)),
			zap.Int("faces", len(obj.Mesh.Faces)),
			zap.Bool("textured", obj.Material.Texture != nil))
	}

	t.Index = picking.NewIndex(meshes)

	log.Info("terrain loaded",
		zap.String("name", t.Name),
		zap.Int("tiles", len(t.Objects)),
		zap.Int("textured", t.Textured),
		zap.Int("faces", t.Index.Len()),
		zap.Int("epsg", t.EPSG))
	return t, nil
}

func loadTile(log *zap.Logger, store *tilestore.Store, e formats.TileEntry, origin math.Vec3, load TextureLoader) (*scene.Object, error) {
	mesh, err := store.LoadTile(e)
	if err != nil {
		return nil, err
	}

	// UVs come from the global coordinates and the tile's own bbox.
	uvs := terrain.UVs(mesh, terrain.Bounds{Min: e.MinXYZ, Max: e.MaxXYZ})
	local := mesh.Translate(origin.Scale(-1).Array())

	var tex *image.RGBA
	path, ok, err := store.OrthoPath(e.TID)
	switch {
	case errors.Is(err, tilestore.ErrAmbiguousOrtho):
		log.Warn("tile shaded by normal", zap.String("tid", e.TID), zap.Error(err))
		ok = false
	case err != nil:
		return nil, err
	}
	if ok && load != nil {
		img, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("tile %s: orthophoto: %w", e.TID, err)
		}
		tex = texture.ImageToRGBA(img, true)
	}

	obj, err := scene.NewObject(e.TID, local, uvs, tex)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", e.TID, err)
	}
	return obj, nil
}

// Populate adds every terrain object to s.
func (t *Terrain) Populate(s *scene.Session) error {
	for _, o := range t.Objects {
		if err := s.Add(o); err != nil {
			return fmt.Errorf("adding %s: %w", o.Name, err)
		}
	}
	return nil
}
