// Package tilestore persists tile grids as mesh files plus a JSON manifest
// and loads them back.
//
// Layout of a store:
//
//	<dir>/<name>.json   manifest
//	<dir>/mesh/<tid>.ply|stl
//	<dir>/op/<tid>.jpg  orthophoto tiles, added later
package tilestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/pkg/formats"
)

// Store errors.
var (
	ErrOutputExists   = errors.New("output directory already exists")
	ErrMissingTile    = errors.New("tile mesh not found")
	ErrAmbiguousOrtho = errors.New("more than one orthophoto for tile")
)

// Directory names inside a store.
const (
	MeshDirName  = "mesh"
	OrthoDirName = "op"
)

// Save writes g into the new directory dir and returns the manifest path.
// Tiles and the manifest are first written to a staging directory next to
// dir, which is renamed into place only when everything succeeded. On
// failure no trace of dir is left behind.
func Save(g *terrain.Grid, dir, name string, format formats.Format) (string, error) {
	log := logger.Named("tilestore")

	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrOutputExists, dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	staging := fmt.Sprintf("%s.%s.partial", filepath.Clean(dir), uuid.NewString())
	if err := os.MkdirAll(filepath.Join(staging, MeshDirName), 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := os.RemoveAll(staging); err != nil {
				log.Warn("removing staging directory", zap.String("path", staging), zap.Error(err))
			}
		}
	}()

	for _, t := range g.Tiles {
		path := filepath.Join(staging, MeshDirName, t.ID+format.Ext())
		if err := writeTile(path, t, format); err != nil {
			return "", fmt.Errorf("writing tile %s: %w", t.ID, err)
		}
		log.Debug("tile written", zap.String("tid", t.ID), zap.String("path", path))
	}

	manifestName := name + ".json"
	err := writeAtomic(filepath.Join(staging, manifestName), func(f *os.File) error {
		return g.Manifest().Write(f)
	})
	if err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}

	if err := os.Rename(staging, dir); err != nil {
		return "", fmt.Errorf("committing %s: %w", dir, err)
	}
	committed = true

	manifestPath := filepath.Join(dir, manifestName)
	log.Info("tile store saved",
		zap.String("manifest", manifestPath),
		zap.Int("tiles", len(g.Tiles)),
		zap.String("format", string(format)))
	return manifestPath, nil
}

func writeTile(path string, t *terrain.Tile, format formats.Format) error {
	if t.Mesh == nil {
		return fmt.Errorf("%w: no mesh", formats.ErrInvalidMesh)
	}
	if err := t.Mesh.Validate(); err != nil {
		return err
	}
	mesh := t.Mesh
	if format == formats.FormatSTL {
		// Single precision needs coordinates near the origin.
		o := t.Bounds.Min
		mesh = mesh.Translate([3]float64{-o[0], -o[1], -o[2]})
	}
	return writeAtomic(path, func(f *os.File) error {
		return formats.WriteMesh(f, mesh, format)
	})
}

// writeAtomic writes through a temporary file in the same directory and
// renames it to path once fill succeeded.
func writeAtomic(path string, fill func(*os.File) error) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Store is an opened tile store.
type Store struct {
	Path     string // Manifest path
	Dir      string
	MeshDir  string
	OrthoDir string
	Manifest *formats.Manifest
}

// Open reads the manifest at manifestPath.
func Open(manifestPath string) (*Store, error) {
	m, err := formats.ParseManifestFile(manifestPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(manifestPath)
	return &Store{
		Path:     manifestPath,
		Dir:      dir,
		MeshDir:  filepath.Join(dir, MeshDirName),
		OrthoDir: filepath.Join(dir, OrthoDirName),
		Manifest: m,
	}, nil
}

// Name returns the manifest file name without extension.
func (s *Store) Name() string {
	return strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
}

// LoadTile reads the mesh of a manifest entry in world coordinates.
func (s *Store) LoadTile(e formats.TileEntry) (*formats.Mesh, error) {
	for _, f := range []formats.Format{formats.FormatPLY, formats.FormatSTL} {
		path := filepath.Join(s.MeshDir, e.TID+f.Ext())
		if _, err := os.Stat(path); err != nil {
			continue
		}
		mesh, err := formats.ReadMeshFile(path)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", e.TID, err)
		}
		if f == formats.FormatSTL {
			mesh = mesh.Translate(e.MinXYZ)
		}
		return mesh, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrMissingTile, e.TID, s.MeshDir)
}

// OrthoPath returns the orthophoto of tile tid. ok is false when the tile
// has none.
func (s *Store) OrthoPath(tid string) (path string, ok bool, err error) {
	matches, err := filepath.Glob(filepath.Join(s.OrthoDir, tid+".*"))
	if err != nil {
		return "", false, err
	}
	var images []string
	for _, m := range matches {
		// GDAL side-car files and unfinished writes.
		if strings.HasSuffix(m, ".aux.xml") || strings.HasSuffix(m, ".tmp") {
			continue
		}
		images = append(images, m)
	}
	switch len(images) {
	case 0:
		return "", false, nil
	case 1:
		return images[0], true, nil
	}
	return "", false, fmt.Errorf("%w: %s: %s", ErrAmbiguousOrtho, tid, strings.Join(images, ", "))
}

// Grid loads every tile back into a terrain.Grid. Rows and columns are
// recovered from the tile ids.
func (s *Store) Grid() (*terrain.Grid, error) {
	g := &terrain.Grid{Name: s.Name(), EPSG: s.Manifest.EPSG}
	for _, e := range s.Manifest.Tiles {
		mesh, err := s.LoadTile(e)
		if err != nil {
			return nil, err
		}
		row, col, ok := parseTID(e.TID)
		if !ok {
			return nil, fmt.Errorf("%w: tid %q has no row and column", formats.ErrInvalidManifest, e.TID)
		}
		g.Rows = max(g.Rows, row+1)
		g.Cols = max(g.Cols, col+1)
		g.Tiles = append(g.Tiles, &terrain.Tile{
			ID:     e.TID,
			Index:  e.TIDInt,
			Row:    row,
			Col:    col,
			Mesh:   mesh,
			Bounds: terrain.Bounds{Min: e.MinXYZ, Max: e.MaxXYZ},
		})
	}

	// Reorder into the row-major layout Grid.Tile expects.
	ordered := make([]*terrain.Tile, g.Rows*g.Cols)
	for _, t := range g.Tiles {
		i := t.Row*g.Cols + t.Col
		if ordered[i] != nil {
			return nil, fmt.Errorf("%w: duplicate tile position %d,%d", formats.ErrInvalidManifest, t.Row, t.Col)
		}
		ordered[i] = t
	}
	for i, t := range ordered {
		if t == nil {
			return nil, fmt.Errorf("%w: no tile at %d,%d", ErrMissingTile, i/g.Cols, i%g.Cols)
		}
	}
	g.Tiles = ordered
	return g, nil
}

// parseTID splits "<name>_<row>_<col>".
func parseTID(tid string) (row, col int, ok bool) {
	parts := strings.Split(tid, "_")
	if len(parts) < 3 {
		return 0, 0, false
	}
	row, err1 := strconv.Atoi(parts[len(parts)-2])
	col, err2 := strconv.Atoi(parts[len(parts)-1])
	if err1 != nil || err2 != nil || row < 0 || col < 0 {
		return 0, 0, false
	}
	return row, col, true
}
