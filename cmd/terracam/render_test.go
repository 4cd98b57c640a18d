package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/terracam/internal/config"
	"github.com/Faultbox/terracam/internal/engine/raycaster"
	"github.com/Faultbox/terracam/internal/engine/scene"
)

func TestTilesPath(t *testing.T) {
	dir := t.TempDir()
	gpkg := filepath.Join(dir, "flights.gpkg")

	abs := filepath.Join(dir, "tiles", "dtm.json")
	assert.Equal(t, abs, tilesPath(gpkg, abs))

	// Not found from the working directory: resolved next to the GeoPackage.
	assert.Equal(t, abs, tilesPath(gpkg, filepath.Join("tiles", "dtm.json")))

	// Found from the working directory: kept.
	assert.Equal(t, "render.go", tilesPath(gpkg, "render.go"))
}

func TestCameraErrors(t *testing.T) {
	assert.NoError(t, cameraErrors(3, nil))

	err := multierr.Combine(errors.New("a"), errors.New("b"))
	got := cameraErrors(5, err)
	require.Error(t, got)
	assert.Contains(t, got.Error(), "2 of 5 cameras failed")

	canceled := multierr.Append(errors.New("a"), context.Canceled)
	assert.ErrorIs(t, cameraErrors(5, canceled), context.Canceled)
}

func TestNewBackendCPU(t *testing.T) {
	defer func(bg [3]uint8) { scene.Background = bg }(scene.Background)

	rc := config.Default().Render
	rc.Backend = "cpu"
	rc.Background = [3]uint8{1, 2, 3}
	r, err := newBackend(rc)
	require.NoError(t, err)
	defer r.Close()

	assert.IsType(t, &raycaster.Renderer{}, r)
	assert.Equal(t, [3]uint8{1, 2, 3}, scene.Background)

	rc.Backend = "vulkan"
	_, err = newBackend(rc)
	assert.Error(t, err)
}
