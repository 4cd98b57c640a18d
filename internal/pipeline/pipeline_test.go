package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	gomath "math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/raycaster"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/engine/texture"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/tilestore"
	"github.com/Faultbox/terracam/internal/world"
	"github.com/Faultbox/terracam/pkg/formats"
	"github.com/Faultbox/terracam/pkg/math"
)

// memWriter keeps every written image and depth raster in memory.
type memWriter struct {
	images map[string]*image.RGBA
	depths map[string]*scene.XYZ
	epsg   int
	fail   string
}

func newMemWriter() *memWriter {
	return &memWriter{
		images: map[string]*image.RGBA{},
		depths: map[string]*scene.XYZ{},
	}
}

func (w *memWriter) WriteImage(path string, img *image.RGBA) error {
	if w.fail != "" && filepath.Base(path) == w.fail {
		return errors.New("disk full")
	}
	w.images[filepath.Base(path)] = img
	return nil
}

func (w *memWriter) WriteDepth(path string, xyz *scene.XYZ, epsg int) error {
	w.depths[filepath.Base(path)] = xyz
	w.epsg = epsg
	return nil
}

type fixture struct {
	terrain  *world.Terrain
	renderer *raycaster.Renderer
	session  *scene.Session
	writer   *memWriter
	pipeline *Pipeline
}

// flatFixture builds the 100x100 flat DTM at z=0 in EPSG:32633 with tile size
// 50 and loads it into a CPU session.
func flatFixture(t *testing.T) *fixture {
	t.Helper()
	const n = 100
	hm, err := terrain.NewHeightmap(n, n, make([]float64, n*n), [6]float64{0, 1, 0, n, 0, -1}, 32633)
	require.NoError(t, err)

	g, err := terrain.Build(context.Background(), hm, "flat", terrain.BuildOptions{
		TileSize: 50,
		MaxError: 0.1,
		Method:   terrain.Delatin{},
	})
	require.NoError(t, err)
	require.Len(t, g.Tiles, 4)

	manifest, err := tilestore.Save(g, filepath.Join(t.TempDir(), "tiles"), "flat", formats.FormatPLY)
	require.NoError(t, err)
	store, err := tilestore.Open(manifest)
	require.NoError(t, err)

	tr, err := world.Load(context.Background(), store, nil)
	require.NoError(t, err)

	rc := raycaster.New()
	s := scene.NewSession(rc, tr.Index, tr.Origin)
	t.Cleanup(s.Close)
	require.NoError(t, tr.Populate(s))

	w := newMemWriter()
	return &fixture{
		terrain:  tr,
		renderer: rc,
		session:  s,
		writer:   w,
		pipeline: New(s, "/out", tr.EPSG, w, w),
	}
}

func nadir(name string, x, y float64) camera.Synthetic {
	return camera.Synthetic{
		Name:   name,
		Width:  8,
		Height: 6,
		FOV:    0.05,
		X0:     x,
		Y0:     y,
		Z0:     1000,
	}
}

func TestFlatTerrainDepth(t *testing.T) {
	f := flatFixture(t)

	out, err := f.pipeline.RenderSynthetic(context.Background(), []camera.Synthetic{nadir("center", 50.3, 49.6)}, true)
	require.NoError(t, err)
	assert.Equal(t, Outputs{Color: "/out/center.png", Depth: "/out/center_xyz.tif"}, out["center"])
	assert.Equal(t, 32633, f.writer.epsg)

	xyz := f.writer.depths["center_xyz.tif"]
	require.NotNil(t, xyz)
	require.Equal(t, 8, xyz.Width)
	require.Equal(t, 6, xyz.Height)

	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			p := xyz.At(x, y)
			assert.InDelta(t, 0, p[2], 1e-6, "pixel %d,%d", x, y)
		}
	}

	// X grows to the east along a row, Y shrinks to the south down a column,
	// both with a constant step.
	dx := xyz.At(1, 2)[0] - xyz.At(0, 2)[0]
	dy := xyz.At(3, 1)[1] - xyz.At(3, 0)[1]
	require.Greater(t, dx, 0.0)
	require.Less(t, dy, 0.0)
	for x := 1; x < 8; x++ {
		assert.InDelta(t, dx, xyz.At(x, 2)[0]-xyz.At(x-1, 2)[0], 1e-6)
		assert.InDelta(t, xyz.At(x, 0)[1], xyz.At(x, 5)[1]-5*dy, 1e-6)
	}
	for y := 1; y < 6; y++ {
		assert.InDelta(t, dy, xyz.At(3, y)[1]-xyz.At(3, y-1)[1], 1e-6)
	}
	// Pixels 3 and 4 straddle the optical axis.
	assert.InDelta(t, 50.3, (xyz.At(3, 2)[0]+xyz.At(4, 2)[0])/2, 1e-6)
	assert.InDelta(t, 49.6, (xyz.At(3, 2)[1]+xyz.At(3, 3)[1])/2, 1e-6)

	img := f.writer.images["center.png"]
	require.NotNil(t, img)
	assert.Equal(t, raycaster.NormalColor([3]float64{0, 0, 1}), img.RGBAAt(4, 3))
}

func TestFlatTerrainDepthOverTileCorner(t *testing.T) {
	f := flatFixture(t)

	even := nadir("corner", 50, 50)
	// Odd sizes put the centre ray exactly on the corner shared by all four tiles.
	odd := nadir("corner_odd", 50, 50)
	odd.Width, odd.Height = 9, 7

	_, err := f.pipeline.RenderSynthetic(context.Background(), []camera.Synthetic{even, odd}, true)
	require.NoError(t, err)

	for _, name := range []string{"corner_xyz.tif", "corner_odd_xyz.tif"} {
		xyz := f.writer.depths[name]
		require.NotNil(t, xyz, name)
		for y := 0; y < xyz.Height; y++ {
			for x := 0; x < xyz.Width; x++ {
				p := xyz.At(x, y)
				require.False(t, gomath.IsNaN(p[2]), "%s pixel %d,%d", name, x, y)
				assert.InDelta(t, 0, p[2], 1e-6, "%s pixel %d,%d", name, x, y)
			}
		}
	}

	xyz := f.writer.depths["corner_xyz.tif"]
	assert.InDelta(t, 50, (xyz.At(3, 2)[0]+xyz.At(4, 2)[0])/2, 1e-6)
	assert.InDelta(t, 50, (xyz.At(3, 2)[1]+xyz.At(3, 3)[1])/2, 1e-6)

	c := f.writer.depths["corner_odd_xyz.tif"].At(4, 3)
	assert.InDelta(t, 50, c[0], 1e-6)
	assert.InDelta(t, 50, c[1], 1e-6)

	assert.Equal(t, raycaster.NormalColor([3]float64{0, 0, 1}), f.writer.images["corner_odd.png"].RGBAAt(4, 3))
}

func TestMissesEncodeToNoData(t *testing.T) {
	f := flatFixture(t)

	_, err := f.pipeline.RenderSynthetic(context.Background(), []camera.Synthetic{nadir("outside", 5000, 5000)}, true)
	require.NoError(t, err)

	xyz := f.writer.depths["outside_xyz.tif"]
	require.NotNil(t, xyz)
	for _, v := range xyz.Data {
		assert.True(t, gomath.IsNaN(v))
		enc := geo.EncodeDepth(v)
		assert.Equal(t, float64(geo.NoData), enc)
		assert.False(t, gomath.IsNaN(enc) || gomath.IsInf(enc, 0))
	}

	img := f.writer.images["outside.png"]
	require.NotNil(t, img)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
}

func TestDepthOptional(t *testing.T) {
	f := flatFixture(t)

	out, err := f.pipeline.RenderSynthetic(context.Background(), []camera.Synthetic{nadir("a", 50, 50)}, false)
	require.NoError(t, err)
	assert.Empty(t, out["a"].Depth)
	assert.Empty(t, f.writer.depths)
}

func TestFailingCameraDoesNotStopOthers(t *testing.T) {
	f := flatFixture(t)
	f.writer.fail = "b.png"

	broken := nadir("zero", 50, 50)
	broken.Width = 0
	cams := []camera.Synthetic{nadir("a", 50, 50), broken, nadir("b", 50, 50), nadir("c", 40, 60)}

	out, err := f.pipeline.RenderSynthetic(context.Background(), cams, true)
	require.Error(t, err)

	var camErrs []*CameraError
	for _, e := range multierr.Errors(err) {
		var ce *CameraError
		require.True(t, errors.As(e, &ce), "%v", e)
		camErrs = append(camErrs, ce)
	}
	require.Len(t, camErrs, 2)
	assert.Equal(t, "zero", camErrs[0].Camera)
	assert.Equal(t, BuildCamera, camErrs[0].State)
	assert.ErrorIs(t, camErrs[0], camera.ErrInvalidCamera)
	assert.Equal(t, "b", camErrs[1].Camera)
	assert.Equal(t, RenderColor, camErrs[1].State)

	assert.Contains(t, out, "a")
	assert.Contains(t, out, "c")
	assert.NotContains(t, out, "b")
	assert.Contains(t, f.writer.depths, "c_xyz.tif")
}

func TestRenderCanceled(t *testing.T) {
	f := flatFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.pipeline.RenderSynthetic(ctx, []camera.Synthetic{nadir("a", 50, 50)}, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
	assert.Empty(t, f.writer.images)
}

// historicalNadir looks straight down from 1000 units over the terrain centre
// with a 8x6 photograph.
func historicalNadir(id string) camera.Historical {
	const vfov = 0.04
	return camera.Historical{
		ID:        id,
		Pose:      camera.Pose{Position: math.Vec3{X: 50.3, Y: 49.6, Z: 1000}},
		X0:        4,
		Y0:        -3,
		F:         3 / gomath.Tan(vfov/2),
		HFOV:      2 * gomath.Atan(4/(3/gomath.Tan(vfov/2))),
		VFOV:      vfov,
		Width:     8,
		Height:    6,
		ImagePath: "/photos/" + id + ".tif",
	}
}

type exportCall struct {
	id         string
	photo      image.Image
	render     image.Image
	renderWith image.Image
}

type fakeExporter struct {
	calls []exportCall
}

func (e *fakeExporter) Add(c camera.Historical, photo, render, renderWith image.Image) error {
	e.calls = append(e.calls, exportCall{c.ID, photo, render, renderWith})
	return nil
}

var red = color.RGBA{255, 0, 0, 255}

func readRed(string) (*image.RGBA, error) {
	return texture.Solid(8, 6, red), nil
}

func TestHistoricalWithOverlay(t *testing.T) {
	f := flatFixture(t)
	exp := &fakeExporter{}
	terrainObjects := f.renderer.Len()

	opts := HistoricalOptions{Padding: 1, HistDist: 10, WithHist: true}
	out, err := f.pipeline.RenderHistorical(context.Background(), []camera.Historical{historicalNadir("42")}, opts, readRed, exp)
	require.NoError(t, err)
	assert.Equal(t, Outputs{Color: "/out/42.png", Overlay: "/out/42_hist.png"}, out["42"])

	plain := f.writer.images["42.png"]
	with := f.writer.images["42_hist.png"]
	require.NotNil(t, plain)
	require.NotNil(t, with)

	ground := raycaster.NormalColor([3]float64{0, 0, 1})
	assert.Equal(t, ground, plain.RGBAAt(4, 3))
	assert.Equal(t, red, with.RGBAAt(4, 3), "photograph covers the centre")
	assert.Equal(t, ground, with.RGBAAt(0, 0), "padding shows the terrain")

	assert.Equal(t, terrainObjects, f.renderer.Len(), "image plane removed")

	require.Len(t, exp.calls, 1)
	assert.Equal(t, "42", exp.calls[0].id)
	assert.Same(t, plain, exp.calls[0].render)
	assert.NotNil(t, exp.calls[0].renderWith)
}

func TestHistoricalNoOverlayWithoutPadding(t *testing.T) {
	f := flatFixture(t)
	exp := &fakeExporter{}

	opts := HistoricalOptions{Padding: 0, HistDist: 10, WithHist: true, Depth: true}
	out, err := f.pipeline.RenderHistorical(context.Background(), []camera.Historical{historicalNadir("7")}, opts, readRed, exp)
	require.NoError(t, err)
	assert.Empty(t, out["7"].Overlay)
	assert.Equal(t, "/out/7_xyz.tif", out["7"].Depth)
	assert.NotContains(t, f.writer.images, "7_hist.png")

	require.Len(t, exp.calls, 1)
	assert.Nil(t, exp.calls[0].renderWith)
	assert.NotNil(t, exp.calls[0].photo)
}

func TestHistoricalCanvasOverride(t *testing.T) {
	f := flatFixture(t)

	opts := HistoricalOptions{Padding: 1, Width: 12, Height: 4}
	_, err := f.pipeline.RenderHistorical(context.Background(), []camera.Historical{historicalNadir("9")}, opts, readRed, nil)
	require.NoError(t, err)

	img := f.writer.images["9.png"]
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 12, 4), img.Bounds())
}

func TestHistoricalPhotoErrorContinues(t *testing.T) {
	f := flatFixture(t)
	terrainObjects := f.renderer.Len()

	read := func(path string) (*image.RGBA, error) {
		if path == "/photos/bad.tif" {
			return nil, errors.New("no such file")
		}
		return readRed(path)
	}
	cams := []camera.Historical{historicalNadir("bad"), historicalNadir("good")}
	opts := HistoricalOptions{Padding: 1, HistDist: 10, WithHist: true}

	out, err := f.pipeline.RenderHistorical(context.Background(), cams, opts, read, nil)
	require.Error(t, err)

	var ce *CameraError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "bad", ce.Camera)
	assert.Equal(t, RenderWithOverlay, ce.State)

	assert.Contains(t, out, "good")
	assert.Contains(t, f.writer.images, "bad.png", "completed outputs are kept")
	assert.Equal(t, terrainObjects, f.renderer.Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "build_camera", BuildCamera.String())
	assert.Equal(t, "render_with_overlay", RenderWithOverlay.String())
	assert.Equal(t, "State(42)", State(42).String())
}
