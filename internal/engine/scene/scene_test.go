package scene

import (
	"errors"
	"image"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/picking"
	"github.com/Faultbox/terracam/pkg/formats"
	"github.com/Faultbox/terracam/pkg/math"
)

// fakeRenderer records the objects present at each Render call.
type fakeRenderer struct {
	objects []*Object
	renders [][]string
	closed  bool
}

func (f *fakeRenderer) Add(o *Object) error {
	if err := o.Validate(); err != nil {
		return err
	}
	for _, e := range f.objects {
		if e == o {
			return ErrDuplicateObject
		}
	}
	f.objects = append(f.objects, o)
	return nil
}

func (f *fakeRenderer) Remove(o *Object) {
	for i, e := range f.objects {
		if e == o {
			f.objects = append(f.objects[:i], f.objects[i+1:]...)
			return
		}
	}
}

func (f *fakeRenderer) Render(v camera.View) (*image.RGBA, error) {
	names := make([]string, len(f.objects))
	for i, o := range f.objects {
		names[i] = o.Name
	}
	f.renders = append(f.renders, names)
	return image.NewRGBA(image.Rect(0, 0, v.Intrinsics.Width, v.Intrinsics.Height)), nil
}

func (f *fakeRenderer) Close() { f.closed = true }

func flatMesh(size, z float64) *formats.Mesh {
	return &formats.Mesh{
		Vertices: [][3]float64{{0, 0, z}, {size, 0, z}, {size, size, z}, {0, size, z}},
		Faces:    [][3]uint32{{0, 1, 2}, {0, 2, 3}},
	}
}

func nadirView(t *testing.T, pos math.Vec3, origin math.Vec3, w, h int) camera.View {
	t.Helper()
	v, err := camera.BuildView(camera.Pose{Position: pos},
		camera.NewIntrinsics(camera.CorrectFOV(0.5, w, h, 0), w, h), origin)
	require.NoError(t, err)
	return v
}

func TestNewObject(t *testing.T) {
	o, err := NewObject("tile", flatMesh(10, 0), nil, nil)
	require.NoError(t, err)
	require.Len(t, o.Normals, 4)
	assert.InDelta(t, 1, o.Normals[0][2], 1e-12)

	tex := image.NewRGBA(image.Rect(0, 0, 1, 1))
	_, err = NewObject("tile", flatMesh(10, 0), [][2]float64{{0, 0}}, tex)
	assert.ErrorIs(t, err, ErrInvalidObject)

	bad := &formats.Mesh{Vertices: [][3]float64{{0, 0, 0}}, Faces: [][3]uint32{{0, 1, 2}}}
	_, err = NewObject("bad", bad, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidObject)

	_, err = NewObject("nil", nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidObject)
}

func TestWithOverlayScoped(t *testing.T) {
	r := &fakeRenderer{}
	s := NewSession(r, picking.NewIndex(nil), math.Vec3{})
	terrain, err := NewObject("terrain", flatMesh(10, 0), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Add(terrain))

	overlay, err := NewObject("overlay", flatMesh(1, 5), nil, nil)
	require.NoError(t, err)

	view := nadirView(t, math.Vec3{X: 5, Y: 5, Z: 100}, math.Vec3{}, 4, 4)

	_, err = s.Render(view)
	require.NoError(t, err)
	err = s.WithOverlay(overlay, func(f Frame) error {
		_, err := f.Render(view)
		return err
	})
	require.NoError(t, err)
	_, err = s.Render(view)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"terrain"},
		{"terrain", "overlay"},
		{"terrain"},
	}, r.renders)
}

func TestWithOverlayRemovesOnError(t *testing.T) {
	r := &fakeRenderer{}
	s := NewSession(r, picking.NewIndex(nil), math.Vec3{})
	overlay, err := NewObject("overlay", flatMesh(1, 5), nil, nil)
	require.NoError(t, err)

	boom := errors.New("write failed")
	err = s.WithOverlay(overlay, func(Frame) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.objects)
}

func TestWithOverlayRemovesOnPanic(t *testing.T) {
	r := &fakeRenderer{}
	s := NewSession(r, picking.NewIndex(nil), math.Vec3{})
	overlay, err := NewObject("overlay", flatMesh(1, 5), nil, nil)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = s.WithOverlay(overlay, func(Frame) error { panic("render crashed") })
	})
	assert.Empty(t, r.objects)

	// The lock was released: the session is still usable.
	_, err = s.Render(nadirView(t, math.Vec3{Z: 10}, math.Vec3{}, 2, 2))
	assert.NoError(t, err)
}

func TestWithOverlayRejectsInvalidObject(t *testing.T) {
	r := &fakeRenderer{}
	s := NewSession(r, picking.NewIndex(nil), math.Vec3{})

	called := false
	err := s.WithOverlay(&Object{Name: "empty"}, func(Frame) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidObject)
	assert.False(t, called)
}

func TestDepthFlatTerrain(t *testing.T) {
	origin := math.Vec3{X: 1000, Y: 2000, Z: 300}
	idx := picking.NewIndex([]*formats.Mesh{flatMesh(1000, 0)})
	s := NewSession(&fakeRenderer{}, idx, origin)

	view := nadirView(t, math.Vec3{X: 1430, Y: 2570, Z: 1300}, origin, 8, 6)
	xyz, err := s.Depth(view)
	require.NoError(t, err)
	require.Equal(t, 8, xyz.Width)
	require.Equal(t, 6, xyz.Height)
	require.Len(t, xyz.Data, 3*8*6)

	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			p := xyz.At(x, y)
			assert.InDelta(t, 300, p[2], 1e-6, "pixel %d,%d", x, y)
		}
	}

	// North-up: the top-left pixel is north-west of the bottom-right one.
	tl, br := xyz.At(0, 0), xyz.At(7, 5)
	assert.Less(t, tl[0], br[0])
	assert.Greater(t, tl[1], br[1])

	// The principal ray hits below the camera.
	c := xyz.At(4, 3)
	assert.InDelta(t, 1430, (c[0]+xyz.At(3, 2)[0])/2, 1e-6)
	assert.InDelta(t, 2570, (c[1]+xyz.At(3, 2)[1])/2, 1e-6)
}

func TestDepthMissIsNaN(t *testing.T) {
	idx := picking.NewIndex([]*formats.Mesh{flatMesh(1, 0)})
	s := NewSession(&fakeRenderer{}, idx, math.Vec3{})

	// Looking straight down far beside the mesh.
	view := nadirView(t, math.Vec3{X: 500, Y: 500, Z: 100}, math.Vec3{}, 2, 2)
	xyz, err := s.Depth(view)
	require.NoError(t, err)
	for _, v := range xyz.Data {
		assert.True(t, gomath.IsNaN(v))
	}
}

func TestSessionClose(t *testing.T) {
	r := &fakeRenderer{}
	s := NewSession(r, picking.NewIndex(nil), math.Vec3{})
	s.Close()
	s.Close()
	assert.True(t, r.closed)

	_, err := s.Render(nadirView(t, math.Vec3{Z: 10}, math.Vec3{}, 2, 2))
	assert.ErrorIs(t, err, ErrClosed)

	o, err := NewObject("o", flatMesh(1, 0), nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Add(o), ErrClosed)
	assert.ErrorIs(t, s.WithOverlay(o, func(Frame) error { return nil }), ErrClosed)
}

func TestBackgroundIsWhite(t *testing.T) {
	assert.Equal(t, [3]uint8{255, 255, 255}, Background)
}
