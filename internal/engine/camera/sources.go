package camera

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/terracam/pkg/formats"
	"github.com/Faultbox/terracam/pkg/math"
)

// Synthetic is a camera read from a camera JSON file. Angles and FOV are radians.
type Synthetic struct {
	Name   string  `json:"-"`
	Width  int     `json:"img_w"`
	Height int     `json:"img_h"`
	Alpha  float64 `json:"alpha"`
	Zeta   float64 `json:"zeta"`
	Kappa  float64 `json:"kappa"`
	FOV    float64 `json:"fov"`
	X0     float64 `json:"X0"`
	Y0     float64 `json:"Y0"`
	Z0     float64 `json:"Z0"`
}

// Pose returns the world pose of the camera.
func (c Synthetic) Pose() Pose {
	return Pose{
		Position: math.Vec3{X: c.X0, Y: c.Y0, Z: c.Z0},
		Alpha:    c.Alpha,
		Zeta:     c.Zeta,
		Kappa:    c.Kappa,
	}
}

// SyntheticView builds the view of a JSON camera. The supplied FOV spans the
// longer image side.
func SyntheticView(c Synthetic, origin math.Vec3) (View, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return View{}, fmt.Errorf("%w: %s: image size %dx%d", ErrInvalidCamera, c.Name, c.Width, c.Height)
	}
	fov := CorrectFOV(c.FOV, c.Width, c.Height, 0)
	v, err := BuildView(c.Pose(), NewIntrinsics(fov, c.Width, c.Height), origin)
	if err != nil {
		return View{}, fmt.Errorf("%s: %w", c.Name, err)
	}
	return v, nil
}

// Historical is an oriented camera of a historical photograph.
type Historical struct {
	ID   string
	Pose Pose

	// Interior orientation in image units: principal point and focal length.
	X0, Y0, F float64

	// HFOV and VFOV are radians.
	HFOV, VFOV float64

	Width, Height int
	ImagePath     string

	Archive *string
	Copy    *string
	Year    *int
}

// FOV returns the larger of HFOV and VFOV plus paddingDeg, in radians.
func (c Historical) FOV(paddingDeg float64) float64 {
	return gomath.Max(c.HFOV, c.VFOV) + math.DegToRad(paddingDeg)
}

// CanvasSize returns the image size with non-zero overrides applied per axis.
func (c Historical) CanvasSize(width, height int) (int, int) {
	w, h := c.Width, c.Height
	if width > 0 {
		w = width
	}
	if height > 0 {
		h = height
	}
	return w, h
}

// HistoricalView builds the view of a historical camera on a canvas of the
// image size, or width x height when those are non-zero. The padded FOV spans
// the shorter canvas side.
func HistoricalView(c Historical, origin math.Vec3, paddingDeg float64, width, height int) (View, error) {
	w, h := c.CanvasSize(width, height)
	if w <= 0 || h <= 0 {
		return View{}, fmt.Errorf("%w: %s: canvas size %dx%d", ErrInvalidCamera, c.ID, w, h)
	}
	fov := c.FOV(paddingDeg)
	if !(fov > 0 && fov < gomath.Pi) {
		return View{}, fmt.Errorf("%w: %s: fov %v", ErrInvalidCamera, c.ID, fov)
	}
	v, err := BuildView(c.Pose, NewIntrinsics(fov, w, h), origin)
	if err != nil {
		return View{}, fmt.Errorf("%s: %w", c.ID, err)
	}
	return v, nil
}

// Plane is a textured quad in the local terrain frame.
type Plane struct {
	Mesh *formats.Mesh
	UVs  [][2]float64
}

// OverlayPlane returns the image plane of c placed dist units in front of the
// projection center, in the frame whose origin is origin. Its corners lie on
// the rays through the image corners, so the photograph lines up with the terrain.
func OverlayPlane(c Historical, origin math.Vec3, dist float64) (*Plane, error) {
	if !(dist > 0) {
		return nil, fmt.Errorf("%w: %s: overlay distance %v", ErrInvalidCamera, c.ID, dist)
	}
	if c.Width <= 0 || c.Height <= 0 || c.F == 0 {
		return nil, fmt.Errorf("%w: %s: interior orientation", ErrInvalidCamera, c.ID)
	}

	rot := c.Pose.Rotation()
	cmat := math.Mat3{
		1, 0, -c.X0,
		0, 1, -c.Y0,
		0, 0, -c.F,
	}
	m := rot.Mul(cmat)
	center := c.Pose.Position.Sub(origin)

	w, h := float64(c.Width), float64(c.Height)
	corners := []math.Vec3{
		{X: 0, Y: 0, Z: 1},
		{X: w, Y: 0, Z: 1},
		{X: w, Y: -h, Z: 1},
		{X: 0, Y: -h, Z: 1},
	}

	verts := make([][3]float64, len(corners))
	for i, p := range corners {
		dir := m.MulVec(p).Normalize()
		verts[i] = center.Add(dir.Scale(dist)).Array()
	}

	return &Plane{
		Mesh: &formats.Mesh{
			Vertices: verts,
			Faces:    [][3]uint32{{3, 1, 0}, {3, 2, 1}},
		},
		UVs: [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
	}, nil
}
