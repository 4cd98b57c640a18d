package camera

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/terracam/internal/engine/picking"
	"github.com/Faultbox/terracam/pkg/math"
)

// ErrInvalidCamera is returned for poses or intrinsics that cannot be rendered.
var ErrInvalidCamera = errors.New("invalid camera")

// View is a camera placed in the local frame of a terrain.
type View struct {
	// Position is relative to the terrain origin.
	Position   math.Vec3
	Rotation   math.Mat3
	Intrinsics Intrinsics
	Near, Far  float64
}

// BuildView places pose in the frame whose origin is the terrain min_xyz.
func BuildView(pose Pose, intr Intrinsics, origin math.Vec3) (View, error) {
	if intr.Width <= 0 || intr.Height <= 0 {
		return View{}, fmt.Errorf("%w: image size %dx%d", ErrInvalidCamera, intr.Width, intr.Height)
	}
	if !(intr.F > 0) || gomath.IsInf(intr.F, 0) {
		return View{}, fmt.Errorf("%w: focal length %v", ErrInvalidCamera, intr.F)
	}
	if !pose.Position.IsFinite() {
		return View{}, fmt.Errorf("%w: position %v", ErrInvalidCamera, pose.Position)
	}
	for _, a := range []float64{pose.Alpha, pose.Zeta, pose.Kappa} {
		if gomath.IsNaN(a) || gomath.IsInf(a, 0) {
			return View{}, fmt.Errorf("%w: angles %v %v %v", ErrInvalidCamera, pose.Alpha, pose.Zeta, pose.Kappa)
		}
	}

	return View{
		Position:   pose.Position.Sub(origin),
		Rotation:   pose.Rotation(),
		Intrinsics: intr,
		Near:       Near,
		Far:        Far,
	}, nil
}

// Transform returns the camera model matrix [R | p] with identity scale.
func (v View) Transform() math.Mat4 {
	return math.FromPose(v.Rotation, v.Position)
}

// ViewMatrix returns the world-to-camera matrix.
func (v View) ViewMatrix() math.Mat4 {
	return math.ViewFromPose(v.Rotation, v.Position)
}

// Projection returns the GL projection matching PixelRays.
func (v View) Projection() math.Mat4 {
	in := v.Intrinsics
	return math.PinholeProjection(in.F, in.Cx, in.Cy,
		float64(in.Width), float64(in.Height), v.Near, v.Far)
}

// VerticalFOV returns the FOV across the image height in radians.
func (v View) VerticalFOV() float64 {
	return 2 * gomath.Atan((float64(v.Intrinsics.Height)/2)/v.Intrinsics.F)
}

// PixelRay returns the ray through the center of pixel (x, y), y growing downwards.
// The direction is not normalized: its component along the optical axis is 1.
func (v View) PixelRay(x, y int) picking.Ray {
	in := v.Intrinsics
	a := (float64(x) + 0.5 - in.Cx) / in.F
	b := (float64(y) + 0.5 - in.Cy) / in.F
	return picking.Ray{
		Origin:    v.Position,
		Direction: v.visionToWorld().MulVec(math.Vec3{X: a, Y: b, Z: 1}),
	}
}

// PixelRays returns one ray per pixel in row-major order from the top-left.
func (v View) PixelRays() []picking.Ray {
	w, h := v.Intrinsics.Width, v.Intrinsics.Height
	rot := v.visionToWorld()
	in := v.Intrinsics

	rays := make([]picking.Ray, 0, w*h)
	for y := 0; y < h; y++ {
		b := (float64(y) + 0.5 - in.Cy) / in.F
		for x := 0; x < w; x++ {
			a := (float64(x) + 0.5 - in.Cx) / in.F
			rays = append(rays, picking.Ray{
				Origin:    v.Position,
				Direction: rot.MulVec(math.Vec3{X: a, Y: b, Z: 1}),
			})
		}
	}
	return rays
}

func (v View) visionToWorld() math.Mat3 {
	return math.ToVision(v.Rotation).Transpose()
}
