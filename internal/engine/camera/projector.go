// Package camera turns photogrammetric camera poses into render and ray-casting views.
package camera

import (
	gomath "math"

	"github.com/Faultbox/terracam/pkg/math"
)

// Depth range shared by every view, in world units.
const (
	Near = 1.0
	Far  = 100000.0
)

// Orientation is the image layout that selects the FOV and focal length branch.
type Orientation int

const (
	Landscape Orientation = iota
	Portrait
)

func (o Orientation) String() string {
	if o == Portrait {
		return "portrait"
	}
	return "landscape"
}

// OrientationOf returns Portrait when h > w, otherwise Landscape.
// Square images count as landscape.
func OrientationOf(w, h int) Orientation {
	if h > w {
		return Portrait
	}
	return Landscape
}

// CorrectFOV returns the effective FOV in radians for an image of w x h.
// Landscape images scale the supplied FOV by h/w. paddingDeg is added afterwards.
func CorrectFOV(fov float64, w, h int, paddingDeg float64) float64 {
	eff := fov
	if OrientationOf(w, h) == Landscape {
		eff = fov * float64(h) / float64(w)
	}
	return eff + math.DegToRad(paddingDeg)
}

// FocalLength returns the pinhole focal length in pixels for the effective FOV.
// Both branches measure the FOV across the shorter image side.
func FocalLength(effFov float64, w, h int) float64 {
	if OrientationOf(w, h) == Portrait {
		return (float64(w) / 2) / gomath.Tan(effFov/2)
	}
	return (float64(h) / 2) / gomath.Tan(effFov/2)
}

// Intrinsics is a pinhole camera model in pixels.
type Intrinsics struct {
	F      float64
	Cx, Cy float64
	Width  int
	Height int
}

// NewIntrinsics returns a centered pinhole model for the effective FOV.
func NewIntrinsics(effFov float64, w, h int) Intrinsics {
	return Intrinsics{
		F:      FocalLength(effFov, w, h),
		Cx:     float64(w) / 2,
		Cy:     float64(h) / 2,
		Width:  w,
		Height: h,
	}
}

// Pose is a camera position in world coordinates plus alpha/zeta/kappa in radians.
type Pose struct {
	Position math.Vec3
	Alpha    float64
	Zeta     float64
	Kappa    float64
}

// Rotation returns the camera-to-world rotation.
func (p Pose) Rotation() math.Mat3 {
	return math.EulerToRotation(p.Alpha, p.Zeta, p.Kappa)
}

// Heading returns the compass azimuth of the viewing direction in degrees.
func (p Pose) Heading() float64 {
	return math.Heading(p.Alpha)
}
