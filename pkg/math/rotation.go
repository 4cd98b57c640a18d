package math

import "math"

// EulerToRotation converts photogrammetric alpha/zeta/kappa angles (radians)
// into the camera-to-world rotation matrix.
//
// The camera looks along its local -Z axis; the columns of the result are the
// camera axes expressed in world coordinates.
func EulerToRotation(alpha, zeta, kappa float64) Mat3 {
	ca, sa := math.Cos(alpha), math.Sin(alpha)
	cz, sz := math.Cos(zeta), math.Sin(zeta)
	ck, sk := math.Cos(kappa), math.Sin(kappa)

	return Mat3{
		ca*cz*ck - sa*sk, -ca*cz*sk - sa*ck, ca * sz,
		sa*cz*ck + ca*sk, -sa*cz*sk + ca*ck, sa * sz,
		-sz * ck, sz * sk, cz,
	}
}

// ToVision converts a photogrammetric rotation into the pinhole (vision)
// convention: world-to-camera, Z forward, Y down.
func ToVision(r Mat3) Mat3 {
	return Diag(1, -1, -1).Mul(r.Transpose())
}

// Heading returns the compass azimuth in degrees [0, 360) of the horizontal
// viewing direction of a camera with the given alpha.
func Heading(alpha float64) float64 {
	h := math.Mod(270-alpha*180/math.Pi, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
