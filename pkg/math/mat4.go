package math

import "math"

// Mat4 is a 4x4 matrix in column-major order (OpenGL compatible).
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns a perspective projection matrix.
// fovY is in radians, aspect is width/height.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1.0 / math.Tan(float64(fovY)/2.0))
	nf := 1.0 / (near - far)

	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// PinholeProjection returns the GL projection for a pinhole camera with focal
// length f and principal point (cx, cy) in pixels, image size w x h.
// Pixel rows grow downwards, matching the ray generation of the depth pass.
func PinholeProjection(f, cx, cy, w, h, near, far float64) Mat4 {
	nf := 1.0 / (near - far)
	return Mat4{
		float32(2 * f / w), 0, 0, 0,
		0, float32(2 * f / h), 0, 0,
		float32(1 - 2*cx/w), float32(2*cy/h - 1), float32((far + near) * nf), -1,
		0, 0, float32(2 * far * near * nf), 0,
	}
}

// FromPose returns the model matrix [R | p] of a camera or object.
func FromPose(r Mat3, p Vec3) Mat4 {
	return Mat4{
		float32(r[0]), float32(r[3]), float32(r[6]), 0,
		float32(r[1]), float32(r[4]), float32(r[7]), 0,
		float32(r[2]), float32(r[5]), float32(r[8]), 0,
		float32(p.X), float32(p.Y), float32(p.Z), 1,
	}
}

// ViewFromPose returns the inverse of FromPose(r, p), computed in double
// precision before narrowing.
func ViewFromPose(r Mat3, p Vec3) Mat4 {
	rt := r.Transpose()
	t := rt.MulVec(p).Scale(-1)
	return FromPose(rt, t)
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] =
				m[0*4+row]*other[col*4+0] +
					m[1*4+row]*other[col*4+1] +
					m[2*4+row]*other[col*4+2] +
					m[3*4+row]*other[col*4+3]
		}
	}
	return result
}

// TransformPoint transforms a 3D point by this matrix (assumes w=1).
func (m Mat4) TransformPoint(p [3]float32) [3]float32 {
	x := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	y := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	z := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if w != 0 && w != 1 {
		return [3]float32{x / w, y / w, z / w}
	}
	return [3]float32{x, y, z}
}

// Ptr returns a pointer to the first element (for OpenGL uniform calls).
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}
