package math

import (
	"math"
	"testing"
)

func TestEulerToRotationOrthonormal(t *testing.T) {
	const steps = 9
	for i := 0; i < steps; i++ {
		for j := 0; j < steps; j++ {
			for k := 0; k < steps; k++ {
				a := 2 * math.Pi * float64(i) / steps
				z := 2 * math.Pi * float64(j) / steps
				kap := 2 * math.Pi * float64(k) / steps

				r := EulerToRotation(a, z, kap)
				got := r.Mul(r.Transpose())
				want := Identity3()
				for n := range got {
					if math.Abs(got[n]-want[n]) > 1e-12 {
						t.Fatalf("R*R^T at (%v,%v,%v) element %d: got %v, want %v", a, z, kap, n, got[n], want[n])
					}
				}
			}
		}
	}
}

func TestEulerToRotationFormula(t *testing.T) {
	a, z, k := 0.3, 1.2, -0.8
	r := EulerToRotation(a, z, k)

	tests := []struct {
		row, col int
		want     float64
	}{
		{0, 0, math.Cos(a)*math.Cos(z)*math.Cos(k) - math.Sin(a)*math.Sin(k)},
		{0, 1, -math.Cos(a)*math.Cos(z)*math.Sin(k) - math.Sin(a)*math.Cos(k)},
		{0, 2, math.Cos(a) * math.Sin(z)},
		{1, 0, math.Sin(a)*math.Cos(z)*math.Cos(k) + math.Cos(a)*math.Sin(k)},
		{1, 1, -math.Sin(a)*math.Cos(z)*math.Sin(k) + math.Cos(a)*math.Cos(k)},
		{1, 2, math.Sin(a) * math.Sin(z)},
		{2, 0, -math.Sin(z) * math.Cos(k)},
		{2, 1, math.Sin(z) * math.Sin(k)},
		{2, 2, math.Cos(z)},
	}
	for _, tt := range tests {
		if got := r.At(tt.row, tt.col); got != tt.want {
			t.Errorf("R[%d,%d]: got %v, want %v", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestEulerToRotationReproducible(t *testing.T) {
	a := EulerToRotation(0.123456789, 1.987654321, 3.14159)
	b := EulerToRotation(0.123456789, 1.987654321, 3.14159)
	if a != b {
		t.Error("identical inputs should give bit-identical matrices")
	}
}

func TestEulerToRotationNadir(t *testing.T) {
	// zeta = 0 looks straight down: the camera -Z axis maps to world -Z.
	r := EulerToRotation(0.7, 0, 0.2)
	look := r.MulVec(Vec3{0, 0, -1})
	if math.Abs(look.X) > 1e-12 || math.Abs(look.Y) > 1e-12 || math.Abs(look.Z+1) > 1e-12 {
		t.Errorf("nadir look direction: got %v, want (0,0,-1)", look)
	}
}

func TestToVision(t *testing.T) {
	r := EulerToRotation(0.4, 0.9, 0.1)
	v := ToVision(r)

	// Vision Z axis (forward) equals the photogrammetric -Z axis in world space.
	fwdVision := v.Transpose().MulVec(Vec3{0, 0, 1})
	fwdPhoto := r.MulVec(Vec3{0, 0, -1})
	if fwdVision.Distance(fwdPhoto) > 1e-12 {
		t.Errorf("forward axis: got %v, want %v", fwdVision, fwdPhoto)
	}

	// Vision Y (down) equals photogrammetric -Y.
	downVision := v.Transpose().MulVec(Vec3{0, 1, 0})
	downPhoto := r.MulVec(Vec3{0, -1, 0})
	if downVision.Distance(downPhoto) > 1e-12 {
		t.Errorf("down axis: got %v, want %v", downVision, downPhoto)
	}
}

func TestHeading(t *testing.T) {
	tests := []struct {
		name  string
		alpha float64
		want  float64
	}{
		{"looks west", 0, 270},
		{"looks south", math.Pi / 2, 180},
		{"looks east", math.Pi, 90},
		{"looks north", 3 * math.Pi / 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Heading(tt.alpha)
			if math.Abs(got-tt.want) > 1e-9 && math.Abs(got-tt.want-360) > 1e-9 {
				t.Errorf("Heading(%v) = %v, want %v", tt.alpha, got, tt.want)
			}
		})
	}
}
