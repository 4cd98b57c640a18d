// Package texture provides image conversion and sampling shared by the render backends.
package texture

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ImageToRGBA converts any image.Image to an *image.RGBA whose bounds start at
// the origin. If flipY is true, the rows are reversed.
func ImageToRGBA(img image.Image, flipY bool) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	if flipY {
		FlipVertical(rgba)
	}
	return rgba
}

// FlipVertical reverses the rows of img in place.
func FlipVertical(img *image.RGBA) {
	h := img.Bounds().Dy()
	stride := img.Stride
	row := make([]byte, stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*stride : (y+1)*stride]
		bottom := img.Pix[(h-1-y)*stride : (h-y)*stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Sample returns the bilinear sample of img at texture coordinate (u, v).
// Row v*H of the stored image corresponds to v, matching a GL upload of
// img.Pix with clamp-to-edge wrapping.
func Sample(img *image.RGBA, u, v float64) color.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return color.RGBA{}
	}

	x := u*float64(w) - 0.5
	y := v*float64(h) - 0.5
	x0, y0 := floor(x), floor(y)
	fx, fy := x-float64(x0), y-float64(y0)

	c00 := texel(img, x0, y0, w, h)
	c10 := texel(img, x0+1, y0, w, h)
	c01 := texel(img, x0, y0+1, w, h)
	c11 := texel(img, x0+1, y0+1, w, h)

	var out [4]uint8
	for i := range out {
		top := c00[i]*(1-fx) + c10[i]*fx
		bottom := c01[i]*(1-fx) + c11[i]*fx
		out[i] = uint8(top*(1-fy) + bottom*fy + 0.5)
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

func texel(img *image.RGBA, x, y, w, h int) [4]float64 {
	x = clamp(x, 0, w-1)
	y = clamp(y, 0, h-1)
	i := y*img.Stride + x*4
	p := img.Pix[i : i+4 : i+4]
	return [4]float64{float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])}
}

func floor(f float64) int {
	i := int(f)
	if float64(i) > f {
		i--
	}
	return i
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
