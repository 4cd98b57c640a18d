package export

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	gomath "math"

	"golang.org/x/image/draw"
)

// White is the padding color of square previews.
var White = color.RGBA{255, 255, 255, 255}

// Thumbnail scales img down so that neither side exceeds limit, keeping the
// aspect ratio. Images that already fit are copied unchanged.
func Thumbnail(img image.Image, limit int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > limit || h > limit {
		if w >= h {
			h = max(1, int(gomath.Round(float64(h)*float64(limit)/float64(w))))
			w = limit
		} else {
			w = max(1, int(gomath.Round(float64(w)*float64(limit)/float64(h))))
			h = limit
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Square pads img with bg to a square, centering the shorter side.
func Square(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := max(w, h)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	off := image.Pt((side-w)/2, (side-h)/2)
	draw.Draw(dst, image.Rectangle{Min: off, Max: off.Add(b.Size())}, img, b.Min, draw.Src)
	return dst
}

// CenterCrop returns the largest centered square of img scaled to size x size.
func CenterCrop(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	box := b
	if w > h {
		d := (w - h) / 2
		box = image.Rect(b.Min.X+d, b.Min.Y, b.Min.X+d+h, b.Max.Y)
	} else if h > w {
		d := (h - w) / 2
		box = image.Rect(b.Min.X, b.Min.Y+d, b.Max.X, b.Min.Y+d+w)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, box, draw.Src, nil)
	return dst
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI returns img as a base64 PNG data URI.
func DataURI(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
