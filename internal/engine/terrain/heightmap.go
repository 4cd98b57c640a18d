package terrain

import (
	"fmt"
	"math"
)

// Heightmap is a single band elevation raster.
type Heightmap struct {
	Width  int
	Height int
	Data   []float64 // Row-major, Width*Height samples

	// GeoTransform maps sample (col, row) to world:
	// x = gt[0] + col*gt[1] + row*gt[2], y = gt[3] + col*gt[4] + row*gt[5]
	GeoTransform [6]float64
	EPSG         int
}

// NewHeightmap wraps raw samples. len(data) must equal w*h.
func NewHeightmap(w, h int, data []float64, gt [6]float64, epsg int) (*Heightmap, error) {
	if w < 0 || h < 0 || len(data) != w*h {
		return nil, fmt.Errorf("heightmap: %d samples for %dx%d raster", len(data), w, h)
	}
	return &Heightmap{Width: w, Height: h, Data: data, GeoTransform: gt, EPSG: epsg}, nil
}

// At returns the sample at (col, row).
func (h *Heightmap) At(col, row int) float64 {
	return h.Data[row*h.Width+col]
}

// World maps a sample position to world x, y.
func (h *Heightmap) World(col, row float64) (x, y float64) {
	gt := h.GeoTransform
	return gt[0] + col*gt[1] + row*gt[2], gt[3] + col*gt[4] + row*gt[5]
}

// FillNoData replaces samples equal to nodata, and NaNs, with the minimum
// valid elevation. It returns the number of replaced samples.
func (h *Heightmap) FillNoData(nodata float64) int {
	isNoData := func(v float64) bool { return math.IsNaN(v) || v == nodata }

	lowest := math.Inf(1)
	for _, v := range h.Data {
		if !isNoData(v) && v < lowest {
			lowest = v
		}
	}
	if math.IsInf(lowest, 1) {
		lowest = 0
	}

	n := 0
	for i, v := range h.Data {
		if isNoData(v) {
			h.Data[i] = lowest
			n++
		}
	}
	return n
}

// Crop returns the smallest sample window covering e. e must lie within the
// raster bounds, and only north-up rasters can be cropped.
func (h *Heightmap) Crop(e Extent) (*Heightmap, error) {
	if e.MinX >= e.MaxX || e.MinY >= e.MaxY {
		return nil, fmt.Errorf("%w: min must be below max: %+v", ErrInvalidExtent, e)
	}
	gt := h.GeoTransform
	if gt[2] != 0 || gt[4] != 0 || gt[1] == 0 || gt[5] == 0 {
		return nil, fmt.Errorf("%w: raster is not north-up", ErrInvalidExtent)
	}

	ca := (e.MinX - gt[0]) / gt[1]
	cb := (e.MaxX - gt[0]) / gt[1]
	ra := (e.MaxY - gt[3]) / gt[5]
	rb := (e.MinY - gt[3]) / gt[5]

	const eps = 1e-9
	if math.Min(ca, cb) < -eps || math.Min(ra, rb) < -eps ||
		math.Max(ca, cb) > float64(h.Width)+eps || math.Max(ra, rb) > float64(h.Height)+eps {
		return nil, fmt.Errorf("%w: %+v reaches outside the raster", ErrInvalidExtent, e)
	}

	col0 := int(math.Floor(math.Min(ca, cb)))
	col1 := int(math.Ceil(math.Max(ca, cb)))
	row0 := int(math.Floor(math.Min(ra, rb)))
	row1 := int(math.Ceil(math.Max(ra, rb)))

	// An extent on the far raster edge ends on the last sample.
	col0, col1 = max(col0, 0), min(col1, h.Width-1)
	row0, row1 = max(row0, 0), min(row1, h.Height-1)

	data := h.window(col0, col1, row0, row1)

	x0, y0 := h.World(float64(col0), float64(row0))
	cropped := gt
	cropped[0], cropped[3] = x0, y0

	return &Heightmap{Width: col1 - col0 + 1, Height: row1 - row0 + 1, Data: data, GeoTransform: cropped, EPSG: h.EPSG}, nil
}

// window copies the inclusive block [c0,c1] x [r0,r1].
func (h *Heightmap) window(c0, c1, r0, r1 int) []float64 {
	w := c1 - c0 + 1
	out := make([]float64, 0, w*(r1-r0+1))
	for r := r0; r <= r1; r++ {
		out = append(out, h.Data[r*h.Width+c0:r*h.Width+c1+1]...)
	}
	return out
}
