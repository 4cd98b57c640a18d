package geo

import (
	"fmt"
	"image"
	"os"

	"github.com/airbusgeo/godal"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/logger"
)

// ReadDTM reads the first band of a raster as a heightmap. No-data samples
// are replaced by the lowest valid elevation.
func ReadDTM(path string) (*terrain.Heightmap, error) {
	Init()
	log := logger.Named("geo")

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBands, path)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("reading geotransform of %s: %w", path, err)
	}
	epsg, err := EPSGOf(ds.SpatialRef())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	data := make([]float64, st.SizeX*st.SizeY)
	if err := bands[0].Read(0, 0, data, st.SizeX, st.SizeY); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	hm, err := terrain.NewHeightmap(st.SizeX, st.SizeY, data, gt, epsg)
	if err != nil {
		return nil, err
	}

	if nd, ok := bands[0].NoData(); ok {
		if n := hm.FillNoData(nd); n > 0 {
			log.Warn("replaced no-data samples with the lowest elevation",
				zap.String("path", path), zap.Int("samples", n))
		}
	}

	log.Info("DTM loaded",
		zap.String("path", path),
		zap.Int("width", st.SizeX),
		zap.Int("height", st.SizeY),
		zap.Int("epsg", epsg))
	return hm, nil
}

// ReadRGB reads an image through GDAL. Single band images are expanded to
// gray.
func ReadRGB(path string) (*image.RGBA, error) {
	Init()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBands, path)
	}

	w, h := st.SizeX, st.SizeY
	channels := make([][]byte, 3)
	for i := range channels {
		b := bands[0]
		if len(bands) >= 3 {
			b = bands[i]
		}
		channels[i] = make([]byte, w*h)
		if err := b.Read(0, 0, channels[i], w, h); err != nil {
			return nil, fmt.Errorf("reading band %d of %s: %w", i+1, path, err)
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[4*i] = channels[0][i]
		img.Pix[4*i+1] = channels[1][i]
		img.Pix[4*i+2] = channels[2][i]
		img.Pix[4*i+3] = 255
	}
	return img, nil
}

// ImageSize returns the pixel size of a raster without reading it.
func ImageSize(path string) (w, h int, err error) {
	Init()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	defer ds.Close()
	st := ds.Structure()
	return st.SizeX, st.SizeY, nil
}

// WritePNG writes an 8-bit RGB PNG through GDAL's PNG driver.
func WritePNG(path string, img *image.RGBA) error {
	Init()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	mem, err := godal.Create(godal.Memory, "", 3, godal.Byte, w, h)
	if err != nil {
		return fmt.Errorf("creating memory dataset: %w", err)
	}
	defer mem.Close()

	buf := make([]byte, w*h)
	for band := 0; band < 3; band++ {
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				buf[y*w+x] = row[4*x+band]
			}
		}
		if err := mem.Bands()[band].Write(0, 0, buf, w, h); err != nil {
			return fmt.Errorf("writing band %d: %w", band+1, err)
		}
	}

	out, err := mem.Translate(path, []string{"-of", "PNG"})
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}

// WriteXYZ writes a float32 GeoTIFF with three bands holding the x, y and z
// coordinate of every pixel. NaN values are written as NoData.
func WriteXYZ(path string, w, h int, data []float64, epsg int) error {
	Init()
	if len(data) != 3*w*h {
		return fmt.Errorf("xyz raster: %d values for %dx%d pixels", len(data), w, h)
	}

	var sr *godal.SpatialRef
	if epsg > 0 {
		var err error
		if sr, err = godal.NewSpatialRefFromEPSG(epsg); err != nil {
			return fmt.Errorf("%w: EPSG:%d: %v", ErrNoSRS, epsg, err)
		}
		defer sr.Close()
	}

	ds, err := godal.Create(godal.GTiff, path, 3, godal.Float32, w, h,
		godal.CreationOption("COMPRESS=DEFLATE"))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	fail := func(err error) error {
		ds.Close()
		os.Remove(path)
		return err
	}

	if sr != nil {
		if err := ds.SetSpatialRef(sr); err != nil {
			return fail(fmt.Errorf("setting EPSG:%d on %s: %w", epsg, path, err))
		}
	}

	buf := make([]float32, w*h)
	for band := 0; band < 3; band++ {
		for i := 0; i < w*h; i++ {
			buf[i] = float32(EncodeDepth(data[3*i+band]))
		}
		b := ds.Bands()[band]
		if err := b.SetNoData(NoData); err != nil {
			return fail(fmt.Errorf("setting no-data: %w", err))
		}
		if err := b.Write(0, 0, buf, w, h); err != nil {
			return fail(fmt.Errorf("writing band %d: %w", band+1, err))
		}
	}
	return ds.Close()
}
