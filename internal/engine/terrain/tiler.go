package terrain

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/logger"
)

// Build partitions hm into tiles of opts.TileSize samples, simplifies every
// tile with opts.Method and snaps shared edges so neighbouring tiles meet
// without cracks. Tile ids are "<name>_<row>_<col>".
func Build(ctx context.Context, hm *Heightmap, name string, opts BuildOptions) (*Grid, error) {
	if opts.TileSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTileSize, opts.TileSize)
	}
	if !(opts.MaxError > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMaxError, opts.MaxError)
	}
	if opts.Method == nil {
		return nil, fmt.Errorf("%w: none given", ErrUnknownMethod)
	}
	if opts.Extent != nil {
		cropped, err := hm.Crop(*opts.Extent)
		if err != nil {
			return nil, err
		}
		hm = cropped
	}
	if hm.Width < 2 || hm.Height < 2 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrRasterTooSmall, hm.Width, hm.Height)
	}

	log := logger.Named("terrain")
	ts := opts.TileSize
	g := &Grid{
		Name: name,
		EPSG: hm.EPSG,
		Cols: ceilDiv(hm.Width-1, ts),
		Rows: ceilDiv(hm.Height-1, ts),
	}
	g.Tiles = make([]*Tile, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			i := r*g.Cols + c
			g.Tiles[i] = &Tile{
				ID:    fmt.Sprintf("%s_%d_%d", name, r, c),
				Index: i,
				Row:   r,
				Col:   c,
				Col0:  c * ts,
				Col1:  min((c+1)*ts, hm.Width-1),
				Row0:  r * ts,
				Row1:  min((r+1)*ts, hm.Height-1),
			}
		}
	}

	log.Info("building tile grid",
		zap.String("name", name),
		zap.Int("width", hm.Width),
		zap.Int("height", hm.Height),
		zap.Int("rows", g.Rows),
		zap.Int("cols", g.Cols),
		zap.String("method", opts.Method.Name()),
		zap.Float64("max_error", opts.MaxError))

	start := time.Now()
	tris, err := simplifyAll(ctx, hm, g, opts)
	if err != nil {
		return nil, err
	}
	log.Info("tiles simplified", zap.Duration("elapsed", time.Since(start)))

	inserted, err := snapBoundaries(g, tris)
	if err != nil {
		return nil, err
	}
	log.Info("tile boundaries snapped", zap.Int("inserted", inserted))

	for i, t := range g.Tiles {
		t.Mesh, t.Bounds = toWorld(hm, t, tris[i])
		log.Debug("tile ready",
			zap.String("tid", t.ID),
			zap.Int("vertices", len(t.Mesh.Vertices)),
			zap.Int("triangles", len(t.Mesh.Faces)))
	}
	return g, nil
}

// simplifyAll runs the method on every tile with a bounded number of
// goroutines. Each worker writes only its own result slot.
func simplifyAll(ctx context.Context, hm *Heightmap, g *Grid, opts BuildOptions) ([]Triangulation, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	tris := make([]Triangulation, len(g.Tiles))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				t := g.Tiles[i]
				block := hm.window(t.Col0, t.Col1, t.Row0, t.Row1)
				tris[i] = opts.Method.Simplify(block, t.Col1-t.Col0+1, t.Row1-t.Row0+1, opts.MaxError)
			}
		}()
	}

feed:
	for i := range g.Tiles {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simplifying tiles: %w", err)
	}
	return tris, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
