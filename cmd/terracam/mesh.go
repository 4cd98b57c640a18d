package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/config"
	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/internal/tilestore"
	"github.com/Faultbox/terracam/internal/validate"
	"github.com/Faultbox/terracam/pkg/formats"
)

var flagExtent string

var createMeshCmd = &cobra.Command{
	Use:   "create-mesh <dtm> <out_dir> <out_name> <max_error>",
	Short: "Tile and simplify a DTM into boundary consistent meshes",
	Long: `Cut the DTM into tiles, simplify every tile until no sample deviates
more than max_error from the surface and write the tiles together with a
<out_name>.json manifest into the new directory out_dir.

Examples:
  terracam create-mesh dtm.tif ./tiles dtm 0.5
  terracam create-mesh dtm.tif ./tiles dtm 1 --tile-size 500 --format stl
  terracam create-mesh dtm.tif ./tiles dtm 1 --extent 2600000,1200000,2601000,1201000`,
	Args: cobra.ExactArgs(4),
	RunE: runCreateMesh,
}

func init() {
	config.RegisterMeshFlags(createMeshCmd.Flags())
	createMeshCmd.Flags().StringVar(&flagExtent, "extent", "", "Clip the DTM to minx,miny,maxx,maxy")
}

func runCreateMesh(cmd *cobra.Command, args []string) error {
	dtmPath, outDir, outName := args[0], args[1], args[2]

	if err := validate.ExistingFile(dtmPath); err != nil {
		return err
	}
	if err := validate.Name(outDir); err != nil {
		return fmt.Errorf("out_dir: %w", err)
	}
	if err := validate.Name(outName); err != nil {
		return fmt.Errorf("out_name: %w", err)
	}
	if err := validate.NewDir(outDir); err != nil {
		return err
	}
	maxError, err := strconv.ParseFloat(args[3], 64)
	if err != nil || !(maxError > 0) {
		return fmt.Errorf("%w: %q", terrain.ErrInvalidMaxError, args[3])
	}

	opts := terrain.BuildOptions{
		TileSize: cfg.Mesh.TileSize,
		MaxError: maxError,
		Workers:  cfg.Mesh.Workers,
	}
	if opts.Method, err = terrain.ParseMethod(cfg.Mesh.Method); err != nil {
		return err
	}
	format, err := formats.ParseFormat(cfg.Mesh.Format)
	if err != nil {
		return err
	}
	if flagExtent != "" {
		e, err := validate.Extent(flagExtent)
		if err != nil {
			return err
		}
		opts.Extent = &terrain.Extent{MinX: e[0], MinY: e[1], MaxX: e[2], MaxY: e[3]}
	}

	start := time.Now()
	hm, err := geo.ReadDTM(dtmPath)
	if err != nil {
		return err
	}
	grid, err := terrain.Build(cmd.Context(), hm, outName, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(outDir)), 0755); err != nil {
		return err
	}
	manifest, err := tilestore.Save(grid, outDir, outName, format)
	if err != nil {
		return err
	}

	logger.Info("mesh created",
		zap.String("manifest", manifest),
		zap.Int("tiles", len(grid.Tiles)),
		zap.Int("rows", grid.Rows),
		zap.Int("cols", grid.Cols),
		zap.Duration("elapsed", time.Since(start)))
	fmt.Println(manifest)
	return nil
}
