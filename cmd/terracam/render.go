package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/cameras"
	"github.com/Faultbox/terracam/internal/config"
	"github.com/Faultbox/terracam/internal/engine/raycaster"
	"github.com/Faultbox/terracam/internal/engine/renderer"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/export"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/internal/pipeline"
	"github.com/Faultbox/terracam/internal/tilestore"
	"github.com/Faultbox/terracam/internal/validate"
	"github.com/Faultbox/terracam/internal/world"
)

var (
	flagCams       []string
	flagExportJSON bool
)

var renderJSONCmd = &cobra.Command{
	Use:   "render-json <camera_json> <tiles_json> <out_dir>",
	Short: "Render the cameras of a JSON file",
	Long: `Render every camera of camera_json over the tiles of tiles_json. For each
camera <name>.png is written to out_dir, and <name>_xyz.tif with the scene
coordinates of every pixel unless --xyz=false is given.

The camera file maps names to {img_w, img_h, alpha, zeta, kappa, fov, X0, Y0, Z0}.

Example:
  terracam render-json cams.json ./tiles/dtm.json ./out`,
	Args: cobra.ExactArgs(3),
	RunE: runRenderJSON,
}

var renderGPKGCmd = &cobra.Command{
	Use:   "render-gpkg <gpkg> <out_dir>",
	Short: "Render the oriented historical cameras of a GeoPackage",
	Long: `Render every oriented camera of the cameras layer over the tiles named by
the region layer. With --w-hist and a positive --padding a second rendering
<iid>_hist.png shows the historical image in its place in the scene.

Examples:
  terracam render-gpkg flights.gpkg ./out
  terracam render-gpkg flights.gpkg ./out --cam 1234 --cam 1240 --padding 10
  terracam render-gpkg flights.gpkg ./out --export-json`,
	Args: cobra.ExactArgs(2),
	RunE: runRenderGPKG,
}

func init() {
	config.RegisterDepthFlag(renderJSONCmd.Flags(), true)

	fs := renderGPKGCmd.Flags()
	config.RegisterDepthFlag(fs, false)
	config.RegisterHistoricalFlags(fs)
	fs.StringSliceVar(&flagCams, "cam", nil, "Only render these camera ids")
	fs.BoolVar(&flagExportJSON, "export-json", false, "Write the spot and render files for the web viewer")
}

func runRenderJSON(cmd *cobra.Command, args []string) error {
	camPath, manifest, outDir := args[0], args[1], args[2]
	if err := validate.ExistingFile(camPath); err != nil {
		return err
	}
	if err := validate.ExistingFile(manifest); err != nil {
		return err
	}

	cams, err := cameras.ReadSynthetic(camPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	ctx := cmd.Context()
	session, t, err := openScene(ctx, manifest)
	if err != nil {
		return err
	}
	defer session.Close()

	p := pipeline.New(session, outDir, t.EPSG, pipeline.GDAL{}, pipeline.GDAL{})
	_, err = p.RenderSynthetic(ctx, cams, cfg.Render.XYZ)
	return cameraErrors(len(cams), err)
}

func runRenderGPKG(cmd *cobra.Command, args []string) error {
	gpkgPath, outDir := args[0], args[1]
	if err := validate.ExistingFile(gpkgPath); err != nil {
		return err
	}

	gp, err := cameras.ReadGeoPackage(gpkgPath, flagCams)
	if err != nil {
		return err
	}
	manifest := tilesPath(gpkgPath, gp.TilesPath)
	if err := validate.ExistingFile(manifest); err != nil {
		return fmt.Errorf("region json_path: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	ctx := cmd.Context()
	session, t, err := openScene(ctx, manifest)
	if err != nil {
		return err
	}
	defer session.Close()

	h := cfg.Historical
	opts := pipeline.HistoricalOptions{
		Padding:  h.Padding,
		HistDist: h.HistDist,
		WithHist: h.WithHist,
		Width:    h.Width,
		Height:   h.Height,
		Depth:    h.XYZ,
	}
	if opts.WithHist && !(opts.Padding > 0) {
		logger.Warn("no rendering with the historical image without padding", zap.Float64("padding", opts.Padding))
	}

	var (
		exp  pipeline.Exporter
		recs *export.Exporter
	)
	if flagExportJSON {
		recs = export.New(outDir, gp.Name, t.EPSG, export.Options{
			Canvas: cfg.Export.Canvas,
			Thumb:  cfg.Export.Thumb,
		})
		exp = recs
	}

	p := pipeline.New(session, outDir, t.EPSG, pipeline.GDAL{}, pipeline.GDAL{})
	_, renderErr := p.RenderHistorical(ctx, gp.Cameras, opts, geo.ReadRGB, exp)

	if recs != nil {
		if _, _, err := recs.Write(); err != nil {
			return multierr.Append(cameraErrors(len(gp.Cameras), renderErr), err)
		}
	}
	return cameraErrors(len(gp.Cameras), renderErr)
}

// openScene loads the tiles of manifest and adds them to a new session on the
// configured backend.
func openScene(ctx context.Context, manifest string) (*scene.Session, *world.Terrain, error) {
	store, err := tilestore.Open(manifest)
	if err != nil {
		return nil, nil, err
	}
	t, err := world.Load(ctx, store, geo.ReadRGB)
	if err != nil {
		return nil, nil, err
	}
	t.Index.SetWorkers(cfg.Render.Workers)

	r, err := newBackend(cfg.Render)
	if err != nil {
		return nil, nil, err
	}
	session := scene.NewSession(r, t.Index, t.Origin)
	if err := t.Populate(session); err != nil {
		session.Close()
		return nil, nil, err
	}
	return session, t, nil
}

// newBackend creates the renderer named by rc.Backend.
func newBackend(rc config.RenderConfig) (scene.Renderable, error) {
	scene.Background = rc.Background
	switch rc.Backend {
	case "gl":
		r, err := renderer.New()
		if err != nil {
			return nil, err
		}
		return r, nil
	case "cpu":
		r := raycaster.New()
		r.SetWorkers(rc.Workers)
		return r, nil
	}
	return nil, fmt.Errorf("unknown render backend %q", rc.Backend)
}

// tilesPath resolves the manifest path stored in a GeoPackage. Relative paths
// that do not exist from the working directory are taken relative to the
// GeoPackage.
func tilesPath(gpkg, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return filepath.Join(filepath.Dir(gpkg), p)
}

// cameraErrors summarizes the combined camera errors of a run.
func cameraErrors(total int, err error) error {
	if err == nil {
		return nil
	}
	errs := multierr.Errors(err)
	for _, e := range errs {
		if errors.Is(e, context.Canceled) {
			return e
		}
	}
	return fmt.Errorf("%d of %d cameras failed: %w", len(errs), total, err)
}
