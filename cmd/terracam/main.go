// terracam builds tiled terrain meshes from DTM rasters and renders them
// from synthetic or historical cameras.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/config"
	"github.com/Faultbox/terracam/internal/geo"
	"github.com/Faultbox/terracam/internal/logger"
)

// cfg is loaded before every command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "terracam",
	Short: "Terrain tiling and camera rendering",
	Long: `terracam turns a DTM raster into simplified, seamless tile meshes and
renders the tiles from camera positions.

Commands:
  create-mesh   tile and simplify a DTM
  add-ortho     bind an orthophoto to the tiles
  render-json   render cameras from a JSON file
  render-gpkg   render oriented historical cameras from a GeoPackage

Settings are read from terracam.yaml in the working directory or from the
user config directory; flags override them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		if err := logger.Init(c.Logging.Level, c.Logging.LogFile); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		cfg = c
		geo.Init()
		logger.Sugar.Debugf("config: %+v", cfg)
		return nil
	},
}

func init() {
	config.RegisterGlobalFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(createMeshCmd, addOrthoCmd, renderJSONCmd, renderGPKGCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		logger.Sync()
		return
	}

	// Before the config is loaded the logger still discards everything.
	if cfg != nil {
		logger.Error("command failed", zap.Error(err))
		logger.Sync()
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
