package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/config"
	"github.com/Faultbox/terracam/internal/logger"
	"github.com/Faultbox/terracam/internal/ortho"
	"github.com/Faultbox/terracam/internal/tilestore"
	"github.com/Faultbox/terracam/internal/validate"
)

var addOrthoCmd = &cobra.Command{
	Use:   "add-ortho <op_path> <json_path>",
	Short: "Cut an orthophoto into tile textures",
	Long: `Warp the orthophoto to the extent of every tile listed in the manifest
and store the results in the op directory next to it. Rendering uses them as
tile textures.

Example:
  terracam add-ortho ortho.tif ./tiles/dtm.json --op-res 0.5`,
	Args: cobra.ExactArgs(2),
	RunE: runAddOrtho,
}

func init() {
	config.RegisterOrthoFlags(addOrthoCmd.Flags())
}

func runAddOrtho(cmd *cobra.Command, args []string) error {
	src, manifest := args[0], args[1]
	for _, p := range args {
		if err := validate.ExistingFile(p); err != nil {
			return err
		}
	}

	store, err := tilestore.Open(manifest)
	if err != nil {
		return err
	}
	n, err := ortho.Bind(cmd.Context(), src, store, ortho.Options{
		Resolution: cfg.Ortho.Resolution,
		Resampling: cfg.Ortho.Resampling,
		Format:     cfg.Ortho.Format,
	})
	if err != nil {
		return err
	}

	logger.Info("orthophoto bound", zap.String("dir", store.OrthoDir), zap.Int("tiles", n))
	fmt.Println(store.OrthoDir)
	return nil
}
