package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"robodash/internal/config"
	"robodash/internal/logger"
	"robodash/internal/repository/sqlite"
	"robodash/internal/services/ai"
	"robodash/internal/services/scenes"
)

var seedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the scene context database from the taxonomy CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(cfg.LogDirectory)

		db, err := sqlite.New(cfg.SceneDBPath)
		if err != nil {
			return fmt.Errorf("open scene database: %w", err)
		}
		defer db.Close()

		resolver, err := scenes.NewResolver(sqlite.NewSceneRepository(db), cfg.DefaultModel, log)
		if err != nil {
			return err
		}

		// Class filter is best effort; without a catalog the full taxonomy
		// vocabulary is stored as-is.
		var supported []string
		if catalog, err := ai.LoadCatalog(cfg.ModelDirectory); err == nil {
			supported, _ = catalog.Classes(cfg.DefaultModel)
		}

		if seedForce {
			return resolver.Seed(cfg.TaxonomyCSV, supported)
		}
		return resolver.EnsureSeeded(cfg.TaxonomyCSV, supported)
	},
}

func init() {
	seedCmd.Flags().BoolVarP(&seedForce, "force", "f", false, "Seed even when the database already has scene mappings")
	rootCmd.AddCommand(seedCmd)
}
