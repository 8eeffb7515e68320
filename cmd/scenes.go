package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"robodash/internal/config"
	"robodash/internal/logger"
	"robodash/internal/repository/sqlite"
	"robodash/internal/services/scenes"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "List the stored scene context mappings",
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

		contexts, err := resolver.All()
		if err != nil {
			return err
		}

		if len(contexts) == 0 {
			fmt.Println("No scene mappings found. Run `robodash seed` first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SCENE\tMODEL\tCLASSES")
		fmt.Fprintln(w, "-----\t-----\t-------")
		for _, sc := range contexts {
			model := sc.Model
			if model == "" {
				model = cfg.DefaultModel
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", sc.Name, model, strings.Join(sc.Classes, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(scenesCmd)
}
