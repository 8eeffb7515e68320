package cmd

import (
	"github.com/spf13/cobra"

	"robodash/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection pipeline and dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp()
		if err != nil {
			return err
		}
		return application.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
