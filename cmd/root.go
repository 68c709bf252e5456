package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "galleryroom",
		Short: "Style-matched gallery walls for uploaded artwork",
		Long: `Gallery Room shrinks an uploaded artwork, asks a style-prediction service
what movement it belongs to, and hangs it in the middle of a circular wall
of related works from the collection.

It serves the browser API and includes offline tools for the reducer,
the carousel layout and the style table.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReduceCmd())
	cmd.AddCommand(newLayoutCmd())
	cmd.AddCommand(newStyleCmd())

	return cmd
}
