package cmd

import (
	"os"

	"github.com/artinstitute/galleryroom/internal/config"
	"github.com/artinstitute/galleryroom/internal/styles"
	"github.com/spf13/cobra"
)

type styleReport struct {
	Label       string          `yaml:"label" json:"label"`
	Title       string          `yaml:"title" json:"title"`
	Description string          `yaml:"description" json:"description"`
	Known       bool            `yaml:"known" json:"known"`
	Sources     []styles.Source `yaml:"sources,omitempty" json:"sources,omitempty"`
	Accessed    string          `yaml:"accessed,omitempty" json:"accessed,omitempty"`
}

func newStyleCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "style [LABEL]",
		Short: "Show gallery metadata for a style label",
		Long: `Looks a predicted style label up in the style table (case-insensitive) and
prints the gallery title, description and sources. Without a label, lists
every known label. STYLES_FILE overrides the built-in table.`,
		Example: `  galleryroom style Post_Impressionism
  galleryroom style`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, err := loadStyles(&config.Config{StylesFile: os.Getenv("STYLES_FILE")})
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return writeOutput(cmd.OutOrStdout(), format, lookup.Labels())
			}

			label := args[0]
			meta, known := lookup.Get(label)
			return writeOutput(cmd.OutOrStdout(), format, styleReport{
				Label:       label,
				Title:       styles.Title(label),
				Description: lookup.Description(label),
				Known:       known,
				Sources:     meta.Sources,
				Accessed:    meta.Accessed,
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")

	return cmd
}
