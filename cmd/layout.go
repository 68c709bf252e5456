package cmd

import (
	"fmt"

	"github.com/artinstitute/galleryroom/internal/carousel"
	"github.com/artinstitute/galleryroom/internal/ring"
	"github.com/spf13/cobra"
)

type layoutRow struct {
	Index       int     `yaml:"index" json:"index"`
	Offset      int     `yaml:"offset" json:"offset"`
	X           float64 `yaml:"x" json:"x"`
	Y           float64 `yaml:"y" json:"y"`
	Scale       float64 `yaml:"scale" json:"scale"`
	Opacity     float64 `yaml:"opacity" json:"opacity"`
	ZIndex      int     `yaml:"zindex" json:"z_index"`
	Interactive bool    `yaml:"interactive" json:"interactive"`
}

type layoutReport struct {
	Count     int         `yaml:"count" json:"count"`
	Focus     int         `yaml:"focus" json:"focus"`
	SlotWidth float64     `yaml:"slotwidth" json:"slot_width"`
	Items     []layoutRow `yaml:"items" json:"items"`
}

func newLayoutCmd() *cobra.Command {
	var count, focus int
	var viewport float64
	var format string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print carousel transforms for a ring of items",
		Long: `Projects a carousel of --count items around --focus and prints the
offset, position, scale, opacity and stacking order of every item.`,
		Example: `  # The default 25-item wall focused on the upload
  galleryroom layout --count 25 --focus 12

  # A small ring on a phone-sized viewport
  galleryroom layout --count 7 --focus 3 --viewport 390 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}

			slot := carousel.SlotWidth(viewport)
			focus = ring.Normalize(focus, count)
			report := layoutReport{Count: count, Focus: focus, SlotWidth: slot}
			for _, t := range carousel.Project(count, focus, slot) {
				report.Items = append(report.Items, layoutRow{
					Index:       t.Index,
					Offset:      t.Offset,
					X:           t.X,
					Y:           t.Y,
					Scale:       t.Scale,
					Opacity:     t.Opacity,
					ZIndex:      t.ZIndex,
					Interactive: t.Interactive,
				})
			}
			return writeOutput(cmd.OutOrStdout(), format, report)
		},
	}

	cmd.Flags().IntVar(&count, "count", 25, "Number of items on the ring")
	cmd.Flags().IntVar(&focus, "focus", 12, "Focused index")
	cmd.Flags().Float64Var(&viewport, "viewport", 0, "Viewport width in pixels (0 uses the default slot)")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")

	return cmd
}
