package cmd

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/reducer"
	"github.com/spf13/cobra"
)

type reduceReport struct {
	Input        string  `yaml:"input" json:"input"`
	InputBytes   int64   `yaml:"inputbytes" json:"input_bytes"`
	Budget       string  `yaml:"budget" json:"budget"`
	Reduced      bool    `yaml:"reduced" json:"reduced"`
	Output       string  `yaml:"output,omitempty" json:"output,omitempty"`
	OutputBytes  int64   `yaml:"outputbytes" json:"output_bytes"`
	Scale        float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Quality      float64 `yaml:"quality,omitempty" json:"quality,omitempty"`
	Width        int     `yaml:"width,omitempty" json:"width,omitempty"`
	Height       int     `yaml:"height,omitempty" json:"height,omitempty"`
	EncodesTried int     `yaml:"encodestried" json:"encodes_tried"`
}

func newReduceCmd() *cobra.Command {
	var budget int64
	var outDir string
	var format string

	cmd := &cobra.Command{
		Use:   "reduce FILE",
		Short: "Shrink an image below the prediction upload budget",
		Long: `Runs the size reducer on a local image exactly as the server does before
calling the style-prediction service. If the file already fits the budget it
is left alone; otherwise a <name>-predict.jpg is written next to it (or into
--out) and the winning scale/quality pair is reported.`,
		Example: `  # Reduce to the default 300KB budget
  galleryroom reduce ./starry-night.png

  # Reduce to 100KB and print JSON
  galleryroom reduce ./starry-night.png --budget 102400 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReduce(cmd, args[0], budget, outDir, format)
		},
	}

	cmd.Flags().Int64Var(&budget, "budget", 300*1024, "Maximum output size in bytes")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for the reduced file (defaults to the input's directory)")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")

	return cmd
}

func executeReduce(cmd *cobra.Command, path string, budget int64, outDir, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	asset := models.ImageAsset{Data: data, MediaType: mediaType, Name: filepath.Base(path)}

	result, err := reducer.New().Reduce(cmd.Context(), asset, budget)
	if err != nil {
		return err
	}

	report := reduceReport{
		Input:        path,
		InputBytes:   asset.Size(),
		Budget:       reducer.FormatBudget(budget),
		Reduced:      result.Reduced,
		OutputBytes:  result.Asset.Size(),
		Scale:        result.Attempt.Scale,
		Quality:      result.Attempt.Quality,
		Width:        result.Attempt.Width,
		Height:       result.Attempt.Height,
		EncodesTried: result.Tries,
	}

	if result.Reduced {
		if outDir == "" {
			outDir = filepath.Dir(path)
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		report.Output = filepath.Join(outDir, result.Asset.Name)
		if err := os.WriteFile(report.Output, result.Asset.Data, 0644); err != nil {
			return fmt.Errorf("failed to write reduced image: %w", err)
		}
	}

	return writeOutput(cmd.OutOrStdout(), format, report)
}
