package cmd

import (
	"fmt"
	"log/slog"

	"github.com/artinstitute/galleryroom/internal/config"
	"github.com/artinstitute/galleryroom/internal/gallery"
	"github.com/artinstitute/galleryroom/internal/pipeline"
	"github.com/artinstitute/galleryroom/internal/predict"
	"github.com/artinstitute/galleryroom/internal/reducer"
	"github.com/artinstitute/galleryroom/internal/styles"
)

func loadStyles(cfg *config.Config) (*styles.Lookup, error) {
	if cfg.StylesFile != "" {
		return styles.Load(cfg.StylesFile)
	}
	return styles.Default()
}

// buildDeps wires the configured reducer, predictor and gallery source
func buildDeps(cfg *config.Config) (pipeline.Deps, error) {
	lookup, err := loadStyles(cfg)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("failed to load style table: %w", err)
	}

	var predictor predict.Predictor
	switch cfg.PredictProvider {
	case config.ProviderGemini:
		predictor = predict.NewGeminiPredictor(cfg.PredictModel, lookup.Labels())
	case config.ProviderOpenAI:
		predictor = predict.NewOpenAIPredictor(cfg.PredictModel, lookup.Labels(), cfg.RequestTimeout)
	case config.ProviderOllama:
		predictor = predict.NewOllamaPredictor(cfg.PredictModel, lookup.Labels(), cfg.RequestTimeout)
	default:
		predictor = predict.NewHTTPPredictor(cfg.StyleAPIURL, cfg.RequestTimeout)
	}

	var source gallery.Source
	if cfg.GalleryFile != "" {
		fileSource, err := gallery.NewFileSource(cfg.GalleryFile)
		if err != nil {
			return pipeline.Deps{}, fmt.Errorf("failed to load gallery file: %w", err)
		}
		source = fileSource
	} else {
		source = gallery.NewHTTPSource(cfg.StyleAPIURL, cfg.RequestTimeout)
	}

	slog.Info("Services configured",
		"predict_provider", cfg.PredictProvider,
		"style_api_url", cfg.StyleAPIURL,
		"gallery_file", cfg.GalleryFile,
		"styles", len(lookup.Labels()))

	return pipeline.Deps{
		Reducer:   reducer.New(),
		Predictor: predictor,
		Gallery:   source,
		Styles:    lookup,
		Limits: pipeline.Limits{
			PredictMaxBytes: cfg.PredictMaxBytes,
			MaxUploadBytes:  cfg.MaxUploadBytes,
			GalleryLimit:    cfg.GalleryLimit,
			TopK:            cfg.TopK,
		},
	}, nil
}
