package predict

import (
	"context"
	"errors"

	"github.com/artinstitute/galleryroom/internal/models"
)

// ErrNoStyle is returned when a prediction carries no usable style label
var ErrNoStyle = errors.New("no style returned from prediction")

// Prediction is the ranked response of a style predictor
type Prediction struct {
	Predicted *models.RankedStyle  `json:"predicted,omitempty"`
	TopK      []models.RankedStyle `json:"top_k"`
}

// Style returns the designated top prediction, falling back to the first
// ranked entry.
func (p *Prediction) Style() (string, error) {
	if p == nil {
		return "", ErrNoStyle
	}
	if p.Predicted != nil && p.Predicted.Style != "" {
		return p.Predicted.Style, nil
	}
	if len(p.TopK) > 0 && p.TopK[0].Style != "" {
		return p.TopK[0].Style, nil
	}
	return "", ErrNoStyle
}

// Predictor classifies an encoded image into ranked art styles
type Predictor interface {
	Predict(ctx context.Context, image models.ImageAsset, topK int) (*Prediction, error)
}
