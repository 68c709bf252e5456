package gallery

import (
	"context"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
)

// DefaultLimit is the number of works requested for one carousel
const DefaultLimit = 24

// Source returns artworks related to a style
type Source interface {
	Fetch(ctx context.Context, style string, limit int) ([]models.CarouselItem, error)
}

// Response is the payload of the gallery endpoint
type Response struct {
	Style string                `json:"style"`
	Items []models.CarouselItem `json:"items"`
}

// Trim caps items at limit. A non-positive limit keeps everything.
func Trim(items []models.CarouselItem, limit int) []models.CarouselItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func sameStyle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
