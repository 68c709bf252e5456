package pipeline

import (
	"time"

	"github.com/artinstitute/galleryroom/internal/carousel"
	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/styles"
)

// Snapshot is the read-only view of a Room returned to clients
type Snapshot struct {
	SessionID      string                `json:"session_id"`
	CreatedAt      time.Time             `json:"created_at"`
	FileName       string                `json:"file_name,omitempty"`
	PreviewURL     string                `json:"preview_url,omitempty"`
	Style          string                `json:"style"`
	FormattedStyle string                `json:"formatted_style"`
	TopK           []models.RankedStyle  `json:"top_k"`
	PredictStatus  models.Status         `json:"predict_status"`
	GalleryStatus  models.Status         `json:"gallery_status"`
	StatusLine     string                `json:"status_line"`
	Error          string                `json:"error"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Sources        []styles.Source       `json:"sources"`
	Accessed       string                `json:"accessed,omitempty"`
	Items          []models.CarouselItem `json:"items"`
	StartIndex     int                   `json:"start_index"`
	Focus          int                   `json:"focus"`
	CanAnalyze     bool                  `json:"can_analyze"`
	CanRetry       bool                  `json:"can_retry"`
	Active         *Artwork              `json:"active,omitempty"`
}

// Layout is the projected carousel at one focus
type Layout struct {
	Focus      int                  `json:"focus"`
	Count      int                  `json:"count"`
	Version    uint64               `json:"version"`
	SlotWidth  float64              `json:"slot_width"`
	Placements []carousel.Placement `json:"placements"`
}

// Artwork is the detail view of a single carousel item
type Artwork struct {
	Item           models.CarouselItem `json:"item"`
	Heading        string              `json:"heading"`
	FormattedStyle string              `json:"formatted_style,omitempty"`
	AltText        string              `json:"alt_text"`
}

func newArtwork(item models.CarouselItem) *Artwork {
	alt := item.DisplayArtist()
	if alt == "Unknown Artist" {
		alt = "Artwork"
	}
	return &Artwork{
		Item:           item,
		Heading:        item.DisplayArtist(),
		FormattedStyle: styles.FormatName(item.Style),
		AltText:        alt,
	}
}
