package carousel

import (
	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/ring"
)

const (
	// MaxVisible is the deepest ring distance that is still painted
	MaxVisible = 3

	// DefaultSlotWidth is used until the client reports its viewport
	DefaultSlotWidth = 220.0

	minSlotWidth = 150.0
	maxSlotWidth = 280.0
	slotFraction = 0.2
	opacityStep  = 0.18
	verticalStep = 12.0
	baseZIndex   = 100
)

// Transform is the geometry of one carousel item relative to the focus
type Transform struct {
	Index       int     `json:"index"`
	Offset      int     `json:"offset"`
	Distance    int     `json:"distance"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`
	Opacity     float64 `json:"opacity"`
	ZIndex      int     `json:"z_index"`
	Interactive bool    `json:"interactive"`
	Center      bool    `json:"center"`
}

// Placement pairs an item with its transform
type Placement struct {
	Item      models.CarouselItem `json:"item"`
	Transform Transform           `json:"transform"`
}

// SlotWidth converts a viewport width into the lateral spacing between items
func SlotWidth(viewportWidth float64) float64 {
	if viewportWidth <= 0 {
		return DefaultSlotWidth
	}
	return min(maxSlotWidth, max(minSlotWidth, viewportWidth*slotFraction))
}

// Project computes the transform of every item in a ring of n around focus
func Project(n, focus int, slotWidth float64) []Transform {
	if n <= 0 {
		return nil
	}
	transforms := make([]Transform, n)
	for i := range transforms {
		transforms[i] = transformFor(i, ring.Offset(i, focus, n), slotWidth)
	}
	return transforms
}

// ProjectItems is Project applied to a concrete item sequence
func ProjectItems(items []models.CarouselItem, focus int, slotWidth float64) []Placement {
	transforms := Project(len(items), focus, slotWidth)
	placements := make([]Placement, len(items))
	for i, item := range items {
		placements[i] = Placement{Item: item, Transform: transforms[i]}
	}
	return placements
}

func transformFor(index, offset int, slotWidth float64) Transform {
	distance := offset
	if distance < 0 {
		distance = -distance
	}

	opacity := 0.0
	if distance <= MaxVisible {
		opacity = 1 - float64(distance)*opacityStep
	}

	return Transform{
		Index:       index,
		Offset:      offset,
		Distance:    distance,
		X:           float64(offset) * slotWidth,
		Y:           float64(distance) * verticalStep,
		Scale:       scaleFor(distance),
		Opacity:     opacity,
		ZIndex:      baseZIndex - distance,
		Interactive: distance <= MaxVisible,
		Center:      distance == 0,
	}
}

func scaleFor(distance int) float64 {
	switch distance {
	case 0:
		return 1
	case 1:
		return 0.78
	case 2:
		return 0.62
	default:
		return 0.5
	}
}
