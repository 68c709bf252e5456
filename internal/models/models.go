package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserArtworkID is the synthetic id given to the uploaded artwork in a carousel
const UserArtworkID = "user-upload"

// UserArtist is the artist label shown for the uploaded artwork
const UserArtist = "You"

// ImageAsset is an uploaded or re-encoded image payload
type ImageAsset struct {
	Data      []byte `json:"-"`
	MediaType string `json:"media_type"`
	Name      string `json:"name"`
}

// Size returns the byte length of the payload
func (a ImageAsset) Size() int64 {
	return int64(len(a.Data))
}

// CarouselItem is either a gallery artwork or the user's own upload
type CarouselItem struct {
	ID       string `json:"id" parquet:"id"`
	Title    string `json:"title" parquet:"title"`
	Artist   string `json:"artist" parquet:"artist"`
	Style    string `json:"style" parquet:"style"`
	ImageURL string `json:"image_url" parquet:"image_url"`
	IsUser   bool   `json:"is_user,omitempty" parquet:"-"`
}

// DisplayArtist returns the plaque label for the item
func (c CarouselItem) DisplayArtist() string {
	artist := strings.TrimSpace(c.Artist)
	if artist == "" {
		return "Unknown Artist"
	}
	return artist
}

// Status is the loading/error record exposed for each async step
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error"`
}

// RankedStyle is one entry of a style prediction ranking
type RankedStyle struct {
	Style      string  `json:"style"`
	Confidence float64 `json:"confidence"`
}

// Session ties a browser to its gallery room
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrMissingEndpoint is returned when no service base URL is configured
var ErrMissingEndpoint = errors.New("missing API URL")

// ValidationError is returned when a selected file cannot be used
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ServiceError is returned when the prediction or gallery service fails.
// Err holds the transport failure, if any, and is left out of Display.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Display() + ": " + e.Err.Error()
	}
	return e.Display()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Display is the message safe to show a user
func (e *ServiceError) Display() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed", e.Service)
	}
	return fmt.Sprintf("%s request failed (%d)", e.Service, e.StatusCode)
}
