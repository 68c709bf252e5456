package reducer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
	"golang.org/x/image/draw"
)

// OutputMediaType is the media type of every re-encoded asset
const OutputMediaType = "image/jpeg"

// ErrCompressionExhausted is returned when no scale/quality pair fits the budget
var ErrCompressionExhausted = errors.New("unable to compress image")

// DefaultScales are tried in order, least aggressive first
var DefaultScales = []float64{1, 0.85, 0.7, 0.6, 0.5, 0.4, 0.3, 0.25, 0.2}

// DefaultQualities are tried in order for every scale, highest first
var DefaultQualities = []float64{0.92, 0.85, 0.78, 0.72, 0.66, 0.6, 0.55, 0.5, 0.45, 0.4, 0.35}

// Attempt is one point of the (scale, quality) search
type Attempt struct {
	Scale   float64 `json:"scale"`
	Quality float64 `json:"quality"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
}

// Result describes the outcome of a successful Reduce
type Result struct {
	Asset   models.ImageAsset
	Reduced bool
	Attempt Attempt
	Tries   int
}

// Reducer shrinks images below a byte budget by searching scale first and
// quality second, returning the first encoding that fits.
type Reducer struct {
	decoder   Decoder
	encoder   Encoder
	scaler    draw.Scaler
	scales    []float64
	qualities []float64
}

// Option configures a Reducer
type Option func(*Reducer)

// WithDecoder replaces the image decoder
func WithDecoder(d Decoder) Option {
	return func(r *Reducer) { r.decoder = d }
}

// WithEncoder replaces the JPEG encoder
func WithEncoder(e Encoder) Option {
	return func(r *Reducer) { r.encoder = e }
}

// WithSteps replaces the scale and quality sequences
func WithSteps(scales, qualities []float64) Option {
	return func(r *Reducer) {
		r.scales = scales
		r.qualities = qualities
	}
}

// New returns a Reducer using the stdlib/x/image decoders and a JPEG encoder
func New(opts ...Option) *Reducer {
	r := &Reducer{
		decoder:   ImageDecoder{},
		encoder:   JPEGEncoder{},
		scaler:    draw.CatmullRom,
		scales:    DefaultScales,
		qualities: DefaultQualities,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reduce returns asset unchanged when it already fits budget. Otherwise it
// decodes the image once and walks the scale/quality grid until an encoding
// fits. The decoded bitmap is released on every return path.
func (r *Reducer) Reduce(ctx context.Context, asset models.ImageAsset, budget int64) (*Result, error) {
	if asset.Size() <= budget {
		return &Result{Asset: asset}, nil
	}

	bitmap, err := r.decoder.Decode(ctx, asset.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read the image file: %w", err)
	}
	defer func() {
		if cerr := bitmap.Close(); cerr != nil {
			slog.Warn("Unable to release decoded image", "err", cerr)
		}
	}()

	src := bitmap.Image()
	bounds := src.Bounds()
	sourceWidth, sourceHeight := bounds.Dx(), bounds.Dy()
	outputName := PredictFileName(asset.Name)

	tries := 0
	for _, scale := range r.scales {
		width := max(1, int(math.Round(float64(sourceWidth)*scale)))
		height := max(1, int(math.Round(float64(sourceHeight)*scale)))
		surface := r.render(src, width, height)

		for _, quality := range r.qualities {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tries++

			encoded, err := r.encoder.Encode(ctx, surface, quality)
			if err != nil {
				return nil, fmt.Errorf("unable to encode the image: %w", err)
			}
			if int64(len(encoded)) > budget {
				continue
			}

			slog.Debug("Image reduced",
				"name", outputName,
				"original_bytes", asset.Size(),
				"bytes", len(encoded),
				"scale", scale,
				"quality", quality,
				"tries", tries)

			return &Result{
				Asset: models.ImageAsset{
					Data:      encoded,
					MediaType: OutputMediaType,
					Name:      outputName,
				},
				Reduced: true,
				Attempt: Attempt{Scale: scale, Quality: quality, Width: width, Height: height},
				Tries:   tries,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w below %s", ErrCompressionExhausted, FormatBudget(budget))
}

func (r *Reducer) render(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	r.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// PredictFileName derives the upload name of a re-encoded image
func PredictFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "upload"
	}
	return base + "-predict.jpg"
}

// FormatBudget renders a byte budget the way it is shown to users
func FormatBudget(budget int64) string {
	if budget >= 1024 && budget%1024 == 0 {
		return fmt.Sprintf("%dKB", budget/1024)
	}
	return fmt.Sprintf("%d bytes", budget)
}
