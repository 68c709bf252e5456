package reducer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/webp"
)

// Bitmap is a decoded image that holds resources until closed
type Bitmap interface {
	Image() image.Image
	Close() error
}

// Decoder turns encoded bytes into a Bitmap
type Decoder interface {
	Decode(ctx context.Context, data []byte) (Bitmap, error)
}

// Encoder encodes a rendered surface at a quality in (0, 1]
type Encoder interface {
	Encode(ctx context.Context, img image.Image, quality float64) ([]byte, error)
}

// ImageDecoder decodes any format registered with the image package
// (JPEG, PNG, GIF and WebP are linked in).
type ImageDecoder struct{}

func (ImageDecoder) Decode(ctx context.Context, data []byte) (Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &decodedBitmap{img: img, format: format}, nil
}

type decodedBitmap struct {
	img    image.Image
	format string
}

func (b *decodedBitmap) Image() image.Image {
	return b.img
}

func (b *decodedBitmap) Close() error {
	if b.img == nil {
		return fmt.Errorf("%s bitmap already released", b.format)
	}
	b.img = nil
	return nil
}

// JPEGEncoder encodes with image/jpeg, mapping quality onto 1..100
type JPEGEncoder struct{}

func (JPEGEncoder) Encode(ctx context.Context, img image.Image, quality float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	q = min(100, max(1, q))
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeConfig reports the dimensions and format of an encoded image
// without decoding the pixels.
func DecodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}
