// Package imaging decodes uploaded images and turns them into the fixed-size
// input tensor of the lesion classifier.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"time"

	// Standard library decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Extended decoders
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// DefaultMaxPixels bounds the decoded image area.
const DefaultMaxPixels = 40_000_000

// ErrDecode marks input that is not a decodable image.
var ErrDecode = errors.NewStd("image could not be decoded")

// Normalizer converts raw image bytes into model tensors.
type Normalizer struct {
	// MaxPixels rejects images with a larger area before the full decode.
	// Zero means DefaultMaxPixels.
	MaxPixels int
}

// Normalize decodes raw with the default limits.
func Normalize(raw []byte) (*Tensor, error) {
	return Normalizer{}.Normalize(raw)
}

// Normalize decodes raw, resizes it to Width x Height with bilinear
// interpolation and scales every RGB sample to [0, 1]. Any failure wraps
// ErrDecode.
func (n Normalizer) Normalize(raw []byte) (*Tensor, error) {
	start := time.Now()

	if len(raw) == 0 {
		return nil, decodeError(fmt.Errorf("%w: empty input", ErrDecode), 0, "")
	}

	maxPixels := n.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w: %w", ErrDecode, err), len(raw), "")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, decodeError(fmt.Errorf("%w: empty %dx%d image", ErrDecode, cfg.Width, cfg.Height), len(raw), format)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, decodeError(fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels), len(raw), format)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w: %w", ErrDecode, err), len(raw), format)
	}

	tensor := NormalizeImage(img)

	GetLogger().Debug("image normalized",
		logger.String("format", format),
		logger.Int("width", cfg.Width),
		logger.Int("height", cfg.Height),
		logger.Duration("elapsed", time.Since(start)))

	return tensor, nil
}

// NormalizeImage resizes an already decoded image. Alpha is discarded and
// grayscale or paletted images are expanded to three channels.
func NormalizeImage(img image.Image) *Tensor {
	dst := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([]float32, 0, Width*Height*Channels)
	for y := range Height {
		row := dst.Pix[y*dst.Stride:]
		for x := range Width {
			px := row[x*4 : x*4+4]
			data = append(data,
				float32(px[0])/255,
				float32(px[1])/255,
				float32(px[2])/255)
		}
	}
	return &Tensor{Shape: InputShape, Data: data}
}

func decodeError(err error, size int, format string) error {
	b := errors.New(err).
		Component("imaging").
		Category(errors.CategoryValidation).
		Context("input_bytes", size)
	if format != "" {
		b = b.Context("format", format)
	}
	return b.Build()
}

// GetLogger returns the imaging module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("imaging")
}
