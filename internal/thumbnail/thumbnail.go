// Package thumbnail renders publication cover images for display outside
// the book.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	DefaultJPEGQuality = 90
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

var (
	ErrUnsupported = errors.New("unsupported image type")
	ErrTooLarge    = errors.New("image too large to decode")
)

// Options controls Render. Zero values select the defaults.
type Options struct {
	MaxWidth    int // 0 keeps the original width
	JPEGQuality int
	MaxPixels   int // total pixel count limit for decode (width * height)
}

// Image is a rendered thumbnail.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format string // "jpeg" or "png"
}

// Ext returns the file extension matching Format.
func (i Image) Ext() string {
	if i.Format == "png" {
		return ".png"
	}
	return ".jpg"
}

// Render decodes data, scales it down to opts.MaxWidth keeping the aspect
// ratio and re-encodes it. Transparent images stay PNG, everything else
// becomes JPEG.
func Render(data []byte, mediaType string, opts Options) (Image, error) {
	if strings.EqualFold(mediaType, "image/svg+xml") {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > uint64(maxPixels) {
		return Image{}, fmt.Errorf("%w: %dx%d (%d pixels)", ErrTooLarge, cfg.Width, cfg.Height, pixels)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("image decode failed: %w", err)
	}

	processed := src
	if opts.MaxWidth > 0 && src.Bounds().Dx() > opts.MaxWidth {
		processed = imaging.Resize(src, opts.MaxWidth, 0, imaging.Lanczos)
	}

	out := Image{
		Width:  processed.Bounds().Dx(),
		Height: processed.Bounds().Dy(),
		Format: "jpeg",
	}
	var buf bytes.Buffer
	if hasAlpha(processed) {
		out.Format = "png"
		err = imaging.Encode(&buf, processed, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	} else {
		err = imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return Image{}, fmt.Errorf("%s encode failed: %w", out.Format, err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
