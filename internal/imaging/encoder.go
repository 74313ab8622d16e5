// Package imaging prepares rasterized pages for transmission to a vision
// model: bounded dimensions, no alpha channel, bounded encoded size.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"

	DefaultMaxDimension = 4096
	DefaultMaxBytes     = 3.5 * 1024 * 1024
	DefaultQuality      = 85
	DefaultMinQuality   = 20
	DefaultQualityStep  = 10
)

// Options bound the encoded output.
type Options struct {
	Format       string
	MaxDimension int
	MaxBytes     int
	Quality      int
	MinQuality   int
	QualityStep  int
}

// DefaultOptions returns the standard page encoding limits.
func DefaultOptions() Options {
	return Options{
		Format:       FormatJPEG,
		MaxDimension: DefaultMaxDimension,
		MaxBytes:     DefaultMaxBytes,
		Quality:      DefaultQuality,
		MinQuality:   DefaultMinQuality,
		QualityStep:  DefaultQualityStep,
	}
}

// Encoded is one page ready for a multimodal request.
type Encoded struct {
	Base64   string
	MIMEType string
	Bytes    int
	Quality  int // 0 for lossless formats
	Width    int
	Height   int
}

// DataURL returns the image as a data: URL.
func (e *Encoded) DataURL() string {
	return "data:" + e.MIMEType + ";base64," + e.Base64
}

// Encoder normalizes and encodes page images.
type Encoder struct {
	opts Options
}

// NewEncoder creates an encoder. Zero-valued options take their defaults.
func NewEncoder(opts Options) *Encoder {
	def := DefaultOptions()
	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	if opts.Format == "jpg" {
		opts.Format = FormatJPEG
	}
	if opts.Format == "" {
		opts.Format = def.Format
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.MinQuality <= 0 {
		opts.MinQuality = def.MinQuality
	}
	if opts.QualityStep <= 0 {
		opts.QualityStep = def.QualityStep
	}
	return &Encoder{opts: opts}
}

// Options returns the effective options.
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode downscales, flattens and encodes img.
func (e *Encoder) Encode(img image.Image) (*Encoded, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}

	img = Downscale(img, e.opts.MaxDimension)
	img = Flatten(img)
	b := img.Bounds()

	switch e.opts.Format {
	case FormatJPEG:
		quality := e.opts.Quality
		data, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		for len(data) > e.opts.MaxBytes && quality > e.opts.MinQuality {
			quality -= e.opts.QualityStep
			if data, err = encodeJPEG(img, quality); err != nil {
				return nil, err
			}
		}
		return newEncoded(data, "image/jpeg", quality, b), nil

	case FormatPNG:
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
		return newEncoded(buf.Bytes(), "image/png", 0, b), nil

	default:
		return nil, fmt.Errorf("unsupported image format: %s", e.opts.Format)
	}
}

// EncodeAll encodes a batch of images in order.
func (e *Encoder) EncodeAll(imgs []image.Image) ([]*Encoded, error) {
	out := make([]*Encoded, 0, len(imgs))
	for i, img := range imgs {
		enc, err := e.Encode(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

func newEncoded(data []byte, mime string, quality int, b image.Rectangle) *Encoded {
	return &Encoded{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: mime,
		Bytes:    len(data),
		Quality:  quality,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}

// Downscale shrinks img so that neither side exceeds maxDim, scaling the
// longer side to exactly maxDim and preserving aspect ratio.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	nw, nh = max(nw, 1), max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Flatten composites images carrying alpha or a palette onto opaque white.
// Other images are returned unchanged.
func Flatten(img image.Image) image.Image {
	if !hasAlphaOrPalette(img) {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func hasAlphaOrPalette(img image.Image) bool {
	switch img.(type) {
	case *image.Paletted, *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64,
		*image.Alpha, *image.Alpha16, *image.NYCbCrA:
		return true
	default:
		return false
	}
}
