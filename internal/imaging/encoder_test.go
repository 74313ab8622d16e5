package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"strings"
	"testing"
)

func noise(w, h int) *image.RGBA {
	r := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func decode(t *testing.T, enc *Encoded) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(enc.Base64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	if len(data) != enc.Bytes {
		t.Errorf("Bytes = %d, decoded length = %d", enc.Bytes, len(data))
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	return img
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"within bounds", 800, 600, 4096, 800, 600},
		{"landscape", 5000, 100, 4096, 4096, 81},
		{"portrait", 1000, 8192, 4096, 500, 4096},
		{"square", 5000, 5000, 4096, 4096, 4096},
		{"exact limit", 4096, 10, 4096, 4096, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Downscale(image.NewGray(image.Rect(0, 0, tt.w, tt.h)), tt.maxDim)
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("Downscale() = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	t.Run("transparent becomes white", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		out := Flatten(img)
		r, g, b, a := out.At(1, 1).RGBA()
		if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
			t.Errorf("pixel = %v %v %v %v, want opaque white", r, g, b, a)
		}
	})

	t.Run("paletted", func(t *testing.T) {
		pal := color.Palette{color.Transparent, color.Black}
		img := image.NewPaletted(image.Rect(0, 0, 2, 1), pal)
		img.SetColorIndex(1, 0, 1)
		out := Flatten(img)
		if _, ok := out.(*image.Paletted); ok {
			t.Fatal("paletted image was not flattened")
		}
		if r, _, _, _ := out.At(0, 0).RGBA(); r != 0xffff {
			t.Errorf("transparent palette entry not white: %v", r)
		}
		if r, _, _, _ := out.At(1, 0).RGBA(); r != 0 {
			t.Errorf("black palette entry changed: %v", r)
		}
	})

	t.Run("opaque passthrough", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 2, 2))
		if Flatten(img) != image.Image(img) {
			t.Error("gray image should be returned unchanged")
		}
	})
}

func TestEncode(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		enc, err := NewEncoder(Options{}).Encode(noise(64, 48))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if enc.Quality != DefaultQuality {
			t.Errorf("Quality = %d, want %d", enc.Quality, DefaultQuality)
		}
		if enc.MIMEType != "image/jpeg" {
			t.Errorf("MIMEType = %s", enc.MIMEType)
		}
		if !strings.HasPrefix(enc.DataURL(), "data:image/jpeg;base64,") {
			t.Errorf("DataURL() prefix = %.30s", enc.DataURL())
		}
		img := decode(t, enc)
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
			t.Errorf("decoded size = %v", img.Bounds())
		}
	})

	t.Run("quality steps down to floor", func(t *testing.T) {
		// A one-byte ceiling can never be met, so the loop runs until the floor.
		enc, err := NewEncoder(Options{MaxBytes: 1}).Encode(noise(64, 64))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if enc.Quality != 15 {
			t.Errorf("Quality = %d, want 15 (85 stepped by 10 while above 20)", enc.Quality)
		}
		decode(t, enc)
	})

	t.Run("stops once under ceiling", func(t *testing.T) {
		img := noise(128, 128)
		hi, err := NewEncoder(Options{}).Encode(img)
		if err != nil {
			t.Fatal(err)
		}
		enc, err := NewEncoder(Options{MaxBytes: hi.Bytes - 1}).Encode(img)
		if err != nil {
			t.Fatal(err)
		}
		if enc.Quality >= DefaultQuality || enc.Quality < 15 {
			t.Errorf("Quality = %d, want a single reduction range", enc.Quality)
		}
		if enc.Bytes > hi.Bytes-1 && enc.Quality > DefaultMinQuality {
			t.Errorf("loop stopped early: %d bytes at quality %d", enc.Bytes, enc.Quality)
		}
	})

	t.Run("large transparent page", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 5000, 20))
		enc, err := NewEncoder(Options{}).Encode(img)
		if err != nil {
			t.Fatal(err)
		}
		if enc.Width != 4096 || enc.Height != 16 {
			t.Errorf("size = %dx%d, want 4096x16", enc.Width, enc.Height)
		}
		out := decode(t, enc)
		if r, g, b, _ := out.At(10, 8).RGBA(); r < 0xf000 || g < 0xf000 || b < 0xf000 {
			t.Errorf("flattened pixel not white: %x %x %x", r, g, b)
		}
	})

	t.Run("png", func(t *testing.T) {
		enc, err := NewEncoder(Options{Format: "PNG"}).Encode(noise(8, 8))
		if err != nil {
			t.Fatal(err)
		}
		if enc.MIMEType != "image/png" || enc.Quality != 0 {
			t.Errorf("enc = %+v", enc)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := NewEncoder(Options{Format: "tiff"}).Encode(noise(2, 2)); err == nil {
			t.Error("expected unsupported format error")
		}
	})

	t.Run("nil", func(t *testing.T) {
		if _, err := NewEncoder(Options{}).Encode(nil); err == nil {
			t.Error("expected nil image error")
		}
	})
}

func TestEncodeAll(t *testing.T) {
	out, err := NewEncoder(Options{}).EncodeAll([]image.Image{noise(4, 4), noise(8, 8)})
	if err != nil {
		t.Fatalf("EncodeAll() error = %v", err)
	}
	if len(out) != 2 || out[1].Width != 8 {
		t.Errorf("EncodeAll() = %+v", out)
	}
}
