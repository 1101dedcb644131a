// Package imaging shrinks uploaded images so they fit in the snapshot quota.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth  = 1600
	DefaultQuality   = 70
	DefaultMaxPixels = 50_000_000
)

var (
	ErrNotImage = errors.New("not an image")
	ErrTooLarge = errors.New("image dimensions too large")
)

type Options struct {
	MaxWidth int
	// Quality is the JPEG quality, 1-100.
	Quality int
	// MaxPixels caps width*height of the source before it is decoded.
	MaxPixels int
}

// Image is a re-encoded image ready to be stored.
type Image struct {
	DataURL string
	Width   int
	Height  int
	Bytes   int
}

// Compress decodes r, downscales it to at most opts.MaxWidth pixels wide
// keeping the aspect ratio, and re-encodes it as JPEG. Images already
// narrow enough are re-encoded without resizing. Sources larger than
// opts.MaxPixels are rejected from their header with ErrTooLarge.
func Compress(r io.Reader, opts Options) (Image, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}

	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(opts.MaxPixels) {
		return Image{}, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrNotImage)
	}
	if w > opts.MaxWidth {
		h = max(1, h*opts.MaxWidth/w)
		w = opts.MaxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten transparent areas onto white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return Image{}, fmt.Errorf("encoding jpeg: %w", err)
	}

	return Image{
		DataURL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   w,
		Height:  h,
		Bytes:   buf.Len(),
	}, nil
}

// DataURL wraps an uploaded file as a data URL without re-encoding it, so
// animated GIF icons keep their frames. Non-image content is rejected.
func DataURL(blob []byte) (string, error) {
	ct := http.DetectContentType(blob)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, ct)
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(blob), nil
}
