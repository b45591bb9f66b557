package halftone

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	exif_tiff "github.com/rwcarlsen/goexif/tiff"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type fileSystem interface {
	Open(string) (io.ReadCloser, error)
}

type localFS struct{}

func (localFS) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

var fs fileSystem = localFS{}

var ErrUnsupportedFormat = errors.New("unsupported image format")

type decodeConfig struct {
	autoOrientation bool
}

var defaultDecodeConfig = decodeConfig{
	autoOrientation: true,
}

// DecodeOption sets an optional parameter for the Decode and Open functions.
type DecodeOption func(*decodeConfig)

// AutoOrientation returns a DecodeOption that sets the auto-orientation mode.
// If auto-orientation is enabled, the image will be transformed after decoding
// according to the EXIF orientation tag (if present). By default it's enabled.
func AutoOrientation(enabled bool) DecodeOption {
	return func(c *decodeConfig) {
		c.autoOrientation = enabled
	}
}

func decode_config(opts []DecodeOption) decodeConfig {
	cfg := defaultDecodeConfig
	for _, option := range opts {
		option(&cfg)
	}
	return cfg
}

// Decode reads a JPEG, PNG, GIF, BMP, TIFF, WEBP or netpbm image from r.
func Decode(r io.Reader, opts ...DecodeOption) (image.Image, error) {
	cfg := decode_config(opts)
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return nil, err
	}
	if cfg.autoOrientation {
		img = fixOrientation(img, read_orientation(data))
	}
	return img, nil
}

// Open loads an image from file.
//
// Examples:
//
//	// Load an image, ignoring its EXIF orientation.
//	img, err := halftone.Open("test.jpg", halftone.AutoOrientation(false))
func Open(filename string, opts ...DecodeOption) (image.Image, error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file, opts...)
}

// orientation is an EXIF flag that specifies the transformation
// that should be applied to image to display it correctly.
type orientation int

const (
	orientationUnspecified = 0
	orientationNormal      = 1
	orientationFlipH       = 2
	orientationRotate180   = 3
	orientationFlipV       = 4
	orientationTranspose   = 5
	orientationRotate270   = 6
	orientationTransverse  = 7
	orientationRotate90    = 8
)

func read_orientation(data []byte) orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return orientationUnspecified
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil || tag == nil || tag.Format() != exif_tiff.IntVal {
		return orientationUnspecified
	}
	if v, err := tag.Int(0); err == nil && v > 0 && v < 9 {
		return orientation(v)
	}
	return orientationUnspecified
}

// fixOrientation applies a transform to img corresponding to the given
// orientation flag. Rotate90 turns counter-clockwise, Rotate270 clockwise.
func fixOrientation(img image.Image, o orientation) image.Image {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	var m f64.Aff3
	swap := false
	switch o {
	case orientationFlipH:
		m = f64.Aff3{-1, 0, w, 0, 1, 0}
	case orientationFlipV:
		m = f64.Aff3{1, 0, 0, 0, -1, h}
	case orientationRotate180:
		m = f64.Aff3{-1, 0, w, 0, -1, h}
	case orientationTranspose:
		m, swap = f64.Aff3{0, 1, 0, 1, 0, 0}, true
	case orientationRotate270:
		m, swap = f64.Aff3{0, -1, h, 1, 0, 0}, true
	case orientationTransverse:
		m, swap = f64.Aff3{0, -1, h, -1, 0, w}, true
	case orientationRotate90:
		m, swap = f64.Aff3{0, 1, 0, -1, 0, w}, true
	default:
		return img
	}
	// the source rectangle need not start at the origin
	mx, my := float64(b.Min.X), float64(b.Min.Y)
	m[2] -= m[0]*mx + m[1]*my
	m[5] -= m[3]*mx + m[4]*my
	r := image.Rect(0, 0, b.Dx(), b.Dy())
	if swap {
		r = image.Rect(0, 0, b.Dy(), b.Dx())
	}
	dst := new_like(img, r)
	draw.NearestNeighbor.Transform(dst, m, img, b, draw.Src, nil)
	return dst
}

// new_like returns an empty image of the same kind as img so that the
// layout picked by NewImageSource survives reorientation.
func new_like(img image.Image, r image.Rectangle) draw.Image {
	switch i := img.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	case *image.CMYK:
		return image.NewCMYK(r)
	case *image.Paletted:
		return image.NewPaletted(r, append(color.Palette(nil), i.Palette...))
	case *image.YCbCr, *RGB:
		return NewRGB(r)
	case *image.RGBA:
		return image.NewRGBA(r)
	}
	return image.NewNRGBA(r)
}
