package halftone

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func numbered(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func TestFixOrientation(t *testing.T) {
	src := numbered(3, 2)
	w, h := 3, 2
	for _, tc := range []struct {
		name   string
		o      orientation
		swap   bool
		source func(x, y int) (int, int)
	}{
		{"normal", orientationNormal, false, func(x, y int) (int, int) { return x, y }},
		{"fliph", orientationFlipH, false, func(x, y int) (int, int) { return w - 1 - x, y }},
		{"flipv", orientationFlipV, false, func(x, y int) (int, int) { return x, h - 1 - y }},
		{"rotate180", orientationRotate180, false, func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }},
		{"transpose", orientationTranspose, true, func(x, y int) (int, int) { return y, x }},
		{"rotate270", orientationRotate270, true, func(x, y int) (int, int) { return y, h - 1 - x }},
		{"transverse", orientationTransverse, true, func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }},
		{"rotate90", orientationRotate90, true, func(x, y int) (int, int) { return w - 1 - y, x }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := fixOrientation(src, tc.o)
			dw, dh := w, h
			if tc.swap {
				dw, dh = h, w
			}
			require.Equal(t, image.Rect(0, 0, dw, dh), got.Bounds())
			for y := range dh {
				for x := range dw {
					sx, sy := tc.source(x, y)
					assert.Equal(t, color.NRGBA{uint8(sx), uint8(sy), 0, 255}, color.NRGBAModel.Convert(got.At(x, y)), "(%d, %d)", x, y)
				}
			}
		})
	}
}

func TestFixOrientationOffset(t *testing.T) {
	src := numbered(4, 4).SubImage(image.Rect(1, 1, 4, 3))
	got := fixOrientation(src, orientationFlipH)
	require.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	assert.Equal(t, color.NRGBA{3, 1, 0, 255}, got.At(0, 0))
	assert.Equal(t, color.NRGBA{1, 2, 0, 255}, got.At(2, 1))
	g := fixOrientation(image.NewGray(image.Rect(0, 0, 2, 3)), orientationRotate90)
	assert.IsType(t, &image.Gray{}, g)
}

// with_orientation inserts an EXIF segment holding only the orientation
// tag after the start of image marker of a JPEG stream.
func with_orientation(jpg []byte, o uint16) []byte {
	tiff_data := []byte("II\x2a\x00\x08\x00\x00\x00")
	tiff_data = binary.LittleEndian.AppendUint16(tiff_data, 1)
	tiff_data = binary.LittleEndian.AppendUint16(tiff_data, 0x0112)
	tiff_data = binary.LittleEndian.AppendUint16(tiff_data, 3)
	tiff_data = binary.LittleEndian.AppendUint32(tiff_data, 1)
	tiff_data = binary.LittleEndian.AppendUint16(tiff_data, o)
	tiff_data = binary.LittleEndian.AppendUint16(tiff_data, 0)
	tiff_data = binary.LittleEndian.AppendUint32(tiff_data, 0)
	payload := append([]byte("Exif\x00\x00"), tiff_data...)
	seg := []byte{0xff, 0xe1}
	seg = binary.BigEndian.AppendUint16(seg, uint16(len(payload)+2))
	seg = append(seg, payload...)
	ans := append([]byte{}, jpg[:2]...)
	ans = append(ans, seg...)
	return append(ans, jpg[2:]...)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	src := numbered(5, 3)
	write := func(name string, encode func(*bytes.Buffer) error) string {
		buf := bytes.Buffer{}
		require.NoError(t, encode(&buf))
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
		return path
	}
	for _, path := range []string{
		write("a.png", func(b *bytes.Buffer) error { return png.Encode(b, src) }),
		write("a.bmp", func(b *bytes.Buffer) error { return bmp.Encode(b, src) }),
		write("a.tiff", func(b *bytes.Buffer) error { return tiff.Encode(b, src, nil) }),
	} {
		img, err := Open(path)
		require.NoError(t, err, path)
		require.Equal(t, 5, img.Bounds().Dx(), path)
		require.Equal(t, 3, img.Bounds().Dy(), path)
		assert.Equal(t, color.NRGBA{4, 2, 0, 255}, color.NRGBAModel.Convert(img.At(img.Bounds().Min.X+4, img.Bounds().Min.Y+2)), path)
	}

	jpg := write("rotated.jpg", func(b *bytes.Buffer) error {
		plain := bytes.Buffer{}
		if err := jpeg.Encode(&plain, src, nil); err != nil {
			return err
		}
		_, err := b.Write(with_orientation(plain.Bytes(), orientationRotate270))
		return err
	})
	img, err := Open(jpg)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 5), img.Bounds())
	img, err = Open(jpg, AutoOrientation(false))
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	_, err = Decode(strings.NewReader("certainly not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Open(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
