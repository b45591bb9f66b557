package halftone

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/kovidgoyal/halftone/colorsep"
)

var _ = fmt.Print

// ErrAbort is returned by a PixelSource to stop a job cleanly. It is not a
// failure, rows already emitted stay valid.
var ErrAbort = errors.New("aborted")

// PixelSource delivers the rows of an image. Rows are requested in non
// decreasing order and the dimensions never change.
type PixelSource interface {
	Width() int
	Height() int
	BytesPerPixel() int
	// GetRow returns row y, using buf when it is large enough. Returning
	// ErrAbort stops the job.
	GetRow(y int, buf []byte) ([]byte, error)
}

// Colormapped is implemented by one byte per pixel sources whose bytes are
// indices into a colormap.
type Colormapped interface {
	Colormap() [][3]uint8
}

// Layouted is implemented by sources that describe their pixel layout
// explicitly. Without it the layout is guessed from BytesPerPixel, four
// bytes meaning RGBA.
type Layouted interface {
	Layout() colorsep.Layout
}

func layout_of(src PixelSource) (colorsep.Layout, error) {
	if l, ok := src.(Layouted); ok {
		return l.Layout(), nil
	}
	switch src.BytesPerPixel() {
	case 1:
		if _, ok := src.(Colormapped); ok {
			return colorsep.LayoutIndexed, nil
		}
		return colorsep.LayoutGray, nil
	case 2:
		return colorsep.LayoutGrayAlpha, nil
	case 3:
		return colorsep.LayoutRGB, nil
	case 4:
		return colorsep.LayoutRGBA, nil
	case 8:
		return colorsep.LayoutCMYK16, nil
	}
	return 0, fmt.Errorf("%w: %d bytes per pixel", colorsep.ErrLayout, src.BytesPerPixel())
}

// ImageSource serves the rows of an image.Image in one of the layouts the
// color converter understands.
type ImageSource struct {
	img      image.Image
	layout   colorsep.Layout
	colormap [][3]uint8
	// Called before every row, returning true aborts the job
	Abort func() bool
}

// NewImageSource picks the layout closest to the native format of img:
// gray, indexed, CMYK, RGB for opaque images and RGBA otherwise.
func NewImageSource(img image.Image) *ImageSource {
	var l colorsep.Layout
	switch i := img.(type) {
	case *image.Gray, *image.Gray16:
		l = colorsep.LayoutGray
	case *image.Paletted:
		l = colorsep.LayoutIndexed
		if len(i.Palette) == 0 {
			l = colorsep.LayoutRGB
		}
	case *image.CMYK:
		l = colorsep.LayoutCMYK
	default:
		l = colorsep.LayoutRGBA
		if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
			l = colorsep.LayoutRGB
		}
	}
	ans, _ := NewImageSourceWithLayout(img, l)
	return ans
}

// NewImageSourceWithLayout serves img in the layout l, converting pixels
// as needed. The indexed layout needs a paletted image.
func NewImageSourceWithLayout(img image.Image, l colorsep.Layout) (*ImageSource, error) {
	ans := &ImageSource{img: img, layout: l}
	switch l {
	case colorsep.LayoutIndexed:
		p, ok := img.(*image.Paletted)
		if !ok || len(p.Palette) == 0 || len(p.Palette) > 256 {
			return nil, fmt.Errorf("%w: the indexed layout needs a paletted image", colorsep.ErrLayout)
		}
		ans.colormap = make([][3]uint8, len(p.Palette))
		for i, c := range p.Palette {
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			ans.colormap[i] = [3]uint8{blend(n.R, n.A), blend(n.G, n.A), blend(n.B, n.A)}
		}
	case colorsep.LayoutGray, colorsep.LayoutGrayAlpha, colorsep.LayoutRGB, colorsep.LayoutRGBA, colorsep.LayoutCMYK, colorsep.LayoutCMYK16:
	default:
		return nil, fmt.Errorf("%w: %s", colorsep.ErrLayout, l)
	}
	return ans, nil
}

func blend(v, a uint8) uint8 {
	return uint8((uint32(v)*uint32(a) + 255*uint32(255-a) + 127) / 255)
}

func (s *ImageSource) Width() int              { return s.img.Bounds().Dx() }
func (s *ImageSource) Height() int             { return s.img.Bounds().Dy() }
func (s *ImageSource) BytesPerPixel() int      { return s.layout.BytesPerPixel() }
func (s *ImageSource) Layout() colorsep.Layout { return s.layout }
func (s *ImageSource) Image() image.Image      { return s.img }
func (s *ImageSource) Colormap() [][3]uint8    { return s.colormap }

func (s *ImageSource) String() string {
	return fmt.Sprintf("%dx%d %s", s.Width(), s.Height(), s.layout)
}

func (s *ImageSource) GetRow(y int, buf []byte) ([]byte, error) {
	if s.Abort != nil && s.Abort() {
		return nil, ErrAbort
	}
	b := s.img.Bounds()
	if y < 0 || y >= b.Dy() {
		return nil, fmt.Errorf("row %d outside an image of height %d", y, b.Dy())
	}
	bpp := s.layout.BytesPerPixel()
	n := b.Dx() * bpp
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	y += b.Min.Y
	if s.fast_row(y, buf) {
		return buf, nil
	}
	for x := range b.Dx() {
		c := s.img.At(b.Min.X+x, y)
		p := buf[x*bpp : (x+1)*bpp : (x+1)*bpp]
		switch s.layout {
		case colorsep.LayoutGray:
			p[0] = color.GrayModel.Convert(c).(color.Gray).Y
		case colorsep.LayoutGrayAlpha:
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			p[0] = color.GrayModel.Convert(color.NRGBA{n.R, n.G, n.B, 255}).(color.Gray).Y
			p[1] = n.A
		case colorsep.LayoutRGB:
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			p[0], p[1], p[2] = blend(n.R, n.A), blend(n.G, n.A), blend(n.B, n.A)
		case colorsep.LayoutRGBA:
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			p[0], p[1], p[2], p[3] = n.R, n.G, n.B, n.A
		case colorsep.LayoutCMYK:
			k := color.CMYKModel.Convert(c).(color.CMYK)
			p[0], p[1], p[2], p[3] = k.C, k.M, k.Y, k.K
		case colorsep.LayoutCMYK16:
			k := color.CMYKModel.Convert(c).(color.CMYK)
			for i, v := range []uint8{k.C, k.M, k.Y, k.K} {
				p[2*i], p[2*i+1] = v, v
			}
		}
	}
	return buf, nil
}

// fast_row copies rows of images whose memory layout already matches.
func (s *ImageSource) fast_row(y int, buf []byte) bool {
	b := s.img.Bounds()
	switch img := s.img.(type) {
	case *image.Gray:
		if s.layout == colorsep.LayoutGray {
			copy(buf, img.Pix[img.PixOffset(b.Min.X, y):])
			return true
		}
	case *image.Paletted:
		if s.layout == colorsep.LayoutIndexed {
			copy(buf, img.Pix[img.PixOffset(b.Min.X, y):])
			return true
		}
	case *RGB:
		if s.layout == colorsep.LayoutRGB {
			copy(buf, img.Pix[img.PixOffset(b.Min.X, y):])
			return true
		}
	case *image.CMYK:
		if s.layout == colorsep.LayoutCMYK {
			copy(buf, img.Pix[img.PixOffset(b.Min.X, y):])
			return true
		}
	case *image.NRGBA:
		switch s.layout {
		case colorsep.LayoutRGBA:
			copy(buf, img.Pix[img.PixOffset(b.Min.X, y):])
			return true
		case colorsep.LayoutRGB:
			pix := img.Pix[img.PixOffset(b.Min.X, y):]
			for x := range b.Dx() {
				p := pix[4*x : 4*x+4 : 4*x+4]
				buf[3*x], buf[3*x+1], buf[3*x+2] = blend(p[0], p[3]), blend(p[1], p[3]), blend(p[2], p[3])
			}
			return true
		}
	}
	return false
}
