package halftone

import (
	"fmt"
	"image"
	"image/color"
)

var _ = fmt.Print

// RGB is an opaque image with three bytes per pixel, the layout the color
// converter reads for RGB sources. Translucent colors are composited onto
// white paper when set.
type RGB struct {
	// The pixel at (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3]
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

func on_paper(c color.Color) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return color.NRGBA{blend(n.R, n.A), blend(n.G, n.A), blend(n.B, n.A), 255}
}

// RGBModel converts colors to opaque NRGBA colors as printed on white.
var RGBModel color.Model = color.ModelFunc(func(c color.Color) color.Color { return on_paper(c) })

func (p *RGB) ColorModel() color.Model { return RGBModel }
func (p *RGB) Bounds() image.Rectangle { return p.Rect }
func (p *RGB) Opaque() bool            { return true }

func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

func (p *RGB) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.NRGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.NRGBA{s[0], s[1], s[2], 255}
}

func (p *RGB) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	n := on_paper(c)
	s := p.Pix[i : i+3 : i+3]
	s[0], s[1], s[2] = n.R, n.G, n.B
}

// SubImage shares pixels with p.
func (p *RGB) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &RGB{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &RGB{Pix: p.Pix[i:], Stride: p.Stride, Rect: r}
}

func NewRGB(r image.Rectangle) *RGB {
	return &RGB{Pix: make([]uint8, 3*r.Dx()*r.Dy()), Stride: 3 * r.Dx(), Rect: r}
}

// NewRGBFromPixels wraps tightly packed rows of width pixels without
// copying them.
func NewRGBFromPixels(pix []byte, width, height int) (*RGB, error) {
	if width < 0 || height < 0 || len(pix) != 3*width*height {
		return nil, fmt.Errorf("%d bytes of pixel data do not make a %dx%d RGB image", len(pix), width, height)
	}
	return &RGB{Pix: pix, Stride: 3 * width, Rect: image.Rect(0, 0, width, height)}, nil
}
