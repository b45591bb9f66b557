package emit

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/kettek/apng"

	"github.com/kovidgoyal/halftone/dither"
)

var ink_colors = [dither.ChannelCount]color.RGBA{
	dither.Black:   {0, 0, 0, 255},
	dither.Cyan:    {0, 174, 239, 255},
	dither.Magenta: {236, 0, 140, 255},
	dither.Yellow:  {255, 242, 0, 255},
}

func ink_color(p Plane) color.Color {
	c := ink_colors[p.Channel]
	if p.Light {
		lighten := func(v uint8) uint8 { return uint8((int(v) + 255*2) / 3) }
		c.R, c.G, c.B = lighten(c.R), lighten(c.G), lighten(c.B)
	}
	return c
}

// PreviewSink renders every plane in the ink color on white and writes
// the planes as the frames of an animated PNG when closed. An APNG carries
// a single palette, so all frames share one holding white and every ink,
// and plane i is drawn with index i+1.
type PreviewSink struct {
	row_order
	w      io.Writer
	layout Layout
	frames []*image.Paletted
	// Delay of each frame in seconds
	Delay uint16
}

func NewPreviewSink(w io.Writer, layout Layout, height int) (*PreviewSink, error) {
	if layout.Width < 1 || height < 1 || len(layout.Planes) == 0 {
		return nil, fmt.Errorf("%w: cannot preview %d planes of %dx%d", ErrFormat, len(layout.Planes), layout.Width, height)
	}
	ans := &PreviewSink{w: w, layout: layout, Delay: 1}
	r := image.Rect(0, 0, layout.Width, height)
	palette := color.Palette{color.White}
	for _, p := range layout.Planes {
		palette = append(palette, ink_color(p))
	}
	for range layout.Planes {
		ans.frames = append(ans.frames, image.NewPaletted(r, palette))
	}
	return ans, nil
}

func (s *PreviewSink) WriteRow(row int, b *dither.Buffers) error {
	if err := s.check(row); err != nil {
		return err
	}
	if row >= s.frames[0].Rect.Dy() {
		return fmt.Errorf("%w: row %d of a %d row image", ErrRowOrder, row, s.frames[0].Rect.Dy())
	}
	for i, p := range s.layout.Planes {
		data := s.layout.Data(b, p)
		if data == nil || AllZero(data) {
			continue
		}
		f, idx := s.frames[i], uint8(i+1)
		pix := f.Pix[row*f.Stride : row*f.Stride+s.layout.Width]
		for x := range pix {
			pix[x] = idx * ((data[x>>3] >> (7 - x&7)) & 1)
		}
	}
	return nil
}

func (s *PreviewSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	a := apng.APNG{}
	for _, f := range s.frames {
		a.Frames = append(a.Frames, apng.Frame{
			Image: f, DisposeOp: apng.DISPOSE_OP_NONE, BlendOp: apng.BLEND_OP_SOURCE,
			DelayNumerator: s.Delay, DelayDenominator: 1,
		})
	}
	return apng.Encode(s.w, a)
}
