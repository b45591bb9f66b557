package colorsep

import (
	"errors"
	"fmt"

	"github.com/kovidgoyal/halftone/curve"
)

var ErrLayout = errors.New("unsupported pixel layout")

type Output int

const (
	Mono Output = iota
	Gray
	Color
)

func (o Output) String() string {
	switch o {
	case Mono:
		return "mono"
	case Gray:
		return "gray"
	case Color:
		return "color"
	}
	return fmt.Sprintf("Output(%d)", int(o))
}

// Layout is the arrangement of bytes of one source pixel.
type Layout int

const (
	LayoutGray      Layout = iota // 1 byte
	LayoutGrayAlpha               // 2 bytes, alpha is not premultiplied
	LayoutRGB                     // 3 bytes
	LayoutRGBA                    // 4 bytes, alpha is not premultiplied
	LayoutIndexed                 // 1 byte index into a colormap
	LayoutCMYK                    // 4 bytes of raw ink
	LayoutCMYK16                  // 8 bytes of raw ink, big endian
)

func (l Layout) BytesPerPixel() int {
	switch l {
	case LayoutGray, LayoutIndexed:
		return 1
	case LayoutGrayAlpha:
		return 2
	case LayoutRGB:
		return 3
	case LayoutRGBA, LayoutCMYK:
		return 4
	case LayoutCMYK16:
		return 8
	}
	return 0
}

func (l Layout) String() string {
	switch l {
	case LayoutGray:
		return "gray"
	case LayoutGrayAlpha:
		return "gray+alpha"
	case LayoutRGB:
		return "rgb"
	case LayoutRGBA:
		return "rgba"
	case LayoutIndexed:
		return "indexed"
	case LayoutCMYK:
		return "cmyk"
	case LayoutCMYK16:
		return "cmyk16"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

type Config struct {
	Output Output
	Layout Layout
	Width  int
	// Tables for 8 bit sources, must have 256 steps. Raw CMYK sources
	// bypass them.
	LUT *LUT
	// Colormap of LayoutIndexed sources as RGB triples
	Colormap [][3]uint8
	// Fast skips the saturation and hue adjustments
	Fast bool
	// Saturation multiplier, zero is treated as 1
	Saturation float64
	// Optional wrap around curves indexed by hue. HueMap holds hue shifts
	// as fractions of a full turn, LumMap and SatMap hold multipliers.
	HueMap, LumMap, SatMap *curve.Curve
}

// Converter turns rows of source pixels into rows of 16 bit ink amounts.
// Gray and mono output has one channel, color output has three channels
// (cyan, magenta, yellow) or four for raw CMYK sources (cyan, magenta,
// yellow, black). Not safe for concurrent use.
type Converter struct {
	cfg      Config
	channels int
	bpp      int
	row      func(in []byte, out []uint16)
	hsl      *hsl_adjust
	colormap [][3]uint8
}

// NewConverter picks the conversion function for cfg once, so that no
// per pixel dispatch is needed.
func NewConverter(cfg Config) (*Converter, error) {
	c := &Converter{cfg: cfg, bpp: cfg.Layout.BytesPerPixel()}
	if c.bpp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLayout, cfg.Layout)
	}
	if cfg.Width < 0 {
		return nil, fmt.Errorf("%w: width %d", ErrParams, cfg.Width)
	}
	raw := cfg.Layout == LayoutCMYK || cfg.Layout == LayoutCMYK16
	if !raw && (cfg.LUT == nil || cfg.LUT.Steps != 256) {
		return nil, fmt.Errorf("%w: %s sources need a 256 step LUT", ErrParams, cfg.Layout)
	}
	if cfg.Layout == LayoutIndexed {
		if len(cfg.Colormap) == 0 || len(cfg.Colormap) > 256 {
			return nil, fmt.Errorf("%w: colormap with %d entries", ErrLayout, len(cfg.Colormap))
		}
		c.colormap = make([][3]uint8, 256)
		copy(c.colormap, cfg.Colormap)
	}
	if cfg.Output == Color && !cfg.Fast && !raw {
		h, err := new_hsl_adjust(cfg.Saturation, cfg.HueMap, cfg.LumMap, cfg.SatMap)
		if err != nil {
			return nil, err
		}
		c.hsl = h
	}
	switch cfg.Output {
	case Mono, Gray:
		c.channels = 1
		switch cfg.Layout {
		case LayoutGray:
			c.row = c.gray_to_gray
		case LayoutGrayAlpha:
			c.row = c.graya_to_gray
		case LayoutRGB:
			c.row = c.rgb_to_gray
		case LayoutRGBA:
			c.row = c.rgba_to_gray
		case LayoutIndexed:
			c.row = c.indexed_to_gray
		case LayoutCMYK:
			c.row = c.cmyk_to_gray
		case LayoutCMYK16:
			c.row = c.cmyk16_to_gray
		}
		if cfg.Output == Mono {
			g := c.row
			c.row = func(in []byte, out []uint16) {
				g(in, out)
				threshold(out[:cfg.Width])
			}
		}
	case Color:
		c.channels = 3
		switch cfg.Layout {
		case LayoutGray:
			c.row = c.gray_to_color
		case LayoutGrayAlpha:
			c.row = c.graya_to_color
		case LayoutRGB:
			c.row = c.rgb_to_color
		case LayoutRGBA:
			c.row = c.rgba_to_color
		case LayoutIndexed:
			c.row = c.indexed_to_color
		case LayoutCMYK:
			c.channels = 4
			c.row = c.cmyk_to_color
		case LayoutCMYK16:
			c.channels = 4
			c.row = c.cmyk16_to_color
		}
	default:
		return nil, fmt.Errorf("%w: output %s", ErrParams, cfg.Output)
	}
	return c, nil
}

func (c *Converter) Channels() int { return c.channels }

// Convert converts one row. in must hold Width pixels and out
// Width*Channels values, interleaved per pixel. The returned mask has bit
// i set when channel i is zero across the whole row.
func (c *Converter) Convert(in []byte, out []uint16) (zero_mask uint, err error) {
	if len(in) < c.cfg.Width*c.bpp {
		return 0, fmt.Errorf("%w: row of %d bytes for %d pixels of %s", ErrLayout, len(in), c.cfg.Width, c.cfg.Layout)
	}
	if len(out) < c.cfg.Width*c.channels {
		return 0, fmt.Errorf("%w: output of %d values for %d pixels", ErrParams, len(out), c.cfg.Width)
	}
	c.row(in, out)
	return ZeroMask(out[:c.cfg.Width*c.channels], c.channels), nil
}

// ZeroMask returns a mask with bit i set when every value of channel i in
// the interleaved row is zero.
func ZeroMask(row []uint16, channels int) uint {
	var nz uint
	for i := 0; i < len(row); i += channels {
		for ch, v := range row[i : i+channels] {
			if v != 0 {
				nz |= 1 << ch
			}
		}
	}
	return ^nz & (1<<channels - 1)
}

func threshold(row []uint16) {
	for i, v := range row {
		if v >= 32768 {
			row[i] = 65535
		} else {
			row[i] = 0
		}
	}
}

// composite blends v against white with alpha a.
func composite(v, a uint8) uint8 {
	return uint8((uint32(v)*uint32(a) + 255*uint32(255-a) + 127) / 255)
}

func luminance(r, g, b uint8) uint8 {
	return uint8((uint32(r)*31 + uint32(g)*61 + uint32(b)*8) / 100)
}

func (c *Converter) gray_to_gray(in []byte, out []uint16) {
	lut := c.cfg.LUT.Composite
	for x := range c.cfg.Width {
		out[x] = lut[in[x]]
	}
}

func (c *Converter) graya_to_gray(in []byte, out []uint16) {
	lut := c.cfg.LUT.Composite
	last0, last1 := byte(255), byte(255)
	lastv := lut[255]
	for x := range c.cfg.Width {
		p := in[2*x : 2*x+2 : 2*x+2]
		if p[0] != last0 || p[1] != last1 {
			last0, last1 = p[0], p[1]
			lastv = lut[composite(p[0], p[1])]
		}
		out[x] = lastv
	}
}

func (c *Converter) rgb_to_gray(in []byte, out []uint16) {
	lut := c.cfg.LUT.Composite
	last := [3]byte{255, 255, 255}
	lastv := lut[255]
	for x := range c.cfg.Width {
		p := [3]byte(in[3*x : 3*x+3])
		if p != last {
			last = p
			lastv = lut[luminance(p[0], p[1], p[2])]
		}
		out[x] = lastv
	}
}

func (c *Converter) rgba_to_gray(in []byte, out []uint16) {
	lut := c.cfg.LUT.Composite
	last := [4]byte{255, 255, 255, 255}
	lastv := lut[255]
	for x := range c.cfg.Width {
		p := [4]byte(in[4*x : 4*x+4])
		if p != last {
			last = p
			lastv = lut[luminance(composite(p[0], p[3]), composite(p[1], p[3]), composite(p[2], p[3]))]
		}
		out[x] = lastv
	}
}

func (c *Converter) indexed_to_gray(in []byte, out []uint16) {
	lut := c.cfg.LUT.Composite
	var table [256]uint16
	for i, p := range c.colormap {
		table[i] = lut[luminance(p[0], p[1], p[2])]
	}
	for x := range c.cfg.Width {
		out[x] = table[in[x]]
	}
}

func (c *Converter) cmyk_to_gray(in []byte, out []uint16) {
	for x := range c.cfg.Width {
		p := in[4*x : 4*x+4 : 4*x+4]
		out[x] = cmyk_gray(uint32(p[0])*257, uint32(p[1])*257, uint32(p[2])*257, uint32(p[3])*257)
	}
}

func u16be(b []byte) uint32 { return uint32(b[0])<<8 | uint32(b[1]) }

func (c *Converter) cmyk16_to_gray(in []byte, out []uint16) {
	for x := range c.cfg.Width {
		p := in[8*x : 8*x+8 : 8*x+8]
		out[x] = cmyk_gray(u16be(p[0:2]), u16be(p[2:4]), u16be(p[4:6]), u16be(p[6:8]))
	}
}

func cmyk_gray(c, m, y, k uint32) uint16 {
	return uint16(min(65535, k+(c*31+m*61+y*8)/100))
}

func (c *Converter) gray_to_color(in []byte, out []uint16) {
	lut := c.cfg.LUT
	for x := range c.cfg.Width {
		v := in[x]
		o := out[3*x : 3*x+3 : 3*x+3]
		o[0], o[1], o[2] = lut.Red[v], lut.Green[v], lut.Blue[v]
	}
}

func (c *Converter) graya_to_color(in []byte, out []uint16) {
	lut := c.cfg.LUT
	for x := range c.cfg.Width {
		v := composite(in[2*x], in[2*x+1])
		o := out[3*x : 3*x+3 : 3*x+3]
		o[0], o[1], o[2] = lut.Red[v], lut.Green[v], lut.Blue[v]
	}
}

// rgb_pixel maps one light triple to ink through the optional hue and
// saturation adjustments.
func (c *Converter) rgb_pixel(r, g, b uint8, o []uint16) {
	if c.hsl != nil {
		r, g, b = c.hsl.apply(r, g, b)
	}
	lut := c.cfg.LUT
	o[0], o[1], o[2] = lut.Red[r], lut.Green[g], lut.Blue[b]
}

func (c *Converter) rgb_to_color(in []byte, out []uint16) {
	var last [3]byte
	var lastv [3]uint16
	have_last := false
	for x := range c.cfg.Width {
		p := [3]byte(in[3*x : 3*x+3])
		o := out[3*x : 3*x+3 : 3*x+3]
		if have_last && p == last {
			copy(o, lastv[:])
			continue
		}
		c.rgb_pixel(p[0], p[1], p[2], o)
		last, have_last = p, true
		copy(lastv[:], o)
	}
}

func (c *Converter) rgba_to_color(in []byte, out []uint16) {
	var last [4]byte
	var lastv [3]uint16
	have_last := false
	for x := range c.cfg.Width {
		p := [4]byte(in[4*x : 4*x+4])
		o := out[3*x : 3*x+3 : 3*x+3]
		if have_last && p == last {
			copy(o, lastv[:])
			continue
		}
		c.rgb_pixel(composite(p[0], p[3]), composite(p[1], p[3]), composite(p[2], p[3]), o)
		last, have_last = p, true
		copy(lastv[:], o)
	}
}

func (c *Converter) indexed_to_color(in []byte, out []uint16) {
	var last byte
	var lastv [3]uint16
	have_last := false
	for x := range c.cfg.Width {
		i := in[x]
		o := out[3*x : 3*x+3 : 3*x+3]
		if have_last && i == last {
			copy(o, lastv[:])
			continue
		}
		p := c.colormap[i]
		c.rgb_pixel(p[0], p[1], p[2], o)
		last, have_last = i, true
		copy(lastv[:], o)
	}
}

func (c *Converter) cmyk_to_color(in []byte, out []uint16) {
	for x := range c.cfg.Width {
		p := in[4*x : 4*x+4 : 4*x+4]
		o := out[4*x : 4*x+4 : 4*x+4]
		for i, v := range p {
			o[i] = uint16(v) * 257
		}
	}
}

func (c *Converter) cmyk16_to_color(in []byte, out []uint16) {
	for x := range c.cfg.Width {
		p := in[8*x : 8*x+8 : 8*x+8]
		o := out[4*x : 4*x+4 : 4*x+4]
		for i := range o {
			o[i] = uint16(p[2*i])<<8 | uint16(p[2*i+1])
		}
	}
}
