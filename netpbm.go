package halftone

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

var ErrNetPBM = errors.New("malformed netpbm image")

const netpbm_max_pixels = 1 << 28

type netpbm_header struct {
	kind                  byte // the digit after P
	width, height, maxval int
}

func (h netpbm_header) bitmap() bool { return h.kind == '1' || h.kind == '4' }
func (h netpbm_header) gray() bool   { return h.kind == '2' || h.kind == '5' }
func (h netpbm_header) ascii() bool  { return h.kind <= '3' }

func (h netpbm_header) color_model() color.Model {
	switch {
	case h.bitmap() || h.gray() && h.maxval < 256:
		return color.GrayModel
	case h.gray():
		return color.Gray16Model
	case h.maxval < 256:
		return RGBModel
	}
	return color.RGBA64Model
}

type netpbm_reader struct {
	r *bufio.Reader
}

func is_space(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func truncated(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", ErrNetPBM, err)
}

func (p *netpbm_reader) skip_space() error {
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			return truncated(err)
		}
		switch {
		case c == '#':
			if _, err = p.r.ReadString('\n'); err != nil {
				return truncated(err)
			}
		case !is_space(c):
			return p.r.UnreadByte()
		}
	}
}

// number reads a decimal and the single whitespace byte after it, so
// that binary data may follow directly.
func (p *netpbm_reader) number() (n int, err error) {
	if err = p.skip_space(); err != nil {
		return
	}
	digits := 0
	for {
		c, err := p.r.ReadByte()
		if err == io.EOF && digits > 0 {
			return n, nil
		}
		if err != nil {
			return 0, truncated(err)
		}
		if c < '0' || c > '9' {
			switch {
			case digits == 0:
				return 0, fmt.Errorf("%w: unexpected %q where a number was expected", ErrNetPBM, c)
			case c == '#':
				return n, p.r.UnreadByte()
			case !is_space(c):
				return 0, fmt.Errorf("%w: unexpected %q after a number", ErrNetPBM, c)
			}
			return n, nil
		}
		if n > 1<<24 {
			return 0, fmt.Errorf("%w: number too large", ErrNetPBM)
		}
		n = n*10 + int(c-'0')
		digits++
	}
}

// bit reads one pixel of a plain PBM, where the digits need not be
// separated.
func (p *netpbm_reader) bit() (byte, error) {
	if err := p.skip_space(); err != nil {
		return 0, err
	}
	c, err := p.r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	if c != '0' && c != '1' {
		return 0, fmt.Errorf("%w: unexpected %q in bitmap", ErrNetPBM, c)
	}
	return c - '0', nil
}

func (p *netpbm_reader) sample(h *netpbm_header) (v int, err error) {
	switch {
	case h.ascii():
		if v, err = p.number(); err != nil {
			return
		}
	case h.maxval < 256:
		c, err := p.r.ReadByte()
		if err != nil {
			return 0, truncated(err)
		}
		v = int(c)
	default:
		var b [2]byte
		if _, err = io.ReadFull(p.r, b[:]); err != nil {
			return 0, truncated(err)
		}
		v = int(b[0])<<8 | int(b[1])
	}
	if v > h.maxval {
		return 0, fmt.Errorf("%w: sample %d above the maximum %d", ErrNetPBM, v, h.maxval)
	}
	return
}

func read_netpbm_header(r *bufio.Reader) (h netpbm_header, err error) {
	var magic [2]byte
	if _, err = io.ReadFull(r, magic[:]); err != nil {
		return h, truncated(err)
	}
	if magic[0] != 'P' || magic[1] < '1' || magic[1] > '6' {
		return h, fmt.Errorf("%w: unknown magic %q", ErrNetPBM, magic[:])
	}
	h.kind = magic[1]
	p := netpbm_reader{r}
	if h.width, err = p.number(); err != nil {
		return
	}
	if h.height, err = p.number(); err != nil {
		return
	}
	h.maxval = 1
	if !h.bitmap() {
		if h.maxval, err = p.number(); err != nil {
			return
		}
		if h.maxval < 1 || h.maxval > 65535 {
			return h, fmt.Errorf("%w: maximum value %d", ErrNetPBM, h.maxval)
		}
	}
	if h.width < 1 || h.height < 1 || h.width*h.height > netpbm_max_pixels {
		return h, fmt.Errorf("%w: size %dx%d", ErrNetPBM, h.width, h.height)
	}
	return
}

func scale8(v, maxval int) uint8 {
	return uint8((v*255 + maxval/2) / maxval)
}

func scale16(v, maxval int) (hi, lo uint8) {
	s := (v*65535 + maxval/2) / maxval
	return uint8(s >> 8), uint8(s)
}

// DecodeNetPBMConfig reads the header of a PBM, PGM or PPM image in
// either the plain or the raw encoding.
func DecodeNetPBMConfig(r io.Reader) (image.Config, error) {
	h, err := read_netpbm_header(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: h.color_model(), Width: h.width, Height: h.height}, nil
}

// DecodeNetPBM reads a PBM, PGM or PPM image. Bitmaps and gray images
// decode to *image.Gray, or *image.Gray16 for samples wider than a byte,
// color images to *RGB or *image.RGBA64.
func DecodeNetPBM(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := read_netpbm_header(br)
	if err != nil {
		return nil, err
	}
	p := netpbm_reader{br}
	rect := image.Rect(0, 0, h.width, h.height)
	switch {
	case h.kind == '4':
		img := image.NewGray(rect)
		row := make([]byte, (h.width+7)/8)
		for y := range h.height {
			if _, err = io.ReadFull(br, row); err != nil {
				return nil, truncated(err)
			}
			pix := img.Pix[y*img.Stride:]
			for x := range h.width {
				if row[x>>3]&(0x80>>(x&7)) == 0 {
					pix[x] = 255
				}
			}
		}
		return img, nil
	case h.kind == '1':
		img := image.NewGray(rect)
		for i := range img.Pix {
			b, err := p.bit()
			if err != nil {
				return nil, err
			}
			if b == 0 {
				img.Pix[i] = 255
			}
		}
		return img, nil
	case h.maxval < 256:
		var img image.Image
		var pix []uint8
		if h.gray() {
			g := image.NewGray(rect)
			img, pix = g, g.Pix
		} else {
			c := NewRGB(rect)
			img, pix = c, c.Pix
		}
		for i := range pix {
			v, err := p.sample(&h)
			if err != nil {
				return nil, err
			}
			pix[i] = scale8(v, h.maxval)
		}
		return img, nil
	case h.gray():
		img := image.NewGray16(rect)
		for i := 0; i < len(img.Pix); i += 2 {
			v, err := p.sample(&h)
			if err != nil {
				return nil, err
			}
			img.Pix[i], img.Pix[i+1] = scale16(v, h.maxval)
		}
		return img, nil
	}
	img := image.NewRGBA64(rect)
	for i := 0; i < len(img.Pix); i += 8 {
		for c := 0; c < 6; c += 2 {
			v, err := p.sample(&h)
			if err != nil {
				return nil, err
			}
			img.Pix[i+c], img.Pix[i+c+1] = scale16(v, h.maxval)
		}
		img.Pix[i+6], img.Pix[i+7] = 0xff, 0xff
	}
	return img, nil
}

func init() {
	for _, magic := range []string{"P1", "P2", "P3", "P4", "P5", "P6"} {
		image.RegisterFormat("netpbm", magic, DecodeNetPBM, DecodeNetPBMConfig)
	}
}
