// Package dither turns rows of 16 bit ink amounts into packed bit planes,
// one row at a time. A Dither carries error diffusion state from row to
// row, so rows must be fed in ascending order by a single goroutine.
package dither

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/kovidgoyal/go-parallel"
	"github.com/kovidgoyal/halftone/colorsep"
	"github.com/kovidgoyal/halftone/matrix"
)

var _ = fmt.Print

var (
	ErrConfig = errors.New("invalid dither configuration")
	ErrBuffer = errors.New("buffer too small")
	ErrFreed  = errors.New("dither used after Free")
)

// Input describes the interleaved channels of the rows passed to Dither.
type Input int

const (
	InputBlack Input = iota // one channel of black
	InputCMY                // cyan, magenta, yellow, black is generated when the ink set has it
	InputCMYK               // cyan, magenta, yellow, black
)

func (i Input) channels() int {
	switch i {
	case InputBlack:
		return 1
	case InputCMY:
		return 3
	case InputCMYK:
		return 4
	}
	return 0
}

const (
	// MaxInkSpread is the largest shift of the error spread width
	MaxInkSpread = 19
	max_offset   = 16
	err_pad      = max_offset + 1
)

type Config struct {
	Algorithm Algorithm
	Input     Input
	// Ink levels indexed by Channel, nil for inks the printer lacks
	Inks [ChannelCount][]InkLevel
	// Scale factors in [0, 1] applied to the colored inks and to black
	Density, BlackDensity float64
	// Smaller values spread error in highlights more widely, in [0, 19]
	InkSpread int
	// Adaptive algorithms use ordered dither below Density/AdaptiveDivisor,
	// zero means 4
	AdaptiveDivisor float64
	// Strength of the threshold noise in highlights, in [0, 1]
	Randomizer float64
	// Exponent of the transition between adjacent drop sizes, zero means 1
	Transition float64
	// Ink budget per row in DotSize units, zero is unlimited
	InkBudget int
	// Threshold matrix. When nil it is taken from Matrices for the aspect
	// passed to New, falling back to the 1:1 matrix.
	Matrix   *matrix.Matrix
	Matrices *matrix.Cache
	// Used for InputCMY rows when the ink set has black
	BlackGenerator *colorsep.BlackGenerator
	// Seed of the noise used by the random algorithms
	Seed   uint64
	Logger *slog.Logger
}

// Buffers receives one row of output. Each plane of a channel occupies
// RowBytes bytes, the planes of a channel follow each other. The buffers
// of channels that are not printed may be nil.
type Buffers struct {
	Cyan, LightCyan       []byte
	Magenta, LightMagenta []byte
	Yellow, LightYellow   []byte
	Black                 []byte
}

// Plane returns the dark or light buffer of channel c.
func (b *Buffers) Plane(c Channel, light bool) []byte {
	if p := b.get(c, light); p != nil {
		return *p
	}
	return nil
}

func (b *Buffers) get(c Channel, light bool) *[]byte {
	switch c {
	case Black:
		return &b.Black
	case Cyan:
		if light {
			return &b.LightCyan
		}
		return &b.Cyan
	case Magenta:
		if light {
			return &b.LightMagenta
		}
		return &b.Magenta
	case Yellow:
		if light {
			return &b.LightYellow
		}
		return &b.Yellow
	}
	return nil
}

type channel struct {
	id             Channel
	levels         []level
	segments       []Segment
	density        uint32 // 16.16 fixed point
	d_cutoff       uint32
	adaptive_limit uint32
	dither, pick   *matrix.Cursor
	errs           [2][]int32
	values         []uint16
	dark_planes    int
	light_planes   int
	top            *level

	out, light_out []byte
}

type Dither struct {
	cfg                  Config
	logger               *slog.Logger
	src_width, dst_width int
	src_index            []int
	row_bytes            int
	channels             []*channel
	by_id                [ChannelCount]*channel
	input_channels       int
	matrix               *matrix.Matrix
	transition           float64
	virtual_dot_scale    []uint16
	spread               uint
	randomizer           uint32
	budget               int
	rng                  *rand.Rand
	separate             func(row []uint16)

	last_line_was_empty int
	processed           int
	saved               []uint16
	saved_mask          uint
	have_saved          bool
	freed               bool
}

func (c *Config) validate() error {
	for _, v := range []struct {
		name      string
		v, lo, hi float64
	}{
		{"density", c.Density, 0, 1},
		{"black density", c.BlackDensity, 0, 1},
		{"randomizer", c.Randomizer, 0, 1},
		{"adaptive divisor", c.AdaptiveDivisor, 0, 1 << 16},
		{"transition", c.Transition, 0, 100},
	} {
		if math.IsNaN(v.v) || v.v < v.lo || v.v > v.hi {
			return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrConfig, v.name, v.v, v.lo, v.hi)
		}
	}
	if c.InkSpread < 0 || c.InkSpread > MaxInkSpread {
		return fmt.Errorf("%w: ink spread %d not in [0, %d]", ErrConfig, c.InkSpread, MaxInkSpread)
	}
	if c.InkBudget < 0 {
		return fmt.Errorf("%w: ink budget %d", ErrConfig, c.InkBudget)
	}
	if c.Algorithm < 0 || int(c.Algorithm) >= len(algorithm_names) {
		return fmt.Errorf("%w: %s", ErrConfig, c.Algorithm)
	}
	return nil
}

// New creates the dither state for rows of src_width input pixels printed
// as dst_width output pixels. h_aspect and v_aspect select the threshold
// matrix when cfg.Matrix is nil.
func New(src_width, dst_width, h_aspect, v_aspect int, cfg Config) (*Dither, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if src_width < 1 || dst_width < 1 {
		return nil, fmt.Errorf("%w: source width %d destination width %d", ErrConfig, src_width, dst_width)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.AdaptiveDivisor == 0 {
		cfg.AdaptiveDivisor = 4
	}
	if cfg.Transition == 0 {
		cfg.Transition = 1
	}
	d := &Dither{
		cfg: cfg, logger: logger, src_width: src_width, dst_width: dst_width,
		row_bytes: (dst_width + 7) / 8, input_channels: cfg.Input.channels(),
		spread: uint(cfg.InkSpread), randomizer: uint32(cfg.Randomizer * 65536),
		rng: rand.New(rand.NewPCG(cfg.Seed, 0x9e3779b97f4a7c15)),
	}
	if d.input_channels == 0 {
		return nil, fmt.Errorf("%w: unknown input %d", ErrConfig, cfg.Input)
	}
	d.src_index = make([]int, dst_width)
	for x := range d.src_index {
		d.src_index[x] = x * src_width / dst_width
	}
	if err := d.setup_channels(); err != nil {
		return nil, err
	}
	if err := d.setup_matrix(h_aspect, v_aspect); err != nil {
		logger.Warn("could not set up dither matrix", "algorithm", cfg.Algorithm, "x_aspect", h_aspect, "y_aspect", v_aspect, "error", err)
		return nil, err
	}
	if err := d.SetTransition(cfg.Transition); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dither) active(c Channel) bool {
	inks := d.cfg.Inks[c]
	switch d.cfg.Input {
	case InputBlack:
		return c == Black
	case InputCMY:
		if c == Black {
			return inks != nil && d.cfg.BlackGenerator != nil
		}
		return true
	default:
		return c != Black || inks != nil
	}
}

func (d *Dither) setup_channels() error {
	for c := range ChannelCount {
		if !d.active(c) {
			continue
		}
		levels, err := make_levels(c, d.cfg.Inks[c])
		if err != nil {
			return err
		}
		density := d.cfg.Density
		if c == Black {
			density = d.cfg.BlackDensity
		}
		ch := &channel{
			id: c, levels: levels, segments: make_segments(levels),
			density: uint32(math.Round(density * 65536)),
			values:  make([]uint16, d.dst_width),
		}
		ch.top = &levels[len(levels)-1]
		ch.d_cutoff = ch.density / 16
		ch.adaptive_limit = uint32(float64(ch.density) / d.cfg.AdaptiveDivisor)
		ch.dark_planes = planes_for(levels, false)
		ch.light_planes = planes_for(levels, true)
		if d.cfg.Algorithm.error_diffusion() {
			for i := range ch.errs {
				ch.errs[i] = make([]int32, d.dst_width+2*err_pad)
			}
		}
		d.channels = append(d.channels, ch)
		d.by_id[c] = ch
	}
	switch d.cfg.Input {
	case InputBlack:
		d.separate = d.separate_black
	case InputCMY:
		if d.by_id[Black] != nil {
			d.separate = d.separate_cmy_gcr
		} else {
			d.separate = d.separate_cmy
		}
	case InputCMYK:
		if d.by_id[Black] != nil {
			d.separate = d.separate_cmyk
		} else {
			d.separate = d.separate_cmyk_fold
		}
	}
	return nil
}

func (d *Dither) setup_matrix(h_aspect, v_aspect int) (err error) {
	var m *matrix.Matrix
	switch {
	case d.cfg.Algorithm == VeryFast:
		m, err = matrix.NewIterated(2, 1, matrix.Bayer2)
	case d.cfg.Matrix != nil:
		m = d.cfg.Matrix
	default:
		cache := d.cfg.Matrices
		if cache == nil {
			cache = &matrix.Cache{}
		}
		if m, err = cache.Get(h_aspect, v_aspect); err != nil {
			d.logger.Warn("no dither matrix for aspect, using 1:1", "x_aspect", h_aspect, "y_aspect", v_aspect, "error", err)
			m, err = cache.Get(1, 1)
		}
	}
	if err != nil {
		return err
	}
	d.matrix = m.Copy()
	rc := channel_phases(len(d.channels))
	x_size, y_size := d.matrix.Size()
	for i, ch := range d.channels {
		ch.dither = d.matrix.Clone((i%rc)*x_size/rc, (i/rc)*y_size/rc)
	}
	return nil
}

func channel_phases(n int) int { return 1 + int(math.Ceil(math.Sqrt(float64(n)))) }

// SetTransition rebuilds the matrix that picks between adjacent drop sizes
// and the virtual dot size table for the given exponent. Exponents above
// 1 favor the smaller drop, below 1 the larger one.
func (d *Dither) SetTransition(exponent float64) error {
	if d.freed {
		return ErrFreed
	}
	if math.IsNaN(exponent) || math.IsInf(exponent, 0) || exponent <= 0 {
		return fmt.Errorf("%w: transition %v", ErrConfig, exponent)
	}
	pick := d.matrix.Copy()
	x_size, y_size := pick.Size()
	if x_size%3 != 0 && y_size%3 != 0 {
		// decorrelates the drop size choice from the threshold
		pick.Shear(2, 2)
	}
	linear := exponent > .999 && exponent < 1.001
	if !linear {
		pick.ExponentialScale(exponent)
	}
	rc := channel_phases(len(d.channels))
	for i, ch := range d.channels {
		ch.pick = pick.Clone((i%rc)*x_size/rc, (i/rc)*y_size/rc)
	}
	vds := make([]uint16, 65536)
	if linear {
		for i := range vds {
			vds[i] = uint16(i)
		}
	} else {
		inv := 1 / exponent
		if err := parallel.Run_in_parallel_over_range(0, func(start, limit int) {
			for i := start; i < limit; i++ {
				vds[i] = uint16(math.Pow(float64(i)/65535, inv) * 65535)
			}
		}, 0, len(vds)); err != nil {
			return err
		}
	}
	d.transition = exponent
	d.virtual_dot_scale = vds
	return nil
}

func (d *Dither) Algorithm() Algorithm { return d.cfg.Algorithm }
func (d *Dither) Transition() float64  { return d.transition }
func (d *Dither) RowBytes() int        { return d.row_bytes }
func (d *Dither) Width() int           { return d.dst_width }

// InputChannels is the number of interleaved values per pixel that
// Dither expects.
func (d *Dither) InputChannels() int { return d.input_channels }

// Channels lists the channels that are printed.
func (d *Dither) Channels() []Channel {
	ans := make([]Channel, len(d.channels))
	for i, ch := range d.channels {
		ans[i] = ch.id
	}
	return ans
}

// Planes returns the number of bit planes of the dark or light buffer of
// channel c, zero when it is not printed.
func (d *Dither) Planes(c Channel, light bool) int {
	if c < 0 || c >= ChannelCount || d.by_id[c] == nil {
		return 0
	}
	if light {
		return d.by_id[c].light_planes
	}
	return d.by_id[c].dark_planes
}

// Segments returns the dither segments of channel c in ascending order.
func (d *Dither) Segments(c Channel) []Segment {
	if c < 0 || c >= ChannelCount || d.by_id[c] == nil {
		return nil
	}
	return append([]Segment(nil), d.by_id[c].segments...)
}

// NewBuffers allocates output buffers sized for this dither.
func (d *Dither) NewBuffers() *Buffers {
	b := &Buffers{}
	for _, ch := range d.channels {
		if ch.dark_planes > 0 {
			*b.get(ch.id, false) = make([]byte, ch.dark_planes*d.row_bytes)
		}
		if ch.light_planes > 0 {
			*b.get(ch.id, true) = make([]byte, ch.light_planes*d.row_bytes)
		}
	}
	return b
}

// Free releases the dither state. Further calls fail with ErrFreed.
func (d *Dither) Free() {
	d.freed = true
	d.channels = nil
	d.by_id = [ChannelCount]*channel{}
	d.saved = nil
	d.virtual_dot_scale = nil
	d.matrix = nil
}

func (d *Dither) bind_buffers(out *Buffers) error {
	for _, ch := range d.channels {
		for _, light := range []bool{false, true} {
			planes := ch.dark_planes
			if light {
				planes = ch.light_planes
			}
			if planes == 0 {
				continue
			}
			buf := *out.get(ch.id, light)
			if need := planes * d.row_bytes; len(buf) < need {
				name := ch.id.String()
				if light {
					name = "light " + name
				}
				return fmt.Errorf("%w: %s buffer has %d bytes, needs %d", ErrBuffer, name, len(buf), need)
			}
			buf = buf[:planes*d.row_bytes]
			clear(buf)
			if light {
				ch.light_out = buf
			} else {
				ch.out = buf
			}
		}
	}
	return nil
}

// Dither dithers one row. row holds InputChannels interleaved values per
// source pixel. When duplicate_line is set the previous row is dithered
// again and row may be nil. Bit i of zero_mask is set when input channel i
// is zero across the row; after four such rows the error is discarded and
// from the fifth on nothing is computed. The output buffers are cleared
// before anything is written to them.
func (d *Dither) Dither(row []uint16, row_number int, out *Buffers, duplicate_line bool, zero_mask uint) error {
	if d.freed {
		return ErrFreed
	}
	if out == nil {
		return fmt.Errorf("%w: no output buffers", ErrBuffer)
	}
	if err := d.bind_buffers(out); err != nil {
		return err
	}
	if duplicate_line && d.have_saved {
		row, zero_mask = d.saved, d.saved_mask
	} else {
		if need := d.src_width * d.input_channels; len(row) < need {
			return fmt.Errorf("%w: row has %d values, needs %d", ErrBuffer, len(row), need)
		}
		d.saved = append(d.saved[:0], row[:d.src_width*d.input_channels]...)
		d.saved_mask, d.have_saved = zero_mask, true
	}
	all := uint(1)<<d.input_channels - 1
	if zero_mask&all == all {
		d.last_line_was_empty++
		if d.last_line_was_empty >= 5 {
			return nil
		}
		if d.last_line_was_empty == 4 {
			for _, ch := range d.channels {
				for _, e := range ch.errs {
					clear(e)
				}
			}
			return nil
		}
	} else {
		d.last_line_was_empty = 0
	}
	d.separate(row)
	d.budget = d.cfg.InkBudget
	for _, ch := range d.channels {
		ch.dither.SetRow(row_number)
		ch.pick.SetRow(row_number)
		switch d.cfg.Algorithm {
		case Fast, VeryFast:
			d.fast_row(ch)
		case Ordered:
			d.ordered_row(ch)
		default:
			d.ed_row(ch, row_number)
		}
	}
	d.processed++
	return nil
}

func scale(v uint32, density uint32) uint16 {
	return uint16(min(65535, (v*density)>>16))
}

func (d *Dither) separate_black(row []uint16) {
	k := d.by_id[Black]
	for x, s := range d.src_index {
		k.values[x] = scale(uint32(row[s]), k.density)
	}
}

func (d *Dither) separate_cmy(row []uint16) {
	c, m, y := d.by_id[Cyan], d.by_id[Magenta], d.by_id[Yellow]
	for x, s := range d.src_index {
		p := row[3*s : 3*s+3 : 3*s+3]
		c.values[x] = scale(uint32(p[0]), c.density)
		m.values[x] = scale(uint32(p[1]), m.density)
		y.values[x] = scale(uint32(p[2]), y.density)
	}
}

func (d *Dither) separate_cmy_gcr(row []uint16) {
	c, m, y, k := d.by_id[Cyan], d.by_id[Magenta], d.by_id[Yellow], d.by_id[Black]
	g := d.cfg.BlackGenerator
	for x, s := range d.src_index {
		p := row[3*s : 3*s+3 : 3*s+3]
		nc, nm, ny, nk := g.Update(uint32(p[0]), uint32(p[1]), uint32(p[2]))
		c.values[x] = scale(nc, c.density)
		m.values[x] = scale(nm, m.density)
		y.values[x] = scale(ny, y.density)
		k.values[x] = scale(nk, k.density)
	}
}

func (d *Dither) separate_cmyk(row []uint16) {
	c, m, y, k := d.by_id[Cyan], d.by_id[Magenta], d.by_id[Yellow], d.by_id[Black]
	for x, s := range d.src_index {
		p := row[4*s : 4*s+4 : 4*s+4]
		c.values[x] = scale(uint32(p[0]), c.density)
		m.values[x] = scale(uint32(p[1]), m.density)
		y.values[x] = scale(uint32(p[2]), y.density)
		k.values[x] = scale(uint32(p[3]), k.density)
	}
}

func (d *Dither) separate_cmyk_fold(row []uint16) {
	c, m, y := d.by_id[Cyan], d.by_id[Magenta], d.by_id[Yellow]
	for x, s := range d.src_index {
		p := row[4*s : 4*s+4 : 4*s+4]
		nc, nm, ny := colorsep.FoldBlack(uint32(p[0]), uint32(p[1]), uint32(p[2]), uint32(p[3]))
		c.values[x] = scale(nc, c.density)
		m.values[x] = scale(nm, m.density)
		y.values[x] = scale(ny, y.density)
	}
}
