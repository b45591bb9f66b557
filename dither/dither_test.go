package dither

import (
	"math/bits"
	"slices"
	"testing"

	"github.com/kovidgoyal/halftone/colorsep"
	"github.com/kovidgoyal/halftone/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func black_config(algo Algorithm) Config {
	cfg := Config{Algorithm: algo, Input: InputBlack, Density: 1, BlackDensity: 1, InkSpread: 13}
	cfg.Inks[Black] = SingleDot()
	return cfg
}

func constant_row(width int, v uint16) []uint16 {
	row := make([]uint16, width)
	for i := range row {
		row[i] = v
	}
	return row
}

func count_bits(b []byte) (ans int) {
	for _, x := range b {
		ans += bits.OnesCount8(x)
	}
	return
}

func TestParseAlgorithm(t *testing.T) {
	for _, a := range Algorithms() {
		got, err := ParseAlgorithm(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	a, err := ParseAlgorithm("hybrid_floyd_steinberg")
	require.NoError(t, err)
	assert.Equal(t, HybridFloyd, a)
	a, err = ParseAlgorithm("VERY FAST")
	require.NoError(t, err)
	assert.Equal(t, VeryFast, a)
	a, err = ParseAlgorithm("bogus")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, DefaultAlgorithm, a)
}

func TestFastHalfGray(t *testing.T) {
	m, err := matrix.NewIterated(2, 1, matrix.Bayer2)
	require.NoError(t, err)
	for _, algo := range []Algorithm{Fast, VeryFast} {
		cfg := black_config(algo)
		cfg.Matrix = m
		d, err := New(64, 64, 1, 1, cfg)
		require.NoError(t, err)
		out := d.NewBuffers()
		require.Len(t, out.Black, 8)
		for y := range 4 {
			require.NoError(t, d.Dither(constant_row(64, 32768), y, out, false, 0))
			assert.Equal(t, 32, count_bits(out.Black), "%s row %d", algo, y)
		}
	}
}

func TestSegmentCoverage(t *testing.T) {
	for _, tc := range []struct {
		name string
		inks []InkLevel
	}{
		{"single", SingleDot()},
		{"variable", VariableDot()},
		{"light", LightDark(.33)},
		{"many", []InkLevel{{Value: .9, Bits: 3}, {Value: .1, Bits: 1}, {Value: .3, Bits: 2}, {Value: .6, Bits: 1, Light: true}, {Value: 1, Bits: 4}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Algorithm: Ordered, Input: InputCMY, Density: 1, BlackDensity: 1}
			cfg.Inks[Cyan], cfg.Inks[Magenta], cfg.Inks[Yellow] = tc.inks, SingleDot(), SingleDot()
			d, err := New(8, 8, 1, 1, cfg)
			require.NoError(t, err)
			segs := d.Segments(Cyan)
			require.Len(t, segs, len(tc.inks)+1)
			require.Equal(t, uint32(0), segs[0].RangeL)
			require.Equal(t, uint32(65536), segs[len(segs)-1].RangeH)
			for i, s := range segs {
				require.Less(t, s.RangeL, s.RangeH, "segment %d", i)
				require.LessOrEqual(t, s.ValueL, s.ValueH, "segment %d", i)
				if i > 0 {
					require.Equal(t, segs[i-1].RangeH, s.RangeL, "gap or overlap before segment %d", i)
				}
			}
			ch := d.by_id[Cyan]
			for v := uint32(0); v < 65536; v += 97 {
				s := ch.lookup(v)
				require.True(t, s.RangeL <= v && v < s.RangeH, "value %d in [%d, %d)", v, s.RangeL, s.RangeH)
			}
		})
	}
	assert.Nil(t, (&Dither{}).Segments(Black))
}

func TestRangepoint(t *testing.T) {
	levels, err := make_levels(Cyan, VariableDot())
	require.NoError(t, err)
	segs := make_segments(levels)
	assert.Equal(t, uint32(16384), segs[1].RangeL)
	assert.Equal(t, uint32(32768), segs[1].RangeH)
	assert.Equal(t, uint32(32768), segs[1].rangepoint(24576))
	assert.Equal(t, uint32(0), segs[1].rangepoint(16384))
	assert.Equal(t, uint32(32768), segs[0].rangepoint(100), "single level segments sit at the midpoint")

	_, err = make_levels(Black, LightDark(.5))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = make_levels(Cyan, []InkLevel{{Value: .5, Bits: 1}, {Value: .5, Bits: 2}})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = make_levels(Cyan, []InkLevel{{Value: 1.5, Bits: 1}})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = make_levels(Cyan, []InkLevel{{Value: 1}})
	assert.ErrorIs(t, err, ErrConfig)
}

func ink_units(d *Dither, b []byte, planes int) (ans int) {
	rb := d.RowBytes()
	for x := range d.dst_width {
		var pattern uint
		for p := range planes {
			if b[p*rb+x>>3]&(0x80>>(x&7)) != 0 {
				pattern |= 1 << p
			}
		}
		switch pattern {
		case 0:
		case 1:
			ans += 1
		case 2:
			ans += 2
		default:
			ans += 4
		}
	}
	return
}

func TestInkBudget(t *testing.T) {
	cfg := black_config(Ordered)
	cfg.InkBudget = 10
	d, err := New(64, 64, 1, 1, cfg)
	require.NoError(t, err)
	out := d.NewBuffers()
	for y := range 3 {
		require.NoError(t, d.Dither(constant_row(64, 65535), y, out, false, 0))
		assert.Equal(t, 10, count_bits(out.Black))
	}

	cfg.Inks[Black] = VariableDot()
	d, err = New(64, 64, 1, 1, cfg)
	require.NoError(t, err)
	out = d.NewBuffers()
	require.Equal(t, 2, d.Planes(Black, false))
	for _, v := range []uint16{65535, 40000, 20000} {
		require.NoError(t, d.Dither(constant_row(64, v), 0, out, false, 0))
		used := ink_units(d, out.Black, 2)
		assert.LessOrEqual(t, used, 10, "value %d", v)
		assert.Greater(t, used, 0, "value %d", v)
	}

	// the budget is shared by all inks of a row
	cmy := Config{Algorithm: Ordered, Input: InputCMY, Density: 1, BlackDensity: 1, InkBudget: 20}
	cmy.Inks[Cyan], cmy.Inks[Magenta], cmy.Inks[Yellow] = SingleDot(), SingleDot(), SingleDot()
	d, err = New(64, 64, 1, 1, cmy)
	require.NoError(t, err)
	out = d.NewBuffers()
	require.NoError(t, d.Dither(constant_row(3*64, 65535), 0, out, false, 0))
	assert.Equal(t, 20, count_bits(out.Cyan)+count_bits(out.Magenta)+count_bits(out.Yellow))
}

func TestOrderedPixelsIndependent(t *testing.T) {
	bit := func(b []byte, x int) byte { return (b[x>>3] >> (7 - x&7)) & 1 }
	for _, levels := range [][]InkLevel{SingleDot(), VariableDot()} {
		cfg := black_config(Ordered)
		cfg.Inks[Black] = levels
		plain, dense := constant_row(64, 30000), constant_row(64, 30000)
		for x := 0; x < len(dense); x += 2 {
			dense[x] = 65535
		}
		var got [2][]byte
		for i, row := range [][]uint16{plain, dense} {
			d, err := New(64, 64, 1, 1, cfg)
			require.NoError(t, err)
			out := d.NewBuffers()
			require.NoError(t, d.Dither(row, 3, out, false, 0))
			got[i] = out.Black
		}
		for x := 1; x < 64; x += 2 {
			for plane := 0; plane < len(got[0])/8; plane++ {
				require.Equal(t, bit(got[0][plane*8:], x), bit(got[1][plane*8:], x), "x=%d plane=%d", x, plane)
			}
		}
	}
}

func TestErrorDiffusionConverges(t *testing.T) {
	const width, rows, gray = 64, 1000, 16384
	for _, algo := range []Algorithm{HybridFloyd, RandomFloyd, AdaptiveHybrid} {
		cfg := black_config(algo)
		d, err := New(width, width, 1, 1, cfg)
		require.NoError(t, err)
		out := d.NewBuffers()
		row := constant_row(width, gray)
		total := 0
		for y := range rows {
			require.NoError(t, d.Dither(row, y, out, false, 0))
			total += count_bits(out.Black)
		}
		expected := float64(width*rows) * gray / 65535
		assert.InDelta(t, expected, float64(total), rows, "%s", algo)
	}
}

func TestSolidRows(t *testing.T) {
	for _, algo := range Algorithms() {
		d, err := New(40, 40, 1, 1, black_config(algo))
		require.NoError(t, err)
		out := d.NewBuffers()
		for y := range 4 {
			require.NoError(t, d.Dither(constant_row(40, 65535), y, out, false, 0))
			assert.Equal(t, 40, count_bits(out.Black), "%s black row %d", algo, y)
		}
		for y := 4; y < 8; y++ {
			require.NoError(t, d.Dither(constant_row(40, 0), y, out, false, 1))
			assert.Equal(t, 0, count_bits(out.Black), "%s white row %d", algo, y)
		}
	}
}

func TestEmptyRows(t *testing.T) {
	d, err := New(32, 32, 1, 1, black_config(HybridFloyd))
	require.NoError(t, err)
	out := d.NewBuffers()
	require.NoError(t, d.Dither(constant_row(32, 20000), 0, out, false, 0))
	ch := d.by_id[Black]
	has_error := func() bool {
		return slices.ContainsFunc(ch.errs[0], func(v int32) bool { return v != 0 }) ||
			slices.ContainsFunc(ch.errs[1], func(v int32) bool { return v != 0 })
	}
	require.True(t, has_error())
	white := constant_row(32, 0)
	for y := 1; y <= 3; y++ {
		require.NoError(t, d.Dither(white, y, out, false, 1))
		assert.Equal(t, y, d.last_line_was_empty)
	}
	processed := d.processed
	require.NoError(t, d.Dither(white, 4, out, false, 1))
	assert.False(t, has_error(), "the fourth empty row discards the error")
	assert.Equal(t, processed, d.processed)

	for i := range out.Black {
		out.Black[i] = 0xff
	}
	require.NoError(t, d.Dither(white, 5, out, false, 1))
	assert.Equal(t, 5, d.last_line_was_empty)
	assert.Equal(t, 0, count_bits(out.Black))

	require.NoError(t, d.Dither(constant_row(32, 65535), 6, out, false, 0))
	assert.Equal(t, 0, d.last_line_was_empty)
	assert.Equal(t, 32, count_bits(out.Black))
}

func TestDuplicateLine(t *testing.T) {
	row := make([]uint16, 48)
	for i := range row {
		row[i] = uint16(i * 1300)
	}
	a, err := New(48, 48, 1, 1, black_config(Ordered))
	require.NoError(t, err)
	b, err := New(48, 48, 1, 1, black_config(Ordered))
	require.NoError(t, err)
	oa, ob := a.NewBuffers(), b.NewBuffers()
	require.NoError(t, a.Dither(row, 0, oa, false, 0))
	require.NoError(t, a.Dither(nil, 1, oa, true, 0))
	require.NoError(t, b.Dither(row, 1, ob, false, 0))
	assert.Equal(t, ob.Black, oa.Black)

	c, err := New(48, 48, 1, 1, black_config(Ordered))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Dither(nil, 0, c.NewBuffers(), true, 0), ErrBuffer)
}

func TestHorizontalStepping(t *testing.T) {
	d, err := New(4, 8, 1, 1, black_config(Fast))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2, 3, 3}, d.src_index)
	out := d.NewBuffers()
	require.NoError(t, d.Dither([]uint16{65535, 0, 65535, 0}, 0, out, false, 0))
	assert.Equal(t, []byte{0xcc}, out.Black)

	d, err = New(10, 3, 1, 1, black_config(Fast))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6}, d.src_index)
}

func TestSeparation(t *testing.T) {
	g, err := colorsep.NewBlackGenerator(colorsep.DefaultBlackParams())
	require.NoError(t, err)
	cfg := Config{Algorithm: Fast, Input: InputCMY, Density: 1, BlackDensity: 1, BlackGenerator: g}
	cfg.Inks[Black], cfg.Inks[Cyan], cfg.Inks[Magenta], cfg.Inks[Yellow] = SingleDot(), SingleDot(), SingleDot(), SingleDot()
	d, err := New(16, 16, 1, 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, []Channel{Black, Cyan, Magenta, Yellow}, d.Channels())
	out := d.NewBuffers()
	require.NoError(t, d.Dither(constant_row(48, 65535), 0, out, false, 0))
	assert.Equal(t, 16, count_bits(out.Black))
	assert.Equal(t, 0, count_bits(out.Cyan)+count_bits(out.Magenta)+count_bits(out.Yellow))

	// without a generator the black ink of a CMY job stays unused
	cfg.BlackGenerator = nil
	d, err = New(16, 16, 1, 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, []Channel{Cyan, Magenta, Yellow}, d.Channels())
	assert.Nil(t, d.NewBuffers().Black)

	fold := Config{Algorithm: Fast, Input: InputCMYK, Density: 1, BlackDensity: 1}
	fold.Inks[Cyan], fold.Inks[Magenta], fold.Inks[Yellow] = SingleDot(), SingleDot(), SingleDot()
	d, err = New(8, 8, 1, 1, fold)
	require.NoError(t, err)
	require.Equal(t, 4, d.InputChannels())
	out = d.NewBuffers()
	row := make([]uint16, 32)
	for x := range 8 {
		row[4*x+3] = 65535
	}
	require.NoError(t, d.Dither(row, 0, out, false, 0))
	for _, b := range [][]byte{out.Cyan, out.Magenta, out.Yellow} {
		assert.Equal(t, 8, count_bits(b))
	}

	light := Config{Algorithm: Fast, Input: InputCMY, Density: 1}
	light.Inks[Cyan], light.Inks[Magenta], light.Inks[Yellow] = LightDark(.3), SingleDot(), SingleDot()
	d, err = New(8, 8, 1, 1, light)
	require.NoError(t, err)
	out = d.NewBuffers()
	require.Len(t, out.LightCyan, 1)
	require.NoError(t, d.Dither(constant_row(24, 10000), 0, out, false, 0))
	assert.Equal(t, 0, count_bits(out.Cyan), "light areas only use the light ink")
	assert.Greater(t, count_bits(out.LightCyan), 0)

	missing := Config{Algorithm: Fast, Input: InputCMY, Density: 1}
	missing.Inks[Cyan] = SingleDot()
	_, err = New(8, 8, 1, 1, missing)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestDensity(t *testing.T) {
	cfg := black_config(Fast)
	cfg.BlackDensity = .5
	d, err := New(64, 64, 1, 1, cfg)
	require.NoError(t, err)
	out := d.NewBuffers()
	total := 0
	for y := range 64 {
		require.NoError(t, d.Dither(constant_row(64, 65535), y, out, false, 0))
		total += count_bits(out.Black)
	}
	assert.InDelta(t, 64*64/2, total, 64)
}

func TestTransition(t *testing.T) {
	d, err := New(8, 8, 1, 1, black_config(Ordered))
	require.NoError(t, err)
	assert.Equal(t, 1., d.Transition())
	assert.Equal(t, uint16(16384), d.virtual_dot_scale[16384])
	require.NoError(t, d.SetTransition(2))
	assert.Equal(t, 2., d.Transition())
	assert.Equal(t, uint16(32767), d.virtual_dot_scale[16384])
	assert.Equal(t, uint16(65535), d.virtual_dot_scale[65535])
	assert.ErrorIs(t, d.SetTransition(0), ErrConfig)
}

func TestErrors(t *testing.T) {
	_, err := New(0, 8, 1, 1, black_config(Fast))
	assert.ErrorIs(t, err, ErrConfig)
	cfg := black_config(Fast)
	cfg.InkSpread = 20
	_, err = New(8, 8, 1, 1, cfg)
	assert.ErrorIs(t, err, ErrConfig)
	cfg = black_config(Fast)
	cfg.Density = 2
	_, err = New(8, 8, 1, 1, cfg)
	assert.ErrorIs(t, err, ErrConfig)

	d, err := New(16, 16, 5, 1, black_config(Fast))
	require.NoError(t, err, "a missing aspect falls back to the square matrix")
	x, _ := d.matrix.Size()
	assert.Equal(t, 64, x)

	assert.ErrorIs(t, d.Dither(constant_row(16, 0), 0, &Buffers{Black: make([]byte, 1)}, false, 0), ErrBuffer)
	assert.ErrorIs(t, d.Dither(constant_row(8, 0), 0, d.NewBuffers(), false, 0), ErrBuffer)
	assert.ErrorIs(t, d.Dither(constant_row(16, 0), 0, nil, false, 0), ErrBuffer)
	d.Free()
	assert.ErrorIs(t, d.Dither(constant_row(16, 0), 0, d.NewBuffers(), false, 0), ErrFreed)
	assert.ErrorIs(t, d.SetTransition(1), ErrFreed)
}
