package colorsep

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kovidgoyal/halftone/curve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func non_increasing(t *testing.T, name string, table []uint16) {
	t.Helper()
	for i := 1; i < len(table); i++ {
		require.LessOrEqual(t, table[i], table[i-1], "%s[%d]", name, i)
	}
}

func TestLUTMonotonic(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Params)
	}{
		{"defaults", func(*Params) {}},
		{"high contrast", func(p *Params) { p.Contrast = 2.5 }},
		{"threshold contrast", func(p *Params) { p.Contrast = 4 }},
		{"low contrast", func(p *Params) { p.Contrast = .3 }},
		{"dark", func(p *Params) { p.Brightness = .4 }},
		{"light", func(p *Params) { p.Brightness = 1.7 }},
		{"gamma", func(p *Params) { p.Gamma = 2.2; p.AppGamma = 1 }},
		{"impure inks", func(p *Params) { p.Cyan, p.Magenta, p.Yellow = 1.3, .8, 2 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.modify(&p)
			for _, steps := range []int{256, 65536} {
				lut, err := ComputeLUT(p, steps)
				require.NoError(t, err)
				non_increasing(t, "composite", lut.Composite)
				non_increasing(t, "red", lut.Red)
				non_increasing(t, "green", lut.Green)
				non_increasing(t, "blue", lut.Blue)
			}
		})
	}
}

func TestLUTValues(t *testing.T) {
	lut, err := ComputeLUT(DefaultParams(), 256)
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), lut.Composite[0])
	assert.Equal(t, uint16(0), lut.Composite[255])
	for i, v := range lut.Composite {
		expected := 65535 * (1 - float64(i)/255)
		require.InDelta(t, expected, float64(v), 1, "level %d", i)
	}
	if diff := cmp.Diff(lut.Composite, lut.Red); diff != "" {
		t.Fatalf("neutral inks must match the composite table:\n%s", diff)
	}

	p := DefaultParams()
	p.Contrast = 0
	flat, err := ComputeLUT(p, 256)
	require.NoError(t, err)
	for _, v := range flat.Composite {
		require.Equal(t, uint16(32768), v)
	}

	p = DefaultParams()
	p.Transfer, err = curve.NewGamma(2, 0, 1)
	require.NoError(t, err)
	tr, err := ComputeLUT(p, 256)
	require.NoError(t, err)
	assert.InDelta(t, 65535*.25, float64(tr.Composite[128]), 200)

	for _, bad := range []func(*Params){
		func(p *Params) { p.Contrast = 5 },
		func(p *Params) { p.Gamma = 0 },
		func(p *Params) { p.Brightness = math.NaN() },
		func(p *Params) { p.Cyan = -1 },
	} {
		p := DefaultParams()
		bad(&p)
		_, err := ComputeLUT(p, 256)
		assert.ErrorIs(t, err, ErrParams)
	}
	_, err = ComputeLUT(DefaultParams(), 1)
	assert.ErrorIs(t, err, ErrParams)
}

func TestLUTSplineTransfer(t *testing.T) {
	tc, err := curve.NewWithData(curve.Spline, curve.WrapNone, 0, 1, []float64{0, .2, .5, .7, 1})
	require.NoError(t, err)
	plain, err := ComputeLUT(DefaultParams(), 65536)
	require.NoError(t, err)
	p := DefaultParams()
	p.Transfer = tc
	lut, err := ComputeLUT(p, 65536)
	require.NoError(t, err)

	serial := tc.Copy()
	for i, v := range plain.Composite {
		expected, err := serial.InterpolateValue(4 * float64(v) / 65535)
		require.NoError(t, err)
		require.InDelta(t, 65535*expected, float64(lut.Composite[i]), 2, "level %d", i)
	}
	// the curve of the caller is not touched
	assert.Equal(t, []float64{0, .2, .5, .7, 1}, tc.Sequence().Values())
}

func default_lut(t *testing.T) *LUT {
	t.Helper()
	lut, err := ComputeLUT(DefaultParams(), 256)
	require.NoError(t, err)
	return lut
}

func TestGrayConversion(t *testing.T) {
	lut := default_lut(t)
	c, err := NewConverter(Config{Output: Gray, Layout: LayoutGray, Width: 4, LUT: lut})
	require.NoError(t, err)
	require.Equal(t, 1, c.Channels())
	out := make([]uint16, 4)
	mask, err := c.Convert([]byte{0, 255, 128, 255}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{lut.Composite[0], 0, lut.Composite[128], 0}, out)
	assert.Equal(t, uint(0), mask)

	mask, err = c.Convert([]byte{255, 255, 255, 255}, out)
	require.NoError(t, err)
	assert.Equal(t, uint(1), mask)

	_, err = c.Convert([]byte{1, 2}, out)
	assert.ErrorIs(t, err, ErrLayout)

	m, err := NewConverter(Config{Output: Mono, Layout: LayoutRGB, Width: 3, LUT: lut})
	require.NoError(t, err)
	_, err = m.Convert([]byte{0, 0, 0, 250, 250, 250, 100, 100, 100}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{65535, 0, 65535}, out[:3])
}

func TestAlphaComposite(t *testing.T) {
	lut := default_lut(t)
	c, err := NewConverter(Config{Output: Gray, Layout: LayoutRGBA, Width: 3, LUT: lut})
	require.NoError(t, err)
	out := make([]uint16, 3)
	mask, err := c.Convert([]byte{0, 0, 0, 0, 0, 0, 0, 255, 0, 0, 0, 0}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 65535, 0}, out)
	assert.Equal(t, uint(0), mask)
	assert.Equal(t, uint8(128), composite(0, 127))

	ga, err := NewConverter(Config{Output: Color, Layout: LayoutGrayAlpha, Width: 1, LUT: lut})
	require.NoError(t, err)
	out = make([]uint16, 3)
	mask, err = ga.Convert([]byte{0, 0}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 0, 0}, out)
	assert.Equal(t, uint(7), mask)
}

func TestColorConversion(t *testing.T) {
	lut := default_lut(t)
	row := []byte{255, 0, 0, 255, 0, 0, 0, 255, 0, 255, 255, 255, 255, 0, 0}
	c, err := NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 5, LUT: lut, Saturation: 1})
	require.NoError(t, err)
	require.Equal(t, 3, c.Channels())
	out := make([]uint16, 15)
	mask, err := c.Convert(row, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{
		0, 65535, 65535,
		0, 65535, 65535,
		65535, 0, 65535,
		0, 0, 0,
		0, 65535, 65535,
	}, out)
	assert.Equal(t, uint(0), mask)

	// the cached path must give the same result as converting each pixel alone
	single, err := NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 1, LUT: lut, Saturation: 1})
	require.NoError(t, err)
	for x := range 5 {
		o := make([]uint16, 3)
		_, err := single.Convert(row[3*x:3*x+3], o)
		require.NoError(t, err)
		assert.Equal(t, out[3*x:3*x+3], o, "pixel %d", x)
	}

	gray, err := NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 1, LUT: lut, Saturation: 1e-6})
	require.NoError(t, err)
	o := make([]uint16, 3)
	_, err = gray.Convert([]byte{200, 30, 30}, o)
	require.NoError(t, err)
	assert.InDelta(t, float64(o[0]), float64(o[1]), 300)
	assert.InDelta(t, float64(o[1]), float64(o[2]), 300)

	idx, err := NewConverter(Config{Output: Color, Layout: LayoutIndexed, Width: 2, LUT: lut, Colormap: [][3]uint8{{255, 255, 255}, {0, 0, 255}}})
	require.NoError(t, err)
	out = make([]uint16, 6)
	mask, err = idx.Convert([]byte{0, 1}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 0, 0, 65535, 65535, 0}, out)
	assert.Equal(t, uint(4), mask)

	_, err = NewConverter(Config{Output: Color, Layout: LayoutIndexed, Width: 2, LUT: lut})
	assert.ErrorIs(t, err, ErrLayout)
	_, err = NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 2})
	assert.ErrorIs(t, err, ErrParams)
}

func TestHueMap(t *testing.T) {
	lut := default_lut(t)
	// rotate every hue by a third of a turn: red becomes green
	hm, err := curve.NewWithData(curve.Linear, curve.WrapAround, -1, 1, []float64{1. / 3, 1. / 3})
	require.NoError(t, err)
	c, err := NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 1, LUT: lut, HueMap: hm})
	require.NoError(t, err)
	out := make([]uint16, 3)
	_, err = c.Convert([]byte{255, 0, 0}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{65535, 0, 65535}, out)

	fast, err := NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 1, LUT: lut, HueMap: hm, Fast: true})
	require.NoError(t, err)
	_, err = fast.Convert([]byte{255, 0, 0}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 65535, 65535}, out)

	nowrap := curve.New(curve.WrapNone)
	_, err = NewConverter(Config{Output: Color, Layout: LayoutRGB, Width: 1, LUT: lut, LumMap: nowrap})
	assert.ErrorIs(t, err, ErrParams)
}

func TestRawCMYK(t *testing.T) {
	c, err := NewConverter(Config{Output: Color, Layout: LayoutCMYK16, Width: 1})
	require.NoError(t, err)
	require.Equal(t, 4, c.Channels())
	out := make([]uint16, 4)
	mask, err := c.Convert([]byte{0x12, 0x34, 0, 0, 0xff, 0xff, 0, 1}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x1234, 0, 0xffff, 1}, out)
	assert.Equal(t, uint(2), mask)

	c8, err := NewConverter(Config{Output: Color, Layout: LayoutCMYK, Width: 1})
	require.NoError(t, err)
	_, err = c8.Convert([]byte{255, 0, 1, 128}, out)
	require.NoError(t, err)
	assert.Equal(t, []uint16{65535, 0, 257, 128 * 257}, out)

	g, err := NewConverter(Config{Output: Gray, Layout: LayoutCMYK, Width: 2})
	require.NoError(t, err)
	_, err = g.Convert([]byte{0, 0, 0, 255, 255, 255, 255, 0}, out)
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), out[0])
	assert.Equal(t, uint16(65535), out[1])
}

func TestZeroMask(t *testing.T) {
	assert.Equal(t, uint(0b101), ZeroMask([]uint16{0, 1, 0, 0, 0, 0}, 3))
	assert.Equal(t, uint(0b1111), ZeroMask(nil, 4))
	assert.Equal(t, uint(0), ZeroMask([]uint16{1, 2}, 1))
}

func TestBlackGeneration(t *testing.T) {
	g, err := NewBlackGenerator(DefaultBlackParams())
	require.NoError(t, err)

	c, m, y, k := g.Update(65535, 65535, 65535)
	assert.Equal(t, uint32(65535), k)
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{c, m, y})

	c, m, y, k = g.Update(10000, 12000, 11000)
	assert.Equal(t, uint32(0), k, "light colors get no black")
	assert.Equal(t, [3]uint32{10000, 12000, 11000}, [3]uint32{c, m, y})

	c, m, y, k = g.Update(45000, 45000, 45000)
	assert.Greater(t, k, uint32(15000))
	assert.Less(t, k, uint32(45000))
	assert.Equal(t, 45000-k, c)
	assert.Equal(t, c, m)
	assert.Equal(t, c, y)

	// black only replaces what all three inks share
	_, _, _, k = g.Update(65535, 65535, 0)
	assert.Equal(t, uint32(0), k)

	// darker mixtures get more black
	_, _, _, k1 := g.Update(40000, 40000, 40000)
	_, _, _, k2 := g.Update(60000, 60000, 40000)
	assert.Greater(t, k2, k1)

	p := DefaultBlackParams()
	p.KCLevel, p.KMLevel, p.KYLevel = 32, 0, 64
	half, err := NewBlackGenerator(p)
	require.NoError(t, err)
	c, m, y, k = half.Update(65535, 65535, 65535)
	assert.Equal(t, uint32(65535), k)
	assert.Equal(t, uint32(65535-65535*32/64), c)
	assert.Equal(t, uint32(65535), m)
	assert.Equal(t, uint32(0), y)

	p = DefaultBlackParams()
	p.KLower, p.KUpper = .9, .5
	_, err = NewBlackGenerator(p)
	assert.ErrorIs(t, err, ErrParams)

	c, m, y = FoldBlack(60000, 100, 0, 10000)
	assert.Equal(t, [3]uint32{65535, 10100, 10000}, [3]uint32{c, m, y})
}
