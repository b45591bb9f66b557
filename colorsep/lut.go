// Package colorsep converts source pixels into 16 bit ink amounts. It
// computes the tone tables, picks one row conversion function per job and
// generates black from cyan, magenta and yellow.
package colorsep

import (
	"errors"
	"fmt"
	"math"

	"github.com/kovidgoyal/go-parallel"
	"github.com/kovidgoyal/halftone/curve"
)

var _ = fmt.Print

var ErrParams = errors.New("invalid color parameters")

// ScreenGammaBase is the gamma of the display the application gamma is
// expressed against.
const ScreenGammaBase = 1.7

// Params drives the tone tables. The zero value is not usable, start from
// DefaultParams.
type Params struct {
	Contrast   float64 // 0 flattens everything to mid gray, 1 is neutral, 4 is a hard threshold
	Brightness float64 // 1 is neutral, range [0, 2]
	Gamma      float64 // print gamma
	AppGamma   float64
	// Impurity exponents of the inks, 1 is neutral
	Cyan, Magenta, Yellow float64
	// Optional curve applied to every table after print gamma
	Transfer *curve.Curve
}

func DefaultParams() Params {
	return Params{Contrast: 1, Brightness: 1, Gamma: 1, AppGamma: 1.7, Cyan: 1, Magenta: 1, Yellow: 1}
}

func (p Params) validate() error {
	check := func(name string, v, lo, hi float64) error {
		if math.IsNaN(v) || v < lo || v > hi {
			return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrParams, name, v, lo, hi)
		}
		return nil
	}
	for _, c := range []struct {
		name      string
		v, lo, hi float64
	}{
		{"contrast", p.Contrast, 0, 4},
		{"brightness", p.Brightness, 0, 2},
		{"gamma", p.Gamma, 1e-6, 10},
		{"app_gamma", p.AppGamma, 1e-6, 10},
		{"cyan", p.Cyan, 1e-6, 10},
		{"magenta", p.Magenta, 1e-6, 10},
		{"yellow", p.Yellow, 1e-6, 10},
	} {
		if err := check(c.name, c.v, c.lo, c.hi); err != nil {
			return err
		}
	}
	return nil
}

// LUT maps quantized light levels to ink amounts. White maps to 0 and
// every table is non increasing.
type LUT struct {
	Steps                       int
	Composite, Red, Green, Blue []uint16
}

func contrast(pixel, c float64) float64 {
	t := min(pixel, 1-pixel)
	switch {
	case c > 3.99999:
		if t < .5 {
			t = 0
		}
	case t <= .000001 && c <= .0001:
		t = .5
	default:
		t = .5 - (.5-.5*math.Pow(2*t, c))*c
	}
	t = max(0, min(t, .5))
	if pixel < .5 {
		return t
	}
	return 1 - t
}

func brightness(pixel, b float64) float64 {
	if b < 1 {
		return pixel * b
	}
	return 1 - (1-pixel)*(2-b)
}

func to_u16(v float64) uint16 {
	v = 65535*v + .5
	switch {
	case v <= 0:
		return 0
	case v >= 65535:
		return 65535
	}
	return uint16(v)
}

type transfer struct {
	c      *curve.Curve
	lo, hi float64
	limit  float64
}

func new_transfer(c *curve.Curve) (*transfer, error) {
	if c == nil {
		return nil, nil
	}
	c = c.Copy()
	lo, hi := c.Bounds()
	if hi <= lo {
		return nil, fmt.Errorf("%w: transfer curve has empty bounds", ErrParams)
	}
	ans := &transfer{c: c, lo: lo, hi: hi, limit: float64(c.Sequence().Size() - 1)}
	// lookups run on several goroutines
	c.Prepare()
	return ans, nil
}

func (t *transfer) apply(v float64) float64 {
	if t == nil {
		return v
	}
	ans, err := t.c.InterpolateValue(v * t.limit)
	if err != nil {
		return v
	}
	return (ans - t.lo) / (t.hi - t.lo)
}

// ComputeLUT builds the tables for steps input levels. Each level goes
// through contrast, brightness, screen gamma, the ink impurity exponents
// and finally print gamma and the optional transfer curve.
func ComputeLUT(p Params, steps int) (*LUT, error) {
	if steps < 2 || steps > 65536 {
		return nil, fmt.Errorf("%w: %d steps", ErrParams, steps)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	tc, err := new_transfer(p.Transfer)
	if err != nil {
		return nil, err
	}
	ans := &LUT{
		Steps: steps, Composite: make([]uint16, steps),
		Red: make([]uint16, steps), Green: make([]uint16, steps), Blue: make([]uint16, steps),
	}
	screen_gamma := p.AppGamma / ScreenGammaBase
	ic, im, iy := 1/p.Cyan, 1/p.Magenta, 1/p.Yellow
	final := func(v float64) uint16 { return to_u16(tc.apply(math.Pow(v, p.Gamma))) }
	err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for i := start; i < limit; i++ {
			pixel := float64(i) / float64(steps-1)
			pixel = contrast(pixel, p.Contrast)
			pixel = brightness(pixel, p.Brightness)
			pixel = 1 - math.Pow(pixel, screen_gamma)
			pixel = max(0, min(pixel, 1))
			ans.Composite[i] = final(pixel)
			ans.Red[i] = final(math.Pow(pixel, ic))
			ans.Green[i] = final(math.Pow(pixel, im))
			ans.Blue[i] = final(math.Pow(pixel, iy))
		}
	}, 0, steps)
	if err != nil {
		return nil, err
	}
	return ans, nil
}
