package curve

import (
	"fmt"
	"math"
)

var _ = fmt.Print

// Prepare computes the interpolation data of the curve ahead of time, after
// which InterpolateValue only reads the curve and is safe to call from
// several goroutines. Any change to the points discards the data again.
func (c *Curve) Prepare() {
	if c.gamma == 0 {
		c.ensure_interval()
	}
}

func (c *Curve) ensure_interval() {
	if c.interval != nil {
		return
	}
	pts := c.seq.Values()
	switch c.kind {
	case Spline:
		if c.wrap == WrapAround {
			c.interval = periodic_second_derivatives(pts)
		} else {
			c.interval = natural_second_derivatives(pts)
		}
	default:
		d := make([]float64, len(pts)-1)
		for i := range d {
			d[i] = pts[i+1] - pts[i]
		}
		c.interval = d
	}
}

// natural_second_derivatives solves the tridiagonal system for a natural
// cubic spline through points at unit spacing.
func natural_second_derivatives(y []float64) []float64 {
	n := len(y)
	y2 := make([]float64, n)
	u := make([]float64, n)
	for i := 1; i < n-1; i++ {
		p := 0.5*y2[i-1] + 2
		y2[i] = -0.5 / p
		d := (y[i+1] - y[i]) - (y[i] - y[i-1])
		u[i] = (3*d - 0.5*u[i-1]) / p
	}
	y2[n-1] = 0
	for k := n - 2; k >= 0; k-- {
		y2[k] = y2[k]*y2[k+1] + u[k]
	}
	return y2
}

// periodic_second_derivatives handles the seam of a wrap around curve by
// solving the natural spline over three copies of the points and keeping
// the middle third, where the end conditions have no influence worth
// mentioning.
func periodic_second_derivatives(stored []float64) []float64 {
	n := len(stored) - 1
	tripled := make([]float64, 3*n+1)
	for i := range tripled {
		tripled[i] = stored[i%n]
	}
	y2 := natural_second_derivatives(tripled)
	return append([]float64(nil), y2[n:2*n+1]...)
}

// InterpolateValue evaluates the curve at the fractional point index
// where, which must lie in [0, stored points - 1]. Integer positions return
// the stored point exactly.
func (c *Curve) InterpolateValue(where float64) (float64, error) {
	limit := float64(c.stored() - 1)
	if math.IsNaN(where) || where < 0 || where > limit {
		return 0, fmt.Errorf("%w: %v not in [0, %v]", ErrDomain, where, limit)
	}
	lo, hi := c.seq.Bounds()
	if c.gamma != 0 {
		x, g := where/limit, c.gamma
		if g < 0 {
			x, g = 1-x, -g
		}
		return lo + (hi-lo)*math.Pow(x, g), nil
	}
	pts := c.seq.Values()
	i := int(where)
	frac := where - float64(i)
	if frac == 0 {
		return pts[i], nil
	}
	c.ensure_interval()
	if c.kind == Linear {
		return pts[i] + frac*c.interval[i], nil
	}
	a, b := 1-frac, frac
	y2 := c.interval
	v := a*pts[i] + b*pts[i+1] + ((a*a*a-a)*y2[i]+(b*b*b-b)*y2[i+1])/6
	return max(lo, min(v, hi)), nil
}

func (c *Curve) position(i, n int) float64 {
	limit := float64(c.stored() - 1)
	var pos float64
	if c.wrap == WrapAround {
		pos = float64(i) * limit / float64(n)
	} else {
		pos = float64(i) * limit / float64(n-1)
	}
	return min(pos, limit)
}

// Resample replaces the points with n evenly spaced samples of the current
// curve. Gamma curves become data curves.
func (c *Curve) Resample(n int) error {
	if n < 2 {
		return fmt.Errorf("%w: %d", ErrSize, n)
	}
	if n > PointLimit || (c.wrap == WrapAround && n+1 > PointLimit) {
		return ErrTooManyPoints
	}
	data := make([]float64, n)
	for i := range data {
		v, err := c.InterpolateValue(c.position(i, n))
		if err != nil {
			return err
		}
		data[i] = v
	}
	return c.SetData(data)
}

type ComposeMode int

const (
	Add ComposeMode = iota
	Multiply
)

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int { return a / gcd(a, b) * b }

// Compose returns the point wise sum or product of a and b evaluated at
// npoints evenly spaced positions. When npoints <= 0 the least common
// multiple of the interval counts of a and b is used so that every stored
// point of both curves is sampled.
func Compose(a, b *Curve, mode ComposeMode, npoints int) (*Curve, error) {
	if a.wrap != b.wrap {
		return nil, fmt.Errorf("%w: wrap modes differ", ErrIncompatible)
	}
	alo, ahi := a.Bounds()
	blo, bhi := b.Bounds()
	var lo, hi float64
	switch mode {
	case Add:
		lo, hi = alo+blo, ahi+bhi
	case Multiply:
		if alo < 0 || blo < 0 {
			return nil, fmt.Errorf("%w: multiplication of curves with negative bounds", ErrIncompatible)
		}
		lo, hi = alo*blo, ahi*bhi
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrIncompatible, mode)
	}
	if npoints <= 0 {
		if a.wrap == WrapAround {
			npoints = lcm(a.CountPoints(), b.CountPoints())
		} else {
			npoints = lcm(a.CountPoints()-1, b.CountPoints()-1) + 1
		}
	}
	if npoints < 2 {
		return nil, fmt.Errorf("%w: %d", ErrSize, npoints)
	}
	if npoints > PointLimit || (a.wrap == WrapAround && npoints+1 > PointLimit) {
		return nil, ErrTooManyPoints
	}
	kind := Linear
	if a.kind == Spline || b.kind == Spline {
		kind = Spline
	}
	data := make([]float64, npoints)
	for i := range data {
		va, err := a.InterpolateValue(a.position(i, npoints))
		if err != nil {
			return nil, err
		}
		vb, err := b.InterpolateValue(b.position(i, npoints))
		if err != nil {
			return nil, err
		}
		v := va + vb
		if mode == Multiply {
			v = va * vb
		}
		data[i] = max(lo, min(v, hi))
	}
	return NewWithData(kind, a.wrap, lo, hi, data)
}
