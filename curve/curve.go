// Package curve implements tone reproduction curves: a sequence of points
// with linear or cubic spline interpolation, optional wrap around for
// cyclic quantities such as hue, and an analytic pure gamma mode.
package curve

import (
	"errors"
	"fmt"
	"math"

	"github.com/kovidgoyal/halftone/sequence"
)

var _ = fmt.Print

// PointLimit is the maximum number of stored points, including the
// trailing wrap point of wrap around curves.
const PointLimit = 1048576

type Type int

const (
	Linear Type = iota
	Spline
)

func (t Type) String() string {
	switch t {
	case Linear:
		return "linear"
	case Spline:
		return "spline"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

type WrapMode int

const (
	WrapNone WrapMode = iota
	WrapAround
)

func (w WrapMode) String() string {
	switch w {
	case WrapNone:
		return "nowrap"
	case WrapAround:
		return "wrap"
	}
	return fmt.Sprintf("WrapMode(%d)", int(w))
}

var (
	ErrGammaWrap     = errors.New("gamma curves cannot wrap around")
	ErrGamma         = errors.New("invalid gamma value")
	ErrGammaCurve    = errors.New("points of a gamma curve cannot be set individually")
	ErrSize          = errors.New("a curve needs at least two points")
	ErrTooManyPoints = fmt.Errorf("a curve cannot have more than %d points", PointLimit)
	ErrDomain        = errors.New("interpolation position outside the curve")
	ErrIncompatible  = errors.New("curves cannot be composed")
)

// Curve is not safe for concurrent use, interpolation fills internal caches.
// Call Prepare before sharing a curve between goroutines.
type Curve struct {
	kind  Type
	wrap  WrapMode
	gamma float64
	seq   *sequence.Sequence

	// per segment deltas for linear curves, second derivatives for splines
	interval []float64
}

// New returns a two point linear curve from 0 to 1 with bounds [0, 1]. The
// wrap mode cannot be changed afterwards.
func New(wrap WrapMode) *Curve {
	ans := &Curve{kind: Linear, wrap: wrap, seq: sequence.New()}
	if err := ans.SetData([]float64{0, 1}); err != nil {
		panic(err)
	}
	return ans
}

// NewWithData returns a curve of the specified type and bounds holding data.
func NewWithData(kind Type, wrap WrapMode, lo, hi float64, data []float64) (*Curve, error) {
	ans := &Curve{kind: kind, wrap: wrap, seq: sequence.New()}
	if err := ans.seq.SetBounds(lo, hi); err != nil {
		return nil, err
	}
	if err := ans.SetData(data); err != nil {
		return nil, err
	}
	return ans, nil
}

// NewGamma returns a pure gamma curve with bounds [lo, hi].
func NewGamma(gamma, lo, hi float64) (*Curve, error) {
	ans := &Curve{kind: Linear, wrap: WrapNone, seq: sequence.New()}
	if err := ans.seq.SetBounds(lo, hi); err != nil {
		return nil, err
	}
	if err := ans.SetGamma(gamma); err != nil {
		return nil, err
	}
	return ans, nil
}

func (c *Curve) Copy() *Curve {
	return &Curve{kind: c.kind, wrap: c.wrap, gamma: c.gamma, seq: c.seq.Copy()}
}

func (c *Curve) Type() Type         { return c.kind }
func (c *Curve) WrapMode() WrapMode { return c.wrap }
func (c *Curve) Gamma() float64     { return c.gamma }

func (c *Curve) SetType(t Type) {
	if t != c.kind {
		c.kind = t
		c.interval = nil
	}
}

func (c *Curve) Bounds() (lo, hi float64) { return c.seq.Bounds() }
func (c *Curve) Range() (lo, hi float64)  { return c.seq.Range() }

// SetBounds fails if any point lies outside [lo, hi]. The canonical points
// of a gamma curve follow the new bounds.
func (c *Curve) SetBounds(lo, hi float64) error {
	if c.gamma == 0 {
		if err := c.seq.SetBounds(lo, hi); err != nil {
			return err
		}
		c.interval = nil
		return nil
	}
	seq := sequence.New()
	if err := seq.SetBounds(lo, hi); err != nil {
		return err
	}
	c.seq = seq
	return c.set_canonical_gamma_points()
}

func (c *Curve) stored() int { return c.seq.Size() }

// CountPoints returns the number of user visible points. The trailing wrap
// point of a wrap around curve is not counted.
func (c *Curve) CountPoints() int {
	if c.wrap == WrapAround {
		return c.stored() - 1
	}
	return c.stored()
}

// Data returns a copy of the user visible points.
func (c *Curve) Data() []float64 {
	return c.seq.Data()[:c.CountPoints()]
}

// SetData replaces the points of the curve and clears any gamma value. For
// wrap around curves a copy of data[0] is stored as the trailing point.
func (c *Curve) SetData(data []float64) error {
	n := len(data)
	if n < 2 {
		return fmt.Errorf("%w: %d", ErrSize, n)
	}
	stored := n
	if c.wrap == WrapAround {
		stored++
	}
	if stored > PointLimit {
		return ErrTooManyPoints
	}
	if c.wrap == WrapAround {
		data = append(data[:n:n], data[0])
	}
	if err := c.seq.SetData(data); err != nil {
		return err
	}
	c.gamma = 0
	c.interval = nil
	return nil
}

// SetGamma turns the curve into the analytic function
// lo + (hi-lo) * x^gamma. A negative gamma yields a decreasing curve.
func (c *Curve) SetGamma(gamma float64) error {
	if c.wrap == WrapAround {
		return ErrGammaWrap
	}
	if gamma == 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return fmt.Errorf("%w: %v", ErrGamma, gamma)
	}
	c.gamma = gamma
	return c.set_canonical_gamma_points()
}

func (c *Curve) set_canonical_gamma_points() error {
	lo, hi := c.seq.Bounds()
	pts := []float64{lo, hi}
	if c.gamma < 0 {
		pts[0], pts[1] = hi, lo
	}
	c.interval = nil
	return c.seq.SetData(pts)
}

func (c *Curve) SetPoint(i int, v float64) error {
	if c.gamma != 0 {
		return ErrGammaCurve
	}
	if i < 0 || i >= c.CountPoints() {
		return fmt.Errorf("%w: %d of %d", sequence.ErrIndex, i, c.CountPoints())
	}
	if err := c.seq.SetPoint(i, v); err != nil {
		return err
	}
	if i == 0 && c.wrap == WrapAround {
		if err := c.seq.SetPoint(c.stored()-1, v); err != nil {
			return err
		}
	}
	c.interval = nil
	return nil
}

func (c *Curve) Point(i int) (float64, error) {
	if i < 0 || i >= c.CountPoints() {
		return 0, fmt.Errorf("%w: %d of %d", sequence.ErrIndex, i, c.CountPoints())
	}
	return c.seq.Point(i)
}

// Sequence returns a copy of the stored points including any wrap point.
func (c *Curve) Sequence() *sequence.Sequence { return c.seq.Copy() }
