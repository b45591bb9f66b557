// Package array provides a two dimensional grid of float64 values backed by
// a sequence. It holds raw dither matrix data loaded from calibration files.
package array

import (
	"errors"
	"fmt"

	"github.com/kovidgoyal/halftone/sequence"
)

var ErrDimensions = errors.New("invalid array dimensions")

// Array stores the point (x, y) at index x + XSize*y of its sequence. The
// sequence always holds exactly XSize*YSize points.
type Array struct {
	x_size, y_size int
	seq            *sequence.Sequence
}

// New returns a zero filled array with bounds [0, 1].
func New(x_size, y_size int) (*Array, error) {
	if x_size < 0 || y_size < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, x_size, y_size)
	}
	ans := &Array{seq: sequence.New()}
	if err := ans.SetSize(x_size, y_size); err != nil {
		return nil, err
	}
	return ans, nil
}

// NewWithData returns an array with the specified bounds holding data in
// row major order.
func NewWithData(x_size, y_size int, lo, hi float64, data []float64) (*Array, error) {
	if x_size < 0 || y_size < 0 || len(data) != x_size*y_size {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrDimensions, x_size, y_size, len(data))
	}
	seq, err := sequence.NewWithData(lo, hi, data)
	if err != nil {
		return nil, err
	}
	return &Array{x_size: x_size, y_size: y_size, seq: seq}, nil
}

func (a *Array) Copy() *Array {
	return &Array{x_size: a.x_size, y_size: a.y_size, seq: a.seq.Copy()}
}

func (a *Array) Size() (x_size, y_size int) { return a.x_size, a.y_size }

// SetSize discards all data and resizes the array to x_size*y_size zeros.
func (a *Array) SetSize(x_size, y_size int) error {
	if x_size < 0 || y_size < 0 {
		return fmt.Errorf("%w: %dx%d", ErrDimensions, x_size, y_size)
	}
	if err := a.seq.SetSize(x_size * y_size); err != nil {
		return err
	}
	a.x_size, a.y_size = x_size, y_size
	return nil
}

func (a *Array) index(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= a.x_size || y >= a.y_size {
		return 0, fmt.Errorf("%w: (%d, %d) in %dx%d", sequence.ErrIndex, x, y, a.x_size, a.y_size)
	}
	return x + a.x_size*y, nil
}

func (a *Array) SetPoint(x, y int, v float64) error {
	i, err := a.index(x, y)
	if err != nil {
		return err
	}
	return a.seq.SetPoint(i, v)
}

func (a *Array) Point(x, y int) (float64, error) {
	i, err := a.index(x, y)
	if err != nil {
		return 0, err
	}
	return a.seq.Point(i)
}

// SetData replaces all points, data must hold exactly XSize*YSize values.
func (a *Array) SetData(data []float64) error {
	if len(data) != a.x_size*a.y_size {
		return fmt.Errorf("%w: %d values for %dx%d", ErrDimensions, len(data), a.x_size, a.y_size)
	}
	return a.seq.SetData(data)
}

func (a *Array) Data() []float64                { return a.seq.Data() }
func (a *Array) Values() []float64              { return a.seq.Values() }
func (a *Array) Bounds() (lo, hi float64)       { return a.seq.Bounds() }
func (a *Array) SetBounds(lo, hi float64) error { return a.seq.SetBounds(lo, hi) }
func (a *Array) Range() (lo, hi float64)        { return a.seq.Range() }
func (a *Array) Uint32Data() ([]uint32, error)  { return a.seq.Uint32Data() }
func (a *Array) Sequence() *sequence.Sequence   { return a.seq.Copy() }
