// Package sequence provides a bounds checked, resizable array of float64
// values. It is the storage underneath curves and two dimensional arrays.
package sequence

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var _ = fmt.Print

var (
	ErrIndex          = errors.New("sequence index out of range")
	ErrNotFinite      = errors.New("sequence value is not finite")
	ErrOutOfBounds    = errors.New("sequence value is outside the declared bounds")
	ErrInvertedBounds = errors.New("sequence lower bound is greater than upper bound")
	ErrSize           = errors.New("invalid sequence size")
	ErrTypeRange      = errors.New("sequence bounds exceed the range of the requested type")
)

// Sequence is an ordered array of float64 values all of which lie within
// the declared bounds. A Sequence is not safe for concurrent use.
type Sequence struct {
	data []float64

	blo, bhi        float64 // declared bounds
	rlo, rhi        float64 // observed range, valid when !recompute_range
	recompute_range bool

	views typed_views
}

// New returns an empty sequence with bounds [0, 1].
func New() *Sequence {
	return &Sequence{blo: 0, bhi: 1, rlo: 0, rhi: 1}
}

// NewWithData returns a sequence with the specified bounds holding a copy of data.
func NewWithData(lo, hi float64, data []float64) (*Sequence, error) {
	s := New()
	if err := s.SetBounds(lo, hi); err != nil {
		return nil, err
	}
	if err := s.SetData(data); err != nil {
		return nil, err
	}
	return s, nil
}

// Copy returns a deep copy of the sequence. Typed views are not copied,
// they are rebuilt on demand.
func (s *Sequence) Copy() *Sequence {
	return &Sequence{
		data: slices.Clone(s.data),
		blo:  s.blo, bhi: s.bhi, rlo: s.rlo, rhi: s.rhi,
		recompute_range: s.recompute_range,
	}
}

func (s *Sequence) invalidate() {
	s.views = typed_views{}
}

// SetBounds sets the declared bounds. It fails if lo > hi or if any
// currently stored value lies outside [lo, hi]. On success both the
// bounds and the observed range are reset to [lo, hi].
func (s *Sequence) SetBounds(lo, hi float64) error {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return ErrNotFinite
	}
	if lo > hi {
		return fmt.Errorf("%w: [%v, %v]", ErrInvertedBounds, lo, hi)
	}
	for _, v := range s.data {
		if v < lo || v > hi {
			return fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfBounds, v, lo, hi)
		}
	}
	s.blo, s.bhi = lo, hi
	s.rlo, s.rhi = lo, hi
	s.recompute_range = false
	s.invalidate()
	return nil
}

// Bounds returns the declared bounds.
func (s *Sequence) Bounds() (lo, hi float64) { return s.blo, s.bhi }

// Range returns the minimum and maximum of the stored data. It rescans the
// data at most once after any mutation.
func (s *Sequence) Range() (lo, hi float64) {
	if s.recompute_range {
		s.scan_range()
	}
	return s.rlo, s.rhi
}

func (s *Sequence) scan_range() {
	s.recompute_range = false
	if len(s.data) == 0 {
		s.rlo, s.rhi = s.blo, s.bhi
		return
	}
	s.rlo, s.rhi = s.data[0], s.data[0]
	for _, v := range s.data[1:] {
		s.rlo = min(s.rlo, v)
		s.rhi = max(s.rhi, v)
	}
}

// SetSize discards existing data and allocates n zeroed slots. Zero must
// lie within the bounds for a non-empty sequence.
func (s *Sequence) SetSize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrSize, n)
	}
	if n > 0 && (s.blo > 0 || s.bhi < 0) {
		return fmt.Errorf("%w: zero fill not in [%v, %v]", ErrOutOfBounds, s.blo, s.bhi)
	}
	s.data = make([]float64, n)
	s.recompute_range = true
	s.invalidate()
	return nil
}

// Size returns the number of stored points.
func (s *Sequence) Size() int { return len(s.data) }

func (s *Sequence) check_value(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNotFinite
	}
	if v < s.blo || v > s.bhi {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfBounds, v, s.blo, s.bhi)
	}
	return nil
}

// SetPoint stores v at index i.
func (s *Sequence) SetPoint(i int, v float64) error {
	if i < 0 || i >= len(s.data) {
		return fmt.Errorf("%w: %d of %d", ErrIndex, i, len(s.data))
	}
	if err := s.check_value(v); err != nil {
		return err
	}
	old := s.data[i]
	s.data[i] = v
	if !s.recompute_range {
		if old == s.rlo || old == s.rhi {
			// the old value may have been the only extreme
			s.recompute_range = true
		} else {
			s.rlo = min(s.rlo, v)
			s.rhi = max(s.rhi, v)
		}
	}
	s.invalidate()
	return nil
}

// Point returns the value at index i.
func (s *Sequence) Point(i int) (float64, error) {
	if i < 0 || i >= len(s.data) {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(s.data))
	}
	return s.data[i], nil
}

// SetData replaces the contents of the sequence with a copy of data. Nothing
// is modified if any value is invalid.
func (s *Sequence) SetData(data []float64) error {
	for _, v := range data {
		if err := s.check_value(v); err != nil {
			return err
		}
	}
	s.data = slices.Clone(data)
	s.recompute_range = true
	s.invalidate()
	return nil
}

// SetSubrange overwrites len(data) points starting at where. The
// sequence is not resized.
func (s *Sequence) SetSubrange(where int, data []float64) error {
	if where < 0 || where+len(data) > len(s.data) {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrIndex, where, where+len(data), len(s.data))
	}
	for _, v := range data {
		if err := s.check_value(v); err != nil {
			return err
		}
	}
	copy(s.data[where:], data)
	s.recompute_range = true
	s.invalidate()
	return nil
}

// Data returns a copy of the stored values.
func (s *Sequence) Data() []float64 { return slices.Clone(s.data) }

// Values returns the stored values without copying. The caller must not
// modify the returned slice.
func (s *Sequence) Values() []float64 { return s.data }
