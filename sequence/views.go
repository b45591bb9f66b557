package sequence

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

type typed_views struct {
	f32 []float32
	i   []int
	i32 []int32
	i16 []int16
	u   []uint
	u32 []uint32
	u16 []uint16
}

type number interface {
	constraints.Integer | constraints.Float
}

// convert returns the data converted to T, with values truncated towards
// zero for integer types. It fails when the declared bounds do not fit in
// [lo, hi], the representable range of T.
func convert[T number](s *Sequence, cache *[]T, lo, hi float64) ([]T, error) {
	if *cache != nil {
		return *cache, nil
	}
	if s.blo < lo || s.bhi > hi {
		return nil, fmt.Errorf("%w: [%v, %v] not within [%v, %v]", ErrTypeRange, s.blo, s.bhi, lo, hi)
	}
	ans := make([]T, len(s.data))
	for i, v := range s.data {
		ans[i] = T(v)
	}
	*cache = ans
	return ans, nil
}

// The typed accessors below return views that are cached until the next
// mutation. Callers must not modify the returned slices.

func (s *Sequence) Float32Data() ([]float32, error) {
	return convert(s, &s.views.f32, -math.MaxFloat32, math.MaxFloat32)
}

func (s *Sequence) IntData() ([]int, error) {
	return convert(s, &s.views.i, math.MinInt, math.MaxInt)
}

func (s *Sequence) Int32Data() ([]int32, error) {
	return convert(s, &s.views.i32, math.MinInt32, math.MaxInt32)
}

func (s *Sequence) Int16Data() ([]int16, error) {
	return convert(s, &s.views.i16, math.MinInt16, math.MaxInt16)
}

func (s *Sequence) UintData() ([]uint, error) {
	return convert(s, &s.views.u, 0, math.MaxUint)
}

func (s *Sequence) Uint32Data() ([]uint32, error) {
	return convert(s, &s.views.u32, 0, math.MaxUint32)
}

func (s *Sequence) Uint16Data() ([]uint16, error) {
	return convert(s, &s.views.u16, 0, math.MaxUint16)
}
