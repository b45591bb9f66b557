// Package matrix builds the threshold matrices used by ordered dithering.
// Values are scaled to [0, 65536) and looked up through a Cursor that keeps
// the current phase of a channel.
package matrix

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kovidgoyal/go-parallel"
	"github.com/kovidgoyal/halftone/array"
)

var _ = fmt.Print

var (
	ErrSeed       = errors.New("invalid seed pattern")
	ErrDimensions = errors.New("invalid matrix dimensions")
	ErrData       = errors.New("invalid matrix data")
)

// Matrix owns its threshold data. The point (x, y) is stored at
// x + XSize*y. Matrices are immutable once handed to a Cursor.
type Matrix struct {
	base, exp      int
	x_size, y_size int
	fast_mask      int
	data           []uint32
}

func is_po2(n int) bool { return n > 0 && n&(n-1) == 0 }

func (m *Matrix) finish() *Matrix {
	if is_po2(m.x_size) {
		m.fast_mask = m.x_size - 1
	} else {
		m.fast_mask = 0
	}
	return m
}

func calc_ordered_point(x, y, steps, size int, seed []uint32) uint64 {
	var ans uint64
	divisor := 1
	for i := range steps {
		xa := (x / divisor) % size
		ya := (y / divisor) % size
		weight := uint64(1)
		for j := i; j < steps-1; j++ {
			weight *= uint64(size * size)
		}
		ans += uint64(seed[ya+xa*size]) * weight
		divisor *= size
	}
	return ans
}

// NewIterated expands the base x base seed into a base^exp square matrix in
// which every digit of the coordinates, written in the given base, selects
// a level of the seed. seed must be a permutation of 0..base*base-1.
func NewIterated(base, exp int, seed []uint32) (*Matrix, error) {
	if base < 1 || exp < 1 || len(seed) != base*base {
		return nil, fmt.Errorf("%w: base %d exponent %d with %d values", ErrSeed, base, exp, len(seed))
	}
	seen := make([]bool, len(seed))
	for _, v := range seed {
		if int(v) >= len(seed) || seen[v] {
			return nil, fmt.Errorf("%w: %v is not a permutation", ErrSeed, seed)
		}
		seen[v] = true
	}
	size := 1
	for range exp {
		size *= base
		if size > 1<<15 {
			return nil, fmt.Errorf("%w: base %d exponent %d is too large", ErrDimensions, base, exp)
		}
	}
	m := &Matrix{base: base, exp: exp, x_size: size, y_size: size, data: make([]uint32, size*size)}
	total := float64(size * size)
	err := parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			row := m.data[y*size : (y+1)*size]
			for x := range row {
				row[x] = uint32(float64(calc_ordered_point(x, y, exp, base, seed)) * 65536 / total)
			}
		}
	}, 0, size)
	if err != nil {
		return nil, err
	}
	return m.finish(), nil
}

// NewFromData copies x_size*y_size values stored in row major order. When
// transpose is true data is read as a y_size x x_size matrix with its axes
// swapped. Unless prescaled, the values are ranks in [0, x_size*y_size)
// and are rescaled to [0, 65536).
func NewFromData(x_size, y_size int, data []uint32, transpose, prescaled bool) (*Matrix, error) {
	if x_size < 1 || y_size < 1 || len(data) != x_size*y_size {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrDimensions, x_size, y_size, len(data))
	}
	m := &Matrix{x_size: x_size, y_size: y_size, data: make([]uint32, len(data))}
	total := float64(len(data))
	for y := range y_size {
		for x := range x_size {
			v := data[x+y*x_size]
			if transpose {
				v = data[y+x*y_size]
			}
			if !prescaled {
				v = uint32(float64(v) * 65536 / total)
			}
			if v > 65535 {
				return nil, fmt.Errorf("%w: value %d at (%d, %d) exceeds 65535", ErrData, v, x, y)
			}
			m.data[x+y*x_size] = v
		}
	}
	return m.finish(), nil
}

// NewFromArray builds a matrix from the values of a. Data whose maximum is
// below the number of points is taken to hold ranks and is rescaled,
// anything else must already be scaled to [0, 65536).
func NewFromArray(a *array.Array, transpose bool) (*Matrix, error) {
	x_size, y_size := a.Size()
	data, err := a.Uint32Data()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrData, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrDimensions)
	}
	prescaled := int(slices.Max(data)) >= len(data)
	if transpose {
		x_size, y_size = y_size, x_size
	}
	return NewFromData(x_size, y_size, data, transpose, prescaled)
}

func (m *Matrix) Size() (x_size, y_size int) { return m.x_size, m.y_size }

// At returns the value at (x, y), both taken modulo the matrix size.
func (m *Matrix) At(x, y int) uint32 {
	return m.data[modulo(x, m.x_size)+m.x_size*modulo(y, m.y_size)]
}

func (m *Matrix) Data() []uint32 { return slices.Clone(m.data) }

func (m *Matrix) Copy() *Matrix {
	ans := *m
	ans.data = slices.Clone(m.data)
	return &ans
}

// Transposed returns a copy with the x and y axes swapped.
func (m *Matrix) Transposed() *Matrix {
	ans := &Matrix{base: m.base, exp: m.exp, x_size: m.y_size, y_size: m.x_size, data: make([]uint32, len(m.data))}
	for y := range m.y_size {
		for x := range m.x_size {
			ans.data[y+x*ans.x_size] = m.data[x+y*m.x_size]
		}
	}
	return ans.finish()
}

// Array returns the matrix as an array of prescaled values.
func (m *Matrix) Array() *array.Array {
	data := make([]float64, len(m.data))
	for i, v := range m.data {
		data[i] = float64(v)
	}
	a, err := array.NewWithData(m.x_size, m.y_size, 0, 65535, data)
	if err != nil {
		panic(err)
	}
	return a
}

func modulo(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

// Shear remaps the matrix along diagonals: first every column is resampled
// with a row stride of x_shear+1, then every row with a column stride of
// y_shear+1. With strides coprime to the matrix size the result is still
// a permutation of the original values.
func (m *Matrix) Shear(x_shear, y_shear int) {
	xs, ys := m.x_size, m.y_size
	tmp := make([]uint32, len(m.data))
	for i := range xs {
		for j := range ys {
			tmp[i+xs*j] = m.data[i+xs*modulo(j*(x_shear+1), ys)]
		}
	}
	for i := range xs {
		for j := range ys {
			m.data[i+xs*j] = tmp[modulo(i*(y_shear+1), xs)+xs*j]
		}
	}
}

// ExponentialScale warps every value v to 65535 * (v/65535)^exp.
func (m *Matrix) ExponentialScale(exp float64) {
	for i, v := range m.data {
		m.data[i] = uint32(65535 * math.Pow(float64(v)/65535, exp))
	}
}
