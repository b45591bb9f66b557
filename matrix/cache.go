package matrix

import (
	"fmt"
	"math/bits"
	"sync"
)

// Bayer2 is the 2x2 seed of the built-in dispersed dot matrices.
var Bayer2 = []uint32{0, 2, 3, 1}

// Aspect identifies a matrix by the ratio of horizontal to vertical
// resolution.
type Aspect struct{ X, Y int }

func (a Aspect) String() string { return fmt.Sprintf("%d:%d", a.X, a.Y) }

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// NormalizeAspect reduces x:y by their common divisor. No matrices with a
// factor of three exist so 3 is treated as 4.
func NormalizeAspect(x, y int) Aspect {
	if x < 1 || y < 1 {
		return Aspect{1, 1}
	}
	g := gcd(x, y)
	x, y = x/g, y/g
	if x == 3 || y == 3 {
		if x == 3 {
			x = 4
		}
		if y == 3 {
			y = 4
		}
		g = gcd(x, y)
		x, y = x/g, y/g
	}
	return Aspect{x, y}
}

// Cache holds matrices keyed by normalized aspect. A zero Cache is ready
// for use and builds the built-in matrices on demand.
type Cache struct {
	mutex sync.Mutex
	items map[Aspect]*Matrix
}

// Add registers m for the aspect x:y, replacing any previous matrix.
func (c *Cache) Add(x, y int, m *Matrix) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.items == nil {
		c.items = make(map[Aspect]*Matrix)
	}
	c.items[NormalizeAspect(x, y)] = m
}

// Get returns the matrix for the aspect x:y. Built-in matrices exist for
// 1:1, 2:1, 4:1, 8:1 and 16:1 and their transposes. The returned matrix
// is shared and must not be modified, use Copy for that.
func (c *Cache) Get(x, y int) (*Matrix, error) {
	key := NormalizeAspect(x, y)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if m := c.items[key]; m != nil {
		return m, nil
	}
	m, err := builtin(key)
	if err != nil {
		return nil, err
	}
	if c.items == nil {
		c.items = make(map[Aspect]*Matrix)
	}
	c.items[key] = m
	return m, nil
}

func builtin(a Aspect) (*Matrix, error) {
	if a.Y > a.X {
		m, err := builtin(Aspect{a.Y, a.X})
		if err != nil {
			return nil, err
		}
		return m.Transposed(), nil
	}
	if a.Y != 1 || !is_po2(a.X) || a.X > 16 {
		return nil, fmt.Errorf("%w: no matrix for aspect %s", ErrDimensions, a)
	}
	if a.X == 1 {
		return NewIterated(2, 6, Bayer2)
	}
	return stretched(a.X, 5)
}

func bit_reverse(v, nbits int) int {
	return int(bits.Reverse32(uint32(v)) >> (32 - nbits))
}

// stretched builds an r*n x n matrix with n = 2^exp for horizontally
// denser resolutions. Each group of r adjacent columns shares one cell of
// the square matrix and the columns of a group are interleaved by bit
// reversed rank so that no two neighbours get close thresholds.
func stretched(r, exp int) (*Matrix, error) {
	n := 1 << exp
	ranks := make([]uint32, r*n*n)
	rbits := bits.TrailingZeros(uint(r))
	for y := range n {
		for x := range r * n {
			cell := uint32(calc_ordered_point(x/r, y, exp, 2, Bayer2))
			ranks[x+y*r*n] = uint32(bit_reverse(x%r, rbits))*uint32(n*n) + cell
		}
	}
	return NewFromData(r*n, n, ranks, false, false)
}
