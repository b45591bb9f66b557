package matrix

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kovidgoyal/halftone/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func is_permutation_of_steps(t *testing.T, m *Matrix) {
	t.Helper()
	data := m.Data()
	slices.Sort(data)
	step := uint32(65536 / len(data))
	for i, v := range data {
		require.Equal(t, uint32(i)*step, v, "sorted index %d", i)
	}
}

func TestIterated(t *testing.T) {
	m, err := NewIterated(2, 1, Bayer2)
	require.NoError(t, err)
	if diff := cmp.Diff([]uint32{0, 49152, 32768, 16384}, m.Data()); diff != "" {
		t.Fatalf("unexpected 2x2 matrix:\n%s", diff)
	}
	for exp := 2; exp <= 6; exp++ {
		m, err := NewIterated(2, exp, Bayer2)
		require.NoError(t, err)
		x, y := m.Size()
		require.Equal(t, 1<<exp, x)
		require.Equal(t, 1<<exp, y)
		is_permutation_of_steps(t, m)
	}
	_, err = NewIterated(2, 2, []uint32{0, 1, 1, 3})
	assert.ErrorIs(t, err, ErrSeed)
	_, err = NewIterated(3, 2, Bayer2)
	assert.ErrorIs(t, err, ErrSeed)
}

func TestFromData(t *testing.T) {
	m, err := NewFromData(3, 2, []uint32{0, 1, 2, 3, 4, 5}, false, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 10922, 21845, 32768, 43690, 54613}, m.Data())

	tr, err := NewFromData(2, 3, []uint32{0, 1, 2, 3, 4, 5}, true, false)
	require.NoError(t, err)
	for y := range 3 {
		for x := range 2 {
			assert.Equal(t, m.At(y, x), tr.At(x, y))
		}
	}
	assert.Equal(t, m.Transposed().Data(), tr.Data())

	_, err = NewFromData(2, 2, []uint32{0, 1, 2}, false, false)
	assert.ErrorIs(t, err, ErrDimensions)
	_, err = NewFromData(1, 1, []uint32{70000}, false, true)
	assert.ErrorIs(t, err, ErrData)
}

func TestFromArray(t *testing.T) {
	ranks, err := array.NewWithData(2, 2, 0, 65535, []float64{3, 1, 0, 2})
	require.NoError(t, err)
	m, err := NewFromArray(ranks, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{49152, 16384, 0, 32768}, m.Data())

	scaled, err := array.NewWithData(2, 1, 0, 65535, []float64{100, 60000})
	require.NoError(t, err)
	m, err = NewFromArray(scaled, true)
	require.NoError(t, err)
	x, y := m.Size()
	assert.Equal(t, 1, x)
	assert.Equal(t, 2, y)
	assert.Equal(t, []uint32{100, 60000}, m.Data())

	back := m.Array()
	assert.Equal(t, []float64{100, 60000}, back.Data())
}

func TestShearKeepsValues(t *testing.T) {
	m, err := NewFromData(3, 3, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}, false, false)
	require.NoError(t, err)
	orig := m.Copy()
	m.Shear(1, 1)
	assert.NotEqual(t, orig.Data(), m.Data())
	a, b := orig.Data(), m.Data()
	slices.Sort(a)
	slices.Sort(b)
	assert.Equal(t, a, b)
	// a zero shear is the identity
	c := orig.Copy()
	c.Shear(0, 0)
	assert.Equal(t, orig.Data(), c.Data())
	assert.Equal(t, orig.At(0, 2), m.At(0, 1))
}

func TestCursor(t *testing.T) {
	odd, err := NewFromData(3, 5, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, false, false)
	require.NoError(t, err)
	po2, err := NewIterated(2, 3, Bayer2)
	require.NoError(t, err)
	xs := []int{0, 1, 2, 3, 4, 5, 4, 3, 2, 1, 0, 7, 8, 8, 20, 19, 100, 101, 102}
	for _, m := range []*Matrix{odd, po2} {
		for _, off := range [][2]int{{0, 0}, {1, 2}, {4, 7}} {
			c := m.Clone(off[0], off[1])
			for y := range 7 {
				c.SetRow(y)
				for _, x := range xs {
					require.Equal(t, m.At(x+off[0], y+off[1]), c.At(x), "x=%d y=%d offset=%v", x, y, off)
				}
			}
			assert.Same(t, m, c.Matrix())
		}
	}
}

func TestExponentialScale(t *testing.T) {
	m, err := NewFromData(2, 2, []uint32{0, 16384, 32768, 65535}, false, true)
	require.NoError(t, err)
	m.ExponentialScale(2)
	assert.Equal(t, []uint32{0, 4096, 16384, 65535}, m.Data())
}

func TestNormalizeAspect(t *testing.T) {
	for _, tc := range []struct {
		x, y     int
		expected Aspect
	}{
		{1, 1, Aspect{1, 1}},
		{720, 720, Aspect{1, 1}},
		{1440, 720, Aspect{2, 1}},
		{3, 1, Aspect{4, 1}},
		{1, 3, Aspect{1, 4}},
		{3, 2, Aspect{2, 1}},
		{6, 2, Aspect{4, 1}},
		{0, 5, Aspect{1, 1}},
	} {
		assert.Equal(t, tc.expected, NormalizeAspect(tc.x, tc.y), "%d:%d", tc.x, tc.y)
	}
}

func TestCache(t *testing.T) {
	var c Cache
	sq, err := c.Get(300, 300)
	require.NoError(t, err)
	x, y := sq.Size()
	assert.Equal(t, 64, x)
	assert.Equal(t, 64, y)
	again, err := c.Get(1, 1)
	require.NoError(t, err)
	assert.Same(t, sq, again)

	for _, r := range []int{2, 4, 8, 16} {
		wide, err := c.Get(r, 1)
		require.NoError(t, err)
		x, y := wide.Size()
		assert.Equal(t, 32*r, x)
		assert.Equal(t, 32, y)
		is_permutation_of_steps(t, wide)
		tall, err := c.Get(1, r)
		require.NoError(t, err)
		x, y = tall.Size()
		assert.Equal(t, 32, x)
		assert.Equal(t, 32*r, y)
	}
	_, err = c.Get(5, 1)
	assert.ErrorIs(t, err, ErrDimensions)

	user, err := NewFromData(5, 1, []uint32{0, 1, 2, 3, 4}, false, false)
	require.NoError(t, err)
	c.Add(10, 2, user)
	got, err := c.Get(5, 1)
	require.NoError(t, err)
	assert.Same(t, user, got)
}
