package matrix

// Cursor is a phase shifted view of a shared Matrix. It caches the position
// of the last lookup so that scanning a row one pixel at a time needs no
// division. A Cursor must only be used by one goroutine and is meant to be
// advanced by single steps, any other jump recomputes the position.
type Cursor struct {
	m                  *Matrix
	x_offset, y_offset int

	last_x, last_x_mod int
	last_y, last_y_mod int
	index              int
}

// Clone returns a cursor over m starting at phase (x_offset, y_offset). The
// matrix data is shared, not copied.
func (m *Matrix) Clone(x_offset, y_offset int) *Cursor {
	c := &Cursor{m: m, x_offset: modulo(x_offset, m.x_size), y_offset: modulo(y_offset, m.y_size)}
	c.last_x_mod = c.x_offset
	c.SetRow(0)
	return c
}

func (c *Cursor) Matrix() *Matrix { return c.m }

// SetRow selects row y for subsequent lookups.
func (c *Cursor) SetRow(y int) {
	c.last_y = y
	c.last_y_mod = c.m.x_size * modulo(y+c.y_offset, c.m.y_size)
	c.index = c.last_x_mod + c.last_y_mod
}

// At returns the matrix value for column x of the current row.
func (c *Cursor) At(x int) uint32 {
	m := c.m
	if m.fast_mask != 0 {
		return m.data[c.last_y_mod+((x+c.x_offset)&m.fast_mask)]
	}
	switch x {
	case c.last_x:
	case c.last_x + 1:
		c.last_x_mod++
		c.index++
		if c.last_x_mod >= m.x_size {
			c.last_x_mod -= m.x_size
			c.index -= m.x_size
		}
	case c.last_x - 1:
		c.last_x_mod--
		c.index--
		if c.last_x_mod < 0 {
			c.last_x_mod += m.x_size
			c.index += m.x_size
		}
	default:
		c.last_x_mod = modulo(x+c.x_offset, m.x_size)
		c.index = c.last_x_mod + c.last_y_mod
	}
	c.last_x = x
	return m.data[c.index]
}
