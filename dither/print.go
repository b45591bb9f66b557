package dither

// lookup finds the segment containing v, scanning down from the darkest
// so that values on a boundary belong to the upper segment.
func (ch *channel) lookup(v uint32) *Segment {
	for i := len(ch.segments) - 1; i > 0; i-- {
		if v >= ch.segments[i].RangeL {
			return &ch.segments[i]
		}
	}
	return &ch.segments[0]
}

func (d *Dither) virtual_dot(s *Segment, rangepoint uint32) uint32 {
	if s.single() {
		return s.ValueL
	}
	vds := uint32(d.virtual_dot_scale[rangepoint])
	return s.ValueL + ((s.ValueH-s.ValueL)*vds)>>16
}

func set_bits(buf []byte, row_bytes int, x int, b uint) {
	idx, bit := x>>3, byte(0x80>>(x&7))
	for j := uint(1); j <= b; j <<= 1 {
		if b&j != 0 {
			buf[idx] |= bit
		}
		idx += row_bytes
	}
}

// place prints one drop chosen from s at column x and returns the ink
// value printed, zero when the ink budget suppressed it.
func (d *Dither) place(ch *channel, s *Segment, rangepoint, v uint32, x int, budgeted bool) uint32 {
	ink := s.high
	if !s.single() && v < 65535 && rangepoint <= ch.pick.At(x) {
		ink = s.low
	}
	if budgeted && d.cfg.InkBudget > 0 {
		if d.budget < ink.dot_size {
			return 0
		}
		d.budget -= ink.dot_size
	}
	if ink.light {
		set_bits(ch.light_out, d.row_bytes, x, ink.bits)
	} else {
		set_bits(ch.out, d.row_bytes, x, ink.bits)
	}
	return ink.value
}

// fast_row thresholds each pixel against the matrix without budget or
// error. VeryFast only ever prints the darkest drop.
func (d *Dither) fast_row(ch *channel) {
	very_fast := d.cfg.Algorithm == VeryFast
	top := ch.top
	for x, v16 := range ch.values {
		v := uint32(v16)
		if v == 0 {
			continue
		}
		if very_fast {
			if v > (ch.dither.At(x)*(top.value+1))>>16 {
				if top.light {
					set_bits(ch.light_out, d.row_bytes, x, top.bits)
				} else {
					set_bits(ch.out, d.row_bytes, x, top.bits)
				}
			}
			continue
		}
		s := ch.lookup(v)
		rp := s.rangepoint(v)
		if v > (ch.dither.At(x)*(d.virtual_dot(s, rp)+1))>>16 {
			d.place(ch, s, rp, v, x, false)
		}
	}
}

// ordered_pixel applies the phase shifted matrix to v and returns the ink
// printed.
func (d *Dither) ordered_pixel(ch *channel, v uint32, x int) uint32 {
	s := ch.lookup(v)
	rp := s.rangepoint(v)
	if v > (ch.dither.At(x)*(d.virtual_dot(s, rp)+1))>>16 {
		return d.place(ch, s, rp, v, x, true)
	}
	return 0
}

// ordered_row thresholds every pixel on its own, the ink printed is not
// fed back into the neighbouring pixels.
func (d *Dither) ordered_row(ch *channel) {
	for x, v := range ch.values {
		if v != 0 {
			d.ordered_pixel(ch, uint32(v), x)
		}
	}
}

// noise returns the threshold offset in [-32768, 32767] before scaling by
// the randomizer: the matrix for the hybrid algorithms, the mean of two
// uniform draws for the random ones.
func (d *Dither) noise(ch *channel, x int) int64 {
	if d.cfg.Algorithm.random() {
		a, b := d.rng.Uint32()>>16, d.rng.Uint32()>>16
		return int64((a+b)>>1) - 32768
	}
	return int64(ch.dither.At(x)) - 32768
}

func (d *Dither) randomizer_for(ch *channel, base uint32) uint32 {
	switch {
	case d.randomizer == 0 || base > ch.d_cutoff:
		return 0
	case base > ch.d_cutoff/2:
		return uint32(uint64(d.randomizer) * 2 * uint64(ch.d_cutoff-base) / uint64(ch.d_cutoff))
	}
	return d.randomizer
}

func clamp16(v int32) uint32 {
	return uint32(max(0, min(v, 65535)))
}

func (d *Dither) ed_row(ch *channel, row_number int) {
	cur := ch.errs[d.processed&1]
	next := ch.errs[(d.processed+1)&1]
	clear(next)
	adaptive := d.cfg.Algorithm.adaptive()
	start, end, dir := 0, d.dst_width, 1
	if row_number&1 == 1 {
		start, end, dir = d.dst_width-1, -1, -1
	}
	for x := start; x != end; x += dir {
		base := uint32(ch.values[x])
		adjusted := int32(base) + cur[x+err_pad]
		var residual int32
		if adaptive && base < ch.adaptive_limit {
			d.ordered_pixel(ch, base, x)
			residual = adjusted - int32(base)
		} else {
			v := clamp16(adjusted)
			s := ch.lookup(v)
			rp := s.rangepoint(v)
			virtual := d.virtual_dot(s, rp)
			vmatrix := int64(virtual / 2)
			if r := d.randomizer_for(ch, base); r != 0 {
				vmatrix += (d.noise(ch, x) * int64(r) >> 16) * int64(virtual) >> 16
			}
			vmatrix = max(1, vmatrix)
			residual = adjusted
			if int64(v) >= vmatrix {
				residual -= int32(d.place(ch, s, rp, v, x, true))
			}
		}
		d.spread_error(cur, next, x, dir, residual, base)
	}
}

// Fixed point reciprocals of the triangular weight totals for each spread
// width, so that spreading needs no division.
var cur_recip, next_recip = func() (c, n [max_offset + 1]int64) {
	for k := int64(1); k <= max_offset; k++ {
		c[k] = (1 << 24) / (k * (k + 1) / 2)
		n[k] = (1 << 24) / ((k + 1) * (k + 1))
	}
	return
}()

// spread_error distributes the residual of column x. In highlights the
// error is spread over up to max_offset columns with triangular weights,
// half along the current row ahead of x and half over the next row
// centered on x. Rounding remainders go to the nearest column so that no
// error is lost inside the row.
func (d *Dither) spread_error(cur, next []int32, x, dir int, residual int32, base uint32) {
	residual = max(-65535, min(residual, 65535))
	if residual == 0 {
		return
	}
	offset := 0
	if base < 2048 {
		offset = min(max_offset, (65535-int(base<<5))>>d.spread)
	}
	p := x + err_pad
	half := residual / 2
	rest := residual - half
	if offset == 0 {
		cur[p+dir] += half
		next[p] += rest
		return
	}
	k := int64(offset)
	// current row: weights k, k-1, ..., 1
	r := int64(half) * cur_recip[k]
	var sum int32
	for i := int64(2); i <= k; i++ {
		share := int32((r * (k + 1 - i)) >> 24)
		cur[p+dir*int(i)] += share
		sum += share
	}
	cur[p+dir] += half - sum
	// next row: weights k+1-|i| over [-k, k]
	r = int64(rest) * next_recip[k]
	sum = 0
	for i := int64(1); i <= k; i++ {
		share := int32((r * (k + 1 - i)) >> 24)
		next[p+int(i)] += share
		next[p-int(i)] += share
		sum += 2 * share
	}
	next[p] += rest - sum
}
