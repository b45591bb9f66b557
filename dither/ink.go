package dither

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
)

// Channel identifies an ink color.
type Channel int

const (
	Black Channel = iota
	Cyan
	Magenta
	Yellow
	ChannelCount
)

func (c Channel) String() string {
	switch c {
	case Black:
		return "black"
	case Cyan:
		return "cyan"
	case Magenta:
		return "magenta"
	case Yellow:
		return "yellow"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// InkLevel is one drop that a channel can print.
type InkLevel struct {
	// Darkness of the drop relative to the darkest drop of the ink, in (0, 1]
	Value float64
	// Bit pattern written into the planes of the channel, at least 1
	Bits uint
	// Printed with the light variant of the ink
	Light bool
	// Weight of the drop against the ink budget, 0 means 1
	DotSize int
}

// SingleDot is a plain one bit ink.
func SingleDot() []InkLevel { return []InkLevel{{Value: 1, Bits: 1}} }

// VariableDot describes a printer with small, medium and large drops
// written as a two bit pattern.
func VariableDot() []InkLevel {
	return []InkLevel{
		{Value: .25, Bits: 1, DotSize: 1},
		{Value: .5, Bits: 2, DotSize: 2},
		{Value: 1, Bits: 3, DotSize: 4},
	}
}

// LightDark describes a dilute ink of the given relative darkness next to
// the full strength ink.
func LightDark(light float64) []InkLevel {
	return []InkLevel{{Value: light, Bits: 1, Light: true}, {Value: 1, Bits: 1}}
}

type level struct {
	value    uint32
	bits     uint
	light    bool
	dot_size int
}

// Segment is the part of the input range between two adjacent ink levels.
// Values in [RangeL, RangeH) are printed with the lower or upper level.
type Segment struct {
	RangeL, RangeH uint32
	ValueL, ValueH uint32
	low, high      *level
	// 2^32 / (RangeH - RangeL), zero when the segment has a single level
	recip uint64
}

func (s *Segment) single() bool { return s.low == s.high }

// rangepoint is the position of v inside the segment scaled to [0, 65535].
func (s *Segment) rangepoint(v uint32) uint32 {
	if s.recip == 0 {
		return 32768
	}
	return uint32(min(65535, (uint64(v-s.RangeL)*s.recip)>>16))
}

func make_levels(c Channel, inks []InkLevel) ([]level, error) {
	if len(inks) == 0 {
		return nil, fmt.Errorf("%w: no ink levels for %s", ErrConfig, c)
	}
	ans := make([]level, len(inks))
	for i, ink := range inks {
		if math.IsNaN(ink.Value) || ink.Value <= 0 || ink.Value > 1 {
			return nil, fmt.Errorf("%w: %s level %d has value %v", ErrConfig, c, i, ink.Value)
		}
		if ink.Bits == 0 || ink.Bits > 255 {
			return nil, fmt.Errorf("%w: %s level %d has bits %d", ErrConfig, c, i, ink.Bits)
		}
		if ink.Light && c == Black {
			return nil, fmt.Errorf("%w: there is no light black ink", ErrConfig)
		}
		ans[i] = level{value: max(1, uint32(math.Round(ink.Value*65535))), bits: ink.Bits, light: ink.Light, dot_size: max(1, ink.DotSize)}
	}
	slices.SortStableFunc(ans, func(a, b level) int { return int(a.value) - int(b.value) })
	for i := 1; i < len(ans); i++ {
		if ans[i].value == ans[i-1].value {
			return nil, fmt.Errorf("%w: %s has two levels of darkness %d", ErrConfig, c, ans[i].value)
		}
	}
	return ans, nil
}

// make_segments covers [0, 65536) with len(levels)+1 segments. Below the
// lightest level and above the darkest a segment holds a single level.
func make_segments(levels []level) []Segment {
	n := len(levels)
	ans := make([]Segment, n+1)
	fill := func(s *Segment, lo, hi uint32, low, high *level) {
		*s = Segment{RangeL: lo, RangeH: hi, ValueL: low.value, ValueH: high.value, low: low, high: high}
		if low != high && hi > lo {
			s.recip = (1 << 32) / uint64(hi-lo)
		}
	}
	fill(&ans[0], 0, levels[0].value, &levels[0], &levels[0])
	for i := 1; i < n; i++ {
		fill(&ans[i], levels[i-1].value, levels[i].value, &levels[i-1], &levels[i])
	}
	fill(&ans[n], levels[n-1].value, 65536, &levels[n-1], &levels[n-1])
	return ans
}

func planes_for(levels []level, light bool) int {
	var all uint
	for _, l := range levels {
		if l.light == light {
			all |= l.bits
		}
	}
	return bits.Len(all)
}
