package colorsep

import (
	"fmt"
	"math"
)

// BlackParams controls how black ink replaces the gray component of cyan,
// magenta and yellow.
type BlackParams struct {
	Density, BlackDensity float64
	// Thresholds on the darkness of a color, as fractions of full ink,
	// below KLower no black is used and above KUpper the full gray
	// component is replaced.
	KLower, KUpper float64
	// Fraction of the black amount removed from each ink, in 64ths
	KCLevel, KMLevel, KYLevel int
	// Relative darkness of the inks
	CyanDarkness, MagentaDarkness, YellowDarkness float64
}

func DefaultBlackParams() BlackParams {
	return BlackParams{
		Density: 1, BlackDensity: 1, KLower: .4, KUpper: .999,
		KCLevel: 64, KMLevel: 64, KYLevel: 64,
		CyanDarkness: .4, MagentaDarkness: .3, YellowDarkness: .2,
	}
}

// BlackGenerator is immutable and safe for concurrent use.
type BlackGenerator struct {
	lower, upper uint32
	inv_span     uint64 // 2^32 / (upper - lower)
	wc, wm, wy   uint32 // darkness weights summing to 65536
	klevel       [3]uint32
}

func NewBlackGenerator(p BlackParams) (*BlackGenerator, error) {
	if p.Density <= 0 || p.BlackDensity < 0 || math.IsNaN(p.Density) || math.IsNaN(p.BlackDensity) {
		return nil, fmt.Errorf("%w: density %v black density %v", ErrParams, p.Density, p.BlackDensity)
	}
	if !(p.KLower >= 0 && p.KLower < p.KUpper && p.KUpper <= 1) {
		return nil, fmt.Errorf("%w: k_lower %v k_upper %v", ErrParams, p.KLower, p.KUpper)
	}
	for _, l := range []int{p.KCLevel, p.KMLevel, p.KYLevel} {
		if l < 0 || l > 64 {
			return nil, fmt.Errorf("%w: black removal level %d not in [0, 64]", ErrParams, l)
		}
	}
	sum := p.CyanDarkness + p.MagentaDarkness + p.YellowDarkness
	if !(sum > 0) || p.CyanDarkness < 0 || p.MagentaDarkness < 0 || p.YellowDarkness < 0 {
		return nil, fmt.Errorf("%w: ink darkness %v %v %v", ErrParams, p.CyanDarkness, p.MagentaDarkness, p.YellowDarkness)
	}
	ratio := p.BlackDensity / p.Density
	g := &BlackGenerator{
		lower:  uint32(min(65534, p.KLower*65535*ratio)),
		upper:  uint32(min(65535, p.KUpper*65535*ratio)),
		klevel: [3]uint32{uint32(p.KCLevel), uint32(p.KMLevel), uint32(p.KYLevel)},
	}
	if g.upper <= g.lower {
		g.upper = g.lower + 1
	}
	g.inv_span = (1 << 32) / uint64(g.upper-g.lower)
	g.wc = uint32(math.Round(p.CyanDarkness / sum * 65536))
	g.wm = uint32(math.Round(p.MagentaDarkness / sum * 65536))
	g.wy = 65536 - min(65536, g.wc+g.wm)
	return g, nil
}

// Darkness is the darkness weighted average of the three inks.
func (g *BlackGenerator) Darkness(c, m, y uint32) uint32 {
	return uint32((uint64(c)*uint64(g.wc) + uint64(m)*uint64(g.wm) + uint64(y)*uint64(g.wy)) >> 16)
}

// Update computes the black amount for a cyan, magenta, yellow triple and
// removes it from the inks. All values are in [0, 65535].
func (g *BlackGenerator) Update(c, m, y uint32) (nc, nm, ny, k uint32) {
	gray := min(c, m, y)
	if gray == 0 {
		return c, m, y, 0
	}
	dark := g.Darkness(c, m, y)
	switch {
	case dark <= g.lower:
		return c, m, y, 0
	case dark >= g.upper:
		k = gray
	default:
		frac := uint64(dark-g.lower) * g.inv_span
		k = uint32((uint64(gray) * frac) >> 32)
	}
	nc = c - min(c, k*g.klevel[0]>>6)
	nm = m - min(m, k*g.klevel[1]>>6)
	ny = y - min(y, k*g.klevel[2]>>6)
	return
}

// FoldBlack puts black back into the colored inks for ink sets that have
// no black ink.
func FoldBlack(c, m, y, k uint32) (nc, nm, ny uint32) {
	return min(65535, c+k), min(65535, m+k), min(65535, y+k)
}
