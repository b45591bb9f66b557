package colorsep

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/halftone/curve"
)

// HueSectors is the number of samples taken from the hue keyed curves.
const HueSectors = 8

type sector_map [HueSectors + 1]float64

func sample_hue_curve(c *curve.Curve, fallback float64) (ans sector_map, err error) {
	if c == nil {
		for i := range ans {
			ans[i] = fallback
		}
		return
	}
	if c.WrapMode() != curve.WrapAround {
		return ans, fmt.Errorf("%w: hue keyed curves must wrap around", ErrParams)
	}
	c = c.Copy()
	if err = c.Resample(HueSectors); err != nil {
		return
	}
	copy(ans[:], c.Data())
	ans[HueSectors] = ans[0]
	return
}

// at interpolates linearly between sectors, hue is in [0, 6).
func (s *sector_map) at(hue float64) float64 {
	pos := hue * HueSectors / 6
	i := int(pos)
	if i >= HueSectors {
		i = HueSectors - 1
	}
	frac := pos - float64(i)
	return s[i] + frac*(s[i+1]-s[i])
}

type hsl_adjust struct {
	saturation       float64
	hue, lum, sat    sector_map
	has_hue, has_lum bool
}

func new_hsl_adjust(saturation float64, hue, lum, sat *curve.Curve) (*hsl_adjust, error) {
	if saturation == 0 {
		saturation = 1
	}
	if math.IsNaN(saturation) || saturation < 0 || saturation > 9 {
		return nil, fmt.Errorf("%w: saturation=%v", ErrParams, saturation)
	}
	if saturation == 1 && hue == nil && lum == nil && sat == nil {
		return nil, nil
	}
	ans := &hsl_adjust{saturation: saturation, has_hue: hue != nil, has_lum: lum != nil}
	var err error
	if ans.hue, err = sample_hue_curve(hue, 0); err != nil {
		return nil, err
	}
	if ans.lum, err = sample_hue_curve(lum, 1); err != nil {
		return nil, err
	}
	if ans.sat, err = sample_hue_curve(sat, 1); err != nil {
		return nil, err
	}
	return ans, nil
}

func rgb_to_hsl(r, g, b float64) (h, s, l float64) {
	mx, mn := max(r, g, b), min(r, g, b)
	l = (mx + mn) / 2
	if mx == mn {
		return 0, 0, l
	}
	d := mx - mn
	if l <= .5 {
		s = d / (mx + mn)
	} else {
		s = d / (2 - mx - mn)
	}
	switch mx {
	case r:
		h = (g - b) / d
	case g:
		h = 2 + (b-r)/d
	default:
		h = 4 + (r-g)/d
	}
	if h < 0 {
		h += 6
	}
	return
}

func hue_to_rgb(m1, m2, h float64) float64 {
	if h < 0 {
		h += 6
	} else if h >= 6 {
		h -= 6
	}
	switch {
	case h < 1:
		return m1 + (m2-m1)*h
	case h < 3:
		return m2
	case h < 4:
		return m1 + (m2-m1)*(4-h)
	}
	return m1
}

func hsl_to_rgb(h, s, l float64) (r, g, b float64) {
	if s == 0 {
		return l, l, l
	}
	var m2 float64
	if l <= .5 {
		m2 = l * (1 + s)
	} else {
		m2 = l + s - l*s
	}
	m1 := 2*l - m2
	return hue_to_rgb(m1, m2, h+2), hue_to_rgb(m1, m2, h), hue_to_rgb(m1, m2, h-2)
}

func to_u8(v float64) uint8 { return uint8(max(0, min(255, math.Round(v*255)))) }

func (a *hsl_adjust) apply(r8, g8, b8 uint8) (uint8, uint8, uint8) {
	h, s, l := rgb_to_hsl(float64(r8)/255, float64(g8)/255, float64(b8)/255)
	if s == 0 && !a.has_lum {
		return r8, g8, b8
	}
	orig_h := h
	if a.has_hue {
		h = math.Mod(h+6*a.hue.at(orig_h), 6)
		if h < 0 {
			h += 6
		}
	}
	if a.has_lum {
		l = min(1, max(0, l*a.lum.at(orig_h)))
	}
	s = min(1, s*a.saturation*a.sat.at(orig_h))
	r, g, b := hsl_to_rgb(h, s, l)
	return to_u8(r), to_u8(g), to_u8(b)
}
