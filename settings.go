package halftone

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kovidgoyal/halftone/colorsep"
	"github.com/kovidgoyal/halftone/curve"
	"github.com/kovidgoyal/halftone/dither"
)

var _ = fmt.Print

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrSettingValue   = errors.New("invalid setting value")
)

type InkType int

const (
	InkCMYK InkType = iota
	InkCMY
	InkK
)

func (t InkType) String() string {
	switch t {
	case InkCMYK:
		return "cmyk"
	case InkCMY:
		return "cmy"
	case InkK:
		return "k"
	}
	return fmt.Sprintf("InkType(%d)", int(t))
}

// Relative darkness of the light inks used when LightInks is set
const LightInkValue = .33

// Settings is the flat set of parameters of a print job. Every field can
// be set by its key with Set, the key is given in each comment.
type Settings struct {
	// density, black_density: scale factors of the colored inks and black
	Density, BlackDensity float64
	// contrast, brightness, gamma, app_gamma, saturation
	Contrast, Brightness, Gamma, AppGamma, Saturation float64
	// cyan, magenta, yellow: impurity exponents of the inks
	Cyan, Magenta, Yellow float64
	// cyan_darkness, magenta_darkness, yellow_darkness
	CyanDarkness, MagentaDarkness, YellowDarkness float64
	// k_lower, k_upper
	KLower, KUpper float64
	// k_clevel, k_mlevel, k_ylevel
	KCLevel, KMLevel, KYLevel int
	// ink_spread, adaptive_divisor, randomizer, transition, ink_budget
	InkSpread       int
	AdaptiveDivisor float64
	Randomizer      float64
	Transition      float64
	InkBudget       int
	// dither_algorithm
	DitherAlgorithm string
	// x_aspect, y_aspect
	XAspect, YAspect int
	// output_type
	OutputType colorsep.Output
	// ink_type
	InkType InkType
	// light_inks, variable_dots
	LightInks, VariableDots bool
}

func DefaultSettings() *Settings {
	lut, black := colorsep.DefaultParams(), colorsep.DefaultBlackParams()
	return &Settings{
		Density: 1, BlackDensity: 1,
		Contrast: lut.Contrast, Brightness: lut.Brightness, Gamma: lut.Gamma, AppGamma: lut.AppGamma, Saturation: 1,
		Cyan: lut.Cyan, Magenta: lut.Magenta, Yellow: lut.Yellow,
		CyanDarkness: black.CyanDarkness, MagentaDarkness: black.MagentaDarkness, YellowDarkness: black.YellowDarkness,
		KLower: black.KLower, KUpper: black.KUpper,
		KCLevel: black.KCLevel, KMLevel: black.KMLevel, KYLevel: black.KYLevel,
		InkSpread: 13, AdaptiveDivisor: 4, Randomizer: 1, Transition: 1,
		DitherAlgorithm: dither.DefaultAlgorithm.String(),
		XAspect:         1, YAspect: 1,
		OutputType: colorsep.Color,
	}
}

func (s *Settings) Copy() *Settings {
	ans := *s
	return &ans
}

type setting struct {
	key, doc string
	get      func(*Settings) string
	set      func(*Settings, string) error
}

func bad_value(key, val string, format string, args ...any) error {
	return fmt.Errorf("%w: %s=%q %s", ErrSettingValue, key, val, fmt.Sprintf(format, args...))
}

func float_setting(key, doc string, lo, hi float64, field func(*Settings) *float64) setting {
	return setting{key: key, doc: doc,
		get: func(s *Settings) string { return strconv.FormatFloat(*field(s), 'g', -1, 64) },
		set: func(s *Settings, val string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || math.IsNaN(v) {
				return bad_value(key, val, "is not a number")
			}
			if v < lo || v > hi {
				return bad_value(key, val, "is not in [%v, %v]", lo, hi)
			}
			*field(s) = v
			return nil
		},
	}
}

func int_setting(key, doc string, lo, hi int, field func(*Settings) *int) setting {
	return setting{key: key, doc: doc,
		get: func(s *Settings) string { return strconv.Itoa(*field(s)) },
		set: func(s *Settings, val string) error {
			v, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return bad_value(key, val, "is not an integer")
			}
			if v < lo || v > hi {
				return bad_value(key, val, "is not in [%d, %d]", lo, hi)
			}
			*field(s) = v
			return nil
		},
	}
}

func bool_setting(key, doc string, field func(*Settings) *bool) setting {
	return setting{key: key, doc: doc,
		get: func(s *Settings) string { return strconv.FormatBool(*field(s)) },
		set: func(s *Settings, val string) error {
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true", "yes", "on", "1":
				*field(s) = true
			case "false", "no", "off", "0":
				*field(s) = false
			default:
				return bad_value(key, val, "is not a boolean")
			}
			return nil
		},
	}
}

func choice_setting[T fmt.Stringer](key, doc string, choices []T, field func(*Settings) *T) setting {
	names := make([]string, len(choices))
	for i, c := range choices {
		names[i] = c.String()
	}
	return setting{key: key, doc: doc,
		get: func(s *Settings) string { return (*field(s)).String() },
		set: func(s *Settings, val string) error {
			q := strings.ToLower(strings.TrimSpace(val))
			for i, n := range names {
				if n == q {
					*field(s) = choices[i]
					return nil
				}
			}
			return bad_value(key, val, "is not one of: %s", strings.Join(names, ", "))
		},
	}
}

const max_gamma = 10

var settings = []setting{
	float_setting("density", "Scale factor of the colored inks", 0, 1, func(s *Settings) *float64 { return &s.Density }),
	float_setting("black_density", "Scale factor of black ink", 0, 1, func(s *Settings) *float64 { return &s.BlackDensity }),
	float_setting("contrast", "Contrast, 1 is neutral", 0, 4, func(s *Settings) *float64 { return &s.Contrast }),
	float_setting("brightness", "Brightness, 1 is neutral", 0, 2, func(s *Settings) *float64 { return &s.Brightness }),
	float_setting("gamma", "Print gamma", 1e-6, max_gamma, func(s *Settings) *float64 { return &s.Gamma }),
	float_setting("app_gamma", "Gamma the source image was prepared for", 1e-6, max_gamma, func(s *Settings) *float64 { return &s.AppGamma }),
	float_setting("saturation", "Saturation multiplier for color output", 0, 10, func(s *Settings) *float64 { return &s.Saturation }),
	float_setting("cyan", "Impurity exponent of cyan ink", 1e-6, max_gamma, func(s *Settings) *float64 { return &s.Cyan }),
	float_setting("magenta", "Impurity exponent of magenta ink", 1e-6, max_gamma, func(s *Settings) *float64 { return &s.Magenta }),
	float_setting("yellow", "Impurity exponent of yellow ink", 1e-6, max_gamma, func(s *Settings) *float64 { return &s.Yellow }),
	float_setting("cyan_darkness", "Darkness of cyan ink used for black generation", 0, 1, func(s *Settings) *float64 { return &s.CyanDarkness }),
	float_setting("magenta_darkness", "Darkness of magenta ink used for black generation", 0, 1, func(s *Settings) *float64 { return &s.MagentaDarkness }),
	float_setting("yellow_darkness", "Darkness of yellow ink used for black generation", 0, 1, func(s *Settings) *float64 { return &s.YellowDarkness }),
	float_setting("k_lower", "Darkness below which no black is generated", 0, 1, func(s *Settings) *float64 { return &s.KLower }),
	float_setting("k_upper", "Darkness above which all gray is printed with black", 0, 1, func(s *Settings) *float64 { return &s.KUpper }),
	int_setting("k_clevel", "Share of generated black removed from cyan, in 64ths", 0, 64, func(s *Settings) *int { return &s.KCLevel }),
	int_setting("k_mlevel", "Share of generated black removed from magenta, in 64ths", 0, 64, func(s *Settings) *int { return &s.KMLevel }),
	int_setting("k_ylevel", "Share of generated black removed from yellow, in 64ths", 0, 64, func(s *Settings) *int { return &s.KYLevel }),
	int_setting("ink_spread", "Width of error spreading in highlights, smaller is wider", 0, dither.MaxInkSpread, func(s *Settings) *int { return &s.InkSpread }),
	float_setting("adaptive_divisor", "Adaptive algorithms dither ordered below density divided by this", 1, 1<<16, func(s *Settings) *float64 { return &s.AdaptiveDivisor }),
	float_setting("randomizer", "Strength of threshold noise in highlights", 0, 1, func(s *Settings) *float64 { return &s.Randomizer }),
	float_setting("transition", "Exponent of the transition between drop sizes", 1e-3, 100, func(s *Settings) *float64 { return &s.Transition }),
	int_setting("ink_budget", "Ink budget per row in drop size units, 0 is unlimited", 0, math.MaxInt32, func(s *Settings) *int { return &s.InkBudget }),
	{
		key: "dither_algorithm", doc: "Dither algorithm",
		get: func(s *Settings) string { return s.DitherAlgorithm },
		set: func(s *Settings, val string) error {
			a, err := dither.ParseAlgorithm(val)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrSettingValue, err)
			}
			s.DitherAlgorithm = a.String()
			return nil
		},
	},
	int_setting("x_aspect", "Horizontal part of the resolution aspect", 1, 1<<16, func(s *Settings) *int { return &s.XAspect }),
	int_setting("y_aspect", "Vertical part of the resolution aspect", 1, 1<<16, func(s *Settings) *int { return &s.YAspect }),
	choice_setting("output_type", "Output type", []colorsep.Output{colorsep.Color, colorsep.Gray, colorsep.Mono}, func(s *Settings) *colorsep.Output { return &s.OutputType }),
	choice_setting("ink_type", "Inks of the printer", []InkType{InkCMYK, InkCMY, InkK}, func(s *Settings) *InkType { return &s.InkType }),
	bool_setting("light_inks", "Print with light cyan and light magenta as well", func(s *Settings) *bool { return &s.LightInks }),
	bool_setting("variable_dots", "Print with three drop sizes", func(s *Settings) *bool { return &s.VariableDots }),
}

var settings_by_key = func() map[string]*setting {
	ans := make(map[string]*setting, len(settings))
	for i := range settings {
		ans[settings[i].key] = &settings[i]
	}
	return ans
}()

// Keys returns all setting keys in a stable order.
func (s *Settings) Keys() []string {
	ans := make([]string, len(settings))
	for i, x := range settings {
		ans[i] = x.key
	}
	return ans
}

func lookup_setting(key string) (*setting, error) {
	if x := settings_by_key[key]; x != nil {
		return x, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}

// Set parses val and stores it under key. On error s is unchanged.
func (s *Settings) Set(key, val string) error {
	x, err := lookup_setting(key)
	if err != nil {
		return err
	}
	return x.set(s, val)
}

func (s *Settings) Get(key string) (string, error) {
	x, err := lookup_setting(key)
	if err != nil {
		return "", err
	}
	return x.get(s), nil
}

// Doc returns a one line description of the setting key.
func (s *Settings) Doc(key string) (string, error) {
	x, err := lookup_setting(key)
	if err != nil {
		return "", err
	}
	return x.doc, nil
}

// SetPair parses a key=value pair.
func (s *Settings) SetPair(pair string) error {
	key, val, found := strings.Cut(pair, "=")
	if !found {
		return fmt.Errorf("%w: %q is not of the form key=value", ErrSettingValue, pair)
	}
	return s.Set(strings.TrimSpace(key), val)
}

// LUTParams returns the tone table parameters.
func (s *Settings) LUTParams(transfer *curve.Curve) colorsep.Params {
	return colorsep.Params{
		Contrast: s.Contrast, Brightness: s.Brightness, Gamma: s.Gamma, AppGamma: s.AppGamma,
		Cyan: s.Cyan, Magenta: s.Magenta, Yellow: s.Yellow, Transfer: transfer,
	}
}

// BlackParams returns the black generation parameters.
func (s *Settings) BlackParams() colorsep.BlackParams {
	return colorsep.BlackParams{
		Density: s.Density, BlackDensity: s.BlackDensity, KLower: s.KLower, KUpper: s.KUpper,
		KCLevel: s.KCLevel, KMLevel: s.KMLevel, KYLevel: s.KYLevel,
		CyanDarkness: s.CyanDarkness, MagentaDarkness: s.MagentaDarkness, YellowDarkness: s.YellowDarkness,
	}
}

func (s *Settings) levels(light bool) []dither.InkLevel {
	var ans []dither.InkLevel
	if s.VariableDots {
		ans = dither.VariableDot()
	} else {
		ans = dither.SingleDot()
	}
	if light && s.LightInks {
		ans = append(ans, dither.InkLevel{Value: LightInkValue, Bits: 1, Light: true})
	}
	return ans
}

// CompositeGray reports whether gray or mono output has to be printed as
// equal amounts of cyan, magenta and yellow, for printers without black.
func (s *Settings) CompositeGray() bool {
	return s.InkType == InkCMY && s.OutputType != colorsep.Color
}

// Inks returns the ink levels of the printer described by s. Mono output
// only ever prints single drops.
func (s *Settings) Inks() (ans [dither.ChannelCount][]dither.InkLevel) {
	mono := s.OutputType == colorsep.Mono
	if s.CompositeGray() {
		for _, c := range []dither.Channel{dither.Cyan, dither.Magenta, dither.Yellow} {
			if mono {
				ans[c] = dither.SingleDot()
			} else {
				ans[c] = s.levels(c != dither.Yellow)
			}
		}
		return
	}
	if mono {
		ans[dither.Black] = dither.SingleDot()
		return
	}
	if s.InkType != InkCMY || s.OutputType != colorsep.Color {
		ans[dither.Black] = s.levels(false)
	}
	if s.OutputType == colorsep.Color && s.InkType != InkK {
		ans[dither.Cyan] = s.levels(true)
		ans[dither.Magenta] = s.levels(true)
		ans[dither.Yellow] = s.levels(false)
	}
	return
}
