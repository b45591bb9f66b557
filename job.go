package halftone

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kovidgoyal/halftone/colorsep"
	"github.com/kovidgoyal/halftone/curve"
	"github.com/kovidgoyal/halftone/dither"
	"github.com/kovidgoyal/halftone/emit"
	"github.com/kovidgoyal/halftone/matrix"
)

var _ = fmt.Print

// Job dithers every row of Source into Sink.
type Job struct {
	Settings *Settings
	Source   PixelSource
	// When nil the job dithers into nothing, which is useful to time it
	Sink emit.Sink
	// Output width in pixels, 0 means the width of the source
	Width int
	// Matrices to choose the threshold matrix from by aspect, nil means
	// the built-in ones
	Matrices *matrix.Cache
	// Optional curves applied to the tone tables and to colors
	Transfer, HueMap, LumMap, SatMap *curve.Curve
	Seed                             uint64
	Logger                           *slog.Logger

	// Called with the engine before the first row, for sinks whose layout
	// depends on it
	OnStart func(*dither.Dither) error
}

type Stats struct {
	Rows, Duplicates, Empty int
	Aborted                 bool
	Algorithm               dither.Algorithm
}

func (j *Job) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// output is the effective output type, printers with only black ink
// cannot print color.
func (j *Job) output() colorsep.Output {
	if j.Settings.OutputType == colorsep.Color && j.Settings.InkType == InkK {
		return colorsep.Gray
	}
	return j.Settings.OutputType
}

func (j *Job) input(layout colorsep.Layout) dither.Input {
	switch {
	case j.Settings.CompositeGray():
		return dither.InputCMY
	case j.output() != colorsep.Color:
		return dither.InputBlack
	case layout == colorsep.LayoutCMYK || layout == colorsep.LayoutCMYK16:
		return dither.InputCMYK
	}
	return dither.InputCMY
}

func (j *Job) converter(layout colorsep.Layout) (*colorsep.Converter, error) {
	s := j.Settings
	cfg := colorsep.Config{
		Output: j.output(), Layout: layout, Width: j.Source.Width(), Saturation: s.Saturation,
		HueMap: j.HueMap, LumMap: j.LumMap, SatMap: j.SatMap,
	}
	if c, ok := j.Source.(Colormapped); ok {
		cfg.Colormap = c.Colormap()
	}
	if layout != colorsep.LayoutCMYK && layout != colorsep.LayoutCMYK16 {
		lut, err := colorsep.ComputeLUT(s.LUTParams(j.Transfer), 256)
		if err != nil {
			return nil, err
		}
		cfg.LUT = lut
	}
	return colorsep.NewConverter(cfg)
}

// engine creates the dither engine. An unknown algorithm or one that cannot
// be set up is replaced by the default algorithm.
func (j *Job) engine(input dither.Input, width int) (*dither.Dither, error) {
	s := j.Settings
	log := j.logger()
	algo, err := dither.ParseAlgorithm(s.DitherAlgorithm)
	if err != nil {
		log.Warn("unknown dither algorithm, using default", "algorithm", s.DitherAlgorithm, "default", algo)
	}
	cfg := dither.Config{
		Algorithm: algo, Input: input, Inks: s.Inks(),
		Density: s.Density, BlackDensity: s.BlackDensity, InkSpread: s.InkSpread,
		AdaptiveDivisor: s.AdaptiveDivisor, Randomizer: s.Randomizer, Transition: s.Transition,
		InkBudget: s.InkBudget, Matrices: j.Matrices, Seed: j.Seed, Logger: log,
	}
	if input == dither.InputCMY && cfg.Inks[dither.Black] != nil {
		if cfg.BlackGenerator, err = colorsep.NewBlackGenerator(s.BlackParams()); err != nil {
			return nil, err
		}
	}
	d, err := dither.New(j.Source.Width(), width, s.XAspect, s.YAspect, cfg)
	if err != nil && algo != dither.DefaultAlgorithm && !errors.Is(err, dither.ErrConfig) {
		log.Warn("could not set up dither algorithm, using default", "algorithm", algo, "default", dither.DefaultAlgorithm, "error", err)
		cfg.Algorithm = dither.DefaultAlgorithm
		d, err = dither.New(j.Source.Width(), width, s.XAspect, s.YAspect, cfg)
	}
	return d, err
}

func spread_gray(gray, values []uint16) {
	for i, v := range gray {
		values[3*i], values[3*i+1], values[3*i+2] = v, v, v
	}
}

// Run dithers the rows in ascending order and closes the sink. When the
// source returns ErrAbort the rows emitted so far are flushed and Run
// returns without error with Stats.Aborted set.
func (j *Job) Run() (stats Stats, err error) {
	if j.Settings == nil {
		j.Settings = DefaultSettings()
	}
	log := j.logger()
	defer func() {
		if j.Sink == nil {
			return
		}
		if cerr := j.Sink.Close(); err == nil {
			err = cerr
		}
	}()
	layout, err := layout_of(j.Source)
	if err != nil {
		return
	}
	width := j.Width
	if width == 0 {
		width = j.Source.Width()
	}
	conv, err := j.converter(layout)
	if err != nil {
		return
	}
	d, err := j.engine(j.input(layout), width)
	if err != nil {
		return
	}
	defer d.Free()
	stats.Algorithm = d.Algorithm()
	if j.OnStart != nil {
		if err = j.OnStart(d); err != nil {
			return
		}
	}
	// composite gray repeats the single gray channel for each color ink
	var gray []uint16
	channels := conv.Channels()
	if j.Settings.CompositeGray() {
		gray, channels = make([]uint16, j.Source.Width()), 3*conv.Channels()
	}
	if channels != d.InputChannels() {
		return stats, fmt.Errorf("%w: converter produces %d channels, dither expects %d", dither.ErrConfig, channels, d.InputChannels())
	}
	log.Debug("dithering", "width", j.Source.Width(), "height", j.Source.Height(), "layout", layout, "output", j.output(), "algorithm", stats.Algorithm, "composite_gray", gray != nil)

	out := d.NewBuffers()
	values := make([]uint16, j.Source.Width()*channels)
	var raw, prev []byte
	have_prev := false
	var zero_mask uint
	all_zero := uint(1)<<channels - 1
	for y := range j.Source.Height() {
		raw, err = j.Source.GetRow(y, raw)
		if err != nil {
			if errors.Is(err, ErrAbort) {
				log.Info("job aborted", "row", y, "height", j.Source.Height())
				stats.Aborted = true
				err = nil
			}
			return
		}
		duplicate := have_prev && bytes.Equal(raw, prev)
		if duplicate {
			stats.Duplicates++
		} else {
			if gray == nil {
				zero_mask, err = conv.Convert(raw, values)
			} else {
				zero_mask, err = conv.Convert(raw, gray)
				spread_gray(gray, values)
				if zero_mask != 0 {
					zero_mask = all_zero
				}
			}
			if err != nil {
				return
			}
			prev = append(prev[:0], raw...)
			have_prev = true
		}
		if zero_mask == all_zero {
			stats.Empty++
		}
		if err = d.Dither(values, y, out, duplicate, zero_mask); err != nil {
			return
		}
		if j.Sink != nil {
			if err = j.Sink.WriteRow(y, out); err != nil {
				return
			}
		}
		stats.Rows++
	}
	return
}
