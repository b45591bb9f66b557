package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kovidgoyal/halftone"
	"github.com/kovidgoyal/halftone/curve"
	"github.com/kovidgoyal/halftone/dither"
	"github.com/kovidgoyal/halftone/emit"
	"github.com/kovidgoyal/halftone/matrix"
	"github.com/kovidgoyal/halftone/xmlio"
)

var _ = fmt.Print

func new_app() *cli.App {
	return &cli.App{
		Name:      "halftone",
		Usage:     "dither an image into printer ink planes",
		ArgsUsage: "input-image",
		Version:   halftone.Version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "raster stream to write, defaults to the input name with .htr appended",
			},
			&cli.StringFlag{
				Name:  "preview",
				Usage: "write an animated PNG with one frame per ink plane",
			},
			&cli.StringSliceFlag{
				Name:  "pbm",
				Usage: "write one plane as a PBM bitmap, as plane=file, for example \"light cyan=lc.pbm\"",
			},
			&cli.StringSliceFlag{
				Name:    "set",
				Aliases: []string{"s"},
				Usage:   "change a setting, as key=value, see the settings command for the keys",
			},
			&cli.StringSliceFlag{
				Name:  "matrix",
				Usage: "load a dither matrix from an XML file, it is used for its aspect ratio",
			},
			&cli.StringFlag{Name: "transfer", Usage: "XML curve applied to the tone tables"},
			&cli.StringFlag{Name: "hue-map", Usage: "XML curve remapping hues"},
			&cli.StringFlag{Name: "lum-map", Usage: "XML curve scaling lightness by hue"},
			&cli.StringFlag{Name: "sat-map", Usage: "XML curve scaling saturation by hue"},
			&cli.IntFlag{
				Name:  "width",
				Usage: "output width in pixels, 0 keeps the width of the image",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "seed for the random dither algorithms",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "frame of an animated GIF or PNG to dither, counting from 1",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "no-orient",
				Usage: "ignore the EXIF orientation of the image",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log progress details",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "settings",
				Usage:  "list the settings with their default values",
				Action: list_settings,
			},
		},
	}
}

func main() {
	if err := new_app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func list_settings(c *cli.Context) error {
	s := halftone.DefaultSettings()
	for _, key := range s.Keys() {
		val, _ := s.Get(key)
		doc, _ := s.Doc(key)
		fmt.Fprintf(c.App.Writer, "%s = %s\n    %s\n", key, val, doc)
	}
	return nil
}

func logger_for(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

func load_curve(path string) (*curve.Curve, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ans, err := xmlio.ReadCurve(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ans, nil
}

func load_matrices(paths []string, log *slog.Logger) (*matrix.Cache, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	cache := &matrix.Cache{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		aspect, err := xmlio.LoadMatrix(f, cache)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Debug("loaded dither matrix", "path", path, "aspect", aspect)
	}
	return cache, nil
}

type pbm_request struct {
	plane, path string
}

func parse_pbm(specs []string) (ans []pbm_request, err error) {
	for _, spec := range specs {
		plane, path, found := strings.Cut(spec, "=")
		if !found || plane == "" || path == "" {
			return nil, fmt.Errorf("invalid --pbm value %q, expected plane=file", spec)
		}
		ans = append(ans, pbm_request{plane, path})
	}
	return
}

// outputs owns the files the sinks write to.
type outputs struct {
	files []*os.File
}

func (o *outputs) create(path string) (io.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	o.files = append(o.files, f)
	return f, nil
}

func (o *outputs) close() (err error) {
	for _, f := range o.files {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	o.files = nil
	return
}

func run(c *cli.Context) (err error) {
	input := c.Args().First()
	if input == "" || c.Args().Len() > 1 {
		return cli.Exit("exactly one input image is required", 1)
	}
	log := logger_for(c)
	settings := halftone.DefaultSettings()
	for _, pair := range c.StringSlice("set") {
		if err = settings.SetPair(pair); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	pbms, err := parse_pbm(c.StringSlice("pbm"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	raster_path, preview_path := c.String("output"), c.String("preview")
	if raster_path == "" && preview_path == "" && len(pbms) == 0 {
		raster_path = input + ".htr"
	}

	job := &halftone.Job{Settings: settings, Width: c.Int("width"), Seed: c.Uint64("seed"), Logger: log}
	if job.Matrices, err = load_matrices(c.StringSlice("matrix"), log); err != nil {
		return
	}
	for flag, dest := range map[string]**curve.Curve{
		"transfer": &job.Transfer, "hue-map": &job.HueMap, "lum-map": &job.LumMap, "sat-map": &job.SatMap,
	} {
		if *dest, err = load_curve(c.String(flag)); err != nil {
			return
		}
	}

	pages, err := halftone.OpenFrames(input, halftone.AutoOrientation(!c.Bool("no-orient")))
	if err != nil {
		return
	}
	page := c.Int("page")
	if page < 1 || page > len(pages) {
		return cli.Exit(fmt.Sprintf("%s has %d pages, cannot dither page %d", input, len(pages), page), 1)
	}
	src := halftone.NewImageSource(pages[page-1])
	job.Source = src
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()
	src.Abort = func() bool { return ctx.Err() != nil }

	var out outputs
	defer func() {
		if cerr := out.close(); err == nil {
			err = cerr
		}
	}()
	job.OnStart = func(d *dither.Dither) error {
		layout := emit.LayoutOf(d)
		log.Debug("starting", "source", src, "planes", len(layout.Planes), "row_bytes", layout.RowBytes)
		var sinks []emit.Sink
		if raster_path != "" {
			w, err := out.create(raster_path)
			if err != nil {
				return err
			}
			s, err := emit.NewRasterSink(w, layout)
			if err != nil {
				return err
			}
			sinks = append(sinks, s)
		}
		if preview_path != "" {
			w, err := out.create(preview_path)
			if err != nil {
				return err
			}
			s, err := emit.NewPreviewSink(w, layout, src.Height())
			if err != nil {
				return err
			}
			sinks = append(sinks, s)
		}
		for _, r := range pbms {
			idx := layout.Find(r.plane)
			if idx < 0 {
				names := make([]string, len(layout.Planes))
				for i, p := range layout.Planes {
					names[i] = p.String()
				}
				return fmt.Errorf("no plane named %q, the planes are: %s", r.plane, strings.Join(names, ", "))
			}
			w, err := out.create(r.path)
			if err != nil {
				return err
			}
			s, err := emit.NewPBMSink(w, layout, layout.Planes[idx], src.Height())
			if err != nil {
				return err
			}
			sinks = append(sinks, s)
		}
		job.Sink = emit.Multi(sinks...)
		return nil
	}
	stats, err := job.Run()
	if err != nil {
		return
	}
	log.Info("done", "rows", stats.Rows, "duplicates", stats.Duplicates, "empty", stats.Empty, "algorithm", stats.Algorithm)
	if stats.Aborted {
		return cli.Exit("interrupted", 130)
	}
	return
}
