package halftone

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"io"

	"github.com/kettek/apng"
	"golang.org/x/image/draw"
)

var _ = fmt.Print

type disposal int

const (
	keep_canvas disposal = iota
	clear_frame
	restore_canvas
)

// layer is one frame of an animation before coalescing.
type layer struct {
	img     image.Image
	at      image.Point
	replace bool
	dispose disposal
}

func clone_canvas(c *image.NRGBA) *image.NRGBA {
	ans := image.NewNRGBA(c.Rect)
	copy(ans.Pix, c.Pix)
	return ans
}

// coalesce renders every layer onto a canvas of the given size, so that
// each page is the animation as shown while that frame is displayed.
func coalesce(size image.Point, layers []layer) []image.Image {
	canvas := image.NewNRGBA(image.Rectangle{Max: size})
	ans := make([]image.Image, 0, len(layers))
	for _, l := range layers {
		b := l.img.Bounds()
		r := image.Rectangle{l.at, l.at.Add(b.Size())}
		var saved *image.NRGBA
		if l.dispose == restore_canvas {
			saved = clone_canvas(canvas)
		}
		op := draw.Over
		if l.replace {
			op = draw.Src
		}
		draw.Draw(canvas, r, l.img, b.Min, op)
		ans = append(ans, clone_canvas(canvas))
		switch l.dispose {
		case clear_frame:
			draw.Draw(canvas, r, image.Transparent, image.Point{}, draw.Src)
		case restore_canvas:
			canvas = saved
		}
	}
	return ans
}

func gif_layers(g *gif.GIF) []layer {
	ans := make([]layer, len(g.Image))
	for i, img := range g.Image {
		ans[i] = layer{img: img, at: img.Bounds().Min}
		// browsers keep the canvas for background disposal
		if g.Disposal[i] == gif.DisposalPrevious {
			ans[i].dispose = restore_canvas
		}
	}
	return ans
}

func apng_layers(a *apng.APNG) []layer {
	ans := make([]layer, 0, len(a.Frames))
	for _, f := range a.Frames {
		if f.IsDefault {
			continue
		}
		l := layer{img: f.Image, at: image.Pt(f.XOffset, f.YOffset), replace: f.BlendOp == apng.BLEND_OP_SOURCE}
		switch f.DisposeOp {
		case apng.DISPOSE_OP_BACKGROUND:
			l.dispose = clear_frame
		case apng.DISPOSE_OP_PREVIOUS:
			l.dispose = restore_canvas
		}
		ans = append(ans, l)
	}
	return ans
}

// DecodeFrames reads every frame of an animated GIF or PNG as a separate
// page. Images that are not animated give a single page, as Decode.
func DecodeFrames(r io.Reader, opts ...DecodeOption) ([]image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var size image.Point
	var layers []layer
	switch {
	case bytes.HasPrefix(data, []byte("GIF8")):
		if g, err := gif.DecodeAll(bytes.NewReader(data)); err == nil {
			size, layers = image.Pt(g.Config.Width, g.Config.Height), gif_layers(g)
		}
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		if a, err := apng.DecodeAll(bytes.NewReader(data)); err == nil && len(a.Frames) > 0 {
			size, layers = a.Frames[0].Image.Bounds().Size(), apng_layers(&a)
		}
	}
	if len(layers) < 2 {
		img, err := Decode(bytes.NewReader(data), opts...)
		if err != nil {
			return nil, err
		}
		return []image.Image{img}, nil
	}
	ans := coalesce(size, layers)
	if cfg := decode_config(opts); cfg.autoOrientation {
		o := read_orientation(data)
		for i, img := range ans {
			ans[i] = fixOrientation(img, o)
		}
	}
	return ans, nil
}

// OpenFrames loads the pages of an image file, see DecodeFrames.
func OpenFrames(filename string, opts ...DecodeOption) ([]image.Image, error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeFrames(file, opts...)
}
