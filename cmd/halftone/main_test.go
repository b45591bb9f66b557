package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kettek/apng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/kovidgoyal/halftone/emit"
)

var _ = fmt.Print

func test_app(out *bytes.Buffer) *cli.App {
	app := new_app()
	app.Writer, app.ErrWriter = out, out
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func write_png(t *testing.T, path string, w, h int) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestSettingsCommand(t *testing.T) {
	out := bytes.Buffer{}
	require.NoError(t, test_app(&out).Run([]string{"halftone", "settings"}))
	assert.Contains(t, out.String(), "dither_algorithm = Adaptive Hybrid\n")
	assert.Contains(t, out.String(), "output_type = color\n")
}

func TestParsePBM(t *testing.T) {
	ans, err := parse_pbm([]string{"black=k.pbm", "light cyan=lc.pbm"})
	require.NoError(t, err)
	assert.Equal(t, []pbm_request{{"black", "k.pbm"}, {"light cyan", "lc.pbm"}}, ans)
	for _, bad := range []string{"black", "=k.pbm", "black="} {
		_, err = parse_pbm([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	write_png(t, input, 8, 2)
	out := bytes.Buffer{}
	err := test_app(&out).Run([]string{
		"halftone", "-s", "output_type=gray", "--preview", filepath.Join(dir, "p.png"),
		"--pbm", "black=" + filepath.Join(dir, "k.pbm"), "-o", filepath.Join(dir, "out.htr"), input})
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "rows=2")

	pbm, err := os.ReadFile(filepath.Join(dir, "k.pbm"))
	require.NoError(t, err)
	header := "P4\n# black\n8 2\n"
	require.Len(t, pbm, len(header)+2)
	assert.Equal(t, header, string(pbm[:len(header)]))

	f, err := os.Open(filepath.Join(dir, "out.htr"))
	require.NoError(t, err)
	defer f.Close()
	rd, err := emit.NewRasterReader(f)
	require.NoError(t, err)
	assert.Equal(t, 8, rd.Layout().Width)
	assert.Equal(t, "black", rd.Layout().Planes[0].String())

	p, err := os.Open(filepath.Join(dir, "p.png"))
	require.NoError(t, err)
	defer p.Close()
	a, err := apng.DecodeAll(p)
	require.NoError(t, err)
	assert.NotEmpty(t, a.Frames)
}

func TestRunDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	write_png(t, input, 3, 3)
	out := bytes.Buffer{}
	require.NoError(t, test_app(&out).Run([]string{"halftone", input}), out.String())
	_, err := os.Stat(input + ".htr")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	for _, flag := range []string{"--version", "-v"} {
		out := bytes.Buffer{}
		require.NoError(t, test_app(&out).Run([]string{"halftone", flag}), flag)
		assert.Equal(t, "halftone version 0.9.0\n", out.String(), flag)
	}
}

func TestRunVerbose(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	write_png(t, input, 4, 4)
	out := bytes.Buffer{}
	require.NoError(t, test_app(&out).Run([]string{"halftone", "--verbose", input}), out.String())
	assert.Contains(t, out.String(), "level=DEBUG msg=starting")
	assert.Contains(t, out.String(), "level=INFO msg=done rows=4")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	write_png(t, input, 3, 3)
	for _, args := range [][]string{
		{},
		{input, input},
		{"-s", "nonsense=1", input},
		{"-s", "density=7", input},
		{"--pbm", "light magenta=" + filepath.Join(dir, "x.pbm"), "-s", "output_type=gray", input},
		{"--transfer", filepath.Join(dir, "missing.xml"), input},
		{"--page", "2", input},
		{filepath.Join(dir, "missing.png")},
	} {
		out := bytes.Buffer{}
		err := test_app(&out).Run(append([]string{"halftone"}, args...))
		assert.Error(t, err, "%v", args)
	}
}
