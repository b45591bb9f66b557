// Package xmlio reads and writes curves, arrays and dither matrices as
// small XML documents. Every value list is a <sequence> element holding
// whitespace separated numbers.
package xmlio

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kovidgoyal/halftone/array"
	"github.com/kovidgoyal/halftone/curve"
	"github.com/kovidgoyal/halftone/matrix"
)

var _ = fmt.Print

var (
	ErrFormat   = errors.New("malformed document")
	ErrNotFound = errors.New("element not found")
)

type xml_sequence struct {
	Count int     `xml:"count,attr"`
	Lower float64 `xml:"lower-bound,attr"`
	Upper float64 `xml:"upper-bound,attr"`
	Data  string  `xml:",chardata"`
}

type xml_curve struct {
	XMLName  xml.Name     `xml:"curve"`
	Type     string       `xml:"type,attr"`
	Wrap     string       `xml:"wrap,attr"`
	Gamma    float64      `xml:"gamma,attr"`
	Sequence xml_sequence `xml:"sequence"`
}

type xml_array struct {
	XMLName  xml.Name     `xml:"array"`
	XSize    int          `xml:"x-size,attr"`
	YSize    int          `xml:"y-size,attr"`
	Sequence xml_sequence `xml:"sequence"`
}

type xml_matrix struct {
	XMLName xml.Name  `xml:"dither-matrix"`
	XAspect int       `xml:"x-aspect,attr"`
	YAspect int       `xml:"y-aspect,attr"`
	Array   xml_array `xml:"array"`
}

func new_sequence(lo, hi float64, data []float64) xml_sequence {
	parts := make([]string, len(data))
	for i, v := range data {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return xml_sequence{Count: len(data), Lower: lo, Upper: hi, Data: strings.Join(parts, " ")}
}

func (s *xml_sequence) values() ([]float64, error) {
	fields := strings.Fields(s.Data)
	if len(fields) != s.Count {
		return nil, fmt.Errorf("%w: sequence declares %d values but holds %d", ErrFormat, s.Count, len(fields))
	}
	ans := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: sequence value %d: %w", ErrFormat, i, err)
		}
		ans[i] = v
	}
	return ans, nil
}

func write(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// read decodes the first element named name anywhere in the document, so
// that documents wrapping the element in a root element are accepted.
func read(r io.Reader, name string, v any) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return fmt.Errorf("%w: <%s>", ErrNotFound, name)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == name {
			if err = dec.DecodeElement(v, &se); err != nil {
				return fmt.Errorf("%w: %w", ErrFormat, err)
			}
			return nil
		}
	}
}

func WriteCurve(w io.Writer, c *curve.Curve) error {
	lo, hi := c.Bounds()
	x := xml_curve{Type: c.Type().String(), Wrap: c.WrapMode().String(), Gamma: c.Gamma()}
	if c.Gamma() != 0 {
		x.Sequence = new_sequence(lo, hi, nil)
	} else {
		x.Sequence = new_sequence(lo, hi, c.Data())
	}
	return write(w, &x)
}

func parse_type(s string) (curve.Type, error) {
	switch s {
	case "linear", "":
		return curve.Linear, nil
	case "spline":
		return curve.Spline, nil
	}
	return curve.Linear, fmt.Errorf("%w: unknown curve type %q", ErrFormat, s)
}

func parse_wrap(s string) (curve.WrapMode, error) {
	switch s {
	case "nowrap", "":
		return curve.WrapNone, nil
	case "wrap":
		return curve.WrapAround, nil
	}
	return curve.WrapNone, fmt.Errorf("%w: unknown wrap mode %q", ErrFormat, s)
}

// ReadCurve reads the first <curve> in r. A non-zero gamma attribute makes
// a pure gamma curve and the point data is ignored.
func ReadCurve(r io.Reader) (*curve.Curve, error) {
	var x xml_curve
	if err := read(r, "curve", &x); err != nil {
		return nil, err
	}
	kind, err := parse_type(x.Type)
	if err != nil {
		return nil, err
	}
	wrap, err := parse_wrap(x.Wrap)
	if err != nil {
		return nil, err
	}
	if x.Gamma != 0 {
		if wrap == curve.WrapAround {
			return nil, curve.ErrGammaWrap
		}
		ans, err := curve.NewGamma(x.Gamma, x.Sequence.Lower, x.Sequence.Upper)
		if err != nil {
			return nil, err
		}
		ans.SetType(kind)
		return ans, nil
	}
	data, err := x.Sequence.values()
	if err != nil {
		return nil, err
	}
	return curve.NewWithData(kind, wrap, x.Sequence.Lower, x.Sequence.Upper, data)
}

func to_xml_array(a *array.Array) xml_array {
	x, y := a.Size()
	lo, hi := a.Bounds()
	return xml_array{XSize: x, YSize: y, Sequence: new_sequence(lo, hi, a.Values())}
}

func (x *xml_array) array() (*array.Array, error) {
	data, err := x.Sequence.values()
	if err != nil {
		return nil, err
	}
	return array.NewWithData(x.XSize, x.YSize, x.Sequence.Lower, x.Sequence.Upper, data)
}

func WriteArray(w io.Writer, a *array.Array) error {
	x := to_xml_array(a)
	return write(w, &x)
}

// ReadArray reads the first <array> in r.
func ReadArray(r io.Reader) (*array.Array, error) {
	var x xml_array
	if err := read(r, "array", &x); err != nil {
		return nil, err
	}
	return x.array()
}

// WriteMatrix writes a as the dither matrix for the aspect x_aspect:y_aspect.
func WriteMatrix(w io.Writer, x_aspect, y_aspect int, a *array.Array) error {
	x := xml_matrix{XAspect: x_aspect, YAspect: y_aspect, Array: to_xml_array(a)}
	return write(w, &x)
}

// ReadMatrix reads the first <dither-matrix> in r.
func ReadMatrix(r io.Reader) (x_aspect, y_aspect int, a *array.Array, err error) {
	var x xml_matrix
	if err = read(r, "dither-matrix", &x); err != nil {
		return
	}
	if x.XAspect < 1 || x.YAspect < 1 {
		return 0, 0, nil, fmt.Errorf("%w: dither matrix aspect %d:%d", ErrFormat, x.XAspect, x.YAspect)
	}
	if a, err = x.Array.array(); err != nil {
		return
	}
	return x.XAspect, x.YAspect, a, nil
}

// LoadMatrix reads a dither matrix from r and registers it in cache under
// its aspect, replacing any built-in matrix for that aspect.
func LoadMatrix(r io.Reader, cache *matrix.Cache) (matrix.Aspect, error) {
	xa, ya, a, err := ReadMatrix(r)
	if err != nil {
		return matrix.Aspect{}, err
	}
	m, err := matrix.NewFromArray(a, false)
	if err != nil {
		return matrix.Aspect{}, err
	}
	cache.Add(xa, ya, m)
	return matrix.NormalizeAspect(xa, ya), nil
}
