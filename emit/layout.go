package emit

import (
	"errors"
	"fmt"

	"github.com/kovidgoyal/halftone/dither"
)

var (
	ErrRowOrder = errors.New("rows must be written in ascending order")
	ErrClosed   = errors.New("sink is closed")
	ErrFormat   = errors.New("malformed raster stream")
)

// Plane identifies one bit plane of an output row.
type Plane struct {
	Channel dither.Channel
	Light   bool
	// Index of the plane among the dark or light planes of the channel,
	// plane 0 holds the least significant bit of the drop pattern
	Index int
}

func (p Plane) String() string {
	name := p.Channel.String()
	if p.Light {
		name = "light " + name
	}
	if p.Index > 0 {
		name = fmt.Sprintf("%s.%d", name, p.Index)
	}
	return name
}

// Layout describes how the rows produced by a Dither are split into planes.
type Layout struct {
	Width    int
	RowBytes int
	Planes   []Plane
}

// LayoutOf returns the layout of the rows d produces, channels in the order
// d prints them, dark planes before light ones.
func LayoutOf(d *dither.Dither) Layout {
	ans := Layout{Width: d.Width(), RowBytes: d.RowBytes()}
	for _, c := range d.Channels() {
		for _, light := range []bool{false, true} {
			for i := range d.Planes(c, light) {
				ans.Planes = append(ans.Planes, Plane{Channel: c, Light: light, Index: i})
			}
		}
	}
	return ans
}

// Data returns the bytes of plane p in b, nil when b does not hold it.
func (l Layout) Data(b *dither.Buffers, p Plane) []byte {
	buf := b.Plane(p.Channel, p.Light)
	start := p.Index * l.RowBytes
	if len(buf) < start+l.RowBytes {
		return nil
	}
	return buf[start : start+l.RowBytes]
}

// Find returns the index of the plane with the given name as produced by
// Plane.String, or -1.
func (l Layout) Find(name string) int {
	for i, p := range l.Planes {
		if p.String() == name {
			return i
		}
	}
	return -1
}

// Sink consumes dithered rows. Rows arrive in ascending order, possibly
// with gaps where nothing was printed.
type Sink interface {
	WriteRow(row int, b *dither.Buffers) error
	Close() error
}

type multi []Sink

func (m multi) WriteRow(row int, b *dither.Buffers) error {
	for _, s := range m {
		if err := s.WriteRow(row, b); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Multi returns a sink that writes every row to all of sinks.
func Multi(sinks ...Sink) Sink { return multi(sinks) }

// row_order is embedded by the sinks to enforce ascending rows.
type row_order struct {
	next   int
	closed bool
}

func (r *row_order) check(row int) error {
	if r.closed {
		return ErrClosed
	}
	if row < r.next {
		return fmt.Errorf("%w: row %d after row %d", ErrRowOrder, row, r.next-1)
	}
	r.next = row + 1
	return nil
}
