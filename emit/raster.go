package emit

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kovidgoyal/halftone/dither"
)

// RasterMagic starts every raster stream.
const RasterMagic = "HTR1"

const (
	flag_blank = 1 << iota
)

// RasterSink writes rows as a stream of PackBits compressed planes. The
// stream starts with RasterMagic, the width, the bytes per plane row and
// the plane list. Each record then holds the row number, the plane index,
// a flag byte and, unless the plane is blank, the length and bytes of the
// compressed plane. All integers are big endian.
type RasterSink struct {
	row_order
	w       *bufio.Writer
	layout  Layout
	scratch []byte
}

func NewRasterSink(w io.Writer, layout Layout) (*RasterSink, error) {
	ans := &RasterSink{w: bufio.NewWriter(w), layout: layout}
	if len(layout.Planes) > 0xffff {
		return nil, fmt.Errorf("%w: too many planes: %d", ErrFormat, len(layout.Planes))
	}
	hdr := []byte(RasterMagic)
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(layout.Width))
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(layout.RowBytes))
	hdr = binary.BigEndian.AppendUint16(hdr, uint16(len(layout.Planes)))
	for _, p := range layout.Planes {
		light := byte(0)
		if p.Light {
			light = 1
		}
		hdr = append(hdr, byte(p.Channel), light, byte(p.Index))
	}
	if _, err := ans.w.Write(hdr); err != nil {
		return nil, err
	}
	return ans, nil
}

func (s *RasterSink) WriteRow(row int, b *dither.Buffers) error {
	if err := s.check(row); err != nil {
		return err
	}
	for i, p := range s.layout.Planes {
		data := s.layout.Data(b, p)
		rec := binary.BigEndian.AppendUint32(s.scratch[:0], uint32(row))
		rec = binary.BigEndian.AppendUint16(rec, uint16(i))
		if data == nil || AllZero(data) {
			rec = append(rec, flag_blank)
		} else {
			rec = append(rec, 0, 0, 0, 0, 0)
			start := len(rec)
			rec = PackBits(rec, data)
			binary.BigEndian.PutUint32(rec[start-4:], uint32(len(rec)-start))
		}
		s.scratch = rec
		if _, err := s.w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered records. It does not close the underlying writer.
func (s *RasterSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Flush()
}

// RasterRecord is one decoded plane row. Data holds RowBytes bytes and is
// only valid until the next call to Next.
type RasterRecord struct {
	Row   int
	Plane int
	Blank bool
	Data  []byte
}

// RasterReader decodes the stream written by RasterSink.
type RasterReader struct {
	r      *bufio.Reader
	layout Layout
	buf    []byte
	packed []byte
}

func NewRasterReader(r io.Reader) (*RasterReader, error) {
	ans := &RasterReader{r: bufio.NewReader(r)}
	hdr := make([]byte, len(RasterMagic)+10)
	if _, err := io.ReadFull(ans.r, hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrFormat, err)
	}
	if string(hdr[:len(RasterMagic)]) != RasterMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, hdr[:len(RasterMagic)])
	}
	hdr = hdr[len(RasterMagic):]
	ans.layout.Width = int(binary.BigEndian.Uint32(hdr))
	ans.layout.RowBytes = int(binary.BigEndian.Uint32(hdr[4:]))
	if ans.layout.RowBytes < (ans.layout.Width+7)/8 {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d pixels", ErrFormat, ans.layout.RowBytes, ans.layout.Width)
	}
	n := int(binary.BigEndian.Uint16(hdr[8:]))
	planes := make([]byte, 3*n)
	if _, err := io.ReadFull(ans.r, planes); err != nil {
		return nil, fmt.Errorf("%w: reading plane list: %w", ErrFormat, err)
	}
	for i := range n {
		p := planes[3*i:]
		if dither.Channel(p[0]) >= dither.ChannelCount {
			return nil, fmt.Errorf("%w: plane %d has unknown channel %d", ErrFormat, i, p[0])
		}
		ans.layout.Planes = append(ans.layout.Planes, Plane{Channel: dither.Channel(p[0]), Light: p[1] != 0, Index: int(p[2])})
	}
	ans.buf = make([]byte, 0, ans.layout.RowBytes)
	return ans, nil
}

func (r *RasterReader) Layout() Layout { return r.layout }

// Next returns the next record, io.EOF after the last one.
func (r *RasterReader) Next() (ans RasterRecord, err error) {
	var hdr [7]byte
	if _, err = io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = fmt.Errorf("%w: truncated record header", ErrFormat)
		}
		return
	}
	ans.Row = int(binary.BigEndian.Uint32(hdr[:]))
	ans.Plane = int(binary.BigEndian.Uint16(hdr[4:]))
	if ans.Plane >= len(r.layout.Planes) {
		return ans, fmt.Errorf("%w: record for plane %d of %d", ErrFormat, ans.Plane, len(r.layout.Planes))
	}
	r.buf = r.buf[:r.layout.RowBytes]
	if hdr[6]&flag_blank != 0 {
		clear(r.buf)
		ans.Blank, ans.Data = true, r.buf
		return
	}
	var sz [4]byte
	if _, err = io.ReadFull(r.r, sz[:]); err != nil {
		return ans, fmt.Errorf("%w: truncated record length: %w", ErrFormat, err)
	}
	n := int(binary.BigEndian.Uint32(sz[:]))
	if n > 2*r.layout.RowBytes+2 {
		return ans, fmt.Errorf("%w: compressed row of %d bytes for a %d byte plane", ErrFormat, n, r.layout.RowBytes)
	}
	r.packed = append(r.packed[:0], make([]byte, n)...)
	if _, err = io.ReadFull(r.r, r.packed); err != nil {
		return ans, fmt.Errorf("%w: truncated record data: %w", ErrFormat, err)
	}
	if r.buf, err = UnpackBits(r.buf[:0], r.packed); err != nil {
		return
	}
	if len(r.buf) != r.layout.RowBytes {
		return ans, fmt.Errorf("%w: row %d plane %d unpacks to %d bytes, expected %d", ErrFormat, ans.Row, ans.Plane, len(r.buf), r.layout.RowBytes)
	}
	ans.Data = r.buf
	return
}
