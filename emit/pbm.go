package emit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kovidgoyal/halftone/dither"
)

// PBMSink writes a single plane as a binary PBM (P4) image. Set bits are
// black, which is how PBM and the dither planes agree on ink.
type PBMSink struct {
	row_order
	w      *bufio.Writer
	layout Layout
	plane  Plane
	height int
	blank  []byte
}

func NewPBMSink(w io.Writer, layout Layout, plane Plane, height int) (*PBMSink, error) {
	if layout.Width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: cannot write a %dx%d PBM", ErrFormat, layout.Width, height)
	}
	ans := &PBMSink{w: bufio.NewWriter(w), layout: layout, plane: plane, height: height, blank: make([]byte, (layout.Width+7)/8)}
	if _, err := fmt.Fprintf(ans.w, "P4\n# %s\n%d %d\n", plane, layout.Width, height); err != nil {
		return nil, err
	}
	return ans, nil
}

func (s *PBMSink) pad(to int) error {
	for ; s.next < to; s.next++ {
		if _, err := s.w.Write(s.blank); err != nil {
			return err
		}
	}
	return nil
}

func (s *PBMSink) WriteRow(row int, b *dither.Buffers) error {
	if row >= s.height {
		return fmt.Errorf("%w: row %d of a %d row image", ErrRowOrder, row, s.height)
	}
	if s.closed {
		return ErrClosed
	}
	if row < s.next {
		return fmt.Errorf("%w: row %d after row %d", ErrRowOrder, row, s.next-1)
	}
	if err := s.pad(row); err != nil {
		return err
	}
	s.next = row + 1
	data := s.layout.Data(b, s.plane)
	if data == nil {
		data = s.blank
	}
	_, err := s.w.Write(data[:len(s.blank)])
	return err
}

// Close fills the rows that were never written with white and flushes.
func (s *PBMSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.pad(s.height); err != nil {
		return err
	}
	return s.w.Flush()
}
