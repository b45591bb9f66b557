package emit

import (
	"errors"
	"fmt"
)

var _ = fmt.Print

var ErrTruncated = errors.New("truncated PackBits data")

// MaxRun is the longest literal or repeat run a single header byte can
// describe.
const MaxRun = 128

// PackBits appends the PackBits encoding of src to dst and returns the
// extended slice. Three or more equal bytes become a repeat run, everything
// else is copied in literal runs.
func PackBits(dst, src []byte) []byte {
	literal := 0
	flush := func(end int) {
		for literal < end {
			n := min(MaxRun, end-literal)
			dst = append(dst, byte(n-1))
			dst = append(dst, src[literal:literal+n]...)
			literal += n
		}
	}
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < MaxRun && src[i+run] == src[i] {
			run++
		}
		if run >= 3 {
			flush(i)
			dst = append(dst, byte(257-run), src[i])
			i += run
			literal = i
		} else {
			i += run
		}
	}
	flush(len(src))
	return dst
}

// UnpackBits appends the decoding of the PackBits data in src to dst. The
// header byte 128 is a no-op.
func UnpackBits(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); {
		h := src[i]
		i++
		switch {
		case h < 128:
			n := int(h) + 1
			if i+n > len(src) {
				return dst, fmt.Errorf("%w: literal run of %d bytes at offset %d has only %d", ErrTruncated, n, i-1, len(src)-i)
			}
			dst = append(dst, src[i:i+n]...)
			i += n
		case h > 128:
			if i >= len(src) {
				return dst, fmt.Errorf("%w: repeat run at offset %d has no value", ErrTruncated, i-1)
			}
			v := src[i]
			i++
			for range 257 - int(h) {
				dst = append(dst, v)
			}
		}
	}
	return dst, nil
}
