package emit

import (
	"encoding/binary"
)

// AllZero reports whether every byte of b is zero, testing eight bytes at
// a time.
func AllZero(b []byte) bool {
	for len(b) >= 8 {
		if binary.LittleEndian.Uint64(b) != 0 {
			return false
		}
		b = b[8:]
	}
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
