package common

import (
	"encoding/binary"
	"math"
)

// CeilDiv returns the smallest q such that q*d >= n.
// It does not overflow for n close to the uint32 maximum. A zero n yields zero.
//
// Parameters:
//   - n: the dividend
//   - d: the divisor, must be non-zero
//
// Returns:
//   - uint32: ceil(n / d)
func CeilDiv(n, d uint32) uint32 {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}

// AppendFloat32s appends each value to dst as a little-endian IEEE-754 single.
// GPU buffer layouts in this module are little-endian regardless of the host byte order.
//
// Parameters:
//   - dst: the slice to append to, may be nil
//   - values: the values to encode
//
// Returns:
//   - []byte: the extended slice
func AppendFloat32s(dst []byte, values ...float32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// Float32At decodes the little-endian IEEE-754 single stored at byte offset off.
//
// Parameters:
//   - b: the source bytes
//   - off: byte offset of the value, b must hold at least off+4 bytes
//
// Returns:
//   - float32: the decoded value
func Float32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}
