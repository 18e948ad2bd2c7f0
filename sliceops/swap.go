// Package sliceops has byte slice helpers for switching between the
// little endian order used on the wire and the big endian order used by
// the crypto primitives.
package sliceops

// SwapBuf returns a reversed copy of in.
func SwapBuf(in []byte) []byte {
	a := make([]byte, len(in))
	copy(a, in)
	Reverse(a)
	return a
}

// Reverse reverses b in place.
func Reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
