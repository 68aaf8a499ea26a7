package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// It is used to drop derived key material and password copies from memory
// once a comparison is done.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
