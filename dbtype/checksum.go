package dbtype

import "github.com/OneOfOne/xxhash"

// Checksum hashes a byte slice with xxhash64. Used for the page
// package's optional corruption-detecting trailer.
func Checksum(b []byte) uint64 {
	h := xxhash.New64()
	h.Write(b)
	return h.Sum64()
}
