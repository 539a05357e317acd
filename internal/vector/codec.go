package vector

import (
	"encoding/binary"
	"math"
)

// ToBytes encodes a vector as little-endian float32s for BLOB storage.
func ToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// FromBytes decodes a little-endian float32 BLOB back into a vector.
func FromBytes(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
