package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a float64 slice to a little-endian BLOB.
func EncodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeVector deserializes a BLOB written by EncodeVector.
func DecodeVector(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 8", len(b))
	}

	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}

// FromFloat32 widens a float32 vector, as returned by embedding providers.
func FromFloat32(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
