package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Marshal encodes a vector as little-endian float32 bits, 4 bytes per
// component. The encoding is stable across processes, which keeps stored
// fingerprints byte-comparable.
func Marshal(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// Unmarshal decodes a vector produced by Marshal.
func Unmarshal(raw []byte) ([]float32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("malformed vector payload: %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
