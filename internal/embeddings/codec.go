package embeddings

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes an embedding vector for storage in a blob column
// Format: LittleEndian float64 array
func Encode(vec []float64) ([]byte, error) {
	if err := Validate(vec); err != nil {
		return nil, err
	}

	buf := make([]byte, len(vec)*8)
	for i, val := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(val))
	}
	return buf, nil
}

// Decode reverses Encode. An empty blob decodes to a nil vector.
func Decode(blob []byte) ([]float64, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("invalid embedding size: %d (not a multiple of 8)", len(blob))
	}

	vec := make([]float64, len(blob)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec, nil
}

// Validate checks if an embedding vector is valid
func Validate(vec []float64) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}

	for i, val := range vec {
		if math.IsNaN(val) {
			return fmt.Errorf("embedding contains NaN at index %d", i)
		}
		if math.IsInf(val, 0) {
			return fmt.Errorf("embedding contains invalid value at index %d: %v", i, val)
		}
	}

	return nil
}
