package common

import (
	"unsafe"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Vec4Bytes copies four packed float32 values into a fresh 16 byte slice.
// Unlike SliceToBytes the result does not alias the input, so callers may reuse the array.
//
// Parameters:
//   - v: the four values to pack
//
// Returns:
//   - []byte: 16 bytes in native (little-endian on every supported GPU host) order
func Vec4Bytes(v [4]float32) []byte {
	out := make([]byte, 16)
	copy(out, SliceToBytes(v[:]))
	return out
}
