package base

import (
	"bytes"
	"encoding/binary"
)

// KeySize is the fixed width of every key.
const KeySize = 8

// Key is an opaque fixed-width key. Ordering is defined entirely by the
// Compare function the tree was opened with.
type Key [KeySize]byte

// Compare reports the order of a and b: negative, zero, or positive.
type Compare func(a, b Key) int

// BytesCompare orders keys lexicographically. It is the default
// comparator; the integer encoders below produce keys that sort
// numerically under it.
func BytesCompare(a, b Key) int {
	return bytes.Compare(a[:], b[:])
}

// Int64Key encodes v so that BytesCompare orders keys numerically.
// The sign bit is flipped before big-endian encoding.
func Int64Key(v int64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[:], uint64(v)^(1<<63))
	return k
}

// KeyInt64 reverses Int64Key.
func KeyInt64(k Key) int64 {
	return int64(binary.BigEndian.Uint64(k[:]) ^ (1 << 63))
}

// Uint64Key encodes v big-endian; BytesCompare orders the result numerically.
func Uint64Key(v uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[:], v)
	return k
}

// KeyUint64 reverses Uint64Key.
func KeyUint64(k Key) uint64 {
	return binary.BigEndian.Uint64(k[:])
}
