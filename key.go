package pintree

import "pintree/internal/base"

// Key is the fixed-width index key. See the integer helpers below for
// order-preserving encodings under the default comparator.
type Key = base.Key

// RID is the fixed-size record identifier stored under each key.
type RID = base.RID

// Compare reports the order of a and b: negative, zero, or positive.
type Compare = base.Compare

// PageID identifies a page in the backing file.
type PageID = base.PageID

// InvalidPageID marks "no such page"; an empty tree's root id.
const InvalidPageID = base.InvalidPageID

// BytesCompare orders keys lexicographically. It is the default
// comparator.
func BytesCompare(a, b Key) int { return base.BytesCompare(a, b) }

// Int64Key encodes v so that BytesCompare orders keys numerically.
func Int64Key(v int64) Key { return base.Int64Key(v) }

// KeyInt64 reverses Int64Key.
func KeyInt64(k Key) int64 { return base.KeyInt64(k) }

// Uint64Key encodes v so that BytesCompare orders keys numerically.
func Uint64Key(v uint64) Key { return base.Uint64Key(v) }

// KeyUint64 reverses Uint64Key.
func KeyUint64(k Key) uint64 { return base.KeyUint64(k) }
