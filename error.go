package pintree

import (
	"errors"

	"pintree/internal/base"
	"pintree/internal/buffer"
)

var (
	ErrClosed      = errors.New("index is closed")
	ErrNameTooLong = errors.New("index name too long")

	// ErrPoolFull is the out-of-memory fault: every buffer pool frame is
	// pinned. The failing operation releases all held latches and pins
	// before returning it; the tree may be left mid-repair.
	ErrPoolFull = buffer.ErrPoolFull

	ErrInvalidMagicNumber = base.ErrInvalidMagicNumber
	ErrInvalidVersion     = base.ErrInvalidVersion
	ErrInvalidPageSize    = base.ErrInvalidPageSize
	ErrInvalidChecksum    = base.ErrInvalidChecksum
)
