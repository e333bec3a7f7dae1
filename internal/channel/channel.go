// Package channel provides the byte channels the transaction log is read from
// and written to.
//
// Readers signal "not enough bytes yet" with ErrReadPastEnd. That is not an IO
// failure: a log tail may hold a torn, partially flushed entry, and callers
// treat ErrReadPastEnd as the clean end of what is currently readable. Any
// other error returned by a channel is a genuine transport or storage failure.
//
// Multi-byte values are big-endian on every channel.
package channel

import (
	"errors"
)

// ErrReadPastEnd is returned when a channel cannot supply the requested bytes.
var ErrReadPastEnd = errors.New("read past end of channel")

// Positioned reports where in the multi-file log a channel is.
type Positioned interface {
	// Position returns the log version and the byte offset of the next read or write.
	Position() (logVersion int64, offset int64)
}

// ReadableChannel reads fixed-width primitives from a log stream.
type ReadableChannel interface {
	Positioned
	Get() (byte, error)
	GetShort() (int16, error)
	GetInt() (int32, error)
	GetLong() (int64, error)
	// GetBytes reads exactly n bytes.
	GetBytes(n int) ([]byte, error)
}

// PositionableChannel is a ReadableChannel that can be repositioned within
// the current log version.
type PositionableChannel interface {
	ReadableChannel
	SetPosition(offset int64) error
}

// WritableChannel writes fixed-width primitives to a log stream.
type WritableChannel interface {
	Put(b byte) error
	PutShort(v int16) error
	PutInt(v int32) error
	PutLong(v int64) error
	PutBytes(b []byte) error
	Flush() error
}
