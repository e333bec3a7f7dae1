package logentry

import (
	"fmt"

	"github.com/sajjad-MoBe/txlog/internal/channel"
)

// LogPosition is a byte-exact coordinate in the logical, multi-file log:
// the log file version and the offset within that file.
type LogPosition struct {
	LogVersion int64
	ByteOffset int64
}

// UnspecifiedPosition marks a position that is not known.
var UnspecifiedPosition = LogPosition{LogVersion: -1, ByteOffset: -1}

// NewLogPosition creates a LogPosition.
func NewLogPosition(logVersion, byteOffset int64) LogPosition {
	return LogPosition{LogVersion: logVersion, ByteOffset: byteOffset}
}

// PositionOf returns the position of the next read from, or write to, ch.
func PositionOf(ch channel.Positioned) LogPosition {
	version, offset := ch.Position()
	return LogPosition{LogVersion: version, ByteOffset: offset}
}

// Compare orders positions by log version, then byte offset.
func (p LogPosition) Compare(other LogPosition) int {
	switch {
	case p.LogVersion < other.LogVersion:
		return -1
	case p.LogVersion > other.LogVersion:
		return 1
	case p.ByteOffset < other.ByteOffset:
		return -1
	case p.ByteOffset > other.ByteOffset:
		return 1
	}
	return 0
}

func (p LogPosition) String() string {
	return fmt.Sprintf("LogPosition{logVersion=%d, byteOffset=%d}", p.LogVersion, p.ByteOffset)
}
