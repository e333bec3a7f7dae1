// Package command defines the contract between the transaction log and the
// storage engine whose commands it carries. The log treats command payloads
// as opaque: a storage engine supplies a ReaderFactory that knows how to decode
// its own commands for a given log entry version.
package command

import (
	"github.com/sajjad-MoBe/txlog/internal/channel"
)

// None is the leading byte of a command slot that holds no command.
const None byte = 0

// Command is a storage-engine mutation carried by a COMMAND log entry.
type Command interface {
	// Serialize writes the command, including its leading kind byte.
	Serialize(ch channel.WritableChannel) error
}

// Reader decodes one command from a channel.
//
// A nil Command with a nil error means the slot holds None. A
// channel.ErrReadPastEnd error means the command was truncated. Any other
// error is a decode failure.
type Reader interface {
	Read(ch channel.ReadableChannel) (Command, error)
}

// ReaderFactory resolves the command reader for a log entry version.
type ReaderFactory interface {
	Reader(version int8) (Reader, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ch channel.ReadableChannel) (Command, error)

// Read calls f(ch).
func (f ReaderFunc) Read(ch channel.ReadableChannel) (Command, error) {
	return f(ch)
}
