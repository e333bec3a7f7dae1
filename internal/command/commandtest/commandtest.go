// Package commandtest provides deterministic commands and command readers for
// exercising the log codec without a storage engine.
package commandtest

import (
	"fmt"
	"sync"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
)

// kindTest marks a TestCommand payload.
const kindTest byte = 1

// TestCommand carries raw bytes. Wire: kind:byte, len:i32, bytes.
type TestCommand struct {
	Bytes []byte
}

// NewTestCommand creates a TestCommand carrying b.
func NewTestCommand(b []byte) *TestCommand {
	return &TestCommand{Bytes: b}
}

func (c *TestCommand) Serialize(ch channel.WritableChannel) error {
	if err := ch.Put(kindTest); err != nil {
		return err
	}
	if err := ch.PutInt(int32(len(c.Bytes))); err != nil {
		return err
	}
	return ch.PutBytes(c.Bytes)
}

func (c *TestCommand) String() string {
	return fmt.Sprintf("TestCommand%v", c.Bytes)
}

// ReadTestCommand decodes a TestCommand, or nil for command.None.
func ReadTestCommand(ch channel.ReadableChannel) (command.Command, error) {
	kind, err := ch.Get()
	if err != nil {
		return nil, err
	}
	if kind == command.None {
		return nil, nil
	}
	if kind != kindTest {
		return nil, fmt.Errorf("unknown test command kind %d", kind)
	}
	length, err := ch.GetInt()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("negative test command length %d", length)
	}
	b, err := ch.GetBytes(int(length))
	if err != nil {
		return nil, err
	}
	return &TestCommand{Bytes: b}, nil
}

// Factory returns ReadTestCommand for every version.
type Factory struct{}

func (Factory) Reader(int8) (command.Reader, error) {
	return command.ReaderFunc(ReadTestCommand), nil
}

// RecordingFactory returns ReadTestCommand and records every version it was
// asked for, in order.
type RecordingFactory struct {
	mu       sync.Mutex
	versions []int8
}

func (f *RecordingFactory) Reader(version int8) (command.Reader, error) {
	f.mu.Lock()
	f.versions = append(f.versions, version)
	f.mu.Unlock()
	return command.ReaderFunc(ReadTestCommand), nil
}

// Versions returns the versions requested so far.
func (f *RecordingFactory) Versions() []int8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int8, len(f.versions))
	copy(out, f.versions)
	return out
}

// FailingFactory returns a reader that always fails with Err.
type FailingFactory struct {
	Err error
}

func (f FailingFactory) Reader(int8) (command.Reader, error) {
	return command.ReaderFunc(func(channel.ReadableChannel) (command.Command, error) {
		return nil, f.Err
	}), nil
}
