package channel

import (
	"encoding/binary"
	"fmt"
)

// InMemoryChannel is a growable byte buffer that can be written to and read
// back. It is used for replication buffers and in tests. A failed read never
// consumes bytes.
type InMemoryChannel struct {
	buf        []byte
	readPos    int
	logVersion int64
}

var (
	_ PositionableChannel = (*InMemoryChannel)(nil)
	_ WritableChannel     = (*InMemoryChannel)(nil)
)

// NewInMemoryChannel creates an empty channel for log version 0.
func NewInMemoryChannel() *InMemoryChannel {
	return &InMemoryChannel{}
}

// NewInMemoryChannelFrom creates a channel whose readable contents are data.
// The slice is copied.
func NewInMemoryChannelFrom(logVersion int64, data []byte) *InMemoryChannel {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &InMemoryChannel{buf: buf, logVersion: logVersion}
}

// Bytes returns everything written so far.
func (c *InMemoryChannel) Bytes() []byte {
	return c.buf
}

// Remaining returns the number of unread bytes.
func (c *InMemoryChannel) Remaining() int {
	return len(c.buf) - c.readPos
}

func (c *InMemoryChannel) Put(b byte) error {
	c.buf = append(c.buf, b)
	return nil
}

func (c *InMemoryChannel) PutShort(v int16) error {
	c.buf = binary.BigEndian.AppendUint16(c.buf, uint16(v))
	return nil
}

func (c *InMemoryChannel) PutInt(v int32) error {
	c.buf = binary.BigEndian.AppendUint32(c.buf, uint32(v))
	return nil
}

func (c *InMemoryChannel) PutLong(v int64) error {
	c.buf = binary.BigEndian.AppendUint64(c.buf, uint64(v))
	return nil
}

func (c *InMemoryChannel) PutBytes(b []byte) error {
	c.buf = append(c.buf, b...)
	return nil
}

func (c *InMemoryChannel) Flush() error { return nil }

func (c *InMemoryChannel) next(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	if c.Remaining() < n {
		return nil, ErrReadPastEnd
	}
	b := c.buf[c.readPos : c.readPos+n]
	c.readPos += n
	return b, nil
}

func (c *InMemoryChannel) Get() (byte, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *InMemoryChannel) GetShort() (int16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (c *InMemoryChannel) GetInt() (int32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (c *InMemoryChannel) GetLong() (int64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (c *InMemoryChannel) GetBytes(n int) ([]byte, error) {
	b, err := c.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (c *InMemoryChannel) Position() (int64, int64) {
	return c.logVersion, int64(c.readPos)
}

// SetPosition moves the read position. Offsets past the written data are rejected.
func (c *InMemoryChannel) SetPosition(offset int64) error {
	if offset < 0 || offset > int64(len(c.buf)) {
		return fmt.Errorf("position %d outside channel of %d bytes", offset, len(c.buf))
	}
	c.readPos = int(offset)
	return nil
}
