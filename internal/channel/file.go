package channel

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const defaultBufSize = 64 * 1024 // 64KB buffer

// ReadAheadChannel reads a log file through a read-ahead buffer and tracks the
// byte offset of the next read. Reaching EOF mid-value yields ErrReadPastEnd;
// the bytes already consumed stay consumed.
type ReadAheadChannel struct {
	r          *bufio.Reader
	logVersion int64
	offset     int64
	scratch    [8]byte
}

var _ ReadableChannel = (*ReadAheadChannel)(nil)

// NewReadAheadChannel reads from r, which is positioned at startOffset of log
// file logVersion.
func NewReadAheadChannel(r io.Reader, logVersion, startOffset int64) *ReadAheadChannel {
	return &ReadAheadChannel{
		r:          bufio.NewReaderSize(r, defaultBufSize),
		logVersion: logVersion,
		offset:     startOffset,
	}
}

func (c *ReadAheadChannel) fill(n int) ([]byte, error) {
	read, err := io.ReadFull(c.r, c.scratch[:n])
	c.offset += int64(read)
	if err != nil {
		return nil, translate(err)
	}
	return c.scratch[:n], nil
}

func translate(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrReadPastEnd
	}
	return err
}

func (c *ReadAheadChannel) Get() (byte, error) {
	b, err := c.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *ReadAheadChannel) GetShort() (int16, error) {
	b, err := c.fill(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (c *ReadAheadChannel) GetInt() (int32, error) {
	b, err := c.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (c *ReadAheadChannel) GetLong() (int64, error) {
	b, err := c.fill(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// GetBytes copies in chunks so a corrupt length cannot force one huge allocation.
func (c *ReadAheadChannel) GetBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, c.r, int64(n))
	c.offset += copied
	if err != nil {
		return nil, translate(err)
	}
	return buf.Bytes(), nil
}

func (c *ReadAheadChannel) Position() (int64, int64) {
	return c.logVersion, c.offset
}

// SeekableReadAheadChannel is a ReadAheadChannel over a seekable file. It can
// be repositioned, which lets a lenient reader skip over invalid bytes.
type SeekableReadAheadChannel struct {
	*ReadAheadChannel
	src io.ReadSeeker
}

var _ PositionableChannel = (*SeekableReadAheadChannel)(nil)

// NewSeekableReadAheadChannel reads from rs, which is positioned at
// startOffset of log file logVersion.
func NewSeekableReadAheadChannel(rs io.ReadSeeker, logVersion, startOffset int64) *SeekableReadAheadChannel {
	return &SeekableReadAheadChannel{
		ReadAheadChannel: NewReadAheadChannel(rs, logVersion, startOffset),
		src:              rs,
	}
}

// SetPosition moves the read position to offset within the file.
func (c *SeekableReadAheadChannel) SetPosition(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("negative position %d", offset)
	}
	if _, err := c.src.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	c.r.Reset(c.src)
	c.offset = offset
	return nil
}

// FileChannel appends primitives to a log file through a write buffer.
type FileChannel struct {
	file       *os.File
	buf        *bufio.Writer
	logVersion int64
	offset     int64
	scratch    [8]byte
}

var _ WritableChannel = (*FileChannel)(nil)

// NewFileChannel writes to file, whose current size is offset.
func NewFileChannel(file *os.File, logVersion, offset int64) *FileChannel {
	return &FileChannel{
		file:       file,
		buf:        bufio.NewWriterSize(file, defaultBufSize),
		logVersion: logVersion,
		offset:     offset,
	}
}

func (c *FileChannel) write(b []byte) error {
	n, err := c.buf.Write(b)
	c.offset += int64(n)
	return err
}

func (c *FileChannel) Put(b byte) error {
	c.scratch[0] = b
	return c.write(c.scratch[:1])
}

func (c *FileChannel) PutShort(v int16) error {
	binary.BigEndian.PutUint16(c.scratch[:2], uint16(v))
	return c.write(c.scratch[:2])
}

func (c *FileChannel) PutInt(v int32) error {
	binary.BigEndian.PutUint32(c.scratch[:4], uint32(v))
	return c.write(c.scratch[:4])
}

func (c *FileChannel) PutLong(v int64) error {
	binary.BigEndian.PutUint64(c.scratch[:8], uint64(v))
	return c.write(c.scratch[:8])
}

func (c *FileChannel) PutBytes(b []byte) error {
	return c.write(b)
}

// Flush writes buffered bytes to the file without forcing them to disk.
func (c *FileChannel) Flush() error {
	return c.buf.Flush()
}

// Sync flushes and fsyncs the file.
func (c *FileChannel) Sync() error {
	if err := c.buf.Flush(); err != nil {
		return err
	}
	return c.file.Sync()
}

// Position returns the log version and the offset the next byte will be written at.
func (c *FileChannel) Position() (int64, int64) {
	return c.logVersion, c.offset
}

// Close flushes, syncs and closes the file.
func (c *FileChannel) Close() error {
	if err := c.Sync(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
