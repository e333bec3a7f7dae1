package storage

import (
	"fmt"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
)

// maxFieldSize bounds keys and values so a corrupt length fails fast.
const maxFieldSize = 16 * 1024 * 1024 // 16MB

// ReaderFactory resolves record command readers by log entry version.
// Relationship commands were introduced after V3_0.
type ReaderFactory struct{}

var _ command.ReaderFactory = ReaderFactory{}

// NewReaderFactory creates a ReaderFactory.
func NewReaderFactory() ReaderFactory {
	return ReaderFactory{}
}

func (ReaderFactory) Reader(version int8) (command.Reader, error) {
	v, err := logentry.VersionOf(byte(version))
	if err != nil {
		return nil, err
	}
	return &recordReader{
		version:       v,
		relationships: v != logentry.V2_3 && v != logentry.V3_0,
	}, nil
}

type recordReader struct {
	version       logentry.Version
	relationships bool
}

func (r *recordReader) Read(ch channel.ReadableChannel) (command.Command, error) {
	b, err := ch.Get()
	if err != nil {
		return nil, err
	}
	if b == command.None {
		return nil, nil
	}
	kind := Kind(b)
	if _, ok := kindNames[kind]; !ok {
		return nil, fmt.Errorf("unknown record command kind %d", b)
	}
	if kind.isRelationship() && !r.relationships {
		return nil, fmt.Errorf("%s commands cannot appear in version %s", kind, r.version)
	}

	id, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	key, err := readField(ch, "key")
	if err != nil {
		return nil, err
	}
	value, err := readField(ch, "value")
	if err != nil {
		return nil, err
	}
	return &RecordCommand{Kind: kind, ID: id, Key: string(key), Value: value}, nil
}

func readField(ch channel.ReadableChannel, name string) ([]byte, error) {
	n, err := ch.GetInt()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxFieldSize {
		return nil, fmt.Errorf("invalid %s length %d", name, n)
	}
	return ch.GetBytes(int(n))
}
