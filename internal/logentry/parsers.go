package logentry

import (
	"errors"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// entryParser decodes the payload of one entry whose version and type bytes
// have already been read. A nil entry with a nil error means the slot holds
// nothing. channel.ErrReadPastEnd is returned unwrapped.
type entryParser func(version Version, ch channel.ReadableChannel, start LogPosition,
	factory command.ReaderFactory) (LogEntry, error)

var parsersV2_3 = map[EntryTypeCode]entryParser{
	TypeTxStart:    parseStart,
	TypeCommand:    parseCommand,
	TypeTxCommit:   parseCommit,
	TypeCheckPoint: parseCheckPoint,
}

func parseStart(version Version, ch channel.ReadableChannel, start LogPosition, _ command.ReaderFactory) (LogEntry, error) {
	masterID, err := ch.GetInt()
	if err != nil {
		return nil, err
	}
	localID, err := ch.GetInt()
	if err != nil {
		return nil, err
	}
	timeWritten, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	lastCommittedTx, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	headerLen, err := ch.GetInt()
	if err != nil {
		return nil, err
	}
	if headerLen < 0 {
		return nil, txErr.Newf(txErr.ErrorTypeCorruption, "negative additional header length %d", headerLen)
	}
	header, err := ch.GetBytes(int(headerLen))
	if err != nil {
		return nil, err
	}
	return NewStart(version, masterID, localID, timeWritten, lastCommittedTx, header, start), nil
}

func parseCommit(version Version, ch channel.ReadableChannel, _ LogPosition, _ command.ReaderFactory) (LogEntry, error) {
	txID, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	timeWritten, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	return NewCommit(version, txID, timeWritten), nil
}

func parseCommand(version Version, ch channel.ReadableChannel, _ LogPosition, factory command.ReaderFactory) (LogEntry, error) {
	// Resolved per entry: one log may mix versions across an upgrade.
	reader, err := factory.Reader(int8(version))
	if err != nil {
		return nil, txErr.New(txErr.ErrorTypeCommandDecode, "no command reader for version "+version.String(), err)
	}
	cmd, err := reader.Read(ch)
	if err != nil {
		if errors.Is(err, channel.ErrReadPastEnd) {
			return nil, channel.ErrReadPastEnd
		}
		return nil, txErr.New(txErr.ErrorTypeCommandDecode, "failed to read command", err)
	}
	if cmd == nil {
		return nil, nil
	}
	return NewCommand(version, cmd), nil
}

func parseCheckPoint(version Version, ch channel.ReadableChannel, _ LogPosition, _ command.ReaderFactory) (LogEntry, error) {
	logVersion, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	byteOffset, err := ch.GetLong()
	if err != nil {
		return nil, err
	}
	return NewCheckPoint(version, NewLogPosition(logVersion, byteOffset)), nil
}
