package logentry

import (
	"math"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// Writer encodes log entries onto a channel. Entries are written with the
// Writer's version unless WriteEntry is given an entry of another version.
type Writer struct {
	ch      channel.WritableChannel
	version Version
}

// NewWriter writes entries in LatestVersion.
func NewWriter(ch channel.WritableChannel) *Writer {
	return &Writer{ch: ch, version: LatestVersion}
}

// NewWriterWithVersion writes entries in version, which must be supported.
func NewWriterWithVersion(ch channel.WritableChannel, version Version) (*Writer, error) {
	if _, err := VersionOf(version.Code()); err != nil {
		return nil, err
	}
	return &Writer{ch: ch, version: version}, nil
}

func (w *Writer) writeHeader(version Version, code EntryTypeCode) error {
	if err := w.ch.Put(version.Code()); err != nil {
		return err
	}
	return w.ch.Put(byte(code))
}

// WriteStartEntry writes a TX_START entry.
func (w *Writer) WriteStartEntry(masterID, localID int32, timeWritten, lastCommittedTx int64, additionalHeader []byte) error {
	return w.writeStart(w.version, masterID, localID, timeWritten, lastCommittedTx, additionalHeader)
}

func (w *Writer) writeStart(version Version, masterID, localID int32, timeWritten, lastCommittedTx int64, additionalHeader []byte) error {
	if len(additionalHeader) > math.MaxInt32 {
		return txErr.Newf(txErr.ErrorTypeInvalidInput, "additional header of %d bytes is too large", len(additionalHeader))
	}
	if err := w.writeHeader(version, TypeTxStart); err != nil {
		return err
	}
	if err := w.ch.PutInt(masterID); err != nil {
		return err
	}
	if err := w.ch.PutInt(localID); err != nil {
		return err
	}
	if err := w.ch.PutLong(timeWritten); err != nil {
		return err
	}
	if err := w.ch.PutLong(lastCommittedTx); err != nil {
		return err
	}
	if err := w.ch.PutInt(int32(len(additionalHeader))); err != nil {
		return err
	}
	return w.ch.PutBytes(additionalHeader)
}

// WriteCommitEntry writes a TX_COMMIT entry. txID must not be negative.
func (w *Writer) WriteCommitEntry(txID, timeWritten int64) error {
	return w.writeCommit(w.version, txID, timeWritten)
}

func (w *Writer) writeCommit(version Version, txID, timeWritten int64) error {
	if txID < 0 {
		return txErr.Newf(txErr.ErrorTypeInvalidInput, "transaction id %d is negative", txID)
	}
	if err := w.writeHeader(version, TypeTxCommit); err != nil {
		return err
	}
	if err := w.ch.PutLong(txID); err != nil {
		return err
	}
	return w.ch.PutLong(timeWritten)
}

// WriteCommandEntry writes one COMMAND entry.
func (w *Writer) WriteCommandEntry(cmd command.Command) error {
	return w.writeCommand(w.version, cmd)
}

// WriteCommandEntries writes one COMMAND entry per command.
func (w *Writer) WriteCommandEntries(cmds []command.Command) error {
	for _, cmd := range cmds {
		if err := w.writeCommand(w.version, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeCommand(version Version, cmd command.Command) error {
	if cmd == nil {
		return txErr.Newf(txErr.ErrorTypeInvalidInput, "cannot write a nil command")
	}
	if err := w.writeHeader(version, TypeCommand); err != nil {
		return err
	}
	return cmd.Serialize(w.ch)
}

// WriteCheckPointEntry writes a CHECK_POINT entry.
func (w *Writer) WriteCheckPointEntry(pos LogPosition) error {
	return w.writeCheckPoint(w.version, pos)
}

func (w *Writer) writeCheckPoint(version Version, pos LogPosition) error {
	if err := w.writeHeader(version, TypeCheckPoint); err != nil {
		return err
	}
	if err := w.ch.PutLong(pos.LogVersion); err != nil {
		return err
	}
	return w.ch.PutLong(pos.ByteOffset)
}

// WriteEntry writes e in its own version. A Start's StartPosition is not
// written; it is recomputed when the entry is read.
func (w *Writer) WriteEntry(e LogEntry) error {
	return e.Accept(entryWriter{w})
}

type entryWriter struct{ w *Writer }

func (v entryWriter) VisitStart(e *Start) error {
	return v.w.writeStart(e.Version(), e.MasterID, e.LocalID, e.TimeWritten,
		e.LastCommittedTxWhenTransactionStarted, e.AdditionalHeader)
}

func (v entryWriter) VisitCommit(e *Commit) error {
	return v.w.writeCommit(e.Version(), e.TxID, e.TimeWritten)
}

func (v entryWriter) VisitCommand(e *Command) error {
	return v.w.writeCommand(e.Version(), e.Command)
}

func (v entryWriter) VisitCheckPoint(e *CheckPoint) error {
	return v.w.writeCheckPoint(e.Version(), e.LogPosition)
}

// Flush flushes the underlying channel.
func (w *Writer) Flush() error {
	return w.ch.Flush()
}
