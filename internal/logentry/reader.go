package logentry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// Observer receives decode outcomes, typically to feed metrics.
type Observer interface {
	EntryRead(code EntryTypeCode)
	Absent()
	DecodeFailed(errType txErr.ErrorType)
	BytesSkipped(n int64)
}

type nopObserver struct{}

func (nopObserver) EntryRead(EntryTypeCode)      {}
func (nopObserver) Absent()                      {}
func (nopObserver) DecodeFailed(txErr.ErrorType) {}
func (nopObserver) BytesSkipped(int64)           {}

// Reader decodes log entries of every supported version.
//
// A Reader holds no per-stream state and is safe for concurrent use, as
// long as each goroutine reads its own channel.
type Reader struct {
	factory  command.ReaderFactory
	invalid  InvalidEntryHandler
	observer Observer
	log      zerolog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithInvalidEntryHandler replaces the default StrictHandler.
func WithInvalidEntryHandler(h InvalidEntryHandler) ReaderOption {
	return func(r *Reader) { r.invalid = h }
}

// WithObserver reports decode outcomes to o.
func WithObserver(o Observer) ReaderOption {
	return func(r *Reader) { r.observer = o }
}

// WithLogger sets the logger used for skip warnings.
func WithLogger(l zerolog.Logger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

// NewReader creates a Reader that decodes command payloads with factory.
func NewReader(factory command.ReaderFactory, opts ...ReaderOption) *Reader {
	r := &Reader{
		factory:  factory,
		invalid:  StrictHandler{},
		observer: nopObserver{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadLogEntry reads the next entry from ch.
//
// It returns (nil, nil) when no complete entry is available: at the end of
// the written log, at a torn tail, or for a COMMAND slot holding
// command.None. Unknown versions and types, undecodable commands and channel
// failures are returned as errors.
func (r *Reader) ReadLogEntry(ch channel.ReadableChannel) (LogEntry, error) {
	var skipped int64
	for {
		start := PositionOf(ch)
		entry, version, err := r.readEntry(ch, start)
		if err == nil {
			if skipped > 0 {
				r.invalid.BytesSkipped(skipped)
				r.observer.BytesSkipped(skipped)
				r.log.Warn().
					Int64("bytes", skipped).
					Stringer("resumed_at", start).
					Msg("skipped undecodable bytes in transaction log")
			}
			if entry == nil {
				r.observer.Absent()
			} else {
				r.observer.EntryRead(entry.Type())
			}
			return entry, nil
		}

		if version != nil {
			err = txErr.WithMessage(err, fmt.Sprintf(". At position %s and entry version %s", start, *version))
		}
		r.observer.DecodeFailed(txErr.TypeOf(err))

		if positionable, ok := ch.(channel.PositionableChannel); ok && skippable(err) &&
			r.invalid.HandleInvalidEntry(err, start) {
			if seekErr := positionable.SetPosition(start.ByteOffset + 1); seekErr != nil {
				return nil, txErr.New(txErr.ErrorTypeIOFailure, "failed to skip invalid entry", seekErr)
			}
			skipped++
			continue
		}
		return nil, err
	}
}

// readEntry runs one decode attempt. The returned version is non-nil once the
// version byte has been resolved.
func (r *Reader) readEntry(ch channel.ReadableChannel, start LogPosition) (LogEntry, *Version, error) {
	versionByte, err := ch.Get()
	if err != nil {
		return nil, nil, absentOr(err)
	}
	version, err := VersionOf(versionByte)
	if err != nil {
		return nil, nil, err
	}

	typeByte, err := ch.Get()
	if err != nil {
		return nil, &version, absentOr(err)
	}
	code, err := TypeOf(typeByte)
	if err != nil {
		return nil, &version, err
	}
	parse, err := version.parser(code)
	if err != nil {
		return nil, &version, err
	}

	entry, err := parse(version, ch, start, r.factory)
	if err != nil {
		return nil, &version, absentOr(err)
	}
	return entry, &version, nil
}

// absentOr maps running out of bytes to a nil error. Typed log errors pass
// through and anything else is a channel failure.
func absentOr(err error) error {
	if errors.Is(err, channel.ErrReadPastEnd) {
		return nil
	}
	if txErr.TypeOf(err) != "" {
		return err
	}
	return txErr.New(txErr.ErrorTypeIOFailure, "failed to read from log channel", err)
}
