package logfile

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/tracing"
)

// ErrStopScan may be returned by a scan callback to end the scan early
// without an error.
var ErrStopScan = errors.New("stop scan")

// Scanner reads the log files of a directory without modifying them.
type Scanner struct {
	files  LogFiles
	reader *logentry.Reader
}

// NewScanner creates a Scanner decoding commands with factory.
func NewScanner(dir string, factory command.ReaderFactory, opts ...logentry.ReaderOption) *Scanner {
	return &Scanner{
		files:  LogFiles{Dir: dir},
		reader: logentry.NewReader(factory, opts...),
	}
}

// LogFiles returns the files the scanner reads.
func (s *Scanner) LogFiles() LogFiles {
	return s.files
}

// Scan visits every readable entry of every log file in version order. A
// file ends at its first Absent read and the scan moves on to the next one.
// Files shorter than a header hold no entries and are passed over.
func (s *Scanner) Scan(ctx context.Context, fn func(logentry.LogEntry) error) error {
	return tracing.Trace(ctx, "logfile.Scan", func(ctx context.Context) error {
		versions, err := s.files.Versions()
		if err != nil {
			return txErr.New(txErr.ErrorTypeIOFailure, "failed to list log files", err)
		}
		tracing.AddEvent(ctx, "files", attribute.Int("count", len(versions)))

		for _, v := range versions {
			_, err := s.scanFile(ctx, v, fn)
			switch {
			case errors.Is(err, ErrStopScan):
				return nil
			case errors.Is(err, ErrIncompleteHeader):
				tracing.AddEvent(ctx, "incomplete header", attribute.Int64("version", v))
			case err != nil:
				return err
			}
		}
		return nil
	})
}

// ScanVersion visits the entries of log version v and returns its header.
func (s *Scanner) ScanVersion(ctx context.Context, v int64, fn func(logentry.LogEntry) error) (Header, error) {
	header, err := s.scanFile(ctx, v, fn)
	if errors.Is(err, ErrStopScan) {
		return header, nil
	}
	return header, err
}

func (s *Scanner) scanFile(ctx context.Context, v int64, fn func(logentry.LogEntry) error) (Header, error) {
	file, err := os.Open(s.files.Path(v))
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, txErr.Newf(txErr.ErrorTypeNotFound, "log version %d not found", v)
		}
		return Header{}, txErr.New(txErr.ErrorTypeIOFailure, "failed to open log file", err)
	}
	defer file.Close()

	ch := channel.NewSeekableReadAheadChannel(file, v, 0)
	header, err := ReadHeader(ch)
	if err != nil {
		return Header{}, fmt.Errorf("log version %d: %w", v, err)
	}
	if header.FormatVersion != CurrentFormatVersion {
		return header, txErr.Newf(txErr.ErrorTypeUnsupportedVersion,
			"log file %s has format version %d, this build reads %d", FileName(v), header.FormatVersion, CurrentFormatVersion)
	}
	if header.LogVersion != v {
		return header, txErr.Newf(txErr.ErrorTypeCorruption,
			"log file %s carries log version %d", FileName(v), header.LogVersion)
	}

	for {
		if err := ctx.Err(); err != nil {
			return header, err
		}
		entry, err := s.reader.ReadLogEntry(ch)
		if err != nil {
			return header, err
		}
		if entry == nil {
			return header, nil
		}
		if err := fn(entry); err != nil {
			return header, err
		}
	}
}
