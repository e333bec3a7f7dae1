package logentry

import (
	"sync/atomic"

	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// InvalidEntryHandler decides what happens when an entry cannot be decoded.
type InvalidEntryHandler interface {
	// HandleInvalidEntry returns true to skip one byte past start and retry.
	HandleInvalidEntry(err error, start LogPosition) bool
	// BytesSkipped is called once an entry is read after skipping.
	BytesSkipped(n int64)
}

// StrictHandler never skips. It is the default.
type StrictHandler struct{}

func (StrictHandler) HandleInvalidEntry(error, LogPosition) bool { return false }
func (StrictHandler) BytesSkipped(int64)                         {}

// SkipHandler skips over undecodable bytes one at a time until an entry can
// be read. It is meant for salvaging data from a damaged log, never for
// regular recovery.
type SkipHandler struct {
	invalid atomic.Int64
	skipped atomic.Int64
}

func (h *SkipHandler) HandleInvalidEntry(error, LogPosition) bool {
	h.invalid.Add(1)
	return true
}

func (h *SkipHandler) BytesSkipped(n int64) {
	h.skipped.Add(n)
}

// InvalidEntries returns how many decode failures were skipped over.
func (h *SkipHandler) InvalidEntries() int64 { return h.invalid.Load() }

// Skipped returns the total number of bytes skipped.
func (h *SkipHandler) Skipped() int64 { return h.skipped.Load() }

// skippable reports whether err describes bytes that are not a known entry.
// IO failures and corruption inside a recognized entry are never skipped.
func skippable(err error) bool {
	switch txErr.TypeOf(err) {
	case txErr.ErrorTypeUnsupportedVersion, txErr.ErrorTypeUnknownEntryType,
		txErr.ErrorTypeCommandDecode:
		return true
	}
	return false
}
