package logfile

import (
	"errors"
	"fmt"

	"github.com/sajjad-MoBe/txlog/internal/channel"
)

const (
	// HeaderSize is the size in bytes of a log file header
	HeaderSize = 16
	// CurrentFormatVersion is the file format written by this build
	CurrentFormatVersion byte = 6

	logVersionBits = 56
	logVersionMask = int64(1)<<logVersionBits - 1
)

// ErrIncompleteHeader is returned when a file is shorter than its header.
var ErrIncompleteHeader = errors.New("incomplete log file header")

// Header starts every log file. The format and log versions share the first
// long; the second holds the last tx id committed before the file was created.
type Header struct {
	FormatVersion     byte  `json:"format_version"`
	LogVersion        int64 `json:"log_version"`
	LastCommittedTxID int64 `json:"last_committed_tx_id"`
}

// NewHeader returns a header in CurrentFormatVersion.
func NewHeader(logVersion, lastCommittedTxID int64) Header {
	return Header{
		FormatVersion:     CurrentFormatVersion,
		LogVersion:        logVersion,
		LastCommittedTxID: lastCommittedTxID,
	}
}

// WriteHeader encodes h onto ch.
func WriteHeader(ch channel.WritableChannel, h Header) error {
	if h.LogVersion < 0 || h.LogVersion > logVersionMask {
		return fmt.Errorf("log version %d does not fit in %d bits", h.LogVersion, logVersionBits)
	}
	if err := ch.PutLong(int64(h.FormatVersion)<<logVersionBits | h.LogVersion); err != nil {
		return err
	}
	return ch.PutLong(h.LastCommittedTxID)
}

// ReadHeader decodes a header from ch.
func ReadHeader(ch channel.ReadableChannel) (Header, error) {
	encoded, err := ch.GetLong()
	if err != nil {
		return Header{}, headerErr(err)
	}
	lastTx, err := ch.GetLong()
	if err != nil {
		return Header{}, headerErr(err)
	}
	return Header{
		FormatVersion:     byte(uint64(encoded) >> logVersionBits),
		LogVersion:        encoded & logVersionMask,
		LastCommittedTxID: lastTx,
	}, nil
}

func headerErr(err error) error {
	if errors.Is(err, channel.ErrReadPastEnd) {
		return ErrIncompleteHeader
	}
	return err
}

func (h Header) String() string {
	return fmt.Sprintf("Header{format=%d, logVersion=%d, lastCommittedTx=%d}",
		h.FormatVersion, h.LogVersion, h.LastCommittedTxID)
}
