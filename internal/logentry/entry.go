package logentry

import (
	"fmt"
	"time"

	"github.com/sajjad-MoBe/txlog/internal/command"
)

// LogEntry is one decoded record of the transaction log. The set of
// implementations is closed: *Start, *Commit, *Command and *CheckPoint.
type LogEntry interface {
	Version() Version
	Type() EntryTypeCode
	// Accept dispatches to the Visitor method for the concrete kind.
	Accept(v Visitor) error
	String() string
	isLogEntry()
}

// Visitor handles every kind of LogEntry.
type Visitor interface {
	VisitStart(e *Start) error
	VisitCommit(e *Commit) error
	VisitCommand(e *Command) error
	VisitCheckPoint(e *CheckPoint) error
}

type base struct {
	version Version
}

func (b base) Version() Version { return b.version }
func (base) isLogEntry()        {}

// Start opens a transaction.
type Start struct {
	base
	MasterID                              int32
	LocalID                               int32
	TimeWritten                           int64
	LastCommittedTxWhenTransactionStarted int64
	AdditionalHeader                      []byte
	// StartPosition is where this entry begins in the log.
	StartPosition LogPosition
}

// NewStart creates a Start entry.
func NewStart(version Version, masterID, localID int32, timeWritten, lastCommittedTx int64,
	additionalHeader []byte, startPosition LogPosition) *Start {
	if additionalHeader == nil {
		additionalHeader = []byte{}
	}
	return &Start{
		base:                                  base{version: version},
		MasterID:                              masterID,
		LocalID:                               localID,
		TimeWritten:                           timeWritten,
		LastCommittedTxWhenTransactionStarted: lastCommittedTx,
		AdditionalHeader:                      additionalHeader,
		StartPosition:                         startPosition,
	}
}

func (e *Start) Type() EntryTypeCode    { return TypeTxStart }
func (e *Start) Accept(v Visitor) error { return v.VisitStart(e) }

func (e *Start) String() string {
	return fmt.Sprintf("Start[master=%d,me=%d,time=%s,lastCommittedTxWhenTransactionStarted=%d,additionalHeaderLength=%d,position=%s]",
		e.MasterID, e.LocalID, formatMillis(e.TimeWritten), e.LastCommittedTxWhenTransactionStarted,
		len(e.AdditionalHeader), e.StartPosition)
}

// Commit closes a transaction.
type Commit struct {
	base
	TxID        int64
	TimeWritten int64
}

// NewCommit creates a Commit entry.
func NewCommit(version Version, txID, timeWritten int64) *Commit {
	return &Commit{base: base{version: version}, TxID: txID, TimeWritten: timeWritten}
}

func (e *Commit) Type() EntryTypeCode    { return TypeTxCommit }
func (e *Commit) Accept(v Visitor) error { return v.VisitCommit(e) }

func (e *Commit) String() string {
	return fmt.Sprintf("Commit[txId=%d, %s]", e.TxID, formatMillis(e.TimeWritten))
}

// Command wraps one storage-engine command.
type Command struct {
	base
	Command command.Command
}

// NewCommand creates a Command entry.
func NewCommand(version Version, cmd command.Command) *Command {
	return &Command{base: base{version: version}, Command: cmd}
}

func (e *Command) Type() EntryTypeCode    { return TypeCommand }
func (e *Command) Accept(v Visitor) error { return v.VisitCommand(e) }

func (e *Command) String() string {
	return fmt.Sprintf("Command[%v]", e.Command)
}

// CheckPoint records the position recovery may resume from.
type CheckPoint struct {
	base
	LogPosition LogPosition
}

// NewCheckPoint creates a CheckPoint entry.
func NewCheckPoint(version Version, pos LogPosition) *CheckPoint {
	return &CheckPoint{base: base{version: version}, LogPosition: pos}
}

func (e *CheckPoint) Type() EntryTypeCode    { return TypeCheckPoint }
func (e *CheckPoint) Accept(v Visitor) error { return v.VisitCheckPoint(e) }

func (e *CheckPoint) String() string {
	return fmt.Sprintf("CheckPoint[position=%s]", e.LogPosition)
}

func formatMillis(ms int64) string {
	return fmt.Sprintf("%d/%s", ms, time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05.000-0700"))
}
