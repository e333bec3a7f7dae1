// Package recovery rebuilds a store from the transaction log.
package recovery

import (
	"fmt"

	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
)

// CommittedTransaction is a Start, its commands and its Commit.
type CommittedTransaction struct {
	Start    *logentry.Start
	Commands []command.Command
	Commit   *logentry.Commit
}

// TxID returns the id assigned at commit.
func (t *CommittedTransaction) TxID() int64 {
	return t.Commit.TxID
}

func (t *CommittedTransaction) String() string {
	return fmt.Sprintf("Transaction[tx=%d, start=%s, commands=%d]", t.TxID(), t.Start.StartPosition, len(t.Commands))
}

// TransactionCursor groups a stream of log entries into committed
// transactions. Transactions never span log files, so an open transaction
// followed by a Start in a later file was torn by a crash and is dropped.
type TransactionCursor struct {
	open       *CommittedTransaction
	torn       int
	completed  *CommittedTransaction
	checkPoint *logentry.CheckPoint
}

// NewTransactionCursor creates an empty cursor.
func NewTransactionCursor() *TransactionCursor {
	return &TransactionCursor{}
}

// Offer feeds the next entry. It returns the transaction the entry completed,
// or the check point it carried; both are nil otherwise.
func (c *TransactionCursor) Offer(e logentry.LogEntry) (*CommittedTransaction, *logentry.CheckPoint, error) {
	c.completed, c.checkPoint = nil, nil
	if err := e.Accept(c); err != nil {
		return nil, nil, err
	}
	return c.completed, c.checkPoint, nil
}

// Pending reports whether a transaction is open, that is whether the entries
// offered so far end in a torn transaction.
func (c *TransactionCursor) Pending() bool {
	return c.open != nil
}

// Torn returns how many open transactions were dropped so far.
func (c *TransactionCursor) Torn() int {
	return c.torn
}

func (c *TransactionCursor) VisitStart(e *logentry.Start) error {
	if c.open != nil {
		if c.open.Start.StartPosition.LogVersion == e.StartPosition.LogVersion {
			return txErr.Newf(txErr.ErrorTypeCorruption,
				"transaction started at %s before the one at %s committed", e.StartPosition, c.open.Start.StartPosition)
		}
		c.torn++
	}
	c.open = &CommittedTransaction{Start: e}
	return nil
}

func (c *TransactionCursor) VisitCommand(e *logentry.Command) error {
	if c.open == nil {
		return txErr.Newf(txErr.ErrorTypeCorruption, "command %v outside of a transaction", e.Command)
	}
	c.open.Commands = append(c.open.Commands, e.Command)
	return nil
}

func (c *TransactionCursor) VisitCommit(e *logentry.Commit) error {
	if c.open == nil {
		return txErr.Newf(txErr.ErrorTypeCorruption, "commit of tx %d without a start entry", e.TxID)
	}
	c.open.Commit = e
	c.completed, c.open = c.open, nil
	return nil
}

func (c *TransactionCursor) VisitCheckPoint(e *logentry.CheckPoint) error {
	c.checkPoint = e
	return nil
}
