package logentry

import (
	"fmt"

	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// EntryTypeCode is the one-byte kind of a log entry. Codes are shared by all
// versions and never change meaning once assigned.
type EntryTypeCode byte

const (
	TypeTxStart    EntryTypeCode = 1
	TypeCommand    EntryTypeCode = 3
	TypeTxCommit   EntryTypeCode = 5
	TypeCheckPoint EntryTypeCode = 7
)

var typeNames = map[EntryTypeCode]string{
	TypeTxStart:    "TX_START",
	TypeCommand:    "COMMAND",
	TypeTxCommit:   "TX_COMMIT",
	TypeCheckPoint: "CHECK_POINT",
}

// TypeOf resolves a type byte.
func TypeOf(b byte) (EntryTypeCode, error) {
	code := EntryTypeCode(b)
	if _, ok := typeNames[code]; !ok {
		return 0, txErr.Newf(txErr.ErrorTypeUnknownEntryType, "unknown log entry type %d", int8(b))
	}
	return code, nil
}

func (c EntryTypeCode) String() string {
	if name, ok := typeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("EntryTypeCode(%d)", byte(c))
}
