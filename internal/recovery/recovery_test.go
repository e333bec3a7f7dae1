package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

const v = logentry.LatestVersion

func start(logVersion, offset int64) *logentry.Start {
	return logentry.NewStart(v, 1, 1, 0, 0, nil, logentry.NewLogPosition(logVersion, offset))
}

func cmd(id int64) *logentry.Command {
	return logentry.NewCommand(v, storage.NodeCreate(id))
}

func commit(txID int64) *logentry.Commit {
	return logentry.NewCommit(v, txID, 0)
}

func checkPoint(logVersion, offset int64) *logentry.CheckPoint {
	return logentry.NewCheckPoint(v, logentry.NewLogPosition(logVersion, offset))
}

// sliceSource scans a fixed list of entries.
type sliceSource []logentry.LogEntry

func (s sliceSource) Scan(ctx context.Context, fn func(logentry.LogEntry) error) error {
	for _, e := range s {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) Apply(txID int64, cmds []command.Command) error {
	args := m.Called(txID, cmds)
	return args.Error(0)
}

type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) RecoveryFinished(d time.Duration, transactions int) {
	m.Called(d, transactions)
}

func TestCursorGroupsTransactions(t *testing.T) {
	c := NewTransactionCursor()

	for _, e := range []logentry.LogEntry{start(0, 16), cmd(1), cmd(2)} {
		tx, cp, err := c.Offer(e)
		require.NoError(t, err)
		assert.Nil(t, tx)
		assert.Nil(t, cp)
	}
	assert.True(t, c.Pending())

	tx, _, err := c.Offer(commit(7))
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(7), tx.TxID())
	assert.Len(t, tx.Commands, 2)
	assert.Equal(t, logentry.NewLogPosition(0, 16), tx.Start.StartPosition)
	assert.False(t, c.Pending())

	_, cp, err := c.Offer(checkPoint(0, 100))
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, logentry.NewLogPosition(0, 100), cp.LogPosition)
}

func TestCursorRejectsMisplacedEntries(t *testing.T) {
	_, _, err := NewTransactionCursor().Offer(commit(1))
	assert.True(t, txErr.IsCorruption(err))

	_, _, err = NewTransactionCursor().Offer(cmd(1))
	assert.True(t, txErr.IsCorruption(err))

	c := NewTransactionCursor()
	_, _, err = c.Offer(start(0, 16))
	require.NoError(t, err)
	_, _, err = c.Offer(start(0, 60))
	assert.True(t, txErr.IsCorruption(err))
}

func TestCursorDropsTransactionTornAtFileEnd(t *testing.T) {
	c := NewTransactionCursor()
	for _, e := range []logentry.LogEntry{start(0, 16), cmd(1), start(1, 16), cmd(2)} {
		_, _, err := c.Offer(e)
		require.NoError(t, err)
	}
	tx, _, err := c.Offer(commit(2))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Torn())
	require.Len(t, tx.Commands, 1)
	assert.Equal(t, storage.NodeCreate(2), tx.Commands[0])
}

func TestRecoverAppliesAfterLastCheckPoint(t *testing.T) {
	src := sliceSource{
		start(0, 16), cmd(1), commit(1),
		checkPoint(0, 100),
		start(0, 100), cmd(2), commit(2),
		start(0, 150), cmd(3), commit(3),
		start(0, 200), cmd(4),
	}

	applier := &MockApplier{}
	applier.On("Apply", int64(2), []command.Command{storage.NodeCreate(2)}).Return(nil).Once()
	applier.On("Apply", int64(3), []command.Command{storage.NodeCreate(3)}).Return(nil).Once()
	observer := &MockObserver{}
	observer.On("RecoveryFinished", mock.AnythingOfType("time.Duration"), 2).Once()

	result, err := Recover(context.Background(), src, applier, WithObserver(observer))
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.LastCommittedTxID)
	assert.Equal(t, logentry.NewLogPosition(0, 100), result.CheckPoint)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Torn)
	assert.True(t, result.TornTail)

	applier.AssertExpectations(t)
	observer.AssertExpectations(t)
}

func TestRecoverFromBeginningIgnoresCheckPoints(t *testing.T) {
	src := sliceSource{
		start(0, 16), cmd(1), commit(1),
		checkPoint(0, 100),
		start(0, 100), cmd(2), commit(2),
	}

	applier := &MockApplier{}
	applier.On("Apply", mock.Anything, mock.Anything).Return(nil)

	result, err := Recover(context.Background(), src, applier, FromBeginning())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, logentry.UnspecifiedPosition, result.CheckPoint)
	assert.False(t, result.TornTail)
	applier.AssertNumberOfCalls(t, "Apply", 2)
}

func TestRecoverStopsOnApplyFailure(t *testing.T) {
	src := sliceSource{start(0, 16), cmd(1), commit(1), start(0, 60), cmd(2), commit(2)}

	applier := &MockApplier{}
	applier.On("Apply", int64(1), mock.Anything).Return(errors.New("disk full"))

	result, err := Recover(context.Background(), src, applier, FromBeginning())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply Transaction[tx=1")
	assert.Equal(t, 0, result.Applied)
	applier.AssertNumberOfCalls(t, "Apply", 1)
}

func TestRecoverReportsCorruption(t *testing.T) {
	applier := &MockApplier{}
	_, err := Recover(context.Background(), sliceSource{commit(1)}, applier)
	assert.True(t, txErr.IsCorruption(err))
	applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
}

func TestRecoverFromLogFilesIntoStore(t *testing.T) {
	dir := t.TempDir()
	m, err := logfile.NewManager(dir, logfile.Config{MaxFileSize: 200}, storage.NewReaderFactory())
	require.NoError(t, err)

	txs := [][]command.Command{
		{storage.NodeCreate(1), storage.NodeCreate(2)},
		{storage.RelCreate(10, "KNOWS", 1, 2)},
		{storage.PropertySet(1, "name", []byte("ada"))},
		{storage.PropertySet(2, "name", []byte("grace"))},
	}
	for i, cmds := range txs {
		txID := int64(i + 1)
		s := logentry.NewStart(v, 1, 1, 0, txID-1, nil, logentry.UnspecifiedPosition)
		_, err := m.AppendTransaction(s, cmds, logentry.NewCommit(v, txID, 0))
		require.NoError(t, err)
	}
	require.NoError(t, m.Close())

	reopened, err := logfile.NewManager(dir, logfile.Config{}, storage.NewReaderFactory())
	require.NoError(t, err)
	defer reopened.Close()

	store := storage.NewStore()
	result, err := Recover(context.Background(), reopened, store, FromBeginning())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Applied)
	assert.Equal(t, int64(4), result.LastCommittedTxID)

	node, err := store.GetNode(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("grace"), node.Properties["name"])
	rel, err := store.GetRelationship(10)
	require.NoError(t, err)
	assert.Equal(t, "KNOWS", rel.Type)
	assert.Equal(t, int64(4), store.GetMetrics().LastTxID)
}
