package logfile

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("log manager is closed")

// Config contains configuration for log file management
type Config struct {
	MaxFileSize    int64         // Rotate once the current file reaches this many bytes
	MaxFiles       int           // Maximum number of log files to retain; 0 keeps all
	RotationPeriod time.Duration // Interval for periodic rotation; 0 disables it
	SyncOnCommit   bool          // Fsync after every appended transaction
}

// DefaultConfig returns the default log file configuration.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:    64 * 1024 * 1024, // 64MB
		MaxFiles:       16,
		RotationPeriod: time.Hour,
		SyncOnCommit:   true,
	}
}

// Metrics tracks operational metrics for the log
type Metrics struct {
	TotalEntries      int64     `json:"total_entries"`
	TotalBytes        int64     `json:"total_bytes"`
	CurrentVersion    int64     `json:"current_version"`
	CurrentFileSize   int64     `json:"current_file_size"`
	RotationCount     int64     `json:"rotation_count"`
	LastRotationTime  time.Time `json:"last_rotation_time"`
	LastCommittedTxID int64     `json:"last_committed_tx_id"`
	ErrorCount        int64     `json:"error_count"`
}

// Observer is told about appended bytes and rotations.
type Observer interface {
	Appended(bytes int64)
	Rotated()
}

type nopObserver struct{}

func (nopObserver) Appended(int64) {}
func (nopObserver) Rotated()       {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithObserver reports appends and rotations to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithReaderOptions configures the entry reader used by Scan.
func WithReaderOptions(opts ...logentry.ReaderOption) Option {
	return func(m *Manager) { m.readerOpts = append(m.readerOpts, opts...) }
}

// Manager appends log entries to a directory of rotating log files and scans
// them back.
type Manager struct {
	config     Config
	files      LogFiles
	scanner    *Scanner
	readerOpts []logentry.ReaderOption
	log        zerolog.Logger
	observer   Observer

	current *channel.FileChannel
	metrics Metrics
	closed  bool
	mutex   sync.RWMutex

	stopCh     chan struct{}
	rotationCh chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewManager opens the log in dir. Existing files are scanned for the last
// committed transaction and appending always starts in a new file, so a torn
// tail is never extended. Retention is applied before returning.
func NewManager(dir string, config Config, factory command.ReaderFactory, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, txErr.New(txErr.ErrorTypeIOFailure, "failed to create log directory", err)
	}

	m := &Manager{
		config:     config,
		files:      LogFiles{Dir: dir},
		log:        zerolog.Nop(),
		observer:   nopObserver{},
		stopCh:     make(chan struct{}),
		rotationCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.scanner = NewScanner(dir, factory, append([]logentry.ReaderOption{logentry.WithLogger(m.log)}, m.readerOpts...)...)

	next, err := m.openExisting()
	if err != nil {
		return nil, err
	}
	if err := m.createFile(next); err != nil {
		return nil, err
	}
	if err := m.cleanupOldFiles(); err != nil {
		m.current.Close()
		return nil, err
	}

	if config.RotationPeriod > 0 {
		m.wg.Add(2)
		go m.rotationLoop()
		go m.processRotations()
	}
	return m, nil
}

// openExisting recovers the last committed tx id and returns the next log
// version. Files holding no entries are removed, and the newest of them gives
// its version back, so restarts without appends do not pile up empty files.
func (m *Manager) openExisting() (int64, error) {
	versions, err := m.files.Versions()
	if err != nil {
		return 0, txErr.New(txErr.ErrorTypeIOFailure, "failed to list log files", err)
	}
	if len(versions) == 0 {
		return 0, nil
	}

	var lastTx int64
	next := versions[len(versions)-1] + 1
	for _, v := range versions {
		entries := 0
		header, err := m.scanner.scanFile(context.Background(), v, func(e logentry.LogEntry) error {
			entries++
			if c, ok := e.(*logentry.Commit); ok && c.TxID > lastTx {
				lastTx = c.TxID
			}
			return nil
		})
		incomplete := errors.Is(err, ErrIncompleteHeader)
		if err != nil && !incomplete {
			return 0, err
		}
		if !incomplete && header.LastCommittedTxID > lastTx {
			lastTx = header.LastCommittedTxID
		}
		if entries > 0 {
			continue
		}

		empty, err := m.holdsNoEntries(v)
		if err != nil {
			return 0, err
		}
		if !empty {
			if incomplete {
				m.log.Warn().Int64("version", v).Msg("ignoring log file with incomplete header")
			}
			continue
		}
		if err := os.Remove(m.files.Path(v)); err != nil {
			return 0, txErr.New(txErr.ErrorTypeIOFailure, "failed to remove empty log file", err)
		}
		m.log.Debug().Int64("version", v).Bool("incomplete_header", incomplete).Msg("removed empty log file")
		if v == versions[len(versions)-1] {
			next = v
		}
	}
	m.metrics.LastCommittedTxID = lastTx
	m.log.Info().
		Int("files", len(versions)).
		Int64("last_committed_tx", lastTx).
		Msg("opened existing transaction log")
	return next, nil
}

// holdsNoEntries reports whether log version v is no larger than a header.
func (m *Manager) holdsNoEntries(v int64) (bool, error) {
	stat, err := os.Stat(m.files.Path(v))
	if err != nil {
		return false, txErr.New(txErr.ErrorTypeIOFailure, "failed to stat log file", err)
	}
	return stat.Size() <= HeaderSize, nil
}

// Append writes entries to the current file. Entries are buffered until the
// next Sync, rotation or Close. If any entry is rejected nothing is written.
func (m *Manager) Append(entries ...logentry.LogEntry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.beforeAppend(); err != nil {
		return err
	}
	_, before := m.current.Position()
	if err := m.writeLocked(entries...); err != nil {
		return err
	}
	m.afterAppend(before, int64(len(entries)))
	return nil
}

// AppendTransaction writes start, one COMMAND entry per command and commit.
// It returns the position of the start entry. Commit tx ids must increase.
func (m *Manager) AppendTransaction(start *logentry.Start, cmds []command.Command, commit *logentry.Commit) (logentry.LogPosition, error) {
	if start == nil || commit == nil {
		return logentry.UnspecifiedPosition, txErr.Newf(txErr.ErrorTypeInvalidInput, "transaction needs a start and a commit entry")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if commit.TxID <= m.metrics.LastCommittedTxID {
		return logentry.UnspecifiedPosition, txErr.Newf(txErr.ErrorTypeInvalidInput,
			"transaction id %d is not after last committed %d", commit.TxID, m.metrics.LastCommittedTxID)
	}
	if err := m.beforeAppend(); err != nil {
		return logentry.UnspecifiedPosition, err
	}

	entries := make([]logentry.LogEntry, 0, len(cmds)+2)
	entries = append(entries, start)
	for _, cmd := range cmds {
		entries = append(entries, logentry.NewCommand(start.Version(), cmd))
	}
	entries = append(entries, commit)

	pos := logentry.PositionOf(m.current)
	if err := m.writeLocked(entries...); err != nil {
		return logentry.UnspecifiedPosition, err
	}
	m.afterAppend(pos.ByteOffset, int64(len(cmds)+2))

	if m.config.SyncOnCommit {
		if err := m.current.Sync(); err != nil {
			m.metrics.ErrorCount++
			return logentry.UnspecifiedPosition, txErr.New(txErr.ErrorTypeIOFailure, "failed to sync log file", err)
		}
	}
	return pos, nil
}

// CheckPoint records that everything before pos has been applied to the store.
func (m *Manager) CheckPoint(pos logentry.LogPosition) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return ErrClosed
	}
	_, before := m.current.Position()
	if err := m.writeLocked(logentry.NewCheckPoint(logentry.LatestVersion, pos)); err != nil {
		return err
	}
	m.afterAppend(before, 1)
	if err := m.current.Sync(); err != nil {
		m.metrics.ErrorCount++
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to sync log file", err)
	}
	m.log.Debug().Stringer("position", pos).Msg("check point written")
	return nil
}

// Position returns where the next entry will be appended.
func (m *Manager) Position() logentry.LogPosition {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return logentry.PositionOf(m.current)
}

func (m *Manager) beforeAppend() error {
	if m.closed {
		return ErrClosed
	}
	if m.config.MaxFileSize > 0 && m.metrics.CurrentFileSize >= m.config.MaxFileSize {
		if err := m.rotate(); err != nil {
			m.metrics.ErrorCount++
			return err
		}
	}
	return nil
}

// writeLocked encodes all entries into memory first and hands them to the
// file in one write, so a rejected entry never leaves a partial record behind.
func (m *Manager) writeLocked(entries ...logentry.LogEntry) error {
	stage := channel.NewInMemoryChannel()
	w := logentry.NewWriter(stage)
	for i, e := range entries {
		if e == nil {
			return txErr.Newf(txErr.ErrorTypeInvalidInput, "entry %d is nil", i)
		}
		if err := w.WriteEntry(e); err != nil {
			m.metrics.ErrorCount++
			if txErr.TypeOf(err) != "" {
				return err
			}
			return txErr.New(txErr.ErrorTypeInvalidInput, "failed to encode log entry", err)
		}
	}

	if err := m.current.PutBytes(stage.Bytes()); err != nil {
		m.metrics.ErrorCount++
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to append log entries", err)
	}
	for _, e := range entries {
		if c, ok := e.(*logentry.Commit); ok {
			m.metrics.LastCommittedTxID = c.TxID
		}
	}
	return nil
}

func (m *Manager) afterAppend(before, entries int64) {
	_, after := m.current.Position()
	written := after - before
	m.metrics.TotalEntries += entries
	m.metrics.TotalBytes += written
	m.metrics.CurrentFileSize += written
	m.observer.Appended(written)
}

// Sync flushes buffered entries and forces them to disk.
func (m *Manager) Sync() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := m.current.Sync(); err != nil {
		m.metrics.ErrorCount++
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to sync log file", err)
	}
	return nil
}

// Rotate closes the current file and starts the next log version.
func (m *Manager) Rotate() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return ErrClosed
	}
	return m.rotate()
}

func (m *Manager) rotate() error {
	version, _ := m.current.Position()
	if err := m.current.Close(); err != nil {
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to close current log file", err)
	}
	if err := m.createFile(version + 1); err != nil {
		return err
	}
	m.metrics.RotationCount++
	m.metrics.LastRotationTime = time.Now()
	m.observer.Rotated()

	if err := m.cleanupOldFiles(); err != nil {
		return err
	}
	m.log.Info().Int64("version", version+1).Msg("rotated transaction log")
	return nil
}

func (m *Manager) createFile(version int64) error {
	file, err := os.OpenFile(m.files.Path(version), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to create log file", err)
	}

	ch := channel.NewFileChannel(file, version, 0)
	if err := WriteHeader(ch, NewHeader(version, m.metrics.LastCommittedTxID)); err != nil {
		file.Close()
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to write log file header", err)
	}
	if err := ch.Sync(); err != nil {
		file.Close()
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to sync log file header", err)
	}

	m.current = ch
	m.metrics.CurrentVersion = version
	m.metrics.CurrentFileSize = HeaderSize
	return nil
}

func (m *Manager) cleanupOldFiles() error {
	if m.config.MaxFiles <= 0 {
		return nil
	}
	versions, err := m.files.Versions()
	if err != nil {
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to list log files", err)
	}

	if len(versions) > m.config.MaxFiles {
		for _, v := range versions[:len(versions)-m.config.MaxFiles] {
			if err := os.Remove(m.files.Path(v)); err != nil {
				return txErr.New(txErr.ErrorTypeIOFailure, "failed to remove old log file", err)
			}
			m.log.Debug().Int64("version", v).Msg("pruned log file")
		}
	}
	return nil
}

// Scan flushes buffered entries and visits every entry of every log file.
// See Scanner.Scan.
func (m *Manager) Scan(ctx context.Context, fn func(logentry.LogEntry) error) error {
	if err := m.flush(); err != nil {
		return err
	}
	return m.scanner.Scan(ctx, fn)
}

// ScanVersion flushes buffered entries and visits the entries of log version v.
func (m *Manager) ScanVersion(ctx context.Context, v int64, fn func(logentry.LogEntry) error) (Header, error) {
	if err := m.flush(); err != nil {
		return Header{}, err
	}
	return m.scanner.ScanVersion(ctx, v, fn)
}

func (m *Manager) flush() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed || m.current == nil {
		return nil
	}
	if err := m.current.Flush(); err != nil {
		return txErr.New(txErr.ErrorTypeIOFailure, "failed to flush log file", err)
	}
	return nil
}

// LogFiles returns the files the manager writes to.
func (m *Manager) LogFiles() LogFiles {
	return m.files
}

// Metrics returns a snapshot of the log metrics
func (m *Manager) Metrics() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.metrics
}

// Close stops periodic rotation and closes the current file.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mutex.Lock()
		defer m.mutex.Unlock()
		m.closed = true
		if m.current != nil {
			if closeErr := m.current.Close(); closeErr != nil {
				err = txErr.New(txErr.ErrorTypeIOFailure, "failed to close log file", closeErr)
			}
		}
	})
	return err
}

func (m *Manager) rotationLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.RotationPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case m.rotationCh <- struct{}{}:
			default: // Skip if rotation already pending
			}
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) processRotations() {
	defer m.wg.Done()
	for {
		select {
		case <-m.rotationCh:
			m.mutex.Lock()
			if !m.closed && m.metrics.CurrentFileSize > HeaderSize {
				if err := m.rotate(); err != nil {
					m.metrics.ErrorCount++
					m.log.Error().Err(err).Msg("periodic log rotation failed")
				}
			}
			m.mutex.Unlock()
		case <-m.stopCh:
			return
		}
	}
}
