package api

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/recovery"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

// LogService is the transaction log as seen by the HTTP handlers.
type LogService interface {
	LogFiles() ([]logfile.FileInfo, error)
	Entries(ctx context.Context, version int64, limit int) ([]logentry.LogEntry, error)
	Recover(ctx context.Context) (RecoveryReport, error)
	LastRecovery() (RecoveryReport, bool)
}

// RecoveryReport is the outcome of replaying the log into a fresh store.
type RecoveryReport struct {
	Result recovery.Result      `json:"result"`
	Store  storage.StoreMetrics `json:"store"`
}

// Service implements LogService on top of a log manager.
type Service struct {
	manager  *logfile.Manager
	observer recovery.Observer
	log      zerolog.Logger

	mu   sync.Mutex
	last *RecoveryReport
}

var _ LogService = (*Service)(nil)

// NewService creates a Service. observer may be nil.
func NewService(manager *logfile.Manager, observer recovery.Observer, log zerolog.Logger) *Service {
	return &Service{manager: manager, observer: observer, log: log}
}

// LogFiles describes every log file on disk, oldest first.
func (s *Service) LogFiles() ([]logfile.FileInfo, error) {
	files := s.manager.LogFiles()
	versions, err := files.Versions()
	if err != nil {
		return nil, err
	}

	infos := make([]logfile.FileInfo, 0, len(versions))
	for _, v := range versions {
		info, err := files.Describe(v)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Entries returns up to limit entries of log version.
func (s *Service) Entries(ctx context.Context, version int64, limit int) ([]logentry.LogEntry, error) {
	var entries []logentry.LogEntry
	_, err := s.manager.ScanVersion(ctx, version, func(e logentry.LogEntry) error {
		entries = append(entries, e)
		if len(entries) >= limit {
			return logfile.ErrStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, logfile.ErrStopScan) {
		return nil, err
	}
	return entries, nil
}

// Recover replays the whole log into an empty store.
func (s *Service) Recover(ctx context.Context) (RecoveryReport, error) {
	store := storage.NewStore()
	opts := []recovery.Option{recovery.FromBeginning(), recovery.WithLogger(s.log)}
	if s.observer != nil {
		opts = append(opts, recovery.WithObserver(s.observer))
	}

	result, err := recovery.Recover(ctx, s.manager, store, opts...)
	if err != nil {
		return RecoveryReport{}, err
	}

	report := RecoveryReport{Result: result, Store: store.GetMetrics()}
	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report, nil
}

// LastRecovery returns the most recent successful recovery.
func (s *Service) LastRecovery() (RecoveryReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RecoveryReport{}, false
	}
	return *s.last, true
}
