package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sajjad-MoBe/txlog/internal/command"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/tracing"
)

// Source is a log that can be scanned from its oldest entry.
type Source interface {
	Scan(ctx context.Context, fn func(logentry.LogEntry) error) error
}

// Applier applies the commands of one committed transaction.
type Applier interface {
	Apply(txID int64, cmds []command.Command) error
}

// Observer is told about finished recoveries.
type Observer interface {
	RecoveryFinished(duration time.Duration, transactions int)
}

// Result summarizes a recovery run.
type Result struct {
	LastCommittedTxID int64                `json:"last_committed_tx_id"`
	CheckPoint        logentry.LogPosition `json:"check_point"`
	Applied           int                  `json:"applied"`
	Skipped           int                  `json:"skipped"`
	Torn              int                  `json:"torn"`
	TornTail          bool                 `json:"torn_tail"`
	Duration          time.Duration        `json:"duration"`
}

type options struct {
	log           zerolog.Logger
	observer      Observer
	fromBeginning bool
}

// Option configures Recover.
type Option func(*options)

// WithLogger sets the logger used for progress messages.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver reports the finished recovery to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// FromBeginning replays every transaction, ignoring check points. Use it
// when the applier starts empty.
func FromBeginning() Option {
	return func(o *options) { o.fromBeginning = true }
}

// Recover replays the committed transactions of src that start at or after
// the last check point into applier. A transaction left open at the end of
// the log is reported as a torn tail and not applied.
func Recover(ctx context.Context, src Source, applier Applier, opts ...Option) (Result, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	began := time.Now()
	result := Result{CheckPoint: logentry.UnspecifiedPosition}
	err := tracing.Trace(ctx, "recovery.Recover", func(ctx context.Context) error {
		if !o.fromBeginning {
			cp, err := lastCheckPoint(ctx, src)
			if err != nil {
				return err
			}
			result.CheckPoint = cp
			tracing.AddEvent(ctx, "check point", attribute.String("position", cp.String()))
		}

		cursor := NewTransactionCursor()
		err := src.Scan(ctx, func(e logentry.LogEntry) error {
			tx, _, err := cursor.Offer(e)
			if err != nil || tx == nil {
				return err
			}
			result.LastCommittedTxID = tx.TxID()
			if result.CheckPoint != logentry.UnspecifiedPosition &&
				tx.Start.StartPosition.Compare(result.CheckPoint) < 0 {
				result.Skipped++
				return nil
			}
			if err := applier.Apply(tx.TxID(), tx.Commands); err != nil {
				return fmt.Errorf("failed to apply %s: %w", tx, err)
			}
			result.Applied++
			return nil
		})
		if err != nil {
			return err
		}

		result.Torn = cursor.Torn()
		if cursor.Pending() {
			result.Torn++
			result.TornTail = true
		}
		return nil
	})
	result.Duration = time.Since(began)
	if err != nil {
		o.log.Error().Err(err).Msg("recovery failed")
		return result, err
	}

	if o.observer != nil {
		o.observer.RecoveryFinished(result.Duration, result.Applied)
	}
	ev := o.log.Info()
	if result.Torn > 0 {
		ev = o.log.Warn()
	}
	ev.Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("torn", result.Torn).
		Int64("last_committed_tx", result.LastCommittedTxID).
		Stringer("check_point", result.CheckPoint).
		Dur("duration", result.Duration).
		Msg("recovery finished")
	return result, nil
}

func lastCheckPoint(ctx context.Context, src Source) (logentry.LogPosition, error) {
	pos := logentry.UnspecifiedPosition
	err := src.Scan(ctx, func(e logentry.LogEntry) error {
		if cp, ok := e.(*logentry.CheckPoint); ok {
			pos = cp.LogPosition
		}
		return nil
	})
	return pos, err
}
