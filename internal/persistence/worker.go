package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"SpotLedger/internal/event"
	"SpotLedger/internal/observability"
)

// Worker drains an event subscription and batch-writes rows to Postgres.
// The subscription channel uses blocking sends, so if the worker falls
// behind, appends stall rather than lose events. Batches flush when full
// or when the flush timeout fires.
type Worker struct {
	writer       *EventLogWriter
	input        <-chan event.Envelope
	batchSize    int
	flushTimeout time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	input <-chan event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Run blocks until ctx is cancelled or the input channel closes. Any
// buffered rows are flushed on the way out.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]EventRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.logger.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case env, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.logger.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			row, err := RowFromEnvelope(env)
			if err != nil {
				// Marshal failure is a programming error; skipping the
				// row would silently punch a hole in the durable log.
				w.logger.Error().Err(err).Int64("sequence", env.Sequence).Msg("unmarshalable envelope")
				continue
			}
			batch = append(batch, row)

			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write lands
// or the context is cancelled. The worker never drops a batch; on
// shutdown it makes one last attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, rows []EventRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", len(rows)).
				Msg("retrying batch write")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), rows); err != nil {
					w.logger.Error().Err(err).Msg("flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				w.logger.Info().Int("attempts", attempt).Msg("batch write recovered")
			}
			return
		}

		w.logger.Error().Err(err).Msg("batch write failed")
		if w.metrics != nil {
			w.metrics.PersistErrors.Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, rows []EventRow) error {
	start := time.Now()
	if err := w.writer.WriteBatch(ctx, rows); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(rows)))
		w.metrics.PersistEventsWritten.Add(float64(len(rows)))
		w.metrics.PersistLastSequence.Set(float64(rows[len(rows)-1].Sequence))
	}
	return nil
}
