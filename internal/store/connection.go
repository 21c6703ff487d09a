package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectionWriter consumes ConnRecords and batch-inserts them into
// the connections table.
type ConnectionWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *Buffer[ConnRecord]
	db    *pgxpool.Pool

	batch       []ConnRecord
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewConnectionWriter creates a ConnectionWriter reading from input.
func NewConnectionWriter(cfg WriterConfig, input *Buffer[ConnRecord], db *pgxpool.Pool, logger *slog.Logger) *ConnectionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]ConnRecord, 0, cfg.BatchSize),
	}
}

// Start begins consuming records and writing to the database.
func (w *ConnectionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("connection writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer with a final flush.
func (w *ConnectionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping connection writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("connection writer stopped")
	case <-ctx.Done():
		w.logger.Warn("connection writer stop timed out")
	}

	for _, rec := range w.input.DrainTo(0) {
		w.batchMu.Lock()
		w.batch = append(w.batch, rec)
		w.batchMu.Unlock()
	}
	w.flush(context.Background())

	return nil
}

// Stats returns current metrics.
func (w *ConnectionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *ConnectionWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			rec, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.add(rec)
		}
	}
}

func (w *ConnectionWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *ConnectionWriter) add(rec ConnRecord) {
	w.batchMu.Lock()
	w.batch = append(w.batch, rec)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

func (w *ConnectionWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]ConnRecord, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("connection batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed connection events", "count", len(batch))
}

func (w *ConnectionWriter) batchInsert(ctx context.Context, rows []ConnRecord) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO connections (instance_id, conn_id, event, identity, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
		`, r.InstanceID, r.ConnID, string(r.Event), r.Identity, r.OccurredAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
