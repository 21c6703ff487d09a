package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultReportInterval is used when the configured interval is zero.
const DefaultReportInterval = 60 * time.Second

// Reporter periodically logs a one-line summary of the router counters.
type Reporter struct {
	interval time.Duration
	source   StatsSource
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a Reporter.
func NewReporter(interval time.Duration, source StatsSource, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Reporter{
		interval: interval,
		source:   source,
		logger:   logger,
	}
}

// Start begins the reporting loop.
func (r *Reporter) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("stats reporter started", "interval", r.interval)
	return nil
}

// Stop gracefully shuts down the reporter.
func (r *Reporter) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("stats reporter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// report emits one summary line.
func (r *Reporter) report() {
	st := r.source.Stats()
	r.logger.Info("relay stats",
		"connections", st.Connections,
		"rooms", st.Rooms,
		"routed", st.Routed,
		"delivered", st.Delivered,
		"dropped_stale", st.DroppedStale,
		"malformed", st.Malformed,
		"published", st.Published,
		"bridge_received", st.BridgeReceived,
	)
}
