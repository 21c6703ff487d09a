package metrics

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/meshrelay/relay/internal/logbuf"
	"github.com/meshrelay/relay/internal/router"
)

func TestReporter_DefaultInterval(t *testing.T) {
	r := NewReporter(0, fixedStats{}, nil)
	if r.interval != DefaultReportInterval {
		t.Errorf("interval = %v, want %v", r.interval, DefaultReportInterval)
	}
}

func TestReporter_ReportCarriesCounters(t *testing.T) {
	ring := logbuf.NewRing(8)
	logger := slog.New(logbuf.NewHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), ring, "i1"))

	src := fixedStats{stats: router.Stats{Connections: 2, Routed: 9}}
	r := NewReporter(time.Minute, src, logger)
	r.report()

	recs := ring.Snapshot()
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Message != "relay stats" {
		t.Errorf("message = %q, want %q", rec.Message, "relay stats")
	}
	if got := rec.Data["connections"]; got != int64(2) {
		t.Errorf("connections = %v (%T), want 2", got, got)
	}
	if got := rec.Data["routed"]; got != int64(9) {
		t.Errorf("routed = %v (%T), want 9", got, got)
	}
}

func TestReporter_StartStop(t *testing.T) {
	r := NewReporter(10*time.Millisecond, fixedStats{}, slog.Default())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
