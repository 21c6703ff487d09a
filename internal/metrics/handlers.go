package metrics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/meshrelay/relay/internal/logbuf"
	"github.com/meshrelay/relay/internal/router"
	"github.com/meshrelay/relay/internal/store"
)

// StatsSource provides router counter snapshots.
type StatsSource interface {
	Stats() router.Stats
}

// WriterStatsFunc snapshots one persistence writer's counters.
type WriterStatsFunc func() store.WriterMetrics

// Handlers serves the instance's observability endpoints.
type Handlers struct {
	instanceID string
	source     StatsSource
	ring       *logbuf.Ring
	writers    map[string]WriterStatsFunc
	logger     *slog.Logger
}

// NewHandlers creates the endpoint set. ring may be nil when log
// retention is disabled.
func NewHandlers(instanceID string, source StatsSource, ring *logbuf.Ring, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		instanceID: instanceID,
		source:     source,
		ring:       ring,
		writers:    make(map[string]WriterStatsFunc),
		logger:     logger,
	}
}

// AddWriter registers a persistence writer's stats under name. Must be
// called before the HTTP server starts.
func (h *Handlers) AddWriter(name string, fn WriterStatsFunc) {
	h.writers[name] = fn
}

// Mount registers the endpoints on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/statsz", h.Stats)
	mux.HandleFunc("/logz", h.Logs)
}

type healthResponse struct {
	Status               string `json:"status"`
	InstanceID           string `json:"instanceId"`
	LocalConnectionCount int    `json:"localConnectionCount"`
}

// Health reports liveness and the local connection gauge.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		InstanceID: h.instanceID,
	}
	if h.source != nil {
		resp.LocalConnectionCount = h.source.Stats().Connections
	}
	h.writeJSON(w, resp)
}

type writerStats struct {
	Inserts int64 `json:"inserts"`
	Flushes int64 `json:"flushes"`
	Errors  int64 `json:"errors"`
}

type statsResponse struct {
	InstanceID string                 `json:"instanceId"`
	Router     router.Stats           `json:"router"`
	Writers    map[string]writerStats `json:"writers,omitempty"`
}

// Stats returns the router counters and per-writer persistence
// counters.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{InstanceID: h.instanceID}
	if h.source != nil {
		resp.Router = h.source.Stats()
	}
	if len(h.writers) > 0 {
		resp.Writers = make(map[string]writerStats, len(h.writers))
		for name, fn := range h.writers {
			m := fn()
			resp.Writers[name] = writerStats{
				Inserts: m.Inserts,
				Flushes: m.Flushes,
				Errors:  m.Errors,
			}
		}
	}
	h.writeJSON(w, resp)
}

type logsResponse struct {
	InstanceID string          `json:"instanceId"`
	Capacity   int             `json:"capacity"`
	Records    []logbuf.Record `json:"records"`
}

// Logs returns the retained log records, oldest first. A limit query
// parameter keeps only the newest N.
func (h *Handlers) Logs(w http.ResponseWriter, r *http.Request) {
	resp := logsResponse{InstanceID: h.instanceID, Records: []logbuf.Record{}}
	if h.ring != nil {
		resp.Capacity = h.ring.Capacity()
		resp.Records = h.ring.Snapshot()
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if limit < len(resp.Records) {
			resp.Records = resp.Records[len(resp.Records)-limit:]
		}
	}

	h.writeJSON(w, resp)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}
