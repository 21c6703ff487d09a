package logbuf

import (
	"context"
	"log/slog"
)

// CategoryKey is the attribute whose value becomes a record's
// category. Component loggers are derived with
// logger.With(logbuf.CategoryKey, "router") and the like.
const CategoryKey = "component"

// Handler is a slog.Handler that forwards every record to an inner
// handler and tees a converted Record into a Ring.
type Handler struct {
	inner      slog.Handler
	ring       *Ring
	instanceID string
	attrs      []slog.Attr
	prefix     string
}

// NewHandler wraps inner, teeing records into ring tagged with the
// instance id.
func NewHandler(inner slog.Handler, ring *Ring, instanceID string) *Handler {
	return &Handler{inner: inner, ring: ring, instanceID: instanceID}
}

// Enabled defers to the inner handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle forwards to the inner handler and appends to the ring.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.inner.Handle(ctx, r)

	rec := Record{
		Timestamp:  r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		InstanceID: h.instanceID,
	}

	data := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		h.collect(data, &rec, h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(data, &rec, h.prefix, a)
		return true
	})
	if len(data) > 0 {
		rec.Data = data
	}

	h.ring.Append(rec)
	return err
}

// collect flattens an attribute into the data map, pulling the
// category attribute out of band.
func (h *Handler) collect(data map[string]any, rec *Record, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			h.collect(data, rec, prefix+a.Key+".", ga)
		}
		return
	}
	if prefix == "" && a.Key == CategoryKey {
		rec.Category = v.String()
		return
	}
	data[prefix+a.Key] = v.Any()
}

// WithAttrs returns a handler carrying additional attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that prefixes subsequent keys.
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	clone.prefix = h.prefix + name + "."
	return &clone
}
