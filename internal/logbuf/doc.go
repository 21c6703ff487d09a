// Package logbuf retains recent log records in a bounded ring buffer
// for late-joining observers, and provides the slog handler that feeds
// it. The ring never influences routing; it is a read-only observation
// surface.
package logbuf
