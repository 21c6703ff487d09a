// Package metrics exposes operational visibility for a relay instance.
//
// Two surfaces:
//   - HTTP handlers for health, counter snapshots, and the retained
//     log buffer
//   - a periodic reporter that logs a one-line stats summary
package metrics
