// Package router implements the destination router: the single-threaded
// engine that resolves an envelope's destination (self, others, all, or
// a named room) into a delivery set, performs local delivery, and
// replicates broadcast-scope envelopes to sibling instances through the
// fanout bridge.
//
// All state the engine owns (connection registry, room membership,
// counters, extensions) is mutated only by its event loop goroutine:
// one envelope is fully routed before the next is processed, so no
// half-applied membership change is ever observable. The suspension
// points are confined to external collaborators (bridge publish,
// write-behind, log emission), all fire-and-forget.
package router
