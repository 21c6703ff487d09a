// Package store implements the optional write-behind persistence for
// routed messages and connection lifecycle events.
//
// Writers batch rows and flush on size or interval. They are strictly
// fire-and-forget from the router's perspective: a full buffer drops
// the record and a failed insert is logged, never surfaced to routing.
package store
