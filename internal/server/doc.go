// Package server is the WebSocket transport for the relay.
//
// Each accepted connection becomes a Client with dedicated read and
// write pump goroutines. The read pump parses wire frames (identify,
// join-room, leave-room, send, get-ice-servers) and drives the router;
// delivered envelopes flow back through a buffered send channel that
// drops frames rather than block the routing loop.
package server
