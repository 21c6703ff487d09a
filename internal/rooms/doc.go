// Package rooms maintains the room membership tables for one instance.
//
// Membership is purely local: a room name spanning instances is a
// naming convention, not a replicated set. Cross-instance reach is the
// router's job, via the fanout bridge. Like the registry, this manager
// is owned by the router's event loop and is not safe for concurrent
// use.
package rooms
