// Package envelope defines the wire envelope routed between connections.
//
// An envelope carries an application-defined kind tag, a destination
// (self, others, all, or a named room), and an opaque payload. The
// router never inspects or mutates the payload; higher layers
// discriminate by kind.
package envelope
