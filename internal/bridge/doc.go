// Package bridge defines the fanout bridge: the publish/subscribe
// backplane that replicates local broadcasts to sibling relay
// instances.
//
// The engine publishes outbound local-scope events and subscribes to
// receive siblings' events, replaying them as if locally delivered.
// Echoes of this instance's own publishes are discarded by origin
// instance id. Losing the bridge degrades the system to
// single-instance scope; local delivery is unaffected.
package bridge
