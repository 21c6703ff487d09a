// Package registry tracks live connections and their declared identity.
//
// The registry holds no cross-process state and is not safe for
// concurrent use: it is owned by the router's event loop, which
// serializes every mutation.
package registry
