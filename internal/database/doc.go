// Package database provides the PostgreSQL connection pool shared by
// the persistence writers and the fanout backplane. The pool is
// optional: without it the relay runs in-memory only.
package database
