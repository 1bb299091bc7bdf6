// Package database provides connection pool management for PostgreSQL.
//
// The pool is optional: it is only opened when snapshot recording is enabled.
// Recorded rows live in the price_snapshots table (see Schema).
package database
