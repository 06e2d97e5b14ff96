// Package statestore provides the versioned key-value state shared by all
// ledger operations.
//
// Every public operation runs inside one Tx: keyed reads record the version
// they observed, writes buffer until Commit, and Commit validates the
// recorded read set against the currently committed state. A transaction
// whose reads have gone stale is aborted with ErrConflict and performs zero
// writes; the caller resubmits. This is the mechanism that prevents two
// concurrent creations of the same entity, or two concurrent revocations of
// the same certificate, from both succeeding.
//
// Two implementations of Store are provided:
//   - MemStore: in-process, for testing and single-node development.
//   - PostgresStore: durable, for production use.
package statestore

import (
	"context"
	"errors"
)

// ErrConflict is returned by Tx.Commit when a key read during the
// transaction has been written by a concurrently committed transaction.
// The transaction applied no writes; the operation must be resubmitted.
var ErrConflict = errors.New("transaction read set is stale")

// Store opens snapshot transactions over the versioned state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the read-set/write-set of a single invocation.
//
// Reads observe committed state only; a value written with Put in the same
// transaction is not read back by Get or Has. Writes become visible to other
// transactions only after a successful Commit.
type Tx interface {
	// Get returns the committed value for key, or nil if absent.
	// The observed version joins the transaction's read set.
	Get(ctx context.Context, key string) ([]byte, error)

	// Has reports whether a committed value exists for key.
	// Like Get, the probe joins the read set.
	Has(ctx context.Context, key string) (bool, error)

	// Put buffers a write. It never fails before Commit.
	Put(ctx context.Context, key string, value []byte) error

	// Query returns an iterator over committed records whose JSON value
	// contains every selector field with the given string value. Result
	// ordering is unspecified. Query results do not join the read set.
	// The iterator must be closed after consumption.
	Query(ctx context.Context, selector map[string]string) (Iterator, error)

	// Commit validates the read set and applies the buffered writes
	// atomically. Returns ErrConflict when any read is stale.
	Commit(ctx context.Context) error

	// Discard abandons the transaction without writing. Safe to call after
	// Commit; useful in defer.
	Discard()
}

// Iterator walks a query result set.
type Iterator interface {
	Next() bool
	Key() string
	Value() []byte
	Err() error
	Close()
}
