// Package storage defines the ordered key/value abstraction every indexing
// layer (history, the controller's UTXO set and chain index) is built on, and a
// goleveldb-backed implementation of it.
package storage

// KV is an ordered byte-string key/value store. Every method is safe for
// concurrent use.
type KV interface {
	// Get returns the value for key, or (nil, false) if absent.
	Get(key []byte) ([]byte, bool, error)
	// Has reports whether key is present.
	Has(key []byte) (bool, error)
	// Put stores value under key.
	Put(key, value []byte) error
	// Delete removes key, a no-op if absent.
	Delete(key []byte) error
	// NewBatch returns a Batch for grouping writes into one atomic commit.
	NewBatch() Batch
	// Iterator returns an Iterator over all keys sharing prefix. When
	// reverse is true, iteration runs from the highest matching key down.
	Iterator(prefix []byte, reverse bool) Iterator
	// Close releases the store's resources.
	Close() error
}

// Batch accumulates writes for atomic application via Write.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	// Len returns the number of operations queued.
	Len() int
	// Write commits the batch and resets it for reuse.
	Write() error
}

// Iterator walks a key range in one direction. The zero value is not ready
// for use; obtain one from KV.Iterator. Callers must call Close when done.
type Iterator interface {
	// Next advances to the next key/value pair, returning false when the
	// range is exhausted or an error occurred (check Err).
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}
