package storage

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is a KV backed by goleveldb, the same family of embedded store
// used for chain-state storage in the reference client.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if necessary) a LevelDB store at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	opts := &opt.Options{
		BlockCacheCapacity:    64 * opt.MiB,
		WriteBuffer:           64 * opt.MiB,
		CompactionTableSize:   64 * opt.MiB,
		OpenFilesCacheCapacity: 1024,
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", path)
	}
	return &LevelDB{db: db}, nil
}

// Get implements KV.
func (l *LevelDB) Get(key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "leveldb get")
	}
	return v, true, nil
}

// Has implements KV.
func (l *LevelDB) Has(key []byte) (bool, error) {
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return false, errors.Wrap(err, "leveldb has")
	}
	return ok, nil
}

// Put implements KV.
func (l *LevelDB) Put(key, value []byte) error {
	return errors.Wrap(l.db.Put(key, value, nil), "leveldb put")
}

// Delete implements KV.
func (l *LevelDB) Delete(key []byte) error {
	return errors.Wrap(l.db.Delete(key, nil), "leveldb delete")
}

// Close implements KV.
func (l *LevelDB) Close() error {
	return errors.Wrap(l.db.Close(), "leveldb close")
}

// NewBatch implements KV.
func (l *LevelDB) NewBatch() Batch {
	return &levelDBBatch{db: l.db, batch: new(leveldb.Batch)}
}

type levelDBBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelDBBatch) Put(key, value []byte) { b.batch.Put(key, value) }
func (b *levelDBBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *levelDBBatch) Len() int              { return b.batch.Len() }

func (b *levelDBBatch) Write() error {
	if err := b.db.Write(b.batch, nil); err != nil {
		return errors.Wrap(err, "leveldb batch write")
	}
	b.batch.Reset()
	return nil
}

// Iterator implements KV. Grounded on the prefix-trimming LevelDBCursor
// pattern: the prefix is stripped from Key() so callers work in the
// logical keyspace below the column-family-style prefix byte.
func (l *LevelDB) Iterator(prefix []byte, reverse bool) Iterator {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	return &levelDBIterator{it: it, prefix: prefix, reverse: reverse}
}

type levelDBIterator struct {
	it      iterator.Iterator
	prefix  []byte
	reverse bool
	started bool
}

func (it *levelDBIterator) Next() bool {
	if !it.started {
		it.started = true
		if it.reverse {
			return it.it.Last()
		}
		return it.it.First()
	}
	if it.reverse {
		return it.it.Prev()
	}
	return it.it.Next()
}

func (it *levelDBIterator) Key() []byte {
	return bytes.TrimPrefix(it.it.Key(), it.prefix)
}

func (it *levelDBIterator) Value() []byte { return it.it.Value() }
func (it *levelDBIterator) Err() error    { return it.it.Error() }
func (it *levelDBIterator) Close() error  { it.it.Release(); return nil }
