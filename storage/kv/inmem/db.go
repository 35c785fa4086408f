package inmem

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/storage/kv"
)

var ErrClosed = errors.New("in-memory store is closed")

// DB is a map backend, used in tests and ephemeral runs.
type DB struct {
	table  map[string][]byte
	mutex  sync.RWMutex
	fail   error
	closed bool
}

var _ kv.Backend = (*DB)(nil)

func Open() (*DB, error) {
	return &DB{table: make(map[string][]byte)}, nil
}

// FailWith makes every later write fail with err until it is called with nil.
func (db *DB) FailWith(err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.fail = err
}

func (db *DB) Get(_ context.Context, key string) ([]byte, bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if db.closed {
		return nil, false, ErrClosed
	}
	val, ok := db.table[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, true, nil
}

func (db *DB) Apply(_ context.Context, ops []kv.Op) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.fail != nil {
		return db.fail
	}
	for _, op := range ops {
		switch op.Kind {
		case kv.OpSet:
			val := make([]byte, len(op.Value))
			copy(val, op.Value)
			db.table[op.Key] = val
		case kv.OpDelete:
			delete(db.table, op.Key)
		}
	}
	return nil
}

// Keys returns the raw stored keys.
func (db *DB) Keys() []string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	keys := make([]string, 0, len(db.table))
	for k := range db.table {
		keys = append(keys, k)
	}
	return keys
}

func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.closed = true
	return nil
}
