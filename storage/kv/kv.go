// Package kv implements core.KVStore over pluggable byte backends.
package kv

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

// ErrTxDone is returned by operations on a committed or rolled back transaction.
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op is a single buffered write.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// Backend is a raw byte store.
// Apply must apply all ops or none of them.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// Store namespaces keys with a prefix and wraps every backend failure in a *core.StorageError.
type Store struct {
	backend Backend
	prefix  string
}

var _ core.KVStore = (*Store)(nil)

func New(backend Backend, prefix string) *Store {
	return &Store{backend: backend, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := s.backend.Get(ctx, s.key(key))
	if err != nil {
		return nil, false, core.NewStorageError("get", key, err)
	}
	return val, found, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte) error {
	return s.apply(ctx, "set", key, []Op{{Kind: OpSet, Key: s.key(key), Value: val}})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.apply(ctx, "delete", key, []Op{{Kind: OpDelete, Key: s.key(key)}})
}

func (s *Store) apply(ctx context.Context, op, key string, ops []Op) error {
	if err := s.backend.Apply(ctx, ops); err != nil {
		return core.NewStorageError(op, key, err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (core.KVTransactor, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("begin", "", err)
	}
	return &tx{store: s, ctx: ctx, writes: make(map[string]int)}, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// tx buffers writes; its reads see its own writes.
type tx struct {
	mu     sync.Mutex
	store  *Store
	ctx    context.Context
	ops    []Op
	writes map[string]int // logical key -> index in ops
	done   bool
}

var _ core.KVTransactor = (*tx)(nil)

func (t *tx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil, false, core.NewStorageError("get", key, ErrTxDone)
	}
	if i, ok := t.writes[key]; ok {
		op := t.ops[i]
		t.mu.Unlock()
		if op.Kind == OpDelete {
			return nil, false, nil
		}
		return op.Value, true, nil
	}
	t.mu.Unlock()
	return t.store.Get(ctx, key)
}

func (t *tx) Set(_ context.Context, key string, val []byte) error {
	return t.buffer("set", key, Op{Kind: OpSet, Key: t.store.key(key), Value: val})
}

func (t *tx) Delete(_ context.Context, key string) error {
	return t.buffer("delete", key, Op{Kind: OpDelete, Key: t.store.key(key)})
}

func (t *tx) buffer(op, key string, o Op) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return core.NewStorageError(op, key, ErrTxDone)
	}
	if i, ok := t.writes[key]; ok {
		t.ops[i] = o // last write wins
		return nil
	}
	t.writes[key] = len(t.ops)
	t.ops = append(t.ops, o)
	return nil
}

func (t *tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return core.NewStorageError("commit", "", ErrTxDone)
	}
	t.done = true
	if len(t.ops) == 0 {
		return nil
	}
	if err := t.store.backend.Apply(t.ctx, t.ops); err != nil {
		return core.NewStorageError("commit", "", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil
	t.writes = nil
	return nil
}
