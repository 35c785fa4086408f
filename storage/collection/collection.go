// Package collection persists the entity collections as full JSON snapshots.
// Every mutation loads the whole collection, transforms it and writes it back
// through the executor it is given, so callers can group several of them in one transaction.
package collection

import (
	"context"
	"encoding/json"

	"github.com/trezcool/kazi/core"
)

func load[T any](ctx context.Context, db core.KVExecutor, key string) ([]T, error) {
	raw, found, err := db.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err = json.Unmarshal(raw, &items); err != nil {
		return nil, core.NewStorageError("decode", key, err)
	}
	if items == nil { // "null"
		items = []T{}
	}
	return items, nil
}

func save[T any](ctx context.Context, db core.KVExecutor, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return core.NewStorageError("encode", key, err)
	}
	return db.Set(ctx, key, raw)
}

// indexOf returns the position of the first item matching id, or -1.
func indexOf[T any](items []T, id string, idOf func(T) string) int {
	for i, it := range items {
		if idOf(it) == id {
			return i
		}
	}
	return -1
}
