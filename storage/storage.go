// Package storage opens the configured key-value store.
package storage

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/storage/kv"
	"github.com/trezcool/kazi/storage/kv/inmem"
	"github.com/trezcool/kazi/storage/kv/postgres"
	"github.com/trezcool/kazi/storage/kv/redis"
	"github.com/trezcool/kazi/storage/kv/sqlite"
)

// OpenBackend returns the raw backend selected by conf.Storage.Driver.
func OpenBackend(ctx context.Context, conf *core.Config) (kv.Backend, error) {
	switch conf.Storage.Driver {
	case core.DriverInMem:
		return inmem.Open()
	case core.DriverSQLite, "":
		path := conf.Storage.SQLitePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(core.Getwd(), path)
		}
		return sqlite.Open(path, conf.Debug)
	case core.DriverPostgres:
		return postgres.Open(conf)
	case core.DriverRedis:
		return redis.Open(ctx, conf.Redis)
	}
	return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}

// Open returns the namespaced store over the configured backend.
func Open(ctx context.Context, conf *core.Config) (*kv.Store, error) {
	backend, err := OpenBackend(ctx, conf)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s storage", conf.Storage.Driver)
	}
	return kv.New(backend, conf.Storage.KeyPrefix), nil
}
