package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/storage"
	"github.com/trezcool/kazi/storage/kv/postgres"
)

var migrateFunc = migrateStorage // mockable

// migrateStorage prepares the configured backend: postgres gets its role, database and tables,
// sqlite its file and table. The other drivers need nothing.
func migrateStorage(ctx context.Context, conf *core.Config) error {
	switch conf.Storage.Driver {
	case core.DriverPostgres:
		if err := postgres.CreateIfNotExist(conf); err != nil {
			return err
		}
	case core.DriverSQLite, "":
	default:
		return nil
	}

	// opening the backend applies its migrations
	backend, err := storage.OpenBackend(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "migrating storage")
	}
	return backend.Close()
}

func (cli *commandLine) migrate(ctx context.Context) error {
	if err := migrateFunc(ctx, cli.conf); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s storage is up to date\n", cli.conf.Storage.Driver)
	return nil
}
