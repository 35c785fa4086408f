package postgres

import (
	"context"
	"database/sql"
	"io/fs"
	"net/url"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	appfs "github.com/trezcool/kazi/assets"
	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/storage/kv"
)

// DB is the postgres backend.
type DB struct {
	db *sqlx.DB
}

var _ kv.Backend = (*DB)(nil)

type entry struct {
	Key       string    `db:"entry_key"`
	Value     []byte    `db:"entry_value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sqlx.Open(conf.Database.Engine, u.String())
}

// Open connects to the application database, waits for it and applies the migrations.
func Open(conf *core.Config) (*DB, error) {
	sdb, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(sdb); err != nil {
		_ = sdb.Close()
		return nil, err
	}

	db := &DB{db: sdb}
	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	err := db.Get(&found, query, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return found, nil
}

// role and database DDL takes no bind parameters
func createUserQuery(name, password string) string {
	return "CREATE USER " + pq.QuoteIdentifier(name) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(password)
}

func createDBQuery(name string) string {
	return "CREATE DATABASE " + pq.QuoteIdentifier(name)
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname=$1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		if _, err = db.Exec(createUserQuery(conf.Database.User, conf.Database.Password)); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname=$1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(createDBQuery(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the app user (as admin) and the app database.
func CreateIfNotExist(conf *core.Config) error {
	adminDB, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = ping(adminDB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(adminDB, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

// Migrate runs the embedded migrations in name order; they are idempotent.
func (db *DB) Migrate() error {
	files, err := fs.Glob(appfs.FS, appfs.MigrationsDir+"/*.sql")
	if err != nil {
		return errors.Wrap(err, "listing migrations")
	}
	sort.Strings(files)
	for _, f := range files {
		q, err := fs.ReadFile(appfs.FS, f)
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", f)
		}
		if _, err = db.db.Exec(string(q)); err != nil {
			return errors.Wrapf(err, "migrating database: %s", f)
		}
	}
	return nil
}

func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	err := db.db.GetContext(ctx, &e, "SELECT entry_key, entry_value, updated_at FROM kv_entries WHERE entry_key = $1", key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return e.Value, true, nil
}

const (
	upsertQuery = `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (:entry_key, :entry_value, :updated_at)
ON CONFLICT (entry_key) DO UPDATE SET entry_value = EXCLUDED.entry_value, updated_at = EXCLUDED.updated_at`
	deleteQuery = "DELETE FROM kv_entries WHERE entry_key = $1"
)

func (db *DB) Apply(ctx context.Context, ops []kv.Op) (err error) {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, op := range ops {
		switch op.Kind {
		case kv.OpSet:
			if _, err = tx.NamedExecContext(ctx, upsertQuery, entry{Key: op.Key, Value: op.Value, UpdatedAt: now}); err != nil {
				return errors.Wrapf(err, "setting %q", op.Key)
			}
		case kv.OpDelete:
			if _, err = tx.ExecContext(ctx, deleteQuery, op.Key); err != nil {
				return errors.Wrapf(err, "deleting %q", op.Key)
			}
		}
	}
	return tx.Commit()
}

func (db *DB) Close() error {
	return db.db.Close()
}
