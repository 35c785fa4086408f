package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/trezcool/kazi/storage/kv"
)

// Entry is one stored key.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey"`
	Value     []byte `gorm:"column:entry_value"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

// DB is the gorm sqlite backend, the default one.
type DB struct {
	db *gorm.DB
}

var _ kv.Backend = (*DB)(nil)

// Open opens (and creates if needed) the database file at path and migrates its table.
func Open(path string, debug bool) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Warn
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	db := &DB{db: gdb}
	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Migrate() error {
	if err := db.db.AutoMigrate(&Entry{}); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e Entry
	err := db.db.WithContext(ctx).Where("entry_key = ?", key).Take(&e).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return e.Value, true, nil
}

func (db *DB) Apply(ctx context.Context, ops []kv.Op) error {
	return db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, op := range ops {
			switch op.Kind {
			case kv.OpSet:
				e := Entry{Key: op.Key, Value: op.Value, UpdatedAt: now}
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "entry_key"}},
					DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
				}).Create(&e).Error
				if err != nil {
					return errors.Wrapf(err, "setting %q", op.Key)
				}
			case kv.OpDelete:
				if err := tx.Where("entry_key = ?", op.Key).Delete(&Entry{}).Error; err != nil {
					return errors.Wrapf(err, "deleting %q", op.Key)
				}
			}
		}
		return nil
	})
}

func (db *DB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
