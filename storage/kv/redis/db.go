package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/storage/kv"
)

// DB is the redis backend; Apply runs in one MULTI/EXEC.
type DB struct {
	client *redis.Client
}

var _ kv.Backend = (*DB)(nil)

func Open(ctx context.Context, conf core.RedisConfig) (*DB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &DB{client: client}, nil
}

func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := db.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return val, true, nil
}

func (db *DB) Apply(ctx context.Context, ops []kv.Op) error {
	_, err := db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case kv.OpSet:
				pipe.Set(ctx, op.Key, op.Value, 0)
			case kv.OpDelete:
				pipe.Del(ctx, op.Key)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "applying writes")
	}
	return nil
}

func (db *DB) Close() error {
	return db.client.Close()
}
