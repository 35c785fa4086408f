package collection

import (
	"context"
	"encoding/json"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/session"
	"github.com/trezcool/kazi/core/user"
)

type sessionRepository struct{}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository() session.Repository {
	return &sessionRepository{}
}

func (repo *sessionRepository) GetCurrentUser(ctx context.Context, db core.KVExecutor) (user.User, bool, error) {
	raw, found, err := db.Get(ctx, core.KeyCurrentUser)
	if err != nil || !found {
		return user.User{}, false, err
	}
	var usr *user.User
	if err = json.Unmarshal(raw, &usr); err != nil {
		return user.User{}, false, core.NewStorageError("decode", core.KeyCurrentUser, err)
	}
	if usr == nil { // "null"
		return user.User{}, false, nil
	}
	return *usr, true, nil
}

func (repo *sessionRepository) SetCurrentUser(ctx context.Context, db core.KVExecutor, usr user.User) error {
	raw, err := json.Marshal(usr)
	if err != nil {
		return core.NewStorageError("encode", core.KeyCurrentUser, err)
	}
	return db.Set(ctx, core.KeyCurrentUser, raw)
}

func (repo *sessionRepository) ClearCurrentUser(ctx context.Context, db core.KVExecutor) error {
	return db.Delete(ctx, core.KeyCurrentUser)
}
