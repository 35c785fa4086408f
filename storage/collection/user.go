package collection

import (
	"context"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

type userRepository struct{}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository() user.Repository {
	return &userRepository{}
}

func userID(u user.User) string { return u.ID }

func (repo *userRepository) CreateUser(ctx context.Context, db core.KVExecutor, usr user.User) (user.User, error) {
	users, err := load[user.User](ctx, db, core.KeyUsers)
	if err != nil {
		return user.User{}, err
	}
	if indexOf(users, usr.ID, userID) >= 0 {
		return user.User{}, core.NewDuplicateIDError("user", usr.ID)
	}
	users = append(users, usr)
	if err = save(ctx, db, core.KeyUsers, users); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context, db core.KVExecutor) ([]user.User, error) {
	return load[user.User](ctx, db, core.KeyUsers)
}

func (repo *userRepository) GetUserByID(ctx context.Context, db core.KVExecutor, id string) (user.User, error) {
	users, err := load[user.User](ctx, db, core.KeyUsers)
	if err != nil {
		return user.User{}, err
	}
	if i := indexOf(users, id, userID); i >= 0 {
		return users[i], nil
	}
	return user.User{}, core.NewNotFoundError("user", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, db core.KVExecutor, email string) (user.User, error) {
	users, err := load[user.User](ctx, db, core.KeyUsers)
	if err != nil {
		return user.User{}, err
	}
	for _, u := range users {
		if core.CleanString(u.Email, true /* lower */) == email {
			return u, nil
		}
	}
	return user.User{}, core.NewNotFoundError("user", email)
}
