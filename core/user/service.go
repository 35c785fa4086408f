package user

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

var (
	// errors
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, db core.KVExecutor, usr User) (User, error)
		QueryAllUsers(ctx context.Context, db core.KVExecutor) ([]User, error)
		GetUserByID(ctx context.Context, db core.KVExecutor, id string) (User, error)
		GetUserByEmail(ctx context.Context, db core.KVExecutor, email string) (User, error)
	}

	Service struct {
		db       core.KVStore
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(db core.KVStore, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate}
}

func (svc *Service) checkUniqueness(email string) error {
	_, err := svc.repo.GetUserByEmail(context.Background(), svc.db, email)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case core.IsNotFound(err):
		return nil
	default:
		return err
	}
}

// Create stores a new User; nu must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr := User{
		ID:    core.GenerateID("user"),
		Name:  nu.Name,
		Email: nu.Email,
		Role:  nu.Role,
	}
	created, err := svc.repo.CreateUser(ctx, svc.db, usr)
	if core.IsDuplicateID(err) {
		// retry once with a fresh id
		usr.ID = core.GenerateID("user")
		created, err = svc.repo.CreateUser(ctx, svc.db, usr)
	}
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return created, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx, svc.db)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, svc.db, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, svc.db, core.CleanString(email, true /* lower */))
}
