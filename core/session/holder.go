// Package session tracks which user is logged in on this install.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

type Repository interface {
	// GetCurrentUser reports found=false when nobody is logged in.
	GetCurrentUser(ctx context.Context, db core.KVExecutor) (usr user.User, found bool, err error)
	SetCurrentUser(ctx context.Context, db core.KVExecutor, usr user.User) error
	ClearCurrentUser(ctx context.Context, db core.KVExecutor) error
}

// Holder is the process-wide current user, mirrored in the store.
type Holder struct {
	mu      sync.RWMutex
	db      core.KVStore
	repo    Repository
	current *user.User
}

func NewHolder(db core.KVStore, repo Repository) *Holder {
	return &Holder{db: db, repo: repo}
}

// Init loads the persisted current user, if any.
func (h *Holder) Init(ctx context.Context) error {
	usr, found, err := h.repo.GetCurrentUser(ctx, h.db)
	if err != nil {
		return errors.Wrap(err, "loading current user")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	if found {
		h.current = &usr
	}
	return nil
}

func (h *Holder) Login(ctx context.Context, usr user.User) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.repo.SetCurrentUser(ctx, h.db, usr); err != nil {
		return errors.Wrap(err, "logging in")
	}
	h.current = &usr
	return nil
}

func (h *Holder) Logout(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.repo.ClearCurrentUser(ctx, h.db); err != nil {
		return errors.Wrap(err, "logging out")
	}
	h.current = nil
	return nil
}

func (h *Holder) Current() (user.User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.current == nil {
		return user.User{}, false
	}
	return *h.current, true
}
