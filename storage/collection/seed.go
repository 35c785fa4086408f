package collection

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/kazi/assets"
	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
)

// Dataset is the bootstrap content of a fresh store.
type Dataset struct {
	Users       []user.User             `json:"users"`
	Assignments []assignment.Assignment `json:"assignments"`
	Submissions []submission.Submission `json:"submissions"`
}

func ParseDataset(raw []byte) (Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return Dataset{}, errors.Wrap(err, "parsing dataset")
	}
	return ds, nil
}

// BundledDataset returns the dataset embedded in the binary.
func BundledDataset() (Dataset, error) {
	raw, err := appfs.FS.ReadFile(appfs.SeedFile)
	if err != nil {
		return Dataset{}, errors.Wrap(err, "reading bundled dataset")
	}
	return ParseDataset(raw)
}

func IsInitialized(ctx context.Context, db core.KVExecutor) (bool, error) {
	raw, found, err := db.Get(ctx, core.KeyInitialized)
	if err != nil || !found {
		return false, err
	}
	var ok bool
	if err = json.Unmarshal(raw, &ok); err != nil {
		return false, core.NewStorageError("decode", core.KeyInitialized, err)
	}
	return ok, nil
}

// Seed writes ds and the initialized flag in one transaction when the store was never initialized,
// or unconditionally with force. It reports whether it wrote anything.
func Seed(ctx context.Context, store core.KVStore, ds Dataset, force bool) (bool, error) {
	var seeded bool
	err := core.InTx(ctx, store, func(tx core.KVExecutor) error {
		if !force {
			initialized, err := IsInitialized(ctx, tx)
			if err != nil || initialized {
				return err
			}
		}
		if err := save(ctx, tx, core.KeyUsers, ds.Users); err != nil {
			return err
		}
		if err := save(ctx, tx, core.KeyAssignments, ds.Assignments); err != nil {
			return err
		}
		if err := save(ctx, tx, core.KeySubmissions, ds.Submissions); err != nil {
			return err
		}
		if err := tx.Set(ctx, core.KeyInitialized, []byte("true")); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "seeding store")
	}
	return seeded, nil
}
