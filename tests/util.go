package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage/kv"
	"github.com/trezcool/kazi/storage/kv/inmem"
)

const KeyPrefix = "assignment_dashboard_"

// PrepareStore returns a fresh in-memory store, closed on cleanup.
func PrepareStore(t *testing.T) (*kv.Store, *inmem.DB) {
	t.Helper()
	db, err := inmem.Open()
	if err != nil {
		t.Fatalf("inmem.Open() failed: %v", err)
	}
	store := kv.New(db, KeyPrefix)
	t.Cleanup(func() { _ = store.Close() })
	return store, db
}

func NopLogger() core.Logger {
	return logsvc.NewZapLogger(zap.NewNop())
}

func NewValidator() *validator.Validate {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

// TestConfig returns the defaults with an in-memory store and test mode on.
func TestConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Storage.Driver = core.DriverInMem
	conf.Storage.KeyPrefix = KeyPrefix
	return conf
}

// Clock is a manual clock installed as core.NowFunc.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockNow freezes core.NowFunc at `now` until the test ends.
func MockNow(t *testing.T, now time.Time) *Clock {
	t.Helper()
	clock := &Clock{now: now}
	orig := core.NowFunc
	core.NowFunc = clock.Now
	t.Cleanup(func() { core.NowFunc = orig })
	return clock
}

// CreateUser stores usr directly through repo.
func CreateUser(t *testing.T, store core.KVStore, repo user.Repository, id, name string, role user.Role) user.User {
	t.Helper()
	usr := user.User{
		ID:    id,
		Name:  name,
		Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.cd",
		Role:  role,
	}
	usr, err := repo.CreateUser(context.Background(), store, usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// RawJSON returns the stored JSON of the logical key, "" when absent.
func RawJSON(t *testing.T, store core.KVExecutor, key string) string {
	t.Helper()
	raw, found, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store.Get(%q) failed: %v", key, err)
	}
	if !found {
		return ""
	}
	return string(raw)
}

// AssertJSONEq fails with a unified diff of the indented documents when they differ.
func AssertJSONEq(t *testing.T, want, got []byte) {
	t.Helper()
	w, g := indent(t, want), indent(t, got)
	if w == g {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(w),
		B:        difflib.SplitLines(g),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	t.Errorf("JSON mismatch:\n%s", diff)
}

func indent(t *testing.T, raw []byte) string {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", raw, err)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}
