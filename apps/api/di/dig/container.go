package dig_container

import (
	"context"
	"fmt"
	"log"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/kazi/apps/api/echo"
	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/progress"
	"github.com/trezcool/kazi/core/session"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/services/email"
	"github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage"
	"github.com/trezcool/kazi/storage/collection"
	"github.com/trezcool/kazi/storage/kv/postgres"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

func newZap(conf *core.Config) *zap.Logger {
	z, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return z
}

func newLogger(conf *core.Config, z *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewZapLogger(z.Named("api")), conf)
}

func newStoreLogger(conf *core.Config, z *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewZapLogger(z.Named("store")), conf)
}

// newStore opens the configured store and seeds it on first run.
func newStore(conf *core.Config, loggerParam StoreLoggerParam) core.KVStore {
	logger := loggerParam.Logger
	ctx := context.Background()

	setUp := func() (core.KVStore, error) {
		if conf.Storage.Driver == core.DriverPostgres {
			if err := postgres.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
		}

		store, err := storage.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		ds, err := collection.BundledDataset()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		seeded, err := collection.Seed(ctx, store, ds, false)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if seeded {
			logger.Info("store seeded with the bundled dataset", map[string]interface{}{"driver": conf.Storage.Driver})
		}
		return store, nil
	}

	store, err := setUp()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	return store
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

func newSubmissionService(
	conf *core.Config,
	db core.KVStore,
	repo submission.Repository,
	asgRepo assignment.Repository,
	logger core.Logger,
) *submission.Service {
	window := conf.UndoWindow
	if window <= 0 {
		window = 30 * time.Second
	}
	return submission.NewService(db, repo, asgRepo, window, logger)
}

func newProgressService(
	db core.KVStore,
	asgRepo assignment.Repository,
	subRepo submission.Repository,
	usrRepo user.Repository,
) *progress.Service {
	return progress.NewService(db, asgRepo, subRepo, usrRepo)
}

// newTracker wires the facade and restores the persisted session.
func newTracker(
	usrSvc *user.Service,
	asgSvc *assignment.Service,
	subSvc *submission.Service,
	progSvc *progress.Service,
	holder *session.Holder,
) (*tracker.Tracker, error) {
	trk := tracker.New(usrSvc, asgSvc, subSvc, progSvc, holder)
	if err := trk.Init(context.Background()); err != nil {
		return nil, errors.Wrap(err, "initializing tracker")
	}
	return trk, nil
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newStore))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(collection.NewUserRepository))
	must(c.Provide(collection.NewAssignmentRepository))
	must(c.Provide(collection.NewSubmissionRepository))
	must(c.Provide(collection.NewSessionRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(newSubmissionService))
	must(c.Provide(newProgressService))
	must(c.Provide(session.NewHolder))
	must(c.Provide(newTracker))

	must(c.Provide(echoapi.NewOptions))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
