package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
)

type (
	Options struct {
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		Tracker        *tracker.Tracker
		Validate       *validator.Validate
		Translator     ut.Translator
		Logger         core.Logger
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
		hub  *hub
	}
)

var _ Server = (*server)(nil)

// NewOptions builds the server options from the app config.
func NewOptions(
	conf *core.Config,
	trk *tracker.Tracker,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Options {
	return &Options{
		Address:        conf.Server.Address,
		Debug:          conf.Debug,
		TestMode:       conf.TestMode,
		DisableReqLogs: conf.Server.DisableReqLogs,
		Tracker:        trk,
		Validate:       validate,
		Translator:     translator,
		Logger:         logger,
	}
}

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
		hub:  newHub(opts.Logger),
	}
	s.setup()
	go s.hub.run()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	trk := s.opts.Tracker
	trk.OnChange(s.hub.notify)

	v1 := s.app.Group("/v1")
	v1.GET("/live", s.hub.serve)

	registerSessionAPI(v1, trk, s.opts.Validate)

	authed := v1.Group("", sessionMiddleware(trk))
	registerAssignmentAPI(authed, trk)
	registerSubmissionAPI(authed, trk)

	authed.GET("/snapshot", func(ctx echo.Context) error {
		snap, err := trk.Snapshot(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "reading snapshot")
		}
		return ctx.JSON(http.StatusOK, snap)
	})
	authed.GET("/progress", func(ctx echo.Context) error {
		usr := contextUser(ctx)
		sum, err := trk.StudentSummary(ctx.Request().Context(), usr.ID)
		if err != nil {
			return errors.Wrap(err, "summarizing student progress")
		}
		return ctx.JSON(http.StatusOK, sum)
	}, roleMiddleware(user.RoleStudent))
}

// Start blocks until the server stops; a graceful Stop is not an error.
func (s *server) Start() error {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	s.hub.stop()
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kazi API!")
}
