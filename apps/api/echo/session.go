package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
)

type sessionApi struct {
	trk      *tracker.Tracker
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, trk *tracker.Tracker, validate *validator.Validate) {
	api := sessionApi{trk: trk, validate: validate}

	sg := g.Group("/session")
	sg.GET("", api.current)
	sg.POST("/login", api.login)
	sg.POST("/logout", api.logout)

	g.GET("/users", api.users)
	g.GET("/roles", api.roles)
}

// Handlers

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.trk.Login(ctx.Request().Context(), data.UserID)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{User: &usr})
}

func (api *sessionApi) logout(ctx echo.Context) error {
	if err := api.trk.Logout(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "logged out"})
}

func (api *sessionApi) current(ctx echo.Context) error {
	var resp SessionResponse
	if usr, ok := api.trk.CurrentUser(); ok {
		resp.User = &usr
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionApi) users(ctx echo.Context) error {
	users, err := api.trk.Users(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *sessionApi) roles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginRequest struct {
		UserID string `json:"userId" validate:"notblank"`
	}

	SessionResponse struct {
		User *user.User `json:"user"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.UserID = core.CleanString(lr.UserID)
	return validate.Struct(lr)
}
