package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
)

type submissionApi struct {
	trk *tracker.Tracker
}

func registerSubmissionAPI(g *echo.Group, trk *tracker.Tracker) {
	api := submissionApi{trk: trk}

	sg := g.Group("/submissions/:id", roleMiddleware(user.RoleStudent))
	sg.POST("/confirm", api.confirm)
	sg.POST("/undo", api.undo)
}

func (api *submissionApi) confirm(ctx echo.Context) error {
	res, snap, err := api.trk.ConfirmSubmit(ctx.Request().Context(), ctx.Param("id"), contextUser(ctx).ID)
	return respondMutation(ctx, http.StatusOK, res, snap, errors.Wrap(err, "confirming submission"))
}

func (api *submissionApi) undo(ctx echo.Context) error {
	snap, err := api.trk.UndoSubmit(ctx.Request().Context(), ctx.Param("id"), contextUser(ctx).ID)
	return respondMutation(ctx, http.StatusOK, nil, snap, errors.Wrap(err, "undoing submission"))
}
