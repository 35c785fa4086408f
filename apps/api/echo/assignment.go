package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
)

type assignmentApi struct {
	trk *tracker.Tracker
}

func registerAssignmentAPI(g *echo.Group, trk *tracker.Tracker) {
	api := assignmentApi{trk: trk}
	admin := roleMiddleware(user.RoleAdmin)

	ag := g.Group("/assignments")
	ag.GET("", api.query)
	ag.POST("", api.create, admin)
	ag.PUT("/:id", api.update, admin)
	ag.DELETE("/:id", api.destroy, admin)
	ag.GET("/:id/progress", api.progress)
	ag.GET("/:id/roster", api.roster, admin)
	ag.POST("/:id/submit", api.submit, roleMiddleware(user.RoleStudent))
}

// MutationResponse is returned by every mutating endpoint: the operation result
// and the collections read right after the write.
// Info is set instead of Result when the operation was a no-op (eg. already submitted).
type MutationResponse struct {
	Result   interface{}      `json:"result,omitempty"`
	Info     string           `json:"info,omitempty"`
	Snapshot tracker.Snapshot `json:"snapshot"`
}

func respondMutation(ctx echo.Context, code int, result interface{}, snap tracker.Snapshot, err error) error {
	if err != nil {
		if !core.IsBenign(err) {
			return err
		}
		return ctx.JSON(http.StatusOK, MutationResponse{Info: errors.Cause(err).Error(), Snapshot: snap})
	}
	return ctx.JSON(code, MutationResponse{Result: result, Snapshot: snap})
}

type ProgressResponse struct {
	AssignmentID string `json:"assignmentId"`
	Percentage   int    `json:"percentage"`
}

// Handlers

// query lists the instructor's assignments, or the student's assignments with their status.
func (api *assignmentApi) query(ctx echo.Context) error {
	usr := contextUser(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	if usr.IsStudent() {
		views, err := api.trk.StudentAssignments(ctx.Request().Context(), usr.ID)
		if err != nil {
			return errors.Wrap(err, "querying student assignments")
		}
		ordering.SortStudentView(views)
		return ctx.JSON(http.StatusOK, views)
	}

	asgs, err := api.trk.ListAssignmentsFor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	ordering.Sort(asgs)
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}

	a, snap, err := api.trk.CreateAssignment(ctx.Request().Context(), data, contextUser(ctx).ID)
	return respondMutation(ctx, http.StatusCreated, a, snap, errors.Wrap(err, "creating assignment"))
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}

	a, snap, err := api.trk.UpdateAssignment(ctx.Request().Context(), ctx.Param("id"), data, contextUser(ctx).ID)
	return respondMutation(ctx, http.StatusOK, a, snap, errors.Wrap(err, "updating assignment"))
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	snap, err := api.trk.DeleteAssignment(ctx.Request().Context(), ctx.Param("id"), contextUser(ctx).ID)
	return respondMutation(ctx, http.StatusOK, nil, snap, errors.Wrap(err, "deleting assignment"))
}

func (api *assignmentApi) progress(ctx echo.Context) error {
	id := ctx.Param("id")
	pct, err := api.trk.AssignmentProgress(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "computing assignment progress")
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{AssignmentID: id, Percentage: pct})
}

func (api *assignmentApi) roster(ctx echo.Context) error {
	roster, err := api.trk.Roster(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	res, snap, err := api.trk.RequestSubmit(ctx.Request().Context(), ctx.Param("id"), contextUser(ctx).ID)
	return respondMutation(ctx, http.StatusOK, res, snap, errors.Wrap(err, "requesting submission"))
}
