package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
)

var contextUserKey = "user"

// sessionMiddleware requires a logged in user and stores it in the context.
// The user id is the actor of every downstream operation.
func sessionMiddleware(trk *tracker.Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, ok := trk.CurrentUser()
			if !ok {
				return errUnauthorized
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr := contextUser(ctx)
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func contextUser(ctx echo.Context) user.User {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr
}
