package echoapi

import (
	"github.com/labstack/echo/v4"
)

// roleMiddleware only lets through the users holding one of roles.
// Roles are read from the token: a role change takes effect on the next login or refresh.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
