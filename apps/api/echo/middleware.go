package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shuleboard/core/school"
)

// tenantMiddleware loads the authenticated school into the context.
func tenantMiddleware(svc *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil || claims.Subject == "" {
				return errUnauthorized
			}
			sch, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				return errors.Wrap(err, "getting token school")
			}
			ctx.Set(contextSchoolKey, sch)
			return next(ctx)
		}
	}
}

// featureMiddleware rejects requests for features the school turned off.
func featureMiddleware(feature string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := getContextSchool(ctx)
			if err != nil {
				return err
			}
			if !sch.Features.Enabled(feature) {
				return errFeatureDisabled(feature)
			}
			return next(ctx)
		}
	}
}
