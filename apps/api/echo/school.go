package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shuleboard/core/school"
)

type schoolApi struct {
	*Server
}

func registerSchoolAPI(g *echo.Group, s *Server, jwt, tenant echo.MiddlewareFunc) {
	api := schoolApi{Server: s}

	sg := g.Group("/school", jwt, tenant)
	sg.GET("/me", api.me)
	sg.PATCH("/features", api.updateFeatures)
}

func (api schoolApi) me(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api schoolApi) updateFeatures(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}

	var data school.FeaturesUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeaturesUpdate")
	}

	sch, err = api.SchoolSvc.UpdateFeatures(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating features")
	}
	return ctx.JSON(http.StatusOK, sch)
}
