package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
)

var saveOrderingFields = []string{"assignment_name", "student_count", "saved_at"}

type saveApi struct {
	svc    *grading.Service
	logger core.Logger
}

func registerSaveAPI(g *echo.Group, deps ServerDeps) {
	api := saveApi{svc: deps.GradingSvc, logger: deps.Logger}

	sg := g.Group("/saves")
	sg.GET("", api.query)
	sg.GET("/:saveID", api.retrieve)
	sg.POST("/:saveID/load", api.load)
	sg.DELETE("/:saveID", api.destroy)
}

func (api *saveApi) query(ctx echo.Context) error {
	var filter grading.SaveFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to SaveFilter")
	}
	filter.Clean()

	var ord Ordering
	if err := ord.Bind(ctx, saveOrderingFields...); err != nil {
		return err
	}

	saves, err := api.svc.QuerySaves(ctx.Request().Context(), filter, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying saves")
	}
	return ctx.JSON(http.StatusOK, saves)
}

func (api *saveApi) retrieve(ctx echo.Context) error {
	doc, err := api.svc.GetSave(ctx.Request().Context(), ctx.Param("saveID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *saveApi) load(ctx echo.Context) error {
	state, err := api.svc.Load(ctx.Request().Context(), ctx.Param("saveID"))
	if err != nil {
		return err
	}
	api.logger.Info("save loaded", core.LogScope{SessionID: state.ID, AssignmentName: state.AssignmentName})
	return ctx.JSON(http.StatusCreated, state)
}

func (api *saveApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteSaves(ctx.Request().Context(), ctx.Param("saveID")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
