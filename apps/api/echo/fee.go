package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/fee"
)

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt, school echo.MiddlewareFunc, deps ServerDeps) {
	api := feeApi{
		svc:      deps.FeeSvc,
		validate: deps.Validate,
	}

	fg := g.Group("/fees", jwt, school)

	fg.POST("/categories", api.createCategory)
	fg.GET("/categories", api.queryCategories)

	fg.POST("/structures", api.createStructure)
	fg.GET("/structures", api.queryStructures)

	dg := fg.Group("/structures/:id")
	dg.GET("", api.retrieveStructure)
	dg.PUT("", api.updateStructure)
	dg.DELETE("", api.destroyStructure)
	dg.POST("/archive", api.archiveStructure)
	dg.POST("/unarchive", api.unarchiveStructure)
	dg.POST("/assign", api.assignStructure)
}

// Handlers

func (api *feeApi) createCategory(ctx echo.Context) error {
	var data fee.NewFeeCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), auth, data)
	if err != nil {
		return errors.Wrap(err, "creating fee category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *feeApi) queryCategories(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	cats, err := api.svc.QueryCategories(ctx.Request().Context(), auth)
	if err != nil {
		return errors.Wrap(err, "querying fee categories")
	}
	if cats == nil {
		cats = []fee.FeeCategory{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *feeApi) createStructure(ctx echo.Context) error {
	var data fee.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	fs, err := api.svc.CreateStructure(ctx.Request().Context(), auth, data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *feeApi) queryStructures(ctx echo.Context) error {
	var filter fee.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	structs, err := api.svc.QueryStructures(ctx.Request().Context(), auth, filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structs == nil {
		structs = []fee.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, structs)
}

func (api *feeApi) retrieveStructure(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	fs, err := api.svc.GetStructure(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *feeApi) updateStructure(ctx echo.Context) error {
	var data fee.UpdateFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeeStructure")
	}
	if ctx.QueryParam("cascade") == "true" {
		data.CascadeAmount = true
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	fs, err := api.svc.UpdateStructure(ctx.Request().Context(), auth, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *feeApi) archiveStructure(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	fs, err := api.svc.ArchiveStructure(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *feeApi) unarchiveStructure(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	fs, err := api.svc.UnarchiveStructure(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *feeApi) destroyStructure(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.DeleteStructure(ctx.Request().Context(), auth, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feeApi) assignStructure(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Assign(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
