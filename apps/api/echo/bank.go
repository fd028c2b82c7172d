package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/bank"
)

type bankApi struct {
	svc      *bank.Service
	validate *validator.Validate
}

func registerBankAPI(g *echo.Group, jwt, school echo.MiddlewareFunc, deps ServerDeps) {
	api := bankApi{
		svc:      deps.BankSvc,
		validate: deps.Validate,
	}

	bg := g.Group("/bank-accounts", jwt, school)
	bg.POST("", api.createAccount)
	bg.GET("", api.queryAccounts)
	bg.POST("/:id/primary", api.setPrimaryAccount)
	bg.DELETE("/:id", api.destroyAccount)

	eg := g.Group("/expenses", jwt, school)
	eg.POST("", api.createExpense)
	eg.GET("", api.queryExpenses)
	eg.DELETE("/:id", api.destroyExpense)
}

// Handlers

func (api *bankApi) createAccount(ctx echo.Context) error {
	var data bank.NewBankAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBankAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	acc, err := api.svc.CreateAccount(ctx.Request().Context(), auth, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *bankApi) queryAccounts(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	accounts, err := api.svc.QueryAccounts(ctx.Request().Context(), auth)
	if err != nil {
		return errors.Wrap(err, "querying bank accounts")
	}
	if accounts == nil {
		accounts = []bank.BankAccount{}
	}
	return ctx.JSON(http.StatusOK, accounts)
}

func (api *bankApi) setPrimaryAccount(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	acc, err := api.svc.SetPrimaryAccount(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *bankApi) destroyAccount(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.DeleteAccount(ctx.Request().Context(), auth, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *bankApi) createExpense(ctx echo.Context) error {
	var data bank.NewExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExpense")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	exp, err := api.svc.CreateExpense(ctx.Request().Context(), auth, data)
	if err != nil {
		return errors.Wrap(err, "recording expense")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

func (api *bankApi) queryExpenses(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	expenses, err := api.svc.QueryExpenses(ctx.Request().Context(), auth)
	if err != nil {
		return errors.Wrap(err, "querying expenses")
	}
	if expenses == nil {
		expenses = []bank.Expense{}
	}
	return ctx.JSON(http.StatusOK, expenses)
}

func (api *bankApi) destroyExpense(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.DeleteExpense(ctx.Request().Context(), auth, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
