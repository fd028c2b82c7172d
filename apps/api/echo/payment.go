package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
)

type paymentApi struct {
	svc      *payment.Service
	validate *validator.Validate
}

// VerificationResult is the verify-payment response: the verified payment and
// the credited student fee.
type VerificationResult struct {
	Payment    payment.Payment `json:"payment"`
	StudentFee fee.StudentFee  `json:"student_fee"`
}

func registerPaymentAPI(g *echo.Group, jwt, school echo.MiddlewareFunc, deps ServerDeps) {
	api := paymentApi{
		svc:      deps.PaymentSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/payments", jwt, school)
	pg.GET("", api.query)
	pg.POST("/:id/verify", api.verify)
	pg.POST("/:id/reject", api.reject)

	rg := g.Group("/reports", jwt, school)
	rg.GET("/financial", api.financialReport)
}

// Handlers

func (api *paymentApi) query(ctx echo.Context) error {
	var filter payment.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	page, err := api.svc.Query(ctx.Request().Context(), auth, filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *paymentApi) verify(ctx echo.Context) error {
	var data payment.VerifyPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	p, sf, err := api.svc.Verify(ctx.Request().Context(), auth, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, VerificationResult{Payment: p, StudentFee: sf})
}

func (api *paymentApi) reject(ctx echo.Context) error {
	var data payment.RejectPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.Reject(ctx.Request().Context(), auth, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) financialReport(ctx echo.Context) error {
	auth, err := getContextAuth(ctx)
	if err != nil {
		return err
	}

	rpt, err := api.svc.FinancialReport(ctx.Request().Context(), auth, ctx.QueryParam("session"))
	if err != nil {
		return errors.Wrap(err, "building financial report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}
