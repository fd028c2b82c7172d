package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/bank"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
	"github.com/trezcool/karo/core/student"
	logsvc "github.com/trezcool/karo/services/logger"
	notifsvc "github.com/trezcool/karo/services/notification"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
)

var testClock = time.Date(2021, time.September, 1, 9, 0, 0, 0, time.UTC)

func testConfig() *core.Config {
	conf := &core.Config{
		TestMode:  true,
		Env:       "TEST",
		AppName:   "Karo",
		SecretKey: "secret",
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	return conf
}

func setup(t *testing.T) (*Server, *core.Config, *dummydb.DB) {
	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := testConfig()
	logger := logsvc.NewNopLogger()
	clock := func() time.Time { return testClock }

	feeSvc := fee.NewServiceMock(
		dummydb.NewFeeRepository(db),
		dummydb.NewStudentRepository(db),
		notifsvc.NewRecorder(),
		logger,
		clock,
	)
	paymentSvc := payment.NewServiceMock(dummydb.NewPaymentRepository(db), logger, clock)
	bankSvc := bank.NewService(dummydb.NewBankRepository(db))

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FeeSvc:     feeSvc,
		PaymentSvc: paymentSvc,
		BankSvc:    bankSvc,
		Validate:   validate,
		Translator: translator,
	})
	return app, conf, db
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func schoolToken(t *testing.T, conf *core.Config, schoolID string) string {
	token, err := GenerateToken(conf, GetSchoolClaims(conf, schoolID, "admin@"+schoolID+".test"))
	require.NoError(t, err)
	return token
}

func parentToken(t *testing.T, conf *core.Config) string {
	claims := GetSchoolClaims(conf, "school1", "parent@test.cd")
	claims.UserType = core.UserTypeParent
	token, err := GenerateToken(conf, claims)
	require.NoError(t, err)
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestServer_auth(t *testing.T) {
	app, conf, _ := setup(t)

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantBody string
	}{
		{name: "missing token", wantCode: http.StatusUnauthorized, wantBody: `{"error":"missing or malformed jwt"}`},
		{name: "garbage token", token: "lol", wantCode: http.StatusUnauthorized},
		{name: "parent token", token: parentToken(t, conf), wantCode: http.StatusForbidden, wantBody: `{"error":"permission denied"}`},
		{name: "school token", token: schoolToken(t, conf, "school1"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/fees/categories", tt.token)
			app.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}

	t.Run("home is open", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/", "")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_feeStructures(t *testing.T) {
	app, conf, db := setup(t)
	token := schoolToken(t, conf, "school1")

	db.SeedStudent(student.Student{ID: "st1", SchoolID: "school1", Name: "Imani", Class: "JSS 1"})
	db.SeedStudent(student.Student{ID: "st2", SchoolID: "school1", Name: "Amara", Class: "JSS 1"})
	db.SeedStudent(student.Student{ID: "st3", SchoolID: "school1", Name: "Zuri", Class: "JSS 2"})

	// create a category first
	req, rec := newAuthRequest(http.MethodPost, "/v1/fees/categories", token, marshallObj(t, fee.NewFeeCategory{Name: "Tuition"}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat fee.FeeCategory
	decodeBody(t, rec, &cat)
	require.NotEmpty(t, cat.ID)
	assert.Equal(t, "school1", cat.SchoolID)

	t.Run("create rejects student and class together", func(t *testing.T) {
		body := marshallObj(t, map[string]interface{}{
			"category_id": cat.ID,
			"name":        "Tuition Fee",
			"amount":      5000,
			"frequency":   "per-term",
			"session":     "2021/2022",
			"student_id":  "st1",
			"class":       "JSS 1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/structures", token, body)
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		decodeBody(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "student_id")
		assert.Contains(t, fldErrs, "class")
	})

	t.Run("create rejects negative amount and bad frequency", func(t *testing.T) {
		body := marshallObj(t, map[string]interface{}{
			"category_id": cat.ID,
			"name":        "Tuition Fee",
			"amount":      -5,
			"frequency":   "yearly",
			"session":     "2021/2022",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/structures", token, body)
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		decodeBody(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "amount")
		assert.Contains(t, fldErrs, "frequency")
	})

	t.Run("create unknown category is a validation error", func(t *testing.T) {
		body := marshallObj(t, map[string]interface{}{
			"category_id": "123e4567-e89b-12d3-a456-426614174000",
			"name":        "Tuition Fee",
			"amount":      5000,
			"frequency":   "per-term",
			"session":     "2021/2022",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/structures", token, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var fs fee.FeeStructure
	t.Run("create ok", func(t *testing.T) {
		body := marshallObj(t, fee.NewFeeStructure{
			CategoryID: cat.ID,
			Name:       "Tuition Fee",
			Amount:     5000,
			Frequency:  "per-term",
			Class:      "JSS 1",
			Session:    "2021/2022",
			Term:       "First Term",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/structures", token, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		decodeBody(t, rec, &fs)
		assert.True(t, fs.IsActive)
	})

	t.Run("assign", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/structures/"+fs.ID+"/assign", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"assigned_count":2,"skipped_count":0,"total_eligible":2}`, rec.Body.String())

		// idempotent
		req, rec = newAuthRequest(http.MethodPost, "/v1/fees/structures/"+fs.ID+"/assign", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"assigned_count":0,"skipped_count":2,"total_eligible":2}`, rec.Body.String())
	})

	t.Run("update with cascade query param", func(t *testing.T) {
		body := marshallObj(t, map[string]interface{}{"amount": 6000})
		req, rec := newAuthRequest(http.MethodPut, "/v1/fees/structures/"+fs.ID+"?cascade=true", token, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var updated fee.FeeStructure
		decodeBody(t, rec, &updated)
		assert.Equal(t, 6000.0, updated.Amount)
	})

	t.Run("archive then assign is 404", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/structures/"+fs.ID+"/archive", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		req, rec = newAuthRequest(http.MethodPost, "/v1/fees/structures/"+fs.ID+"/assign", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/structures?session=2021/2022", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var structs []fee.FeeStructure
		decodeBody(t, rec, &structs)
		assert.Len(t, structs, 1)
	})

	t.Run("other school sees nothing", func(t *testing.T) {
		otherToken := schoolToken(t, conf, "school2")
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/structures", otherToken)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/fees/structures/"+fs.ID, otherToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_payments(t *testing.T) {
	app, conf, db := setup(t)
	token := schoolToken(t, conf, "school1")

	feeRepo := dummydb.NewFeeRepository(db)
	sf, err := feeRepo.CreateStudentFee(context.Background(), fee.StudentFee{
		StudentID:      "st1",
		FeeStructureID: "fs1",
		AmountDue:      5000,
		Status:         fee.StatusPending,
		Session:        "2021/2022",
	})
	require.NoError(t, err)

	p := db.SeedPayment(payment.Payment{
		SchoolID:     "school1",
		StudentID:    "st1",
		StudentFeeID: sf.ID,
		Amount:       5000,
		Method:       payment.MethodBankTransfer,
		Reference:    "TRX-001",
		CreatedAt:    testClock,
	})

	t.Run("pending list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments?status=pending", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var page payment.Page
		decodeBody(t, rec, &page)
		assert.Equal(t, 1, page.Total)
		require.Len(t, page.Results, 1)
		assert.Equal(t, p.ID, page.Results[0].ID)
	})

	t.Run("verify", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/"+p.ID+"/verify", token, marshallObj(t, payment.VerifyPayment{Notes: "ok"}))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var res VerificationResult
		decodeBody(t, rec, &res)
		assert.Equal(t, payment.StatusVerified, res.Payment.Status)
		assert.Equal(t, fee.StatusPaid, res.StudentFee.Status)
		assert.Equal(t, 5000.0, res.StudentFee.AmountPaid)
	})

	t.Run("re-verify is a state error", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/"+p.ID+"/verify", token, marshallObj(t, payment.VerifyPayment{}))
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"payment already verified"}`, rec.Body.String())
	})

	t.Run("reject terminal payment is a state error", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/"+p.ID+"/reject", token, marshallObj(t, payment.RejectPayment{Reason: "lol"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		p2 := db.SeedPayment(payment.Payment{
			SchoolID:     "school1",
			StudentID:    "st1",
			StudentFeeID: sf.ID,
			Amount:       100,
			Method:       payment.MethodGateway,
			CreatedAt:    testClock,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/"+p2.ID+"/reject", token, marshallObj(t, payment.RejectPayment{}))
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		decodeBody(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "reason")
	})

	t.Run("unknown payment is 404", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/123e4567-e89b-12d3-a456-426614174000/verify", token, marshallObj(t, payment.VerifyPayment{}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("financial report", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/financial?session=2021/2022", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var rpt payment.Report
		decodeBody(t, rec, &rpt)
		assert.Equal(t, 5000.0, rpt.TotalIncome)
		assert.Equal(t, 0.0, rpt.Outstanding)
	})
}

func TestServer_bankAccounts(t *testing.T) {
	app, conf, _ := setup(t)
	token := schoolToken(t, conf, "school1")

	newAcc := func(number string, primary bool) []byte {
		return marshallObj(t, bank.NewBankAccount{
			BankName:      "Equity Bank",
			AccountName:   "School One",
			AccountNumber: number,
			IsPrimary:     primary,
		})
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/bank-accounts", token, newAcc("0012345678", true))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var acc bank.BankAccount
	decodeBody(t, rec, &acc)

	t.Run("duplicate is 409", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bank-accounts", token, newAcc("0012345678", false))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("account number must be numeric", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bank-accounts", token, newAcc("12-34", false))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("set primary", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bank-accounts", token, newAcc("0098765432", false))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var acc2 bank.BankAccount
		decodeBody(t, rec, &acc2)

		req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/bank-accounts/%s/primary", acc2.ID), token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/bank-accounts", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var accounts []bank.BankAccount
		decodeBody(t, rec, &accounts)
		for _, a := range accounts {
			assert.Equal(t, a.ID == acc2.ID, a.IsPrimary)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/bank-accounts/"+acc.ID, token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/bank-accounts/"+acc.ID, token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("expenses", func(t *testing.T) {
		body := marshallObj(t, bank.NewExpense{Category: "maintenance", Description: "generator repairs", Amount: 700})
		req, rec := newAuthRequest(http.MethodPost, "/v1/expenses", token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/expenses", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var expenses []bank.Expense
		decodeBody(t, rec, &expenses)
		assert.Len(t, expenses, 1)
	})
}
