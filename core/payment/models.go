package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
)

// VerificationStatus of a Payment. pending is initial; verified and rejected
// are terminal: once set, a payment never re-transitions.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

func (s VerificationStatus) IsValid() bool {
	return s == StatusPending || s == StatusVerified || s == StatusRejected
}

func (s VerificationStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Methods of payment recorded in the ledger.
const (
	MethodBankTransfer = "bank_transfer"
	MethodGateway      = "gateway"
)

// Payment is a ledger entry: money reported against a StudentFee, awaiting
// admin verification. Created by the payment-submission flow; mutated exactly
// once, by the verification engine.
type Payment struct {
	ID              string             `json:"id"`
	SchoolID        string             `json:"school_id"`
	StudentID       string             `json:"student_id"`
	StudentFeeID    string             `json:"student_fee_id"`
	Amount          float64            `json:"amount"`
	Method          string             `json:"payment_method"`
	Reference       string             `json:"reference,omitempty"`
	BankName        null.String        `json:"bank_name,omitempty"`
	AccountName     null.String        `json:"account_name,omitempty"`
	Status          VerificationStatus `json:"verification_status"`
	VerifiedAt      null.Time          `json:"verified_at,omitempty"`
	VerifiedBy      null.String        `json:"verified_by,omitempty"`
	RejectionReason null.String        `json:"rejection_reason,omitempty"`
	Notes           null.String        `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"` // UTC
}

// VerifyPayment is the request body of a verification.
type VerifyPayment struct {
	Notes string `json:"notes"`
}

func (vp *VerifyPayment) Validate(validate *validator.Validate) error {
	vp.Notes = core.CleanString(vp.Notes)
	return validate.Struct(vp)
}

// RejectPayment is the request body of a rejection. A reason is mandatory.
type RejectPayment struct {
	Reason string `json:"reason" validate:"required"`
}

func (rp *RejectPayment) Validate(validate *validator.Validate) error {
	rp.Reason = core.CleanString(rp.Reason)
	return validate.Struct(rp)
}

// QueryFilter filters Payment list queries.
type QueryFilter struct {
	Status    string `query:"status"`
	StudentID string `query:"student_id"`
	core.Pagination
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Pagination.Clean()
}

// Page is one page of Payment results.
type Page struct {
	Results  []Payment `json:"results"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// Report is the school-wide financial summary: verified income, recorded
// expenses, outstanding obligations and the pending-verification backlog.
type Report struct {
	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`
	Outstanding   float64 `json:"outstanding"`
	PendingCount  int     `json:"pending_count"`
}
