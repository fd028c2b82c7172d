package payment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
)

var (
	// errors
	ErrNotFound   = errors.New("payment not found")
	ErrNotPending = errors.New("payment is not pending")
)

type (
	Repository interface {
		GetPayment(ctx context.Context, schoolID, id string) (Payment, error)
		// QueryPayments returns one page of matching payments plus the total
		// match count.
		QueryPayments(ctx context.Context, schoolID string, filter QueryFilter) ([]Payment, int, error)
		// ApplyVerification marks the payment verified and credits its
		// StudentFee (AmountPaid += Amount, status recomputed via
		// fee.StatusAfterPayment), all in one transaction holding a row lock
		// on the StudentFee. The pending guard is re-checked inside the
		// transaction; ErrNotPending is returned when a concurrent caller won.
		ApplyVerification(ctx context.Context, paymentID, verifiedBy, notes string, at time.Time) (Payment, fee.StudentFee, error)
		// ApplyRejection marks the payment rejected with the given reason.
		// Same in-transaction pending guard as ApplyVerification. The
		// StudentFee is not touched.
		ApplyRejection(ctx context.Context, paymentID, rejectedBy, reason string, at time.Time) (Payment, error)
		// ReportFinancial aggregates verified income, expenses and outstanding
		// student fees for a school, optionally narrowed to one session.
		ReportFinancial(ctx context.Context, schoolID, session string) (Report, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
		now    func() time.Time // mockable
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// pendingGuard fails with a StateError naming the payment's terminal status.
// Re-invoking verification on a terminal payment is an error, not a no-op.
func pendingGuard(p Payment) error {
	if p.Status != StatusPending {
		return core.NewStateError(errors.Errorf("payment already %s", p.Status))
	}
	return nil
}

// Verify transitions a pending payment to verified and credits the associated
// StudentFee. The state change and the credit are all-or-nothing.
func (svc *Service) Verify(ctx context.Context, auth core.AuthContext, paymentID string, vp VerifyPayment) (Payment, fee.StudentFee, error) {
	p, err := svc.repo.GetPayment(ctx, auth.SchoolID, paymentID)
	if err != nil {
		return Payment{}, fee.StudentFee{}, err
	}
	if err = pendingGuard(p); err != nil {
		return Payment{}, fee.StudentFee{}, err
	}

	p, sf, err := svc.repo.ApplyVerification(ctx, p.ID, auth.Email, vp.Notes, svc.now())
	if err != nil {
		if errors.Cause(err) == ErrNotPending {
			// lost the race to another admin
			return Payment{}, fee.StudentFee{}, core.NewStateError(ErrNotPending)
		}
		return Payment{}, fee.StudentFee{}, errors.Wrap(err, "applying verification")
	}
	return p, sf, nil
}

// Reject transitions a pending payment to rejected. No StudentFee mutation.
func (svc *Service) Reject(ctx context.Context, auth core.AuthContext, paymentID string, rp RejectPayment) (Payment, error) {
	if rp.Reason == "" {
		return Payment{}, core.NewValidationError(errors.New("a rejection reason is required"),
			core.FieldError{Field: "reason", Error: "this field is required"})
	}

	p, err := svc.repo.GetPayment(ctx, auth.SchoolID, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if err = pendingGuard(p); err != nil {
		return Payment{}, err
	}

	p, err = svc.repo.ApplyRejection(ctx, p.ID, auth.Email, rp.Reason, svc.now())
	if err != nil {
		if errors.Cause(err) == ErrNotPending {
			return Payment{}, core.NewStateError(ErrNotPending)
		}
		return Payment{}, errors.Wrap(err, "applying rejection")
	}
	return p, nil
}

func (svc *Service) Query(ctx context.Context, auth core.AuthContext, filter QueryFilter) (Page, error) {
	filter.Clean()
	results, total, err := svc.repo.QueryPayments(ctx, auth.SchoolID, filter)
	if err != nil {
		return Page{}, err
	}
	if results == nil {
		results = []Payment{}
	}
	return Page{Results: results, Total: total, Page: filter.Pagination.Page, PageSize: filter.Pagination.PageSize}, nil
}

func (svc *Service) FinancialReport(ctx context.Context, auth core.AuthContext, session string) (Report, error) {
	return svc.repo.ReportFinancial(ctx, auth.SchoolID, core.CleanString(session))
}
