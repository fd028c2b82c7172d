package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
)

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

type paymentRow struct {
	ID              string      `db:"id"`
	SchoolID        string      `db:"school_id"`
	StudentID       string      `db:"student_id"`
	StudentFeeID    string      `db:"student_fee_id"`
	Amount          float64     `db:"amount"`
	Method          string      `db:"payment_method"`
	Reference       string      `db:"reference"`
	BankName        null.String `db:"bank_name"`
	AccountName     null.String `db:"account_name"`
	Status          string      `db:"status"`
	VerifiedAt      null.Time   `db:"verified_at"`
	VerifiedBy      null.String `db:"verified_by"`
	RejectionReason null.String `db:"rejection_reason"`
	Notes           null.String `db:"notes"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (r paymentRow) toModel() payment.Payment {
	return payment.Payment{
		ID:              r.ID,
		SchoolID:        r.SchoolID,
		StudentID:       r.StudentID,
		StudentFeeID:    r.StudentFeeID,
		Amount:          r.Amount,
		Method:          r.Method,
		Reference:       r.Reference,
		BankName:        r.BankName,
		AccountName:     r.AccountName,
		Status:          payment.VerificationStatus(r.Status),
		VerifiedAt:      r.VerifiedAt,
		VerifiedBy:      r.VerifiedBy,
		RejectionReason: r.RejectionReason,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
	}
}

func (repo paymentRepository) GetPayment(ctx context.Context, schoolID, id string) (payment.Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return payment.Payment{}, payment.ErrNotFound
	}
	var row paymentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM payment WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, errors.Wrap(err, "finding payment")
	}
	return row.toModel(), nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, schoolID string, filter payment.QueryFilter) ([]payment.Payment, int, error) {
	where := ` FROM payment WHERE school_id = $1`
	args := []interface{}{schoolID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where += ` AND status = $` + itoa(len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where += ` AND student_id = $` + itoa(len(args))
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT COUNT(*)`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting payments")
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := `SELECT *` + where + ` ORDER BY created_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toModel())
	}
	return payments, total, nil
}

// lockPending loads the payment under a row lock and enforces the pending
// guard inside the transaction; the service-level guard only gives friendly
// errors, this one is authoritative.
func (repo paymentRepository) lockPending(ctx context.Context, tx *sqlx.Tx, paymentID string) (paymentRow, error) {
	var row paymentRow
	err := tx.GetContext(ctx, &row, `SELECT * FROM payment WHERE id = $1 FOR UPDATE`, paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return paymentRow{}, payment.ErrNotFound
		}
		return paymentRow{}, errors.Wrap(err, "locking payment")
	}
	if payment.VerificationStatus(row.Status) != payment.StatusPending {
		return paymentRow{}, payment.ErrNotPending
	}
	return row, nil
}

func appendNotes(current null.String, notes string) null.String {
	if notes == "" {
		return current
	}
	if current.Valid && current.String != "" {
		return null.StringFrom(current.String + "\n" + notes)
	}
	return null.StringFrom(notes)
}

func (repo paymentRepository) ApplyVerification(ctx context.Context, paymentID, verifiedBy, notes string, at time.Time) (payment.Payment, fee.StudentFee, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return payment.Payment{}, fee.StudentFee{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	row, err := repo.lockPending(ctx, tx, paymentID)
	if err != nil {
		return payment.Payment{}, fee.StudentFee{}, err
	}

	// lock the obligation so concurrent verifications serialize on it
	var sfRow studentFeeRow
	err = tx.GetContext(ctx, &sfRow, `SELECT * FROM student_fee WHERE id = $1 FOR UPDATE`, row.StudentFeeID)
	if err != nil {
		return payment.Payment{}, fee.StudentFee{}, errors.Wrap(err, "locking student fee")
	}

	row.Status = string(payment.StatusVerified)
	row.VerifiedAt = null.TimeFrom(at)
	row.VerifiedBy = null.StringFrom(verifiedBy)
	row.Notes = appendNotes(row.Notes, notes)

	_, err = tx.ExecContext(ctx,
		`UPDATE payment SET status = $1, verified_at = $2, verified_by = $3, notes = $4 WHERE id = $5`,
		row.Status, row.VerifiedAt, row.VerifiedBy, row.Notes, row.ID)
	if err != nil {
		return payment.Payment{}, fee.StudentFee{}, errors.Wrap(err, "updating payment")
	}

	sfRow.AmountPaid += row.Amount
	sfRow.Status = string(fee.StatusAfterPayment(sfRow.AmountPaid, sfRow.AmountDue, fee.Status(sfRow.Status)))
	sfRow.UpdatedAt = at

	_, err = tx.ExecContext(ctx,
		`UPDATE student_fee SET amount_paid = $1, status = $2, updated_at = $3 WHERE id = $4`,
		sfRow.AmountPaid, sfRow.Status, sfRow.UpdatedAt, sfRow.ID)
	if err != nil {
		return payment.Payment{}, fee.StudentFee{}, errors.Wrap(err, "crediting student fee")
	}

	if err = tx.Commit(); err != nil {
		return payment.Payment{}, fee.StudentFee{}, errors.Wrap(err, "committing transaction")
	}
	return row.toModel(), sfRow.toModel(), nil
}

func (repo paymentRepository) ApplyRejection(ctx context.Context, paymentID, rejectedBy, reason string, at time.Time) (payment.Payment, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	row, err := repo.lockPending(ctx, tx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}

	row.Status = string(payment.StatusRejected)
	row.VerifiedAt = null.TimeFrom(at)
	row.VerifiedBy = null.StringFrom(rejectedBy)
	row.RejectionReason = null.StringFrom(reason)

	_, err = tx.ExecContext(ctx,
		`UPDATE payment SET status = $1, verified_at = $2, verified_by = $3, rejection_reason = $4 WHERE id = $5`,
		row.Status, row.VerifiedAt, row.VerifiedBy, row.RejectionReason, row.ID)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}

	if err = tx.Commit(); err != nil {
		return payment.Payment{}, errors.Wrap(err, "committing transaction")
	}
	return row.toModel(), nil
}

func (repo paymentRepository) ReportFinancial(ctx context.Context, schoolID, session string) (payment.Report, error) {
	var rpt payment.Report

	incomeQ := `SELECT COALESCE(SUM(p.amount), 0)
	            FROM payment p
	            JOIN student_fee sf ON sf.id = p.student_fee_id
	            WHERE p.school_id = $1 AND p.status = 'verified'`
	pendingQ := `SELECT COUNT(*)
	             FROM payment p
	             JOIN student_fee sf ON sf.id = p.student_fee_id
	             WHERE p.school_id = $1 AND p.status = 'pending'`
	outstandingQ := `SELECT COALESCE(SUM(GREATEST(sf.amount_due - sf.amount_paid, 0)), 0)
	                 FROM student_fee sf
	                 JOIN fee_structure fs ON fs.id = sf.fee_structure_id
	                 WHERE fs.school_id = $1 AND sf.status <> 'paid'`
	expenseQ := `SELECT COALESCE(SUM(amount), 0) FROM expense WHERE school_id = $1`

	args := []interface{}{schoolID}
	if session != "" {
		args = append(args, session)
		incomeQ += ` AND sf.session = $2`
		pendingQ += ` AND sf.session = $2`
		outstandingQ += ` AND sf.session = $2`
	}

	if err := repo.db.GetContext(ctx, &rpt.TotalIncome, incomeQ, args...); err != nil {
		return payment.Report{}, errors.Wrap(err, "aggregating income")
	}
	if err := repo.db.GetContext(ctx, &rpt.PendingCount, pendingQ, args...); err != nil {
		return payment.Report{}, errors.Wrap(err, "counting pending payments")
	}
	if err := repo.db.GetContext(ctx, &rpt.Outstanding, outstandingQ, args...); err != nil {
		return payment.Report{}, errors.Wrap(err, "aggregating outstanding fees")
	}
	if err := repo.db.GetContext(ctx, &rpt.TotalExpenses, expenseQ, schoolID); err != nil {
		return payment.Report{}, errors.Wrap(err, "aggregating expenses")
	}
	return rpt, nil
}
