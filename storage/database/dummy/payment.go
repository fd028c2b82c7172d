package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) GetPayment(_ context.Context, schoolID, id string) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.payments[id]; ok && p.SchoolID == schoolID {
		return *p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, schoolID string, filter payment.QueryFilter) ([]payment.Payment, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []payment.Payment
	for _, p := range repo.db.payments {
		if p.SchoolID != schoolID {
			continue
		}
		if filter.Status != "" && string(p.Status) != filter.Status {
			continue
		}
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		matches = append(matches, *p)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	total := len(matches)
	offset := filter.Offset()
	if offset >= total {
		return nil, total, nil
	}
	end := offset + filter.PageSize
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func (repo *paymentRepository) ApplyVerification(_ context.Context, paymentID, verifiedBy, notes string, at time.Time) (payment.Payment, fee.StudentFee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.payments[paymentID]
	if !ok {
		return payment.Payment{}, fee.StudentFee{}, payment.ErrNotFound
	}
	if p.Status != payment.StatusPending {
		return payment.Payment{}, fee.StudentFee{}, payment.ErrNotPending
	}
	sf, ok := repo.db.studentFees[p.StudentFeeID]
	if !ok {
		return payment.Payment{}, fee.StudentFee{}, fee.ErrNotFound
	}

	p.Status = payment.StatusVerified
	p.VerifiedAt = null.TimeFrom(at)
	p.VerifiedBy = null.StringFrom(verifiedBy)
	if notes != "" {
		if p.Notes.Valid && p.Notes.String != "" {
			p.Notes = null.StringFrom(p.Notes.String + "\n" + notes)
		} else {
			p.Notes = null.StringFrom(notes)
		}
	}

	sf.AmountPaid += p.Amount
	sf.Status = fee.StatusAfterPayment(sf.AmountPaid, sf.AmountDue, sf.Status)
	sf.UpdatedAt = at

	return *p, *sf, nil
}

func (repo *paymentRepository) ApplyRejection(_ context.Context, paymentID, rejectedBy, reason string, at time.Time) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.payments[paymentID]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	if p.Status != payment.StatusPending {
		return payment.Payment{}, payment.ErrNotPending
	}

	p.Status = payment.StatusRejected
	p.VerifiedAt = null.TimeFrom(at)
	p.VerifiedBy = null.StringFrom(rejectedBy)
	p.RejectionReason = null.StringFrom(reason)
	return *p, nil
}

func (repo *paymentRepository) ReportFinancial(_ context.Context, schoolID, session string) (payment.Report, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rpt payment.Report
	for _, p := range repo.db.payments {
		if p.SchoolID != schoolID {
			continue
		}
		sf, ok := repo.db.studentFees[p.StudentFeeID]
		if !ok || (session != "" && sf.Session != session) {
			continue
		}
		switch p.Status {
		case payment.StatusVerified:
			rpt.TotalIncome += p.Amount
		case payment.StatusPending:
			rpt.PendingCount++
		}
	}
	for _, sf := range repo.db.studentFees {
		fs, ok := repo.db.structures[sf.FeeStructureID]
		if !ok || fs.SchoolID != schoolID || sf.Status == fee.StatusPaid {
			continue
		}
		if session != "" && sf.Session != session {
			continue
		}
		if rem := sf.AmountDue - sf.AmountPaid; rem > 0 {
			rpt.Outstanding += rem
		}
	}
	for _, e := range repo.db.expenses {
		if e.SchoolID == schoolID {
			rpt.TotalExpenses += e.Amount
		}
	}
	return rpt, nil
}
