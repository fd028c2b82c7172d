package bank

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/karo/core"
)

var (
	// errors
	ErrAccountNotFound = errors.New("bank account not found")
	ErrAccountExists   = errors.New("a bank account with this account number already exists")
	ErrExpenseNotFound = errors.New("expense not found")
)

type (
	Repository interface {
		// CheckAccountUniqueness fails with ErrAccountExists when the school
		// already has an account with this number.
		CheckAccountUniqueness(ctx context.Context, schoolID, accountNumber string) error
		// CreateAccount inserts acc; when acc.IsPrimary, other accounts of the
		// school are unset in the same transaction.
		CreateAccount(ctx context.Context, acc BankAccount) (BankAccount, error)
		GetAccount(ctx context.Context, schoolID, id string) (BankAccount, error)
		QueryAccounts(ctx context.Context, schoolID string) ([]BankAccount, error)
		// SetPrimaryAccount unsets every other primary account of the school
		// and sets this one, in one transaction.
		SetPrimaryAccount(ctx context.Context, schoolID, id string) (BankAccount, error)
		DeleteAccount(ctx context.Context, schoolID, id string) error

		CreateExpense(ctx context.Context, exp Expense) (Expense, error)
		QueryExpenses(ctx context.Context, schoolID string) ([]Expense, error)
		DeleteExpense(ctx context.Context, schoolID, id string) error
	}

	Service struct {
		repo Repository
		now  func() time.Time // mockable
	}
)

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) CreateAccount(ctx context.Context, auth core.AuthContext, na NewBankAccount) (BankAccount, error) {
	if err := svc.repo.CheckAccountUniqueness(ctx, auth.SchoolID, na.AccountNumber); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return BankAccount{}, core.NewConflictError(err)
		}
		return BankAccount{}, err
	}

	now := svc.now()
	return svc.repo.CreateAccount(ctx, BankAccount{
		SchoolID:      auth.SchoolID,
		BankName:      na.BankName,
		AccountName:   na.AccountName,
		AccountNumber: na.AccountNumber,
		IsPrimary:     na.IsPrimary,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) QueryAccounts(ctx context.Context, auth core.AuthContext) ([]BankAccount, error) {
	return svc.repo.QueryAccounts(ctx, auth.SchoolID)
}

func (svc *Service) SetPrimaryAccount(ctx context.Context, auth core.AuthContext, id string) (BankAccount, error) {
	if _, err := svc.repo.GetAccount(ctx, auth.SchoolID, id); err != nil {
		return BankAccount{}, err
	}
	return svc.repo.SetPrimaryAccount(ctx, auth.SchoolID, id)
}

func (svc *Service) DeleteAccount(ctx context.Context, auth core.AuthContext, id string) error {
	if _, err := svc.repo.GetAccount(ctx, auth.SchoolID, id); err != nil {
		return err
	}
	return svc.repo.DeleteAccount(ctx, auth.SchoolID, id)
}

func (svc *Service) CreateExpense(ctx context.Context, auth core.AuthContext, ne NewExpense) (Expense, error) {
	now := svc.now()
	incurred := ne.IncurredOn
	if incurred.IsZero() {
		incurred = now
	}
	return svc.repo.CreateExpense(ctx, Expense{
		SchoolID:    auth.SchoolID,
		Category:    ne.Category,
		Description: ne.Description,
		Amount:      ne.Amount,
		IncurredOn:  incurred,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryExpenses(ctx context.Context, auth core.AuthContext) ([]Expense, error) {
	return svc.repo.QueryExpenses(ctx, auth.SchoolID)
}

func (svc *Service) DeleteExpense(ctx context.Context, auth core.AuthContext, id string) error {
	return svc.repo.DeleteExpense(ctx, auth.SchoolID, id)
}
