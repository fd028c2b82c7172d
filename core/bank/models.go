package bank

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/karo/core"
)

// BankAccount is a settlement account of a school. Exactly one account per
// school is primary; setting one unsets the others.
type BankAccount struct {
	ID            string    `json:"id"`
	SchoolID      string    `json:"school_id"`
	BankName      string    `json:"bank_name"`
	AccountName   string    `json:"account_name"`
	AccountNumber string    `json:"account_number"`
	IsPrimary     bool      `json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// Expense is a school expenditure record feeding the financial report.
type Expense struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	IncurredOn  time.Time `json:"incurred_on"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewBankAccount contains information needed to create a new BankAccount.
type NewBankAccount struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,numeric"`
	IsPrimary     bool   `json:"is_primary"`
}

func (na *NewBankAccount) Validate(validate *validator.Validate) error {
	na.BankName = core.CleanString(na.BankName)
	na.AccountName = core.CleanString(na.AccountName)
	na.AccountNumber = core.CleanString(na.AccountNumber)
	return validate.Struct(na)
}

// NewExpense contains information needed to record a new Expense.
type NewExpense struct {
	Category    string    `json:"category" validate:"required"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount" validate:"gte=0"`
	IncurredOn  time.Time `json:"incurred_on"`
}

func (ne *NewExpense) Validate(validate *validator.Validate) error {
	ne.Category = core.CleanString(ne.Category)
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}
