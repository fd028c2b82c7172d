package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/bank"
)

type bankRepository struct {
	db *sqlx.DB
}

var _ bank.Repository = (*bankRepository)(nil) // interface compliance check

func NewBankRepository(db *sqlx.DB) *bankRepository {
	return &bankRepository{db: db}
}

type (
	accountRow struct {
		ID            string    `db:"id"`
		SchoolID      string    `db:"school_id"`
		BankName      string    `db:"bank_name"`
		AccountName   string    `db:"account_name"`
		AccountNumber string    `db:"account_number"`
		IsPrimary     bool      `db:"is_primary"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}

	expenseRow struct {
		ID          string    `db:"id"`
		SchoolID    string    `db:"school_id"`
		Category    string    `db:"category"`
		Description string    `db:"description"`
		Amount      float64   `db:"amount"`
		IncurredOn  time.Time `db:"incurred_on"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
)

func (r accountRow) toModel() bank.BankAccount {
	return bank.BankAccount{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		BankName:      r.BankName,
		AccountName:   r.AccountName,
		AccountNumber: r.AccountNumber,
		IsPrimary:     r.IsPrimary,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r expenseRow) toModel() bank.Expense {
	return bank.Expense{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Category:    r.Category,
		Description: r.Description,
		Amount:      r.Amount,
		IncurredOn:  r.IncurredOn,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (repo bankRepository) CheckAccountUniqueness(ctx context.Context, schoolID, accountNumber string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM bank_account WHERE school_id = $1 AND account_number = $2)`,
		schoolID, accountNumber)
	if err != nil {
		return errors.Wrap(err, "checking bank account uniqueness")
	}
	if exists {
		return bank.ErrAccountExists
	}
	return nil
}

func (repo bankRepository) CreateAccount(ctx context.Context, acc bank.BankAccount) (bank.BankAccount, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return bank.BankAccount{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if acc.IsPrimary {
		if _, err = tx.ExecContext(ctx,
			`UPDATE bank_account SET is_primary = FALSE, updated_at = $1 WHERE school_id = $2 AND is_primary`,
			acc.UpdatedAt, acc.SchoolID); err != nil {
			return bank.BankAccount{}, errors.Wrap(err, "unsetting primary accounts")
		}
	}

	acc.ID = uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO bank_account (id, school_id, bank_name, account_name, account_number, is_primary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		acc.ID, acc.SchoolID, acc.BankName, acc.AccountName, acc.AccountNumber, acc.IsPrimary, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return bank.BankAccount{}, errors.Wrap(err, "inserting bank account")
	}

	if err = tx.Commit(); err != nil {
		return bank.BankAccount{}, errors.Wrap(err, "committing transaction")
	}
	return acc, nil
}

func (repo bankRepository) GetAccount(ctx context.Context, schoolID, id string) (bank.BankAccount, error) {
	if _, err := uuid.Parse(id); err != nil {
		return bank.BankAccount{}, bank.ErrAccountNotFound
	}
	var row accountRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM bank_account WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return bank.BankAccount{}, bank.ErrAccountNotFound
		}
		return bank.BankAccount{}, errors.Wrap(err, "finding bank account")
	}
	return row.toModel(), nil
}

func (repo bankRepository) QueryAccounts(ctx context.Context, schoolID string) ([]bank.BankAccount, error) {
	var rows []accountRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM bank_account WHERE school_id = $1 ORDER BY is_primary DESC, bank_name`, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying bank accounts")
	}
	accounts := make([]bank.BankAccount, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.toModel())
	}
	return accounts, nil
}

func (repo bankRepository) SetPrimaryAccount(ctx context.Context, schoolID, id string) (bank.BankAccount, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return bank.BankAccount{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		`UPDATE bank_account SET is_primary = FALSE, updated_at = now() WHERE school_id = $1 AND is_primary`,
		schoolID); err != nil {
		return bank.BankAccount{}, errors.Wrap(err, "unsetting primary accounts")
	}

	var row accountRow
	err = tx.GetContext(ctx, &row,
		`UPDATE bank_account SET is_primary = TRUE, updated_at = now()
		 WHERE school_id = $1 AND id = $2
		 RETURNING *`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return bank.BankAccount{}, bank.ErrAccountNotFound
		}
		return bank.BankAccount{}, errors.Wrap(err, "setting primary account")
	}

	if err = tx.Commit(); err != nil {
		return bank.BankAccount{}, errors.Wrap(err, "committing transaction")
	}
	return row.toModel(), nil
}

func (repo bankRepository) DeleteAccount(ctx context.Context, schoolID, id string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM bank_account WHERE school_id = $1 AND id = $2`, schoolID, id)
	return errors.Wrap(err, "deleting bank account")
}

func (repo bankRepository) CreateExpense(ctx context.Context, exp bank.Expense) (bank.Expense, error) {
	exp.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO expense (id, school_id, category, description, amount, incurred_on, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		exp.ID, exp.SchoolID, exp.Category, exp.Description, exp.Amount, exp.IncurredOn, exp.CreatedAt, exp.UpdatedAt)
	if err != nil {
		return bank.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return exp, nil
}

func (repo bankRepository) QueryExpenses(ctx context.Context, schoolID string) ([]bank.Expense, error) {
	var rows []expenseRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM expense WHERE school_id = $1 ORDER BY incurred_on DESC`, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying expenses")
	}
	expenses := make([]bank.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, row.toModel())
	}
	return expenses, nil
}

func (repo bankRepository) DeleteExpense(ctx context.Context, schoolID, id string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM expense WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		return errors.Wrap(err, "deleting expense")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bank.ErrExpenseNotFound
	}
	return nil
}
