package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core/bank"
)

type bankRepository struct {
	db *DB
}

var _ bank.Repository = (*bankRepository)(nil) // interface compliance check

func NewBankRepository(db *DB) *bankRepository {
	return &bankRepository{db: db}
}

func (repo *bankRepository) CheckAccountUniqueness(_ context.Context, schoolID, accountNumber string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acc := range repo.db.accounts {
		if acc.SchoolID == schoolID && acc.AccountNumber == accountNumber {
			return bank.ErrAccountExists
		}
	}
	return nil
}

func (repo *bankRepository) CreateAccount(_ context.Context, acc bank.BankAccount) (bank.BankAccount, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if acc.IsPrimary {
		for _, other := range repo.db.accounts {
			if other.SchoolID == acc.SchoolID {
				other.IsPrimary = false
			}
		}
	}
	acc.ID = uuid.New().String()
	repo.db.accounts[acc.ID] = &acc
	return acc, nil
}

func (repo *bankRepository) GetAccount(_ context.Context, schoolID, id string) (bank.BankAccount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acc, ok := repo.db.accounts[id]; ok && acc.SchoolID == schoolID {
		return *acc, nil
	}
	return bank.BankAccount{}, bank.ErrAccountNotFound
}

func (repo *bankRepository) QueryAccounts(_ context.Context, schoolID string) ([]bank.BankAccount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var accounts []bank.BankAccount
	for _, acc := range repo.db.accounts {
		if acc.SchoolID == schoolID {
			accounts = append(accounts, *acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].BankName < accounts[j].BankName })
	return accounts, nil
}

func (repo *bankRepository) SetPrimaryAccount(_ context.Context, schoolID, id string) (bank.BankAccount, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	acc, ok := repo.db.accounts[id]
	if !ok || acc.SchoolID != schoolID {
		return bank.BankAccount{}, bank.ErrAccountNotFound
	}
	for _, other := range repo.db.accounts {
		if other.SchoolID == schoolID {
			other.IsPrimary = false
		}
	}
	acc.IsPrimary = true
	return *acc, nil
}

func (repo *bankRepository) DeleteAccount(_ context.Context, schoolID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if acc, ok := repo.db.accounts[id]; ok && acc.SchoolID == schoolID {
		delete(repo.db.accounts, id)
		return nil
	}
	return bank.ErrAccountNotFound
}

func (repo *bankRepository) CreateExpense(_ context.Context, exp bank.Expense) (bank.Expense, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	exp.ID = uuid.New().String()
	repo.db.expenses[exp.ID] = &exp
	return exp, nil
}

func (repo *bankRepository) QueryExpenses(_ context.Context, schoolID string) ([]bank.Expense, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var expenses []bank.Expense
	for _, exp := range repo.db.expenses {
		if exp.SchoolID == schoolID {
			expenses = append(expenses, *exp)
		}
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].IncurredOn.After(expenses[j].IncurredOn) })
	return expenses, nil
}

func (repo *bankRepository) DeleteExpense(_ context.Context, schoolID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if exp, ok := repo.db.expenses[id]; ok && exp.SchoolID == schoolID {
		delete(repo.db.expenses, id)
		return nil
	}
	return bank.ErrExpenseNotFound
}
