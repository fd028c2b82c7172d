// Package dummydb provides in-memory repository implementations for tests.
package dummydb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core/bank"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
	"github.com/trezcool/karo/core/student"
)

type DB struct {
	sync.RWMutex

	students    map[string]*student.Student
	guardians   map[string]*student.Guardian
	categories  map[string]*fee.FeeCategory
	structures  map[string]*fee.FeeStructure
	studentFees map[string]*fee.StudentFee
	payments    map[string]*payment.Payment
	accounts    map[string]*bank.BankAccount
	expenses    map[string]*bank.Expense
}

func Open() (*DB, error) {
	return &DB{
		students:    make(map[string]*student.Student),
		guardians:   make(map[string]*student.Guardian),
		categories:  make(map[string]*fee.FeeCategory),
		structures:  make(map[string]*fee.FeeStructure),
		studentFees: make(map[string]*fee.StudentFee),
		payments:    make(map[string]*payment.Payment),
		accounts:    make(map[string]*bank.BankAccount),
		expenses:    make(map[string]*bank.Expense),
	}, nil
}

// Seed helpers; students, guardians and payments are created by out-of-scope
// flows in production, tests plant them directly.

func (db *DB) SeedStudent(st student.Student) student.Student {
	db.Lock()
	defer db.Unlock()
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	db.students[st.ID] = &st
	return st
}

func (db *DB) SeedGuardian(g student.Guardian) student.Guardian {
	db.Lock()
	defer db.Unlock()
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	db.guardians[g.ID] = &g
	return g
}

func (db *DB) SeedPayment(p payment.Payment) payment.Payment {
	db.Lock()
	defer db.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = payment.StatusPending
	}
	db.payments[p.ID] = &p
	return p
}

func (db *DB) GetStudentFee(id string) (fee.StudentFee, bool) {
	db.RLock()
	defer db.RUnlock()
	if sf, ok := db.studentFees[id]; ok {
		return *sf, true
	}
	return fee.StudentFee{}, false
}

func (db *DB) GetPayment(id string) (payment.Payment, bool) {
	db.RLock()
	defer db.RUnlock()
	if p, ok := db.payments[id]; ok {
		return *p, true
	}
	return payment.Payment{}, false
}
