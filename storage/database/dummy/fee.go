package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateCategory(_ context.Context, cat fee.FeeCategory) (fee.FeeCategory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cat.ID = uuid.New().String()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *feeRepository) GetCategory(_ context.Context, schoolID, id string) (fee.FeeCategory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cat, ok := repo.db.categories[id]; ok && cat.SchoolID == schoolID {
		return *cat, nil
	}
	return fee.FeeCategory{}, fee.ErrCategoryNotFound
}

func (repo *feeRepository) QueryCategories(_ context.Context, schoolID string) ([]fee.FeeCategory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cats []fee.FeeCategory
	for _, cat := range repo.db.categories {
		if cat.SchoolID == schoolID {
			cats = append(cats, *cat)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *feeRepository) CreateStructure(_ context.Context, fs fee.FeeStructure) (fee.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fs.ID = uuid.New().String()
	repo.db.structures[fs.ID] = &fs
	return fs, nil
}

func (repo *feeRepository) GetStructure(_ context.Context, schoolID, id string) (fee.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fs, ok := repo.db.structures[id]; ok && fs.SchoolID == schoolID {
		return *fs, nil
	}
	return fee.FeeStructure{}, fee.ErrNotFound
}

func (repo *feeRepository) QueryStructures(_ context.Context, schoolID string, filter fee.QueryFilter) ([]fee.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var structs []fee.FeeStructure
	for _, fs := range repo.db.structures {
		if fs.SchoolID != schoolID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(fs.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Session != "" && fs.Session != filter.Session {
			continue
		}
		if filter.IsActive != nil && fs.IsActive != *filter.IsActive {
			continue
		}
		structs = append(structs, *fs)
	}
	sort.Slice(structs, func(i, j int) bool { return structs[i].CreatedAt.After(structs[j].CreatedAt) })
	return structs, nil
}

func (repo *feeRepository) UpdateStructure(_ context.Context, fs fee.FeeStructure, cascadeAmount bool) (fee.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.structures[fs.ID]; !ok {
		return fee.FeeStructure{}, fee.ErrNotFound
	}
	repo.db.structures[fs.ID] = &fs

	if cascadeAmount {
		for _, sf := range repo.db.studentFees {
			if sf.FeeStructureID == fs.ID && sf.AmountPaid == 0 {
				sf.AmountDue = fs.Amount
				sf.UpdatedAt = fs.UpdatedAt
			}
		}
	}
	return fs, nil
}

func (repo *feeRepository) SetStructureActive(_ context.Context, schoolID, id string, active bool) (fee.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fs, ok := repo.db.structures[id]
	if !ok || fs.SchoolID != schoolID {
		return fee.FeeStructure{}, fee.ErrNotFound
	}
	fs.IsActive = active
	return *fs, nil
}

func (repo *feeRepository) StructureHasPayments(_ context.Context, structureID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.payments {
		if sf, ok := repo.db.studentFees[p.StudentFeeID]; ok && sf.FeeStructureID == structureID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *feeRepository) DeleteStructure(_ context.Context, structureID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, sf := range repo.db.studentFees {
		if sf.FeeStructureID == structureID {
			delete(repo.db.studentFees, id)
		}
	}
	delete(repo.db.structures, structureID)
	return nil
}

func (repo *feeRepository) StudentFeeExists(_ context.Context, studentID, structureID, session, term string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sf := range repo.db.studentFees {
		if sf.StudentID == studentID && sf.FeeStructureID == structureID && sf.Session == session && sf.Term == term {
			return true, nil
		}
	}
	return false, nil
}

func (repo *feeRepository) CreateStudentFee(_ context.Context, sf fee.StudentFee) (fee.StudentFee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sf.ID = uuid.New().String()
	repo.db.studentFees[sf.ID] = &sf
	return sf, nil
}

func (repo *feeRepository) QueryStudentFees(_ context.Context, structureID string) ([]fee.StudentFee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var fees []fee.StudentFee
	for _, sf := range repo.db.studentFees {
		if sf.FeeStructureID == structureID {
			fees = append(fees, *sf)
		}
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].CreatedAt.Before(fees[j].CreatedAt) })
	return fees, nil
}
