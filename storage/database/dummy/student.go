package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/karo/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.students[id]; ok && st.SchoolID == schoolID {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, schoolID, class string) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	class = strings.TrimSpace(class)
	var students []student.Student
	for _, st := range repo.db.students {
		if st.SchoolID != schoolID {
			continue
		}
		if class != "" && st.Class != class && strings.TrimSpace(st.Class) != class {
			continue
		}
		students = append(students, *st)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) QueryPrimaryGuardians(_ context.Context, studentID string) ([]student.Guardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var guardians []student.Guardian
	for _, g := range repo.db.guardians {
		if g.StudentID == studentID && g.IsPrimary {
			guardians = append(guardians, *g)
		}
	}
	sort.Slice(guardians, func(i, j int) bool { return guardians[i].Name < guardians[j].Name })
	return guardians, nil
}
