package fee

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/student"
)

var (
	// errors
	ErrNotFound         = errors.New("fee structure not found or archived")
	ErrCategoryNotFound = errors.New("fee category not found")
	ErrHasPayments      = errors.New("fee structure has recorded payments and cannot be deleted")
	ErrScopeConflict    = errors.New("student_id and class are mutually exclusive")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat FeeCategory) (FeeCategory, error)
		GetCategory(ctx context.Context, schoolID, id string) (FeeCategory, error)
		QueryCategories(ctx context.Context, schoolID string) ([]FeeCategory, error)

		CreateStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error)
		// GetStructure returns the structure regardless of its IsActive flag;
		// callers decide whether archived structures are acceptable.
		GetStructure(ctx context.Context, schoolID, id string) (FeeStructure, error)
		QueryStructures(ctx context.Context, schoolID string, filter QueryFilter) ([]FeeStructure, error)
		// UpdateStructure persists fs. When cascadeAmount is set, fs.Amount is
		// also applied to linked StudentFees with AmountPaid == 0, within the
		// same transaction.
		UpdateStructure(ctx context.Context, fs FeeStructure, cascadeAmount bool) (FeeStructure, error)
		SetStructureActive(ctx context.Context, schoolID, id string, active bool) (FeeStructure, error)
		// StructureHasPayments reports whether any Payment references the
		// structure transitively through its StudentFees.
		StructureHasPayments(ctx context.Context, structureID string) (bool, error)
		// DeleteStructure deletes the structure's orphaned StudentFees then the
		// structure itself, in one transaction.
		DeleteStructure(ctx context.Context, structureID string) error

		StudentFeeExists(ctx context.Context, studentID, structureID, session, term string) (bool, error)
		CreateStudentFee(ctx context.Context, sf StudentFee) (StudentFee, error)
		QueryStudentFees(ctx context.Context, structureID string) ([]StudentFee, error)
	}

	Service struct {
		repo     Repository
		students student.Repository
		notifier core.Notifier
		logger   core.Logger
		now      func() time.Time // mockable
	}
)

func NewService(repo Repository, students student.Repository, notifier core.Notifier, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		students: students,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) CreateCategory(ctx context.Context, auth core.AuthContext, nc NewFeeCategory) (FeeCategory, error) {
	now := svc.now()
	return svc.repo.CreateCategory(ctx, FeeCategory{
		SchoolID:    auth.SchoolID,
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryCategories(ctx context.Context, auth core.AuthContext) ([]FeeCategory, error) {
	return svc.repo.QueryCategories(ctx, auth.SchoolID)
}

// checkOwnership ensures the referenced category and (if set) student belong
// to the caller's school before a structure write goes through.
func (svc *Service) checkOwnership(ctx context.Context, auth core.AuthContext, categoryID, studentID string) error {
	if _, err := svc.repo.GetCategory(ctx, auth.SchoolID, categoryID); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
		}
		return err
	}
	if studentID != "" {
		if _, err := svc.students.GetStudent(ctx, auth.SchoolID, studentID); err != nil {
			if errors.Is(err, student.ErrNotFound) {
				return core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
			}
			return err
		}
	}
	return nil
}

func (svc *Service) CreateStructure(ctx context.Context, auth core.AuthContext, nf NewFeeStructure) (FeeStructure, error) {
	if err := svc.checkOwnership(ctx, auth, nf.CategoryID, nf.StudentID); err != nil {
		return FeeStructure{}, err
	}

	now := svc.now()
	fs := FeeStructure{
		SchoolID:    auth.SchoolID,
		CategoryID:  nf.CategoryID,
		Name:        nf.Name,
		Amount:      nf.Amount,
		Frequency:   Frequency(nf.Frequency),
		IsMandatory: nf.IsMandatory,
		IsActive:    true,
		Session:     nf.Session,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nf.StudentID != "" {
		fs.StudentID = nullStr(nf.StudentID)
	}
	if nf.Class != "" {
		fs.Class = nullStr(nf.Class)
	}
	if nf.Term != "" {
		fs.Term = nullStr(nf.Term)
	}
	return svc.repo.CreateStructure(ctx, fs)
}

func (svc *Service) GetStructure(ctx context.Context, auth core.AuthContext, id string) (FeeStructure, error) {
	return svc.repo.GetStructure(ctx, auth.SchoolID, id)
}

func (svc *Service) QueryStructures(ctx context.Context, auth core.AuthContext, filter QueryFilter) ([]FeeStructure, error) {
	return svc.repo.QueryStructures(ctx, auth.SchoolID, filter)
}

func (svc *Service) UpdateStructure(ctx context.Context, auth core.AuthContext, id string, uf UpdateFeeStructure) (FeeStructure, error) {
	fs, err := svc.repo.GetStructure(ctx, auth.SchoolID, id)
	if err != nil {
		return FeeStructure{}, err
	}

	if uf.CategoryID != "" {
		fs.CategoryID = uf.CategoryID
	}
	if uf.Name != "" {
		fs.Name = uf.Name
	}
	if uf.Amount != nil {
		fs.Amount = *uf.Amount
	}
	if uf.Frequency != "" {
		fs.Frequency = Frequency(uf.Frequency)
	}
	if uf.IsMandatory != nil {
		fs.IsMandatory = *uf.IsMandatory
	}
	if uf.Session != "" {
		fs.Session = uf.Session
	}
	if uf.StudentID != nil {
		fs.StudentID = nullStr(*uf.StudentID)
	}
	if uf.Class != nil {
		fs.Class = nullStr(*uf.Class)
	}
	if uf.Term != nil {
		fs.Term = nullStr(*uf.Term)
	}

	// the merged state must still target at most one of student/class
	if fs.StudentID.Valid && fs.Class.Valid {
		return FeeStructure{}, core.NewValidationError(ErrScopeConflict,
			core.FieldError{Field: "student_id", Error: ErrScopeConflict.Error()},
			core.FieldError{Field: "class", Error: ErrScopeConflict.Error()},
		)
	}

	if err = svc.checkOwnership(ctx, auth, fs.CategoryID, fs.StudentID.String); err != nil {
		return FeeStructure{}, err
	}

	fs.UpdatedAt = svc.now()
	return svc.repo.UpdateStructure(ctx, fs, uf.CascadeAmount)
}

// ArchiveStructure stops future assignment of the structure; already-assigned
// StudentFees remain collectable.
func (svc *Service) ArchiveStructure(ctx context.Context, auth core.AuthContext, id string) (FeeStructure, error) {
	return svc.repo.SetStructureActive(ctx, auth.SchoolID, id, false)
}

func (svc *Service) UnarchiveStructure(ctx context.Context, auth core.AuthContext, id string) (FeeStructure, error) {
	return svc.repo.SetStructureActive(ctx, auth.SchoolID, id, true)
}

// DeleteStructure hard-deletes a structure and its orphaned StudentFees.
// It is blocked entirely while any Payment references the structure.
func (svc *Service) DeleteStructure(ctx context.Context, auth core.AuthContext, id string) error {
	fs, err := svc.repo.GetStructure(ctx, auth.SchoolID, id)
	if err != nil {
		return err
	}
	hasPayments, err := svc.repo.StructureHasPayments(ctx, fs.ID)
	if err != nil {
		return err
	}
	if hasPayments {
		return core.NewStateError(ErrHasPayments)
	}
	return svc.repo.DeleteStructure(ctx, fs.ID)
}
