package student

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("student not found")

type Student struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Guardian is a parent/guardian contact attached to a Student.
// Fee notices go to primary guardians only.
type Guardian struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsPrimary bool   `json:"is_primary"`
}

type Repository interface {
	GetStudent(ctx context.Context, schoolID, id string) (Student, error)
	// QueryStudents returns all students of a school; when class is non-empty,
	// only students whose class matches it exactly or after whitespace trimming.
	// Stored class names are known to carry stray whitespace.
	QueryStudents(ctx context.Context, schoolID, class string) ([]Student, error)
	// QueryPrimaryGuardians returns the primary-flagged guardians of a student.
	QueryPrimaryGuardians(ctx context.Context, studentID string) ([]Guardian, error)
}
