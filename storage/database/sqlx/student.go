package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

type (
	studentRow struct {
		ID        string    `db:"id"`
		SchoolID  string    `db:"school_id"`
		Name      string    `db:"name"`
		Class     string    `db:"class"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	guardianRow struct {
		ID        string `db:"id"`
		StudentID string `db:"student_id"`
		Name      string `db:"name"`
		Email     string `db:"email"`
		IsPrimary bool   `db:"is_primary"`
	}
)

func (r studentRow) toModel() student.Student {
	return student.Student{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Name:      r.Name,
		Class:     r.Class,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (repo studentRepository) GetStudent(ctx context.Context, schoolID, id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM student WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	return row.toModel(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, schoolID, class string) ([]student.Student, error) {
	query := `SELECT * FROM student WHERE school_id = $1`
	args := []interface{}{schoolID}
	if class != "" {
		// stored class names are known to carry stray whitespace
		args = append(args, strings.TrimSpace(class))
		query += ` AND (class = $2 OR TRIM(class) = $2)`
	}
	query += ` ORDER BY name`

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

func (repo studentRepository) QueryPrimaryGuardians(ctx context.Context, studentID string) ([]student.Guardian, error) {
	var rows []guardianRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM guardian WHERE student_id = $1 AND is_primary ORDER BY name`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}
	guardians := make([]student.Guardian, 0, len(rows))
	for _, row := range rows {
		guardians = append(guardians, student.Guardian{
			ID:        row.ID,
			StudentID: row.StudentID,
			Name:      row.Name,
			Email:     row.Email,
			IsPrimary: row.IsPrimary,
		})
	}
	return guardians, nil
}
