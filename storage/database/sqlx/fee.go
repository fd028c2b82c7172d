package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core/fee"
)

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

type (
	categoryRow struct {
		ID          string    `db:"id"`
		SchoolID    string    `db:"school_id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	structureRow struct {
		ID          string      `db:"id"`
		SchoolID    string      `db:"school_id"`
		CategoryID  string      `db:"category_id"`
		Name        string      `db:"name"`
		Amount      float64     `db:"amount"`
		Frequency   string      `db:"frequency"`
		IsMandatory bool        `db:"is_mandatory"`
		IsActive    bool        `db:"is_active"`
		StudentID   null.String `db:"student_id"`
		Class       null.String `db:"class"`
		Session     string      `db:"session"`
		Term        null.String `db:"term"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	studentFeeRow struct {
		ID             string    `db:"id"`
		StudentID      string    `db:"student_id"`
		FeeStructureID string    `db:"fee_structure_id"`
		AmountDue      float64   `db:"amount_due"`
		AmountPaid     float64   `db:"amount_paid"`
		DueDate        time.Time `db:"due_date"`
		Status         string    `db:"status"`
		Session        string    `db:"session"`
		Term           string    `db:"term"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}
)

func (r categoryRow) toModel() fee.FeeCategory {
	return fee.FeeCategory{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r structureRow) toModel() fee.FeeStructure {
	return fee.FeeStructure{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Amount:      r.Amount,
		Frequency:   fee.Frequency(r.Frequency),
		IsMandatory: r.IsMandatory,
		IsActive:    r.IsActive,
		StudentID:   r.StudentID,
		Class:       r.Class,
		Session:     r.Session,
		Term:        r.Term,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r studentFeeRow) toModel() fee.StudentFee {
	return fee.StudentFee{
		ID:             r.ID,
		StudentID:      r.StudentID,
		FeeStructureID: r.FeeStructureID,
		AmountDue:      r.AmountDue,
		AmountPaid:     r.AmountPaid,
		DueDate:        r.DueDate,
		Status:         fee.Status(r.Status),
		Session:        r.Session,
		Term:           r.Term,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (repo feeRepository) CreateCategory(ctx context.Context, cat fee.FeeCategory) (fee.FeeCategory, error) {
	cat.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO fee_category (id, school_id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cat.ID, cat.SchoolID, cat.Name, cat.Description, cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return fee.FeeCategory{}, errors.Wrap(err, "inserting fee category")
	}
	return cat, nil
}

func (repo feeRepository) GetCategory(ctx context.Context, schoolID, id string) (fee.FeeCategory, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.FeeCategory{}, fee.ErrCategoryNotFound
	}
	var row categoryRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM fee_category WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return fee.FeeCategory{}, fee.ErrCategoryNotFound
		}
		return fee.FeeCategory{}, errors.Wrap(err, "finding fee category")
	}
	return row.toModel(), nil
}

func (repo feeRepository) QueryCategories(ctx context.Context, schoolID string) ([]fee.FeeCategory, error) {
	var rows []categoryRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM fee_category WHERE school_id = $1 ORDER BY name`, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee categories")
	}
	cats := make([]fee.FeeCategory, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, row.toModel())
	}
	return cats, nil
}

func (repo feeRepository) CreateStructure(ctx context.Context, fs fee.FeeStructure) (fee.FeeStructure, error) {
	fs.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO fee_structure (id, school_id, category_id, name, amount, frequency, is_mandatory, is_active,
		                            student_id, class, session, term, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		fs.ID, fs.SchoolID, fs.CategoryID, fs.Name, fs.Amount, string(fs.Frequency), fs.IsMandatory, fs.IsActive,
		fs.StudentID, fs.Class, fs.Session, fs.Term, fs.CreatedAt, fs.UpdatedAt)
	if err != nil {
		return fee.FeeStructure{}, errors.Wrap(err, "inserting fee structure")
	}
	return fs, nil
}

func (repo feeRepository) GetStructure(ctx context.Context, schoolID, id string) (fee.FeeStructure, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.FeeStructure{}, fee.ErrNotFound
	}
	var row structureRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM fee_structure WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return fee.FeeStructure{}, fee.ErrNotFound
		}
		return fee.FeeStructure{}, errors.Wrap(err, "finding fee structure")
	}
	return row.toModel(), nil
}

func (repo feeRepository) QueryStructures(ctx context.Context, schoolID string, filter fee.QueryFilter) ([]fee.FeeStructure, error) {
	query := `SELECT * FROM fee_structure WHERE school_id = $1`
	args := []interface{}{schoolID}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += ` AND name ILIKE $` + itoa(len(args))
	}
	if filter.Session != "" {
		args = append(args, filter.Session)
		query += ` AND session = $` + itoa(len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += ` AND is_active = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	var rows []structureRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structs := make([]fee.FeeStructure, 0, len(rows))
	for _, row := range rows {
		structs = append(structs, row.toModel())
	}
	return structs, nil
}

func (repo feeRepository) UpdateStructure(ctx context.Context, fs fee.FeeStructure, cascadeAmount bool) (fee.FeeStructure, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fee.FeeStructure{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`UPDATE fee_structure
		 SET category_id = $1, name = $2, amount = $3, frequency = $4, is_mandatory = $5,
		     student_id = $6, class = $7, session = $8, term = $9, updated_at = $10
		 WHERE id = $11`,
		fs.CategoryID, fs.Name, fs.Amount, string(fs.Frequency), fs.IsMandatory,
		fs.StudentID, fs.Class, fs.Session, fs.Term, fs.UpdatedAt, fs.ID)
	if err != nil {
		return fee.FeeStructure{}, errors.Wrap(err, "updating fee structure")
	}

	if cascadeAmount {
		// only fees with no payment recorded yet follow the new amount
		_, err = tx.ExecContext(ctx,
			`UPDATE student_fee SET amount_due = $1, updated_at = $2
			 WHERE fee_structure_id = $3 AND amount_paid = 0`,
			fs.Amount, fs.UpdatedAt, fs.ID)
		if err != nil {
			return fee.FeeStructure{}, errors.Wrap(err, "cascading amount to student fees")
		}
	}

	if err = tx.Commit(); err != nil {
		return fee.FeeStructure{}, errors.Wrap(err, "committing transaction")
	}
	return fs, nil
}

func (repo feeRepository) SetStructureActive(ctx context.Context, schoolID, id string, active bool) (fee.FeeStructure, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.FeeStructure{}, fee.ErrNotFound
	}
	var row structureRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE fee_structure SET is_active = $1, updated_at = now()
		 WHERE school_id = $2 AND id = $3
		 RETURNING *`,
		active, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return fee.FeeStructure{}, fee.ErrNotFound
		}
		return fee.FeeStructure{}, errors.Wrap(err, "toggling fee structure")
	}
	return row.toModel(), nil
}

func (repo feeRepository) StructureHasPayments(ctx context.Context, structureID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
		   SELECT 1 FROM payment p
		   JOIN student_fee sf ON sf.id = p.student_fee_id
		   WHERE sf.fee_structure_id = $1
		 )`, structureID)
	if err != nil {
		return false, errors.Wrap(err, "checking fee structure payments")
	}
	return exists, nil
}

func (repo feeRepository) DeleteStructure(ctx context.Context, structureID string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// orphaned obligations go first
	if _, err = tx.ExecContext(ctx, `DELETE FROM student_fee WHERE fee_structure_id = $1`, structureID); err != nil {
		return errors.Wrap(err, "deleting student fees")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM fee_structure WHERE id = $1`, structureID); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo feeRepository) StudentFeeExists(ctx context.Context, studentID, structureID, session, term string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
		   SELECT 1 FROM student_fee
		   WHERE student_id = $1 AND fee_structure_id = $2 AND session = $3 AND term = $4
		 )`, studentID, structureID, session, term)
	if err != nil {
		return false, errors.Wrap(err, "checking student fee existence")
	}
	return exists, nil
}

func (repo feeRepository) CreateStudentFee(ctx context.Context, sf fee.StudentFee) (fee.StudentFee, error) {
	sf.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO student_fee (id, student_id, fee_structure_id, amount_due, amount_paid, due_date, status,
		                          session, term, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sf.ID, sf.StudentID, sf.FeeStructureID, sf.AmountDue, sf.AmountPaid, sf.DueDate, string(sf.Status),
		sf.Session, sf.Term, sf.CreatedAt, sf.UpdatedAt)
	if err != nil {
		return fee.StudentFee{}, errors.Wrap(err, "inserting student fee")
	}
	return sf, nil
}

func (repo feeRepository) QueryStudentFees(ctx context.Context, structureID string) ([]fee.StudentFee, error) {
	var rows []studentFeeRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM student_fee WHERE fee_structure_id = $1 ORDER BY created_at`, structureID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student fees")
	}
	fees := make([]fee.StudentFee, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, row.toModel())
	}
	return fees, nil
}
