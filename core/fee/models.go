package fee

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
)

// Frequency drives the due-date computation of assigned fees.
type Frequency string

const (
	FrequencyOneTime    Frequency = "one-time"
	FrequencyPerTerm    Frequency = "per-term"
	FrequencyPerSession Frequency = "per-session"
	FrequencyMonthly    Frequency = "monthly"
)

var AllFrequencies = []Frequency{FrequencyOneTime, FrequencyPerTerm, FrequencyPerSession, FrequencyMonthly}

func (f Frequency) IsValid() bool {
	for _, freq := range AllFrequencies {
		if f == freq {
			return true
		}
	}
	return false
}

// Status of a StudentFee. Always derived from AmountPaid vs AmountDue
// (and the due date at creation time); it never drifts independently.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

type FeeCategory struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// FeeStructure is a reusable fee template scoped to a school, a class or a
// single student. Scope: StudentID set -> that student; Class set -> that
// class; neither -> school-wide. StudentID and Class are mutually exclusive
// at write time; the assignment engine resolves StudentID first regardless.
type FeeStructure struct {
	ID          string      `json:"id"`
	SchoolID    string      `json:"school_id"`
	CategoryID  string      `json:"category_id"`
	Name        string      `json:"name"`
	Amount      float64     `json:"amount"`
	Frequency   Frequency   `json:"frequency"`
	IsMandatory bool        `json:"is_mandatory"`
	IsActive    bool        `json:"is_active"`
	StudentID   null.String `json:"student_id,omitempty"`
	Class       null.String `json:"class,omitempty"`
	Session     string      `json:"session"`
	Term        null.String `json:"term,omitempty"` // null applies to all terms within Session
	CreatedAt   time.Time   `json:"created_at"`     // UTC
	UpdatedAt   time.Time   `json:"updated_at"`     // UTC
}

// StudentFee is a concrete payable obligation derived from a FeeStructure for
// one student in one session/term. At most one exists per
// (student, structure, session, term); a null structure term counts as "".
type StudentFee struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	FeeStructureID string    `json:"fee_structure_id"`
	AmountDue      float64   `json:"amount_due"`
	AmountPaid     float64   `json:"amount_paid"`
	DueDate        time.Time `json:"due_date"`
	Status         Status    `json:"status"`
	Session        string    `json:"session"`
	Term           string    `json:"term,omitempty"` // "" when the structure has no term
	CreatedAt      time.Time `json:"created_at"`     // UTC
	UpdatedAt      time.Time `json:"updated_at"`     // UTC
}

// StatusAfterPayment derives a StudentFee's status after a verified payment.
// Overshoot (paid > due) still counts as paid; a zero credit keeps the
// current status (incl. overdue).
func StatusAfterPayment(amountPaid, amountDue float64, current Status) Status {
	if amountPaid >= amountDue {
		return StatusPaid
	}
	if amountPaid > 0 {
		return StatusPartial
	}
	return current
}

// AssignResult reports the outcome of one assignment run.
type AssignResult struct {
	Assigned      int `json:"assigned_count"`
	Skipped       int `json:"skipped_count"`
	TotalEligible int `json:"total_eligible"`
}

// NewFeeCategory contains information needed to create a new FeeCategory.
type NewFeeCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewFeeCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// NewFeeStructure contains information needed to create a new FeeStructure.
type NewFeeStructure struct {
	CategoryID  string  `json:"category_id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Frequency   string  `json:"frequency" validate:"required,frequency"`
	IsMandatory bool    `json:"is_mandatory"`
	StudentID   string  `json:"student_id"`
	Class       string  `json:"class"`
	Session     string  `json:"session" validate:"required"`
	Term        string  `json:"term"`
}

func (nf *NewFeeStructure) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	nf.StudentID = core.CleanString(nf.StudentID)
	nf.Class = core.CleanString(nf.Class)
	nf.Session = core.CleanString(nf.Session)
	nf.Term = core.CleanString(nf.Term)
	return validate.Struct(nf)
}

// UpdateFeeStructure defines what information may be provided to modify an
// existing FeeStructure. Zero-valued fields keep their current value.
// CascadeAmount applies the new amount to linked StudentFees that have no
// payment recorded yet (AmountPaid == 0); paid/partial fees are never touched.
type UpdateFeeStructure struct {
	CategoryID    string   `json:"category_id"`
	Name          string   `json:"name"`
	Amount        *float64 `json:"amount" validate:"omitempty,gte=0"`
	Frequency     string   `json:"frequency" validate:"omitempty,frequency"`
	IsMandatory   *bool    `json:"is_mandatory"`
	StudentID     *string  `json:"student_id"`
	Class         *string  `json:"class"`
	Session       string   `json:"session"`
	Term          *string  `json:"term"`
	CascadeAmount bool     `json:"cascade_amount"`
}

func (uf *UpdateFeeStructure) Validate(validate *validator.Validate) error {
	uf.Name = core.CleanString(uf.Name)
	uf.Session = core.CleanString(uf.Session)
	if uf.StudentID != nil {
		*uf.StudentID = core.CleanString(*uf.StudentID)
	}
	if uf.Class != nil {
		*uf.Class = core.CleanString(*uf.Class)
	}
	if uf.Term != nil {
		*uf.Term = core.CleanString(*uf.Term)
	}
	return validate.Struct(uf)
}

// QueryFilter filters FeeStructure list queries.
type QueryFilter struct {
	Search   string `query:"search"`
	Session  string `query:"session"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Session = core.CleanString(qf.Session)
}

// Custom Validators

var (
	frequencyTag  = "frequency"
	frequencyText = "invalid frequency"

	exclusiveScopeTag  = "exclusive_scope"
	exclusiveScopeText = "student_id and class are mutually exclusive"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(frequencyTag, frequencyValidation)
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)

	validate.RegisterStructValidation(scopeStructValidation, NewFeeStructure{}, UpdateFeeStructure{})
	core.RegisterCustomTranslation(validate, translator, exclusiveScopeTag, exclusiveScopeText)
}

// frequencyValidation checks that the provided frequency is in AllFrequencies.
func frequencyValidation(fl validator.FieldLevel) bool {
	return Frequency(fl.Field().String()).IsValid()
}

// scopeStructValidation rejects structures targeting both a student and a class.
func scopeStructValidation(sl validator.StructLevel) {
	switch fs := sl.Current().Interface().(type) {
	case NewFeeStructure:
		if fs.StudentID != "" && fs.Class != "" {
			sl.ReportError(fs.StudentID, "student_id", "StudentID", exclusiveScopeTag, "")
			sl.ReportError(fs.Class, "class", "Class", exclusiveScopeTag, "")
		}
	case UpdateFeeStructure:
		if fs.StudentID != nil && *fs.StudentID != "" && fs.Class != nil && *fs.Class != "" {
			sl.ReportError(fs.StudentID, "student_id", "StudentID", exclusiveScopeTag, "")
			sl.ReportError(fs.Class, "class", "Class", exclusiveScopeTag, "")
		}
	}
}
