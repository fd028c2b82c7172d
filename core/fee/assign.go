package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/student"
)

func nullStr(s string) null.String {
	return null.NewString(s, s != "")
}

// dueDate computes the due date of a fee assigned at time t.
func dueDate(freq Frequency, t time.Time) time.Time {
	switch freq {
	case FrequencyOneTime:
		return t.AddDate(0, 0, 30)
	case FrequencyPerTerm:
		return t.AddDate(0, 0, 90)
	case FrequencyPerSession:
		return t.AddDate(0, 0, 365)
	case FrequencyMonthly:
		// last calendar day of t's month
		return time.Date(t.Year(), t.Month()+1, 0, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	}
	return t.AddDate(0, 0, 30)
}

// statusFor derives the creation status of a StudentFee from its due date.
func statusFor(due, now time.Time) Status {
	if due.Before(now) {
		return StatusOverdue
	}
	return StatusPending
}

// Assign materializes StudentFee rows for every student currently matched by
// the structure's scope that does not already have one for the same
// (session, term). Each insert commits independently; a failure on one student
// does not roll back the others. Newly-assigned students' primary guardians
// are notified best-effort after all inserts.
func (svc *Service) Assign(ctx context.Context, auth core.AuthContext, structureID string) (AssignResult, error) {
	fs, err := svc.repo.GetStructure(ctx, auth.SchoolID, structureID)
	if err != nil {
		return AssignResult{}, err
	}
	// archived structures are reported as missing on purpose: callers need not
	// distinguish the two
	if !fs.IsActive {
		return AssignResult{}, ErrNotFound
	}

	targets, err := svc.resolveTargets(ctx, auth.SchoolID, fs)
	if err != nil {
		return AssignResult{}, err
	}

	now := svc.now()
	due := dueDate(fs.Frequency, now)
	term := fs.Term.String // null term and empty-string term are the same obligation

	var res AssignResult
	res.TotalEligible = len(targets)
	notices := make([]core.FeeAssignedNotice, 0, len(targets))

	for _, st := range targets {
		exists, err := svc.repo.StudentFeeExists(ctx, st.ID, fs.ID, fs.Session, term)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}

		_, err = svc.repo.CreateStudentFee(ctx, StudentFee{
			StudentID:      st.ID,
			FeeStructureID: fs.ID,
			AmountDue:      fs.Amount,
			AmountPaid:     0,
			DueDate:        due,
			Status:         statusFor(due, now),
			Session:        fs.Session,
			Term:           term,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return res, err
		}
		res.Assigned++

		notices = append(notices, svc.guardianNotices(ctx, st, fs, due)...)
	}

	if len(notices) > 0 {
		svc.notifier.FeeAssigned(ctx, notices...)
	}
	return res, nil
}

// resolveTargets resolves the structure's scope to the current student set:
// a single student, a whole class, or the whole school.
func (svc *Service) resolveTargets(ctx context.Context, schoolID string, fs FeeStructure) ([]student.Student, error) {
	if fs.StudentID.Valid {
		st, err := svc.students.GetStudent(ctx, schoolID, fs.StudentID.String)
		if err != nil {
			if err == student.ErrNotFound {
				return nil, nil // not in this school: zero eligible, not an error
			}
			return nil, err
		}
		return []student.Student{st}, nil
	}
	return svc.students.QueryStudents(ctx, schoolID, fs.Class.String)
}

// guardianNotices builds fee-assigned notices for a student's primary
// guardians. Lookup failures are logged and swallowed: notification is
// best-effort and must never fail the assignment.
func (svc *Service) guardianNotices(ctx context.Context, st student.Student, fs FeeStructure, due time.Time) []core.FeeAssignedNotice {
	guardians, err := svc.students.QueryPrimaryGuardians(ctx, st.ID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("querying guardians of student %s: %v", st.ID, err), err)
		return nil
	}
	notices := make([]core.FeeAssignedNotice, 0, len(guardians))
	for _, g := range guardians {
		notices = append(notices, core.FeeAssignedNotice{
			GuardianName:  g.Name,
			GuardianEmail: g.Email,
			StudentName:   st.Name,
			FeeName:       fs.Name,
			Amount:        fs.Amount,
			DueDate:       due,
		})
	}
	return notices
}
