package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
	"github.com/trezcool/karo/core/student"
	logsvc "github.com/trezcool/karo/services/logger"
	notifsvc "github.com/trezcool/karo/services/notification"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
)

var (
	schoolAuth = core.AuthContext{SchoolID: "school1", Email: "admin@school1.test", UserType: core.UserTypeSchool}
	testClock  = time.Date(2021, time.September, 1, 9, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (*fee.Service, *dummydb.DB, *notifsvc.Recorder) {
	db, err := dummydb.Open()
	require.NoError(t, err)

	recorder := notifsvc.NewRecorder()
	svc := fee.NewServiceMock(
		dummydb.NewFeeRepository(db),
		dummydb.NewStudentRepository(db),
		recorder,
		logsvc.NewNopLogger(),
		func() time.Time { return testClock },
	)
	return svc, db, recorder
}

func createStructure(t *testing.T, svc *fee.Service, nf fee.NewFeeStructure) fee.FeeStructure {
	if nf.CategoryID == "" {
		cat, err := svc.CreateCategory(context.Background(), schoolAuth, fee.NewFeeCategory{Name: "Tuition"})
		require.NoError(t, err)
		nf.CategoryID = cat.ID
	}
	fs, err := svc.CreateStructure(context.Background(), schoolAuth, nf)
	require.NoError(t, err)
	return fs
}

func Test_feeService_CreateStructure(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, schoolAuth, fee.NewFeeCategory{Name: "Tuition"})
	require.NoError(t, err)

	t.Run("unknown category", func(t *testing.T) {
		_, err := svc.CreateStructure(ctx, schoolAuth, fee.NewFeeStructure{
			CategoryID: "123e4567-e89b-12d3-a456-426614174000",
			Name:       "Tuition Fee",
			Amount:     5000,
			Frequency:  string(fee.FrequencyPerTerm),
			Session:    "2021/2022",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "category_id", vErr.Fields[0].Field)
	})

	t.Run("category of another school", func(t *testing.T) {
		otherAuth := core.AuthContext{SchoolID: "school2", Email: "admin@school2.test", UserType: core.UserTypeSchool}
		otherCat, err := svc.CreateCategory(ctx, otherAuth, fee.NewFeeCategory{Name: "Levy"})
		require.NoError(t, err)

		_, err = svc.CreateStructure(ctx, schoolAuth, fee.NewFeeStructure{
			CategoryID: otherCat.ID,
			Name:       "Levy Fee",
			Amount:     100,
			Frequency:  string(fee.FrequencyOneTime),
			Session:    "2021/2022",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("student of another school", func(t *testing.T) {
		st := db.SeedStudent(student.Student{SchoolID: "school2", Name: "Imani", Class: "JSS 1"})

		_, err := svc.CreateStructure(ctx, schoolAuth, fee.NewFeeStructure{
			CategoryID: cat.ID,
			Name:       "Special Fee",
			Amount:     100,
			Frequency:  string(fee.FrequencyOneTime),
			StudentID:  st.ID,
			Session:    "2021/2022",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "student_id", vErr.Fields[0].Field)
	})

	t.Run("ok", func(t *testing.T) {
		fs, err := svc.CreateStructure(ctx, schoolAuth, fee.NewFeeStructure{
			CategoryID: cat.ID,
			Name:       "Tuition Fee",
			Amount:     5000,
			Frequency:  string(fee.FrequencyPerTerm),
			Class:      "JSS 1",
			Session:    "2021/2022",
			Term:       "First Term",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, fs.ID)
		assert.True(t, fs.IsActive)
		assert.Equal(t, "JSS 1", fs.Class.String)
		assert.False(t, fs.StudentID.Valid)
		assert.Equal(t, testClock, fs.CreatedAt)
	})
}

func Test_feeService_UpdateStructure(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	fPtr := func(f float64) *float64 { return &f }
	sPtr := func(s string) *string { return &s }

	fs := createStructure(t, svc, fee.NewFeeStructure{
		Name:      "Tuition Fee",
		Amount:    5000,
		Frequency: string(fee.FrequencyPerTerm),
		Class:     "JSS 1",
		Session:   "2021/2022",
	})

	t.Run("scope conflict on merged state", func(t *testing.T) {
		// fs already targets a class; setting a student without clearing it
		// must fail
		st := db.SeedStudent(student.Student{SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})
		_, err := svc.UpdateStructure(ctx, schoolAuth, fs.ID, fee.UpdateFeeStructure{StudentID: sPtr(st.ID)})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown structure", func(t *testing.T) {
		_, err := svc.UpdateStructure(ctx, schoolAuth, "123e4567-e89b-12d3-a456-426614174000", fee.UpdateFeeStructure{Name: "lol"})
		assert.ErrorIs(t, err, fee.ErrNotFound)
	})

	t.Run("cascade only touches unpaid fees", func(t *testing.T) {
		db.SeedStudent(student.Student{ID: "st1", SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})
		db.SeedStudent(student.Student{ID: "st2", SchoolID: schoolAuth.SchoolID, Name: "Amara", Class: "JSS 1"})

		res, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Assigned, 2)

		// simulate a partial payment on st1's fee
		fees, err := dummydb.NewFeeRepository(db).QueryStudentFees(ctx, fs.ID)
		require.NoError(t, err)
		var paidFeeID string
		for _, sf := range fees {
			if sf.StudentID == "st1" {
				paidFeeID = sf.ID
				p := db.SeedPayment(payment.Payment{SchoolID: schoolAuth.SchoolID, StudentID: sf.StudentID, StudentFeeID: sf.ID, Amount: 2000})
				_, _, err = dummydb.NewPaymentRepository(db).ApplyVerification(ctx, p.ID, schoolAuth.Email, "", testClock)
				require.NoError(t, err)
			}
		}
		require.NotEmpty(t, paidFeeID)

		updated, err := svc.UpdateStructure(ctx, schoolAuth, fs.ID, fee.UpdateFeeStructure{Amount: fPtr(6000), CascadeAmount: true})
		require.NoError(t, err)
		assert.Equal(t, 6000.0, updated.Amount)

		fees, err = dummydb.NewFeeRepository(db).QueryStudentFees(ctx, fs.ID)
		require.NoError(t, err)
		for _, sf := range fees {
			if sf.ID == paidFeeID {
				assert.Equal(t, 5000.0, sf.AmountDue, "partially paid fee must keep its amount")
			} else {
				assert.Equal(t, 6000.0, sf.AmountDue)
			}
		}
	})
}

func Test_feeService_DeleteStructure(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	db.SeedStudent(student.Student{ID: "st1", SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})

	fs := createStructure(t, svc, fee.NewFeeStructure{
		Name:      "Sports Fee",
		Amount:    500,
		Frequency: string(fee.FrequencyPerSession),
		Session:   "2021/2022",
	})

	res, err := svc.Assign(ctx, schoolAuth, fs.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Assigned)

	t.Run("deletes structure and orphaned student fees", func(t *testing.T) {
		require.NoError(t, svc.DeleteStructure(ctx, schoolAuth, fs.ID))

		_, err := svc.GetStructure(ctx, schoolAuth, fs.ID)
		assert.ErrorIs(t, err, fee.ErrNotFound)

		fees, err := dummydb.NewFeeRepository(db).QueryStudentFees(ctx, fs.ID)
		require.NoError(t, err)
		assert.Empty(t, fees)
	})

	t.Run("blocked when payments exist", func(t *testing.T) {
		fs := createStructure(t, svc, fee.NewFeeStructure{
			Name:      "Lab Fee",
			Amount:    300,
			Frequency: string(fee.FrequencyPerSession),
			Session:   "2021/2022",
		})
		_, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)

		fees, err := dummydb.NewFeeRepository(db).QueryStudentFees(ctx, fs.ID)
		require.NoError(t, err)
		require.Len(t, fees, 1)
		db.SeedPayment(payment.Payment{SchoolID: schoolAuth.SchoolID, StudentID: "st1", StudentFeeID: fees[0].ID, Amount: 300})

		err = svc.DeleteStructure(ctx, schoolAuth, fs.ID)
		var sErr *core.StateError
		require.ErrorAs(t, err, &sErr)

		// still there
		_, err = svc.GetStructure(ctx, schoolAuth, fs.ID)
		assert.NoError(t, err)
	})
}

func Test_feeService_Assign(t *testing.T) {
	ctx := context.Background()

	t.Run("class scope, idempotent re-run", func(t *testing.T) {
		svc, db, recorder := setup(t)

		db.SeedStudent(student.Student{ID: "st1", SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})
		db.SeedStudent(student.Student{ID: "st2", SchoolID: schoolAuth.SchoolID, Name: "Amara", Class: " JSS 1 "}) // legacy whitespace
		db.SeedStudent(student.Student{ID: "st3", SchoolID: schoolAuth.SchoolID, Name: "Kofi", Class: "JSS 1"})
		db.SeedStudent(student.Student{ID: "st4", SchoolID: schoolAuth.SchoolID, Name: "Zuri", Class: "JSS 2"})
		db.SeedStudent(student.Student{ID: "st5", SchoolID: "school2", Name: "Other", Class: "JSS 1"})

		db.SeedGuardian(student.Guardian{StudentID: "st1", Name: "Mrs Imani", Email: "imani@test.cd", IsPrimary: true})
		db.SeedGuardian(student.Guardian{StudentID: "st1", Name: "Mr Imani", Email: "mr.imani@test.cd"}) // not primary
		db.SeedGuardian(student.Guardian{StudentID: "st2", Name: "Mrs Amara", Email: "amara@test.cd", IsPrimary: true})

		fs := createStructure(t, svc, fee.NewFeeStructure{
			Name:      "Tuition Fee",
			Amount:    5000,
			Frequency: string(fee.FrequencyPerTerm),
			Class:     "JSS 1",
			Session:   "2021/2022",
			Term:      "First Term",
		})

		res, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.AssignResult{Assigned: 3, Skipped: 0, TotalEligible: 3}, res)

		fees, err := dummydb.NewFeeRepository(db).QueryStudentFees(ctx, fs.ID)
		require.NoError(t, err)
		require.Len(t, fees, 3)
		for _, sf := range fees {
			assert.Equal(t, 5000.0, sf.AmountDue)
			assert.Equal(t, 0.0, sf.AmountPaid)
			assert.Equal(t, fee.StatusPending, sf.Status)
			assert.Equal(t, "2021/2022", sf.Session)
			assert.Equal(t, "First Term", sf.Term)
			assert.Equal(t, testClock.AddDate(0, 0, 90), sf.DueDate)
		}

		// only primary guardians get notified
		notices := recorder.Notices()
		require.Len(t, notices, 2)
		emails := []string{notices[0].GuardianEmail, notices[1].GuardianEmail}
		assert.ElementsMatch(t, []string{"imani@test.cd", "amara@test.cd"}, emails)

		// re-run: everyone already assigned
		res, err = svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.AssignResult{Assigned: 0, Skipped: 3, TotalEligible: 3}, res)

		fees, err = dummydb.NewFeeRepository(db).QueryStudentFees(ctx, fs.ID)
		require.NoError(t, err)
		assert.Len(t, fees, 3)
		assert.Len(t, recorder.Notices(), 2, "no new notices on re-run")
	})

	t.Run("single student scope", func(t *testing.T) {
		svc, db, _ := setup(t)

		db.SeedStudent(student.Student{ID: "st1", SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})
		db.SeedStudent(student.Student{ID: "st2", SchoolID: schoolAuth.SchoolID, Name: "Amara", Class: "JSS 1"})

		fs := createStructure(t, svc, fee.NewFeeStructure{
			Name:      "Special Fee",
			Amount:    100,
			Frequency: string(fee.FrequencyOneTime),
			StudentID: "st1",
			Session:   "2021/2022",
		})

		res, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.AssignResult{Assigned: 1, Skipped: 0, TotalEligible: 1}, res)
	})

	t.Run("school-wide scope", func(t *testing.T) {
		svc, db, _ := setup(t)

		db.SeedStudent(student.Student{ID: "st1", SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})
		db.SeedStudent(student.Student{ID: "st2", SchoolID: schoolAuth.SchoolID, Name: "Amara", Class: "JSS 2"})
		db.SeedStudent(student.Student{ID: "st3", SchoolID: "school2", Name: "Other", Class: "JSS 1"})

		fs := createStructure(t, svc, fee.NewFeeStructure{
			Name:      "Development Levy",
			Amount:    1000,
			Frequency: string(fee.FrequencyPerSession),
			Session:   "2021/2022",
		})

		res, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.AssignResult{Assigned: 2, Skipped: 0, TotalEligible: 2}, res)
	})

	t.Run("archived structure is not assignable", func(t *testing.T) {
		svc, db, _ := setup(t)

		db.SeedStudent(student.Student{ID: "st1", SchoolID: schoolAuth.SchoolID, Name: "Imani", Class: "JSS 1"})

		fs := createStructure(t, svc, fee.NewFeeStructure{
			Name:      "Old Fee",
			Amount:    100,
			Frequency: string(fee.FrequencyOneTime),
			Session:   "2021/2022",
		})
		_, err := svc.ArchiveStructure(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)

		_, err = svc.Assign(ctx, schoolAuth, fs.ID)
		assert.ErrorIs(t, err, fee.ErrNotFound)

		// unarchive restores assignability
		_, err = svc.UnarchiveStructure(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		res, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Assigned)
	})

	t.Run("targeted student no longer in school", func(t *testing.T) {
		svc, db, _ := setup(t)

		st := db.SeedStudent(student.Student{SchoolID: "school2", Name: "Other", Class: "JSS 1"})

		// seed the structure directly; the write-time ownership check would
		// reject this student
		repo := dummydb.NewFeeRepository(db)
		cat, err := repo.CreateCategory(ctx, fee.FeeCategory{SchoolID: schoolAuth.SchoolID, Name: "Tuition"})
		require.NoError(t, err)
		fs, err := repo.CreateStructure(ctx, newStructureFor(cat.ID, st.ID))
		require.NoError(t, err)

		res, err := svc.Assign(ctx, schoolAuth, fs.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.AssignResult{}, res)
	})
}

func newStructureFor(categoryID, studentID string) fee.FeeStructure {
	fs := fee.FeeStructure{
		SchoolID:   schoolAuth.SchoolID,
		CategoryID: categoryID,
		Name:       "Special Fee",
		Amount:     100,
		Frequency:  fee.FrequencyOneTime,
		IsActive:   true,
		Session:    "2021/2022",
		CreatedAt:  testClock,
		UpdatedAt:  testClock,
	}
	fs.StudentID.SetValid(studentID)
	return fs
}
