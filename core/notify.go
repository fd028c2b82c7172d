package core

import (
	"context"
	"time"
)

// FeeAssignedNotice carries everything needed to tell a guardian
// that a new fee obligation was assigned to their student.
type FeeAssignedNotice struct {
	GuardianName  string
	GuardianEmail string
	StudentName   string
	FeeName       string
	Amount        float64
	DueDate       time.Time
}

// Notifier is any service that can notify guardians of fee events.
// Dispatch is best-effort: implementations must never block the caller on
// delivery nor bubble delivery failures back up.
type Notifier interface {
	FeeAssigned(ctx context.Context, notices ...FeeAssignedNotice)
}
