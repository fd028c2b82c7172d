package fee

import (
	"time"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/student"
)

// NewServiceMock returns a Service with a controlled clock.
func NewServiceMock(
	repo Repository,
	students student.Repository,
	notifier core.Notifier,
	logger core.Logger,
	now func() time.Time,
) *Service {
	svc := NewService(repo, students, notifier, logger)
	if now != nil {
		svc.now = now
	}
	return svc
}
