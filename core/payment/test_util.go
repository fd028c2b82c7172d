package payment

import (
	"time"

	"github.com/trezcool/karo/core"
)

// NewServiceMock returns a Service with a controlled clock.
func NewServiceMock(repo Repository, logger core.Logger, now func() time.Time) *Service {
	svc := NewService(repo, logger)
	if now != nil {
		svc.now = now
	}
	return svc
}
