package notifsvc

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/karo/core"
)

// emailNotifier dispatches guardian notices as emails. Delivery is delegated
// to the EmailService, which already sends in the background; a failed send is
// logged there and never reaches the caller.
type emailNotifier struct {
	mailSvc core.EmailService
}

var _ core.Notifier = (*emailNotifier)(nil)

func NewEmailNotifier(mailSvc core.EmailService) *emailNotifier {
	return &emailNotifier{mailSvc: mailSvc}
}

func (n *emailNotifier) FeeAssigned(_ context.Context, notices ...core.FeeAssignedNotice) {
	messages := make([]*core.EmailMessage, 0, len(notices))
	for _, notice := range notices {
		if notice.GuardianEmail == "" {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:      []mail.Address{{Name: notice.GuardianName, Address: notice.GuardianEmail}},
			Subject: fmt.Sprintf("New fee assigned to %s", notice.StudentName),
			TemplateName: "fee-assigned",
			TemplateData: map[string]interface{}{
				"GuardianName": notice.GuardianName,
				"StudentName":  notice.StudentName,
				"FeeName":      notice.FeeName,
				"Amount":       FormatAmount(notice.Amount),
				"DueDate":      FormatDate(notice.DueDate),
			},
		})
	}
	n.mailSvc.SendMessages(messages...)
}

// FormatAmount renders an amount with thousands separators, eg. "5,000.00".
func FormatAmount(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	parts := strings.SplitN(s, ".", 2)
	intPart, decPart := parts[0], parts[1]

	var neg bool
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	out := b.String() + "." + decPart
	if neg {
		out = "-" + out
	}
	return out
}

// FormatDate renders a due date the way guardians see it, eg. "2 January 2025".
func FormatDate(t time.Time) string {
	return t.Format("2 January 2006")
}

// Recorder keeps notices in memory; for tests.
type Recorder struct {
	mu      sync.Mutex
	notices []core.FeeAssignedNotice
}

var _ core.Notifier = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) FeeAssigned(_ context.Context, notices ...core.FeeAssignedNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notices...)
}

func (r *Recorder) Notices() []core.FeeAssignedNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.FeeAssignedNotice, len(r.notices))
	copy(out, r.notices)
	return out
}
