package notifsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	emailsvc "github.com/trezcool/karo/services/email"
	logsvc "github.com/trezcool/karo/services/logger"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{amount: 0, want: "0.00"},
		{amount: 999.5, want: "999.50"},
		{amount: 5000, want: "5,000.00"},
		{amount: 150000, want: "150,000.00"},
		{amount: 1234567.891, want: "1,234,567.89"},
		{amount: -5000, want: "-5,000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2 January 2025", FormatDate(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "30 November 2021", FormatDate(time.Date(2021, time.November, 30, 10, 0, 0, 0, time.UTC)))
}

func Test_emailNotifier_FeeAssigned(t *testing.T) {
	conf := &core.Config{
		TestMode:        true,
		AppName:         "Karo",
		DefaultFromName: "Karo",
		DefaultFromAddr: "noreply@localhost",
		FrontendBaseURL: "http://localhost:3000",
		WorkDir:         core.Getwd(),
	}
	core.ParseEmailTemplates(conf, logsvc.NewNopLogger())

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	notifier := NewEmailNotifier(mailSvc)

	due := time.Date(2021, time.November, 30, 0, 0, 0, 0, time.UTC)
	notifier.FeeAssigned(context.Background(),
		core.FeeAssignedNotice{
			GuardianName:  "Mrs Imani",
			GuardianEmail: "imani@test.cd",
			StudentName:   "Imani Jr",
			FeeName:       "Tuition Fee",
			Amount:        5000,
			DueDate:       due,
		},
		core.FeeAssignedNotice{GuardianName: "No Email"}, // skipped
	)

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, "imani@test.cd", msg.To[0].Address)
	assert.Equal(t, "New fee assigned to Imani Jr", msg.Subject)
	assert.Contains(t, msg.TextContent, "Mrs Imani")
	assert.Contains(t, msg.TextContent, "Tuition Fee")
	assert.Contains(t, msg.TextContent, "5,000.00")
	assert.Contains(t, msg.TextContent, "30 November 2021")
}
