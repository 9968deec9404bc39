package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ametov/paraphrase-bot/internal/models"
)

type fakeUserCounter struct{ count int64 }

func (f *fakeUserCounter) CountUsers() (int64, error) { return f.count, nil }

type fakeWindow struct{ count int }

func (f *fakeWindow) CurrentCount() int { return f.count }

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64]string
}

func (f *fakeNotifier) NotifyUser(userId int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[int64]string)
	}
	f.sent[userId] = text
	return nil
}

func TestSendReportToAllAdmins(t *testing.T) {
	admins := newFakeAdminsRepo()
	require.NoError(t, admins.RegisterAdmin(models.Admin{UserId: 1, DisplayName: "alice"}))
	require.NoError(t, admins.RegisterAdmin(models.Admin{UserId: 2, DisplayName: "bob"}))

	notifier := &fakeNotifier{}
	scheduler := NewReportScheduler(&fakeUserCounter{count: 42}, admins, &fakeWindow{count: 317}, notifier, 24*time.Hour)

	require.NoError(t, scheduler.SendReport())
	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[1], "Total users: 42")
	assert.Contains(t, notifier.sent[1], "Paraphrases in last 24 hours: 317")
}

func TestSendReportNoAdminsIsQuiet(t *testing.T) {
	notifier := &fakeNotifier{}
	scheduler := NewReportScheduler(&fakeUserCounter{count: 42}, newFakeAdminsRepo(), &fakeWindow{}, notifier, 24*time.Hour)

	require.NoError(t, scheduler.SendReport())
	assert.Empty(t, notifier.sent)
}
