package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ametov/paraphrase-bot/internal/models"
)

func newTrackerWithRepo(t *testing.T, referralsRepo *fakeReferralsRepo, users ...models.User) (*ReferralTracker, *fakeUsersRepo) {
	t.Helper()
	usersRepo := newFakeUsersRepo(users...)
	ledger := NewUsageLedger(usersRepo, 20)
	return NewReferralTracker(usersRepo, referralsRepo, ledger, 20, "ParaphraseBot"), usersRepo
}

func newTracker(t *testing.T, users ...models.User) (*ReferralTracker, *fakeUsersRepo) {
	t.Helper()
	return newTrackerWithRepo(t, newFakeReferralsRepo(), users...)
}

func TestResolveNewUserCreditsInviterOnce(t *testing.T) {
	inviter := newTestUser(1)
	inviter.InviteCode = "invite_1_abcd"
	tracker, usersRepo := newTracker(t, inviter, newTestUser(2))

	inviterId, credited, err := tracker.ResolveNewUser(2, "invite_1_abcd")
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, int64(1), inviterId)

	stored, _ := usersRepo.GetUser(1)
	assert.Equal(t, int64(20), stored.ReferralCredits)
	invited, _ := usersRepo.GetUser(2)
	assert.Equal(t, int64(1), invited.ReferredBy)

	// Same invited user cannot credit the same inviter twice.
	_, credited, err = tracker.ResolveNewUser(2, "invite_1_abcd")
	require.NoError(t, err)
	assert.False(t, credited)
	stored, _ = usersRepo.GetUser(1)
	assert.Equal(t, int64(20), stored.ReferralCredits)
}

func TestSelfReferralIsNoOp(t *testing.T) {
	user := newTestUser(1)
	user.InviteCode = "invite_1_abcd"
	tracker, usersRepo := newTracker(t, user)

	_, credited, err := tracker.ResolveNewUser(1, "invite_1_abcd")
	require.NoError(t, err)
	assert.False(t, credited)

	stored, _ := usersRepo.GetUser(1)
	assert.Zero(t, stored.ReferralCredits)
	assert.Zero(t, stored.ReferredBy)
}

func TestUnknownCodeIsNoOp(t *testing.T) {
	tracker, usersRepo := newTracker(t, newTestUser(2))

	_, credited, err := tracker.ResolveNewUser(2, "invite_999_zzzz")
	require.NoError(t, err)
	assert.False(t, credited)

	invited, _ := usersRepo.GetUser(2)
	assert.Zero(t, invited.ReferredBy)
}

func TestReferredByIsImmutable(t *testing.T) {
	inviterA := newTestUser(1)
	inviterA.InviteCode = "invite_1_aaaa"
	inviterB := newTestUser(3)
	inviterB.InviteCode = "invite_3_bbbb"
	tracker, usersRepo := newTracker(t, inviterA, inviterB, newTestUser(2))

	_, credited, err := tracker.ResolveNewUser(2, "invite_1_aaaa")
	require.NoError(t, err)
	require.True(t, credited)

	// A second code from a different inviter does not rebind the user.
	_, credited, err = tracker.ResolveNewUser(2, "invite_3_bbbb")
	require.NoError(t, err)
	assert.False(t, credited)

	invited, _ := usersRepo.GetUser(2)
	assert.Equal(t, int64(1), invited.ReferredBy)
	storedB, _ := usersRepo.GetUser(3)
	assert.Zero(t, storedB.ReferralCredits)
}

func TestResolveNewUserSurfacesStorageFailure(t *testing.T) {
	inviter := newTestUser(1)
	inviter.InviteCode = "invite_1_abcd"
	referralsRepo := newFakeReferralsRepo()
	referralsRepo.createErr = errors.New("database is locked")
	tracker, usersRepo := newTrackerWithRepo(t, referralsRepo, inviter, newTestUser(2))

	// A storage failure is not the duplicate no-op; the caller must see it
	// so the event can be retried.
	_, credited, err := tracker.ResolveNewUser(2, "invite_1_abcd")
	require.Error(t, err)
	assert.False(t, credited)

	invited, _ := usersRepo.GetUser(2)
	assert.Zero(t, invited.ReferredBy)

	// Once storage recovers the same event goes through.
	referralsRepo.createErr = nil
	inviterId, credited, err := tracker.ResolveNewUser(2, "invite_1_abcd")
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, int64(1), inviterId)
}

func TestConcurrentReferralsKeepInviterCounters(t *testing.T) {
	inviter := newTestUser(1)
	inviter.InviteCode = "invite_1_abcd"
	tracker, usersRepo := newTracker(t, inviter, newTestUser(2), newTestUser(3))

	var wg sync.WaitGroup
	for _, invitedId := range []int64{2, 3} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, credited, err := tracker.ResolveNewUser(id, "invite_1_abcd")
			assert.NoError(t, err)
			assert.True(t, credited)
		}(invitedId)
	}
	wg.Wait()

	stored, _ := usersRepo.GetUser(1)
	assert.Equal(t, int64(2), stored.InvitedCount)
	assert.Equal(t, int64(40), stored.ReferralCredits)
}

func TestEnsureInviteCodeIsStable(t *testing.T) {
	tracker, _ := newTracker(t, newTestUser(1))

	first, err := tracker.EnsureInviteCode(1)
	require.NoError(t, err)
	assert.Contains(t, first, "invite_1_")

	second, err := tracker.EnsureInviteCode(1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	link, err := tracker.InviteLink(1)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/ParaphraseBot?start="+first, link)
}
