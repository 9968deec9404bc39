package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ametov/paraphrase-bot/internal/models"
)

func TestReferralRepoUniquePerInvitedUser(t *testing.T) {
	repo := NewReferralRepo(newTestDB(t))

	require.NoError(t, repo.CreateReferral(1, 2))
	// The same invited user cannot land twice, even for another inviter.
	require.ErrorIs(t, repo.CreateReferral(1, 2), ErrAlreadyReferred)
	require.ErrorIs(t, repo.CreateReferral(3, 2), ErrAlreadyReferred)
	require.NoError(t, repo.CreateReferral(1, 4))
}

func TestReferralRepoAcknowledge(t *testing.T) {
	repo := NewReferralRepo(newTestDB(t))

	require.NoError(t, repo.CreateReferral(1, 2))
	require.NoError(t, repo.CreateReferral(1, 3))
	require.NoError(t, repo.CreateReferral(9, 4))

	pending, err := repo.GetUnacknowledged(1)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	ids := []int64{pending[0].Id, pending[1].Id}
	require.NoError(t, repo.Acknowledge(ids, time.Now()))

	pending, err = repo.GetUnacknowledged(1)
	require.NoError(t, err)
	assert.Empty(t, pending)

	other, err := repo.GetUnacknowledged(9)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestAdminRepoRegisterIsIdempotent(t *testing.T) {
	repo := NewAdminRepo(newTestDB(t))

	first := models.Admin{UserId: 1, DisplayName: "alice", AuthenticatedAt: 100}
	require.NoError(t, repo.RegisterAdmin(first))
	require.NoError(t, repo.RegisterAdmin(models.Admin{UserId: 1, DisplayName: "alice2", AuthenticatedAt: 200}))

	isAdmin, err := repo.IsAdmin(1)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	admins, err := repo.ListAdmins()
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, first, admins[0])

	isAdmin, err = repo.IsAdmin(2)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}
