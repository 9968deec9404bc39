package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRotation(t *testing.T, credentials []string, threshold int, now func() time.Time) (*KeyRotationController, *fakeRotationRepo) {
	t.Helper()
	repo := &fakeRotationRepo{}
	controller, err := NewKeyRotationController(repo, credentials, 24*time.Hour, threshold, now)
	require.NoError(t, err)
	return controller, repo
}

func TestRotationRequiresCredentials(t *testing.T) {
	_, err := NewKeyRotationController(&fakeRotationRepo{}, nil, 24*time.Hour, 1300, nil)
	require.Error(t, err)
}

func TestRotationCrossesThresholdExactlyOnce(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	controller, _ := newTestRotation(t, []string{"key-a", "key-b", "key-c"}, 1300, func() time.Time { return base })

	for i := 0; i < 1299; i++ {
		require.NoError(t, controller.RecordEvent(base))
	}
	assert.Equal(t, 0, controller.ActiveIndex())

	// The 1300th event crosses the threshold and rotates once.
	require.NoError(t, controller.RecordEvent(base))
	assert.Equal(t, 1, controller.ActiveIndex())

	// Sustained overflow on the same crossing does not re-trigger; the next
	// 1299 calls stay on the second credential.
	for i := 0; i < 1299; i++ {
		require.NoError(t, controller.RecordEvent(base))
	}
	assert.Equal(t, 1, controller.ActiveIndex())
	require.NoError(t, controller.RecordEvent(base))
	assert.Equal(t, 2, controller.ActiveIndex())
}

func TestRotationExhaustionIsHardFailure(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	controller, _ := newTestRotation(t, []string{"key-a", "key-b"}, 3, func() time.Time { return base })

	for i := 0; i < 3; i++ {
		require.NoError(t, controller.RecordEvent(base))
	}
	credential, err := controller.CurrentCredential()
	require.NoError(t, err)
	assert.Equal(t, "key-b", credential)

	for i := 0; i < 3; i++ {
		require.NoError(t, controller.RecordEvent(base))
	}
	_, err = controller.CurrentCredential()
	require.ErrorIs(t, err, ErrAllCredentialsExhausted)
}

func TestRotationNewCycleAfterWindowDrains(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	controller, _ := newTestRotation(t, []string{"key-a", "key-b"}, 3, func() time.Time { return base })

	for i := 0; i < 6; i++ {
		require.NoError(t, controller.RecordEvent(base))
	}
	_, err := controller.CurrentCredential()
	require.ErrorIs(t, err, ErrAllCredentialsExhausted)

	// All events age out of the trailing window: fresh cycle, first key.
	controller.now = func() time.Time { return base.Add(25 * time.Hour) }
	credential, err := controller.CurrentCredential()
	require.NoError(t, err)
	assert.Equal(t, "key-a", credential)
	assert.Equal(t, 0, controller.CurrentCount())
}

func TestRotationLazyEviction(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	controller, _ := newTestRotation(t, []string{"key-a"}, 1300, func() time.Time { return base })

	require.NoError(t, controller.RecordEvent(base))
	require.NoError(t, controller.RecordEvent(base.Add(time.Hour)))
	assert.Equal(t, 2, controller.CurrentCount())

	controller.now = func() time.Time { return base.Add(24*time.Hour + time.Minute) }
	assert.Equal(t, 1, controller.CurrentCount())
}

func TestRotationRestoresWindowAcrossRestart(t *testing.T) {
	repo := &fakeRotationRepo{}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := NewKeyRotationController(repo, []string{"key-a", "key-b"}, 24*time.Hour, 3, func() time.Time { return base })
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, first.RecordEvent(base))
	}
	assert.Equal(t, 1, first.ActiveIndex())

	// A new controller over the same repo restores through its own clock and
	// keeps the window and the index.
	second, err := NewKeyRotationController(repo, []string{"key-a", "key-b"}, 24*time.Hour, 3, func() time.Time { return base.Add(time.Minute) })
	require.NoError(t, err)
	assert.Equal(t, 1, second.ActiveIndex())
	assert.Equal(t, 3, second.CurrentCount())
}
