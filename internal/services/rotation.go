package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ametov/paraphrase-bot/internal/repositories"
)

type RotationRepo interface {
	AppendEvent(ts time.Time) error
	PruneBefore(cutoff time.Time) error
	LoadEventsSince(cutoff time.Time) ([]time.Time, error)
	SaveState(state repositories.RotationState) error
	LoadState() (repositories.RotationState, error)
}

// KeyRotationController owns the ordered credential list and the rolling
// window of generation events. All access funnels through one mutex: the
// active credential is cross-user-visible state, so every RecordEvent call
// in the process serializes here.
//
// Rotation is monotonic within a window cycle. Each time the number of
// events recorded since the last rotation reaches the threshold, the active
// index advances by one; past the last credential the controller reports
// exhaustion instead of wrapping. Only when the trailing window has fully
// drained does a new cycle start from the first credential.
type KeyRotationController struct {
	mu          sync.Mutex
	repo        RotationRepo
	credentials []string
	window      time.Duration
	threshold   int

	events        []time.Time
	activeIndex   int
	sinceRotation int
	exhausted     bool
	now           func() time.Time
}

// NewKeyRotationController restores persisted state through the given
// clock, so the restored window and all later decisions share one notion of
// now.
func NewKeyRotationController(repo RotationRepo, credentials []string, window time.Duration, threshold int, now func() time.Time) (*KeyRotationController, error) {
	if len(credentials) == 0 {
		return nil, fmt.Errorf("no credentials configured")
	}
	if now == nil {
		now = time.Now
	}
	c := &KeyRotationController{
		repo:        repo,
		credentials: credentials,
		window:      window,
		threshold:   threshold,
		now:         now,
	}
	if err := c.restore(); err != nil {
		return nil, err
	}
	return c, nil
}

// restore rebuilds the rolling window from the persisted event log so a
// restart does not reset the 24-hour horizon.
func (c *KeyRotationController) restore() error {
	state, err := c.repo.LoadState()
	if err != nil {
		return fmt.Errorf("failed to restore rotation state: %w", err)
	}
	cutoff := c.now().Add(-c.window)
	events, err := c.repo.LoadEventsSince(cutoff)
	if err != nil {
		return fmt.Errorf("failed to restore rotation events: %w", err)
	}
	c.events = events
	c.activeIndex = state.ActiveIndex
	c.sinceRotation = state.SinceRotation
	c.exhausted = state.Exhausted
	if c.activeIndex >= len(c.credentials) {
		c.activeIndex = len(c.credentials) - 1
	}
	c.evictLocked(c.now())
	return nil
}

// evictLocked drops timestamps older than the window. When the window
// drains completely the cycle restarts at the first credential.
func (c *KeyRotationController) evictLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(c.events) && c.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		c.events = c.events[i:]
	}
	if len(c.events) == 0 && (c.activeIndex != 0 || c.exhausted || c.sinceRotation != 0) {
		c.activeIndex = 0
		c.sinceRotation = 0
		c.exhausted = false
		if err := c.persistStateLocked(); err != nil {
			slog.Error("Failed to persist rotation cycle reset", "error", err)
		}
		slog.Info("Rotation window drained; starting new cycle at first credential")
	}
}

func (c *KeyRotationController) persistStateLocked() error {
	return c.repo.SaveState(repositories.RotationState{
		ActiveIndex:   c.activeIndex,
		SinceRotation: c.sinceRotation,
		Exhausted:     c.exhausted,
	})
}

// CurrentCredential returns the credential to use for the next call.
func (c *KeyRotationController) CurrentCredential() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(c.now())
	if c.exhausted {
		return "", ErrAllCredentialsExhausted
	}
	return c.credentials[c.activeIndex], nil
}

// RecordEvent logs one successful generation call and rotates the active
// credential if this event crossed the threshold. A crossing rotates
// exactly once; sustained overflow does not re-trigger because the
// per-credential counter resets at each rotation.
func (c *KeyRotationController) RecordEvent(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked(now)

	// Persist first so a failed write leaves memory untouched and the call
	// is safe to retry.
	if err := c.repo.AppendEvent(now); err != nil {
		return err
	}
	if err := c.repo.PruneBefore(now.Add(-c.window)); err != nil {
		slog.Warn("Failed to prune rotation event log", "error", err)
	}
	c.events = append(c.events, now)
	c.sinceRotation++

	if c.sinceRotation >= c.threshold {
		if c.activeIndex+1 < len(c.credentials) {
			c.activeIndex++
			c.sinceRotation = 0
			slog.Info("Rotated to next credential", "active_index", c.activeIndex)
		} else {
			c.exhausted = true
			slog.Warn("All credentials exhausted for current window")
		}
		if err := c.persistStateLocked(); err != nil {
			return fmt.Errorf("failed to persist rotation: %w", err)
		}
	}
	return nil
}

// CurrentCount reports the number of events in the trailing window.
func (c *KeyRotationController) CurrentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(c.now())
	return len(c.events)
}

func (c *KeyRotationController) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeIndex
}
