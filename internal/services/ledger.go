package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/ametov/paraphrase-bot/internal/models"
)

type LedgerUsersRepo interface {
	GetUser(userId int64) (models.User, error)
	UpdateUser(user models.User) error
}

// UsageLedger enforces the daily cap and tracks lifetime usage. All
// mutations of one user's counters run under that user's lock so a
// concurrent pair of requests against the last remaining slots sees exactly
// one winner.
type UsageLedger struct {
	usersRepo LedgerUsersRepo
	dailyCap  int64
	locks     sync.Map
	now       func() time.Time
}

func NewUsageLedger(usersRepo LedgerUsersRepo, dailyCap int64) *UsageLedger {
	return &UsageLedger{
		usersRepo: usersRepo,
		dailyCap:  dailyCap,
		now:       time.Now,
	}
}

func (l *UsageLedger) userLock(userId int64) *sync.Mutex {
	lock, _ := l.locks.LoadOrStore(userId, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// rolloverIfNeeded resets the daily counter when a new UTC calendar day has
// started since the window began. Caller must hold the user lock.
func (l *UsageLedger) rolloverIfNeeded(user *models.User, now time.Time) {
	if user.SameDay(now) {
		return
	}
	user.TodayGenerations = 0
	user.DayWindowStart = now.Unix()
}

// TryConsume reserves n daily generation slots, all or nothing. A request
// that does not fit entirely is denied and consumes nothing; it is never
// downgraded to the remaining amount.
func (l *UsageLedger) TryConsume(userId int64, n int64) error {
	lock := l.userLock(userId)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.usersRepo.GetUser(userId)
	if err != nil {
		return fmt.Errorf("failed to load user for consume: %w", err)
	}

	now := l.now()
	l.rolloverIfNeeded(&user, now)

	remaining := l.dailyCap + user.ReferralCredits - user.TodayGenerations
	if remaining < n {
		// Persist the rollover even on denial so the window start stays
		// accurate.
		if err := l.usersRepo.UpdateUser(user); err != nil {
			return fmt.Errorf("failed to persist rollover: %w", err)
		}
		return ErrDailyLimitExceeded
	}

	user.TodayGenerations += n
	if err := l.usersRepo.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to persist consume: %w", err)
	}
	return nil
}

// Refund returns unused daily slots reserved by TryConsume, e.g. when part
// of a batch failed upstream. Lifetime counters are untouched; they only
// ever count successes.
func (l *UsageLedger) Refund(userId int64, n int64) error {
	if n <= 0 {
		return nil
	}
	lock := l.userLock(userId)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.usersRepo.GetUser(userId)
	if err != nil {
		return fmt.Errorf("failed to load user for refund: %w", err)
	}
	user.TodayGenerations -= n
	if user.TodayGenerations < 0 {
		user.TodayGenerations = 0
	}
	if err := l.usersRepo.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to persist refund: %w", err)
	}
	return nil
}

// RecordSuccess bumps the monotonic lifetime counter for one completed
// generation call.
func (l *UsageLedger) RecordSuccess(userId int64) error {
	lock := l.userLock(userId)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.usersRepo.GetUser(userId)
	if err != nil {
		return fmt.Errorf("failed to load user for success: %w", err)
	}
	user.LifetimeGenerations++
	if err := l.usersRepo.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to persist success: %w", err)
	}
	return nil
}

// CreditReferral widens the inviter's daily allowance by amount and bumps
// their invited count, both under the inviter's lock so concurrent invited
// users cannot lose an increment. Credits persist across day boundaries,
// which is equivalent to raising the daily cap for that user.
func (l *UsageLedger) CreditReferral(inviterId int64, amount int64) error {
	lock := l.userLock(inviterId)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.usersRepo.GetUser(inviterId)
	if err != nil {
		return fmt.Errorf("failed to load inviter: %w", err)
	}
	user.ReferralCredits += amount
	user.InvitedCount++
	if err := l.usersRepo.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to persist referral credit: %w", err)
	}
	return nil
}

// Remaining reports how many generations the user can still run today.
func (l *UsageLedger) Remaining(userId int64) (int64, error) {
	lock := l.userLock(userId)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.usersRepo.GetUser(userId)
	if err != nil {
		return 0, fmt.Errorf("failed to load user: %w", err)
	}
	l.rolloverIfNeeded(&user, l.now())
	remaining := l.dailyCap + user.ReferralCredits - user.TodayGenerations
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
