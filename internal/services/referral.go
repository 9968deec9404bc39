package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ametov/paraphrase-bot/internal/models"
	"github.com/ametov/paraphrase-bot/internal/repositories"
)

type ReferralUsersRepo interface {
	GetUser(userId int64) (models.User, error)
	GetUserByInviteCode(code string) (models.User, error)
	UpdateUser(user models.User) error
}

type ReferralsRepo interface {
	CreateReferral(inviterId, invitedId int64) error
	GetUnacknowledged(inviterId int64) ([]models.Referral, error)
	Acknowledge(ids []int64, at time.Time) error
}

// ReferralTracker maps invite codes to inviters and credits them when an
// invited user shows up for the first time.
type ReferralTracker struct {
	usersRepo     ReferralUsersRepo
	referralsRepo ReferralsRepo
	ledger        *UsageLedger
	creditAmount  int64
	botUsername   string
	now           func() time.Time
}

func NewReferralTracker(
	usersRepo ReferralUsersRepo,
	referralsRepo ReferralsRepo,
	ledger *UsageLedger,
	creditAmount int64,
	botUsername string,
) *ReferralTracker {
	return &ReferralTracker{
		usersRepo:     usersRepo,
		referralsRepo: referralsRepo,
		ledger:        ledger,
		creditAmount:  creditAmount,
		botUsername:   botUsername,
		now:           time.Now,
	}
}

// MakeInviteCode builds a stable shareable code for a user.
func MakeInviteCode(userId int64) string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("invite_%d_%s", userId, suffix)
}

// EnsureInviteCode returns the user's invite code, generating and storing
// one on first use.
func (t *ReferralTracker) EnsureInviteCode(userId int64) (string, error) {
	user, err := t.usersRepo.GetUser(userId)
	if err != nil {
		return "", fmt.Errorf("failed to load user for invite code: %w", err)
	}
	if user.InviteCode != "" {
		return user.InviteCode, nil
	}
	user.InviteCode = MakeInviteCode(userId)
	if err := t.usersRepo.UpdateUser(user); err != nil {
		return "", fmt.Errorf("failed to store invite code: %w", err)
	}
	return user.InviteCode, nil
}

// InviteLink returns the shareable deep link for a user's invite code.
func (t *ReferralTracker) InviteLink(userId int64) (string, error) {
	code, err := t.EnsureInviteCode(userId)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", t.botUsername, code), nil
}

// ResolveNewUser applies an invite code on an invited user's very first
// interaction. Self-referral and users that already carry a referrer are
// no-ops. Returns the inviter id when crediting happened.
func (t *ReferralTracker) ResolveNewUser(invitedId int64, inviteCode string) (int64, bool, error) {
	if inviteCode == "" {
		return 0, false, nil
	}
	invited, err := t.usersRepo.GetUser(invitedId)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load invited user: %w", err)
	}
	if invited.ReferredBy != 0 {
		return 0, false, nil
	}

	inviter, err := t.usersRepo.GetUserByInviteCode(inviteCode)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to resolve invite code: %w", err)
	}
	if inviter.Id == invitedId {
		return 0, false, nil
	}

	// The unique constraint on invited_id makes the crediting idempotent:
	// the same invited user can never credit an inviter twice.
	if err := t.referralsRepo.CreateReferral(inviter.Id, invitedId); err != nil {
		if errors.Is(err, repositories.ErrAlreadyReferred) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to record referral: %w", err)
	}

	invited.ReferredBy = inviter.Id
	if err := t.usersRepo.UpdateUser(invited); err != nil {
		return 0, false, fmt.Errorf("failed to mark referred user: %w", err)
	}

	if err := t.ledger.CreditReferral(inviter.Id, t.creditAmount); err != nil {
		return 0, false, err
	}
	return inviter.Id, true, nil
}

// AcknowledgeReferrals is the "Try Again" flow: it marks this inviter's
// fresh referrals as seen and reports how many there were. Credits were
// already applied when each referral landed, so this only surfaces them.
func (t *ReferralTracker) AcknowledgeReferrals(inviterId int64) (int, error) {
	referrals, err := t.referralsRepo.GetUnacknowledged(inviterId)
	if err != nil {
		return 0, err
	}
	if len(referrals) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(referrals))
	for _, ref := range referrals {
		ids = append(ids, ref.Id)
	}
	if err := t.referralsRepo.Acknowledge(ids, t.now()); err != nil {
		return 0, err
	}
	return len(referrals), nil
}
