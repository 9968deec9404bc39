package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ametov/paraphrase-bot/internal/database"
	"github.com/ametov/paraphrase-bot/internal/models"
)

// ErrAlreadyReferred means the invited user already has a referral row; the
// unique constraint on invited_id guarantees at most one per user.
var ErrAlreadyReferred = errors.New("user already referred")

type ReferralRepo struct {
	db *database.DB
}

func NewReferralRepo(db *database.DB) *ReferralRepo {
	return &ReferralRepo{db: db}
}

// CreateReferral records a successful referral. A duplicate invited user is
// reported as ErrAlreadyReferred so callers can tell the idempotent no-op
// apart from a storage failure.
func (r *ReferralRepo) CreateReferral(inviterId, invitedId int64) error {
	_, err := r.db.Exec(
		`INSERT INTO referrals (inviter_id, invited_id) VALUES (?, ?)`,
		inviterId, invitedId,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyReferred
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *ReferralRepo) GetUnacknowledged(inviterId int64) ([]models.Referral, error) {
	rows, err := r.db.Query(
		`SELECT id, inviter_id, invited_id, acknowledged, created_at
		 FROM referrals WHERE inviter_id = ? AND acknowledged = false`,
		inviterId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	defer rows.Close()

	referrals := make([]models.Referral, 0)
	for rows.Next() {
		var ref models.Referral
		if err := rows.Scan(&ref.Id, &ref.InviterId, &ref.InvitedId, &ref.Acknowledged, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, ref)
	}
	return referrals, rows.Err()
}

func (r *ReferralRepo) Acknowledge(ids []int64, at time.Time) error {
	for _, id := range ids {
		_, err := r.db.Exec(
			`UPDATE referrals SET acknowledged = true, ack_at = ? WHERE id = ?`,
			at.Unix(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to acknowledge referral %d: %w", id, err)
		}
	}
	return nil
}
