package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ametov/paraphrase-bot/internal/database"
	"github.com/ametov/paraphrase-bot/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	db *database.DB
}

func NewUserRepo(db *database.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, first_name, last_name, username, chat_id,
	lifetime_generations, today_generations, day_window_start,
	referral_credits, verified, pending_verification_message_id,
	verification_sent_at, referred_by, invited_count, invite_code`

func (r *UserRepo) Register(user models.User) (models.User, error) {
	if user.DayWindowStart == 0 {
		user.DayWindowStart = time.Now().Unix()
	}
	query := `
		INSERT INTO users (
			id, first_name, last_name, username, chat_id,
			day_window_start, referred_by, invite_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		user.Id,
		user.FirstName,
		user.LastName,
		user.Username,
		user.ChatId,
		user.DayWindowStart,
		user.ReferredBy,
		user.InviteCode,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to register user: %w", err)
	}
	return r.GetUser(user.Id)
}

func (r *UserRepo) CheckIfUserExists(userId int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userId).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) GetUser(userId int64) (models.User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, userId)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetUserByInviteCode(code string) (models.User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE invite_code = ?`, code)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user by invite code: %w", err)
	}
	return user, nil
}

func (r *UserRepo) UpdateUser(user models.User) error {
	query := `
		UPDATE users SET
			first_name = ?, last_name = ?, username = ?, chat_id = ?,
			lifetime_generations = ?, today_generations = ?, day_window_start = ?,
			referral_credits = ?, verified = ?,
			pending_verification_message_id = ?, verification_sent_at = ?,
			referred_by = ?, invited_count = ?, invite_code = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.ChatId,
		user.LifetimeGenerations,
		user.TodayGenerations,
		user.DayWindowStart,
		user.ReferralCredits,
		user.Verified,
		user.PendingVerificationMessageId,
		user.VerificationSentAt,
		user.ReferredBy,
		user.InvitedCount,
		user.InviteCode,
		user.Id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// GetUsersWithExpiredPrompts returns users whose verification prompt was sent
// before the cutoff and is still unconfirmed.
func (r *UserRepo) GetUsersWithExpiredPrompts(cutoff time.Time) ([]models.User, error) {
	rows, err := r.db.Query(
		`SELECT `+userColumns+` FROM users WHERE verification_sent_at > 0 AND verification_sent_at < ?`,
		cutoff.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired prompts: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepo) CountUsers() (int64, error) {
	var count int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var lastName, username sql.NullString
	err := row.Scan(
		&user.Id,
		&user.FirstName,
		&lastName,
		&username,
		&user.ChatId,
		&user.LifetimeGenerations,
		&user.TodayGenerations,
		&user.DayWindowStart,
		&user.ReferralCredits,
		&user.Verified,
		&user.PendingVerificationMessageId,
		&user.VerificationSentAt,
		&user.ReferredBy,
		&user.InvitedCount,
		&user.InviteCode,
	)
	if err != nil {
		return models.User{}, err
	}
	user.LastName = lastName.String
	user.Username = username.String
	return user, nil
}
