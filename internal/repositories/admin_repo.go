package repositories

import (
	"fmt"

	"github.com/ametov/paraphrase-bot/internal/database"
	"github.com/ametov/paraphrase-bot/internal/models"
)

type AdminRepo struct {
	db *database.DB
}

func NewAdminRepo(db *database.DB) *AdminRepo {
	return &AdminRepo{db: db}
}

// RegisterAdmin is idempotent; re-authentication keeps the original record.
func (r *AdminRepo) RegisterAdmin(admin models.Admin) error {
	query := `
		INSERT INTO admins (user_id, display_name, authenticated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`
	if _, err := r.db.Exec(query, admin.UserId, admin.DisplayName, admin.AuthenticatedAt); err != nil {
		return fmt.Errorf("failed to register admin: %w", err)
	}
	return nil
}

func (r *AdminRepo) IsAdmin(userId int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM admins WHERE user_id = ?)`, userId).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return exists, nil
}

func (r *AdminRepo) ListAdmins() ([]models.Admin, error) {
	rows, err := r.db.Query(`SELECT user_id, display_name, authenticated_at FROM admins`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	admins := make([]models.Admin, 0)
	for rows.Next() {
		var admin models.Admin
		if err := rows.Scan(&admin.UserId, &admin.DisplayName, &admin.AuthenticatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}
