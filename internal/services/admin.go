package services

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ametov/paraphrase-bot/internal/models"
)

type AdminsRepo interface {
	RegisterAdmin(admin models.Admin) error
	ListAdmins() ([]models.Admin, error)
}

// AdminService handles the password-gated admin registration. A registered
// admin never re-authenticates; they just receive the daily reports.
type AdminService struct {
	adminsRepo   AdminsRepo
	passwordHash string
	awaiting     sync.Map
	now          func() time.Time
}

func NewAdminService(adminsRepo AdminsRepo, passwordHash string) *AdminService {
	return &AdminService{
		adminsRepo:   adminsRepo,
		passwordHash: passwordHash,
		now:          time.Now,
	}
}

// BeginAuth marks the user as awaiting a password; their next text message
// is treated as the attempt.
func (s *AdminService) BeginAuth(userId int64) {
	s.awaiting.Store(userId, struct{}{})
}

func (s *AdminService) AwaitingPassword(userId int64) bool {
	_, ok := s.awaiting.Load(userId)
	return ok
}

// SubmitPassword checks the candidate against the configured bcrypt hash
// and registers the admin on success. The awaiting flag clears either way.
func (s *AdminService) SubmitPassword(userId int64, displayName string, candidate string) (bool, error) {
	s.awaiting.Delete(userId)
	if s.passwordHash == "" {
		return false, fmt.Errorf("admin password not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(candidate)); err != nil {
		return false, nil
	}
	err := s.adminsRepo.RegisterAdmin(models.Admin{
		UserId:          userId,
		DisplayName:     displayName,
		AuthenticatedAt: s.now().Unix(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
