package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ametov/paraphrase-bot/internal/models"
)

type ReportUsersRepo interface {
	CountUsers() (int64, error)
}

type ReportAdminsRepo interface {
	ListAdmins() ([]models.Admin, error)
}

// WindowCounter reports generation events in the trailing window; the
// rotation controller satisfies it.
type WindowCounter interface {
	CurrentCount() int
}

// Notifier delivers a text message to a user's chat. Satisfied by the
// telebot layer.
type Notifier interface {
	NotifyUser(userId int64, text string) error
}

// ReportScheduler sends each registered admin a usage summary once per
// cycle. It only reads aggregate state.
type ReportScheduler struct {
	usersRepo  ReportUsersRepo
	adminsRepo ReportAdminsRepo
	window     WindowCounter
	notifier   Notifier
	interval   time.Duration

	ticker    *time.Ticker
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func NewReportScheduler(
	usersRepo ReportUsersRepo,
	adminsRepo ReportAdminsRepo,
	window WindowCounter,
	notifier Notifier,
	interval time.Duration,
) *ReportScheduler {
	return &ReportScheduler{
		usersRepo:  usersRepo,
		adminsRepo: adminsRepo,
		window:     window,
		notifier:   notifier,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

func (s *ReportScheduler) SendReport() error {
	admins, err := s.adminsRepo.ListAdmins()
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	if len(admins) == 0 {
		return nil
	}
	totalUsers, err := s.usersRepo.CountUsers()
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	last24h := s.window.CurrentCount()

	message := fmt.Sprintf("Daily Report\n\nTotal users: %d\nParaphrases in last 24 hours: %d", totalUsers, last24h)
	for _, admin := range admins {
		if err := s.notifier.NotifyUser(admin.UserId, message); err != nil {
			slog.Error("Failed to send admin report", "admin_id", admin.UserId, "error", err)
		}
	}
	return nil
}

func (s *ReportScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("Report scheduler started", "interval", s.interval)
		for {
			select {
			case <-s.ticker.C:
				if err := s.SendReport(); err != nil {
					slog.Error("Failed to send daily report", "error", err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *ReportScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	s.ticker.Stop()
	close(s.stopChan)
	s.wg.Wait()
}
