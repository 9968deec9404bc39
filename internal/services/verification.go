package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ametov/paraphrase-bot/internal/models"
)

type GateDecision int

const (
	GatePass GateDecision = iota
	// GateChallenge means generation must not proceed and a fresh
	// verification prompt should be shown.
	GateChallenge
	// GateChallengeOutstanding means generation must not proceed but a
	// prompt is already visible; do not send a duplicate.
	GateChallengeOutstanding
)

type GateUsersRepo interface {
	GetUser(userId int64) (models.User, error)
	UpdateUser(user models.User) error
	GetUsersWithExpiredPrompts(cutoff time.Time) ([]models.User, error)
}

// MessageDeleter removes a previously sent chat message. Satisfied by the
// telebot layer.
type MessageDeleter interface {
	DeleteMessage(chatId int64, messageId int64) error
}

// VerificationGate demands a one-time verification once a user's lifetime
// usage crosses the free tier. The threshold is lifetime-cumulative; only
// the daily cap resets.
type VerificationGate struct {
	usersRepo GateUsersRepo
	threshold int64
	promptTTL time.Duration
	now       func() time.Time

	ticker    *time.Ticker
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func NewVerificationGate(usersRepo GateUsersRepo, threshold int64, promptTTL time.Duration) *VerificationGate {
	return &VerificationGate{
		usersRepo: usersRepo,
		threshold: threshold,
		promptTTL: promptTTL,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Check decides whether the user's next generation call may proceed.
func (g *VerificationGate) Check(userId int64) (GateDecision, error) {
	user, err := g.usersRepo.GetUser(userId)
	if err != nil {
		return GateChallenge, fmt.Errorf("failed to load user for gate check: %w", err)
	}
	if user.Verified {
		return GatePass, nil
	}
	if user.LifetimeGenerations+1 <= g.threshold {
		return GatePass, nil
	}
	if user.HasPendingVerification() {
		return GateChallengeOutstanding, nil
	}
	return GateChallenge, nil
}

// RegisterPrompt records the handle of the verification message just sent,
// so at most one prompt is outstanding per user.
func (g *VerificationGate) RegisterPrompt(userId int64, messageId int64) error {
	user, err := g.usersRepo.GetUser(userId)
	if err != nil {
		return fmt.Errorf("failed to load user for prompt registration: %w", err)
	}
	if user.HasPendingVerification() {
		return nil
	}
	user.PendingVerificationMessageId = messageId
	user.VerificationSentAt = g.now().Unix()
	if err := g.usersRepo.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to persist verification prompt: %w", err)
	}
	return nil
}

// ConfirmVerified marks the user verified and clears any outstanding
// prompt. Idempotent.
func (g *VerificationGate) ConfirmVerified(userId int64) error {
	user, err := g.usersRepo.GetUser(userId)
	if err != nil {
		return fmt.Errorf("failed to load user for confirmation: %w", err)
	}
	if user.Verified && !user.HasPendingVerification() {
		return nil
	}
	user.Verified = true
	user.ClearPendingVerification()
	if err := g.usersRepo.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to persist verification: %w", err)
	}
	return nil
}

// SweepExpiredPrompts deletes verification messages older than the TTL and
// clears their handles. An expired prompt is not a verification failure; the
// user simply gets a new challenge on their next attempt.
func (g *VerificationGate) SweepExpiredPrompts(deleter MessageDeleter) error {
	cutoff := g.now().Add(-g.promptTTL)
	users, err := g.usersRepo.GetUsersWithExpiredPrompts(cutoff)
	if err != nil {
		return fmt.Errorf("failed to find expired prompts: %w", err)
	}
	for _, user := range users {
		if err := deleter.DeleteMessage(user.ChatId, user.PendingVerificationMessageId); err != nil {
			// The message may already be gone; clear the record regardless.
			slog.Warn("Failed to delete expired verification prompt", "user_id", user.Id, "error", err)
		}
		user.ClearPendingVerification()
		if err := g.usersRepo.UpdateUser(user); err != nil {
			return fmt.Errorf("failed to clear expired prompt: %w", err)
		}
	}
	return nil
}

// StartSweeper runs SweepExpiredPrompts on a fixed interval until Stop.
func (g *VerificationGate) StartSweeper(interval time.Duration, deleter MessageDeleter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isRunning {
		return
	}
	g.isRunning = true
	g.ticker = time.NewTicker(interval)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		slog.Info("Verification prompt sweeper started", "interval", interval)
		for {
			select {
			case <-g.ticker.C:
				if err := g.SweepExpiredPrompts(deleter); err != nil {
					slog.Error("Verification sweep failed", "error", err)
				}
			case <-g.stopChan:
				return
			}
		}
	}()
}

func (g *VerificationGate) StopSweeper() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isRunning {
		return
	}
	g.isRunning = false
	g.ticker.Stop()
	close(g.stopChan)
	g.wg.Wait()
}
