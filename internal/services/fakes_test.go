package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ametov/paraphrase-bot/internal/models"
	"github.com/ametov/paraphrase-bot/internal/repositories"
)

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[int64]models.User
}

func newFakeUsersRepo(users ...models.User) *fakeUsersRepo {
	repo := &fakeUsersRepo{users: make(map[int64]models.User)}
	for _, user := range users {
		repo.users[user.Id] = user
	}
	return repo
}

func (r *fakeUsersRepo) GetUser(userId int64) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userId]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUsersRepo) GetUserByInviteCode(code string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.InviteCode != "" && user.InviteCode == code {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrUserNotFound
}

func (r *fakeUsersRepo) UpdateUser(user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.Id] = user
	return nil
}

func (r *fakeUsersRepo) GetUsersWithExpiredPrompts(cutoff time.Time) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0)
	for _, user := range r.users {
		if user.VerificationSentAt > 0 && user.VerificationSentAt < cutoff.Unix() {
			out = append(out, user)
		}
	}
	return out, nil
}

type fakeReferralsRepo struct {
	mu        sync.Mutex
	nextId    int64
	createErr error
	referrals []models.Referral
}

func newFakeReferralsRepo() *fakeReferralsRepo {
	return &fakeReferralsRepo{nextId: 1}
}

func (r *fakeReferralsRepo) CreateReferral(inviterId, invitedId int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, ref := range r.referrals {
		if ref.InvitedId == invitedId {
			return repositories.ErrAlreadyReferred
		}
	}
	r.referrals = append(r.referrals, models.Referral{
		Id:        r.nextId,
		InviterId: inviterId,
		InvitedId: invitedId,
	})
	r.nextId++
	return nil
}

func (r *fakeReferralsRepo) GetUnacknowledged(inviterId int64) ([]models.Referral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Referral, 0)
	for _, ref := range r.referrals {
		if ref.InviterId == inviterId && !ref.Acknowledged {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *fakeReferralsRepo) Acknowledge(ids []int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.referrals {
		for _, id := range ids {
			if r.referrals[i].Id == id {
				r.referrals[i].Acknowledged = true
			}
		}
	}
	return nil
}

type fakeRotationRepo struct {
	mu     sync.Mutex
	events []time.Time
	state  repositories.RotationState
}

func (r *fakeRotationRepo) AppendEvent(ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ts)
	return nil
}

func (r *fakeRotationRepo) PruneBefore(cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	for _, ts := range r.events {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.events = kept
	return nil
}

func (r *fakeRotationRepo) LoadEventsSince(cutoff time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, 0)
	for _, ts := range r.events {
		if !ts.Before(cutoff) {
			out = append(out, ts)
		}
	}
	return out, nil
}

func (r *fakeRotationRepo) SaveState(state repositories.RotationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	return nil
}

func (r *fakeRotationRepo) LoadState() (repositories.RotationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

// fakeLLM returns canned outputs, or fails calls whose index (1-based) is
// listed in failOn.
type fakeLLM struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	output string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, credential string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[f.calls] {
		return "", errors.New("upstream boom")
	}
	if f.output != "" {
		return f.output, nil
	}
	return "paraphrased text", nil
}
