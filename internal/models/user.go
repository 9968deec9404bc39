package models

import "time"

type User struct {
	Id                  int64
	FirstName           string
	LastName            string
	Username            string
	ChatId              int64
	LifetimeGenerations int64
	TodayGenerations    int64
	DayWindowStart      int64
	ReferralCredits     int64
	Verified            bool
	// Set only while an unconfirmed verification prompt is outstanding.
	PendingVerificationMessageId int64
	VerificationSentAt           int64
	ReferredBy                   int64
	InvitedCount                 int64
	InviteCode                   string
}

func (u *User) HasPendingVerification() bool {
	return u.VerificationSentAt != 0
}

func (u *User) ClearPendingVerification() {
	u.PendingVerificationMessageId = 0
	u.VerificationSentAt = 0
}

// DisplayName mirrors what Telegram shows for the user.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// SameDay reports whether the current daily window still covers now.
// Daily windows are aligned to UTC calendar days.
func (u *User) SameDay(now time.Time) bool {
	windowStart := time.Unix(u.DayWindowStart, 0).UTC()
	y1, m1, d1 := windowStart.Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
