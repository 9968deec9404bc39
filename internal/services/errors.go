package services

import "errors"

var (
	// ErrDailyLimitExceeded means the request would push the user past the
	// daily cap (after referral credits); nothing was consumed.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")

	// ErrVerificationRequired means the user crossed the free tier and must
	// verify before generating again.
	ErrVerificationRequired = errors.New("verification required")

	// ErrUpstreamCallFailed wraps a single failed generation call.
	ErrUpstreamCallFailed = errors.New("upstream call failed")

	// ErrAllCredentialsExhausted means rotation advanced past the last
	// credential within the current window.
	ErrAllCredentialsExhausted = errors.New("all credentials exhausted")
)
