package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/exp/slices"

	"github.com/ametov/paraphrase-bot/internal/models"
	"github.com/ametov/paraphrase-bot/internal/repositories"
)

var allowedCounts = []int{1, 2, 4}

type ActionKind string

const (
	// ActionSendText sends a plain message to the current chat.
	ActionSendText ActionKind = "send_text"
	// ActionAskCount sends the count prompt with the 2/4 buttons.
	ActionAskCount ActionKind = "ask_count"
	// ActionSendParaphrase sends one paraphrase; Final attaches the
	// Add More / New Message buttons.
	ActionSendParaphrase ActionKind = "send_paraphrase"
	// ActionLimitNotice sends the daily-limit message with Share/Try Again.
	ActionLimitNotice ActionKind = "limit_notice"
	// ActionVerifyChallenge sends the verification prompt; the delivery
	// layer registers the sent message with the gate.
	ActionVerifyChallenge ActionKind = "verify_challenge"
	// ActionNotify sends a message to another user's chat (e.g. the
	// inviter when a referral lands).
	ActionNotify ActionKind = "notify"
)

// Action describes one outbound step for the transport layer to render.
type Action struct {
	Kind         ActionKind
	Text         string
	Final        bool
	Link         string
	TargetUserId int64
}

// SessionStateMachine drives the per-user conversation: it interprets an
// inbound event against the session state, consults the ledger, the
// verification gate and the rotation controller (through the paraphrase
// pipeline), and emits the ordered outbound actions.
type SessionStateMachine struct {
	sessions         *repositories.SessionRepo
	paraphraser      *ParaphraseService
	gate             *VerificationGate
	referrals        *ReferralTracker
	referralCredit   int64
	verificationLink string
}

func NewSessionStateMachine(
	sessions *repositories.SessionRepo,
	paraphraser *ParaphraseService,
	gate *VerificationGate,
	referrals *ReferralTracker,
	referralCredit int64,
	verificationLink string,
) *SessionStateMachine {
	return &SessionStateMachine{
		sessions:         sessions,
		paraphraser:      paraphraser,
		gate:             gate,
		referrals:        referrals,
		referralCredit:   referralCredit,
		verificationLink: verificationLink,
	}
}

// HandleStart resets the session and applies a referral payload if present.
func (m *SessionStateMachine) HandleStart(ctx context.Context, user models.User, payload string) []Action {
	actions := make([]Action, 0, 2)
	if payload != "" {
		inviterId, credited, err := m.referrals.ResolveNewUser(user.Id, payload)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to apply referral", "user_id", user.Id, "error", err)
		} else if credited {
			actions = append(actions, Action{
				Kind:         ActionNotify,
				TargetUserId: inviterId,
				Text:         fmt.Sprintf("✅ You earned %d paraphrase credits for inviting %s.", m.referralCredit, user.DisplayName()),
			})
		}
	}
	m.sessions.SaveSession(models.NewSession(user.Id))
	actions = append(actions, Action{Kind: ActionSendText, Text: "Welcome! Send your message."})
	return actions
}

// HandleText stores the pending text and asks for a count. Text arriving in
// AwaitingAction starts a fresh cycle with the new text, so there is never
// more than one pending message.
func (m *SessionStateMachine) HandleText(ctx context.Context, user models.User, text string) []Action {
	session := m.sessions.GetSession(user.Id)
	session.PendingText = text
	session.State = models.StateAwaitingCount
	m.sessions.SaveSession(session)
	return []Action{{Kind: ActionAskCount, Text: "How many paraphrased versions do you want?"}}
}

// HandleCount runs the generation pipeline for the selected count.
func (m *SessionStateMachine) HandleCount(ctx context.Context, user models.User, count int) []Action {
	session := m.sessions.GetSession(user.Id)
	if session.PendingText == "" {
		return []Action{{Kind: ActionSendText, Text: "No message found. Send a message first using /start."}}
	}
	if !slices.Contains(allowedCounts, count) {
		return []Action{{Kind: ActionSendText, Text: "Invalid number of paraphrases selected. Please try again."}}
	}
	session.LastSelectedCount = count
	m.sessions.SaveSession(session)
	return m.runBatch(ctx, user, session, count)
}

// HandleAddMore repeats the last batch with the same pending text.
func (m *SessionStateMachine) HandleAddMore(ctx context.Context, user models.User) []Action {
	session := m.sessions.GetSession(user.Id)
	if session.PendingText == "" {
		return []Action{{Kind: ActionSendText, Text: "No message found. Send a message first using /start."}}
	}
	count := session.LastSelectedCount
	if count == 0 {
		count = 2
	}
	return m.runBatch(ctx, user, session, count)
}

// HandleNewMessage clears the pending text and returns to idle.
func (m *SessionStateMachine) HandleNewMessage(ctx context.Context, user models.User) []Action {
	m.sessions.ClearSession(user.Id)
	return []Action{{Kind: ActionSendText, Text: "Send your new message."}}
}

// HandleTryInvite surfaces referrals that landed since the user hit the
// cap. Credits were applied when each referral arrived; this acknowledges
// them and tells the user they can continue.
func (m *SessionStateMachine) HandleTryInvite(ctx context.Context, user models.User) []Action {
	count, err := m.referrals.AcknowledgeReferrals(user.Id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check referrals", "user_id", user.Id, "error", err)
		return []Action{{Kind: ActionSendText, Text: "An error occurred checking invites. Please try again later."}}
	}
	if count > 0 {
		earned := int64(count) * m.referralCredit
		return []Action{{
			Kind: ActionSendText,
			Text: fmt.Sprintf("✅ You have invited %d person(s). You’ve earned %d credits. Send your message to continue paraphrasing.", count, earned),
		}}
	}
	link, err := m.referrals.InviteLink(user.Id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build invite link", "user_id", user.Id, "error", err)
		return []Action{{Kind: ActionSendText, Text: "An error occurred checking invites. Please try again later."}}
	}
	return []Action{{
		Kind: ActionLimitNotice,
		Text: "❌ No new invited users found. Please invite more friends and click “Try Again” again.",
		Link: link,
	}}
}

// HandleVerify finalizes the verification step.
func (m *SessionStateMachine) HandleVerify(ctx context.Context, user models.User) []Action {
	if err := m.gate.ConfirmVerified(user.Id); err != nil {
		slog.ErrorContext(ctx, "Failed to confirm verification", "user_id", user.Id, "error", err)
		return []Action{{Kind: ActionSendText, Text: "Verification failed. Please try again later."}}
	}
	return []Action{{Kind: ActionSendText, Text: "✅ You are verified. Send your message to continue."}}
}

func (m *SessionStateMachine) runBatch(ctx context.Context, user models.User, session models.Session, count int) []Action {
	paraphrases, err := m.paraphraser.GenerateBatch(ctx, user.Id, session.PendingText, count)

	actions := make([]Action, 0, len(paraphrases)+1)
	for i, p := range paraphrases {
		actions = append(actions, Action{
			Kind:  ActionSendParaphrase,
			Text:  p,
			Final: i == len(paraphrases)-1,
		})
	}
	if len(paraphrases) > 0 {
		session.State = models.StateAwaitingAction
		m.sessions.SaveSession(session)
	}

	if err == nil {
		return actions
	}
	return append(actions, m.denialAction(ctx, user, err)...)
}

func (m *SessionStateMachine) denialAction(ctx context.Context, user models.User, cause error) []Action {
	switch {
	case errors.Is(cause, ErrDailyLimitExceeded):
		link, err := m.referrals.InviteLink(user.Id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to build invite link", "user_id", user.Id, "error", err)
			link = ""
		}
		return []Action{{
			Kind: ActionLimitNotice,
			Text: "You’ve reached your daily limit! Invite others to continue.",
			Link: link,
		}}
	case errors.Is(cause, ErrVerificationRequired):
		dec, err := m.gate.Check(user.Id)
		if err != nil {
			slog.ErrorContext(ctx, "Gate check failed", "user_id", user.Id, "error", err)
		}
		if dec == GateChallengeOutstanding {
			// A prompt is already visible; remind without creating another.
			return []Action{{Kind: ActionSendText, Text: "Please verify your account using the link sent earlier."}}
		}
		return []Action{{
			Kind: ActionVerifyChallenge,
			Text: "Please verify your account.",
			Link: m.verificationLink,
		}}
	case errors.Is(cause, ErrAllCredentialsExhausted):
		return []Action{{Kind: ActionSendText, Text: "The service is temporarily unavailable. Please try again later."}}
	case errors.Is(cause, ErrUpstreamCallFailed):
		return []Action{{Kind: ActionSendText, Text: "Failed to generate paraphrases. Please try again later."}}
	default:
		slog.ErrorContext(ctx, "Paraphrase batch failed", "user_id", user.Id, "error", cause)
		return []Action{{Kind: ActionSendText, Text: "Something went wrong. Please try again later."}}
	}
}
