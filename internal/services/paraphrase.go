package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

var wordRe = regexp.MustCompile(`\S+`)

func WordCount(text string) int {
	return len(wordRe.FindAllString(text, -1))
}

// ParaphraseService orchestrates one batch of generation calls. It knows
// nothing about which credential is in play beyond asking the rotation
// controller immediately before each call.
type ParaphraseService struct {
	client     LLMClient
	ledger     *UsageLedger
	gate       *VerificationGate
	rotation   *KeyRotationController
	wordTarget int
	now        func() time.Time
}

func NewParaphraseService(
	client LLMClient,
	ledger *UsageLedger,
	gate *VerificationGate,
	rotation *KeyRotationController,
	wordTarget int,
) *ParaphraseService {
	return &ParaphraseService{
		client:     client,
		ledger:     ledger,
		gate:       gate,
		rotation:   rotation,
		wordTarget: wordTarget,
		now:        time.Now,
	}
}

// targetWords caps the requested output length: long sources are condensed
// toward the configured target, short ones keep their own length.
func (s *ParaphraseService) targetWords(text string) int {
	words := WordCount(text)
	if words > s.wordTarget {
		return s.wordTarget
	}
	return words
}

func (s *ParaphraseService) buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Paraphrase the following post carefully.\n")
	b.WriteString("Your job is to rewrite the text using different wording while keeping the same meaning.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Keep the original language. Do NOT translate anything.\n")
	b.WriteString("- Maintain emojis, formatting, line breaks, bullet points, and spacing.\n")
	b.WriteString("- Keep numbers, symbols, and special characters unchanged.\n")
	b.WriteString("- Do not remove links, usernames, or emojis.\n")
	fmt.Fprintf(&b, "- Aim for about %d words.\n", s.targetWords(text))
	fmt.Fprintf(&b, "\nPost:\n%s\n\n", text)
	b.WriteString("Reply with exactly one paraphrased version and nothing else. No numbering, no commentary.")
	return b.String()
}

// GenerateBatch produces up to n paraphrases of text for the user. The
// daily reservation is all-or-nothing up front; during the batch each call
// re-checks the free-tier gate and the rotation controller. On any per-call
// stop the unused reservation is refunded and the paraphrases produced so
// far are returned alongside the sentinel error.
func (s *ParaphraseService) GenerateBatch(ctx context.Context, userId int64, text string, n int) ([]string, error) {
	if dec, err := s.gate.Check(userId); err != nil {
		return nil, err
	} else if dec != GatePass {
		return nil, ErrVerificationRequired
	}

	if err := s.ledger.TryConsume(userId, int64(n)); err != nil {
		return nil, err
	}

	paraphrases := make([]string, 0, n)
	stop := func(cause error) ([]string, error) {
		if err := s.ledger.Refund(userId, int64(n-len(paraphrases))); err != nil {
			slog.ErrorContext(ctx, "Failed to refund unused quota", "user_id", userId, "error", err)
		}
		return paraphrases, cause
	}

	for i := 0; i < n; i++ {
		if i > 0 {
			// The free-tier boundary can land mid-batch: deliver what we
			// have and challenge instead of the next call.
			dec, err := s.gate.Check(userId)
			if err != nil {
				return stop(err)
			}
			if dec != GatePass {
				return stop(ErrVerificationRequired)
			}
		}

		credential, err := s.rotation.CurrentCredential()
		if err != nil {
			return stop(err)
		}

		out, err := s.client.Generate(ctx, s.buildPrompt(text), credential)
		if err != nil {
			slog.ErrorContext(ctx, "Generation call failed", "user_id", userId, "call", i+1, "error", err)
			return stop(fmt.Errorf("%w: %v", ErrUpstreamCallFailed, err))
		}

		if err := s.ledger.RecordSuccess(userId); err != nil {
			return stop(err)
		}
		if err := s.rotation.RecordEvent(s.now()); err != nil {
			slog.ErrorContext(ctx, "Failed to record rotation event", "error", err)
		}
		paraphrases = append(paraphrases, cleanParaphrase(out))
	}
	return paraphrases, nil
}

var leadingNumberRe = regexp.MustCompile(`^\s*\**\s*\d{1,2}\s*[:\)\-\.]\s*`)

// cleanParaphrase strips stray numbering or markdown the model sometimes
// prepends despite the prompt.
func cleanParaphrase(out string) string {
	out = strings.TrimSpace(out)
	out = leadingNumberRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
