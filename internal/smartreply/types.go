// Package smartreply asks an OpenAI-compatible model for reply suggestions
// and intent labels on inbox conversations.
package smartreply

import (
	"context"
	"errors"

	"github.com/fieldline/fieldline/internal/conversation"
)

// DefaultHistory is how many recent messages are sent as context.
const DefaultHistory = 10

var (
	ErrDisabled   = errors.New("smart replies are not configured")
	ErrNoMessages = errors.New("conversation has no messages")
)

// Tone steers the voice of generated replies.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneBrief        Tone = "brief"
)

// ParseTone maps raw input to a Tone, defaulting to professional.
func ParseTone(raw string) Tone {
	switch Tone(raw) {
	case ToneFriendly, ToneBrief:
		return Tone(raw)
	default:
		return ToneProfessional
	}
}

// SuggestRequest is the context for one suggestion round.
type SuggestRequest struct {
	Messages     []conversation.Message
	Channel      conversation.Channel
	ClientName   string
	BusinessName string
	Tone         Tone
}

// Suggestion is one candidate reply.
type Suggestion struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Tone       Tone    `json:"tone"`
	Confidence float64 `json:"confidence"`
}

// Intent is the classification of an inbound message.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Known intent labels. Anything else the model returns becomes IntentOther.
const (
	IntentScheduling   = "scheduling"
	IntentPricing      = "pricing"
	IntentComplaint    = "complaint"
	IntentConfirmation = "confirmation"
	IntentCancellation = "cancellation"
	IntentPayment      = "payment"
	IntentQuestion     = "question"
	IntentOther        = "other"
)

var intents = []string{
	IntentScheduling, IntentPricing, IntentComplaint, IntentConfirmation,
	IntentCancellation, IntentPayment, IntentQuestion, IntentOther,
}

// Assistant is what the inbox session calls.
type Assistant interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	ClassifyIntent(ctx context.Context, text string) (Intent, error)
}

// Disabled is the Assistant used when no model is configured.
type Disabled struct{}

func (Disabled) Suggest(context.Context, SuggestRequest) ([]Suggestion, error) {
	return nil, ErrDisabled
}

func (Disabled) ClassifyIntent(context.Context, string) (Intent, error) {
	return Intent{}, ErrDisabled
}
