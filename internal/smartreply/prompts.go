package smartreply

import (
	"fmt"
	"strings"

	"github.com/fieldline/fieldline/internal/conversation"
)

func suggestPrompts(req SuggestRequest) (string, string) {
	business := req.BusinessName
	if business == "" {
		business = "a home-services company"
	}
	medium := "SMS"
	limit := "Keep each reply under 300 characters."
	if req.Channel == conversation.ChannelEmail {
		medium = "email"
		limit = "Keep each reply to a short paragraph without a subject line or signature."
	}
	system := fmt.Sprintf(`You write %s replies on behalf of %s, a field-service business, to its customer.
Write 3 distinct candidate replies in a %s tone. %s
Never invent prices, dates or commitments that are not in the conversation.
Respond with JSON: {"suggestions":[{"text":"...","confidence":0.0}]} where confidence is between 0 and 1.`,
		medium, business, req.Tone, limit)

	var b strings.Builder
	if req.ClientName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", req.ClientName)
	}
	b.WriteString("Conversation (oldest first):\n")
	for _, line := range formatMessages(req.Messages) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return system, b.String()
}

func intentPrompts(text string) (string, string) {
	system := fmt.Sprintf(`Classify the intent of a customer's message to a field-service business.
Choose exactly one of: %s.
Respond with JSON: {"intent":"...","confidence":0.0} where confidence is between 0 and 1.`,
		strings.Join(intents, ", "))
	return system, text
}

func formatMessages(messages []conversation.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		who := "Customer"
		if m.Direction == conversation.DirectionOutbound {
			who = "Business"
		}
		body := strings.TrimSpace(m.Body)
		if body == "" {
			body = conversation.PlainText(m.HTMLBody)
		}
		out = append(out, fmt.Sprintf("%s: %s", who, body))
	}
	return out
}

// removeCodeBlocks strips a surrounding ``` fence some models add around JSON.
func removeCodeBlocks(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
