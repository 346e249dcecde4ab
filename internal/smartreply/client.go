package smartreply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxSuggestions = 3

// Client talks to a /chat/completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	history int
	logger  *slog.Logger
	http    *http.Client
}

func NewClient(log *slog.Logger, baseURL, apiKey, model string, history int, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("smart reply client: base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("smart reply client: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("smart reply client: model is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if history <= 0 {
		history = DefaultHistory
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		history: history,
		logger:  log.With(slog.String("client", "smartreply")),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Suggest returns up to three replies ranked by confidence. Only the most
// recent messages are sent.
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}
	if len(req.Messages) > c.history {
		req.Messages = req.Messages[len(req.Messages)-c.history:]
	}
	req.Tone = ParseTone(string(req.Tone))
	system, user := suggestPrompts(req)
	content, err := c.callChat(ctx, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Suggestions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(removeCodeBlocks(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	out := make([]Suggestion, 0, len(parsed.Suggestions))
	for _, s := range parsed.Suggestions {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, Suggestion{
			ID:         uuid.NewString(),
			Text:       text,
			Tone:       req.Tone,
			Confidence: clamp01(s.Confidence),
		})
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, nil
}

// ClassifyIntent labels text with one of the known intents.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	if strings.TrimSpace(text) == "" {
		return Intent{}, errors.New("text is required")
	}
	system, user := intentPrompts(text)
	content, err := c.callChat(ctx, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return Intent{}, err
	}
	var parsed Intent
	if err := json.Unmarshal([]byte(removeCodeBlocks(content)), &parsed); err != nil {
		return Intent{}, fmt.Errorf("parse intent: %w", err)
	}
	label := strings.ToLower(strings.TrimSpace(parsed.Intent))
	if !slices.Contains(intents, label) {
		c.logger.Debug("unknown intent label", slog.String("intent", parsed.Intent))
		label = IntentOther
	}
	return Intent{Intent: label, Confidence: clamp01(parsed.Confidence)}, nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) callChat(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Temperature:    0.4,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages:       messages,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llm error: %s %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", errors.New("llm response missing content")
	}
	return parsed.Choices[0].Message.Content, nil
}
