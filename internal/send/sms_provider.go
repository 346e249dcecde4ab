package send

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SMS is one text to deliver.
type SMS struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// SMSProvider delivers texts and returns the provider's message id.
type SMSProvider interface {
	SendSMS(ctx context.Context, msg SMS) (string, error)
}

// HTTPSMSProvider posts to a JSON messaging API at {base}/messages.
type HTTPSMSProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPSMSProvider(baseURL, apiKey string, timeout time.Duration) (*HTTPSMSProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("sms provider base url is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSMSProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type smsResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (p *HTTPSMSProvider) SendSMS(ctx context.Context, msg SMS) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var parsed smsResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("decode provider response: %w", err)
		}
	}
	return parsed.ID, nil
}

// DisabledSMSProvider rejects every send. Used when no provider is configured.
type DisabledSMSProvider struct{}

func (DisabledSMSProvider) SendSMS(context.Context, SMS) (string, error) {
	return "", errors.New("sms provider not configured")
}
