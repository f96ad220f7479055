package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// MailAPIClient sends email through an HTTP mail relay API.
type MailAPIClient struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewMailAPIClient returns a client for the relay at baseURL sending as from.
func NewMailAPIClient(apiKey, baseURL, from string) *MailAPIClient {
	return &MailAPIClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Deliver posts one message to the relay. Does not log the body, which may
// carry an OTP.
func (c *MailAPIClient) Deliver(ctx context.Context, recipient, subject, body string) error {
	if c.APIKey == "" {
		return fmt.Errorf("mail: API key not configured")
	}
	payload := map[string]interface{}{
		"from":    c.From,
		"to":      recipient,
		"subject": subject,
		"text":    body,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
