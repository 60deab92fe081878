// Package googlechat posts text messages to a Google Chat incoming webhook.
package googlechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxTextLength is the largest message Google Chat accepts in the text field.
const MaxTextLength = 4000

// Config captures the webhook settings.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers messages to one webhook.
type Client struct {
	webhookURL string
	retryLimit int
	client     *http.Client
}

type message struct {
	Text string `json:"text"`
}

// NewClient builds a webhook client. Callers should pass a validated URL.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("google chat webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL: webhookURL,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// Name identifies the sink in logs.
func (c *Client) Name() string {
	return "google-chat"
}

// Send posts text, truncated to MaxTextLength characters.
func (c *Client) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(message{Text: Truncate(text, MaxTextLength)})
	if err != nil {
		return fmt.Errorf("encode google chat payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

// Truncate cuts text to at most limit characters.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create google chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("google chat request failed: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("read google chat error response: %w", readErr)
		}
		return fmt.Errorf("google chat webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain google chat response body: %w", err)
	}
	return nil
}

// redactURL drops the request URL from transport errors; the webhook URL
// carries its key and token in the query string.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
