package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
)

// Client sends messages to the provider webhook.
type Client struct {
	httpClient  *resty.Client
	webhookURL  string
	defaultFrom string
}

func NewWebhookClient(cfg environments.WebhookConfig) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-auth-key", cfg.AuthKey)

	return &Client{
		httpClient:  client,
		webhookURL:  cfg.URL,
		defaultFrom: cfg.From,
	}
}

// SendMessage posts one message. An empty from falls back to the configured
// sender. The provider must answer 202 Accepted.
func (c *Client) SendMessage(ctx context.Context, from, phoneNumber, content string) (*domain.WebhookResponse, error) {
	if from == "" {
		from = c.defaultFrom
	}

	payload := domain.WebhookRequest{
		From:    from,
		To:      phoneNumber,
		Content: content,
	}

	var webhookResp domain.WebhookResponse

	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&webhookResp).
		Post(c.webhookURL)

	duration := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	logger.Debugf("Webhook request to %s completed in %v (status: %d)", c.webhookURL, duration, resp.StatusCode())

	if resp.StatusCode() != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d (expected 202), body: %s", resp.StatusCode(), resp.String())
	}

	if webhookResp.MessageID == "" {
		return nil, fmt.Errorf("provider accepted the message without a messageId")
	}

	return &webhookResp, nil
}

func (c *Client) GetURL() string {
	return c.webhookURL
}
