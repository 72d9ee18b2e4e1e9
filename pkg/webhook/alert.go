package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Alert is the payload posted when every message of several consecutive
// scheduler runs failed.
type Alert struct {
	Alert               string `json:"alert"`
	RunNumber           int64  `json:"runNumber"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	MessagesInBatch     int    `json:"messagesInBatch"`
	Timestamp           string `json:"timestamp"`
	Message             string `json:"message"`
}

type AlertClient struct {
	httpClient *resty.Client
}

func NewAlertClient(timeout time.Duration) *AlertClient {
	return &AlertClient{
		httpClient: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// SendAlert posts alert to url. Only 200 and 204 count as delivered.
func (c *AlertClient) SendAlert(ctx context.Context, url string, alert Alert) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	return nil
}
