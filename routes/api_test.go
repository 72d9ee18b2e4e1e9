package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/handlers"
	"github.com/onurcolak/messaging-dashboard/internal/events"
	"github.com/onurcolak/messaging-dashboard/internal/middlewares"
	"github.com/onurcolak/messaging-dashboard/internal/repository/memory"
	"github.com/onurcolak/messaging-dashboard/internal/scheduler"
	"github.com/onurcolak/messaging-dashboard/internal/service"
	"github.com/onurcolak/messaging-dashboard/pkg/metrics"
	"github.com/onurcolak/messaging-dashboard/pkg/template"
	"github.com/onurcolak/messaging-dashboard/pkg/validator"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := &environments.Config{
		Auth: environments.AuthConfig{
			MessagesAPIKey:  "messages-key",
			SchedulerAPIKey: "scheduler-key",
			CallbackAPIKey:  "callback-key",
		},
		Campaign: environments.CampaignConfig{RateLimitPreset: "standard", MaxRecipients: 10},
	}

	store := memory.New()
	broker := events.NewBroker(8)
	t.Cleanup(broker.Close)

	campaigns := service.NewCampaignService(store.Campaigns(), template.NewRenderer(), nil, cfg.Campaign)
	messages := service.NewMessageService(store.Messages(), nil, nil, environments.MessageConfig{MaxContentLength: 1000})
	sched := scheduler.NewScheduler(messages, 0)

	e := echo.New()
	e.Validator = validator.New()

	RegisterRoutes(e, Handlers{
		Health:    handlers.NewHealthHandler(nil, nil),
		Message:   handlers.NewMessageHandler(messages),
		Client:    handlers.NewClientHandler(service.NewClientService(store.Clients())),
		Campaign:  handlers.NewCampaignHandler(campaigns, broker, 0),
		Scheduler: handlers.NewSchedulerHandler(sched, context.Background(), cfg),
		Metrics:   metrics.New().Handler(),
	}, cfg)

	return e
}

func TestRoutes_AuthGroups(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		key    string
		body   string
		want   int
	}{
		{name: "health is public", method: http.MethodGet, target: "/health", want: http.StatusOK},
		{name: "metrics is public", method: http.MethodGet, target: "/metrics", want: http.StatusOK},
		{name: "messages need a key", method: http.MethodGet, target: "/api/v1/messages", want: http.StatusUnauthorized},
		{name: "messages with key", method: http.MethodGet, target: "/api/v1/messages", key: "messages-key", want: http.StatusOK},
		{name: "clients share the messages key", method: http.MethodGet, target: "/api/v1/clients", key: "messages-key", want: http.StatusOK},
		{name: "campaign presets", method: http.MethodGet, target: "/api/v1/campaigns/presets", key: "messages-key", want: http.StatusOK},
		{name: "scheduler rejects messages key", method: http.MethodGet, target: "/api/v1/scheduler/status", key: "messages-key", want: http.StatusUnauthorized},
		{name: "scheduler status", method: http.MethodGet, target: "/api/v1/scheduler/status", key: "scheduler-key", want: http.StatusOK},
		{name: "callbacks reject messages key", method: http.MethodPost, target: "/api/v1/webhooks/status", key: "messages-key", body: `{}`, want: http.StatusUnauthorized},
		{name: "callback for unknown message", method: http.MethodPost, target: "/api/v1/webhooks/status", key: "callback-key", body: `{"messageId":"x","status":"delivered"}`, want: http.StatusNotFound},
		{name: "sse accepts the query key", method: http.MethodGet, target: "/api/v1/campaigns/nope/events?apiKey=messages-key", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			if tt.key != "" {
				req.Header.Set(middlewares.APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
