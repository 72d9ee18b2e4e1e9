package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/events"
	"github.com/onurcolak/messaging-dashboard/internal/repository/memory"
	"github.com/onurcolak/messaging-dashboard/internal/service"
	"github.com/onurcolak/messaging-dashboard/pkg/template"
	validatorpkg "github.com/onurcolak/messaging-dashboard/pkg/validator"
)

type testEnv struct {
	e         *echo.Echo
	store     *memory.Store
	broker    *events.Broker
	messages  *service.MessageService
	clients   *service.ClientService
	campaigns *service.CampaignService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	broker := events.NewBroker(16)
	t.Cleanup(broker.Close)

	campaigns := service.NewCampaignService(
		store.Campaigns(),
		template.NewRenderer(),
		nil,
		environments.CampaignConfig{
			RateLimitPreset: "standard",
			MaxRecipients:   100,
			CSVMaxBytes:     1 << 10,
		},
		service.WithCampaignClients(store.Clients()),
		service.WithCampaignEvents(broker),
	)

	messages := service.NewMessageService(
		store.Messages(),
		nil,
		nil,
		environments.MessageConfig{BatchSize: 10, MaxContentLength: 1000},
		service.WithClientLookup(store.Clients()),
		service.WithEvents(broker),
		service.WithStatusListener(campaigns),
	)

	e := echo.New()
	e.Validator = validatorpkg.New()

	return &testEnv{
		e:         e,
		store:     store,
		broker:    broker,
		messages:  messages,
		clients:   service.NewClientService(store.Clients()),
		campaigns: campaigns,
	}
}

// do runs h against a request built from method, target and a JSON body.
// Path params are bound from names/values.
func (env *testEnv) do(h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}

	if err := h(c); err != nil {
		env.e.HTTPErrorHandler(err, c)
	}
	return rec
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
	TotalCount int64           `json:"totalCount"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
