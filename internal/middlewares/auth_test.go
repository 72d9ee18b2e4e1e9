package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/pkg/response"
)

func serve(mw echo.MiddlewareFunc, target string, headerKey string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if headerKey != "" {
		req.Header.Set(APIKeyHeader, headerKey)
	}
	rec := httptest.NewRecorder()

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		target    string
		headerKey string
		want      int
	}{
		{name: "no key configured", keys: []string{""}, target: "/test", headerKey: "anything", want: http.StatusInternalServerError},
		{name: "missing client key", keys: []string{"secret"}, target: "/test", want: http.StatusUnauthorized},
		{name: "wrong key", keys: []string{"secret"}, target: "/test", headerKey: "nope", want: http.StatusUnauthorized},
		{name: "prefix of the key", keys: []string{"secret"}, target: "/test", headerKey: "secre", want: http.StatusUnauthorized},
		{name: "valid header", keys: []string{"secret"}, target: "/test", headerKey: "secret", want: http.StatusOK},
		{name: "any configured key", keys: []string{"one", "", "two"}, target: "/test", headerKey: "two", want: http.StatusOK},
		{name: "query fallback", keys: []string{"secret"}, target: "/test?apiKey=secret", want: http.StatusOK},
		{name: "header wins over query", keys: []string{"secret"}, target: "/test?apiKey=secret", headerKey: "nope", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(APIKeyAuth(tt.keys...), tt.target, tt.headerKey)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKeyAuth_ErrorBodies(t *testing.T) {
	rec := serve(APIKeyAuth(), "/test", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "not configured")

	rec = serve(APIKeyAuth("secret"), "/test", "bad")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid or missing API key", body.Error)
}
