package middlewares

import (
	"crypto/subtle"
	"fmt"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/messaging-dashboard/pkg/response"
)

const (
	APIKeyHeader = "x-dashboard-key"
	// APIKeyQueryParam is accepted when the header cannot be set, as with
	// browser EventSource connections.
	APIKeyQueryParam = "apiKey"
)

// secureCompare compares two strings in a way that is safer against timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// APIKeyAuth admits requests carrying any of the configured keys. Empty keys
// are ignored; with none left the group answers 500.
func APIKeyAuth(apiKeys ...string) echo.MiddlewareFunc {
	keys := make([]string, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}

	// If no API key is configured, treat this as a server-side misconfiguration.
	if len(keys) == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return response.InternalServerError(
					c,
					fmt.Errorf("API key is not configured for this endpoint group"),
				)
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(APIKeyHeader)
			if token == "" {
				token = c.QueryParam(APIKeyQueryParam)
			}
			if token == "" || !slices.ContainsFunc(keys, func(k string) bool { return secureCompare(token, k) }) {
				return response.Unauthorized(c)
			}

			return next(c)
		}
	}
}
