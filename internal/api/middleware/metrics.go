package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/audiorouter/internal/observability/metrics"
)

// unmatchedPath labels requests that did not match a route, keeping the
// path label bounded.
const unmatchedPath = "unmatched"

// NewMetrics records request counts, latency and response size per route pattern.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = unmatchedPath
			}
			method := c.Request().Method
			status := c.Response().Status

			m.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, path, c.Response().Size)
			if status >= 400 {
				m.RecordHTTPRequestError(method, path, errorType(status))
			}
			return nil
		}
	}
}

func errorType(status int) string {
	switch {
	case status == 404:
		return "not_found"
	case status == 409:
		return "conflict"
	case status == 429:
		return "rate_limited"
	case status < 500:
		return "validation"
	default:
		return "system"
	}
}
