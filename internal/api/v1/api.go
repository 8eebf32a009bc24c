// internal/api/v1/api.go
package api

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/observability/metrics"
	"github.com/tphakala/audiorouter/internal/transport"
	"github.com/tphakala/audiorouter/internal/units"
)

// Router is the part of the transport router the API controls.
type Router interface {
	Status() transport.Status
	SetTempo(bpm float64) error
	SetDoublePrecision(enabled bool)
	Attach(u transport.Unit) error
	Detach() error
	CurrentUnit() transport.Unit
}

// DeviceLister enumerates audio devices.
type DeviceLister interface {
	Devices(kind device.Kind) ([]device.Info, error)
}

// UnitFactory creates a unit by registry name.
type UnitFactory func(name string, opts units.Options) (transport.Unit, error)

// Controller manages the API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	router    Router
	lister    DeviceLister
	newUnit   UnitFactory
	metrics   *metrics.HTTPMetrics
	apiLogger logger.Logger
	startTime time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithDeviceLister enables the device listing endpoints.
func WithDeviceLister(l DeviceLister) Option {
	return func(c *Controller) {
		c.lister = l
	}
}

// WithUnitFactory replaces units.New, mainly for tests.
func WithUnitFactory(f UnitFactory) Option {
	return func(c *Controller) {
		c.newUnit = f
	}
}

// WithMetrics records control operations.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.apiLogger = l
	}
}

// New creates the API controller and registers its routes under /api/v1.
func New(e *echo.Echo, router Router, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v1"),
		router:    router,
		newUnit:   units.New,
		apiLogger: GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initTransportRoutes()
	c.initUnitRoutes()
	c.initDeviceRoutes()

	c.apiLogger.Debug("API routes initialized", logger.Int("routes", len(c.Echo.Routes())))
}

// HealthCheck handles GET /api/v1/health
func (c *Controller) HealthCheck(ctx echo.Context) error {
	status := c.router.Status()
	uptime := time.Since(c.startTime)
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"router_id":      status.ID,
		"running":        status.Running,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", errorResp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}

	if code >= http.StatusInternalServerError {
		c.apiLogger.Error("API error", fields...)
	} else {
		c.apiLogger.Warn("API request rejected", fields...)
	}

	return ctx.JSON(code, errorResp)
}

// recordControl counts a control operation when metrics are enabled.
func (c *Controller) recordControl(operation string, err error) {
	if c.metrics != nil {
		c.metrics.RecordControlOperation(operation, err)
	}
}
