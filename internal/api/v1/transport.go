// internal/api/v1/transport.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/transport"
)

// TempoRequest is the body of PUT /api/v1/transport/tempo
type TempoRequest struct {
	BPM float64 `json:"bpm"`
}

// PrecisionRequest is the body of PUT /api/v1/transport/precision
type PrecisionRequest struct {
	Double bool `json:"double"`
}

// Control operation names used in metrics
const (
	OpTempo     = "tempo"
	OpPrecision = "precision"
	OpAttach    = "attach"
	OpDetach    = "detach"
	OpSuspend   = "suspend"
	OpParams    = "params"
)

func (c *Controller) initTransportRoutes() {
	g := c.Group.Group("/transport")
	g.GET("", c.GetStatus)
	g.PUT("/tempo", c.SetTempo)
	g.PUT("/precision", c.SetPrecision)
}

// GetStatus handles GET /api/v1/transport
func (c *Controller) GetStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.router.Status())
}

// SetTempo handles PUT /api/v1/transport/tempo
func (c *Controller) SetTempo(ctx echo.Context) error {
	var req TempoRequest
	if err := ctx.Bind(&req); err != nil {
		c.recordControl(OpTempo, err)
		return c.HandleError(ctx, err, "Invalid tempo request body", http.StatusBadRequest)
	}

	err := c.router.SetTempo(req.BPM)
	c.recordControl(OpTempo, err)
	if err != nil {
		if errors.Is(err, transport.ErrInvalidTempo) {
			return c.HandleError(ctx, err, "Tempo must be greater than 0 and at most 500 BPM", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to set tempo", http.StatusInternalServerError)
	}

	c.apiLogger.Info("Tempo changed", logger.Float64("bpm", req.BPM), logger.String("ip", ctx.RealIP()))
	return ctx.JSON(http.StatusOK, c.router.Status())
}

// SetPrecision handles PUT /api/v1/transport/precision
func (c *Controller) SetPrecision(ctx echo.Context) error {
	var req PrecisionRequest
	if err := ctx.Bind(&req); err != nil {
		c.recordControl(OpPrecision, err)
		return c.HandleError(ctx, err, "Invalid precision request body", http.StatusBadRequest)
	}

	c.router.SetDoublePrecision(req.Double)
	c.recordControl(OpPrecision, nil)

	status := c.router.Status()
	c.apiLogger.Info("Processing precision requested",
		logger.Bool("double_requested", req.Double),
		logger.String("precision", status.Precision))
	return ctx.JSON(http.StatusOK, status)
}
