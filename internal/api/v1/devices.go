// internal/api/v1/devices.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/audiorouter/internal/device"
)

// DeviceList is the response of GET /api/v1/devices
type DeviceList struct {
	Kind    string        `json:"kind"`
	Devices []device.Info `json:"devices"`
}

type invalidator interface {
	Invalidate()
}

func (c *Controller) initDeviceRoutes() {
	if c.lister == nil {
		return
	}
	c.Group.GET("/devices", c.ListDevices)
	c.Group.POST("/devices/refresh", c.RefreshDevices)
}

// ListDevices handles GET /api/v1/devices?kind=playback|capture
func (c *Controller) ListDevices(ctx echo.Context) error {
	kind, ok := parseKind(ctx.QueryParam("kind"))
	if !ok {
		return c.HandleError(ctx, nil, "kind must be playback or capture", http.StatusBadRequest)
	}

	infos, err := c.lister.Devices(kind)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to enumerate audio devices", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, DeviceList{Kind: kind.String(), Devices: infos})
}

// RefreshDevices handles POST /api/v1/devices/refresh
func (c *Controller) RefreshDevices(ctx echo.Context) error {
	if inv, ok := c.lister.(invalidator); ok {
		inv.Invalidate()
	}
	return ctx.NoContent(http.StatusNoContent)
}

func parseKind(s string) (device.Kind, bool) {
	switch strings.ToLower(s) {
	case "", "playback", "output":
		return device.Playback, true
	case "capture", "input":
		return device.Capture, true
	default:
		return device.Playback, false
	}
}
