// internal/api/v1/unit.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/transport"
	"github.com/tphakala/audiorouter/internal/units"
)

// AttachRequest is the body of PUT /api/v1/unit. Option fields left out keep
// their defaults.
type AttachRequest struct {
	Name string `json:"name"`
	units.Options
}

// SuspendRequest is the body of PUT /api/v1/unit/suspended
type SuspendRequest struct {
	Suspended bool `json:"suspended"`
}

// ParamsRequest is the body of PATCH /api/v1/unit/params. Only fields the
// attached unit understands may be set.
type ParamsRequest struct {
	GainDB     *float64 `json:"gain_db,omitempty"`
	ClickLevel *float64 `json:"click_level,omitempty"`
	ClickNotes *bool    `json:"click_notes,omitempty"`
	Semitones  *int     `json:"semitones,omitempty"`
}

// UnitParams reports the adjustable parameters of the attached unit.
type UnitParams struct {
	Unit       string   `json:"unit"`
	GainDB     *float64 `json:"gain_db,omitempty"`
	ClickLevel *float64 `json:"click_level,omitempty"`
	Semitones  *int     `json:"semitones,omitempty"`
}

type suspender interface {
	SetSuspended(suspended bool)
}

var errNoUnit = errors.NewStd("no unit attached")

// silenceDB is reported for a muted gain stage.
const silenceDB = -120.0

func (c *Controller) initUnitRoutes() {
	c.Group.GET("/units", c.ListUnits)

	g := c.Group.Group("/unit")
	g.PUT("", c.AttachUnit)
	g.DELETE("", c.DetachUnit)
	g.GET("/params", c.GetUnitParams)
	g.PATCH("/params", c.SetUnitParams)
	g.PUT("/suspended", c.SetSuspended)
}

// ListUnits handles GET /api/v1/units
func (c *Controller) ListUnits(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"units":    units.Names(),
		"attached": transport.UnitName(c.router.CurrentUnit()),
	})
}

// AttachUnit handles PUT /api/v1/unit
func (c *Controller) AttachUnit(ctx echo.Context) error {
	req := AttachRequest{Options: units.DefaultOptions()}
	if err := ctx.Bind(&req); err != nil {
		c.recordControl(OpAttach, err)
		return c.HandleError(ctx, err, "Invalid attach request body", http.StatusBadRequest)
	}
	if req.Name == "" {
		c.recordControl(OpAttach, errNoUnit)
		return c.HandleError(ctx, nil, "Unit name is required", http.StatusBadRequest)
	}

	u, err := c.newUnit(req.Name, req.Options)
	if err != nil {
		c.recordControl(OpAttach, err)
		switch {
		case errors.IsNotFound(err):
			return c.HandleError(ctx, err, "Unknown unit", http.StatusNotFound)
		case errors.IsCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Invalid unit options", http.StatusBadRequest)
		default:
			return c.HandleError(ctx, err, "Failed to create unit", http.StatusInternalServerError)
		}
	}

	err = c.router.Attach(u)
	c.recordControl(OpAttach, err)
	if err != nil {
		if errors.Is(err, transport.ErrLayoutRejected) {
			// The unit stays attached but silent until the device changes.
			return c.HandleError(ctx, err, "Unit rejected the device channel layout", http.StatusUnprocessableEntity)
		}
		return c.HandleError(ctx, err, "Failed to attach unit", http.StatusInternalServerError)
	}

	c.apiLogger.Info("Unit attached via API", logger.String("unit", req.Name), logger.String("ip", ctx.RealIP()))
	return ctx.JSON(http.StatusOK, c.router.Status())
}

// DetachUnit handles DELETE /api/v1/unit
func (c *Controller) DetachUnit(ctx echo.Context) error {
	err := c.router.Detach()
	c.recordControl(OpDetach, err)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to detach unit", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, c.router.Status())
}

// SetSuspended handles PUT /api/v1/unit/suspended
func (c *Controller) SetSuspended(ctx echo.Context) error {
	var req SuspendRequest
	if err := ctx.Bind(&req); err != nil {
		c.recordControl(OpSuspend, err)
		return c.HandleError(ctx, err, "Invalid suspend request body", http.StatusBadRequest)
	}

	u := c.router.CurrentUnit()
	if u == nil {
		c.recordControl(OpSuspend, errNoUnit)
		return c.HandleError(ctx, errNoUnit, "No unit attached", http.StatusConflict)
	}
	s, ok := u.(suspender)
	if !ok {
		err := errors.NewStd("unit cannot be suspended")
		c.recordControl(OpSuspend, err)
		return c.HandleError(ctx, err, "Unit cannot be suspended", http.StatusConflict)
	}

	s.SetSuspended(req.Suspended)
	c.recordControl(OpSuspend, nil)
	return ctx.JSON(http.StatusOK, c.router.Status())
}

// GetUnitParams handles GET /api/v1/unit/params
func (c *Controller) GetUnitParams(ctx echo.Context) error {
	u := c.router.CurrentUnit()
	if u == nil {
		return c.HandleError(ctx, errNoUnit, "No unit attached", http.StatusConflict)
	}
	return ctx.JSON(http.StatusOK, unitParams(u))
}

// SetUnitParams handles PATCH /api/v1/unit/params
func (c *Controller) SetUnitParams(ctx echo.Context) error {
	var req ParamsRequest
	if err := ctx.Bind(&req); err != nil {
		c.recordControl(OpParams, err)
		return c.HandleError(ctx, err, "Invalid params request body", http.StatusBadRequest)
	}

	u := c.router.CurrentUnit()
	if u == nil {
		c.recordControl(OpParams, errNoUnit)
		return c.HandleError(ctx, errNoUnit, "No unit attached", http.StatusConflict)
	}

	err := applyParams(u, &req)
	c.recordControl(OpParams, err)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid unit parameters", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusOK, unitParams(u))
}

func applyParams(u transport.Unit, req *ParamsRequest) error {
	unsupported := func(param string) error {
		return errors.Newf("unit %s has no parameter %s", transport.UnitName(u), param).
			Category(errors.CategoryValidation).
			Context("unit", transport.UnitName(u)).
			Context("parameter", param).
			Build()
	}

	switch unit := u.(type) {
	case *units.Gain:
		if req.ClickLevel != nil || req.ClickNotes != nil || req.Semitones != nil {
			return unsupported("other than gain_db")
		}
		if req.GainDB != nil {
			return unit.SetGain(units.DBToLinear(*req.GainDB))
		}
	case *units.Metronome:
		if req.GainDB != nil || req.Semitones != nil {
			return unsupported("other than click_level or click_notes")
		}
		if req.ClickLevel != nil {
			if err := unit.SetLevel(*req.ClickLevel); err != nil {
				return err
			}
		}
		if req.ClickNotes != nil {
			unit.SetEmitNotes(*req.ClickNotes)
		}
	case *units.Transpose:
		if req.GainDB != nil || req.ClickLevel != nil || req.ClickNotes != nil {
			return unsupported("other than semitones")
		}
		if req.Semitones != nil {
			return unit.SetSemitones(*req.Semitones)
		}
	default:
		return unsupported("of any kind")
	}
	return nil
}

func unitParams(u transport.Unit) UnitParams {
	p := UnitParams{Unit: transport.UnitName(u)}
	switch unit := u.(type) {
	case *units.Gain:
		db := max(units.LinearToDB(unit.Gain()), silenceDB)
		p.GainDB = &db
	case *units.Metronome:
		level := unit.Level()
		p.ClickLevel = &level
	case *units.Transpose:
		semitones := unit.Semitones()
		p.Semitones = &semitones
	}
	return p
}
