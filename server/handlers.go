package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/overlay"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/geometry"
	"github.com/spance/devoverlay/overlay/helper"
)

// ProjectRequest takes elements as loosely-typed objects, in any bounds
// convention the dump parser accepts.
type ProjectRequest struct {
	Elements []map[string]any         `json:"elements"`
	Panel    definitions.PanelGeometry `json:"panel"`
}

type ProjectResponse struct {
	Elements []definitions.ScaledElement `json:"elements"`
	Content  geometry.ContentRect        `json:"content"`
	ScaleX   float64                     `json:"scaleX"`
	ScaleY   float64                     `json:"scaleY"`
	Dropped  int                         `json:"dropped"`
}

type ResolveRequest struct {
	Panel definitions.PanelGeometry `json:"panel"`
	Click definitions.Point         `json:"click"`
}

type ResolveResponse struct {
	Inside bool `json:"inside"`
	X      int  `json:"x"`
	Y      int  `json:"y"`
}

// HandleHealth returns server health status
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.cfg.Version,
		"host":    s.cfg.HostName,
		"device":  s.device != nil,
	})
}

// acceptsHost reports whether this backend serves host.
func (s *Server) acceptsHost(host string) bool {
	return s.cfg.HostName == "" || host == s.cfg.HostName
}

// HandleTap executes a forwarded tap. Device failures are reported in the
// {success, error} body, malformed requests as APIError.
func (s *Server) HandleTap(c echo.Context) error {
	var req definitions.TapRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Host == "" {
		return NewValidationError("host")
	}
	if req.X < 0 || req.Y < 0 {
		return NewValidationError("x/y")
	}
	if !s.acceptsHost(req.Host) {
		return c.JSON(http.StatusNotFound, definitions.TapResponse{Error: "unknown host: " + req.Host})
	}
	if s.device == nil {
		return c.JSON(http.StatusServiceUnavailable, definitions.TapResponse{Error: "no device attached"})
	}

	if err := s.device.Tap(c.Request().Context(), req.X, req.Y, req.DeviceID); err != nil {
		log.Error().Err(err).Str("host", req.Host).Int("x", req.X).Int("y", req.Y).Msg("device tap failed")
		return c.JSON(http.StatusBadGateway, definitions.TapResponse{Error: err.Error()})
	}

	log.Debug().Str("host", req.Host).Str("device", req.DeviceID).Int("x", req.X).Int("y", req.Y).Msg("tap executed")
	return c.JSON(http.StatusOK, definitions.TapResponse{Success: true})
}

// HandleDump returns the device's UI elements and the resolution they are in.
func (s *Server) HandleDump(c echo.Context) error {
	var req definitions.DumpRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if !s.acceptsHost(req.Host) {
		return c.JSON(http.StatusNotFound, definitions.DumpResponse{Error: "unknown host: " + req.Host})
	}
	if s.device == nil {
		return c.JSON(http.StatusServiceUnavailable, definitions.DumpResponse{Error: "no device attached"})
	}

	source := overlay.DeviceSource{Device: s.device, DeviceID: req.DeviceID}
	elements, resolution, err := source.Dump(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Str("host", req.Host).Msg("device dump failed")
		return c.JSON(http.StatusBadGateway, definitions.DumpResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, definitions.DumpResponse{
		Success:    true,
		Elements:   elements,
		Resolution: resolution,
	})
}

// HandleProject projects elements for clients that cannot run the overlay.
func (s *Server) HandleProject(c echo.Context) error {
	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	elements := helper.NormalizeElements(req.Elements)
	p, scaled, err := overlay.Project(elements, req.Panel, s.style)
	if err != nil {
		return NewGeometryError(err)
	}
	sx, sy := p.Scale()
	if scaled == nil {
		scaled = []definitions.ScaledElement{}
	}
	return c.JSON(http.StatusOK, ProjectResponse{
		Elements: scaled,
		Content:  p.Content(),
		ScaleX:   sx,
		ScaleY:   sy,
		Dropped:  len(req.Elements) - len(scaled),
	})
}

// HandleResolve maps a viewport click to source pixels. Letterbox clicks are
// answered with inside=false.
func (s *Server) HandleResolve(c echo.Context) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if !definitions.IsFinite(req.Click.X) || !definitions.IsFinite(req.Click.Y) {
		return NewValidationError("click")
	}

	p, err := geometry.NewProjector(req.Panel)
	if err != nil {
		return NewGeometryError(err)
	}
	src, err := p.ToSource(req.Click)
	if errors.Is(err, definitions.ErrOutsideContent) {
		return c.JSON(http.StatusOK, ResolveResponse{})
	}
	if err != nil {
		return NewInternalError("resolve failed", err)
	}
	return c.JSON(http.StatusOK, ResolveResponse{Inside: true, X: src.X, Y: src.Y})
}
