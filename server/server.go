// Package server is the tap-forwarding backend: it accepts the overlay's
// tap posts and executes them on a locally attached device.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/config"
	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay"
)

type Server struct {
	cfg    config.ServerConfig
	device overlay.DeviceOperator
	style  constants.Style
	echo   *echo.Echo
}

func New(cfg config.ServerConfig, device overlay.DeviceOperator) (*Server, error) {
	style, err := constants.LoadStyle()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = SonicSerializer{}
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !cfg.EnableRequestLogging
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &Server{
		cfg:    cfg,
		device: device,
		style:  style,
		echo:   e,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.HandleHealth)

	remote := s.echo.Group("/server/remote")
	remote.POST("/tapCoordinates", s.HandleTap)
	remote.POST("/dumpUI", s.HandleDump)

	ov := s.echo.Group("/server/overlay")
	ov.POST("/project", s.HandleProject)
	ov.POST("/resolve", s.HandleResolve)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks until the server stops. Shutdown makes it return nil.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = time.Duration(s.cfg.ReadTimeout) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.cfg.WriteTimeout) * time.Second
	log.Debug().Str("addr", s.cfg.Addr).Str("host", s.cfg.HostName).Msg("tap backend starting")

	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
