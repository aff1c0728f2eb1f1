// Package server exposes the JSON API and dashboard page over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"enteliwatch/internal/config"
	"enteliwatch/internal/gateway"
	"enteliwatch/internal/metrics"
	"enteliwatch/internal/trend"
)

// TrendSource runs one trend query. *trend.Pipeline satisfies it; tests
// substitute stubs.
type TrendSource interface {
	Fetch(ctx context.Context, rangeName string) (*trend.Result, error)
}

// PointReader reads live values from the gateway.
type PointReader interface {
	PresentValue(ctx context.Context, objectRef string) (gateway.Value, error)
	DeviceName(ctx context.Context) (string, error)
}

// Server wires the HTTP surface.
type Server struct {
	echo   *echo.Echo
	trends TrendSource
	reader PointReader
	cfg    *config.Config
	logger zerolog.Logger
}

// New builds the echo instance and routes.
func New(cfg *config.Config, trends TrendSource, reader PointReader, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		trends: trends,
		reader: reader,
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())

	e.GET("/", s.handleDashboard)
	e.GET("/healthz", s.handleHealthz)
	e.GET("/api/thermostat", s.handleThermostat)
	e.GET("/api/trends", s.handleTrends)
	e.GET("/api/debug", s.handleDebug)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			s.logger.Debug().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("elapsed", time.Since(start)).
				Msg("request served")
			return nil
		}
	}
}
