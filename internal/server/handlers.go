package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"enteliwatch/internal/gateway"
	"enteliwatch/internal/metrics"
	"enteliwatch/internal/poller"
	"enteliwatch/internal/trend"
)

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleTrends runs the trend pipeline for the requested range. The
// client always receives well-formed JSON; failures map to a real
// error status instead of a misleading 200.
func (s *Server) handleTrends(c echo.Context) error {
	rangeName := c.QueryParam("range")
	if rangeName == "" {
		rangeName = trend.DefaultRangeName
	}
	spec := trend.LookupRange(rangeName)

	result, err := s.trends.Fetch(c.Request().Context(), rangeName)
	if err != nil {
		metrics.TrendRequestsTotal.WithLabelValues(spec.Name, "error").Inc()
		s.logger.Error().Err(err).Str("range", spec.Name).Msg("trend query failed")
		return c.JSON(trendErrorStatus(err), trend.NewErrorResult(err))
	}

	metrics.TrendRequestsTotal.WithLabelValues(spec.Name, "ok").Inc()
	metrics.TrendRecordsReturned.Observe(float64(result.TotalRecords))
	return c.JSON(http.StatusOK, result)
}

// trendErrorStatus maps the pipeline error taxonomy onto HTTP codes:
// anything that failed between us and the gateway is a 502.
func trendErrorStatus(err error) int {
	var transport *gateway.TransportError
	var upstream *gateway.UpstreamError
	var format *gateway.FormatError
	if errors.As(err, &transport) || errors.As(err, &upstream) || errors.As(err, &format) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleThermostat assembles the live present-value snapshot. Points
// that fail to read are simply absent from the response.
func (s *Server) handleThermostat(c echo.Context) error {
	ctx := c.Request().Context()
	points := s.cfg.Points
	data := make(map[string]any, 8)

	if value, ok := s.readFloat(ctx, points.Temperature); ok {
		data["temperature"] = value
	}

	if points.UseDualSetpoints {
		if value, ok := s.readFloat(ctx, points.HeatingSetpoint); ok {
			data["heating_setpoint"] = value
		}
		if value, ok := s.readFloat(ctx, points.CoolingSetpoint); ok {
			data["cooling_setpoint"] = value
		}
	} else {
		if value, ok := s.readFloat(ctx, points.ZoneSetpoint); ok {
			data["zone_setpoint"] = value
		}
	}

	if points.SystemMode != "" {
		if value, err := s.reader.PresentValue(ctx, points.SystemMode); err == nil {
			data["system_mode"] = poller.MapSystemMode(value)
		}
	}

	if value, err := s.reader.PresentValue(ctx, points.PeakSavings); err == nil {
		data["peak_savings"] = value.Truthy()
	}
	if value, err := s.reader.PresentValue(ctx, points.FanStatus); err == nil {
		data["fan_status"] = value.Truthy()
	}

	if name := s.cfg.DeviceDisplayName(); name != "" {
		data["device_name"] = name
	} else if name, err := s.reader.DeviceName(ctx); err == nil {
		data["device_name"] = name
	}

	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(http.StatusOK, data)
}

func (s *Server) readFloat(ctx context.Context, objectRef string) (float64, bool) {
	if objectRef == "" {
		return 0, false
	}
	value, err := s.reader.PresentValue(ctx, objectRef)
	if err != nil {
		s.logger.Debug().Err(err).Str("object", objectRef).Msg("present-value read failed")
		return 0, false
	}
	return value.Float()
}

// handleDebug dumps the configured object map and each point's raw
// present-value payload.
func (s *Server) handleDebug(c echo.Context) error {
	ctx := c.Request().Context()
	points := s.cfg.Points

	objects := map[string]string{
		"temperature":      points.Temperature,
		"zone_setpoint":    points.ZoneSetpoint,
		"heating_setpoint": points.HeatingSetpoint,
		"cooling_setpoint": points.CoolingSetpoint,
		"system_mode":      points.SystemMode,
		"peak_savings":     points.PeakSavings,
		"fan_status":       points.FanStatus,
	}

	raw := make(map[string]any, len(objects))
	for name, objectRef := range objects {
		if objectRef == "" {
			continue
		}
		value, err := s.reader.PresentValue(ctx, objectRef)
		if err != nil {
			raw[name] = err.Error()
			continue
		}
		raw[name] = value.Raw()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"configuration": map[string]any{
			"host":    s.cfg.Gateway.Host,
			"site":    s.cfg.Gateway.Site,
			"device":  s.cfg.Gateway.Device,
			"objects": objects,
		},
		"raw_values": raw,
	})
}

func (s *Server) handleDashboard(c echo.Context) error {
	var buf bytes.Buffer
	err := dashboardTemplate.Execute(&buf, map[string]any{
		"Title":      s.cfg.Display.DashboardTitle,
		"Company":    s.cfg.Display.CompanyName,
		"LogoURL":    s.cfg.Display.LogoURL,
		"SiteName":   s.cfg.SiteDisplayName(),
		"DeviceName": s.cfg.DeviceDisplayName(),
		"Ranges":     trend.RangeNames(),
		"DualSetpt":  s.cfg.Points.UseDualSetpoints,
	})
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
