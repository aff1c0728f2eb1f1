package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"enteliwatch/internal/config"
	"enteliwatch/internal/gateway"
	"enteliwatch/internal/trend"
)

type stubTrends struct {
	result   *trend.Result
	err      error
	gotRange string
}

func (s *stubTrends) Fetch(ctx context.Context, rangeName string) (*trend.Result, error) {
	s.gotRange = rangeName
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubReader struct {
	values map[string]string
	name   string
}

func (s *stubReader) PresentValue(ctx context.Context, objectRef string) (gateway.Value, error) {
	raw, ok := s.values[objectRef]
	if !ok {
		return gateway.Value{}, &gateway.UpstreamError{URL: objectRef, StatusCode: http.StatusNotFound}
	}
	return gateway.ValueFromRaw(json.RawMessage(raw)), nil
}

func (s *stubReader) DeviceName(ctx context.Context) (string, error) {
	return s.name, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{Host: "gw.example.com", Site: "MainSite", Device: "301"},
		Points: config.PointsConfig{
			Temperature:  "analog-input,301001",
			ZoneSetpoint: "analog-value,1",
			SystemMode:   "multi-state-value,2",
			PeakSavings:  "binary-value,2025",
			FanStatus:    "binary-output,1",
		},
		Display: config.DisplayConfig{
			DashboardTitle: "Thermal Energy Storage Dashboard",
			CompanyName:    "Stasis Energy Group",
		},
	}
}

func testServer(t *testing.T, trends TrendSource, reader PointReader) *Server {
	t.Helper()
	return New(testConfig(), trends, reader, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := testServer(t, &stubTrends{}, &stubReader{})
	rec := doRequest(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestTrendsSuccess(t *testing.T) {
	trends := &stubTrends{result: &trend.Result{
		Records:      []trend.Record{{Timestamp: "2025-07-11T11:00:00", Temperature: 71.5, FormattedTime: "11:00"}},
		TimeRange:    "1h",
		ActualRange:  "1 points",
		TotalRecords: 1,
	}}
	s := testServer(t, trends, &stubReader{})

	rec := doRequest(t, s, "/api/trends?range=1h")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if trends.gotRange != "1h" {
		t.Fatalf("range not forwarded: %q", trends.gotRange)
	}

	var body trend.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.TotalRecords != 1 || body.Records[0].Temperature != 71.5 {
		t.Fatalf("result not passed through: %+v", body)
	}
}

func TestTrendsDefaultsRange(t *testing.T) {
	trends := &stubTrends{result: &trend.Result{TimeRange: "1h", Records: []trend.Record{}}}
	s := testServer(t, trends, &stubReader{})

	doRequest(t, s, "/api/trends")
	if trends.gotRange != trend.DefaultRangeName {
		t.Fatalf("missing range should default, got %q", trends.gotRange)
	}
}

func TestTrendsGatewayFailureIs502(t *testing.T) {
	trends := &stubTrends{err: &gateway.UpstreamError{URL: "https://gw", StatusCode: 500, Body: "boom"}}
	s := testServer(t, trends, &stubReader{})

	rec := doRequest(t, s, "/api/trends?range=24h")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("gateway failure should map to 502, got %d", rec.Code)
	}

	var body trend.ErrorResult
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body must still be JSON: %v", err)
	}
	if body.Error == "" || body.ActualRange != "Error" {
		t.Fatalf("error shape wrong: %+v", body)
	}
	if body.Records == nil || len(body.Records) != 0 {
		t.Fatalf("error body must carry an empty record list: %+v", body.Records)
	}
}

func TestTrendsUnknownFailureIs500(t *testing.T) {
	trends := &stubTrends{err: context.DeadlineExceeded}
	s := testServer(t, trends, &stubReader{})

	rec := doRequest(t, s, "/api/trends")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("non-gateway failure should map to 500, got %d", rec.Code)
	}
}

func TestThermostatSnapshot(t *testing.T) {
	reader := &stubReader{
		values: map[string]string{
			"analog-input,301001": `72.4`,
			"analog-value,1":      `"70"`,
			"multi-state-value,2": `{"enumerated": {"value": 2}}`,
			"binary-value,2025":   `"active"`,
			"binary-output,1":     `"inactive"`,
		},
		name: "Rooftop AHU",
	}
	s := testServer(t, &stubTrends{}, reader)

	rec := doRequest(t, s, "/api/thermostat")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if body["temperature"] != 72.4 {
		t.Fatalf("temperature = %v", body["temperature"])
	}
	if body["zone_setpoint"] != 70.0 {
		t.Fatalf("zone_setpoint = %v", body["zone_setpoint"])
	}
	if body["system_mode"] != "Cooling" {
		t.Fatalf("system_mode = %v", body["system_mode"])
	}
	if body["peak_savings"] != true {
		t.Fatalf("peak_savings = %v", body["peak_savings"])
	}
	if body["fan_status"] != false {
		t.Fatalf("fan_status = %v", body["fan_status"])
	}
	if body["device_name"] != "Rooftop AHU" {
		t.Fatalf("device_name = %v", body["device_name"])
	}
	if body["timestamp"] == "" {
		t.Fatal("timestamp missing")
	}
}

func TestThermostatOmitsUnreadablePoints(t *testing.T) {
	reader := &stubReader{values: map[string]string{"analog-input,301001": `72.4`}}
	s := testServer(t, &stubTrends{}, reader)

	rec := doRequest(t, s, "/api/thermostat")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if _, present := body["zone_setpoint"]; present {
		t.Fatal("unreadable point must be absent, not null")
	}
	if body["temperature"] != 72.4 {
		t.Fatalf("readable point lost: %v", body["temperature"])
	}
}

func TestDebugDump(t *testing.T) {
	reader := &stubReader{values: map[string]string{"analog-input,301001": `72.4`}}
	s := testServer(t, &stubTrends{}, reader)

	rec := doRequest(t, s, "/api/debug")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Configuration struct {
			Host    string            `json:"host"`
			Objects map[string]string `json:"objects"`
		} `json:"configuration"`
		RawValues map[string]any `json:"raw_values"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Configuration.Objects["temperature"] != "analog-input,301001" {
		t.Fatalf("object map missing: %+v", body.Configuration.Objects)
	}
	if body.RawValues["temperature"] != 72.4 {
		t.Fatalf("raw value not dumped: %v", body.RawValues["temperature"])
	}
	if _, ok := body.RawValues["zone_setpoint"].(string); !ok {
		t.Fatalf("failed reads should dump the error text: %v", body.RawValues["zone_setpoint"])
	}
}

func TestDashboardRenders(t *testing.T) {
	s := testServer(t, &stubTrends{}, &stubReader{})

	rec := doRequest(t, s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "Thermal Energy Storage Dashboard") {
		t.Fatal("dashboard title missing")
	}
	for _, name := range trend.RangeNames() {
		if !strings.Contains(page, name) {
			t.Fatalf("range button %q missing", name)
		}
	}
}
