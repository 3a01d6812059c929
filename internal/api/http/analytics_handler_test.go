package apihttp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	analyticsapp "github.com/HendrickFS/bio-supply-twin/internal/analytics/application"
	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
	"github.com/HendrickFS/bio-supply-twin/internal/sla"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

type stubSLAStore struct {
	configs map[string]*sla.Config
}

func (s *stubSLAStore) GetByName(_ context.Context, name string) (*sla.Config, error) {
	return s.configs[name], nil
}

func (s *stubSLAStore) List(_ context.Context) ([]sla.Config, error) {
	var out []sla.Config
	for _, cfg := range s.configs {
		out = append(out, *cfg)
	}
	return out, nil
}

func (s *stubSLAStore) Save(_ context.Context, cfg *sla.Config) error {
	copied := *cfg
	s.configs[cfg.Name] = &copied
	return nil
}

func tempsAt(boxID string, start time.Time, temps ...float64) []telemetry.Reading {
	out := make([]telemetry.Reading, 0, len(temps))
	for i, temp := range temps {
		out = append(out, telemetry.Reading{
			BoxID:       boxID,
			Timestamp:   start.Add(time.Duration(i) * time.Minute),
			Temperature: series.Float(temp),
		})
	}
	return out
}

func newAnalyticsHandler(t *testing.T, readings []telemetry.Reading) *AnalyticsHandler {
	t.Helper()
	store := &stubSLAStore{configs: make(map[string]*sla.Config)}
	cfg := sla.Default(sla.DefaultName)
	store.configs[cfg.Name] = &cfg

	service, err := analyticsapp.NewService(&stubReadingQuery{readings: readings}, store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewAnalyticsHandler(service)
}

func TestComplianceEndpoint(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	handler := newAnalyticsHandler(t, tempsAt("BOX-0001", start, 5, 7, 30))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/analytics/compliance?box=BOX-0001", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var report analyticsapp.ComplianceReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.BoxID != "BOX-0001" || report.SLA != sla.DefaultName {
		t.Fatalf("unexpected report header %+v", report)
	}
	if report.NumPoints != 3 || len(report.Excursions) != 1 {
		t.Fatalf("expected one excursion over 3 points, got %+v", report)
	}
	if report.InRangePct < 60 || report.InRangePct > 70 {
		t.Fatalf("in_range_pct = %v", report.InRangePct)
	}
}

func TestComplianceRequiresSubject(t *testing.T) {
	handler := newAnalyticsHandler(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/analytics/compliance", nil))
	if rec.Code != 400 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestComplianceUnknownSLA(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	handler := newAnalyticsHandler(t, tempsAt("BOX-0001", start, 5))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/analytics/compliance?box=BOX-0001&sla_name=cryo", nil))
	if rec.Code != 404 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sla config not found") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestAnomaliesEndpoint(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	handler := newAnalyticsHandler(t, tempsAt("BOX-0001", start, 5, 5, 5, 30))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/analytics/anomalies?box=BOX-0001&algorithm=moving_average&window=3&threshold=2", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var report analyticsapp.AnomalyReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %+v", report.Anomalies)
	}
	if report.WindowSize != 3 {
		t.Fatalf("window not forwarded: %d", report.WindowSize)
	}
}

func TestAnomaliesUnknownAlgorithm(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	handler := newAnalyticsHandler(t, tempsAt("BOX-0001", start, 5))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/analytics/anomalies?box=BOX-0001&algorithm=kalman", nil))
	if rec.Code != 400 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricAnomaliesEndpoint(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	handler := newAnalyticsHandler(t, tempsAt("BOX-0001", start, 5, 5, 5, 30))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/analytics/anomalies/temperature?box=BOX-0001&window=3&threshold=2", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var report analyticsapp.MetricAnomalyReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Metric != "temperature" || report.Count != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/analytics/anomalies/pressure?box=BOX-0001", nil))
	if rec.Code != 404 {
		t.Fatalf("unknown metric status = %d", rec.Code)
	}
}

func TestAnalyticsBadWindowParam(t *testing.T) {
	handler := newAnalyticsHandler(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/analytics/anomalies?box=BOX-0001&window=soon", nil))
	if rec.Code != 400 {
		t.Fatalf("status = %d", rec.Code)
	}
}
