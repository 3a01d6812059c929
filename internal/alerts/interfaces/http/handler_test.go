package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "github.com/HendrickFS/bio-supply-twin/internal/alerts/application"
	alerts "github.com/HendrickFS/bio-supply-twin/internal/alerts/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
)

type stubAlertRepo struct {
	mu    sync.Mutex
	store map[string]*alerts.Alert
}

func newStubAlertRepo() *stubAlertRepo {
	return &stubAlertRepo{store: make(map[string]*alerts.Alert)}
}

func (s *stubAlertRepo) Create(_ context.Context, alert *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *alert
	s.store[alert.ID] = &copied
	return nil
}

func (s *stubAlertRepo) GetByID(_ context.Context, id string) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.store[id]
	if !ok {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

func (s *stubAlertRepo) FindActive(_ context.Context, boxID, sampleID, alertType string) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, alert := range s.store {
		if alert.IsActive && alert.BoxID == boxID && alert.SampleID == sampleID && alert.Type == alertType {
			copied := *alert
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubAlertRepo) Refresh(_ context.Context, id string, value float64, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.store[id]; ok {
		alert.Value = value
		alert.LastSeenAt = seenAt
	}
	return nil
}

func (s *stubAlertRepo) MarkAcknowledged(_ context.Context, id string, ackedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.store[id]; ok {
		alert.AcknowledgedAt = ackedAt
	}
	return nil
}

func (s *stubAlertRepo) MarkResolved(_ context.Context, id string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.store[id]; ok {
		alert.IsActive = false
		alert.ResolvedAt = resolvedAt
	}
	return nil
}

func (s *stubAlertRepo) List(_ context.Context, activeOnly bool) ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []alerts.Alert
	for _, alert := range s.store {
		if activeOnly && !alert.IsActive {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (s *stubAlertRepo) CountActive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, alert := range s.store {
		if alert.IsActive {
			n++
		}
	}
	return n, nil
}

type allBands struct{}

func (allBands) BandForBox(context.Context, string) compliance.Band {
	return compliance.Band{TempMin: 2, TempMax: 8, HumidityMin: 30, HumidityMax: 70}
}

func newTestHandler(t *testing.T, repo *stubAlertRepo) *Handler {
	t.Helper()
	monitor, err := alertapp.NewMonitor(repo, allBands{})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	handler, err := NewHandler(monitor)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestListAlertsFiltersActive(t *testing.T) {
	repo := newStubAlertRepo()
	repo.store["alert-1"] = &alerts.Alert{ID: "alert-1", BoxID: "BOX-0001", Type: alerts.TypeTemperatureExcursion, Severity: alerts.SeverityWarning, IsActive: true}
	repo.store["alert-2"] = &alerts.Alert{ID: "alert-2", BoxID: "BOX-0001", Type: alerts.TypeStaleData, Severity: alerts.SeverityWarning, IsActive: false}
	handler := newTestHandler(t, repo)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var all []alerts.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(all))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?active=true", nil))
	var active []alerts.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &active); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(active) != 1 || active[0].ID != "alert-1" {
		t.Fatalf("expected only alert-1 active, got %v", active)
	}
}

func TestListAlertsRejectsBadFilter(t *testing.T) {
	handler := newTestHandler(t, newStubAlertRepo())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?active=banana", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAlert(t *testing.T) {
	repo := newStubAlertRepo()
	handler := newTestHandler(t, repo)

	body := `{"box_id":"BOX-0002","type":"temperature_excursion","message":"manual check"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created alerts.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.ID, "alert-") {
		t.Fatalf("expected generated id, got %q", created.ID)
	}
	if created.Severity != alerts.SeverityWarning || !created.IsActive {
		t.Fatalf("unexpected created alert %+v", created)
	}
}

func TestCreateAlertRejectsMissingSubject(t *testing.T) {
	handler := newTestHandler(t, newStubAlertRepo())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(`{"type":"stale_data"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAckAndResolveActions(t *testing.T) {
	repo := newStubAlertRepo()
	repo.store["alert-9"] = &alerts.Alert{ID: "alert-9", BoxID: "BOX-0003", Type: alerts.TypeHumidityExcursion, Severity: alerts.SeverityCritical, IsActive: true}
	handler := newTestHandler(t, repo)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-9/ack", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ack: expected 200, got %d", rec.Code)
	}
	var acked alerts.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &acked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acked.AcknowledgedAt.IsZero() || !acked.IsActive {
		t.Fatalf("expected acknowledged active alert, got %+v", acked)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-9/resolve", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", rec.Code)
	}
	var resolved alerts.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resolved.IsActive {
		t.Fatalf("expected resolved alert, got %+v", resolved)
	}
}

func TestActionUnknownAlert(t *testing.T) {
	handler := newTestHandler(t, newStubAlertRepo())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-missing/ack", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestActionUnknownVerb(t *testing.T) {
	repo := newStubAlertRepo()
	repo.store["alert-5"] = &alerts.Alert{ID: "alert-5", BoxID: "BOX-0001", Type: alerts.TypeStaleData, Severity: alerts.SeverityWarning, IsActive: true}
	handler := newTestHandler(t, repo)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-5/snooze", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBrokerFanOut(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	broker.Notify(context.Background(), alertapp.AlertEvent{
		Type:  "active",
		Alert: alerts.Alert{ID: "alert-7", BoxID: "BOX-0001", Type: alerts.TypeStaleData},
	})

	select {
	case payload := <-ch:
		var event alertapp.AlertEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if event.Type != "active" || event.Alert.ID != "alert-7" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}
