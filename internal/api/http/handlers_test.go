package apihttp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	alerts "github.com/HendrickFS/bio-supply-twin/internal/alerts/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/audit"
	"github.com/HendrickFS/bio-supply-twin/internal/cache"
	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/sla"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

type stubBoxRepo struct {
	boxes map[string]masterdata.TransportBox
	err   error
}

func (r *stubBoxRepo) Get(_ context.Context, id string) (*masterdata.TransportBox, error) {
	if r.err != nil {
		return nil, r.err
	}
	box, ok := r.boxes[id]
	if !ok {
		return nil, nil
	}
	copied := box
	return &copied, nil
}

func (r *stubBoxRepo) List(_ context.Context) ([]masterdata.TransportBox, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]masterdata.TransportBox, 0, len(r.boxes))
	for _, box := range r.boxes {
		out = append(out, box)
	}
	return out, nil
}

func (r *stubBoxRepo) Save(_ context.Context, box *masterdata.TransportBox) error {
	r.boxes[box.ID] = *box
	return nil
}

func (r *stubBoxRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.boxes)), r.err
}

type stubSampleRepo struct {
	samples map[string]masterdata.Sample
}

func (r *stubSampleRepo) Get(_ context.Context, id string) (*masterdata.Sample, error) {
	sample, ok := r.samples[id]
	if !ok {
		return nil, nil
	}
	copied := sample
	return &copied, nil
}

func (r *stubSampleRepo) List(_ context.Context, boxID string) ([]masterdata.Sample, error) {
	out := make([]masterdata.Sample, 0)
	for _, sample := range r.samples {
		if boxID == "" || sample.BoxID == boxID {
			out = append(out, sample)
		}
	}
	return out, nil
}

func (r *stubSampleRepo) Save(_ context.Context, sample *masterdata.Sample) error {
	r.samples[sample.ID] = *sample
	return nil
}

func (r *stubSampleRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.samples)), nil
}

type stubReadingQuery struct {
	readings   []telemetry.Reading
	lastFilter telemetry.Filter
	count      int64
	err        error
}

func (q *stubReadingQuery) List(_ context.Context, filter telemetry.Filter) ([]telemetry.Reading, error) {
	q.lastFilter = filter
	return q.readings, q.err
}

func (q *stubReadingQuery) Count(_ context.Context) (int64, error) {
	return q.count, q.err
}

type stubAlertCounter struct {
	active int64
}

func (s *stubAlertCounter) Create(_ context.Context, _ *alerts.Alert) error { return nil }
func (s *stubAlertCounter) GetByID(_ context.Context, _ string) (*alerts.Alert, error) {
	return nil, nil
}
func (s *stubAlertCounter) FindActive(_ context.Context, _, _, _ string) (*alerts.Alert, error) {
	return nil, nil
}
func (s *stubAlertCounter) Refresh(_ context.Context, _ string, _ float64, _ time.Time) error {
	return nil
}
func (s *stubAlertCounter) MarkAcknowledged(_ context.Context, _ string, _ time.Time) error {
	return nil
}
func (s *stubAlertCounter) MarkResolved(_ context.Context, _ string, _ time.Time) error {
	return nil
}
func (s *stubAlertCounter) List(_ context.Context, _ bool) ([]alerts.Alert, error) {
	return nil, nil
}
func (s *stubAlertCounter) CountActive(_ context.Context) (int64, error) {
	return s.active, nil
}

type stubConfigStore struct {
	configs []sla.Config
	saved   []sla.Config
	err     error
}

func (s *stubConfigStore) List(_ context.Context) ([]sla.Config, error) {
	return s.configs, s.err
}

func (s *stubConfigStore) Save(_ context.Context, cfg *sla.Config) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, *cfg)
	return nil
}

type memAuditLog struct {
	entries []audit.Entry
}

func (l *memAuditLog) Log(_ context.Context, entry audit.Entry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func disabledCache() *cache.Cache {
	return cache.New("", 0, nil)
}

func TestServiceInfo(t *testing.T) {
	handler := NewServiceInfoHandler("1.4.0")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var info map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["service"] != "bio-supply-twin" || info["version"] != "1.4.0" {
		t.Fatalf("unexpected info %v", info)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != 404 {
		t.Fatalf("unknown path status = %d", rec.Code)
	}
}

func TestHealthDegradedWithoutDB(t *testing.T) {
	handler := NewHealthHandler(nil, disabledCache())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 503 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Database != "error" {
		t.Fatalf("unexpected health %+v", resp)
	}
	if resp.Cache.Enabled {
		t.Fatal("cache should report disabled")
	}
}

func TestBoxListAndDetail(t *testing.T) {
	boxes := &stubBoxRepo{boxes: map[string]masterdata.TransportBox{
		"BOX-0001": {ID: "BOX-0001", Status: "active"},
	}}
	samples := &stubSampleRepo{samples: map[string]masterdata.Sample{
		"SAMPLE-0001": {ID: "SAMPLE-0001", BoxID: "BOX-0001"},
		"SAMPLE-0002": {ID: "SAMPLE-0002", BoxID: "BOX-0002"},
	}}
	handler := NewBoxesHandler(boxes, samples, disabledCache())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/boxes", nil))
	if rec.Code != 200 {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []masterdata.TransportBox
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 box, got %d", len(list))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/boxes/BOX-0001", nil))
	if rec.Code != 200 {
		t.Fatalf("detail status = %d body=%s", rec.Code, rec.Body.String())
	}
	var detail boxDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Box.ID != "BOX-0001" {
		t.Fatalf("unexpected box %+v", detail.Box)
	}
	if len(detail.Samples) != 1 || detail.Samples[0].ID != "SAMPLE-0001" {
		t.Fatalf("expected the box's sample, got %+v", detail.Samples)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/boxes/BOX-0404", nil))
	if rec.Code != 404 {
		t.Fatalf("missing box status = %d", rec.Code)
	}
}

func TestSampleListFiltersByBox(t *testing.T) {
	samples := &stubSampleRepo{samples: map[string]masterdata.Sample{
		"SAMPLE-0001": {ID: "SAMPLE-0001", BoxID: "BOX-0001"},
		"SAMPLE-0002": {ID: "SAMPLE-0002", BoxID: "BOX-0002"},
	}}
	handler := NewSamplesHandler(samples, disabledCache())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/samples?box=BOX-0002", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []masterdata.Sample
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != "SAMPLE-0002" {
		t.Fatalf("unexpected samples %+v", list)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/samples/SAMPLE-0404", nil))
	if rec.Code != 404 {
		t.Fatalf("missing sample status = %d", rec.Code)
	}
}

func TestTelemetryQueryParams(t *testing.T) {
	query := &stubReadingQuery{}
	handler := NewTelemetryHandler(query)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(
		"GET", "/api/v1/telemetry?box=BOX-0001&since=2026-03-10T08:00:00Z&limit=5000", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if query.lastFilter.BoxID != "BOX-0001" {
		t.Fatalf("box filter not forwarded: %+v", query.lastFilter)
	}
	if query.lastFilter.Limit != maxTelemetryLimit {
		t.Fatalf("limit not capped: %d", query.lastFilter.Limit)
	}
	want := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if !query.lastFilter.Since.Equal(want) {
		t.Fatalf("since not parsed: %v", query.lastFilter.Since)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/telemetry", nil))
	if query.lastFilter.Limit != defaultTelemetryLimit {
		t.Fatalf("default limit = %d", query.lastFilter.Limit)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/telemetry?since=yesterday", nil))
	if rec.Code != 400 {
		t.Fatalf("bad since status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/telemetry?limit=-2", nil))
	if rec.Code != 400 {
		t.Fatalf("bad limit status = %d", rec.Code)
	}
}

func TestSLASaveAndList(t *testing.T) {
	store := &stubConfigStore{configs: []sla.Config{sla.Default("default")}}
	auditLog := &memAuditLog{}
	handler := NewSLAHandler(store, disabledCache(), auditLog)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sla", nil))
	if rec.Code != 200 {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []sla.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "default" {
		t.Fatalf("unexpected configs %+v", list)
	}

	body := `{"name":"frozen","temp_min":-25,"temp_max":-15,"humidity_min":0,"humidity_max":100}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/sla", strings.NewReader(body)))
	if rec.Code != 201 {
		t.Fatalf("save status = %d body=%s", rec.Code, rec.Body.String())
	}
	if len(store.saved) != 1 || store.saved[0].Name != "frozen" {
		t.Fatalf("config not saved: %+v", store.saved)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "sla.save" {
		t.Fatalf("audit entry missing: %+v", auditLog.entries)
	}

	bad := `{"name":"broken","temp_min":10,"temp_max":2}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/sla", strings.NewReader(bad)))
	if rec.Code != 400 {
		t.Fatalf("inverted band status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/sla", strings.NewReader("{invalid")))
	if rec.Code != 400 {
		t.Fatalf("bad json status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	boxes := &stubBoxRepo{boxes: map[string]masterdata.TransportBox{
		"BOX-0001": {ID: "BOX-0001"},
		"BOX-0002": {ID: "BOX-0002"},
	}}
	samples := &stubSampleRepo{samples: map[string]masterdata.Sample{
		"SAMPLE-0001": {ID: "SAMPLE-0001", BoxID: "BOX-0001"},
	}}
	readings := &stubReadingQuery{count: 42}
	alertRepo := &stubAlertCounter{active: 3}
	handler := NewStatsHandler(boxes, samples, readings, alertRepo, disabledCache())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stats", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.NumBoxes != 2 || stats.NumSamples != 1 || stats.NumReadings != 42 || stats.NumActiveAlerts != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.FromCache {
		t.Fatal("first read must not come from cache")
	}
}

func TestCacheAdmin(t *testing.T) {
	auditLog := &memAuditLog{}
	handler := NewCacheAdminHandler(disabledCache(), auditLog)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/cache/stats", nil))
	if rec.Code != 200 {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Enabled {
		t.Fatal("disabled cache must report enabled=false")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/cache", nil))
	if rec.Code != 200 {
		t.Fatalf("clear status = %d", rec.Code)
	}
	var cleared map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &cleared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cleared["cleared"] != 0 {
		t.Fatalf("disabled cache cleared %d keys", cleared["cleared"])
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "cache.clear" {
		t.Fatalf("audit entry missing: %+v", auditLog.entries)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/cache", nil))
	if rec.Code != 405 {
		t.Fatalf("bad method status = %d", rec.Code)
	}
}
