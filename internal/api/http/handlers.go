// Package apihttp serves the read side of the twin: boxes, samples, stored
// telemetry, SLA configs, service stats, and cache administration.
package apihttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	alerts "github.com/HendrickFS/bio-supply-twin/internal/alerts/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/audit"
	"github.com/HendrickFS/bio-supply-twin/internal/cache"
	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/sla"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

const timeLayout = time.RFC3339

const (
	defaultTelemetryLimit = 100
	maxTelemetryLimit     = 1000
	healthPingTimeout     = 2 * time.Second
)

// ServiceInfoHandler serves the service banner at the root path.
type ServiceInfoHandler struct {
	version string
}

// NewServiceInfoHandler constructs a ServiceInfoHandler.
func NewServiceInfoHandler(version string) *ServiceInfoHandler {
	return &ServiceInfoHandler{version: version}
}

// ServeHTTP handles GET /.
func (h *ServiceInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "bio-supply-twin",
		"status":  "ok",
		"version": h.version,
	})
}

// HealthHandler reports database and cache health.
type HealthHandler struct {
	db    *sql.DB
	cache *cache.Cache
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *sql.DB, c *cache.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

type healthCache struct {
	Enabled bool  `json:"enabled"`
	Keys    int64 `json:"keys,omitempty"`
}

type healthResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Cache    healthCache `json:"cache"`
}

// ServeHTTP handles GET /healthz.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if h == nil || h.db == nil {
		resp.Status = "degraded"
		resp.Database = "error"
		status = http.StatusServiceUnavailable
	} else if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "error"
		status = http.StatusServiceUnavailable
	}

	if h != nil && h.cache.Enabled() {
		resp.Cache.Enabled = true
		if stats, err := h.cache.Stats(ctx); err == nil {
			resp.Cache.Keys = stats.Keys
		}
	}
	respondJSON(w, status, resp)
}

// BoxesHandler serves transport box queries.
type BoxesHandler struct {
	boxes   masterdata.BoxRepository
	samples masterdata.SampleRepository
	cache   *cache.Cache
}

// NewBoxesHandler constructs a BoxesHandler.
func NewBoxesHandler(boxes masterdata.BoxRepository, samples masterdata.SampleRepository, c *cache.Cache) *BoxesHandler {
	return &BoxesHandler{boxes: boxes, samples: samples, cache: c}
}

type boxDetail struct {
	Box     masterdata.TransportBox `json:"box"`
	Samples []masterdata.Sample     `json:"samples"`
}

// ServeHTTP handles GET /api/v1/boxes and GET /api/v1/boxes/{id}.
func (h *BoxesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.boxes == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/api/v1/boxes" {
		h.handleList(w, r)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/boxes/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.handleDetail(w, r, id)
}

func (h *BoxesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	boxes, err := h.boxes.List(r.Context())
	if err != nil {
		http.Error(w, "query boxes error", http.StatusInternalServerError)
		return
	}
	if boxes == nil {
		boxes = []masterdata.TransportBox{}
	}
	respondJSON(w, http.StatusOK, boxes)
}

func (h *BoxesHandler) handleDetail(w http.ResponseWriter, r *http.Request, id string) {
	key := cache.Key("db", "box:"+id)
	var cached boxDetail
	if found, err := h.cache.GetJSON(r.Context(), key, &cached); err == nil && found {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	box, err := h.boxes.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "query box error", http.StatusInternalServerError)
		return
	}
	if box == nil {
		http.Error(w, "box not found", http.StatusNotFound)
		return
	}

	detail := boxDetail{Box: *box, Samples: []masterdata.Sample{}}
	if h.samples != nil {
		if samples, err := h.samples.List(r.Context(), id); err == nil && samples != nil {
			detail.Samples = samples
		}
	}
	_ = h.cache.SetJSON(r.Context(), key, detail, cache.TTLDB)
	respondJSON(w, http.StatusOK, detail)
}

// SamplesHandler serves sample queries.
type SamplesHandler struct {
	samples masterdata.SampleRepository
	cache   *cache.Cache
}

// NewSamplesHandler constructs a SamplesHandler.
func NewSamplesHandler(samples masterdata.SampleRepository, c *cache.Cache) *SamplesHandler {
	return &SamplesHandler{samples: samples, cache: c}
}

// ServeHTTP handles GET /api/v1/samples and GET /api/v1/samples/{id}.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.samples == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/api/v1/samples" {
		h.handleList(w, r)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/samples/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.handleDetail(w, r, id)
}

func (h *SamplesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	boxID := r.URL.Query().Get("box")
	samples, err := h.samples.List(r.Context(), boxID)
	if err != nil {
		http.Error(w, "query samples error", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []masterdata.Sample{}
	}
	respondJSON(w, http.StatusOK, samples)
}

func (h *SamplesHandler) handleDetail(w http.ResponseWriter, r *http.Request, id string) {
	key := cache.Key("db", "sample:"+id)
	var cached masterdata.Sample
	if found, err := h.cache.GetJSON(r.Context(), key, &cached); err == nil && found {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	sample, err := h.samples.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "query sample error", http.StatusInternalServerError)
		return
	}
	if sample == nil {
		http.Error(w, "sample not found", http.StatusNotFound)
		return
	}
	_ = h.cache.SetJSON(r.Context(), key, sample, cache.TTLDB)
	respondJSON(w, http.StatusOK, sample)
}

// TelemetryHandler serves stored reading queries.
type TelemetryHandler struct {
	readings telemetry.Query
}

// NewTelemetryHandler constructs a TelemetryHandler.
func NewTelemetryHandler(readings telemetry.Query) *TelemetryHandler {
	return &TelemetryHandler{readings: readings}
}

// ServeHTTP handles GET /api/v1/telemetry.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.readings == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	filter, err := parseReadingFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	readings, err := h.readings.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "query telemetry error", http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}
	respondJSON(w, http.StatusOK, readings)
}

// SLAConfigStore is the slice of the SLA repository the API needs.
type SLAConfigStore interface {
	List(ctx context.Context) ([]sla.Config, error)
	Save(ctx context.Context, cfg *sla.Config) error
}

// SLAHandler serves threshold config reads and writes.
type SLAHandler struct {
	configs     SLAConfigStore
	cache       *cache.Cache
	auditLogger audit.Logger
}

// NewSLAHandler constructs a SLAHandler.
func NewSLAHandler(configs SLAConfigStore, c *cache.Cache, auditLogger audit.Logger) *SLAHandler {
	return &SLAHandler{configs: configs, cache: c, auditLogger: auditLogger}
}

// ServeHTTP handles GET and POST /api/v1/sla.
func (h *SLAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.configs == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleSave(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SLAHandler) handleList(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.List(r.Context())
	if err != nil {
		http.Error(w, "query sla configs error", http.StatusInternalServerError)
		return
	}
	if configs == nil {
		configs = []sla.Config{}
	}
	respondJSON(w, http.StatusOK, configs)
}

func (h *SLAHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	var cfg sla.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.configs.Save(r.Context(), &cfg); err != nil {
		http.Error(w, "save sla config error", http.StatusInternalServerError)
		return
	}

	// Stored compliance reports embed the band, so drop them on change.
	_, _ = h.cache.ClearPrefix(r.Context(), "analytics")
	h.logAudit(r, cfg)
	respondJSON(w, http.StatusCreated, cfg)
}

func (h *SLAHandler) logAudit(r *http.Request, cfg sla.Config) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(cfg)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        "api",
		Action:       "sla.save",
		ResourceType: "sla_config",
		ResourceID:   cfg.Name,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// StatsHandler serves aggregate row counts.
type StatsHandler struct {
	boxes    masterdata.BoxRepository
	samples  masterdata.SampleRepository
	readings telemetry.Query
	alerts   alerts.Repository
	cache    *cache.Cache
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(
	boxes masterdata.BoxRepository,
	samples masterdata.SampleRepository,
	readings telemetry.Query,
	alertRepo alerts.Repository,
	c *cache.Cache,
) *StatsHandler {
	return &StatsHandler{boxes: boxes, samples: samples, readings: readings, alerts: alertRepo, cache: c}
}

type statsResponse struct {
	NumBoxes        int64 `json:"num_boxes"`
	NumSamples      int64 `json:"num_samples"`
	NumReadings     int64 `json:"num_readings"`
	NumActiveAlerts int64 `json:"num_active_alerts"`
	FromCache       bool  `json:"from_cache"`
}

// ServeHTTP handles GET /api/v1/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.boxes == nil || h.samples == nil || h.readings == nil || h.alerts == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	key := cache.Key("api", "stats")
	var cached statsResponse
	if found, err := h.cache.GetJSON(r.Context(), key, &cached); err == nil && found {
		cached.FromCache = true
		respondJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := h.collect(r.Context())
	if err != nil {
		http.Error(w, "query stats error", http.StatusInternalServerError)
		return
	}
	_ = h.cache.SetJSON(r.Context(), key, stats, cache.TTLAPI)
	respondJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) collect(ctx context.Context) (statsResponse, error) {
	var stats statsResponse
	var err error
	if stats.NumBoxes, err = h.boxes.Count(ctx); err != nil {
		return stats, err
	}
	if stats.NumSamples, err = h.samples.Count(ctx); err != nil {
		return stats, err
	}
	if stats.NumReadings, err = h.readings.Count(ctx); err != nil {
		return stats, err
	}
	if stats.NumActiveAlerts, err = h.alerts.CountActive(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// CacheAdminHandler serves cache stats and clearing.
type CacheAdminHandler struct {
	cache       *cache.Cache
	auditLogger audit.Logger
}

// NewCacheAdminHandler constructs a CacheAdminHandler.
func NewCacheAdminHandler(c *cache.Cache, auditLogger audit.Logger) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c, auditLogger: auditLogger}
}

// ServeHTTP handles GET /api/v1/cache/stats and DELETE /api/v1/cache.
func (h *CacheAdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/cache/stats" && r.Method == http.MethodGet:
		h.handleStats(w, r)
	case r.URL.Path == "/api/v1/cache" && r.Method == http.MethodDelete:
		h.handleClear(w, r)
	case r.URL.Path == "/api/v1/cache" || r.URL.Path == "/api/v1/cache/stats":
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *CacheAdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		http.Error(w, "cache stats error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *CacheAdminHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.cache.Clear(r.Context())
	if err != nil {
		http.Error(w, "cache clear error", http.StatusInternalServerError)
		return
	}
	if h.auditLogger != nil {
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        "api",
			Action:       "cache.clear",
			ResourceType: "cache",
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
	respondJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseReadingFilter(r *http.Request) (telemetry.Filter, error) {
	filter := telemetry.Filter{
		BoxID:    r.URL.Query().Get("box"),
		SampleID: r.URL.Query().Get("sample"),
		Limit:    defaultTelemetryLimit,
	}

	if since := r.URL.Query().Get("since"); since != "" {
		parsed, err := time.Parse(timeLayout, since)
		if err != nil {
			return filter, errors.New("since must be RFC3339")
		}
		filter.Since = parsed.UTC()
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		if limit > maxTelemetryLimit {
			limit = maxTelemetryLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}
