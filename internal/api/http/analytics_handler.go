package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/anomaly"
	analyticsapp "github.com/HendrickFS/bio-supply-twin/internal/analytics/application"
)

// AnalyticsHandler serves compliance and anomaly queries.
type AnalyticsHandler struct {
	service *analyticsapp.Service
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(service *analyticsapp.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// ServeHTTP routes analytics requests.
func (h *AnalyticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.URL.Path == "/api/v1/analytics/compliance":
		h.handleCompliance(w, r)
	case r.URL.Path == "/api/v1/analytics/anomalies":
		h.handleAnomalies(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/analytics/anomalies/"):
		metric := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/analytics/anomalies/"), "/")
		h.handleMetricAnomalies(w, r, metric)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AnalyticsHandler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	since, limit, err := parseSinceLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.Compliance(r.Context(), analyticsapp.ComplianceRequest{
		BoxID:    r.URL.Query().Get("box"),
		SampleID: r.URL.Query().Get("sample"),
		SLAName:  r.URL.Query().Get("sla_name"),
		Since:    since,
		Limit:    limit,
	})
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *AnalyticsHandler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	req, err := parseAnomalyRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.Anomalies(r.Context(), req)
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *AnalyticsHandler) handleMetricAnomalies(w http.ResponseWriter, r *http.Request, metric string) {
	if metric == "" || strings.Contains(metric, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	req, err := parseAnomalyRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.MetricAnomalies(r.Context(), metric, req)
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func respondAnalyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analyticsapp.ErrMissingSubject):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, analyticsapp.ErrSLANotFound):
		http.Error(w, "sla config not found", http.StatusNotFound)
	case errors.Is(err, analyticsapp.ErrUnknownMetric):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, anomaly.ErrUnknownAlgorithm),
		errors.Is(err, anomaly.ErrWindowTooSmall),
		errors.Is(err, anomaly.ErrInvalidThreshold):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "analytics error", http.StatusInternalServerError)
	}
}

func parseAnomalyRequest(r *http.Request) (analyticsapp.AnomalyRequest, error) {
	since, limit, err := parseSinceLimit(r)
	if err != nil {
		return analyticsapp.AnomalyRequest{}, err
	}

	window, err := parseIntQuery(r, "window")
	if err != nil {
		return analyticsapp.AnomalyRequest{}, err
	}
	threshold, err := parseFloatQuery(r, "threshold")
	if err != nil {
		return analyticsapp.AnomalyRequest{}, err
	}

	var metrics []string
	if raw := r.URL.Query().Get("metrics"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				metrics = append(metrics, trimmed)
			}
		}
	}

	return analyticsapp.AnomalyRequest{
		BoxID:      r.URL.Query().Get("box"),
		SampleID:   r.URL.Query().Get("sample"),
		Algorithm:  r.URL.Query().Get("algorithm"),
		WindowSize: window,
		Threshold:  threshold,
		Metrics:    metrics,
		Since:      since,
		Limit:      limit,
	}, nil
}

func parseSinceLimit(r *http.Request) (time.Time, int, error) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			return time.Time{}, 0, errors.New("since must be RFC3339")
		}
		since = parsed.UTC()
	}

	limit, err := parseIntQuery(r, "limit")
	if err != nil {
		return time.Time{}, 0, err
	}
	return since, limit, nil
}

func parseIntQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return value, nil
}

func parseFloatQuery(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return value, nil
}
