package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/anomaly"
	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
	"github.com/HendrickFS/bio-supply-twin/internal/cache"
	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
	"github.com/HendrickFS/bio-supply-twin/internal/sla"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

// Service errors.
var (
	ErrMissingSubject = errors.New("analytics: box or sample id required")
	ErrSLANotFound    = errors.New("analytics: sla not found")
	ErrUnknownMetric  = errors.New("analytics: unknown metric")
)

// SLAStore loads and seeds threshold configs.
type SLAStore interface {
	GetByName(ctx context.Context, name string) (*sla.Config, error)
	List(ctx context.Context) ([]sla.Config, error)
	Save(ctx context.Context, cfg *sla.Config) error
}

// Service answers compliance and anomaly queries over stored telemetry.
type Service struct {
	readings telemetry.Query
	configs  SLAStore
	cache    *cache.Cache
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithCache enables result caching.
func WithCache(c *cache.Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// NewService constructs the analytics service.
func NewService(readings telemetry.Query, configs SLAStore, opts ...ServiceOption) (*Service, error) {
	if readings == nil {
		return nil, errors.New("analytics: nil reading query")
	}
	if configs == nil {
		return nil, errors.New("analytics: nil sla store")
	}
	service := &Service{readings: readings, configs: configs}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ComplianceRequest selects the series and the config to evaluate against.
type ComplianceRequest struct {
	BoxID    string
	SampleID string
	SLAName  string
	Since    time.Time
	Limit    int
}

// ComplianceReport is the evaluation outcome for one subject.
type ComplianceReport struct {
	BoxID      string                 `json:"box_id,omitempty"`
	SampleID   string                 `json:"sample_id,omitempty"`
	SLA        string                 `json:"sla"`
	Band       compliance.Band        `json:"band"`
	NumPoints  int                    `json:"num_points"`
	InRangePct float64                `json:"in_range_pct"`
	Excursions []compliance.Excursion `json:"excursions"`
	FromCache  bool                   `json:"from_cache"`
}

// Compliance evaluates stored readings against the selected SLA band.
func (s *Service) Compliance(ctx context.Context, req ComplianceRequest) (*ComplianceReport, error) {
	start := time.Now()
	report, err := s.compliance(ctx, req)
	metrics.ObserveAnalytics("compliance", resultLabel(err), time.Since(start))
	return report, err
}

func (s *Service) compliance(ctx context.Context, req ComplianceRequest) (*ComplianceReport, error) {
	if s == nil {
		return nil, errors.New("analytics: nil service")
	}
	if req.BoxID == "" && req.SampleID == "" {
		return nil, ErrMissingSubject
	}

	key := cache.Key("analytics", "compliance:"+complianceHash(req))
	if s.cache.Enabled() {
		var cached ComplianceReport
		if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
			cached.FromCache = true
			return &cached, nil
		}
	}

	cfg, err := s.resolveConfig(ctx, req.SLAName)
	if err != nil {
		return nil, err
	}

	readings, err := s.readings.List(ctx, telemetry.Filter{
		BoxID:    req.BoxID,
		SampleID: req.SampleID,
		Since:    req.Since,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, err
	}

	evaluated := compliance.Evaluate(telemetry.Points(readings), cfg.Band())
	report := &ComplianceReport{
		BoxID:      req.BoxID,
		SampleID:   req.SampleID,
		SLA:        cfg.Name,
		Band:       cfg.Band(),
		NumPoints:  evaluated.NumPoints,
		InRangePct: evaluated.InRangePct,
		Excursions: evaluated.Excursions,
	}
	_ = s.cache.SetJSON(ctx, key, report, cache.TTLAnalytics)
	return report, nil
}

// resolveConfig picks the named config, else the stored default, else the
// newest stored config. With nothing stored it seeds and returns the built-in
// default band.
func (s *Service) resolveConfig(ctx context.Context, name string) (sla.Config, error) {
	if name != "" {
		cfg, err := s.configs.GetByName(ctx, name)
		if err != nil {
			return sla.Config{}, err
		}
		if cfg == nil {
			return sla.Config{}, ErrSLANotFound
		}
		return *cfg, nil
	}

	if cfg, err := s.configs.GetByName(ctx, sla.DefaultName); err == nil && cfg != nil {
		return *cfg, nil
	}
	list, err := s.configs.List(ctx)
	if err != nil {
		return sla.Config{}, err
	}
	if len(list) > 0 {
		return list[0], nil
	}

	seeded := sla.Default(sla.DefaultName)
	if err := s.configs.Save(ctx, &seeded); err != nil {
		return sla.Default(sla.DefaultName), nil
	}
	return seeded, nil
}

// AnomalyRequest selects the series and tunes the detector.
type AnomalyRequest struct {
	BoxID      string
	SampleID   string
	Algorithm  string
	WindowSize int
	Threshold  float64
	Metrics    []string
	Since      time.Time
	Limit      int
}

// AnomalySummary counts what the detector saw.
type AnomalySummary struct {
	TotalPoints    int `json:"total_points"`
	AnomaliesFound int `json:"anomalies_found"`
}

// AnomalyReport is the detection outcome for one subject.
type AnomalyReport struct {
	BoxID      string            `json:"box_id,omitempty"`
	SampleID   string            `json:"sample_id,omitempty"`
	Algorithm  anomaly.Algorithm `json:"algorithm"`
	WindowSize int               `json:"window_size"`
	Threshold  float64           `json:"threshold"`
	Anomalies  []anomaly.Result  `json:"anomalies"`
	Summary    AnomalySummary    `json:"summary"`
	FromCache  bool              `json:"from_cache"`
}

// Anomalies runs the configured detector over stored readings.
func (s *Service) Anomalies(ctx context.Context, req AnomalyRequest) (*AnomalyReport, error) {
	start := time.Now()
	report, err := s.anomalies(ctx, req)
	metrics.ObserveAnalytics("anomalies", resultLabel(err), time.Since(start))
	return report, err
}

func (s *Service) anomalies(ctx context.Context, req AnomalyRequest) (*AnomalyReport, error) {
	if s == nil {
		return nil, errors.New("analytics: nil service")
	}
	if req.BoxID == "" && req.SampleID == "" {
		return nil, ErrMissingSubject
	}

	algorithm, err := anomaly.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}
	detector, err := anomaly.NewDetector(anomaly.Config{
		Algorithm:  algorithm,
		WindowSize: req.WindowSize,
		Threshold:  req.Threshold,
	})
	if err != nil {
		return nil, err
	}

	key := cache.Key("analytics", "anomalies:"+anomalyHash(req, detector.Config()))
	if s.cache.Enabled() {
		var cached AnomalyReport
		if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
			cached.FromCache = true
			return &cached, nil
		}
	}

	readings, err := s.readings.List(ctx, telemetry.Filter{
		BoxID:    req.BoxID,
		SampleID: req.SampleID,
		Since:    req.Since,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, err
	}

	points := telemetry.Points(readings)
	found := detector.Detect(points, req.Metrics)
	metrics.AddAnomaliesFound(string(detector.Config().Algorithm), len(found))

	report := &AnomalyReport{
		BoxID:      req.BoxID,
		SampleID:   req.SampleID,
		Algorithm:  detector.Config().Algorithm,
		WindowSize: detector.Config().WindowSize,
		Threshold:  detector.Config().Threshold,
		Anomalies:  found,
		Summary: AnomalySummary{
			TotalPoints:    len(points),
			AnomaliesFound: len(found),
		},
	}
	_ = s.cache.SetJSON(ctx, key, report, cache.TTLAnalytics)
	return report, nil
}

// MetricAnomalyReport is the single-metric detection outcome.
type MetricAnomalyReport struct {
	Metric    string           `json:"metric"`
	Count     int              `json:"count"`
	Results   []anomaly.Result `json:"results"`
	FromCache bool             `json:"from_cache"`
}

// MetricAnomalies runs the detector over one named metric.
func (s *Service) MetricAnomalies(ctx context.Context, metric string, req AnomalyRequest) (*MetricAnomalyReport, error) {
	known := false
	for _, name := range series.Metrics() {
		if name == metric {
			known = true
			break
		}
	}
	if !known {
		return nil, ErrUnknownMetric
	}

	req.Metrics = []string{metric}
	report, err := s.Anomalies(ctx, req)
	if err != nil {
		return nil, err
	}
	return &MetricAnomalyReport{
		Metric:    metric,
		Count:     len(report.Anomalies),
		Results:   report.Anomalies,
		FromCache: report.FromCache,
	}, nil
}

func resultLabel(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}

func complianceHash(req ComplianceRequest) string {
	return requestHash(
		req.BoxID,
		req.SampleID,
		req.SLAName,
		sinceLabel(req.Since),
		strconv.Itoa(req.Limit),
	)
}

func anomalyHash(req AnomalyRequest, cfg anomaly.Config) string {
	return requestHash(
		req.BoxID,
		req.SampleID,
		string(cfg.Algorithm),
		strconv.Itoa(cfg.WindowSize),
		strconv.FormatFloat(cfg.Threshold, 'f', -1, 64),
		strings.Join(req.Metrics, ","),
		sinceLabel(req.Since),
		strconv.Itoa(req.Limit),
	)
}

func sinceLabel(since time.Time) string {
	if since.IsZero() {
		return ""
	}
	return since.UTC().Format(time.RFC3339Nano)
}

func requestHash(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}
