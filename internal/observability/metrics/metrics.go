package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "bio_supply_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"

	sourceHTTP = "http"
	sourceMQTT = "mqtt"
)

var (
	registerOnce sync.Once

	ingestReadings *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	analyticsTotal    *prometheus.CounterVec
	analyticsDuration *prometheus.HistogramVec
	anomaliesFound    *prometheus.CounterVec

	cacheRequests *prometheus.CounterVec

	alertEventsTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	outboxDispatchTotal   *prometheus.CounterVec
	outboxDispatchLatency *prometheus.HistogramVec
	outboxEventsTotal     *prometheus.CounterVec

	consumerLag *prometheus.GaugeVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestReadings = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_readings_total",
				Help: "Total ingested telemetry readings by source",
			},
			[]string{"source"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by source",
			},
			[]string{"source"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds by source",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)

		analyticsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analytics_total",
				Help: "Total analytics runs by operation and result",
			},
			[]string{"op", "result"},
		)
		analyticsDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "analytics_duration_seconds",
				Help:    "Analytics run duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)
		anomaliesFound = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomalies_found_total",
				Help: "Total anomalies detected by algorithm",
			},
			[]string{"algorithm"},
		)

		cacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_requests_total",
				Help: "Total cache lookups by result",
			},
			[]string{"result"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		outboxDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Total outbox dispatch runs by result",
			},
			[]string{"result"},
		)
		outboxDispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_dispatch_latency_seconds",
				Help:    "Outbox dispatch run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_events_total",
				Help: "Total outbox events by delivery status",
			},
			[]string{"status"},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		prometheus.MustRegister(
			ingestReadings,
			ingestErrors,
			ingestLatency,
			analyticsTotal,
			analyticsDuration,
			anomaliesFound,
			cacheRequests,
			alertEventsTotal,
			exportTotal,
			exportLatency,
			outboxDispatchTotal,
			outboxDispatchLatency,
			outboxEventsTotal,
			consumerLag,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// AddIngestReadings increments the ingested readings counter.
func AddIngestReadings(source string, count int) {
	if count <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if ingestReadings != nil {
		ingestReadings.WithLabelValues(source).Add(float64(count))
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(source string) {
	if source == "" {
		source = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(source).Inc()
	}
}

// ObserveIngestLatency records ingest duration for a source.
func ObserveIngestLatency(source string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// ObserveAnalytics records an analytics run duration and result.
func ObserveAnalytics(op, result string, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if analyticsTotal != nil {
		analyticsTotal.WithLabelValues(op, result).Inc()
	}
	if analyticsDuration != nil {
		analyticsDuration.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// AddAnomaliesFound increments the anomaly counter for an algorithm.
func AddAnomaliesFound(algorithm string, count int) {
	if count <= 0 {
		return
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	if anomaliesFound != nil {
		anomaliesFound.WithLabelValues(algorithm).Add(float64(count))
	}
}

// IncCacheRequest increments cache lookup counters.
func IncCacheRequest(result string) {
	if result == "" {
		result = cacheMiss
	}
	if cacheRequests != nil {
		cacheRequests.WithLabelValues(result).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveOutboxDispatch records an outbox dispatch run.
func ObserveOutboxDispatch(result string, duration time.Duration, sent, failed, dlq int) {
	if result == "" {
		result = resultSuccess
	}
	if outboxDispatchTotal != nil {
		outboxDispatchTotal.WithLabelValues(result).Inc()
	}
	if outboxDispatchLatency != nil {
		outboxDispatchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if outboxEventsTotal != nil {
		if sent > 0 {
			outboxEventsTotal.WithLabelValues("sent").Add(float64(sent))
		}
		if failed > 0 {
			outboxEventsTotal.WithLabelValues("failed").Add(float64(failed))
		}
		if dlq > 0 {
			outboxEventsTotal.WithLabelValues("dlq").Add(float64(dlq))
		}
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	CacheHit  = cacheHit
	CacheMiss = cacheMiss

	SourceHTTP = sourceHTTP
	SourceMQTT = sourceMQTT
)
