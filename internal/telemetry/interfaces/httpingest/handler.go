// Package httpingest accepts telemetry readings over HTTP.
package httpingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

// ReadingRecorder persists parsed readings.
type ReadingRecorder interface {
	Record(ctx context.Context, readings []telemetry.Reading) (int, error)
}

// Handler handles POST /api/v1/telemetry.
type Handler struct {
	recorder ReadingRecorder
	logger   *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(recorder ReadingRecorder, logger *log.Logger) (*Handler, error) {
	if recorder == nil {
		return nil, errors.New("telemetry ingest: nil recorder")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{recorder: recorder, logger: logger}, nil
}

// ServeHTTP ingests a single reading or an array of readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.ObserveIngestLatency(metrics.SourceHTTP, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		metrics.IncIngestError(metrics.SourceHTTP)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("telemetry ingest: read body error: %v", err)
		metrics.IncIngestError(metrics.SourceHTTP)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	items, err := decodePayload(body)
	if err != nil {
		h.logger.Printf("telemetry ingest: decode error: %v", err)
		metrics.IncIngestError(metrics.SourceHTTP)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	readings, err := toReadings(items, time.Now().UTC())
	if err != nil {
		h.logger.Printf("telemetry ingest: invalid payload: %v", err)
		metrics.IncIngestError(metrics.SourceHTTP)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	inserted, err := h.recorder.Record(r.Context(), readings)
	if err != nil {
		h.logger.Printf("telemetry ingest: insert error: %v", err)
		metrics.IncIngestError(metrics.SourceHTTP)
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}
	metrics.AddIngestReadings(metrics.SourceHTTP, inserted)

	resp := map[string]any{"inserted": inserted}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ingestReading struct {
	BoxID       string          `json:"box_id"`
	SampleID    string          `json:"sample_id"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Temperature *float64        `json:"temperature"`
	Humidity    *float64        `json:"humidity"`
	Geolocation string          `json:"geolocation"`
}

func decodePayload(body []byte) ([]ingestReading, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var items []ingestReading
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var single ingestReading
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []ingestReading{single}, nil
}

func toReadings(items []ingestReading, now time.Time) ([]telemetry.Reading, error) {
	if len(items) == 0 {
		return nil, errors.New("no readings")
	}
	readings := make([]telemetry.Reading, 0, len(items))
	for _, item := range items {
		ts, err := parseTimestamp(item.Timestamp, now)
		if err != nil {
			return nil, err
		}
		reading := telemetry.Reading{
			BoxID:       item.BoxID,
			SampleID:    item.SampleID,
			Timestamp:   ts,
			Temperature: item.Temperature,
			Humidity:    item.Humidity,
			Geolocation: item.Geolocation,
		}
		if err := reading.Validate(); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// parseTimestamp accepts RFC3339 strings and unix epochs in seconds or
// milliseconds. A missing timestamp falls back to the receive time.
func parseTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return now, nil
	}
	if trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return time.Time{}, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}, errors.New("timestamp must be RFC3339")
		}
		return parsed.UTC(), nil
	}

	value, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil || value <= 0 {
		return time.Time{}, errors.New("invalid timestamp")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(int64(value)).UTC(), nil
	}
	return time.Unix(int64(value), 0).UTC(), nil
}
