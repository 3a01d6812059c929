package application

import (
	"testing"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

func TestGroupEventsSplitsBySubject(t *testing.T) {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	readings := []telemetry.Reading{
		{BoxID: "BOX-0001", Timestamp: start, Temperature: series.Float(4.5)},
		{SampleID: "SAMPLE-0001", Timestamp: start.Add(time.Minute), Humidity: series.Float(55)},
		{BoxID: "BOX-0001", Timestamp: start.Add(2 * time.Minute), Temperature: series.Float(4.7)},
	}

	events := GroupEvents(readings)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	box := events[0]
	if box.BoxID != "BOX-0001" || box.SampleID != "" {
		t.Fatalf("unexpected first event subject %+v", box)
	}
	if len(box.Points) != 2 {
		t.Fatalf("expected 2 box points, got %d", len(box.Points))
	}
	if !box.OccurredAt.Equal(start.Add(2 * time.Minute)) {
		t.Fatalf("expected latest timestamp, got %v", box.OccurredAt)
	}
	if box.EventID == "" {
		t.Fatal("expected generated event id")
	}

	sample := events[1]
	if sample.SampleID != "SAMPLE-0001" || len(sample.Points) != 1 {
		t.Fatalf("unexpected second event %+v", sample)
	}
	if sample.EventID == box.EventID {
		t.Fatal("expected distinct event ids")
	}
}

func TestGroupEventsEmpty(t *testing.T) {
	if events := GroupEvents(nil); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
