package application

import (
	"context"
	"testing"
	"time"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"
)

type memBoxRepo struct {
	boxes map[string]masterdata.TransportBox
}

func newMemBoxRepo() *memBoxRepo {
	return &memBoxRepo{boxes: make(map[string]masterdata.TransportBox)}
}

func (r *memBoxRepo) Get(_ context.Context, id string) (*masterdata.TransportBox, error) {
	box, ok := r.boxes[id]
	if !ok {
		return nil, nil
	}
	copied := box
	return &copied, nil
}

func (r *memBoxRepo) List(_ context.Context) ([]masterdata.TransportBox, error) {
	out := make([]masterdata.TransportBox, 0, len(r.boxes))
	for _, box := range r.boxes {
		out = append(out, box)
	}
	return out, nil
}

func (r *memBoxRepo) Save(_ context.Context, box *masterdata.TransportBox) error {
	if err := box.Validate(); err != nil {
		return err
	}
	box.LastUpdated = time.Now().UTC()
	r.boxes[box.ID] = *box
	return nil
}

func (r *memBoxRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.boxes)), nil
}

type memSampleRepo struct {
	samples map[string]masterdata.Sample
}

func newMemSampleRepo() *memSampleRepo {
	return &memSampleRepo{samples: make(map[string]masterdata.Sample)}
}

func (r *memSampleRepo) Get(_ context.Context, id string) (*masterdata.Sample, error) {
	sample, ok := r.samples[id]
	if !ok {
		return nil, nil
	}
	copied := sample
	return &copied, nil
}

func (r *memSampleRepo) List(_ context.Context, boxID string) ([]masterdata.Sample, error) {
	out := make([]masterdata.Sample, 0)
	for _, sample := range r.samples {
		if boxID == "" || sample.BoxID == boxID {
			out = append(out, sample)
		}
	}
	return out, nil
}

func (r *memSampleRepo) Save(_ context.Context, sample *masterdata.Sample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	sample.LastUpdated = time.Now().UTC()
	r.samples[sample.ID] = *sample
	return nil
}

func (r *memSampleRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.samples)), nil
}

func fp(v float64) *float64 { return &v }

func TestRefreshBoxAppliesLatestPoint(t *testing.T) {
	boxes := newMemBoxRepo()
	samples := newMemSampleRepo()
	boxes.boxes["BOX-0001"] = masterdata.TransportBox{
		ID: "BOX-0001", Status: "active", Geolocation: "52.52,13.405", Temperature: 4, Humidity: 50,
	}
	refresher, err := NewTwinRefresher(boxes, samples)
	if err != nil {
		t.Fatalf("new refresher: %v", err)
	}

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	evt := telemetryevents.TelemetryRecorded{
		EventID: "evt-1",
		BoxID:   "BOX-0001",
		Points: []telemetryevents.RecordedPoint{
			{Timestamp: base.Add(2 * time.Minute), Temperature: fp(6.5), Geolocation: "52.60,13.50"},
			{Timestamp: base, Temperature: fp(4.2), Humidity: fp(51)},
		},
	}
	if err := refresher.HandleTelemetryRecorded(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}

	box := boxes.boxes["BOX-0001"]
	if box.Temperature != 6.5 {
		t.Fatalf("temperature = %v, want the newest point", box.Temperature)
	}
	if box.Geolocation != "52.60,13.50" {
		t.Fatalf("geolocation = %q", box.Geolocation)
	}
	if box.Humidity != 50 {
		t.Fatalf("humidity = %v, absent metric must keep prior value", box.Humidity)
	}
	if box.Status != "active" {
		t.Fatalf("status = %q, must survive the refresh", box.Status)
	}
	if box.LastUpdated.IsZero() {
		t.Fatal("last updated not advanced")
	}
}

func TestRefreshCreatesUnknownBox(t *testing.T) {
	boxes := newMemBoxRepo()
	refresher, err := NewTwinRefresher(boxes, newMemSampleRepo())
	if err != nil {
		t.Fatalf("new refresher: %v", err)
	}

	evt := telemetryevents.TelemetryRecorded{
		EventID: "evt-2",
		BoxID:   "BOX-0404",
		Points: []telemetryevents.RecordedPoint{
			{Timestamp: time.Now().UTC(), Temperature: fp(3)},
		},
	}
	if err := refresher.HandleTelemetryRecorded(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}

	box, ok := boxes.boxes["BOX-0404"]
	if !ok {
		t.Fatal("box not created")
	}
	if box.Status != "created_by_event" || box.Temperature != 3 {
		t.Fatalf("unexpected box %+v", box)
	}
}

func TestRefreshSampleFallsBackToDefaultBox(t *testing.T) {
	boxes := newMemBoxRepo()
	samples := newMemSampleRepo()
	refresher, err := NewTwinRefresher(boxes, samples)
	if err != nil {
		t.Fatalf("new refresher: %v", err)
	}

	evt := telemetryevents.TelemetryRecorded{
		EventID:  "evt-3",
		SampleID: "SAMPLE-0042",
		Points: []telemetryevents.RecordedPoint{
			{Timestamp: time.Now().UTC(), Temperature: fp(5.5), Humidity: fp(48)},
		},
	}
	if err := refresher.HandleTelemetryRecorded(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sample, ok := samples.samples["SAMPLE-0042"]
	if !ok {
		t.Fatal("sample not created")
	}
	if sample.BoxID != masterdata.DefaultBoxID {
		t.Fatalf("box id = %q", sample.BoxID)
	}
	if sample.Temperature != 5.5 || sample.Humidity != 48 {
		t.Fatalf("unexpected sample %+v", sample)
	}
	if _, ok := boxes.boxes[masterdata.DefaultBoxID]; !ok {
		t.Fatal("default box not created")
	}
}

func TestRefreshIgnoresEmptyEvents(t *testing.T) {
	refresher, err := NewTwinRefresher(newMemBoxRepo(), newMemSampleRepo())
	if err != nil {
		t.Fatalf("new refresher: %v", err)
	}
	evt := telemetryevents.TelemetryRecorded{EventID: "evt-4", BoxID: "BOX-0001"}
	if err := refresher.HandleTelemetryRecorded(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
}
