package application

import (
	"context"
	"errors"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"
)

// TwinRefresher folds recorded telemetry into the box and sample twins so
// twin state mirrors the latest sensor report.
type TwinRefresher struct {
	boxes   masterdata.BoxRepository
	samples masterdata.SampleRepository
}

// NewTwinRefresher constructs a refresher.
func NewTwinRefresher(boxes masterdata.BoxRepository, samples masterdata.SampleRepository) (*TwinRefresher, error) {
	if boxes == nil {
		return nil, errors.New("twin refresher: nil box repository")
	}
	if samples == nil {
		return nil, errors.New("twin refresher: nil sample repository")
	}
	return &TwinRefresher{boxes: boxes, samples: samples}, nil
}

// HandleTelemetryRecorded applies the newest point of the event to the
// subject twins. Unknown subjects are created on demand.
func (t *TwinRefresher) HandleTelemetryRecorded(ctx context.Context, evt telemetryevents.TelemetryRecorded) error {
	if t == nil {
		return errors.New("twin refresher: nil refresher")
	}
	if len(evt.Points) == 0 {
		return nil
	}
	point := latestPoint(evt.Points)

	if evt.BoxID != "" {
		if err := t.refreshBox(ctx, evt.BoxID, point); err != nil {
			return err
		}
	}
	if evt.SampleID != "" {
		if err := t.refreshSample(ctx, evt.SampleID, evt.BoxID, point); err != nil {
			return err
		}
	}
	return nil
}

func (t *TwinRefresher) refreshBox(ctx context.Context, id string, point telemetryevents.RecordedPoint) error {
	box, err := t.boxes.Get(ctx, id)
	if err != nil {
		return err
	}
	if box == nil {
		box = &masterdata.TransportBox{ID: id, Status: "created_by_event"}
	}
	if point.Temperature != nil {
		box.Temperature = *point.Temperature
	}
	if point.Humidity != nil {
		box.Humidity = *point.Humidity
	}
	if point.Geolocation != "" {
		box.Geolocation = point.Geolocation
	}
	return t.boxes.Save(ctx, box)
}

func (t *TwinRefresher) refreshSample(ctx context.Context, id, boxID string, point telemetryevents.RecordedPoint) error {
	sample, err := t.samples.Get(ctx, id)
	if err != nil {
		return err
	}
	if sample == nil {
		if boxID == "" {
			boxID = masterdata.DefaultBoxID
		}
		if err := t.ensureBox(ctx, boxID); err != nil {
			return err
		}
		sample = &masterdata.Sample{ID: id, BoxID: boxID}
	}
	if point.Temperature != nil {
		sample.Temperature = *point.Temperature
	}
	if point.Humidity != nil {
		sample.Humidity = *point.Humidity
	}
	return t.samples.Save(ctx, sample)
}

func (t *TwinRefresher) ensureBox(ctx context.Context, boxID string) error {
	box, err := t.boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if box != nil {
		return nil
	}
	return t.boxes.Save(ctx, &masterdata.TransportBox{
		ID:     boxID,
		Status: "created_by_event",
	})
}

func latestPoint(points []telemetryevents.RecordedPoint) telemetryevents.RecordedPoint {
	latest := points[0]
	for _, point := range points[1:] {
		if point.Timestamp.After(latest.Timestamp) {
			latest = point
		}
	}
	return latest
}
