package events

import "time"

// ShipmentProvisioned is raised after a box and its samples are registered.
type ShipmentProvisioned struct {
	EventID    string    `json:"event_id"`
	BoxID      string    `json:"box_id"`
	SampleIDs  []string  `json:"sample_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}
