// Package masterdata holds the transport box and sample twin models.
package masterdata

import (
	"context"
	"errors"
	"time"
)

// DefaultBoxID receives samples reported before their box is known.
const DefaultBoxID = "DEFAULT-BOX"

// TransportBox mirrors the latest reported state of a physical container.
type TransportBox struct {
	ID          string    `json:"box_id"`
	Geolocation string    `json:"geolocation"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// Validate checks box invariants.
func (b TransportBox) Validate() error {
	if b.ID == "" {
		return errors.New("box: empty id")
	}
	return nil
}

// BoxRepository manages transport box persistence.
type BoxRepository interface {
	Get(ctx context.Context, id string) (*TransportBox, error)
	List(ctx context.Context) ([]TransportBox, error)
	Save(ctx context.Context, box *TransportBox) error
	Count(ctx context.Context) (int64, error)
}
