package masterdata

import (
	"context"
	"errors"
	"time"
)

// Sample tracks a biological specimen and the sensor state reported for it.
type Sample struct {
	ID          string    `json:"sample_id"`
	BoxID       string    `json:"box_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CollectedAt time.Time `json:"collected_at"`
	Status      string    `json:"status"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	LastUpdated time.Time `json:"last_updated"`
}

// Validate checks sample invariants.
func (s Sample) Validate() error {
	if s.ID == "" {
		return errors.New("sample: empty id")
	}
	if s.BoxID == "" {
		return errors.New("sample: empty box id")
	}
	return nil
}

// SampleRepository manages sample persistence.
type SampleRepository interface {
	Get(ctx context.Context, id string) (*Sample, error)
	List(ctx context.Context, boxID string) ([]Sample, error)
	Save(ctx context.Context, sample *Sample) error
	Count(ctx context.Context) (int64, error)
}
