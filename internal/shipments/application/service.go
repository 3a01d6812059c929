// Package application provisions shipments, registering a transport box and
// the samples travelling in it.
package application

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/eventing"
	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	masterdatarepo "github.com/HendrickFS/bio-supply-twin/internal/masterdata/infrastructure/postgres"
	shipmentevents "github.com/HendrickFS/bio-supply-twin/internal/shipments/events"
)

// TxPublisher stages events inside the provisioning transaction.
type TxPublisher interface {
	PublishTx(ctx context.Context, tx *sql.Tx, event any) error
}

// ProvisionRequest defines the shipment provisioning payload.
type ProvisionRequest struct {
	Box     BoxInput      `json:"box"`
	Samples []SampleInput `json:"samples"`
}

// BoxInput describes the transport box to register.
type BoxInput struct {
	ID          string `json:"id"`
	Geolocation string `json:"geolocation"`
	Status      string `json:"status"`
}

// SampleInput describes one sample travelling in the box.
type SampleInput struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CollectedAt time.Time `json:"collected_at"`
	Status      string    `json:"status"`
}

// ProvisionResponse summarizes provisioning output.
type ProvisionResponse struct {
	BoxID     string   `json:"box_id"`
	SampleIDs []string `json:"sample_ids"`
}

// Service provisions shipments.
type Service struct {
	db        *sql.DB
	publisher TxPublisher
}

// NewService constructs a provisioning service. The publisher may be nil when
// no downstream consumers care about provisioning.
func NewService(db *sql.DB, publisher TxPublisher) (*Service, error) {
	if db == nil {
		return nil, errors.New("shipments: nil db")
	}
	return &Service{db: db, publisher: publisher}, nil
}

// ProvisionShipment registers the box and its samples in one transaction and
// stages a shipment.provisioned event alongside them. Missing ids are derived
// from business keys so the same request provisions the same rows.
func (s *Service) ProvisionShipment(ctx context.Context, req ProvisionRequest) (*ProvisionResponse, error) {
	if err := validateProvision(req); err != nil {
		return nil, err
	}
	applyDefaults(&req)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	boxRepo := masterdatarepo.NewBoxRepository(tx)
	sampleRepo := masterdatarepo.NewSampleRepository(tx)

	box := &masterdata.TransportBox{
		ID:          req.Box.ID,
		Geolocation: req.Box.Geolocation,
		Status:      req.Box.Status,
	}
	if err := boxRepo.Save(ctx, box); err != nil {
		return nil, err
	}

	sampleIDs := make([]string, 0, len(req.Samples))
	for _, input := range req.Samples {
		sample := &masterdata.Sample{
			ID:          input.ID,
			BoxID:       box.ID,
			Name:        input.Name,
			Description: input.Description,
			CollectedAt: input.CollectedAt,
			Status:      input.Status,
		}
		if err := sampleRepo.Save(ctx, sample); err != nil {
			return nil, err
		}
		sampleIDs = append(sampleIDs, sample.ID)
	}

	if s.publisher != nil {
		event := shipmentevents.ShipmentProvisioned{
			EventID:    eventing.NewEventID(),
			BoxID:      box.ID,
			SampleIDs:  sampleIDs,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.publisher.PublishTx(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ProvisionResponse{BoxID: box.ID, SampleIDs: sampleIDs}, nil
}

func validateProvision(req ProvisionRequest) error {
	if len(req.Samples) == 0 {
		return errors.New("shipments: samples required")
	}
	for _, sample := range req.Samples {
		if sample.ID == "" && sample.Name == "" {
			return errors.New("shipments: sample needs id or name")
		}
	}
	return nil
}

func applyDefaults(req *ProvisionRequest) {
	if req.Box.Status == "" {
		req.Box.Status = "active"
	}
	if req.Box.ID == "" {
		names := make([]string, 0, len(req.Samples))
		for _, sample := range req.Samples {
			names = append(names, sample.Name)
		}
		req.Box.ID = stableID("box", req.Box.Geolocation+"|"+strings.Join(names, "|"))
	}
	for i := range req.Samples {
		if req.Samples[i].Status == "" {
			req.Samples[i].Status = "collected"
		}
		if req.Samples[i].CollectedAt.IsZero() {
			req.Samples[i].CollectedAt = time.Now().UTC()
		}
		if req.Samples[i].ID == "" {
			req.Samples[i].ID = stableID("sample", req.Box.ID+"|"+req.Samples[i].Name)
		}
	}
}

func stableID(prefix, key string) string {
	sum := sha1.Sum([]byte(key))
	return prefix + "-" + hex.EncodeToString(sum[:8])
}
