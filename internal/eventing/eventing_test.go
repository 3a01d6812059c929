package eventing

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/eventing/eventbus"
)

type shipmentDeparted struct {
	BoxID      string    `json:"box_id"`
	SampleID   string    `json:"sample_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Origin     string    `json:"origin"`
}

type memOutbox struct {
	pending  []OutboxRecord
	inserted []Envelope
	sent     []string
	failed   []string
}

func (m *memOutbox) Insert(_ context.Context, env Envelope) (string, error) {
	m.inserted = append(m.inserted, env)
	return env.EventID, nil
}

func (m *memOutbox) InsertTx(ctx context.Context, _ *sql.Tx, env Envelope) (string, error) {
	return m.Insert(ctx, env)
}

func (m *memOutbox) ListPending(_ context.Context, limit int) ([]OutboxRecord, error) {
	if limit > len(m.pending) {
		limit = len(m.pending)
	}
	return m.pending[:limit], nil
}

func (m *memOutbox) MarkSent(_ context.Context, id string) error {
	m.sent = append(m.sent, id)
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id string) error {
	m.failed = append(m.failed, id)
	return nil
}

type memDLQ struct {
	failures []Envelope
}

func (m *memDLQ) RecordFailure(_ context.Context, env Envelope, _ error) error {
	m.failures = append(m.failures, env)
	return nil
}

type memProcessed struct {
	seen map[string]bool
}

func newMemProcessed() *memProcessed {
	return &memProcessed{seen: make(map[string]bool)}
}

func (m *memProcessed) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	return m.seen[eventID+"|"+consumerName], nil
}

func (m *memProcessed) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	m.seen[eventID+"|"+consumerName] = true
	return nil
}

func TestBuildEnvelopeExtractsSubjects(t *testing.T) {
	occurred := time.Date(2025, 4, 12, 9, 30, 0, 0, time.UTC)
	event := shipmentDeparted{BoxID: "BOX-0001", SampleID: "SAMPLE-0001", OccurredAt: occurred, Origin: "Berlin"}

	env, err := BuildEnvelope(event, Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.EventType != "eventing.shipmentDeparted" {
		t.Fatalf("unexpected event type %q", env.EventType)
	}
	if env.BoxID != "BOX-0001" || env.SampleID != "SAMPLE-0001" {
		t.Fatalf("expected subjects extracted from payload, got box=%q sample=%q", env.BoxID, env.SampleID)
	}
	if !env.OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred_at %v, got %v", occurred, env.OccurredAt)
	}
	if env.EventID == "" {
		t.Fatal("expected generated event id")
	}
	if env.CorrelationID != env.EventID {
		t.Fatalf("expected correlation id to default to event id, got %q", env.CorrelationID)
	}
	if env.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", env.SchemaVersion)
	}
}

func TestBuildEnvelopeMetaOverrides(t *testing.T) {
	event := shipmentDeparted{BoxID: "BOX-0001"}
	meta := Meta{EventID: "evt-1", CorrelationID: "corr-9", BoxID: "BOX-0009", SchemaVersion: 3}

	env, err := BuildEnvelope(event, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.EventID != "evt-1" || env.CorrelationID != "corr-9" {
		t.Fatalf("expected meta ids, got event=%q corr=%q", env.EventID, env.CorrelationID)
	}
	if env.BoxID != "BOX-0009" {
		t.Fatalf("expected meta box id to win, got %q", env.BoxID)
	}
	if env.SchemaVersion != 3 {
		t.Fatalf("expected schema version 3, got %d", env.SchemaVersion)
	}
}

func TestRegistryDecodeRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Register(shipmentDeparted{})

	env, err := BuildEnvelope(shipmentDeparted{BoxID: "BOX-0002", Origin: "Madrid"}, Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := registry.DecodePayload(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	departed, ok := decoded.(shipmentDeparted)
	if !ok {
		t.Fatalf("unexpected decoded type %T", decoded)
	}
	if departed.BoxID != "BOX-0002" || departed.Origin != "Madrid" {
		t.Fatalf("unexpected decoded payload %+v", departed)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.DecodePayload(Envelope{EventType: "eventing.neverRegistered"}); err == nil {
		t.Fatal("expected error for unregistered event type")
	}
}

func TestDispatcherDeliversAndMarksSent(t *testing.T) {
	registry := NewRegistry()
	registry.Register(shipmentDeparted{})

	env, err := BuildEnvelope(shipmentDeparted{BoxID: "BOX-0003"}, Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outbox := &memOutbox{pending: []OutboxRecord{{ID: "rec-1", Envelope: env}}}
	dlq := &memDLQ{}
	bus := eventbus.NewInMemoryBus()

	var gotBox string
	var gotEventID string
	bus.Subscribe(eventbus.EventTypeOf[shipmentDeparted](), func(ctx context.Context, event any) error {
		departed := event.(shipmentDeparted)
		gotBox = departed.BoxID
		if got, ok := EnvelopeFromContext(ctx); ok {
			gotEventID = got.EventID
		}
		return nil
	})

	result, err := NewDispatcher(bus, outbox, registry, dlq).Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 || result.Failed != 0 || result.DLQ != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(outbox.sent) != 1 || outbox.sent[0] != "rec-1" {
		t.Fatalf("expected rec-1 marked sent, got %v", outbox.sent)
	}
	if gotBox != "BOX-0003" {
		t.Fatalf("expected handler to receive event, got box %q", gotBox)
	}
	if gotEventID != env.EventID {
		t.Fatalf("expected envelope on handler context, got %q", gotEventID)
	}
}

func TestDispatcherRoutesUndecodableToDLQ(t *testing.T) {
	registry := NewRegistry()
	outbox := &memOutbox{pending: []OutboxRecord{{
		ID:       "rec-2",
		Envelope: Envelope{EventID: "evt-2", EventType: "eventing.neverRegistered", Payload: []byte(`{}`)},
	}}}
	dlq := &memDLQ{}

	result, err := NewDispatcher(eventbus.NewInMemoryBus(), outbox, registry, dlq).Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 || result.DLQ != 1 || result.Sent != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(outbox.failed) != 1 || outbox.failed[0] != "rec-2" {
		t.Fatalf("expected rec-2 marked failed, got %v", outbox.failed)
	}
	if len(dlq.failures) != 1 || dlq.failures[0].EventID != "evt-2" {
		t.Fatalf("expected evt-2 in dead letter store, got %v", dlq.failures)
	}
}

func TestPublisherInsertsEnvelope(t *testing.T) {
	outbox := &memOutbox{}
	publisher := NewPublisher(outbox, nil, nil)

	if err := publisher.Publish(context.Background(), shipmentDeparted{BoxID: "BOX-0004"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outbox.inserted) != 1 {
		t.Fatalf("expected one envelope inserted, got %d", len(outbox.inserted))
	}
	if outbox.inserted[0].EventType != "eventing.shipmentDeparted" {
		t.Fatalf("unexpected event type %q", outbox.inserted[0].EventType)
	}
	if outbox.inserted[0].BoxID != "BOX-0004" {
		t.Fatalf("unexpected box id %q", outbox.inserted[0].BoxID)
	}
}

func TestWrapHandlerSkipsProcessedEvents(t *testing.T) {
	store := newMemProcessed()
	calls := 0
	wrapped := WrapHandler("alerts", func(context.Context, any) error {
		calls++
		return nil
	}, store)

	ctx := WithEnvelope(context.Background(), Envelope{EventID: "evt-3"})
	if err := wrapped(ctx, shipmentDeparted{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := wrapped(ctx, shipmentDeparted{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
}
