package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/eventing"
	"github.com/HendrickFS/bio-supply-twin/internal/eventing/eventbus"
	eventingrepo "github.com/HendrickFS/bio-supply-twin/internal/eventing/infrastructure/postgres"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestEventing_IdempotentConsumer(t *testing.T) {
	db := openEventingDB(t)
	defer db.Close()

	ctx := context.Background()
	clearEventingTables(ctx, db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(telemetryevents.TelemetryRecorded{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	count := 0
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[telemetryevents.TelemetryRecorded](), "consumer-a", func(ctx context.Context, event any) error {
		count++
		return nil
	}, processedStore)

	ctx = eventing.WithEventID(ctx, "evt-dup-001")

	temp := 4.2
	payload := telemetryevents.TelemetryRecorded{
		EventID: "evt-dup-001",
		BoxID:   "BOX-0001",
		Points: []telemetryevents.RecordedPoint{
			{Timestamp: time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC), Temperature: &temp},
		},
		OccurredAt: time.Date(2026, time.March, 10, 8, 0, 1, 0, time.UTC),
	}

	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}

	_, _ = dispatcher.Dispatch(ctx, 10)

	if count != 1 {
		t.Fatalf("expected handler once, got %d", count)
	}
}

func TestEventing_DLQOnFailure(t *testing.T) {
	db := openEventingDB(t)
	defer db.Close()

	ctx := context.Background()
	clearEventingTables(ctx, db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(telemetryevents.TelemetryRecorded{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	eventing.Subscribe(baseBus, eventbus.EventTypeOf[telemetryevents.TelemetryRecorded](), "consumer-fail", func(ctx context.Context, event any) error {
		return errors.New("boom")
	}, processedStore)

	payload := telemetryevents.TelemetryRecorded{
		EventID:    "evt-fail-001",
		BoxID:      "BOX-0002",
		Points:     []telemetryevents.RecordedPoint{{Timestamp: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}},
		OccurredAt: time.Date(2026, time.March, 10, 12, 0, 1, 0, time.UTC),
	}

	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish event: %v", err)
	}

	_, _ = dispatcher.Dispatch(ctx, 10)

	var dlqCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letter_events").Scan(&dlqCount); err != nil {
		t.Fatalf("count dlq: %v", err)
	}
	if dlqCount != 1 {
		t.Fatalf("expected 1 dlq record, got %d", dlqCount)
	}
}

func openEventingDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if !tableExists(db, "event_outbox") ||
		!tableExists(db, "processed_events") ||
		!tableExists(db, "dead_letter_events") {
		db.Close()
		t.Skip("missing tables; run migrations")
	}
	return db
}

func clearEventingTables(ctx context.Context, db *sql.DB) {
	_, _ = db.ExecContext(ctx, "DELETE FROM processed_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM dead_letter_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM event_outbox")
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
