package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	masterdatarepo "github.com/HendrickFS/bio-supply-twin/internal/masterdata/infrastructure/postgres"
	"github.com/HendrickFS/bio-supply-twin/internal/sla"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
	telemetryrepo "github.com/HendrickFS/bio-supply-twin/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

const insertBatchSize = 500

type config struct {
	dsn           string
	readingsCount int
	readingsDays  int
	skipReadings  bool
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	boxes := masterdatarepo.NewBoxRepository(db)
	samples := masterdatarepo.NewSampleRepository(db)
	configs := sla.NewRepository(db)
	readings := telemetryrepo.NewReadingRepository(db)

	if err := seedBoxes(ctx, boxes); err != nil {
		log.Fatalf("seed boxes: %v", err)
	}
	if err := seedSamples(ctx, samples); err != nil {
		log.Fatalf("seed samples: %v", err)
	}
	if err := seedSLA(ctx, configs); err != nil {
		log.Fatalf("seed sla config: %v", err)
	}

	if !cfg.skipReadings && cfg.readingsCount > 0 {
		log.Printf("seeding synthetic readings: count=%d days=%d", cfg.readingsCount, cfg.readingsDays)
		if err := seedReadings(ctx, readings, cfg.readingsCount, cfg.readingsDays); err != nil {
			log.Fatalf("seed readings: %v", err)
		}
	}

	log.Printf("seed completed")
}

func parseConfig() config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.IntVar(&cfg.readingsCount, "readings", envOrInt("SEED_READINGS", 0), "number of synthetic readings to seed")
	flag.IntVar(&cfg.readingsDays, "days", envOrInt("SEED_DAYS", 7), "days the synthetic readings span")
	flag.BoolVar(&cfg.skipReadings, "skip-readings", false, "seed master data only")
	flag.Parse()
	return cfg
}

func seedBoxes(ctx context.Context, repo *masterdatarepo.BoxRepository) error {
	boxes := []*masterdata.TransportBox{
		{
			ID:          "BOX-0001",
			Geolocation: "52.5200,13.4050",
			Temperature: 4.0,
			Humidity:    50,
			Status:      "in_transit",
		},
		{
			ID:          "BOX-0002",
			Geolocation: "51.5074,-0.1278",
			Temperature: 2.5,
			Humidity:    48,
			Status:      "idle",
		},
	}
	for _, box := range boxes {
		if err := repo.Save(ctx, box); err != nil {
			return fmt.Errorf("save %s: %w", box.ID, err)
		}
		log.Printf("seeded box %s", box.ID)
	}
	return nil
}

func seedSamples(ctx context.Context, repo *masterdatarepo.SampleRepository) error {
	entries := []*masterdata.Sample{
		{
			ID:          "SAMPLE-0001",
			BoxID:       "BOX-0001",
			Name:        "Blood Sample A",
			CollectedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			Status:      "in_transit",
			Temperature: 4.0,
			Humidity:    50,
		},
		{
			ID:          "SAMPLE-0002",
			BoxID:       "BOX-0002",
			Name:        "Vaccine Batch 1",
			CollectedAt: time.Date(2025, 1, 2, 11, 30, 0, 0, time.UTC),
			Status:      "stored",
			Temperature: 2.5,
			Humidity:    48,
		},
	}
	for _, sample := range entries {
		if err := repo.Save(ctx, sample); err != nil {
			return fmt.Errorf("save %s: %w", sample.ID, err)
		}
		log.Printf("seeded sample %s", sample.ID)
	}
	return nil
}

func seedSLA(ctx context.Context, repo *sla.Repository) error {
	cfg := sla.Default(sla.DefaultName)
	if err := repo.Save(ctx, &cfg); err != nil {
		return err
	}
	log.Printf("seeded sla config %s (%.1f..%.1f C, %.0f..%.0f %%)",
		cfg.Name, cfg.TempMin, cfg.TempMax, cfg.HumidityMin, cfg.HumidityMax)
	return nil
}

// seedReadings spreads synthetic readings evenly over the requested window,
// alternating between the two seeded boxes. Values follow a slow sine wave
// around the seeded box temperatures so compliance runs see both in-range
// and excursion points.
func seedReadings(ctx context.Context, repo *telemetryrepo.ReadingRepository, count, days int) error {
	if days <= 0 {
		days = 1
	}
	end := time.Now().UTC().Truncate(time.Minute)
	start := end.AddDate(0, 0, -days)
	step := end.Sub(start) / time.Duration(count)
	if step <= 0 {
		step = time.Second
	}

	boxIDs := []string{"BOX-0001", "BOX-0002"}
	sampleIDs := []string{"SAMPLE-0001", "SAMPLE-0002"}

	batch := make([]telemetry.Reading, 0, insertBatchSize)
	inserted := 0
	for i := 0; i < count; i++ {
		pick := i % len(boxIDs)
		ts := start.Add(time.Duration(i) * step)
		phase := float64(i) / 48.0
		temperature := 5.0 + 4.0*math.Sin(phase)
		humidity := 50.0 + 10.0*math.Sin(phase/3.0)

		batch = append(batch, telemetry.Reading{
			BoxID:       boxIDs[pick],
			SampleID:    sampleIDs[pick],
			Timestamp:   ts,
			Temperature: &temperature,
			Humidity:    &humidity,
		})

		if len(batch) == insertBatchSize {
			if err := repo.InsertReadings(ctx, batch); err != nil {
				return err
			}
			inserted += len(batch)
			batch = batch[:0]
			log.Printf("seeded readings %d/%d", inserted, count)
		}
	}
	if len(batch) > 0 {
		if err := repo.InsertReadings(ctx, batch); err != nil {
			return err
		}
		inserted += len(batch)
	}
	log.Printf("seeded readings %d/%d", inserted, count)
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
