package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	alertapp "github.com/HendrickFS/bio-supply-twin/internal/alerts/application"
	alertrepo "github.com/HendrickFS/bio-supply-twin/internal/alerts/infrastructure/postgres"
	alertsinterfaces "github.com/HendrickFS/bio-supply-twin/internal/alerts/interfaces"
	alerthttp "github.com/HendrickFS/bio-supply-twin/internal/alerts/interfaces/http"
	alertnotify "github.com/HendrickFS/bio-supply-twin/internal/alerts/notify"
	analyticsapp "github.com/HendrickFS/bio-supply-twin/internal/analytics/application"
	apihttp "github.com/HendrickFS/bio-supply-twin/internal/api/http"
	"github.com/HendrickFS/bio-supply-twin/internal/audit"
	"github.com/HendrickFS/bio-supply-twin/internal/cache"
	"github.com/HendrickFS/bio-supply-twin/internal/eventing"
	"github.com/HendrickFS/bio-supply-twin/internal/eventing/eventbus"
	eventingrepo "github.com/HendrickFS/bio-supply-twin/internal/eventing/infrastructure/postgres"
	masterdataapp "github.com/HendrickFS/bio-supply-twin/internal/masterdata/application"
	masterdatarepo "github.com/HendrickFS/bio-supply-twin/internal/masterdata/infrastructure/postgres"
	masterdatamqtt "github.com/HendrickFS/bio-supply-twin/internal/masterdata/interfaces/mqtt"
	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
	shipmentsapp "github.com/HendrickFS/bio-supply-twin/internal/shipments/application"
	shipmentevents "github.com/HendrickFS/bio-supply-twin/internal/shipments/events"
	shipmenthttp "github.com/HendrickFS/bio-supply-twin/internal/shipments/interfaces/http"
	"github.com/HendrickFS/bio-supply-twin/internal/sla"
	telemetryapp "github.com/HendrickFS/bio-supply-twin/internal/telemetry/application"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"
	telemetryrepo "github.com/HendrickFS/bio-supply-twin/internal/telemetry/infrastructure/postgres"
	httpingest "github.com/HendrickFS/bio-supply-twin/internal/telemetry/interfaces/httpingest"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	cacheAddr := cfg.RedisAddr
	if cfg.CacheDisabled {
		cacheAddr = ""
	}
	cacheClient := cache.New(cacheAddr, cfg.RedisDB, logger)
	defer cacheClient.Close()

	boxRepo := masterdatarepo.NewBoxRepository(db)
	sampleRepo := masterdatarepo.NewSampleRepository(db)
	readingRepo := telemetryrepo.NewReadingRepository(db)
	readingQuery := telemetryrepo.NewReadingQuery(db)
	alertRepo := alertrepo.NewAlertRepository(db)
	slaRepo := sla.NewRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(telemetryevents.TelemetryRecorded{})
	registry.Register(shipmentevents.ShipmentProvisioned{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	profile, err := sla.LoadProfile()
	if err != nil {
		logger.Fatalf("sla profile error: %v", err)
	}
	bandResolver := sla.NewResolver(profile, slaRepo)

	broker := alerthttp.NewSSEBroker()
	alertNotifiers := []alertapp.AlertNotifier{broker}
	if cfg.AlertWebhookURL != "" {
		channel, err := alertnotify.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		var template *alertnotify.Template
		if cfg.AlertNotifyTemplate != "" {
			template, err = alertnotify.NewTemplate(cfg.AlertNotifyTemplate)
			if err != nil {
				logger.Fatalf("notify template error: %v", err)
			}
		}
		notifyOpts := []alertnotify.Option{}
		if cfg.AlertNotifyCooldown > 0 {
			notifyOpts = append(notifyOpts, alertnotify.WithCooldown(cfg.AlertNotifyCooldown))
		}
		if cfg.AlertNotifyDedupeWindow > 0 {
			notifyOpts = append(notifyOpts, alertnotify.WithDedupeWindow(cfg.AlertNotifyDedupeWindow))
		}
		webhookNotifier, err := alertnotify.NewNotifier(channel, template, notifyOpts...)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		alertNotifiers = append(alertNotifiers, webhookNotifier)
	}

	monitor, err := alertapp.NewMonitor(alertRepo, bandResolver,
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(alertNotifiers...)),
		alertapp.WithStaleAfter(cfg.AlertStaleAfter),
	)
	if err != nil {
		logger.Fatalf("alert monitor error: %v", err)
	}

	alertConsumer, err := alertsinterfaces.NewTelemetryRecordedConsumer(monitor)
	if err != nil {
		logger.Fatalf("alert consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[telemetryevents.TelemetryRecorded](), "alerts.monitor", func(ctx context.Context, event any) error {
		evt, ok := event.(telemetryevents.TelemetryRecorded)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return alertConsumer.Consume(ctx, evt)
	}, processedStore)

	twinRefresher, err := masterdataapp.NewTwinRefresher(boxRepo, sampleRepo)
	if err != nil {
		logger.Fatalf("twin refresher error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[telemetryevents.TelemetryRecorded](), "masterdata.twin", func(ctx context.Context, event any) error {
		evt, ok := event.(telemetryevents.TelemetryRecorded)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return twinRefresher.HandleTelemetryRecorded(ctx, evt)
	}, processedStore)

	recorder, err := telemetryapp.NewRecorder(db, readingRepo, publisher)
	if err != nil {
		logger.Fatalf("telemetry recorder error: %v", err)
	}
	ingestHandler, err := httpingest.NewHandler(recorder, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	var mqttConsumer *masterdatamqtt.Consumer
	if cfg.MQTTBrokerURL != "" {
		mqttConsumer, err = masterdatamqtt.NewConsumer(cfg.MQTTBrokerURL, cfg.MQTTClientID, boxRepo, sampleRepo, logger)
		if err != nil {
			logger.Fatalf("mqtt consumer error: %v", err)
		}
		if err := mqttConsumer.Start(); err != nil {
			logger.Printf("mqtt connect failed, continuing with http ingest only: %v", err)
			mqttConsumer = nil
		}
	}

	shipmentService, err := shipmentsapp.NewService(db, publisher)
	if err != nil {
		logger.Fatalf("shipments service error: %v", err)
	}
	shipmentHandler, err := shipmenthttp.NewHandler(shipmentService, auditRepo)
	if err != nil {
		logger.Fatalf("shipments handler error: %v", err)
	}

	analyticsService, err := analyticsapp.NewService(readingQuery, slaRepo, analyticsapp.WithCache(cacheClient))
	if err != nil {
		logger.Fatalf("analytics service error: %v", err)
	}

	alertHandler, err := alerthttp.NewHandler(monitor)
	if err != nil {
		logger.Fatalf("alerts handler error: %v", err)
	}
	streamHandler := alerthttp.NewStreamHandler(broker)

	infoHandler := apihttp.NewServiceInfoHandler(cfg.Version)
	healthHandler := apihttp.NewHealthHandler(db, cacheClient)
	boxesHandler := apihttp.NewBoxesHandler(boxRepo, sampleRepo, cacheClient)
	samplesHandler := apihttp.NewSamplesHandler(sampleRepo, cacheClient)
	telemetryHandler := apihttp.NewTelemetryHandler(readingQuery)
	slaHandler := apihttp.NewSLAHandler(slaRepo, cacheClient, auditRepo)
	statsHandler := apihttp.NewStatsHandler(boxRepo, sampleRepo, readingQuery, alertRepo, cacheClient)
	cacheAdminHandler := apihttp.NewCacheAdminHandler(cacheClient, auditRepo)
	analyticsHandler := apihttp.NewAnalyticsHandler(analyticsService)
	exportsHandler := apihttp.NewExportsHandler(analyticsService, readingQuery)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := alertapp.NewStaleSweeper(boxRepo, monitor, cfg.AlertSweepInterval, logger)
	go sweeper.Start(ctx)

	go func() {
		ticker := time.NewTicker(cfg.OutboxPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := dispatcher.Dispatch(ctx, 50); err != nil {
					logger.Printf("outbox dispatch error: %v", err)
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", infoHandler)
	mux.Handle("/healthz", healthHandler)
	mux.Handle("/api/v1/boxes", boxesHandler)
	mux.Handle("/api/v1/boxes/", boxesHandler)
	mux.Handle("/api/v1/samples", samplesHandler)
	mux.Handle("/api/v1/samples/", samplesHandler)
	mux.Handle("/api/v1/telemetry", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ingestHandler.ServeHTTP(w, r)
			return
		}
		telemetryHandler.ServeHTTP(w, r)
	}))
	mux.Handle("/api/v1/sla", slaHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/alerts/stream", streamHandler)
	mux.Handle("/api/v1/stats", statsHandler)
	mux.Handle("/api/v1/analytics/", analyticsHandler)
	mux.Handle("/api/v1/cache", cacheAdminHandler)
	mux.Handle("/api/v1/cache/", cacheAdminHandler)
	mux.Handle("/api/v1/shipments", shipmentHandler)
	mux.Handle("/api/v1/exports/", exportsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	if mqttConsumer != nil {
		mqttConsumer.Close()
	}
	logger.Printf("shutdown complete")
}

type config struct {
	DatabaseURL             string
	HTTPAddr                string
	Version                 string
	RedisAddr               string
	RedisDB                 int
	CacheDisabled           bool
	MQTTBrokerURL           string
	MQTTClientID            string
	AlertWebhookURL         string
	AlertNotifyTemplate     string
	AlertNotifyCooldown     time.Duration
	AlertNotifyDedupeWindow time.Duration
	AlertStaleAfter         time.Duration
	AlertSweepInterval      time.Duration
	OutboxPollInterval      time.Duration
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := config{
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8001"),
		Version:                 getenvDefault("SERVICE_VERSION", "1.0.0"),
		RedisAddr:               getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:                 getenvIntDefault("REDIS_DB", 0),
		CacheDisabled:           getenvBoolDefault("CACHE_DISABLED", false),
		MQTTBrokerURL:           getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:            getenvDefault("MQTT_CLIENT_ID", "bio-supply-twin"),
		AlertWebhookURL:         getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate:     getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertNotifyCooldown:     getenvDuration("ALERT_NOTIFY_COOLDOWN", 0),
		AlertNotifyDedupeWindow: getenvDuration("ALERT_NOTIFY_DEDUP_WINDOW", 0),
		AlertStaleAfter:         getenvDuration("ALERT_STALE_AFTER", 10*time.Minute),
		AlertSweepInterval:      getenvDuration("ALERT_SWEEP_INTERVAL", time.Minute),
		OutboxPollInterval:      getenvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
