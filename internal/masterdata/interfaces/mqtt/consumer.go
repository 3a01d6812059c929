// Package mqtt applies twin updates published by couriers to the master data store.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
)

// DefaultTopic matches every box and sample update published by field devices.
const DefaultTopic = "bio_supply/updates/#"

const (
	defaultQOS           = 1
	defaultHandleTimeout = 10 * time.Second
	disconnectQuiesceMS  = 250
)

// Consumer subscribes to twin update topics and upserts the reported state.
type Consumer struct {
	client  mqtt.Client
	boxes   masterdata.BoxRepository
	samples masterdata.SampleRepository
	logger  *log.Logger

	topic   string
	qos     byte
	timeout time.Duration
}

// Option configures the consumer.
type Option func(*Consumer)

// WithTopic overrides the subscription filter.
func WithTopic(topic string) Option {
	return func(c *Consumer) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithQOS overrides the subscription QoS level.
func WithQOS(qos byte) Option {
	return func(c *Consumer) {
		c.qos = qos
	}
}

// WithHandleTimeout bounds the time spent persisting a single update.
func WithHandleTimeout(timeout time.Duration) Option {
	return func(c *Consumer) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewConsumer prepares an MQTT client for the given broker. The subscription
// is established by the on-connect handler so it survives reconnects.
func NewConsumer(
	brokerURL string,
	clientID string,
	boxes masterdata.BoxRepository,
	samples masterdata.SampleRepository,
	logger *log.Logger,
	opts ...Option,
) (*Consumer, error) {
	if brokerURL == "" {
		return nil, errors.New("mqtt consumer: empty broker url")
	}
	if boxes == nil {
		return nil, errors.New("mqtt consumer: nil box repository")
	}
	if samples == nil {
		return nil, errors.New("mqtt consumer: nil sample repository")
	}
	if logger == nil {
		return nil, errors.New("mqtt consumer: nil logger")
	}
	if clientID == "" {
		clientID = "bio-supply-twin"
	}

	consumer := &Consumer{
		boxes:   boxes,
		samples: samples,
		logger:  logger,
		topic:   DefaultTopic,
		qos:     defaultQOS,
		timeout: defaultHandleTimeout,
	}
	for _, opt := range opts {
		opt(consumer)
	}

	options := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("mqtt connection lost: %v", err)
	})
	options.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Printf("mqtt connected, subscribing to %s", consumer.topic)
		if token := client.Subscribe(consumer.topic, consumer.qos, consumer.onMessage); token.Wait() && token.Error() != nil {
			logger.Printf("mqtt subscribe error: topic=%s err=%v", consumer.topic, token.Error())
		}
	})

	consumer.client = mqtt.NewClient(options)
	return consumer, nil
}

// Start connects to the broker.
func (c *Consumer) Start() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt consumer: connect: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (c *Consumer) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Disconnect(disconnectQuiesceMS)
}

func (c *Consumer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	start := time.Now()
	defer func() {
		metrics.ObserveIngestLatency(metrics.SourceMQTT, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.handleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
		metrics.IncIngestError(metrics.SourceMQTT)
		c.logger.Printf("mqtt update error: topic=%s err=%v", msg.Topic(), err)
		return
	}
	metrics.AddIngestReadings(metrics.SourceMQTT, 1)
}

// handleMessage routes a single update. Expected topic shapes are
// bio_supply/updates/box/{BOX_ID} and bio_supply/updates/sample/{SAMPLE_ID}.
func (c *Consumer) handleMessage(ctx context.Context, topic string, payload []byte) error {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) < 4 || parts[3] == "" {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	switch parts[2] {
	case "box":
		return c.applyBoxUpdate(ctx, parts[3], payload)
	case "sample":
		return c.applySampleUpdate(ctx, parts[3], payload)
	default:
		return fmt.Errorf("unknown subject kind %q on topic %q", parts[2], topic)
	}
}

type boxUpdate struct {
	Geolocation *string  `json:"geolocation"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Status      *string  `json:"status"`
}

// applyBoxUpdate merges the reported fields into the box twin. Fields absent
// from the payload keep their previous values.
func (c *Consumer) applyBoxUpdate(ctx context.Context, boxID string, payload []byte) error {
	var update boxUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return fmt.Errorf("decode box update: %w", err)
	}

	box, err := c.boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if box == nil {
		box = &masterdata.TransportBox{ID: boxID}
	}
	if update.Geolocation != nil {
		box.Geolocation = *update.Geolocation
	}
	if update.Temperature != nil {
		box.Temperature = *update.Temperature
	}
	if update.Humidity != nil {
		box.Humidity = *update.Humidity
	}
	if update.Status != nil {
		box.Status = *update.Status
	}
	return c.boxes.Save(ctx, box)
}

type sampleUpdate struct {
	BoxID       string   `json:"box_id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	CollectedAt *string  `json:"collected_at"`
	Status      *string  `json:"status"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// applySampleUpdate merges the reported fields into the sample twin. Samples
// reported before their box land in the default box, created on demand.
func (c *Consumer) applySampleUpdate(ctx context.Context, sampleID string, payload []byte) error {
	var update sampleUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return fmt.Errorf("decode sample update: %w", err)
	}

	sample, err := c.samples.Get(ctx, sampleID)
	if err != nil {
		return err
	}
	if sample == nil {
		sample = &masterdata.Sample{ID: sampleID, BoxID: masterdata.DefaultBoxID}
	}
	if update.BoxID != "" {
		sample.BoxID = update.BoxID
	}
	if err := c.ensureBox(ctx, sample.BoxID); err != nil {
		return err
	}

	if update.Name != nil {
		sample.Name = *update.Name
	}
	if update.Description != nil {
		sample.Description = *update.Description
	}
	if update.CollectedAt != nil {
		if collected, err := time.Parse(time.RFC3339, *update.CollectedAt); err == nil {
			sample.CollectedAt = collected.UTC()
		}
	}
	if update.Status != nil {
		sample.Status = *update.Status
	}
	if update.Temperature != nil {
		sample.Temperature = *update.Temperature
	}
	if update.Humidity != nil {
		sample.Humidity = *update.Humidity
	}
	return c.samples.Save(ctx, sample)
}

func (c *Consumer) ensureBox(ctx context.Context, boxID string) error {
	box, err := c.boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if box != nil {
		return nil
	}
	return c.boxes.Save(ctx, &masterdata.TransportBox{
		ID:     boxID,
		Status: "created_by_event",
	})
}
