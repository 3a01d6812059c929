package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type latLng struct {
	Lat float64
	Lng float64
}

// cities a simulated courier can travel between.
var cities = map[string]latLng{
	"Boston":        {42.3601, -71.0589},
	"New York":      {40.7128, -74.0060},
	"Philadelphia":  {39.9526, -75.1652},
	"Washington DC": {38.9072, -77.0369},
	"Chicago":       {41.8781, -87.6298},
	"Detroit":       {42.3314, -83.0458},
	"Denver":        {39.7392, -104.9903},
	"San Francisco": {37.7749, -122.4194},
	"Los Angeles":   {34.0522, -118.2437},
	"Seattle":       {47.6062, -122.3321},
	"Portland":      {45.5152, -122.6784},
	"Miami":         {25.7617, -80.1918},
	"Atlanta":       {33.7490, -84.3880},
	"Dallas":        {32.7767, -96.7970},
	"Houston":       {29.7604, -95.3698},
}

var predefinedRoutes = map[string][]string{
	"east_coast":    {"Boston", "New York", "Philadelphia", "Washington DC"},
	"west_coast":    {"Seattle", "Portland", "San Francisco", "Los Angeles"},
	"midwest":       {"Chicago", "Detroit", "New York"},
	"south":         {"Miami", "Atlanta", "Dallas", "Houston"},
	"cross_country": {"New York", "Chicago", "Denver", "San Francisco"},
}

type config struct {
	box        string
	route      string
	predefined string
	interval   time.Duration
	waypoints  int
	jitter     float64
	baseURL    string
	mqttURL    string
	listCities bool
}

func main() {
	cfg := parseConfig()
	if cfg.listCities {
		printCities()
		return
	}
	if cfg.box == "" {
		log.Fatal("-box is required")
	}
	if cfg.waypoints < 1 {
		log.Fatal("-waypoints must be >= 1")
	}

	stops, err := resolveRoute(cfg)
	if err != nil {
		log.Fatalf("resolve route: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := &simulator{
		box:     cfg.box,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(cfg.baseURL, "/"),
		jitter:  cfg.jitter,
	}

	if cfg.mqttURL != "" {
		options := mqtt.NewClientOptions().
			AddBroker(cfg.mqttURL).
			SetClientID("bio-supply-simulate-" + cfg.box).
			SetAutoReconnect(true)
		sim.mqtt = mqtt.NewClient(options)
		if token := sim.mqtt.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt connect failed, twin updates disabled: %v", token.Error())
			sim.mqtt = nil
		}
	}

	if err := sim.run(ctx, stops, cfg.waypoints, cfg.interval); err != nil {
		log.Fatalf("simulate: %v", err)
	}
	if sim.mqtt != nil {
		sim.mqtt.Disconnect(250)
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.box, "box", envOrDefault("SIM_BOX", ""), "box id to move along the route")
	flag.StringVar(&cfg.route, "route", "", "route as 'City1->City2->City3'")
	flag.StringVar(&cfg.predefined, "predefined", "", "use a predefined route (east_coast, west_coast, midwest, south, cross_country)")
	flag.DurationVar(&cfg.interval, "interval", 5*time.Second, "delay between waypoints")
	flag.IntVar(&cfg.waypoints, "waypoints", 4, "waypoints per route segment")
	flag.Float64Var(&cfg.jitter, "jitter", 0.5, "temperature jitter amplitude in degrees C")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", "http://localhost:8001"), "ingest API base URL")
	flag.StringVar(&cfg.mqttURL, "mqtt-url", envOrDefault("MQTT_BROKER_URL", "tcp://localhost:1883"), "MQTT broker URL for twin updates, empty disables")
	flag.BoolVar(&cfg.listCities, "list-cities", false, "list known cities and routes, then exit")
	flag.Parse()
	return cfg
}

func printCities() {
	names := make([]string, 0, len(cities))
	for name := range cities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pos := cities[name]
		fmt.Printf("%-16s %.4f,%.4f\n", name, pos.Lat, pos.Lng)
	}
	fmt.Println()
	for name, stops := range predefinedRoutes {
		fmt.Printf("%-16s %s\n", name, strings.Join(stops, " -> "))
	}
}

func resolveRoute(cfg config) ([]string, error) {
	var stops []string
	switch {
	case cfg.route != "":
		for _, part := range strings.Split(cfg.route, "->") {
			stops = append(stops, strings.TrimSpace(part))
		}
	case cfg.predefined != "":
		preset, ok := predefinedRoutes[cfg.predefined]
		if !ok {
			return nil, fmt.Errorf("unknown predefined route %q", cfg.predefined)
		}
		stops = preset
	default:
		return nil, fmt.Errorf("-route or -predefined is required")
	}

	if len(stops) < 2 {
		return nil, fmt.Errorf("route needs at least 2 cities")
	}
	for _, name := range stops {
		if _, ok := cities[name]; !ok {
			return nil, fmt.Errorf("unknown city %q, use -list-cities", name)
		}
	}
	return stops, nil
}

type simulator struct {
	box     string
	client  *http.Client
	baseURL string
	mqtt    mqtt.Client
	jitter  float64
}

// run walks the route segment by segment, reporting a reading at each
// interpolated waypoint. Ambient conditions drift slowly: the base
// temperature random-walks inside the safe band while the reported value
// adds jitter and is clamped to [-5, 15]; humidity stays within 35..65.
func (s *simulator) run(ctx context.Context, stops []string, waypointsPerSegment int, interval time.Duration) error {
	total := 0.0
	for i := 0; i < len(stops)-1; i++ {
		from, to := cities[stops[i]], cities[stops[i+1]]
		km := haversineKm(from, to)
		total += km
		log.Printf("segment %s -> %s: %.0f km", stops[i], stops[i+1], km)
	}
	totalWaypoints := (len(stops) - 1) * (waypointsPerSegment + 1)
	log.Printf("route %s, %.0f km, %d waypoints, interval %s", strings.Join(stops, " -> "), total, totalWaypoints, interval)

	baseTemp := 3.0 + rand.Float64()*4.0
	count := 0

	for seg := 0; seg < len(stops)-1; seg++ {
		from, to := cities[stops[seg]], cities[stops[seg+1]]
		for wp := 0; wp <= waypointsPerSegment; wp++ {
			count++
			ratio := float64(wp) / float64(waypointsPerSegment)
			lat := from.Lat + (to.Lat-from.Lat)*ratio
			lng := from.Lng + (to.Lng-from.Lng)*ratio

			temperature := clamp(baseTemp+(rand.Float64()*2-1)*s.jitter, -5, 15)
			humidity := 35 + rand.Float64()*30
			baseTemp = clamp(baseTemp+(rand.Float64()*0.6-0.3), 2, 8)

			status := "in_transit"
			switch count {
			case 1:
				status = "active"
			case totalWaypoints:
				status = "delivered"
			}

			geo := fmt.Sprintf("%.4f,%.4f", lat, lng)
			if err := s.sendReading(ctx, geo, temperature, humidity); err != nil {
				log.Printf("send reading: %v", err)
			}
			s.publishTwinUpdate(geo, temperature, humidity, status)

			log.Printf("waypoint %d/%d %s %.1fC %.0f%% %s", count, totalWaypoints, geo, temperature, humidity, status)

			if count == totalWaypoints {
				break
			}
			select {
			case <-ctx.Done():
				log.Printf("interrupted at waypoint %d/%d", count, totalWaypoints)
				return nil
			case <-time.After(interval):
			}
		}
	}

	log.Printf("journey complete, %s arrived at %s", s.box, stops[len(stops)-1])
	return nil
}

func (s *simulator) sendReading(ctx context.Context, geo string, temperature, humidity float64) error {
	body := map[string]any{
		"box_id":      s.box,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"temperature": round2(temperature),
		"humidity":    round2(humidity),
		"geolocation": geo,
	}
	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/telemetry", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest: http %d", resp.StatusCode)
	}
	return nil
}

func (s *simulator) publishTwinUpdate(geo string, temperature, humidity float64, status string) {
	if s.mqtt == nil {
		return
	}
	update := map[string]any{
		"geolocation": geo,
		"temperature": round2(temperature),
		"humidity":    round2(humidity),
		"status":      status,
	}
	payload, _ := json.Marshal(update)
	topic := "bio_supply/updates/box/" + s.box
	if token := s.mqtt.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("mqtt publish: %v", token.Error())
	}
}

func haversineKm(a, b latLng) float64 {
	const earthRadiusKm = 6371
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
