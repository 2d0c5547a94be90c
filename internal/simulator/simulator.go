// Package simulator emits synthetic device readings over MQTT or HTTP.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"climalog/internal/modules/readings/types"
)

// Reading is the device wire format: timestamp in unix milliseconds.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	DeviceID    string  `json:"deviceId"`
	Timestamp   int64   `json:"timestamp"`
}

// Payload is the ingestion body the server decodes, with the timestamp as a
// Unix millisecond number.
func (r Reading) Payload() types.Payload {
	temperature, humidity, deviceID := r.Temperature, r.Humidity, r.DeviceID
	return types.Payload{
		Temperature: &temperature,
		Humidity:    &humidity,
		DeviceID:    &deviceID,
		Timestamp:   json.RawMessage(strconv.FormatInt(r.Timestamp, 10)),
	}
}

type Config struct {
	Mode     string
	DeviceID string
	Interval time.Duration
	// Count stops the run after that many readings; 0 runs until cancelled.
	Count  int
	APIURL string
}

func LoadFromEnv() (Config, error) {
	mode := strings.TrimSpace(os.Getenv("SIM_MODE"))
	if mode == "" {
		mode = "mqtt"
	}
	switch mode {
	case "mqtt", "http":
	default:
		return Config{}, fmt.Errorf("invalid SIM_MODE %q (allowed: mqtt, http)", mode)
	}

	deviceID := strings.TrimSpace(os.Getenv("SIM_DEVICE_ID"))
	if deviceID == "" {
		deviceID = "sim-" + uuid.NewString()[:8]
	}

	intervalStr := strings.TrimSpace(os.Getenv("SIM_INTERVAL"))
	if intervalStr == "" {
		intervalStr = "5s"
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil || interval <= 0 {
		return Config{}, fmt.Errorf("invalid SIM_INTERVAL %q", intervalStr)
	}

	count := 0
	if s := strings.TrimSpace(os.Getenv("SIM_COUNT")); s != "" {
		count, err = strconv.Atoi(s)
		if err != nil || count < 0 {
			return Config{}, fmt.Errorf("invalid SIM_COUNT %q", s)
		}
	}

	apiURL := strings.TrimSpace(os.Getenv("SIM_API_URL"))
	if apiURL == "" {
		apiURL = "http://localhost:5000"
	}

	return Config{
		Mode:     mode,
		DeviceID: deviceID,
		Interval: interval,
		Count:    count,
		APIURL:   strings.TrimRight(apiURL, "/"),
	}, nil
}

// Walk is a bounded random walk around indoor conditions.
type Walk struct {
	rng         *rand.Rand
	temperature float64
	humidity    float64
}

func NewWalk(seed uint64) *Walk {
	return &Walk{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		temperature: 22,
		humidity:    50,
	}
}

// Next steps the walk. Values stay inside the ranges the server accepts.
func (w *Walk) Next() (temperature, humidity float64) {
	w.temperature = clamp(w.temperature+(w.rng.Float64()-0.5)*0.6, 0, 50)
	w.humidity = clamp(w.humidity+(w.rng.Float64()-0.5)*2, 20, 90)
	return round1(w.temperature), round1(w.humidity)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Sink delivers one reading.
type Sink interface {
	Send(ctx context.Context, r Reading) error
}

// Run sends a reading every cfg.Interval until ctx ends or cfg.Count is
// reached. Send failures are logged and the run continues.
func Run(ctx context.Context, cfg Config, sink Sink, walk *Walk, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sent := 0
	for {
		temperature, humidity := walk.Next()
		r := Reading{
			Temperature: temperature,
			Humidity:    humidity,
			DeviceID:    cfg.DeviceID,
			Timestamp:   time.Now().UnixMilli(),
		}
		if err := sink.Send(ctx, r); err != nil {
			logger.Warn("send reading failed", "device_id", r.DeviceID, "error", err)
		} else {
			sent++
			logger.Info("reading sent", "device_id", r.DeviceID, "temperature", r.Temperature, "humidity", r.Humidity)
		}
		if cfg.Count > 0 && sent >= cfg.Count {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
