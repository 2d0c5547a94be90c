package types

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"climalog/internal/aggregate"
	"climalog/internal/apperr"
	"climalog/internal/comfort"
)

// Accepted sensor envelope. Readings outside it are rejected, never clamped.
const (
	MinTemperature = 0.0
	MaxTemperature = 50.0
	MinHumidity    = 20.0
	MaxHumidity    = 90.0
)

type Reading struct {
	DeviceID    string    `json:"deviceId"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// Check enforces the reading invariants: non-empty device id and both values
// inside the sensor envelope. NaN is out of range.
func (r Reading) Check() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return apperr.MissingField("deviceId")
	}
	if !within(r.Temperature, MinTemperature, MaxTemperature) {
		return apperr.OutOfRange("temperature", r.Temperature, MinTemperature, MaxTemperature)
	}
	if !within(r.Humidity, MinHumidity, MaxHumidity) {
		return apperr.OutOfRange("humidity", r.Humidity, MinHumidity, MaxHumidity)
	}
	return nil
}

func within(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Payload is the ingestion body shared by HTTP and MQTT. Timestamp is kept raw
// so both an RFC 3339 string and Unix milliseconds can be accepted.
type Payload struct {
	Temperature *float64        `json:"temperature"`
	Humidity    *float64        `json:"humidity"`
	DeviceID    *string         `json:"deviceId"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
}

// ReadingView is a stored reading with its comfort classification.
type ReadingView struct {
	Reading
	Comfort *comfort.Classification `json:"comfort"`
}

type HistoryPoint struct {
	aggregate.Bucket
	Comfort *comfort.Classification `json:"comfort"`
}

type History struct {
	Range   aggregate.Range `json:"range"`
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Buckets []HistoryPoint  `json:"buckets"`
}

type Forecast struct {
	GeneratedAt time.Time `json:"generatedAt"`
	StepMinutes int       `json:"stepMinutes"`
	// Samples is the number of per-minute points the projection was fitted on.
	Samples     int       `json:"samples"`
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
}
