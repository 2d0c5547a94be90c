package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"climalog/internal/apperr"
	"climalog/internal/modules/readings/types"
)

// Validate turns an ingestion payload into a Reading. Required fields are
// checked in the order temperature, humidity, deviceId and the first missing
// one is named. A missing or null timestamp defaults to now.
func Validate(p types.Payload, now time.Time) (types.Reading, error) {
	if p.Temperature == nil {
		return types.Reading{}, apperr.MissingField("temperature")
	}
	if p.Humidity == nil {
		return types.Reading{}, apperr.MissingField("humidity")
	}
	if p.DeviceID == nil || strings.TrimSpace(*p.DeviceID) == "" {
		return types.Reading{}, apperr.MissingField("deviceId")
	}

	ts, err := parseTimestamp(p.Timestamp, now)
	if err != nil {
		return types.Reading{}, err
	}

	r := types.Reading{
		DeviceID:    strings.TrimSpace(*p.DeviceID),
		Timestamp:   ts,
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
	}
	if err := r.Check(); err != nil {
		return types.Reading{}, err
	}
	return r, nil
}

// parseTimestamp accepts an RFC 3339 string or a JSON number of Unix
// milliseconds (the device firmware's clock format).
func parseTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return now.UTC(), nil
	}

	var t time.Time
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, apperr.InvalidTimestamp(string(raw), err)
		}
		if strings.TrimSpace(s) == "" {
			return now.UTC(), nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, apperr.InvalidTimestamp(string(raw), err)
		}
		t = parsed
	default:
		ms, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return time.Time{}, apperr.InvalidTimestamp(string(raw), errors.New("expected RFC 3339 string or unix milliseconds"))
		}
		if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxUnixMillis {
			return time.Time{}, apperr.InvalidTimestamp(string(raw), errors.New("unix milliseconds out of range"))
		}
		whole, frac := math.Modf(ms)
		t = time.UnixMilli(int64(whole)).Add(time.Duration(math.Round(frac * float64(time.Millisecond))))
	}

	t = t.UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, apperr.InvalidTimestamp(string(raw), fmt.Errorf("year %d outside 0001-9999", t.Year()))
	}
	return t, nil
}

// 9999-12-31T23:59:59.999Z
const maxUnixMillis = 253402300799999
