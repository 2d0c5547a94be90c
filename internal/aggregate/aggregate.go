// Package aggregate buckets time-series samples into fixed-width intervals
// for charting.
//
// Every history range token maps to one (lookback, width) pair in a single
// table. Buckets start at now-lookback and step forward by width while the
// boundary is before now; each bucket is the half-open interval
// [boundary, boundary+width). A bucket with no samples reports nil averages.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultToken = "24h"
	maxBuckets   = 300
)

var ErrUnknownRange = errors.New("unknown range")

// Range is one row of the range table.
type Range struct {
	Token    string        `json:"token"`
	Label    string        `json:"label"`
	Lookback time.Duration `json:"-"`
	Width    time.Duration `json:"-"`
}

var ranges = []Range{
	{Token: "1h", Label: "Last Hour", Lookback: time.Hour, Width: 5 * time.Minute},
	{Token: "24h", Label: "Last 24 Hours", Lookback: 24 * time.Hour, Width: time.Hour},
	{Token: "7d", Label: "Last 7 Days", Lookback: 7 * 24 * time.Hour, Width: 24 * time.Hour},
	{Token: "30d", Label: "Last 30 Days", Lookback: 30 * 24 * time.Hour, Width: 24 * time.Hour},
}

// Ranges returns a copy of the range table in ascending lookback order.
func Ranges() []Range {
	out := make([]Range, len(ranges))
	copy(out, ranges)
	return out
}

// ParseRange resolves a token. An empty token yields the 24h range.
func ParseRange(token string) (Range, error) {
	if token == "" {
		token = DefaultToken
	}
	for _, r := range ranges {
		if r.Token == token {
			return r, nil
		}
	}
	return Range{}, fmt.Errorf("%w %q (allowed: 1h, 24h, 7d, 30d)", ErrUnknownRange, token)
}

// BucketCount is the number of buckets the range produces for any now.
func (r Range) BucketCount() int {
	if r.Width <= 0 {
		return 0
	}
	n := int(r.Lookback / r.Width)
	if r.Lookback%r.Width != 0 {
		n++
	}
	return n
}

// Window returns the [from, to] span a caller must load to fill every bucket.
func (r Range) Window(now time.Time) (from, to time.Time) {
	return now.Add(-r.Lookback), now
}

// Sample is one timestamped temperature/humidity pair.
type Sample struct {
	Time        time.Time
	Temperature float64
	Humidity    float64
}

// Bucket is the aggregate of all samples whose time falls in [Start, End).
type Bucket struct {
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	AverageTemperature *float64  `json:"averageTemperature"`
	AverageHumidity    *float64  `json:"averageHumidity"`
	Count              int       `json:"count"`
}

// Empty reports whether no sample was assigned to the bucket.
func (b Bucket) Empty() bool {
	return b.Count == 0
}

// Aggregate is pure and deterministic: the same sample set and now always
// produce the same buckets, whatever the input order.
func Aggregate(samples []Sample, r Range, now time.Time) ([]Bucket, error) {
	n := r.BucketCount()
	if n == 0 {
		return nil, fmt.Errorf("range %q: bucket width must be positive", r.Token)
	}
	if n > maxBuckets {
		return nil, fmt.Errorf("range %q: %d buckets exceeds limit %d", r.Token, n, maxBuckets)
	}

	start := now.Add(-r.Lookback)
	buckets := make([]Bucket, 0, n)
	for b := start; b.Before(now); b = b.Add(r.Width) {
		buckets = append(buckets, Bucket{Start: b, End: b.Add(r.Width)})
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Temperature != b.Temperature {
			return a.Temperature < b.Temperature
		}
		return a.Humidity < b.Humidity
	})

	sumT := make([]float64, len(buckets))
	sumH := make([]float64, len(buckets))
	for _, s := range sorted {
		if s.Time.Before(start) {
			continue
		}
		idx := int(s.Time.Sub(start) / r.Width)
		if idx >= len(buckets) {
			continue
		}
		sumT[idx] += s.Temperature
		sumH[idx] += s.Humidity
		buckets[idx].Count++
	}

	for i := range buckets {
		if buckets[i].Count == 0 {
			continue
		}
		avgT := sumT[i] / float64(buckets[i].Count)
		avgH := sumH[i] / float64(buckets[i].Count)
		buckets[i].AverageTemperature = &avgT
		buckets[i].AverageHumidity = &avgH
	}
	return buckets, nil
}
