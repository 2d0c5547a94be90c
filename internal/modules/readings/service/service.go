package service

import (
	"context"
	"log/slog"
	"time"

	"climalog/internal/aggregate"
	"climalog/internal/comfort"
	"climalog/internal/forecast"
	"climalog/internal/modules/readings/repository"
	"climalog/internal/modules/readings/types"
)

const (
	forecastWindow = 30 * time.Minute
	forecastSteps  = 12
)

// Broadcaster receives every reading after it is stored.
type Broadcaster interface {
	Broadcast(kind string, v any)
}

type Service struct {
	repository repository.ReadingRepository
	live       Broadcaster
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the readings use cases. live may be nil.
func NewService(repository repository.ReadingRepository, live Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repository,
		live:       live,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ingest validates and stores one reading. Validation and duplicate errors
// come back unchanged so the transport can map them.
func (s *Service) Ingest(ctx context.Context, p types.Payload) (types.ReadingView, error) {
	reading, err := Validate(p, s.now())
	if err != nil {
		return types.ReadingView{}, err
	}
	if err := s.repository.Insert(ctx, reading); err != nil {
		return types.ReadingView{}, err
	}
	view := withComfort(reading)
	if s.live != nil {
		s.live.Broadcast("reading", view)
	}
	s.logger.Debug("reading stored",
		"device_id", reading.DeviceID,
		"timestamp", reading.Timestamp,
	)
	return view, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]types.ReadingView, error) {
	readings, err := s.repository.QueryRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return withComfortAll(readings), nil
}

func (s *Service) Latest(ctx context.Context) (types.ReadingView, error) {
	reading, err := s.repository.Latest(ctx)
	if err != nil {
		return types.ReadingView{}, err
	}
	return withComfort(reading), nil
}

// Range returns raw readings in [from, to], oldest first.
func (s *Service) Range(ctx context.Context, from, to time.Time) ([]types.ReadingView, error) {
	readings, err := s.repository.QueryRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return withComfortAll(readings), nil
}

// History buckets the readings of the range ending now. An unknown token
// returns an error wrapping aggregate.ErrUnknownRange.
func (s *Service) History(ctx context.Context, token string) (types.History, error) {
	r, err := aggregate.ParseRange(token)
	if err != nil {
		return types.History{}, err
	}
	now := s.now()
	from, to := r.Window(now)
	readings, err := s.repository.QueryRange(ctx, from, to)
	if err != nil {
		return types.History{}, err
	}

	samples := make([]aggregate.Sample, len(readings))
	for i, rd := range readings {
		samples[i] = aggregate.Sample{Time: rd.Timestamp, Temperature: rd.Temperature, Humidity: rd.Humidity}
	}
	buckets, err := aggregate.Aggregate(samples, r, now)
	if err != nil {
		return types.History{}, err
	}

	points := make([]types.HistoryPoint, len(buckets))
	for i, b := range buckets {
		points[i] = types.HistoryPoint{
			Bucket:  b,
			Comfort: comfort.Classify(b.AverageTemperature, b.AverageHumidity),
		}
	}
	return types.History{Range: r, From: from, To: to, Buckets: points}, nil
}

// Forecast projects the next 12 minutes from the last 30. Only the first
// reading of each minute is used; fewer than two minutes yields empty series.
func (s *Service) Forecast(ctx context.Context) (types.Forecast, error) {
	now := s.now()
	readings, err := s.repository.QueryRange(ctx, now.Add(-forecastWindow), now)
	if err != nil {
		return types.Forecast{}, err
	}

	var temps, hums []float64
	seen := make(map[int64]bool, len(readings))
	for _, rd := range readings {
		minute := rd.Timestamp.Truncate(time.Minute).Unix()
		if seen[minute] {
			continue
		}
		seen[minute] = true
		temps = append(temps, rd.Temperature)
		hums = append(hums, rd.Humidity)
	}

	out := types.Forecast{
		GeneratedAt: now,
		StepMinutes: 1,
		Samples:     len(temps),
		Temperature: forecast.Linear(temps, forecastSteps),
		Humidity:    forecast.Linear(hums, forecastSteps),
	}
	if out.Temperature == nil {
		out.Temperature = []float64{}
		out.Humidity = []float64{}
	}
	return out, nil
}

func withComfort(r types.Reading) types.ReadingView {
	t, h := r.Temperature, r.Humidity
	return types.ReadingView{Reading: r, Comfort: comfort.Classify(&t, &h)}
}

func withComfortAll(readings []types.Reading) []types.ReadingView {
	out := make([]types.ReadingView, len(readings))
	for i, r := range readings {
		out[i] = withComfort(r)
	}
	return out
}
