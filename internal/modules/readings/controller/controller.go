package controller

import (
	"context"
	"net/http"
	"time"

	"climalog/internal/modules/readings/types"
)

// ReadingService is the subset of service.Service the HTTP layer needs.
type ReadingService interface {
	Ingest(ctx context.Context, p types.Payload) (types.ReadingView, error)
	Recent(ctx context.Context, limit int) ([]types.ReadingView, error)
	Latest(ctx context.Context) (types.ReadingView, error)
	Range(ctx context.Context, from, to time.Time) ([]types.ReadingView, error)
	History(ctx context.Context, token string) (types.History, error)
	Forecast(ctx context.Context) (types.Forecast, error)
}

type ReadingsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type readingsControllerImpl struct {
	service ReadingService
	stream  http.Handler
	now     func() time.Time
}

// NewReadingsController builds the readings routes. stream serves the live
// websocket feed and may be nil.
func NewReadingsController(service ReadingService, stream http.Handler) ReadingsController {
	return &readingsControllerImpl{
		service: service,
		stream:  stream,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *readingsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/readings", c.handleCreate)
	mux.HandleFunc("GET /api/v1/readings", c.handleRecent)
	mux.HandleFunc("GET /api/v1/readings/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/readings/range", c.handleRange)
	mux.HandleFunc("GET /api/v1/readings/history", c.handleHistory)
	mux.HandleFunc("GET /api/v1/readings/ranges", c.handleRanges)
	mux.HandleFunc("GET /api/v1/readings/forecast", c.handleForecast)
	if c.stream != nil {
		mux.Handle("GET /api/v1/readings/stream", c.stream)
	}
}
