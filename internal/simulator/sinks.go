package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"climalog/internal/mqtt"
)

// Publisher is satisfied by *mqtt.Publisher.
type Publisher interface {
	Publish(ctx context.Context, topic string, v any) error
}

type MQTTSink struct {
	publisher Publisher
}

func NewMQTTSink(publisher Publisher) *MQTTSink {
	return &MQTTSink{publisher: publisher}
}

func (s *MQTTSink) Send(ctx context.Context, r Reading) error {
	return s.publisher.Publish(ctx, mqtt.ReadingTopic(r.DeviceID), r.Payload())
}

type HTTPSink struct {
	client *resty.Client
}

// NewHTTPSink posts readings to baseURL + /api/v1/readings.
func NewHTTPSink(baseURL string) *HTTPSink {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPSink{client: client}
}

// errorResponse mirrors the server's JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *HTTPSink) Send(ctx context.Context, r Reading) error {
	var apiErr errorResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(r.Payload()).
		SetError(&apiErr).
		Post("/api/v1/readings")
	if err != nil {
		return fmt.Errorf("post reading: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post reading: %s: %s %s", resp.Status(), apiErr.Code, apiErr.Message)
	}
	return nil
}
