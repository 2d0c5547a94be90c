package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Publisher sends readings the way a device does: JSON, QoS 1, not retained.
type Publisher struct {
	conn
}

func NewPublisher(broker string, port int, clientID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{}
	p.logger = logger
	p.stopCh = make(chan struct{})

	opts := newClientOptions(broker, port, clientID)
	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", broker, "port", port)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

func (p *Publisher) Connect(ctx context.Context) error {
	return p.connect(ctx)
}

// Publish marshals v and publishes it to topic, waiting for the broker ack.
func (p *Publisher) Publish(ctx context.Context, topic string, v any) error {
	if !p.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	token := p.client.Publish(topic, subscribeQoS, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.Debug("published reading", "topic", topic, "size", len(data))
	return nil
}

func (p *Publisher) Disconnect() {
	p.disconnect(nil)
	p.logger.Info("mqtt publisher disconnected")
}
