package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"climalog/internal/config"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const subscribeQoS = byte(1)

// MessageHandler processes one message. A returned error is logged; the
// message is not redelivered.
type MessageHandler func(topic string, payload []byte) error

// MQTTSubscriber is what feature modules need to attach their handler.
type MQTTSubscriber interface {
	SetMessageHandler(handler MessageHandler)
}

type Subscriber struct {
	conn
	topic   string
	handler MessageHandler
}

// NewSubscriber builds a subscriber for cfg.MQTTTopic. The handler must be set
// before Connect: the topic is (re)subscribed on every connect, and a broker
// may deliver right after SUBACK.
func NewSubscriber(cfg config.Config, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{topic: cfg.MQTTTopic}
	s.logger = logger
	s.stopCh = make(chan struct{})

	opts := newClientOptions(cfg.MQTTBroker, cfg.MQTTPort, cfg.MQTTClientID)
	// Handlers write to SQLite; do not serialise them behind paho's router.
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(_ paho.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = paho.NewClient(opts)
	return s
}

func (s *Subscriber) SetMessageHandler(handler MessageHandler) {
	s.handler = handler
}

// Connect waits for the first broker session or ctx, whichever comes first.
func (s *Subscriber) Connect(ctx context.Context) error {
	return s.connect(ctx)
}

func (s *Subscriber) subscribe() error {
	token := s.client.Subscribe(s.topic, subscribeQoS, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", subscribeQoS)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))
	if s.handler == nil {
		s.logger.Warn("mqtt message dropped, no handler", "topic", topic)
		return
	}
	if err := s.handler(topic, payload); err != nil {
		s.logger.Error("mqtt message handler failed", "topic", topic, "error", err)
	}
}

// Disconnect unsubscribes and closes the session. Safe to call more than once.
func (s *Subscriber) Disconnect() {
	s.disconnect(func() {
		s.client.Unsubscribe(s.topic).WaitTimeout(2 * time.Second)
	})
	s.logger.Info("mqtt subscriber disconnected")
}
