package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"climalog/internal/apperr"
	"climalog/internal/modules/readings/types"
	"climalog/internal/mqtt"
)

const mqttIngestTimeout = 5 * time.Second

// RegisterMQTT routes every message on the subscribed topic through Ingest.
// Redelivered duplicates are expected under QoS 1 and only logged at debug;
// invalid payloads are logged and dropped. Only storage failures reach the
// subscriber as errors.
func (s *Service) RegisterMQTT(subscriber mqtt.MQTTSubscriber) {
	subscriber.SetMessageHandler(s.handleMessage)
}

func (s *Service) handleMessage(topic string, payload []byte) error {
	var p types.Payload
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&p); err != nil {
		s.logger.Warn("malformed reading payload",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), mqttIngestTimeout)
	defer cancel()

	view, err := s.Ingest(ctx, p)
	switch {
	case err == nil:
		s.logger.Debug("stored mqtt reading", "topic", topic, "device_id", view.DeviceID)
		return nil
	case errors.Is(err, apperr.ErrDuplicateKey):
		s.logger.Debug("duplicate mqtt reading ignored", "topic", topic, "error", err)
		return nil
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return err
	default:
		s.logger.Warn("invalid mqtt reading",
			"topic", topic,
			"code", apperr.CodeOf(err),
			"error", err,
		)
		return nil
	}
}
