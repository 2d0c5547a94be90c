// Package mqtt wraps the paho client for the reading subscriber on the server
// side and the reading publisher used by the device simulator.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrStopped is returned by Connect after Disconnect.
var ErrStopped = errors.New("mqtt client stopped")

// ReadingTopic is the topic a device publishes its readings to.
func ReadingTopic(deviceID string) string {
	return "devices/" + strings.TrimSpace(deviceID) + "/readings"
}

// conn holds the connection state shared by Subscriber and Publisher.
type conn struct {
	client    paho.Client
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newClientOptions(broker string, port int, clientID string) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(clientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	return opts
}

// connect starts the paho connect and waits for it in a ctx/stop aware loop.
// When ctx expires first the client keeps retrying in the background until
// disconnect is called.
func (c *conn) connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
}

// IsConnected reports whether the broker session is up.
func (c *conn) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

func (c *conn) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// disconnect is idempotent. before runs while the session may still be up.
func (c *conn) disconnect(before func()) {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if before != nil && c.IsConnected() {
		before()
	}
	c.client.Disconnect(250)
	c.setConnected(false)
}
