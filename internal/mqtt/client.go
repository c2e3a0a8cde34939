// Package mqtt publishes engine status updates to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/morpheus1988wer/HertzBridge/internal/conf"
	"github.com/morpheus1988wer/HertzBridge/internal/errors"
	"github.com/morpheus1988wer/HertzBridge/internal/events"
	"github.com/morpheus1988wer/HertzBridge/internal/logging"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	reconnectCooldown = 5 * time.Second
)

// Client wraps a paho MQTT client for status publishing.
type Client struct {
	settings conf.MQTTSettings
	clientID string
	log      *slog.Logger

	mu              sync.Mutex
	internal        pahomqtt.Client
	lastConnAttempt time.Time
}

// NewClient creates an MQTT client from settings. The connection is
// established by Connect.
func NewClient(settings conf.MQTTSettings, clientID string) *Client {
	return &Client{
		settings: settings,
		clientID: clientID,
		log:      logging.ForService("mqtt"),
	}
}

// Connect establishes the broker connection. Repeated attempts inside the
// reconnect cooldown are refused to avoid hammering a down broker.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < reconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}
	c.lastConnAttempt = time.Now()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.settings.Broker)
	opts.SetClientID(c.clientID)
	opts.SetUsername(c.settings.Username)
	opts.SetPassword(c.settings.Password)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("timed out connecting to broker %s", c.settings.Broker).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("broker", c.settings.Broker).
			Build()
	}

	c.internal = client
	c.log.Info("connected to mqtt broker", "broker", c.settings.Broker)
	return nil
}

// Publish sends a payload to the configured topic.
func (c *Client) Publish(payload []byte) error {
	c.mu.Lock()
	client := c.internal
	c.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return errors.Newf("not connected to broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	token := client.Publish(c.settings.Topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Newf("publish to %s timed out", c.settings.Topic).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", c.settings.Topic).
			Build()
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal != nil && c.internal.IsConnected() {
		c.internal.Disconnect(250)
	}
	c.internal = nil
}

// StatusConsumer returns a status bus consumer publishing each update as
// JSON. Publish failures are logged, never propagated; a down broker must
// not stall the engine.
func (c *Client) StatusConsumer() func(events.StatusUpdate) {
	return func(update events.StatusUpdate) {
		payload, err := json.Marshal(update)
		if err != nil {
			c.log.Warn("failed to encode status update", "error", err)
			return
		}
		if err := c.Publish(payload); err != nil {
			c.log.Warn("failed to publish status update", "error", err)
		}
	}
}
